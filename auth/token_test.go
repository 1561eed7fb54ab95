package auth

import (
	"testing"
	"time"
)

func TestAuthenticated(t *testing.T) {
	var nilRec *TokenRecord
	if nilRec.Authenticated() {
		t.Error("nil record should not be authenticated")
	}
	if (&TokenRecord{}).Authenticated() {
		t.Error("empty record should not be authenticated")
	}
	if !(&TokenRecord{AccessToken: "a"}).Authenticated() {
		t.Error("record with access token should be authenticated")
	}
}

func TestStale(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	obtained := base.UnixMilli()

	tests := []struct {
		name string
		rec  *TokenRecord
		now  time.Time
		want bool
	}{
		{
			name: "nil record is never stale",
			rec:  nil,
			now:  base,
			want: false,
		},
		{
			name: "unknown lifetime is never stale",
			rec:  &TokenRecord{AccessToken: "a", ObtainmentTimestamp: obtained},
			now:  base.Add(1000 * time.Hour),
			want: false,
		},
		{
			name: "fresh token",
			rec:  &TokenRecord{AccessToken: "a", ExpiresIn: 3600, ObtainmentTimestamp: obtained},
			now:  base.Add(10 * time.Minute),
			want: false,
		},
		{
			name: "inside the safety buffer",
			rec:  &TokenRecord{AccessToken: "a", ExpiresIn: 3600, ObtainmentTimestamp: obtained},
			now:  base.Add(3600*time.Second - 30*time.Second),
			want: true,
		},
		{
			name: "past expiry",
			rec:  &TokenRecord{AccessToken: "a", ExpiresIn: 3600, ObtainmentTimestamp: obtained},
			now:  base.Add(2 * time.Hour),
			want: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.Stale(tt.now); got != tt.want {
				t.Errorf("Stale = %v, want %v", got, tt.want)
			}
		})
	}
}
