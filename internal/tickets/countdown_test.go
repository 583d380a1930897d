package tickets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRemainingSeconds(t *testing.T) {
	expiry := time.Date(2026, 8, 26, 10, 30, 0, 0, time.UTC)
	ticket := &Ticket{ExpiresAt: expiry}

	cases := []struct {
		name string
		now  time.Time
		want int64
	}{
		{"full window", expiry.Add(-30 * time.Minute), 30 * 60},
		{"mid window", expiry.Add(-12*time.Minute - 30*time.Second), 12*60 + 30},
		{"last second", expiry.Add(-time.Second), 1},
		{"fraction rounds up", expiry.Add(-100 * time.Millisecond), 1},
		{"at expiry", expiry, 0},
		{"past expiry clamps", expiry.Add(5 * time.Minute), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, RemainingSeconds(ticket, tc.now))
		})
	}

	assert.Zero(t, RemainingSeconds(nil, expiry))
}
