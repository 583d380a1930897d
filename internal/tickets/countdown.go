package tickets

import "time"

// RemainingSeconds derives the countdown shown next to a ticket. The value
// is advisory only, recomputed from expiry on every call: authoritative
// expiry enforcement stays with the validation path, never with a client
// counting down locally.
func RemainingSeconds(t *Ticket, now time.Time) int64 {
	if t == nil {
		return 0
	}
	remaining := t.ExpiresAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	// Round up so a ticket with 100ms left still shows one second.
	return int64((remaining + time.Second - 1) / time.Second)
}
