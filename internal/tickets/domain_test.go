package tickets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStateMachine(t *testing.T) {
	t.Run("terminal states accept no transition", func(t *testing.T) {
		for _, terminal := range []State{StateDelivered, StateExpired, StateAnnulled} {
			for _, target := range []State{StateIssued, StatePendingRedemption, StateDelivered, StateExpired, StateAnnulled, StateIncident} {
				assert.False(t, CanTransition(terminal, target), "%s -> %s", terminal, target)
			}
		}
	})

	t.Run("incident recovers only forward", func(t *testing.T) {
		assert.True(t, CanTransition(StateIncident, StateDelivered))
		assert.True(t, CanTransition(StateIncident, StateExpired))
		assert.True(t, CanTransition(StateIncident, StateAnnulled))
		assert.False(t, CanTransition(StateIncident, StateIssued))
		assert.False(t, CanTransition(StateIncident, StatePendingRedemption))
	})

	t.Run("issued reaches every later state", func(t *testing.T) {
		for _, target := range []State{StatePendingRedemption, StateDelivered, StateExpired, StateAnnulled, StateIncident} {
			assert.True(t, CanTransition(StateIssued, target), "issued -> %s", target)
		}
		assert.False(t, CanTransition(StateIssued, StateIssued))
	})

	t.Run("redeemable set", func(t *testing.T) {
		assert.True(t, StateIssued.Redeemable())
		assert.True(t, StatePendingRedemption.Redeemable())
		assert.True(t, StateIncident.Redeemable())
		assert.False(t, StateDelivered.Redeemable())
		assert.False(t, StateExpired.Redeemable())
		assert.False(t, StateAnnulled.Redeemable())
	})

	t.Run("unknown state is invalid everywhere", func(t *testing.T) {
		assert.False(t, State("lost").IsValid())
		assert.False(t, CanTransition(State("lost"), StateDelivered))
		assert.False(t, CanTransition(StateIssued, State("lost")))
	})
}

func TestTicketExpired(t *testing.T) {
	expiry := time.Date(2026, 8, 26, 10, 30, 0, 0, time.UTC)
	ticket := &Ticket{ExpiresAt: expiry}

	assert.False(t, ticket.Expired(expiry.Add(-time.Second)))
	// The boundary instant itself is already outside the window.
	assert.True(t, ticket.Expired(expiry))
	assert.True(t, ticket.Expired(expiry.Add(time.Second)))
}
