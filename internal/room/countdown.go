package room

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// The round countdown is a single re-armable timer owned by the actor loop.
// Each fire decrements the remaining count and re-arms; reaching zero begins
// the next round. beginNewRound cancels any pending timer, so a countdown
// superseded by an early new round (card-change quorum, explicit new_round)
// can never fire afterwards.

func (r *Room) startCountdown() {
	r.stopCountdown()
	r.state.CountdownRemaining = r.cfg.CountdownStart
	r.countdownTimer = r.clock.NewTimer(r.cfg.CountdownInterval)
}

// countdownChan returns the pending timer channel, or nil (blocking forever
// in the actor's select) when no countdown is running.
func (r *Room) countdownChan() <-chan time.Time {
	if r.countdownTimer == nil {
		return nil
	}
	return r.countdownTimer.Chan()
}

func (r *Room) handleCountdownTick() {
	r.state.CountdownRemaining--
	if r.state.CountdownRemaining > 0 {
		r.countdownTimer.Reset(r.cfg.CountdownInterval)
		return
	}

	// The timer has fired for the last time; nothing left to stop.
	r.countdownTimer = nil
	r.state.RoundWinner = ""
	r.beginNewRound()
}

func (r *Room) stopCountdown() {
	if r.countdownTimer == nil {
		return
	}
	stopAndDrainTimer(r.countdownTimer)
	r.countdownTimer = nil
	r.state.CountdownRemaining = 0
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired,
// per the time.Timer.Stop documentation.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
