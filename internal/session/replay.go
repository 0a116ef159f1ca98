package session

import (
	"context"

	"catcore/internal/domain"
	"catcore/internal/pool"
)

// PersistedResponse is one entry of the collaborator-owned response log
// (spec.md §6's persisted state layout): sequence, item id, and the
// correctness grade. time_spent is carried by the collaborator but is not
// needed to reconstruct theta.
type PersistedResponse struct {
	Sequence int
	ItemID   string
	Correct  bool
}

// Replay reconstructs an identical SessionState from a persisted response
// log and a stored prior_theta (spec.md §4.5's replay contract), by
// initialising and replaying every response in order. A response whose
// item still resolves but lacks well-formed IRT parameters is not skipped:
// it counts toward administered and theta_history via the neutral 1.0/0.0
// default in ProcessResponse, as live processing would. A response whose
// item can no longer be resolved at all is skipped with a logged warning
// and does not count.
func (e *Engine) Replay(ctx context.Context, provider pool.ItemProvider, userID, sessionID string, priorTheta float64, log []PersistedResponse) (SessionState, error) {
	// Replay is reconstruction, not a new session, so the initial state is
	// built here rather than through Initialize, which counts a new session
	// in SessionsStarted.
	s := SessionState{
		UserID:         userID,
		SessionID:      sessionID,
		PriorTheta:     priorTheta,
		Status:         StatusInProgress,
		Theta:          priorTheta,
		ThetaSE:        1.0,
		DomainCoverage: make(map[domain.Domain]int),
	}

	for _, pr := range log {
		it, err := provider.ItemByID(ctx, pr.ItemID)
		if err != nil {
			if e.log != nil {
				e.log.WithContext(ctx).WithField("item_id", pr.ItemID).WithField("session_id", sessionID).
					Warn("replay: item no longer resolvable, skipping response")
			}
			if e.metrics != nil {
				e.metrics.ReplaySkips.Inc()
			}
			continue
		}

		var a, b *float64
		if it.WellFormed() {
			av, bv := it.Discrimination, it.Difficulty
			a, b = &av, &bv
		}

		if _, err := e.ProcessResponse(&s, pr.ItemID, pr.Correct, it.Domain, a, b); err != nil {
			return SessionState{}, err
		}
	}

	return s, nil
}
