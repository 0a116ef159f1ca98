// Package session implements the session engine of spec.md §4.5: the only
// component that mutates a SessionState. Grounded on the teacher's
// PlacementTestAlgorithm.ProcessResponse / FinalizePlacementTest state-fold
// pattern (services/scheduler-service/internal/algorithms/placement.go),
// reworked per design note §9 into a purely in-memory value type with
// persistence left to the collaborator.
package session

import (
	"context"
	"fmt"

	"catcore/internal/domain"
	"catcore/internal/events"
	"catcore/internal/irt"
	"catcore/internal/logger"
	"catcore/internal/metrics"
	"catcore/internal/stopping"
)

// Status is the lifecycle state of a SessionState.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusFinalized  Status = "finalized"
)

// SessionState is an owned, purely in-memory value type (design note §9):
// persistence is the collaborator's concern, consumed via the response log
// on replay. The engine is the only component that mutates it.
type SessionState struct {
	UserID         string
	SessionID      string
	PriorTheta     float64
	Status         Status
	Theta          float64
	ThetaSE        float64
	ThetaHistory   []float64
	Administered   []domain.AdministeredResponse
	DomainCoverage map[domain.Domain]int
	StopReason     stopping.Reason
}

// StepResult is returned by ProcessResponse.
type StepResult struct {
	Theta             float64
	ThetaSE           float64
	ItemsAdministered int
	ShouldStop        bool
	Reason            stopping.Reason
}

// DomainScore is the per-domain accuracy summary in a FinalResult.
type DomainScore struct {
	Correct int
	Total   int
	Pct     float64
}

// FinalResult is returned by Finalize.
type FinalResult struct {
	Theta             float64
	ThetaSE           float64
	ItemsAdministered int
	CorrectCount      int
	DomainScores      map[domain.Domain]DomainScore
	StopReason        stopping.Reason
}

// Errors surfaced to the collaborator as invariant violations or conflicts
// (spec.md §7). Validation errors and session conflicts propagate unchanged.
var (
	ErrDuplicateItem  = fmt.Errorf("session: item already administered in this session")
	ErrAlreadyFinal   = fmt.Errorf("session: session is already finalized")
	ErrUnknownDomain  = fmt.Errorf("session: unknown domain")
)

// Engine owns the state machine. It holds no session data itself — every
// operation takes and returns a SessionState value — so a single Engine
// instance is safely shared across sessions (spec.md §5: different sessions
// are independent).
type Engine struct {
	stopEval *stopping.Evaluator
	domainWeights map[domain.Domain]float64
	log       *logger.Logger
	metrics   *metrics.Metrics
	publisher events.Publisher
}

// New constructs a session Engine. publisher may be nil; when set, Finalize
// publishes a SessionCompleted event best-effort (a publish failure is
// logged, never returned to the caller — spec.md §4.5 does not make event
// delivery part of finalize's contract).
func New(stopEval *stopping.Evaluator, domainWeights map[domain.Domain]float64, log *logger.Logger, m *metrics.Metrics, publisher events.Publisher) *Engine {
	return &Engine{stopEval: stopEval, domainWeights: domainWeights, log: log, metrics: m, publisher: publisher}
}

// Initialize sets theta = prior_theta, theta_se = 1.0, and empties every
// collection. It does not hit the pool or select any item (spec.md §4.5).
func (e *Engine) Initialize(userID, sessionID string, priorTheta float64) SessionState {
	if e.metrics != nil {
		e.metrics.SessionsStarted.Inc()
	}
	return SessionState{
		UserID:         userID,
		SessionID:      sessionID,
		PriorTheta:     priorTheta,
		Status:         StatusInProgress,
		Theta:          priorTheta,
		ThetaSE:        1.0,
		ThetaHistory:   nil,
		Administered:   nil,
		DomainCoverage: make(map[domain.Domain]int),
	}
}

// ProcessResponse validates the item is not already administered, appends
// it to the response log, updates theta via EAP over the entire history,
// and evaluates the stopping rules (spec.md §4.5). a and b missing (nil) is
// treated as a calibration gap: the response is still recorded with neutral
// defaults a=1.0, b=0.0, and a warning is logged — the engine never
// suppresses a received response.
func (e *Engine) ProcessResponse(s *SessionState, itemID string, correct bool, d domain.Domain, a, b *float64) (StepResult, error) {
	if s.Status == StatusFinalized {
		return StepResult{}, fmt.Errorf("%w: session %s", ErrAlreadyFinal, s.SessionID)
	}
	for _, r := range s.Administered {
		if r.ItemID == itemID {
			return StepResult{}, fmt.Errorf("%w: item %s, session %s", ErrDuplicateItem, itemID, s.SessionID)
		}
	}
	if !d.IsValid() {
		return StepResult{}, fmt.Errorf("%w: %s", ErrUnknownDomain, d)
	}

	effA, effB := 1.0, 0.0
	if a != nil && b != nil {
		effA, effB = *a, *b
	} else {
		if e.log != nil {
			e.log.WithContext(context.Background()).WithField("item_id", itemID).WithField("session_id", s.SessionID).
				Warn("calibration gap: item served without IRT parameters, using neutral defaults")
		}
		if e.metrics != nil {
			e.metrics.CalibrationGaps.Inc()
		}
	}

	seq := len(s.Administered)
	s.Administered = append(s.Administered, domain.AdministeredResponse{
		Sequence:       seq,
		ItemID:         itemID,
		Domain:         d,
		Discrimination: effA,
		Difficulty:     effB,
		Correct:        correct,
	})
	s.DomainCoverage[d]++

	responses := make([]irt.Response, len(s.Administered))
	for i, r := range s.Administered {
		responses[i] = irt.Response{A: r.Discrimination, B: r.Difficulty, Correct: r.Correct}
	}
	theta, thetaSE := irt.EAP(s.PriorTheta, responses)
	s.Theta = theta
	s.ThetaSE = thetaSE
	s.ThetaHistory = append(s.ThetaHistory, theta)
	if e.metrics != nil {
		e.metrics.AbilityUpdates.Inc()
	}

	result, err := e.stopEval.Evaluate(s.ThetaSE, len(s.Administered), s.DomainCoverage, s.ThetaHistory, e.domainWeights)
	if err != nil {
		return StepResult{}, fmt.Errorf("session: stopping evaluation failed: %w", err)
	}
	if e.metrics != nil {
		reason := string(result.Reason)
		if reason == "" {
			reason = "continue"
		}
		e.metrics.StoppingDecisions.WithLabelValues(reason).Inc()
	}

	return StepResult{
		Theta:             s.Theta,
		ThetaSE:           s.ThetaSE,
		ItemsAdministered: len(s.Administered),
		ShouldStop:        result.ShouldStop,
		Reason:            result.Reason,
	}, nil
}

// Finalize freezes the session and returns the final summary. A second call
// is an error (spec.md §4.5: idempotent only in the sense that finalization
// happens exactly once; a repeat call is an invariant violation).
func (e *Engine) Finalize(s *SessionState, reason stopping.Reason) (FinalResult, error) {
	if s.Status == StatusFinalized {
		return FinalResult{}, fmt.Errorf("%w: session %s", ErrAlreadyFinal, s.SessionID)
	}

	s.Status = StatusFinalized
	s.StopReason = reason

	scores := make(map[domain.Domain]DomainScore, len(s.DomainCoverage))
	correctTotal := 0
	for _, r := range s.Administered {
		ds := scores[r.Domain]
		ds.Total++
		if r.Correct {
			ds.Correct++
			correctTotal++
		}
		scores[r.Domain] = ds
	}
	for d, ds := range scores {
		if ds.Total > 0 {
			ds.Pct = float64(ds.Correct) / float64(ds.Total)
			scores[d] = ds
		}
	}

	if e.metrics != nil {
		e.metrics.SessionsCompleted.WithLabelValues(string(reason)).Inc()
	}

	result := FinalResult{
		Theta:             s.Theta,
		ThetaSE:           s.ThetaSE,
		ItemsAdministered: len(s.Administered),
		CorrectCount:      correctTotal,
		DomainScores:      scores,
		StopReason:        reason,
	}

	if e.publisher != nil {
		event := events.SessionCompleted{
			SessionID:         s.SessionID,
			UserID:            s.UserID,
			FinalTheta:        result.Theta,
			FinalThetaSE:      result.ThetaSE,
			ItemsAdministered: result.ItemsAdministered,
			CorrectCount:      result.CorrectCount,
			StopReason:        string(reason),
			DomainCoverage:    s.DomainCoverage,
		}
		if err := e.publisher.PublishSessionCompleted(context.Background(), event); err != nil && e.log != nil {
			e.log.WithContext(context.Background()).WithField("session_id", s.SessionID).WithError(err).
				Warn("session: failed to publish session-completed event")
		}
	}

	return result, nil
}
