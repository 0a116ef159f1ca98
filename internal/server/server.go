// Package server is the thin HTTP demonstrator collaborator of spec.md §6:
// it persists sessions, resolves items, and drives the session engine,
// exposing begin_session / submit_response / get_progress /
// evaluate_readiness over gin. Grounded on the teacher's handler style
// (e.g. jndunlap-gohypo/ui/data_handlers.go: a struct of injected
// collaborators, one gin.HandlerFunc-returning method per operation,
// gin.H JSON responses) since the teacher itself exposes gRPC, which is
// out of scope here (see SPEC_FULL.md's dropped-dependency notes).
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"catcore/internal/config"
	"catcore/internal/domain"
	"catcore/internal/logger"
	"catcore/internal/metrics"
	"catcore/internal/pool"
	"catcore/internal/readiness"
	"catcore/internal/scoring"
	"catcore/internal/selector"
	"catcore/internal/session"
	"catcore/internal/stopping"
	"catcore/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Server wires the CAT core's components behind four HTTP operations.
type Server struct {
	cfg      *config.Config
	log      *logger.Logger
	metrics  *metrics.Metrics
	provider pool.ItemProvider
	sessions store.SessionStore
	selector *selector.Selector
	engine   *session.Engine
	stopEval *stopping.Evaluator
	readi    *readiness.Evaluator
	weights  map[domain.Domain]float64

	// readinessItems supplies the calibrated-item view evaluate_readiness
	// needs; in the reference deployment this reads the store, but it is
	// injected so tests can substitute a fixed item set.
	readinessItems func(ctx context.Context) ([]readiness.CalibratedItem, error)
}

// New constructs a Server from its collaborators.
func New(
	cfg *config.Config,
	log *logger.Logger,
	m *metrics.Metrics,
	provider pool.ItemProvider,
	sessions store.SessionStore,
	sel *selector.Selector,
	engine *session.Engine,
	stopEval *stopping.Evaluator,
	readi *readiness.Evaluator,
	readinessItems func(ctx context.Context) ([]readiness.CalibratedItem, error),
) *Server {
	weights := make(map[domain.Domain]float64, len(cfg.Domain.Weights))
	for d, w := range cfg.Domain.Weights {
		weights[domain.Domain(d)] = w
	}
	return &Server{
		cfg: cfg, log: log, metrics: m, provider: provider, sessions: sessions,
		selector: sel, engine: engine, stopEval: stopEval, readi: readi,
		weights: weights, readinessItems: readinessItems,
	}
}

// Routes registers every operation on the given gin engine.
func (s *Server) Routes(r gin.IRouter) {
	r.POST("/sessions", s.handleBeginSession)
	r.POST("/sessions/:id/responses", s.handleSubmitResponse)
	r.GET("/sessions/:id/progress", s.handleGetProgress)
	r.GET("/readiness", s.handleEvaluateReadiness)
}

type beginSessionRequest struct {
	UserID     string   `json:"user_id" binding:"required"`
	PriorTheta *float64 `json:"prior_theta"`
}

// handleBeginSession implements begin_session (spec.md §6): the
// collaborator persists the new session; the engine chooses the first item
// using the initial theta (prior or 0).
func (s *Server) handleBeginSession(c *gin.Context) {
	var req beginSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	priorTheta := 0.0
	if req.PriorTheta != nil {
		priorTheta = *req.PriorTheta
	}

	sessionID := uuid.NewString()
	ctx := c.Request.Context()

	initial := s.engine.Initialize(req.UserID, sessionID, priorTheta)

	if err := s.sessions.CreateSession(ctx, sessionID, req.UserID, priorTheta); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	selectStart := time.Now()
	item, ok, err := s.selector.Select(ctx, selector.Input{
		UserID:         req.UserID,
		Theta:          initial.Theta,
		Administered:   map[string]bool{},
		DomainCoverage: initial.DomainCoverage,
		DomainWeights:  s.weights,
	})
	if s.metrics != nil {
		s.metrics.RecordItemSelection(time.Since(selectStart), err == nil && ok)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "item_pool_exhausted"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"first_item": item.ID,
		"theta":      initial.Theta,
		"theta_se":   initial.ThetaSE,
	})
}

type submitResponseRequest struct {
	ItemID      string `json:"item_id" binding:"required"`
	Correct     bool   `json:"correct"`
	TimeSpentMS *int64 `json:"time_spent_ms"`
}

// handleSubmitResponse implements submit_response (spec.md §6). Duplicate
// submissions for the same item_id in the same session are rejected as a
// conflict.
func (s *Server) handleSubmitResponse(c *gin.Context) {
	sessionID := c.Param("id")
	var req submitResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	st, userID, priorTheta, _, err := s.sessions.LoadResponseLog(ctx, sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	current, err := s.engine.Replay(ctx, s.provider, userID, sessionID, priorTheta, st)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	item, err := s.provider.ItemByID(ctx, req.ItemID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	var a, b *float64
	if item.WellFormed() {
		av, bv := item.Discrimination, item.Difficulty
		a, b = &av, &bv
	}

	step, err := s.engine.ProcessResponse(&current, req.ItemID, req.Correct, item.Domain, a, b)
	if err != nil {
		if errors.Is(err, session.ErrDuplicateItem) || errors.Is(err, session.ErrAlreadyFinal) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.sessions.AppendResponse(ctx, sessionID, step.ItemsAdministered-1, req.ItemID, req.Correct, req.TimeSpentMS, step.Theta); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if step.ShouldStop {
		s.finalize(c, ctx, &current, sessionID, step.Reason)
		return
	}

	administered := make(map[string]bool, len(current.Administered))
	for _, r := range current.Administered {
		administered[r.ItemID] = true
	}

	selectStart := time.Now()
	next, ok, err := s.selector.Select(ctx, selector.Input{
		UserID:         userID,
		Theta:          current.Theta,
		Administered:   administered,
		DomainCoverage: current.DomainCoverage,
		DomainWeights:  s.weights,
	})
	if s.metrics != nil {
		s.metrics.RecordItemSelection(time.Since(selectStart), err == nil && ok)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		s.finalize(c, ctx, &current, sessionID, stopping.ReasonItemPoolExhausted)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result":             "next_question",
		"item":               next.ID,
		"theta":              current.Theta,
		"theta_se":           current.ThetaSE,
		"items_administered": len(current.Administered),
	})
}

func (s *Server) finalize(c *gin.Context, ctx context.Context, st *session.SessionState, sessionID string, reason stopping.Reason) {
	final, err := s.engine.Finalize(st, reason)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := s.sessions.FinalizeSession(ctx, sessionID, final.Theta, final.ThetaSE, string(reason)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	iq := scoring.ThetaToIQ(final.Theta)
	percentile := scoring.IQToPercentile(iq)
	ci := scoring.ComputeConfidenceInterval(iq, final.ThetaSE, 0.95)

	resp := gin.H{
		"result":         "completed",
		"final_theta":    final.Theta,
		"final_theta_se": final.ThetaSE,
		"domain_scores":  final.DomainScores,
		"stop_reason":    string(reason),
		"iq":             iq,
		"percentile":     percentile,
	}
	if ci.Ok {
		resp["confidence_interval"] = gin.H{"low": ci.Low, "high": ci.High}
	}
	c.JSON(http.StatusOK, resp)
}

// handleGetProgress implements get_progress (spec.md §6): read-only, never
// reveals theta.
func (s *Server) handleGetProgress(c *gin.Context) {
	sessionID := c.Param("id")
	ctx := c.Request.Context()

	log, userID, priorTheta, createdAt, err := s.sessions.LoadResponseLog(ctx, sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	st, err := s.engine.Replay(ctx, s.provider, userID, sessionID, priorTheta, log)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items_administered": len(st.Administered),
		"items_max":          s.cfg.CAT.MaxItems,
		"domain_coverage":    st.DomainCoverage,
		"current_se":         st.ThetaSE,
		"elapsed":            time.Since(createdAt),
	})
}

// handleEvaluateReadiness implements evaluate_readiness (spec.md §6): a
// diagnostic over the full calibrated item pool.
func (s *Server) handleEvaluateReadiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	items, err := s.readinessItems(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	report := s.readi.Evaluate(items)
	c.JSON(http.StatusOK, report)
}
