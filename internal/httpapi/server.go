// Package httpapi exposes the claim workflow over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/elo-community/elo-rating-service/internal/elo"
	"github.com/elo-community/elo-rating-service/internal/h2h"
	"github.com/elo-community/elo-rating-service/internal/matchresult"
	"github.com/elo-community/elo-rating-service/internal/obslog"
	"github.com/elo-community/elo-rating-service/pkg/matchdto"
)

// Server routes the JSON API on fasthttp.
type Server struct {
	mgr *matchresult.Manager
	gap *h2h.Aggregator
	srv *fasthttp.Server
}

func NewServer(mgr *matchresult.Manager, gap *h2h.Aggregator) *Server {
	s := &Server{mgr: mgr, gap: gap}
	s.srv = &fasthttp.Server{
		Handler:      s.handle,
		Name:         "elo-rating-service",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe(addr string) error {
	return s.srv.ListenAndServe(addr)
}

func (s *Server) Shutdown() error {
	return s.srv.Shutdown()
}

func (s *Server) handle(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	method := string(ctx.Method())

	switch {
	case path == "/healthz" && method == fasthttp.MethodGet:
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")

	case path == "/api/v1/matches" && method == fasthttp.MethodPost:
		s.handleSubmit(ctx)
	case path == "/api/v1/matches" && method == fasthttp.MethodGet:
		s.handleListClaims(ctx)
	case strings.HasPrefix(path, "/api/v1/matches/") && strings.HasSuffix(path, "/corroborate") && method == fasthttp.MethodPost:
		id := strings.TrimSuffix(strings.TrimPrefix(path, "/api/v1/matches/"), "/corroborate")
		s.handleCorroborate(ctx, id)
	case strings.HasPrefix(path, "/api/v1/matches/") && method == fasthttp.MethodGet:
		s.handleGetClaim(ctx, strings.TrimPrefix(path, "/api/v1/matches/"))

	case strings.HasPrefix(path, "/api/v1/ratings/") && method == fasthttp.MethodGet:
		s.handleGetProfile(ctx, strings.TrimPrefix(path, "/api/v1/ratings/"))
	case path == "/api/v1/h2h" && method == fasthttp.MethodGet:
		s.handleH2H(ctx)

	default:
		writeError(ctx, fasthttp.StatusNotFound, matchdto.DomainError{Code: "not_found", Message: "no such route"})
	}
}

func (s *Server) handleSubmit(ctx *fasthttp.RequestCtx) {
	var req matchdto.SubmitRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, matchdto.DomainError{Code: "bad_request", Message: "malformed JSON body"})
		return
	}
	result, err := elo.ParseOutcome(req.Result)
	if err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, matchdto.DomainError{Code: "invalid_result", Message: err.Error()})
		return
	}
	playedAt := time.Time{}
	if req.PlayedAt != nil {
		playedAt = *req.PlayedAt
	}
	c, err := s.mgr.Submit(ctx, req.ReporterID, req.PartnerID, req.Category, result, req.Handicap, playedAt)
	if err != nil {
		writeWorkflowError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusCreated, matchdto.ClaimResponse{Claim: toDTO(c)})
}

func (s *Server) handleCorroborate(ctx *fasthttp.RequestCtx, id string) {
	var req matchdto.CorroborateRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, matchdto.DomainError{Code: "bad_request", Message: "malformed JSON body"})
		return
	}
	result, err := elo.ParseOutcome(req.Result)
	if err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, matchdto.DomainError{Code: "invalid_result", Message: err.Error()})
		return
	}
	c, err := s.mgr.Corroborate(ctx, id, req.PartnerID, result)
	if err != nil {
		writeWorkflowError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, matchdto.ClaimResponse{Claim: toDTO(c)})
}

func (s *Server) handleGetClaim(ctx *fasthttp.RequestCtx, id string) {
	c, err := s.mgr.Get(ctx, id)
	if err != nil {
		writeWorkflowError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, matchdto.ClaimResponse{Claim: toDTO(c)})
}

func (s *Server) handleListClaims(ctx *fasthttp.RequestCtx) {
	participant := strings.TrimSpace(string(ctx.QueryArgs().Peek("participant")))
	if participant == "" {
		writeError(ctx, fasthttp.StatusBadRequest, matchdto.DomainError{Code: "bad_request", Message: "participant query parameter required"})
		return
	}
	claims, err := s.mgr.ClaimsByParticipant(ctx, participant)
	if err != nil {
		writeWorkflowError(ctx, err)
		return
	}
	out := make([]*matchdto.Claim, 0, len(claims))
	for _, c := range claims {
		out = append(out, toDTO(c))
	}
	writeJSON(ctx, fasthttp.StatusOK, matchdto.ClaimListResponse{Claims: out})
}

func (s *Server) handleGetProfile(ctx *fasthttp.RequestCtx, participant string) {
	category := strings.TrimSpace(string(ctx.QueryArgs().Peek("category")))
	if participant == "" || category == "" {
		writeError(ctx, fasthttp.StatusBadRequest, matchdto.DomainError{Code: "bad_request", Message: "participant path segment and category query parameter required"})
		return
	}
	p, err := s.mgr.ProfileFor(ctx, participant, category)
	if err != nil {
		writeWorkflowError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, matchdto.ProfileResponse{Profile: &matchdto.RatingProfile{
		ParticipantID: p.ParticipantID,
		Category:      p.Category,
		Rating:        p.Rating,
		GamesPlayed:   p.GamesPlayed,
		Wins:          p.Wins,
		Losses:        p.Losses,
		Draws:         p.Draws,
		UpdatedAt:     p.UpdatedAt,
	}})
}

func (s *Server) handleH2H(ctx *fasthttp.RequestCtx) {
	a := strings.TrimSpace(string(ctx.QueryArgs().Peek("a")))
	b := strings.TrimSpace(string(ctx.QueryArgs().Peek("b")))
	category := strings.TrimSpace(string(ctx.QueryArgs().Peek("category")))
	if a == "" || b == "" || category == "" {
		writeError(ctx, fasthttp.StatusBadRequest, matchdto.DomainError{Code: "bad_request", Message: "a, b and category query parameters required"})
		return
	}
	gap, err := s.gap.GapFor(ctx, a, b, category)
	if err != nil {
		writeWorkflowError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, matchdto.H2HResponse{ParticipantA: a, ParticipantB: b, Category: category, Gap: gap})
}

func toDTO(c *matchresult.Claim) *matchdto.Claim {
	dto := &matchdto.Claim{
		ID:              c.ID,
		Category:        c.Category,
		ReporterID:      c.ReporterID,
		PartnerID:       c.PartnerID,
		ReporterOutcome: string(c.ReporterOutcome),
		Handicap:        c.Handicap,
		PlayedAt:        c.PlayedAt,
		Status:          string(c.Status),
		CreatedAt:       c.CreatedAt,
		ExpiresAt:       c.ExpiresAt,
		PartnerOutcome:  string(c.PartnerOutcome),
		Method:          c.Method,
		ReporterDelta:   c.ReporterDelta,
		PartnerDelta:    c.PartnerDelta,
		KEff:            c.KEff,
		Gap:             c.Gap,
	}
	if !c.ResolvedAt.IsZero() {
		t := c.ResolvedAt
		dto.ResolvedAt = &t
	}
	return dto
}

func writeWorkflowError(ctx *fasthttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, matchresult.ErrNotFound):
		writeError(ctx, fasthttp.StatusNotFound, matchdto.DomainError{Code: "not_found", Message: err.Error()})
	case errors.Is(err, matchresult.ErrNotParticipant):
		writeError(ctx, fasthttp.StatusForbidden, matchdto.DomainError{Code: "not_participant", Message: err.Error()})
	case errors.Is(err, matchresult.ErrInvalidStateTransition), errors.Is(err, matchresult.ErrDeadlineNotReached):
		writeError(ctx, fasthttp.StatusConflict, matchdto.DomainError{Code: "invalid_state_transition", Message: err.Error()})
	case errors.Is(err, matchresult.ErrStoreConflict):
		writeError(ctx, fasthttp.StatusConflict, matchdto.DomainError{Code: "store_conflict", Message: err.Error(), Retryable: true})
	case errors.Is(err, matchresult.ErrSelfReport),
		errors.Is(err, matchresult.ErrInvalidResult),
		errors.Is(err, matchresult.ErrInvalidArgs):
		writeError(ctx, fasthttp.StatusBadRequest, matchdto.DomainError{Code: "bad_request", Message: err.Error()})
	default:
		obslog.L().Error("api_internal_error", zap.String("path", string(ctx.Path())), zap.Error(err))
		writeError(ctx, fasthttp.StatusInternalServerError, matchdto.DomainError{Code: "internal", Message: "internal error"})
	}
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, body any) {
	raw, err := json.Marshal(body)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json; charset=utf-8")
	ctx.SetBody(raw)
}

func writeError(ctx *fasthttp.RequestCtx, status int, derr matchdto.DomainError) {
	writeJSON(ctx, status, derr)
}
