// Package web exposes the approval callbacks the operator reaches from
// the links embedded in Telegram alerts, plus the health endpoint.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"lancebid/bidder-service/internal/ai"
	"lancebid/bidder-service/internal/bidder"
	"lancebid/bidder-service/internal/freelancer"
	"lancebid/bidder-service/internal/model"
	"lancebid/bidder-service/internal/store"
)

const version = "1.0.0"

// Notifier extends the loop notifier with the proposal-generated kind
// only the gen-proposal callback emits.
type Notifier interface {
	bidder.Notifier
	SendProposalGenerated(ctx context.Context, proposal string) error
}

// ReviewStore is the full pending-review contract, including consumption.
type ReviewStore interface {
	bidder.ReviewStore
	Get(ctx context.Context, id string) (model.PendingReview, error)
	Delete(ctx context.Context, id string) error
}

// Handler serves the approval callbacks. It shares the stores and the
// failover chain with the loops and executes the same
// generate-and-bid sequence on demand.
type Handler struct {
	market   bidder.Marketplace
	gen      bidder.Generator
	notifier Notifier
	projects bidder.ProjectLedger
	reviews  ReviewStore
	events   bidder.EventPublisher
	log      *slog.Logger

	bidPeriod     int
	proposalYears int

	bidderID atomic.Int64
}

// NewHandler wires the callback handler.
func NewHandler(market bidder.Marketplace, gen bidder.Generator, notifier Notifier,
	projects bidder.ProjectLedger, reviews ReviewStore, events bidder.EventPublisher,
	bidPeriod, proposalYears int, log *slog.Logger) *Handler {
	return &Handler{
		market:        market,
		gen:           gen,
		notifier:      notifier,
		projects:      projects,
		reviews:       reviews,
		events:        events,
		bidPeriod:     bidPeriod,
		proposalYears: proposalYears,
		log:           log.With("component", "web"),
	}
}

// RegisterRoutes attaches all endpoints to mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /gen_proposal", h.genProposal)
	mux.HandleFunc("GET /place_bid", h.placeBid)
}

// NewServer builds the HTTP server around a configured handler.
func NewServer(port string, h *Handler) *http.Server {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	return &http.Server{
		Addr:    ":" + port,
		Handler: mux,
		// Both callbacks run AI generation inline, which can take a while.
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "bidder-service",
		"version": version,
	})
}

// genProposal drafts a proposal for a parked project and pushes it to the
// operator chat without bidding. The project is retired from the loops
// once the proposal has been delivered.
func (h *Handler) genProposal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rec, ok := h.loadReview(w, r)
	if !ok {
		return
	}

	proposal, err := h.draft(ctx, rec.Project)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"status": "error", "message": err.Error(),
		})
		return
	}

	if err := h.notifier.SendProposalGenerated(ctx, proposal); err != nil {
		h.log.Warn("proposal delivery failed", "projectId", rec.ID, "err", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"status": "error", "message": "failed to send proposal to telegram",
		})
		return
	}

	h.record(ctx, rec.ID)
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok", "message": "proposal sent to telegram",
	})
}

// placeBid drafts a proposal and bids at the amount computed when the
// project was parked. The review record is consumed on any terminal
// outcome, so re-clicking a stale link reports "not found" instead of
// re-bidding.
func (h *Handler) placeBid(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rec, ok := h.loadReview(w, r)
	if !ok {
		return
	}
	p := rec.Project

	proposal, err := h.draft(ctx, p)
	if err != nil {
		if nerr := h.notifier.SendGenerationFailed(ctx, p.Title, rec.ID, 0); nerr != nil {
			h.log.Warn("generation-failed notification failed", "err", nerr)
		}
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"status": "error", "message": err.Error(),
		})
		return
	}

	bidderID, err := h.self(ctx)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"status": "error", "message": fmt.Sprintf("self lookup failed: %v", err),
		})
		return
	}

	err = h.market.PlaceBid(ctx, model.Bid{
		ProjectID:           p.ID,
		BidderID:            bidderID,
		Amount:              rec.Amount,
		Period:              h.bidPeriod,
		MilestonePercentage: 100,
		Description:         proposal,
	})

	switch {
	case err == nil:
		h.consume(ctx, rec.ID)
		if h.events != nil {
			h.events.Publish(ctx, "bid.placed", map[string]string{
				"projectId": rec.ID,
				"title":     p.Title,
				"amount":    fmt.Sprintf("%.2f", rec.Amount),
			})
		}
		h.log.Info("bid placed via callback", "projectId", rec.ID, "amount", rec.Amount)
		if nerr := h.notifier.SendProposalSent(ctx, p.Title, proposal, p.SeoURL); nerr != nil {
			h.log.Warn("proposal-sent notification failed", "err", nerr)
		}

	case errors.Is(err, freelancer.ErrAlreadyBid):
		h.consume(ctx, rec.ID)

	case errors.Is(err, freelancer.ErrNDARequired):
		h.consume(ctx, rec.ID)
		if nerr := h.notifier.SendNDARequired(ctx, p.Title, proposal, p.SeoURL); nerr != nil {
			h.log.Warn("nda notification failed", "err", nerr)
		}

	default:
		h.log.Error("callback bid failed", "projectId", rec.ID, "err", err)
		h.consume(ctx, rec.ID)
		if nerr := h.notifier.SendBidError(ctx, p, rec.Amount, err.Error(), proposal); nerr != nil {
			h.log.Warn("bid-error notification failed", "err", nerr)
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok", "project_id": rec.ID,
	})
}

// loadReview resolves the project_id parameter to a parked record,
// answering the request itself on failure.
func (h *Handler) loadReview(w http.ResponseWriter, r *http.Request) (model.PendingReview, bool) {
	id := r.URL.Query().Get("project_id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"status": "error", "message": "missing project_id",
		})
		return model.PendingReview{}, false
	}

	rec, err := h.reviews.Get(r.Context(), id)
	if errors.Is(err, store.ErrReviewNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"status": "null", "message": "project not found in storage",
		})
		return model.PendingReview{}, false
	}
	if err != nil {
		h.log.Error("review lookup failed", "projectId", id, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": "error", "message": "storage failure",
		})
		return model.PendingReview{}, false
	}
	return rec, true
}

// draft runs the language-detect + proposal-generate sequence.
func (h *Handler) draft(ctx context.Context, p model.Project) (string, error) {
	lang, err := h.gen.Generate(ctx, ai.LanguagePrompt(p.Description), false)
	if err != nil {
		return "", fmt.Errorf("failed to detect language: %w", err)
	}

	proposal, err := h.gen.Generate(ctx,
		ai.ProposalPrompt(p.Title, p.Description, lang, h.proposalYears), true)
	if err != nil {
		return "", fmt.Errorf("failed to generate proposal: %w", err)
	}
	return proposal, nil
}

func (h *Handler) self(ctx context.Context) (int64, error) {
	if id := h.bidderID.Load(); id != 0 {
		return id, nil
	}
	user, err := h.market.Self(ctx)
	if err != nil {
		return 0, err
	}
	h.bidderID.Store(user.ID)
	return user.ID, nil
}

func (h *Handler) record(ctx context.Context, id string) {
	if _, err := h.projects.Insert(ctx, id); err != nil {
		h.log.Error("ledger insert failed", "projectId", id, "err", err)
	}
}

// consume retires the project and deletes the parked record.
func (h *Handler) consume(ctx context.Context, id string) {
	h.record(ctx, id)
	if err := h.reviews.Delete(ctx, id); err != nil {
		h.log.Error("review delete failed", "projectId", id, "err", err)
	}
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
