package bidder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lancebid/bidder-service/internal/freelancer"
	"lancebid/bidder-service/internal/model"
)

// SemiConfig carries every knob the semi loop reads.
type SemiConfig struct {
	Jobs          []int
	Limit         int
	Lookback      time.Duration
	BidAvgPercent float64
	MinBudget     float64
	PollDelay     time.Duration
}

// SemiLoop polls its own search stream and always defers: every
// interesting project goes to the pending-review store with a
// pre-computed amount and an approval link, never straight to a bid.
type SemiLoop struct {
	cfg      SemiConfig
	market   Marketplace
	notifier Notifier
	projects ProjectLedger
	reviews  ReviewStore
	sup      *Supervisor
	log      *slog.Logger
}

// NewSemiLoop wires the semi loop.
func NewSemiLoop(cfg SemiConfig, market Marketplace, notifier Notifier,
	projects ProjectLedger, reviews ReviewStore, sup *Supervisor, log *slog.Logger) *SemiLoop {
	return &SemiLoop{
		cfg:      cfg,
		market:   market,
		notifier: notifier,
		projects: projects,
		reviews:  reviews,
		sup:      sup,
		log:      log.With("loop", "semi"),
	}
}

// Run polls until ctx is cancelled.
func (l *SemiLoop) Run(ctx context.Context) {
	l.log.Info("semi loop started")
	defer l.log.Info("semi loop stopped")

	for ctx.Err() == nil {
		if len(l.cfg.Jobs) == 0 || l.sup.SemiPaused() {
			if !Sleep(ctx, l.cfg.PollDelay) {
				return
			}
			continue
		}

		l.iterate(ctx)

		if !Sleep(ctx, l.cfg.PollDelay) {
			return
		}
	}
}

func (l *SemiLoop) iterate(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("iteration panic", "panic", r)
			if err := l.notifier.SendError(ctx, fmt.Sprintf("unexpected error: %v", r)); err != nil {
				l.log.Warn("fallback notification failed", "err", err)
			}
		}
	}()

	projects, err := l.market.SearchActive(ctx, l.cfg.Jobs, l.cfg.Limit, 0)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		case errors.Is(err, freelancer.ErrRateLimited):
			l.log.Warn("search rate limited, backing off")
			Sleep(ctx, l.cfg.PollDelay)
		default:
			l.log.Error("search failed", "err", err)
			if nerr := l.notifier.SendError(ctx, err.Error()); nerr != nil {
				l.log.Warn("error notification failed", "err", nerr)
			}
		}
		return
	}

	for i := len(projects) - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			return
		}
		l.process(ctx, projects[i])
	}
}

func (l *SemiLoop) process(ctx context.Context, p model.Project) {
	id := p.Key()

	done, err := seen(ctx, l.projects, l.reviews, id)
	if err != nil {
		l.log.Error("dedup check failed", "projectId", id, "err", err)
		return
	}
	if done {
		return
	}

	if p.OlderThan(l.cfg.Lookback, time.Now().UTC()) || !p.Active() {
		if _, err := l.projects.Insert(ctx, id); err != nil {
			l.log.Error("ledger insert failed", "projectId", id, "err", err)
		}
		return
	}

	var amount float64
	if p.HasBudget() {
		amount = ComputeAmount(*p.BudgetMin, *p.BudgetMax, p.ExchangeRate, p.Type,
			l.cfg.MinBudget, l.cfg.BidAvgPercent)
	}

	// Alert first; park the snapshot only when the operator actually saw
	// it, so an undelivered project comes around again next poll.
	if err := l.notifier.SendNewJobAlert(ctx, p, amount); err != nil {
		l.log.Warn("new-job alert failed", "projectId", id, "err", err)
		return
	}
	if _, err := l.reviews.Put(ctx, model.PendingReview{ID: id, Project: p, Amount: amount}); err != nil {
		l.log.Error("review store put failed", "projectId", id, "err", err)
	}
}
