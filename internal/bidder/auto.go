package bidder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lancebid/bidder-service/internal/ai"
	"lancebid/bidder-service/internal/freelancer"
	"lancebid/bidder-service/internal/model"
)

// AutoConfig carries every knob the auto loop reads.
type AutoConfig struct {
	Jobs          []int
	Limit         int
	Lookback      time.Duration
	BidAvgPercent float64
	OnlyFixed     bool
	MinBudget     float64
	BidPeriod     int
	ProposalYears int

	PollDelay          time.Duration // between search polls, also base for the too-fast cooldown
	BidDelay           time.Duration // courtesy pause before each bid placement
	GenerationCooldown time.Duration // after an AI exhaustion
	ExhaustionCooldown time.Duration // after the bid quota runs out
}

// AutoLoop polls the marketplace and bids on eligible projects without
// human intervention. Projects that fail a policy check are routed to the
// pending-review store instead.
type AutoLoop struct {
	cfg      AutoConfig
	market   Marketplace
	gen      Generator
	notifier Notifier
	projects ProjectLedger
	reviews  ReviewStore
	events   EventPublisher
	sup      *Supervisor
	log      *slog.Logger

	bidderID int64
}

// NewAutoLoop wires the auto loop.
func NewAutoLoop(cfg AutoConfig, market Marketplace, gen Generator, notifier Notifier,
	projects ProjectLedger, reviews ReviewStore, events EventPublisher,
	sup *Supervisor, log *slog.Logger) *AutoLoop {
	return &AutoLoop{
		cfg:      cfg,
		market:   market,
		gen:      gen,
		notifier: notifier,
		projects: projects,
		reviews:  reviews,
		events:   events,
		sup:      sup,
		log:      log.With("loop", "auto"),
	}
}

// Run polls until ctx is cancelled. No error ever escapes an iteration.
func (l *AutoLoop) Run(ctx context.Context) {
	l.log.Info("auto loop started")
	defer l.log.Info("auto loop stopped")

	for ctx.Err() == nil {
		if len(l.cfg.Jobs) == 0 || l.sup.AutoPaused() {
			if !Sleep(ctx, l.cfg.PollDelay) {
				return
			}
			continue
		}

		if l.bidderID == 0 {
			user, err := l.market.Self(ctx)
			if err != nil {
				l.log.Warn("self lookup failed", "err", err)
				if !Sleep(ctx, l.cfg.PollDelay) {
					return
				}
				continue
			}
			l.bidderID = user.ID
			l.log.Info("marketplace session established", "username", user.Username, "userId", user.ID)
		}

		l.iterate(ctx)
	}
}

// iterate runs one poll cycle. The recover keeps a truly unexpected
// failure from killing the loop; the fallback notification carries no
// project context on purpose.
func (l *AutoLoop) iterate(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("iteration panic", "panic", r)
			if err := l.notifier.SendError(ctx, fmt.Sprintf("unexpected error: %v", r)); err != nil {
				l.log.Warn("fallback notification failed", "err", err)
			}
		}
	}()

	if !Sleep(ctx, l.cfg.PollDelay) {
		return
	}

	projects, err := l.market.SearchActive(ctx, l.cfg.Jobs, l.cfg.Limit, 0)
	if err != nil {
		l.searchFailed(ctx, err)
		return
	}

	// Oldest-of-batch first, approximating fairness.
	for i := len(projects) - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			return
		}
		l.process(ctx, projects[i])
	}
}

func (l *AutoLoop) searchFailed(ctx context.Context, err error) {
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
}

// process drives a single project through the decision state machine.
func (l *AutoLoop) process(ctx context.Context, p model.Project) {
	id := p.Key()

	done, err := seen(ctx, l.projects, l.reviews, id)
	if err != nil {
		l.log.Error("dedup check failed", "projectId", id, "err", err)
		return
	}
	if done {
		return
	}

	if p.OlderThan(l.cfg.Lookback, time.Now().UTC()) {
		l.log.Debug("project older than lookback, skipping", "projectId", id)
		l.record(ctx, id)
		return
	}
	if !p.Active() {
		l.log.Debug("project not active, skipping", "projectId", id, "status", p.Status)
		l.record(ctx, id)
		return
	}
	if !p.HasBudget() {
		l.log.Info("project has missing budget info, deferring", "projectId", id)
		l.deferToReview(ctx, p, 0)
		return
	}

	if p.Type == model.TypeFixed {
		if *p.BudgetMax*p.ExchangeRate < l.cfg.MinBudget {
			l.log.Info("fixed budget below minimum, deferring", "projectId", id)
			l.deferToReview(ctx, p, l.amount(p))
			return
		}
	} else if l.cfg.OnlyFixed {
		l.log.Info("non-fixed project while only-fixed is set, deferring", "projectId", id)
		l.deferToReview(ctx, p, l.amount(p))
		return
	}

	lang, err := l.gen.Generate(ctx, ai.LanguagePrompt(p.Description), false)
	if err != nil {
		l.generationFailed(ctx, p, "language detection", err)
		return
	}

	proposal, err := l.gen.Generate(ctx,
		ai.ProposalPrompt(p.Title, p.Description, lang, l.cfg.ProposalYears), true)
	if err != nil {
		l.generationFailed(ctx, p, "proposal generation", err)
		return
	}

	l.bid(ctx, p, l.amount(p), proposal)
}

// bid attempts the placement and routes the outcome.
func (l *AutoLoop) bid(ctx context.Context, p model.Project, amount float64, proposal string) {
	if !Sleep(ctx, l.cfg.BidDelay) {
		return
	}
	// The proposal took a while to generate — someone (a callback, the
	// other loop) may have finished this project in the meantime.
	if done, err := l.projects.Exists(ctx, p.Key()); err != nil || done {
		return
	}

	err := l.market.PlaceBid(ctx, model.Bid{
		ProjectID:           p.ID,
		BidderID:            l.bidderID,
		Amount:              amount,
		Period:              l.cfg.BidPeriod,
		MilestonePercentage: 100,
		Description:         proposal,
	})

	switch {
	case err == nil:
		// Record before notifying: a crash in between drops the message,
		// never duplicates the bid.
		l.record(ctx, p.Key())
		l.publish(ctx, "bid.placed", p, amount)
		l.log.Info("bid placed", "projectId", p.Key(), "amount", amount)
		if nerr := l.notifier.SendProposalSent(ctx, p.Title, proposal, p.SeoURL); nerr != nil {
			l.log.Warn("proposal-sent notification failed", "err", nerr)
		}

	case errors.Is(err, freelancer.ErrQuotaExhausted):
		// Platform-wide condition; the project stays un-recorded and is
		// retried on a later poll.
		l.log.Warn("bid quota exhausted", "cooldown", l.cfg.ExhaustionCooldown)
		Sleep(ctx, l.cfg.ExhaustionCooldown)

	case errors.Is(err, freelancer.ErrAlreadyBid):
		l.record(ctx, p.Key())

	case errors.Is(err, freelancer.ErrNDARequired):
		l.record(ctx, p.Key())
		if nerr := l.notifier.SendNDARequired(ctx, p.Title, proposal, p.SeoURL); nerr != nil {
			l.log.Warn("nda notification failed", "err", nerr)
		}

	case errors.Is(err, freelancer.ErrTooFast):
		l.log.Warn("marketplace throttling bids, extended cooldown")
		if nerr := l.notifier.SendBidError(ctx, p, amount, err.Error(), proposal); nerr != nil {
			l.log.Warn("throttle notification failed", "err", nerr)
		}
		Sleep(ctx, 3*l.cfg.PollDelay)

	default:
		l.log.Error("bid failed", "projectId", p.Key(), "err", err)
		l.record(ctx, p.Key())
		if nerr := l.notifier.SendBidError(ctx, p, amount, err.Error(), proposal); nerr != nil {
			l.log.Warn("bid-error notification failed", "err", nerr)
		}
	}
}

// deferToReview parks the project for human approval and retires it from
// this loop.
func (l *AutoLoop) deferToReview(ctx context.Context, p model.Project, amount float64) {
	if _, err := l.reviews.Put(ctx, model.PendingReview{ID: p.Key(), Project: p, Amount: amount}); err != nil {
		l.log.Error("review store put failed", "projectId", p.Key(), "err", err)
		return
	}
	l.record(ctx, p.Key())
	if err := l.notifier.SendNewJobAlert(ctx, p, amount); err != nil {
		l.log.Warn("new-job alert failed", "projectId", p.Key(), "err", err)
	}
}

// generationFailed notifies with a manual place-bid link and cools the
// loop down. The project is deliberately not recorded — it stays eligible
// for another attempt on a later poll.
func (l *AutoLoop) generationFailed(ctx context.Context, p model.Project, stage string, err error) {
	l.log.Warn("ai generation failed", "stage", stage, "projectId", p.Key(), "err", err)
	if nerr := l.notifier.SendGenerationFailed(ctx, p.Title, p.Key(), l.cfg.GenerationCooldown); nerr != nil {
		l.log.Warn("generation-failed notification failed", "err", nerr)
	}
	Sleep(ctx, l.cfg.GenerationCooldown)
}

func (l *AutoLoop) amount(p model.Project) float64 {
	return ComputeAmount(*p.BudgetMin, *p.BudgetMax, p.ExchangeRate, p.Type,
		l.cfg.MinBudget, l.cfg.BidAvgPercent)
}

func (l *AutoLoop) record(ctx context.Context, id string) {
	if _, err := l.projects.Insert(ctx, id); err != nil {
		l.log.Error("ledger insert failed", "projectId", id, "err", err)
	}
}

func (l *AutoLoop) publish(ctx context.Context, kind string, p model.Project, amount float64) {
	if l.events == nil {
		return
	}
	l.events.Publish(ctx, kind, map[string]string{
		"projectId": p.Key(),
		"title":     p.Title,
		"amount":    fmt.Sprintf("%.2f", amount),
	})
}
