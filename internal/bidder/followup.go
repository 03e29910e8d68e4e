package bidder

import (
	"context"
	"errors"
	"log/slog"

	"lancebid/bidder-service/internal/freelancer"
)

// followupChunk bounds how many ids one refresh request carries.
const followupChunk = 50

// FollowupSweep re-fetches every project this account has bid on and
// sends a one-time alert when a listing is no longer active (awarded or
// closed). Idempotency comes from the followup store, so a sweep crash
// mid-way never re-announces on the next run.
type FollowupSweep struct {
	market    Marketplace
	projects  ProjectLedger
	followups FollowupStore
	notifier  Notifier
	events    EventPublisher
	log       *slog.Logger
}

// NewFollowupSweep wires the sweep.
func NewFollowupSweep(market Marketplace, projects ProjectLedger, followups FollowupStore,
	notifier Notifier, events EventPublisher, log *slog.Logger) *FollowupSweep {
	return &FollowupSweep{
		market:    market,
		projects:  projects,
		followups: followups,
		notifier:  notifier,
		events:    events,
		log:       log.With("loop", "followup"),
	}
}

// Run performs one sweep. Scheduled periodically by the cron scheduler.
func (s *FollowupSweep) Run(ctx context.Context) {
	ids, err := s.projects.All(ctx)
	if err != nil {
		s.log.Error("ledger listing failed", "err", err)
		return
	}
	if len(ids) == 0 {
		return
	}

	var alerted int
	for start := 0; start < len(ids); start += followupChunk {
		end := min(start+followupChunk, len(ids))

		projects, err := s.market.ProjectsByIDs(ctx, ids[start:end])
		if err != nil {
			if errors.Is(err, freelancer.ErrNotFound) {
				continue
			}
			s.log.Warn("project refresh failed", "err", err)
			continue
		}

		for _, p := range projects {
			if ctx.Err() != nil {
				return
			}
			if p.Active() {
				continue
			}
			done, err := s.followups.Alerted(ctx, p.Key())
			if err != nil {
				s.log.Error("followup lookup failed", "projectId", p.Key(), "err", err)
				continue
			}
			if done {
				continue
			}

			if err := s.notifier.SendProjectAwarded(ctx, p); err != nil {
				// Not marked — retried next sweep.
				s.log.Warn("awarded alert failed", "projectId", p.Key(), "err", err)
				continue
			}
			if _, err := s.followups.MarkAlerted(ctx, p.Key()); err != nil {
				s.log.Error("followup mark failed", "projectId", p.Key(), "err", err)
			}
			if s.events != nil {
				s.events.Publish(ctx, "project.awarded", map[string]string{
					"projectId": p.Key(),
					"status":    p.Status,
				})
			}
			alerted++
		}
	}

	if alerted > 0 {
		s.log.Info("followup sweep complete", "checked", len(ids), "alerted", alerted)
	}
}
