// Package bidder contains the bid decision engine: the amount policy,
// the two intake loops, the followup sweep and the run-loop supervisor.
// It is transport-agnostic — every collaborator arrives as an interface.
package bidder

import (
	"context"
	"time"

	"lancebid/bidder-service/internal/model"
)

// Marketplace is the subset of the freelancer client the engine uses.
type Marketplace interface {
	SearchActive(ctx context.Context, jobs []int, limit, offset int) ([]model.Project, error)
	ProjectsByIDs(ctx context.Context, ids []string) ([]model.Project, error)
	PlaceBid(ctx context.Context, bid model.Bid) error
	Self(ctx context.Context) (model.User, error)
}

// Generator drafts text through the provider failover chain.
type Generator interface {
	Generate(ctx context.Context, prompt string, strict bool) (string, error)
}

// Notifier is the outbound operator channel.
type Notifier interface {
	SendNewJobAlert(ctx context.Context, p model.Project, amount float64) error
	SendProposalSent(ctx context.Context, title, proposal, seoURL string) error
	SendNDARequired(ctx context.Context, title, proposal, seoURL string) error
	SendGenerationFailed(ctx context.Context, title, projectID string, cooldown time.Duration) error
	SendError(ctx context.Context, message string) error
	SendBidError(ctx context.Context, p model.Project, amount float64, errMsg, proposal string) error
	SendProjectAwarded(ctx context.Context, p model.Project) error
}

// ProjectLedger is the dedup store: ids with a terminal outcome.
type ProjectLedger interface {
	Exists(ctx context.Context, id string) (bool, error)
	Insert(ctx context.Context, id string) (bool, error)
	All(ctx context.Context) ([]string, error)
}

// ReviewStore parks projects for human approval.
type ReviewStore interface {
	Put(ctx context.Context, rec model.PendingReview) (bool, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// FollowupStore remembers which awarded projects were already announced.
type FollowupStore interface {
	MarkAlerted(ctx context.Context, id string) (bool, error)
	Alerted(ctx context.Context, id string) (bool, error)
}

// EventPublisher mirrors terminal outcomes onto the event bus. Purely
// observational; failures are logged by the implementation, never
// propagated.
type EventPublisher interface {
	Publish(ctx context.Context, kind string, fields map[string]string)
}

// seen reports whether a project already reached a terminal outcome or
// is parked for review — the single dedup predicate both loops share.
func seen(ctx context.Context, projects ProjectLedger, reviews ReviewStore, id string) (bool, error) {
	if done, err := projects.Exists(ctx, id); err != nil || done {
		return done, err
	}
	return reviews.Exists(ctx, id)
}
