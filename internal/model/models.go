// Package model defines shared data structures for the bidder service.
package model

import (
	"strconv"
	"time"
)

// Project types as reported by the marketplace.
const (
	TypeFixed  = "fixed"
	TypeHourly = "hourly"
)

// StatusActive is the only project status eligible for bidding.
const StatusActive = "active"

// Project is an immutable snapshot of a marketplace listing at discovery
// time. Budgets are nullable — some listings publish no budget at all, and
// those must be routed to manual review instead of the bid policy.
type Project struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Status        string    `json:"status"`
	Type          string    `json:"type"`
	OwnerID       int64     `json:"ownerId"`
	SeoURL        string    `json:"seoUrl"`
	ExchangeRate  float64   `json:"currencyExchangeRate"` // project currency → USD
	BudgetMin     *float64  `json:"budgetMin"`
	BudgetMax     *float64  `json:"budgetMax"`
	BidCount      int       `json:"bidCount"`
	BidAvg        float64   `json:"bidAvg"`
	TimeSubmitted time.Time `json:"timeSubmitted"`
}

// Key returns the string form of the project id used by all three stores.
func (p Project) Key() string { return strconv.FormatInt(p.ID, 10) }

// Active reports whether the listing is still open for bids.
func (p Project) Active() bool { return p.Status == StatusActive }

// OlderThan reports whether the listing was submitted at least lookback
// before now.
func (p Project) OlderThan(lookback time.Duration, now time.Time) bool {
	return now.Sub(p.TimeSubmitted) >= lookback
}

// HasBudget reports whether both budget bounds are present.
func (p Project) HasBudget() bool { return p.BudgetMin != nil && p.BudgetMax != nil }

// PendingReview is a project parked for human approval, together with the
// bid amount pre-computed at discovery time. Amount is 0 when the budget
// was unknown.
type PendingReview struct {
	ID      string  `json:"id"`
	Project Project `json:"project"`
	Amount  float64 `json:"amount"`
}

// Bid is the payload submitted to the marketplace bid-placement endpoint.
type Bid struct {
	ProjectID           int64   `json:"project_id"`
	BidderID            int64   `json:"bidder_id"`
	Amount              float64 `json:"amount"`
	Period              int     `json:"period"`
	MilestonePercentage int     `json:"milestone_percentage"`
	Description         string  `json:"description"`
}

// User is the authenticated marketplace account.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}
