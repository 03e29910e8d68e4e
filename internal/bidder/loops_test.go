package bidder

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"lancebid/bidder-service/internal/freelancer"
	"lancebid/bidder-service/internal/model"
)

// ── Fakes ───────────────────────────────────────────────────────────────────

type fakeMarket struct {
	search    []model.Project
	searchErr error
	byIDs     []model.Project
	byIDsErr  error
	bids      []model.Bid
	bidErr    error
	self      model.User
}

func (m *fakeMarket) SearchActive(ctx context.Context, jobs []int, limit, offset int) ([]model.Project, error) {
	return m.search, m.searchErr
}

func (m *fakeMarket) ProjectsByIDs(ctx context.Context, ids []string) ([]model.Project, error) {
	return m.byIDs, m.byIDsErr
}

func (m *fakeMarket) PlaceBid(ctx context.Context, bid model.Bid) error {
	if m.bidErr != nil {
		return m.bidErr
	}
	m.bids = append(m.bids, bid)
	return nil
}

func (m *fakeMarket) Self(ctx context.Context) (model.User, error) {
	return m.self, nil
}

type fakeGen struct {
	calls    int
	language string
	proposal string
	err      error
}

func (g *fakeGen) Generate(ctx context.Context, prompt string, strict bool) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	if strict {
		return g.proposal, nil
	}
	return g.language, nil
}

// fakeNotifier records which notification kinds were emitted, in order.
type fakeNotifier struct {
	sent       []string
	alertErr   error
	awardedErr error
}

func (n *fakeNotifier) note(kind string) { n.sent = append(n.sent, kind) }

func (n *fakeNotifier) SendNewJobAlert(ctx context.Context, p model.Project, amount float64) error {
	if n.alertErr != nil {
		return n.alertErr
	}
	n.note("new_job_alert")
	return nil
}

func (n *fakeNotifier) SendProposalSent(ctx context.Context, title, proposal, seoURL string) error {
	n.note("proposal_sent")
	return nil
}

func (n *fakeNotifier) SendNDARequired(ctx context.Context, title, proposal, seoURL string) error {
	n.note("nda_required")
	return nil
}

func (n *fakeNotifier) SendGenerationFailed(ctx context.Context, title, projectID string, cooldown time.Duration) error {
	n.note("generation_failed")
	return nil
}

func (n *fakeNotifier) SendError(ctx context.Context, message string) error {
	n.note("error")
	return nil
}

func (n *fakeNotifier) SendBidError(ctx context.Context, p model.Project, amount float64, errMsg, proposal string) error {
	n.note("bid_error")
	return nil
}

func (n *fakeNotifier) SendProjectAwarded(ctx context.Context, p model.Project) error {
	if n.awardedErr != nil {
		return n.awardedErr
	}
	n.note("project_awarded")
	return nil
}

type fakeLedger struct {
	ids map[string]bool
}

func newFakeLedger() *fakeLedger { return &fakeLedger{ids: map[string]bool{}} }

func (l *fakeLedger) Exists(ctx context.Context, id string) (bool, error) {
	return l.ids[id], nil
}

func (l *fakeLedger) Insert(ctx context.Context, id string) (bool, error) {
	if l.ids[id] {
		return false, nil
	}
	l.ids[id] = true
	return true, nil
}

func (l *fakeLedger) All(ctx context.Context) ([]string, error) {
	out := make([]string, 0, len(l.ids))
	for id := range l.ids {
		out = append(out, id)
	}
	return out, nil
}

type fakeReviews struct {
	recs map[string]model.PendingReview
}

func newFakeReviews() *fakeReviews { return &fakeReviews{recs: map[string]model.PendingReview{}} }

func (r *fakeReviews) Put(ctx context.Context, rec model.PendingReview) (bool, error) {
	if _, ok := r.recs[rec.ID]; ok {
		return false, nil
	}
	r.recs[rec.ID] = rec
	return true, nil
}

func (r *fakeReviews) Exists(ctx context.Context, id string) (bool, error) {
	_, ok := r.recs[id]
	return ok, nil
}

type fakeFollowups struct {
	alerted map[string]bool
}

func newFakeFollowups() *fakeFollowups { return &fakeFollowups{alerted: map[string]bool{}} }

func (f *fakeFollowups) MarkAlerted(ctx context.Context, id string) (bool, error) {
	if f.alerted[id] {
		return false, nil
	}
	f.alerted[id] = true
	return true, nil
}

func (f *fakeFollowups) Alerted(ctx context.Context, id string) (bool, error) {
	return f.alerted[id], nil
}

type fakeEvents struct {
	kinds []string
}

func (e *fakeEvents) Publish(ctx context.Context, kind string, fields map[string]string) {
	e.kinds = append(e.kinds, kind)
}

// ── Helpers ─────────────────────────────────────────────────────────────────

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func budget(v float64) *float64 { return &v }

func activeProject(id int64) model.Project {
	return model.Project{
		ID:            id,
		Title:         "Build a data pipeline",
		Description:   "Move data from A to B.",
		Status:        model.StatusActive,
		Type:          model.TypeFixed,
		SeoURL:        "build-a-data-pipeline",
		ExchangeRate:  1,
		BudgetMin:     budget(50),
		BudgetMax:     budget(200),
		TimeSubmitted: time.Now().UTC(),
	}
}

type autoFixture struct {
	loop     *AutoLoop
	market   *fakeMarket
	gen      *fakeGen
	notifier *fakeNotifier
	ledger   *fakeLedger
	reviews  *fakeReviews
	events   *fakeEvents
}

func newAutoFixture(cfg AutoConfig) *autoFixture {
	f := &autoFixture{
		market:   &fakeMarket{self: model.User{ID: 99, Username: "bot"}},
		gen:      &fakeGen{language: "english", proposal: "Hello, I can help with this."},
		notifier: &fakeNotifier{},
		ledger:   newFakeLedger(),
		reviews:  newFakeReviews(),
		events:   &fakeEvents{},
	}
	f.loop = NewAutoLoop(cfg, f.market, f.gen, f.notifier, f.ledger, f.reviews,
		f.events, NewSupervisor(discard()), discard())
	return f
}

func autoConfig() AutoConfig {
	return AutoConfig{
		Jobs:          []int{3131},
		Limit:         30,
		Lookback:      time.Hour,
		BidAvgPercent: 0.5,
		OnlyFixed:     true,
		MinBudget:     30,
		BidPeriod:     3,
		ProposalYears: 4,
	}
}

// ── Auto loop ───────────────────────────────────────────────────────────────

func TestAutoProcessPlacesBid(t *testing.T) {
	ctx := context.Background()
	f := newAutoFixture(autoConfig())
	p := activeProject(1)

	f.loop.process(ctx, p)

	if len(f.market.bids) != 1 {
		t.Fatalf("bids placed = %d, want 1", len(f.market.bids))
	}
	bid := f.market.bids[0]
	if bid.ProjectID != 1 || bid.Amount != 100 || bid.Period != 3 || bid.MilestonePercentage != 100 {
		t.Errorf("bid = %+v, want amount 100, period 3, milestone 100", bid)
	}
	if bid.Description != "Hello, I can help with this." {
		t.Errorf("bid description = %q", bid.Description)
	}
	if !f.ledger.ids["1"] {
		t.Error("project not recorded after successful bid")
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0] != "proposal_sent" {
		t.Errorf("notifications = %v, want [proposal_sent]", f.notifier.sent)
	}
	if len(f.events.kinds) != 1 || f.events.kinds[0] != "bid.placed" {
		t.Errorf("events = %v, want [bid.placed]", f.events.kinds)
	}
}

func TestAutoProcessSkipsRecordedProject(t *testing.T) {
	ctx := context.Background()
	f := newAutoFixture(autoConfig())
	f.ledger.ids["1"] = true

	f.loop.process(ctx, activeProject(1))

	if f.gen.calls != 0 {
		t.Errorf("generator called %d times for a recorded project", f.gen.calls)
	}
	if len(f.market.bids) != 0 {
		t.Errorf("bids placed = %d, want 0", len(f.market.bids))
	}
}

func TestAutoProcessSkipsParkedProject(t *testing.T) {
	ctx := context.Background()
	f := newAutoFixture(autoConfig())
	f.reviews.recs["1"] = model.PendingReview{ID: "1"}

	f.loop.process(ctx, activeProject(1))

	if f.gen.calls != 0 || len(f.market.bids) != 0 {
		t.Error("parked project must not be processed again")
	}
}

func TestAutoProcessRetiresStaleAndInactive(t *testing.T) {
	ctx := context.Background()

	stale := activeProject(1)
	stale.TimeSubmitted = time.Now().UTC().Add(-2 * time.Hour)

	closed := activeProject(2)
	closed.Status = "closed"

	for _, p := range []model.Project{stale, closed} {
		f := newAutoFixture(autoConfig())
		f.loop.process(ctx, p)

		if !f.ledger.ids[p.Key()] {
			t.Errorf("project %s not retired", p.Key())
		}
		if len(f.market.bids) != 0 || len(f.notifier.sent) != 0 {
			t.Errorf("project %s produced a bid or alert", p.Key())
		}
	}
}

func TestAutoProcessDefersMissingBudget(t *testing.T) {
	ctx := context.Background()
	f := newAutoFixture(autoConfig())
	p := activeProject(1)
	p.BudgetMax = nil

	f.loop.process(ctx, p)

	rec, ok := f.reviews.recs["1"]
	if !ok {
		t.Fatal("project without budget not parked for review")
	}
	if rec.Amount != 0 {
		t.Errorf("parked amount = %v, want 0 for unknown budget", rec.Amount)
	}
	if !f.ledger.ids["1"] {
		t.Error("deferred project not retired from the loop")
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0] != "new_job_alert" {
		t.Errorf("notifications = %v, want [new_job_alert]", f.notifier.sent)
	}
	if len(f.market.bids) != 0 {
		t.Error("deferred project must not be bid on")
	}
}

func TestAutoProcessDefersNonFixedWhenOnlyFixed(t *testing.T) {
	ctx := context.Background()
	f := newAutoFixture(autoConfig())
	p := activeProject(1)
	p.Type = model.TypeHourly

	f.loop.process(ctx, p)

	rec, ok := f.reviews.recs["1"]
	if !ok {
		t.Fatal("hourly project not parked while only-fixed is set")
	}
	if rec.Amount != 100 {
		t.Errorf("parked amount = %v, want 100", rec.Amount)
	}
	if len(f.market.bids) != 0 {
		t.Error("hourly project must not be bid on while only-fixed is set")
	}
}

func TestAutoProcessDefersLowFixedBudget(t *testing.T) {
	ctx := context.Background()
	f := newAutoFixture(autoConfig())
	p := activeProject(1)
	p.BudgetMin = budget(5)
	p.BudgetMax = budget(20) // converts below MinBudget

	f.loop.process(ctx, p)

	rec, ok := f.reviews.recs["1"]
	if !ok {
		t.Fatal("low-budget fixed project not parked for review")
	}
	if rec.Amount != 30 {
		t.Errorf("parked amount = %v, want the 30 floor", rec.Amount)
	}
}

func TestAutoProcessAlreadyBidIsSilent(t *testing.T) {
	ctx := context.Background()
	f := newAutoFixture(autoConfig())
	f.market.bidErr = freelancer.ErrAlreadyBid

	f.loop.process(ctx, activeProject(1))

	if !f.ledger.ids["1"] {
		t.Error("already-bid project not retired")
	}
	if len(f.notifier.sent) != 0 {
		t.Errorf("notifications = %v, want none", f.notifier.sent)
	}
}

func TestAutoProcessQuotaExhaustedLeavesProjectEligible(t *testing.T) {
	ctx := context.Background()
	f := newAutoFixture(autoConfig())
	f.market.bidErr = freelancer.ErrQuotaExhausted

	f.loop.process(ctx, activeProject(1))

	if f.ledger.ids["1"] {
		t.Error("project retired on quota exhaustion; it should be retried later")
	}
}

func TestAutoProcessNDARecordsAndNotifies(t *testing.T) {
	ctx := context.Background()
	f := newAutoFixture(autoConfig())
	f.market.bidErr = freelancer.ErrNDARequired

	f.loop.process(ctx, activeProject(1))

	if !f.ledger.ids["1"] {
		t.Error("NDA project not retired")
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0] != "nda_required" {
		t.Errorf("notifications = %v, want [nda_required]", f.notifier.sent)
	}
}

func TestAutoBidSkipsProjectFinishedMeanwhile(t *testing.T) {
	ctx := context.Background()
	f := newAutoFixture(autoConfig())
	p := activeProject(1)

	// Simulates a callback consuming the project between generation and
	// placement.
	f.ledger.ids["1"] = true
	f.loop.bid(ctx, p, 100, "Hello.")

	if len(f.market.bids) != 0 {
		t.Errorf("bids placed = %d, want 0", len(f.market.bids))
	}
}

func TestAutoProcessGenerationFailure(t *testing.T) {
	ctx := context.Background()
	f := newAutoFixture(autoConfig())
	f.gen.err = context.DeadlineExceeded

	f.loop.process(ctx, activeProject(1))

	if f.ledger.ids["1"] {
		t.Error("project retired on generation failure; it should be retried later")
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0] != "generation_failed" {
		t.Errorf("notifications = %v, want [generation_failed]", f.notifier.sent)
	}
}

// ── Semi loop ───────────────────────────────────────────────────────────────

type semiFixture struct {
	loop     *SemiLoop
	market   *fakeMarket
	notifier *fakeNotifier
	ledger   *fakeLedger
	reviews  *fakeReviews
}

func newSemiFixture() *semiFixture {
	f := &semiFixture{
		market:   &fakeMarket{},
		notifier: &fakeNotifier{},
		ledger:   newFakeLedger(),
		reviews:  newFakeReviews(),
	}
	f.loop = NewSemiLoop(SemiConfig{
		Jobs:          []int{3131},
		Limit:         70,
		Lookback:      time.Hour,
		BidAvgPercent: 0.5,
		MinBudget:     30,
	}, f.market, f.notifier, f.ledger, f.reviews, NewSupervisor(discard()), discard())
	return f
}

func TestSemiProcessParksWithComputedAmount(t *testing.T) {
	ctx := context.Background()
	f := newSemiFixture()

	f.loop.process(ctx, activeProject(1))

	rec, ok := f.reviews.recs["1"]
	if !ok {
		t.Fatal("project not parked for review")
	}
	if rec.Amount != 100 {
		t.Errorf("parked amount = %v, want 100", rec.Amount)
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0] != "new_job_alert" {
		t.Errorf("notifications = %v, want [new_job_alert]", f.notifier.sent)
	}
}

func TestSemiProcessSkipsSeen(t *testing.T) {
	ctx := context.Background()
	f := newSemiFixture()
	p := activeProject(1)

	f.loop.process(ctx, p)
	f.loop.process(ctx, p)

	if len(f.notifier.sent) != 1 {
		t.Errorf("alerts sent = %d, want exactly 1", len(f.notifier.sent))
	}
}

func TestSemiProcessUndeliveredAlertStaysEligible(t *testing.T) {
	ctx := context.Background()
	f := newSemiFixture()
	f.notifier.alertErr = context.DeadlineExceeded

	f.loop.process(ctx, activeProject(1))

	if len(f.reviews.recs) != 0 {
		t.Error("project parked although the operator never saw the alert")
	}

	// Delivery recovers; the same project comes around on the next poll.
	f.notifier.alertErr = nil
	f.loop.process(ctx, activeProject(1))

	if _, ok := f.reviews.recs["1"]; !ok {
		t.Error("project not parked after alert delivery recovered")
	}
}

// ── Followup sweep ──────────────────────────────────────────────────────────

func TestFollowupSweepAlertsClosedProjectOnce(t *testing.T) {
	ctx := context.Background()

	market := &fakeMarket{}
	notifier := &fakeNotifier{}
	ledger := newFakeLedger()
	followups := newFakeFollowups()
	events := &fakeEvents{}

	open := activeProject(1)
	closed := activeProject(2)
	closed.Status = "closed"
	ledger.ids["1"], ledger.ids["2"] = true, true
	market.byIDs = []model.Project{open, closed}

	sweep := NewFollowupSweep(market, ledger, followups, notifier, events, discard())

	sweep.Run(ctx)
	if len(notifier.sent) != 1 || notifier.sent[0] != "project_awarded" {
		t.Fatalf("notifications = %v, want [project_awarded]", notifier.sent)
	}
	if !followups.alerted["2"] {
		t.Error("closed project not marked alerted")
	}
	if len(events.kinds) != 1 || events.kinds[0] != "project.awarded" {
		t.Errorf("events = %v, want [project.awarded]", events.kinds)
	}

	sweep.Run(ctx)
	if len(notifier.sent) != 1 {
		t.Errorf("alerts after second sweep = %d, want still 1", len(notifier.sent))
	}
}

func TestFollowupSweepRetriesUndeliveredAlert(t *testing.T) {
	ctx := context.Background()

	market := &fakeMarket{}
	notifier := &fakeNotifier{awardedErr: context.DeadlineExceeded}
	ledger := newFakeLedger()
	followups := newFakeFollowups()

	closed := activeProject(1)
	closed.Status = "frozen"
	ledger.ids["1"] = true
	market.byIDs = []model.Project{closed}

	sweep := NewFollowupSweep(market, ledger, followups, notifier, nil, discard())

	sweep.Run(ctx)
	if followups.alerted["1"] {
		t.Error("project marked alerted although delivery failed")
	}

	notifier.awardedErr = nil
	sweep.Run(ctx)
	if !followups.alerted["1"] {
		t.Error("project not marked after delivery recovered")
	}
}
