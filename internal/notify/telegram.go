// Package notify sends operator notifications and receives operator
// commands over the Telegram Bot API.
package notify

import (
	"context"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lancebid/bidder-service/internal/model"
)

const (
	telegramAPI       = "https://api.telegram.org"
	projectURLFormat  = "https://www.freelancer.com/projects/%s/details"
	maxDescriptionLen = 3500
	sendTimeout       = 15 * time.Second
)

// Telegram sends HTML-formatted messages to the operator chat. hostURL is
// the public base for the approval callback links embedded in alerts.
type Telegram struct {
	apiBase  string
	botToken string
	chatID   string
	hostURL  string
	client   *http.Client
	log      *slog.Logger
}

// NewTelegram constructs the notifier with a shared HTTP client.
func NewTelegram(botToken, chatID, hostURL string, log *slog.Logger) *Telegram {
	return &Telegram{
		apiBase:  telegramAPI,
		botToken: botToken,
		chatID:   chatID,
		hostURL:  hostURL,
		client:   &http.Client{Timeout: sendTimeout},
		log:      log,
	}
}

func projectURL(seoURL string) string {
	if seoURL == "" {
		return "https://www.freelancer.com"
	}
	return fmt.Sprintf(projectURLFormat, html.EscapeString(seoURL))
}

func (t *Telegram) placeBidURL(id string) string {
	return t.hostURL + "/place_bid?project_id=" + url.QueryEscape(id)
}

func (t *Telegram) genProposalURL(id string) string {
	return t.hostURL + "/gen_proposal?project_id=" + url.QueryEscape(id)
}

// SendNewJobAlert announces a deferred project with place-bid and
// generate-proposal links. Budgets, amount and bid average are converted
// to the reference currency when an exchange rate is known; without one
// the raw values are shown and the place-bid link is withheld (amount 0
// would be meaningless to act on).
func (t *Telegram) SendNewJobAlert(ctx context.Context, p model.Project, amount float64) error {
	title := html.EscapeString(p.Title)
	desc := p.Description
	if len(desc) > maxDescriptionLen {
		desc = "[Description removed due to length]"
	} else {
		desc = html.EscapeString(desc)
	}

	var b strings.Builder
	if p.HasBudget() && p.ExchangeRate > 0 {
		fmt.Fprintf(&b, "🚨 <b>New Project Alert [CONVERTED]</b>\n\n")
		fmt.Fprintf(&b, "Project: <b>%s</b>\n", title)
		fmt.Fprintf(&b, "<a href='%s'>View Project on Freelancer</a>\n", projectURL(p.SeoURL))
		fmt.Fprintf(&b, "Time posted: <b>%s</b>\n", p.TimeSubmitted.Format(time.RFC3339))
		fmt.Fprintf(&b, "Budget min: $%.2f\n", *p.BudgetMin*p.ExchangeRate)
		fmt.Fprintf(&b, "Budget max: $%.2f\n", *p.BudgetMax*p.ExchangeRate)
		fmt.Fprintf(&b, "Proposed Amount: $%.2f %s\n", amount*p.ExchangeRate, html.EscapeString(p.Type))
		fmt.Fprintf(&b, "Bid Average: %.2f\n", p.BidAvg*p.ExchangeRate)
		fmt.Fprintf(&b, "Bid Count: %d\n\n", p.BidCount)
		fmt.Fprintf(&b, "Description: %s\n\n", desc)
		fmt.Fprintf(&b, "<a href='%s'>✅ Place bid</a>\n\n", t.placeBidURL(p.Key()))
		fmt.Fprintf(&b, "<a href='%s'>✅ Generate Proposal</a>", t.genProposalURL(p.Key()))
	} else {
		fmt.Fprintf(&b, "🚨 <b>New Project Alert [RAW]</b>\n\n")
		fmt.Fprintf(&b, "Project: <b>%s</b>\n", title)
		fmt.Fprintf(&b, "<a href='%s'>View Project on Freelancer</a>\n", projectURL(p.SeoURL))
		fmt.Fprintf(&b, "Time posted: <b>%s</b>\n", p.TimeSubmitted.Format(time.RFC3339))
		fmt.Fprintf(&b, "Budget min: %s\n", fmtBudget(p.BudgetMin))
		fmt.Fprintf(&b, "Budget max: %s\n", fmtBudget(p.BudgetMax))
		fmt.Fprintf(&b, "Proposed Amount: %.2f %s\n", amount, html.EscapeString(p.Type))
		fmt.Fprintf(&b, "Bid Average: %.2f\n", p.BidAvg)
		fmt.Fprintf(&b, "Bid Count: %d\n\n", p.BidCount)
		fmt.Fprintf(&b, "Description: %s\n\n", desc)
		fmt.Fprintf(&b, "<a href='%s'>✅ Generate Proposal</a>", t.genProposalURL(p.Key()))
	}

	return t.send(ctx, t.chatID, b.String())
}

// SendProposalSent confirms a placed bid with the proposal text.
func (t *Telegram) SendProposalSent(ctx context.Context, title, proposal, seoURL string) error {
	msg := fmt.Sprintf(
		"✅ <b>Proposal sent</b>\n\n"+
			"Project: <b>%s</b>\n"+
			"<a href='%s'>View Project on Freelancer</a>\n\n"+
			"Proposal: %s",
		html.EscapeString(title), projectURL(seoURL), html.EscapeString(proposal))
	return t.send(ctx, t.chatID, msg)
}

// SendNDARequired flags a project gated behind an NDA.
func (t *Telegram) SendNDARequired(ctx context.Context, title, proposal, seoURL string) error {
	msg := fmt.Sprintf(
		"🚨 <b>Project Requires NDA</b>\n\n"+
			"Project: <b>%s</b>\n"+
			"<a href='%s'>View Project on Freelancer</a>\n"+
			"An NDA must be signed to access this project.\n\n"+
			"Proposal: %s",
		html.EscapeString(title), projectURL(seoURL), html.EscapeString(proposal))
	return t.send(ctx, t.chatID, msg)
}

// SendGenerationFailed reports an AI failure for a project and links the
// manual place-bid retry. A zero cooldown means the caller is not backing
// off (callback path) and the action line is omitted.
func (t *Telegram) SendGenerationFailed(ctx context.Context, title, projectID string, cooldown time.Duration) error {
	action := ""
	if cooldown > 0 {
		action = fmt.Sprintf("Action taken: <b>sleeping for %s</b>\n", cooldown)
	}
	msg := fmt.Sprintf(
		"🚨 <b>Proposal generation Failed</b>\n\n"+
			"Project: <b>%s</b>\n"+
			"%s"+
			"<a href='%s'>✅ Place bid</a>",
		html.EscapeString(title), action, t.placeBidURL(projectID))
	return t.send(ctx, t.chatID, msg)
}

// SendError reports a failure with no project context.
func (t *Telegram) SendError(ctx context.Context, message string) error {
	msg := fmt.Sprintf(
		"🚨 <b>An error occurred</b>\n\n"+
			"Error message: <b>%s</b>",
		html.EscapeString(message))
	return t.send(ctx, t.chatID, msg)
}

// SendBidError reports a failed bid attempt with full project context and
// a manual place-bid link.
func (t *Telegram) SendBidError(ctx context.Context, p model.Project, amount float64, errMsg, proposal string) error {
	msg := fmt.Sprintf(
		"🚨 <b>Failed to send proposal: %s</b>\n\n"+
			"Proposal: <b>%s $%.2f</b>\n"+
			"<a href='%s'>View Project on Freelancer</a>\n"+
			"Proposal: %s\n"+
			"<a href='%s'>✅ Place bid</a>",
		html.EscapeString(errMsg), html.EscapeString(p.Title), amount*p.ExchangeRate,
		projectURL(p.SeoURL), html.EscapeString(proposal), t.placeBidURL(p.Key()))
	return t.send(ctx, t.chatID, msg)
}

// SendProjectAwarded is the one-time followup alert for a project that is
// no longer active.
func (t *Telegram) SendProjectAwarded(ctx context.Context, p model.Project) error {
	msg := fmt.Sprintf(
		"🚨 <b>Project Follow Up Alert</b>\n\n"+
			"Project <b>%s</b> has been awarded to a freelancer\n"+
			"Status: <b>%s</b>\n\n"+
			"<a href='%s'>View Project on Freelancer</a>\n",
		html.EscapeString(p.Title), html.EscapeString(p.Status), projectURL(p.SeoURL))
	return t.send(ctx, t.chatID, msg)
}

// SendProposalGenerated delivers a proposal drafted on demand via the
// gen-proposal callback.
func (t *Telegram) SendProposalGenerated(ctx context.Context, proposal string) error {
	msg := fmt.Sprintf("✅ <b>Proposal Generated</b>\n\n%s\n", html.EscapeString(proposal))
	return t.send(ctx, t.chatID, msg)
}

// send posts one sendMessage call. A non-200 response is an error; the
// caller decides whether delivery matters.
func (t *Telegram) send(ctx context.Context, chatID, text string) error {
	form := url.Values{}
	form.Set("chat_id", chatID)
	form.Set("text", text)
	form.Set("parse_mode", "HTML")
	form.Set("disable_web_page_preview", "true")

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram sendMessage returned %d: %s", resp.StatusCode, body)
	}
	return nil
}

func fmtBudget(v *float64) string {
	if v == nil {
		return "unknown"
	}
	return fmt.Sprintf("%.2f", *v)
}
