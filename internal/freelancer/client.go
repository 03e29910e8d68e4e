// Package freelancer implements the marketplace REST client used by both
// intake loops and the approval callbacks.
package freelancer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"lancebid/bidder-service/internal/model"
)

const (
	searchPath   = "/api/projects/0.1/projects/active/"
	projectsPath = "/api/projects/0.1/projects/"
	bidsPath     = "/api/projects/0.1/bids/"
	selfPath     = "/api/users/0.1/self/"

	httpTimeout = 15 * time.Second
)

// Client talks to the Freelancer REST API with a shared HTTP client.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// New constructs a Client. baseURL carries no trailing slash.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: httpTimeout},
	}
}

// envelope mirrors the top-level API response.
type envelope struct {
	Status    string          `json:"status"`
	Result    json.RawMessage `json:"result"`
	Message   string          `json:"message"`
	ErrorCode string          `json:"error_code"`
}

type searchResult struct {
	Projects []apiProject `json:"projects"`
}

type apiProject struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Type        string `json:"type"`
	OwnerID     int64  `json:"owner_id"`
	SeoURL      string `json:"seo_url"`
	Currency    struct {
		ExchangeRate float64 `json:"exchange_rate"`
	} `json:"currency"`
	Budget struct {
		Minimum *float64 `json:"minimum"`
		Maximum *float64 `json:"maximum"`
	} `json:"budget"`
	BidStats struct {
		BidCount int     `json:"bid_count"`
		BidAvg   float64 `json:"bid_avg"`
	} `json:"bid_stats"`
	TimeSubmitted int64 `json:"time_submitted"`
}

func (p apiProject) toModel() model.Project {
	return model.Project{
		ID:            p.ID,
		Title:         p.Title,
		Description:   p.Description,
		Status:        p.Status,
		Type:          p.Type,
		OwnerID:       p.OwnerID,
		SeoURL:        p.SeoURL,
		ExchangeRate:  p.Currency.ExchangeRate,
		BudgetMin:     p.Budget.Minimum,
		BudgetMax:     p.Budget.Maximum,
		BidCount:      p.BidStats.BidCount,
		BidAvg:        p.BidStats.BidAvg,
		TimeSubmitted: time.Unix(p.TimeSubmitted, 0).UTC(),
	}
}

// SearchActive queries the active-project search stream for the given job
// category ids, newest first. Full descriptions and job details are always
// requested so the snapshot is complete at discovery time.
func (c *Client) SearchActive(ctx context.Context, jobs []int, limit, offset int) ([]model.Project, error) {
	params := url.Values{}
	for _, j := range jobs {
		params.Add("jobs[]", strconv.Itoa(j))
	}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("full_description", "true")
	params.Set("job_details", "true")

	var result searchResult
	if err := c.get(ctx, searchPath, params, &result); err != nil {
		return nil, err
	}

	projects := make([]model.Project, 0, len(result.Projects))
	for _, p := range result.Projects {
		projects = append(projects, p.toModel())
	}
	return projects, nil
}

// ProjectsByIDs fetches current snapshots for previously seen projects,
// used by the followup sweep to detect awarded/closed listings.
func (c *Client) ProjectsByIDs(ctx context.Context, ids []string) ([]model.Project, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	params := url.Values{}
	for _, id := range ids {
		params.Add("projects[]", id)
	}
	params.Set("selected_bids", "true")
	params.Set("limit", strconv.Itoa(len(ids)))

	var result searchResult
	if err := c.get(ctx, projectsPath, params, &result); err != nil {
		return nil, err
	}

	projects := make([]model.Project, 0, len(result.Projects))
	for _, p := range result.Projects {
		projects = append(projects, p.toModel())
	}
	return projects, nil
}

// PlaceBid submits a bid. Rejections surface as the sentinel errors in
// errors.go; callers branch with errors.Is.
func (c *Client) PlaceBid(ctx context.Context, bid model.Bid) error {
	body, err := json.Marshal(bid)
	if err != nil {
		return fmt.Errorf("marshal bid: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+bidsPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, nil)
}

// Self returns the authenticated account, needed for the bidder id on
// every bid.
func (c *Client) Self(ctx context.Context) (model.User, error) {
	var user model.User
	if err := c.get(ctx, selfPath, nil, &user); err != nil {
		return model.User{}, err
	}
	return user, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, result any) error {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}

	return c.do(req, result)
}

// do executes the request, unwraps the response envelope and decodes the
// result into out when non-nil.
func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Freelancer-OAuth-V1", c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http %s: %w", req.Method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("freelancer returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	if env.Status != "success" {
		return classify(env.Message, env.ErrorCode)
	}

	if out != nil {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
