// Package ai generates proposal and language-detection text through an
// ordered chain of completion backends with shared failover state.
package ai

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ErrExhausted is returned when every provider failed within one request.
// The failed-set is reset before returning, so the next call gets a fresh
// rotation instead of a permanent lockout.
var ErrExhausted = errors.New("ai: all providers exhausted")

// Backend is one completion endpoint.
type Backend interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// Provider is one entry in the failover chain.
type Provider struct {
	Label   string
	Model   string
	Backend Backend
}

// Failover round-robins completion requests across a fixed ordered
// provider list. The cursor and failed-set are shared by every caller
// (both loops plus the approval callbacks), so they sit behind a mutex.
type Failover struct {
	providers []Provider
	delay     time.Duration // courtesy delay before each live request
	log       *slog.Logger

	mu     sync.Mutex
	cursor int
	failed map[int]bool
}

// NewFailover constructs the orchestrator. The provider order is fixed
// for the life of the process.
func NewFailover(providers []Provider, delay time.Duration, log *slog.Logger) *Failover {
	return &Failover{
		providers: providers,
		delay:     delay,
		log:       log,
		failed:    make(map[int]bool),
	}
}

// Generate runs the prompt through the chain, starting at the shared
// cursor, for at most one full rotation.
//
// strict=true is proposal mode: the response must carry the sentinel
// marker in its first line, which is stripped from the returned text.
// strict=false is language-detection mode: the response must be exactly
// one whitespace-delimited token.
//
// A transport failure or rejected response marks the provider failed and
// moves on. When every provider has failed, the failed-set is cleared and
// ErrExhausted returned.
func (f *Failover) Generate(ctx context.Context, prompt string, strict bool) (string, error) {
	total := len(f.providers)

	for attempts := 0; attempts < total; attempts++ {
		f.mu.Lock()
		idx := f.cursor
		skip := f.failed[idx]
		if skip {
			f.cursor = (f.cursor + 1) % total
		}
		f.mu.Unlock()

		if skip {
			continue
		}

		// Rate-limit courtesy toward the free endpoints.
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(f.delay):
		}

		provider := f.providers[idx]
		raw, err := provider.Backend.Complete(ctx, provider.Model, prompt)
		if err == nil {
			if text, ok := validate(raw, strict); ok {
				f.mu.Lock()
				f.cursor = (idx + 1) % total
				f.mu.Unlock()
				return text, nil
			}
			f.log.Warn("provider response rejected", "provider", provider.Label, "strict", strict)
		} else {
			f.log.Warn("provider request failed", "provider", provider.Label, "err", err)
		}

		f.mu.Lock()
		f.failed[idx] = true
		f.cursor = (idx + 1) % total
		f.mu.Unlock()
	}

	f.mu.Lock()
	f.failed = make(map[int]bool)
	f.mu.Unlock()
	return "", ErrExhausted
}

// validate applies the mode-specific acceptance rules.
func validate(raw string, strict bool) (string, bool) {
	resp := strings.TrimSpace(raw)
	if resp == "" {
		return "", false
	}

	if !strict {
		if len(strings.Fields(resp)) != 1 {
			return "", false
		}
		return resp, true
	}

	lines := strings.Split(resp, "\n")
	first := lines[0]
	pos := strings.Index(strings.ToLower(first), proposalMarker)
	if pos < 0 {
		return "", false
	}
	lines[0] = strings.TrimSpace(first[:pos] + first[pos+len(proposalMarker):])
	return strings.TrimSpace(strings.Join(lines, "\n")), true
}
