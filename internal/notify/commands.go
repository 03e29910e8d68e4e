package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Controls is the supervisor surface the operator commands drive.
type Controls interface {
	PauseAuto(paused bool)
	PauseSemi(paused bool)
	AutoPaused() bool
	SemiPaused() bool
}

// CommandPoller long-polls getUpdates and applies operator commands:
// /start, /stop, /start_auto, /stop_auto, /start_semi, /stop_semi,
// /status. Only configured user ids are obeyed.
type CommandPoller struct {
	tg         *Telegram
	controls   Controls
	authorized map[int64]bool
	log        *slog.Logger

	offset int64
}

// NewCommandPoller constructs the poller.
func NewCommandPoller(tg *Telegram, controls Controls, authorizedIDs []int64, log *slog.Logger) *CommandPoller {
	auth := make(map[int64]bool, len(authorizedIDs))
	for _, id := range authorizedIDs {
		auth[id] = true
	}
	return &CommandPoller{tg: tg, controls: controls, authorized: auth, log: log}
}

type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		From struct {
			ID int64 `json:"id"`
		} `json:"from"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

type updatesResponse struct {
	OK     bool     `json:"ok"`
	Result []update `json:"result"`
}

// Run polls until the context is cancelled.
func (p *CommandPoller) Run(ctx context.Context) {
	p.log.Info("command poller started")
	for {
		if ctx.Err() != nil {
			p.log.Info("command poller stopped")
			return
		}

		updates, err := p.fetchUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				p.log.Info("command poller stopped")
				return
			}
			p.log.Warn("getUpdates failed", "err", err)
			select {
			case <-ctx.Done():
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= p.offset {
				p.offset = u.UpdateID + 1
			}
			if u.Message == nil {
				continue
			}
			p.handle(ctx, u.Message.From.ID, u.Message.Chat.ID, u.Message.Text)
		}
	}
}

func (p *CommandPoller) fetchUpdates(ctx context.Context) ([]update, error) {
	form := url.Values{}
	form.Set("timeout", "30")
	form.Set("offset", strconv.FormatInt(p.offset, 10))
	form.Set("allowed_updates", `["message"]`)

	endpoint := fmt.Sprintf("%s/bot%s/getUpdates", p.tg.apiBase, p.tg.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	// Long poll: the server holds the request up to the timeout above, so
	// the client deadline must exceed it.
	client := &http.Client{Timeout: 40 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram getUpdates: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var ur updatesResponse
	if err := json.Unmarshal(body, &ur); err != nil {
		return nil, fmt.Errorf("decode updates: %w", err)
	}
	if !ur.OK {
		return nil, fmt.Errorf("telegram getUpdates returned not ok")
	}
	return ur.Result, nil
}

func (p *CommandPoller) handle(ctx context.Context, fromID, chatID int64, text string) {
	cmd := strings.Fields(strings.TrimSpace(text))
	if len(cmd) == 0 || !strings.HasPrefix(cmd[0], "/") {
		return
	}

	chat := strconv.FormatInt(chatID, 10)
	if !p.authorized[fromID] {
		p.reply(ctx, chat, "❌ You are not an authorized user")
		return
	}
	if len(cmd) > 1 {
		p.reply(ctx, chat, "❌ Too many parameters. Commands take no arguments.")
		return
	}

	switch strings.SplitN(cmd[0], "@", 2)[0] {
	case "/start":
		p.controls.PauseAuto(false)
		p.controls.PauseSemi(false)
		p.reply(ctx, chat, "✅ All bidding services started!\n🔄 Auto bidding: Running\n🔄 Semi-auto bidding: Running")
	case "/start_auto":
		p.controls.PauseAuto(false)
		p.reply(ctx, chat, "✅ Auto bidding started!\nUse /stop_auto to pause it again.")
	case "/start_semi":
		p.controls.PauseSemi(false)
		p.reply(ctx, chat, "✅ Semi-auto bidding started!\nUse /stop_semi to pause it again.")
	case "/stop":
		p.controls.PauseAuto(true)
		p.controls.PauseSemi(true)
		p.reply(ctx, chat, "⏸️ All bidding services paused!\nUse /start to resume.")
	case "/stop_auto":
		p.controls.PauseAuto(true)
		p.reply(ctx, chat, "⏸️ Auto bidding paused!\nUse /start_auto to resume.")
	case "/stop_semi":
		p.controls.PauseSemi(true)
		p.reply(ctx, chat, "⏸️ Semi-auto bidding paused!\nUse /start_semi to resume.")
	case "/status":
		p.reply(ctx, chat, fmt.Sprintf(
			"📊 Bidder Status:\n\nAuto bidding: %s\nSemi-auto bidding: %s",
			runState(p.controls.AutoPaused()), runState(p.controls.SemiPaused())))
	}
}

func (p *CommandPoller) reply(ctx context.Context, chatID, text string) {
	if err := p.tg.send(ctx, chatID, text); err != nil {
		p.log.Warn("command reply failed", "err", err)
	}
}

func runState(paused bool) string {
	if paused {
		return "⏸️ Paused"
	}
	return "🔄 Running"
}
