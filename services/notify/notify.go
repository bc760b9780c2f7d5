// Package notify fans pre-formatted messages out to Telegram, Discord
// and plain webhooks.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Channel names a delivery target.
type Channel string

const (
	ChannelTelegram Channel = "telegram"
	ChannelDiscord  Channel = "discord"
	ChannelWebhook  Channel = "webhook"
)

// Config carries the per-channel credentials. Empty fields disable
// the channel.
type Config struct {
	TelegramToken  string
	TelegramChatID string
	DiscordWebhook string
	Webhooks       []string
}

// ConfigFromEnv reads delivery settings from the environment.
func ConfigFromEnv() Config {
	return Config{
		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID: os.Getenv("TELEGRAM_CHAT_ID"),
		DiscordWebhook: os.Getenv("DISCORD_WEBHOOK_URL"),
	}
}

// Manager delivers messages to the configured channels.
type Manager struct {
	cfg    Config
	client *http.Client
	log    *zap.Logger

	mu       sync.Mutex
	webhooks []string
}

func NewManager(cfg Config, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		cfg:      cfg,
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      log,
		webhooks: append([]string(nil), cfg.Webhooks...),
	}
}

// AddWebhook registers an extra webhook target at runtime.
func (m *Manager) AddWebhook(url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.webhooks = append(m.webhooks, url)
}

// Send delivers the message to every configured channel. A channel
// failure is logged and does not stop the others; the return value is
// true when at least one delivery succeeded.
func (m *Manager) Send(ctx context.Context, message string) bool {
	return m.SendTo(ctx, message, ChannelTelegram, ChannelDiscord, ChannelWebhook)
}

// SendTo delivers the message to the named channels only.
func (m *Manager) SendTo(ctx context.Context, message string, channels ...Channel) bool {
	ok := false
	for _, ch := range channels {
		var err error
		switch ch {
		case ChannelTelegram:
			err = m.sendTelegram(ctx, message)
		case ChannelDiscord:
			err = m.sendDiscord(ctx, message)
		case ChannelWebhook:
			err = m.sendWebhooks(ctx, message)
		default:
			err = fmt.Errorf("unknown channel %q", ch)
		}
		if err != nil {
			m.log.Warn("notification failed", zap.String("channel", string(ch)), zap.Error(err))
			continue
		}
		ok = true
	}
	return ok
}

func (m *Manager) sendTelegram(ctx context.Context, message string) error {
	if m.cfg.TelegramToken == "" || m.cfg.TelegramChatID == "" {
		return fmt.Errorf("telegram not configured")
	}

	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", m.cfg.TelegramToken)
	form := url.Values{
		"chat_id":    {m.cfg.TelegramChatID},
		"text":       {message},
		"parse_mode": {"HTML"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram send: status %d", resp.StatusCode)
	}
	return nil
}

func (m *Manager) sendDiscord(ctx context.Context, message string) error {
	if m.cfg.DiscordWebhook == "" {
		return fmt.Errorf("discord not configured")
	}

	// Telegram-flavored HTML goes out as markdown on Discord.
	clean := strings.NewReplacer(
		"<b>", "**", "</b>", "**",
		"<i>", "_", "</i>", "_",
	).Replace(message)

	body, err := json.Marshal(map[string]string{"content": clean})
	if err != nil {
		return err
	}
	return m.postJSON(ctx, m.cfg.DiscordWebhook, body, http.StatusOK, http.StatusNoContent)
}

func (m *Manager) sendWebhooks(ctx context.Context, message string) error {
	m.mu.Lock()
	targets := append([]string(nil), m.webhooks...)
	m.mu.Unlock()

	if len(targets) == 0 {
		return fmt.Errorf("no webhooks configured")
	}

	body, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return err
	}

	var lastErr error
	delivered := false
	for _, target := range targets {
		if err := m.postJSON(ctx, target, body, http.StatusOK); err != nil {
			m.log.Warn("webhook failed", zap.String("url", target), zap.Error(err))
			lastErr = err
			continue
		}
		delivered = true
	}
	if !delivered {
		return fmt.Errorf("all webhooks failed: %w", lastErr)
	}
	return nil
}

func (m *Manager) postJSON(ctx context.Context, target string, body []byte, okStatuses ...int) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	for _, s := range okStatuses {
		if resp.StatusCode == s {
			return nil
		}
	}
	return fmt.Errorf("status %d", resp.StatusCode)
}
