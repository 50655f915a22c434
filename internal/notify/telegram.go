// Package notify posts publish events to Telegram chats.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"yoyaku/internal/events"
	"yoyaku/internal/metrics"
)

// Sender is the subset of tgbotapi.BotAPI used by Telegram.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends a short message per event to every configured chat.
type Telegram struct {
	sender  Sender
	chatIDs []int64
	limiter *rate.Limiter
	timeout time.Duration
	logger  *zerolog.Logger
}

// NewTelegram limits outgoing messages to perSecond with a burst of one.
func NewTelegram(sender Sender, chatIDs []int64, perSecond float64, logger *zerolog.Logger) *Telegram {
	return &Telegram{
		sender:  sender,
		chatIDs: chatIDs,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		timeout: 30 * time.Second,
		logger:  logger,
	}
}

// Subscribe registers the notifier on the bus.
func (t *Telegram) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.TypeFormPublished, t.HandleEvent)
	bus.Subscribe(events.TypeFormSaved, t.HandleEvent)
}

// HandleEvent formats ev and sends it. Events that need no message are ignored.
func (t *Telegram) HandleEvent(ev events.Event) error {
	text, err := Message(ev)
	if err != nil {
		return err
	}
	if text == "" || len(t.chatIDs) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	var errs []error
	for _, chatID := range t.chatIDs {
		if err := t.limiter.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("rate limiter: %w", err))
			break
		}
		msg := tgbotapi.NewMessage(chatID, text)
		msg.DisableWebPagePreview = true
		if _, err := t.sender.Send(msg); err != nil {
			metrics.IncNotification("error")
			t.logger.Error().Err(err).Int64("chat_id", chatID).Str("event", ev.Type).Msg("Failed to send notification")
			errs = append(errs, fmt.Errorf("send to %d: %w", chatID, err))
			continue
		}
		metrics.IncNotification("sent")
	}
	return errors.Join(errs...)
}

// Message renders the notification text of ev. It returns an empty string for
// events that should not be announced: skipped publishes and saves without
// problems.
func Message(ev events.Event) (string, error) {
	switch ev.Type {
	case events.TypeFormPublished:
		var p events.FormPublished
		if err := ev.Decode(&p); err != nil {
			return "", err
		}
		if p.Skipped {
			return "", nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "✅ フォームを公開しました: %s", p.FormName)
		if p.StoreName != "" {
			fmt.Fprintf(&b, "（%s）", p.StoreName)
		}
		fmt.Fprintf(&b, "\nURL: %s", p.PublicURL)
		if p.ProxyURL != "" {
			fmt.Fprintf(&b, "\nProxy: %s", p.ProxyURL)
		}
		if len(p.Hash) >= 12 {
			fmt.Fprintf(&b, "\nHash: %s", p.Hash[:12])
		}
		return b.String(), nil

	case events.TypeFormSaved:
		var p events.FormSaved
		if err := ev.Decode(&p); err != nil {
			return "", err
		}
		if len(p.Problems) == 0 {
			return "", nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "⚠️ フォーム設定の一部を読み込めませんでした: %s (%s)", p.FormName, p.FormID)
		for _, problem := range p.Problems {
			b.WriteString("\n- ")
			b.WriteString(problem)
		}
		return b.String(), nil
	}
	return "", nil
}
