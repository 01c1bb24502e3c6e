// Package notify delivers the daily summary to a Telegram chat.
//
// Delivery failures are reported to the caller but are expected to be
// logged and swallowed: a missed notification must never fail the analysis
// run that produced it.
package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"stockdaily/pkg/logx"
)

// Sender delivers one text message.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// Telegram sends messages to a fixed chat via the Bot API.
type Telegram struct {
	bot    *tele.Bot
	chatID int64
	log    logx.Logger
}

func NewTelegram(token string, chatID int64, log logx.Logger) (*Telegram, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if chatID == 0 {
		return nil, errors.New("telegram chat id is missing")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: b, chatID: chatID, log: log}, nil
}

func (t *Telegram) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	_, err := t.bot.Send(&tele.Chat{ID: t.chatID}, text, &tele.SendOptions{DisableWebPagePreview: true})
	if err != nil {
		t.log.Warn("notification send failed", logx.Int64("chat_id", t.chatID), logx.Err(err))
		return err
	}
	t.log.Debug("notification sent", logx.Int64("chat_id", t.chatID), logx.Int("len", len(text)))
	return nil
}
