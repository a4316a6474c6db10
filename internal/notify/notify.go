// Package notify sends optional Telegram messages about publish outcomes.
// It is fire-and-forget: a failed notification never fails the cycle.
package notify

import (
	"fmt"

	tele "gopkg.in/telebot.v4"

	"github.com/Sean-McConnachie/delayedgram/pkg/logx"
)

type Config struct {
	Enabled bool
	Token   string
	ChatID  int64
}

type Service struct {
	bot    *tele.Bot
	chatID int64
	log    logx.Logger
}

// New builds the notifier. Returns (nil, nil) when disabled; a nil *Service
// is safe to call.
func New(cfg Config, log logx.Logger) (*Service, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	bot, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, fmt.Errorf("notify: %w", err)
	}
	return &Service{bot: bot, chatID: cfg.ChatID, log: log}, nil
}

func (s *Service) PublishSucceeded(postID, images int) {
	s.send(fmt.Sprintf("Published post %d (%d image(s))", postID, images))
}

func (s *Service) PublishFailed(postID int, err error) {
	s.send(fmt.Sprintf("Failed to publish post %d: %v", postID, err))
}

func (s *Service) send(msg string) {
	if s == nil || s.bot == nil {
		return
	}
	if _, err := s.bot.Send(tele.ChatID(s.chatID), msg); err != nil {
		s.log.Debug("notification send failed", logx.Err(err))
	}
}
