package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/honeynil/GymLedgerService/internal/models"
)

type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramDeliverer sends the notification text as a direct bot message.
type TelegramDeliverer struct {
	api messageSender
}

func NewTelegramDeliverer(token string) (*TelegramDeliverer, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &TelegramDeliverer{api: api}, nil
}

func (d *TelegramDeliverer) Channel() string { return "telegram" }

func (d *TelegramDeliverer) Deliver(_ context.Context, n models.Notification) error {
	msg := tgbotapi.NewMessage(n.TelegramID, n.Message)
	if _, err := d.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}
