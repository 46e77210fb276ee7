// Package notifier доставляет события заявок пользователям в Telegram.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"html"

	"github.com/Freeeeeet/plc_booking/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// MessageSender часть *bot.Bot, нужная уведомлениям
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// ContactBook ищет Telegram-чат пользователя
type ContactBook interface {
	TelegramChatID(ctx context.Context, userID string) (int64, error)
}

type TelegramNotifier struct {
	sender   MessageSender
	contacts ContactBook
	logger   *zap.Logger
}

func NewTelegramNotifier(sender MessageSender, contacts ContactBook, logger *zap.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		sender:   sender,
		contacts: contacts,
		logger:   logger,
	}
}

// Handle отправляет сообщение адресату события. Пользователи без подключённого бота пропускаются.
func (n *TelegramNotifier) Handle(ctx context.Context, event model.Event) error {
	recipient, text, ok := n.render(event)
	if !ok {
		return nil
	}

	chatID, err := n.contacts.TelegramChatID(ctx, recipient)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			n.logger.Debug("No telegram contact for user", zap.String("user_id", recipient))
			return nil
		}
		return fmt.Errorf("lookup contact: %w", err)
	}

	_, err = n.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	n.logger.Info("Notification sent",
		zap.String("type", string(event.Type)),
		zap.String("booking_id", event.BookingID.String()),
		zap.String("user_id", recipient),
	)
	return nil
}

// render текст в разметке HTML, пользовательские значения экранируются
func (n *TelegramNotifier) render(event model.Event) (recipient, text string, ok bool) {
	switch event.Type {
	case model.EventBookingApproved:
		if event.Booking == nil {
			return "", "", false
		}
		b := event.Booking
		return event.StudentID, fmt.Sprintf(
			"✅ Заявка по предмету <b>%s</b> принята\n📅 %s, %s–%s\n👨‍🏫 Тьютор: %s",
			html.EscapeString(b.Subject), b.BookingDate.Format("02.01.2006"), b.StartTime, b.EndTime,
			html.EscapeString(event.TutorID),
		), true
	case model.EventBookingRejected:
		if event.Booking == nil {
			return "", "", false
		}
		b := event.Booking
		return event.StudentID, fmt.Sprintf(
			"❌ Все тьюторы отклонили заявку по предмету <b>%s</b> на %s. Попробуйте выбрать другое время.",
			html.EscapeString(b.Subject), b.BookingDate.Format("02.01.2006"),
		), true
	case model.EventRatingSubmitted:
		if event.Rating == nil {
			return "", "", false
		}
		msg := fmt.Sprintf("⭐ Студент оценил занятие: %d/%d", event.Rating.Score, model.MaxScore)
		if event.Rating.Review != nil {
			msg += "\n💬 " + html.EscapeString(*event.Rating.Review)
		}
		return event.TutorID, msg, true
	default:
		return "", "", false
	}
}
