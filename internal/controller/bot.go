// Package controller Telegram-бот: привязка чата к пользователю и просмотр своих заявок.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Freeeeeet/plc_booking/internal/model"
	"github.com/Freeeeeet/plc_booking/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// Contacts привязка Telegram-чатов по одноразовым кодам
type Contacts interface {
	RedeemLinkCode(ctx context.Context, code string, chatID int64) (string, error)
	ChatUser(ctx context.Context, chatID int64) (string, error)
}

// BookingLister заявки пользователя как студента и как тьютора
type BookingLister interface {
	GetStudentBookings(ctx context.Context, studentID string) ([]*service.BookingView, error)
	GetEligibleBookings(ctx context.Context, tutorID string) ([]*service.BookingView, error)
}

type BotController struct {
	bot      *bot.Bot
	contacts Contacts
	bookings BookingLister
	logger   *zap.Logger
}

func NewBotController(botInstance *bot.Bot, contacts Contacts, bookings BookingLister, logger *zap.Logger) *BotController {
	return &BotController{
		bot:      botInstance,
		contacts: contacts,
		bookings: bookings,
		logger:   logger,
	}
}

// RegisterHandlers регистрирует все обработчики команд
func (c *BotController) RegisterHandlers(ctx context.Context) error {
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, c.handleStart)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypeExact, c.handleHelp)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/mybookings", bot.MatchTypeExact, c.handleMyBookings)

	return c.setCommands(ctx)
}

// setCommands устанавливает список команд в меню бота
func (c *BotController) setCommands(ctx context.Context) error {
	commands := []models.BotCommand{
		{Command: "start", Description: "🚀 Подключить уведомления"},
		{Command: "mybookings", Description: "📅 Мои заявки"},
		{Command: "help", Description: "❓ Справка по командам"},
	}

	_, err := c.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{
		Commands: commands,
	})

	if err != nil {
		c.logger.Error("Failed to set bot commands", zap.Error(err))
		return err
	}

	c.logger.Info("Bot commands menu set")
	return nil
}

// Start запускает бота, блокируется до отмены контекста
func (c *BotController) Start(ctx context.Context) error {
	c.logger.Info("Starting bot...")
	c.bot.Start(ctx)
	return nil
}

func (c *BotController) reply(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		c.logger.Warn("Failed to send reply", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// handleStart обрабатывает /start <код>, код выдаёт POST /api/v1/me/telegram-link
func (c *BotController) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	c.reply(ctx, b, update.Message.Chat.ID, c.link(ctx, update.Message.Chat.ID, update.Message.Text))
}

func (c *BotController) handleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	c.reply(ctx, b, update.Message.Chat.ID, helpText)
}

func (c *BotController) handleMyBookings(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	c.reply(ctx, b, update.Message.Chat.ID, c.myBookings(ctx, update.Message.Chat.ID))
}

const helpText = "Бот присылает уведомления о заявках Peer Learning Center.\n\n" +
	"/start <код> - подключить уведомления\n" +
	"/mybookings - мои заявки\n" +
	"/help - справка"

// startPayload аргумент команды /start; ok=false если это другая команда вроде /startbob
func startPayload(text string) (payload string, ok bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", false
	}
	command, _, _ := strings.Cut(fields[0], "@")
	if command != "/start" {
		return "", false
	}
	if len(fields) > 1 {
		payload = fields[1]
	}
	return payload, true
}

func (c *BotController) link(ctx context.Context, chatID int64, text string) string {
	code, ok := startPayload(text)
	if !ok {
		return helpText
	}
	if code == "" {
		return "👋 Откройте ссылку на подключение из личного кабинета PLC.\n\n" + helpText
	}

	_, err := c.contacts.RedeemLinkCode(ctx, code, chatID)
	if errors.Is(err, model.ErrInvalidLinkCode) {
		c.logger.Info("Link code rejected", zap.Int64("chat_id", chatID))
		return "⚠️ Ссылка недействительна или устарела. Получите новую в личном кабинете PLC."
	}
	if err != nil {
		c.logger.Error("Failed to link telegram chat", zap.Int64("chat_id", chatID), zap.Error(err))
		return "❌ Не удалось подключить уведомления. Попробуйте позже."
	}

	return "✅ Уведомления подключены. Сюда будут приходить ответы тьюторов и оценки."
}

func (c *BotController) myBookings(ctx context.Context, chatID int64) string {
	userID, err := c.contacts.ChatUser(ctx, chatID)
	if errors.Is(err, model.ErrNotFound) {
		return "Сначала подключите уведомления через /start."
	}
	if err != nil {
		c.logger.Error("Failed to resolve chat user", zap.Int64("chat_id", chatID), zap.Error(err))
		return "❌ Произошла ошибка. Попробуйте позже."
	}

	own, err := c.bookings.GetStudentBookings(ctx, userID)
	if err != nil {
		c.logger.Error("Failed to list student bookings", zap.String("user_id", userID), zap.Error(err))
		return "❌ Произошла ошибка. Попробуйте позже."
	}
	open, err := c.bookings.GetEligibleBookings(ctx, userID)
	if err != nil {
		c.logger.Error("Failed to list eligible bookings", zap.String("user_id", userID), zap.Error(err))
		return "❌ Произошла ошибка. Попробуйте позже."
	}

	if len(own) == 0 && len(open) == 0 {
		return "📭 У вас нет заявок."
	}

	var sb strings.Builder
	if len(own) > 0 {
		sb.WriteString("📅 Мои заявки:\n")
		for _, v := range own {
			sb.WriteString(formatBooking(v))
		}
	}
	if len(open) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("📬 Ждут вашего ответа:\n")
		for _, v := range open {
			sb.WriteString(formatBooking(v))
		}
	}
	return sb.String()
}

var statusIcons = map[model.DisplayStatus]string{
	model.DisplayPending:   "⏳",
	model.DisplayApproved:  "✅",
	model.DisplayStarting:  "▶️",
	model.DisplayCompleted: "🏁",
	model.DisplayRejected:  "❌",
	model.DisplayCancelled: "🚫",
}

func formatBooking(v *service.BookingView) string {
	return fmt.Sprintf("%s %s, %s %s–%s (%s)\n",
		statusIcons[v.DisplayStatus],
		v.Subject,
		v.BookingDate.Format("02.01"),
		v.StartTime,
		v.EndTime,
		v.DisplayStatus,
	)
}
