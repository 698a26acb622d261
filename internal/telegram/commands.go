package telegram

import (
	"fmt"
	"os"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/indiwide/gembot/internal/consts"
	"github.com/indiwide/gembot/internal/database"
	"github.com/indiwide/gembot/internal/logger"
	"github.com/indiwide/gembot/internal/persona"
)

// handleCommand dispatches bot commands. The sender is already upserted.
func (b *Bot) handleCommand(message *tgbotapi.Message, user *database.User) error {
	switch message.Command() {
	case "start":
		return b.handleStartCommand(message)
	case "newchat":
		b.window.Reset(message.From.ID)
		b.Reply(message.Chat.ID, consts.NewChatMessage)
		return nil
	case "balance":
		credits, err := b.db.GetCredits(message.From.ID)
		if err != nil {
			return fmt.Errorf("failed to read balance: %w", err)
		}
		b.Reply(message.Chat.ID, fmt.Sprintf(consts.BalanceTemplate, credits))
		return nil
	case "persona":
		return b.handlePersonaCommand(message, user)
	case "analytics":
		return b.handleAnalyticsCommand(message)
	default:
		// Unknown commands are ignored
		return nil
	}
}

// handleStartCommand greets the user with the banner image, falling back to
// plain text when the banner is missing
func (b *Bot) handleStartCommand(message *tgbotapi.Message) error {
	if _, err := os.Stat(b.config.BannerPath); err == nil {
		photo := tgbotapi.NewPhoto(message.Chat.ID, tgbotapi.FilePath(b.config.BannerPath))
		photo.Caption = consts.StartGreeting
		if _, err := b.send(message.Chat.ID, photo); err == nil {
			return nil
		}
		logger.Warn("Failed to send banner, falling back to text", map[string]interface{}{
			"chat_id": message.Chat.ID,
		})
	}

	b.Reply(message.Chat.ID, consts.StartGreeting)
	return nil
}

// handlePersonaCommand shows the axis keyboards with the current selection
func (b *Bot) handlePersonaCommand(message *tgbotapi.Message, user *database.User) error {
	msg := tgbotapi.NewMessage(message.Chat.ID, "Выберите образ бота:")
	msg.ReplyMarkup = personaKeyboard(user)
	if _, err := b.send(message.Chat.ID, msg); err != nil {
		return fmt.Errorf("failed to send persona keyboard: %w", err)
	}
	return nil
}

func (b *Bot) handleAnalyticsCommand(message *tgbotapi.Message) error {
	if !b.isAdmin(message.From.UserName) {
		b.Reply(message.Chat.ID, consts.AnalyticsDeniedMessage)
		return nil
	}

	stats, err := b.db.GetSignupStats()
	if err != nil {
		return fmt.Errorf("failed to get signup stats: %w", err)
	}

	b.Reply(message.Chat.ID, fmt.Sprintf(consts.AnalyticsTemplate, stats.Total, stats.Daily, stats.Weekly))
	return nil
}

// handleCallbackQuery routes inline keyboard presses
func (b *Bot) handleCallbackQuery(callback *tgbotapi.CallbackQuery) error {
	// Acknowledge immediately so the button stops spinning
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		logger.Warn("Failed to answer callback query", map[string]interface{}{
			"callback_id": callback.ID,
			"error":       err.Error(),
		})
	}

	if callback.Message == nil || callback.From == nil {
		return fmt.Errorf("callback without message or sender")
	}

	data := callback.Data
	chatID := callback.Message.Chat.ID
	userID := callback.From.ID

	switch {
	case strings.HasPrefix(data, "topup_"):
		return b.handleTopupCallback(chatID, userID, data)
	case strings.HasPrefix(data, "persona_"):
		return b.handlePersonaCallback(chatID, userID, data)
	case data == "newchat":
		b.window.Reset(userID)
		b.Reply(chatID, consts.NewChatMessage)
		return nil
	default:
		return fmt.Errorf("unknown callback data: %s", data)
	}
}

// handleTopupCallback grants one of the fixed credit packs
func (b *Bot) handleTopupCallback(chatID, userID int64, data string) error {
	var amount int64
	switch data {
	case "topup_small":
		amount = consts.TopupSmall
	case "topup_medium":
		amount = consts.TopupMedium
	case "topup_large":
		amount = consts.TopupLarge
	default:
		return fmt.Errorf("unknown topup callback: %s", data)
	}

	ok, err := b.db.AddCredits(userID, amount)
	if err != nil {
		b.Reply(chatID, consts.GenerationFailedMessage)
		return fmt.Errorf("failed to add credits: %w", err)
	}
	if !ok {
		return fmt.Errorf("topup for unknown user %d", userID)
	}

	if err := b.db.RecordEvent(consts.EventReward, userID); err != nil {
		logger.Warn("Failed to record reward event", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
	}
	b.collector.RecordGrant("topup", amount)

	balance, err := b.db.GetCredits(userID)
	if err != nil {
		return fmt.Errorf("failed to read balance after topup: %w", err)
	}

	b.Reply(chatID, fmt.Sprintf(consts.RewardGrantedTemplate, amount, balance))
	return nil
}

// handlePersonaCallback stores the picked option and resets the window so
// the new system prompt takes effect on the next message
func (b *Bot) handlePersonaCallback(chatID, userID int64, data string) error {
	// Format: persona_<axis>_<key>
	parts := strings.SplitN(data, "_", 3)
	if len(parts) != 3 {
		return fmt.Errorf("malformed persona callback: %s", data)
	}
	axis, key := parts[1], parts[2]

	if _, ok := persona.Find(axis, key); !ok {
		return fmt.Errorf("unknown persona option %s/%s", axis, key)
	}

	user, err := b.db.GetUserByTelegramID(userID)
	if err != nil {
		b.Reply(chatID, consts.GenerationFailedMessage)
		return fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		b.Reply(chatID, consts.GenerationFailedMessage)
		return fmt.Errorf("persona update for unknown user %d", userID)
	}

	role, style, mood := user.PersonaRole, user.PersonaStyle, user.PersonaMood
	switch axis {
	case persona.AxisRole:
		role = key
	case persona.AxisStyle:
		style = key
	case persona.AxisMood:
		mood = key
	}

	if err := b.db.UpdateUserPersona(userID, role, style, mood); err != nil {
		// The pick was lost; the user must hear about it, not just the log
		b.Reply(chatID, consts.GenerationFailedMessage)
		return fmt.Errorf("failed to update persona: %w", err)
	}

	b.window.Reset(userID)
	b.Reply(chatID, consts.PersonaUpdatedMessage)
	return nil
}

// topupKeyboard is attached to zero-balance replies
func topupKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(consts.ButtonTopupSmall, "topup_small"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(consts.ButtonTopupMedium, "topup_medium"),
			tgbotapi.NewInlineKeyboardButtonData(consts.ButtonTopupLarge, "topup_large"),
		),
	)
}

// personaKeyboard lists every axis option, marking the current selection
func personaKeyboard(user *database.User) tgbotapi.InlineKeyboardMarkup {
	selected := map[string]string{
		persona.AxisRole:  user.PersonaRole,
		persona.AxisStyle: user.PersonaStyle,
		persona.AxisMood:  user.PersonaMood,
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, axis := range []string{persona.AxisRole, persona.AxisStyle, persona.AxisMood} {
		var row []tgbotapi.InlineKeyboardButton
		for _, opt := range persona.Options(axis) {
			label := opt.Label
			if opt.Key == selected[axis] {
				label = "✅ " + label
			}
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("persona_%s_%s", axis, opt.Key)))
			if len(row) == 2 {
				rows = append(rows, row)
				row = nil
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(consts.ButtonNewChat, "newchat"),
	))

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
