package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/indiwide/gembot/internal/admission"
	"github.com/indiwide/gembot/internal/config"
	"github.com/indiwide/gembot/internal/consts"
	"github.com/indiwide/gembot/internal/database"
	"github.com/indiwide/gembot/internal/history"
	"github.com/indiwide/gembot/internal/llm"
	"github.com/indiwide/gembot/internal/logger"
	"github.com/indiwide/gembot/internal/metrics"
	"github.com/indiwide/gembot/internal/persona"
	"github.com/indiwide/gembot/internal/processor"
	"golang.org/x/time/rate"
)

// store is the database surface the transport needs
type store interface {
	GetOrCreateUser(telegramID int64, username, firstName, lastName string) (*database.User, error)
	GetUserByTelegramID(telegramID int64) (*database.User, error)
	GetCredits(telegramID int64) (int64, error)
	DebitCredits(telegramID int64, amount int64) error
	AddCredits(telegramID int64, amount int64) (bool, error)
	UpdateUserPersona(telegramID int64, role, style, mood string) error
	RecordEvent(eventType string, telegramID int64) error
	GetSignupStats() (*database.SignupStats, error)
	Close() error
}

type Bot struct {
	api       *tgbotapi.BotAPI
	config    *config.Config
	db        store
	llmClient *llm.Client
	gate      *admission.Gate
	window    *history.Store
	processor *processor.Processor
	collector *metrics.Collector

	// Outbound rate limiting
	globalLimiter  *rate.Limiter
	userLimiters   map[int64]*rate.Limiter
	userLimitersMu sync.RWMutex
	cleanupStarted bool

	// Worker pool for concurrent processing
	workerPool *WorkerPool

	// Injected for tests; rateLimitedSend in production
	send func(chatID int64, msg tgbotapi.Chattable) (tgbotapi.Message, error)
}

func NewBot(cfg *config.Config) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	if !cfg.HasDatabaseConfig() {
		return nil, fmt.Errorf("POSTGRE_DSN is required, the credit ledger needs a database")
	}

	db, err := database.NewDB(cfg.PostgreDSN, cfg.InitialCredits)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	collector := metrics.NewCollector()
	gate := admission.NewGate(cfg.Cooldown)
	llmClient := llm.NewClient(cfg)

	bot := &Bot{
		api:       api,
		config:    cfg,
		db:        db,
		llmClient: llmClient,
		gate:      gate,
		collector: collector,

		globalLimiter: rate.NewLimiter(rate.Limit(30), 30), // Telegram-wide send budget
		userLimiters:  make(map[int64]*rate.Limiter),
	}

	bot.send = bot.rateLimitedSend
	bot.window = history.New(cfg.HistoryWindow, bot.systemPromptFor)

	bot.processor = processor.New(
		processor.Config{Delay: cfg.ProcessingDelay, LLMTimeout: cfg.LLMTimeout},
		gate, db, bot.window, llmClient, llmClient, bot, collector,
	)

	return bot, nil
}

// systemPromptFor composes the persona system prompt for a user from their
// stored axis selections
func (b *Bot) systemPromptFor(userID int64) string {
	user, err := b.db.GetUserByTelegramID(userID)
	if err != nil || user == nil {
		return persona.Compose("", "", "")
	}
	return persona.Compose(user.PersonaRole, user.PersonaStyle, user.PersonaMood)
}

func (b *Bot) Start() error {
	logger.Info("Bot authorized and starting", map[string]interface{}{
		"username": b.api.Self.UserName,
		"cooldown": b.config.Cooldown.String(),
	})

	b.workerPool = NewWorkerPool(b, DefaultWorkerPoolConfig())
	if err := b.workerPool.Start(); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}

	// Reward endpoint, health check and metrics
	b.StartRewardServer()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"message", "callback_query"}

	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		if update.CallbackQuery != nil {
			if err := b.workerPool.SubmitCallback(update.CallbackQuery); err != nil {
				logger.Error("Failed to submit callback to worker pool", map[string]interface{}{
					"error":       err.Error(),
					"callback_id": update.CallbackQuery.ID,
				})
			}
			continue
		}

		if update.Message == nil {
			continue
		}

		if err := b.workerPool.SubmitMessage(update.Message); err != nil {
			logger.Error("Failed to submit message to worker pool", map[string]interface{}{
				"error":   err.Error(),
				"chat_id": update.Message.Chat.ID,
			})
		}
	}

	return nil
}

// Stop gracefully shuts down the bot and its worker pool
func (b *Bot) Stop() error {
	logger.InfoMsg("Stopping bot...")

	if b.workerPool != nil {
		if err := b.workerPool.Stop(); err != nil {
			logger.Error("Error stopping worker pool", map[string]interface{}{
				"error": err.Error(),
			})
			return err
		}
	}

	b.gate.Close()
	if err := b.llmClient.Close(); err != nil {
		logger.Warn("Error closing LLM client", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if err := b.db.Close(); err != nil {
		logger.Warn("Error closing database", map[string]interface{}{
			"error": err.Error(),
		})
	}

	logger.InfoMsg("Bot stopped successfully")
	return nil
}

// handleMessage routes one inbound message. Called from worker goroutines.
func (b *Bot) handleMessage(message *tgbotapi.Message) error {
	if message.From == nil {
		return fmt.Errorf("message without sender")
	}

	// Refresh the user's profile on every interaction; first sight seeds the
	// initial credit balance and records the signup event
	user, err := b.ensureUser(message)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	if message.IsCommand() {
		return b.handleCommand(message, user)
	}

	req := processor.Request{
		UserID: message.From.ID,
		ChatID: message.Chat.ID,
		Text:   message.Text,
	}

	switch {
	case message.Voice != nil:
		b.collector.RecordMessage("voice")
		data, filename, err := b.downloadFile(message.Voice.FileID)
		if err != nil {
			logger.Error("Failed to download voice note", map[string]interface{}{
				"error":   err.Error(),
				"chat_id": message.Chat.ID,
			})
			b.Reply(message.Chat.ID, consts.TranscriptionFailedMessage)
			return nil
		}
		req.Voice = &processor.Voice{Filename: filename, Data: data}

	case len(message.Photo) > 0:
		b.collector.RecordMessage("photo")
		// Largest size is last in the array
		photo := message.Photo[len(message.Photo)-1]
		data, _, err := b.downloadFile(photo.FileID)
		if err != nil {
			logger.Error("Failed to download photo", map[string]interface{}{
				"error":   err.Error(),
				"chat_id": message.Chat.ID,
			})
			b.Reply(message.Chat.ID, consts.GenerationFailedMessage)
			return nil
		}
		req.Text = message.Caption
		req.ImageData = data
		req.ImageURL = fmt.Sprintf("tg://photo/%s", photo.FileUniqueID)

	case message.Text != "":
		b.collector.RecordMessage("text")

	default:
		return nil // Stickers, documents etc. are ignored
	}

	b.processor.Handle(context.Background(), req)
	return nil
}

// downloadFile fetches a Telegram file by id and returns its bytes and name
func (b *Bot) downloadFile(fileID string) ([]byte, string, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, "", fmt.Errorf("failed to get file info: %w", err)
	}

	resp, err := http.Get(file.Link(b.api.Token))
	if err != nil {
		return nil, "", fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to download file: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read file data: %w", err)
	}

	filename := filepath.Base(file.FilePath)
	if filename == "." || filename == "" {
		filename = "voice.oga"
	}

	return data, filename, nil
}

// ensureUser upserts the sender in the database
func (b *Bot) ensureUser(message *tgbotapi.Message) (*database.User, error) {
	from := message.From
	return b.db.GetOrCreateUser(from.ID, from.UserName, from.FirstName, from.LastName)
}

// Reply sends a plain text response. Implements processor.Replier.
func (b *Bot) Reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.send(chatID, msg); err != nil {
		logger.Error("Failed to send message", map[string]interface{}{
			"error":   err.Error(),
			"chat_id": chatID,
		})
	}
}

// ReplyWithTopup sends a response together with the credit top-up keyboard.
// Implements processor.Replier.
func (b *Bot) ReplyWithTopup(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = topupKeyboard()
	if _, err := b.send(chatID, msg); err != nil {
		logger.Error("Failed to send top-up message", map[string]interface{}{
			"error":   err.Error(),
			"chat_id": chatID,
		})
	}
}

// Rate limiting methods

// getUserRateLimiter gets or creates a rate limiter for a specific chat
func (b *Bot) getUserRateLimiter(chatID int64) *rate.Limiter {
	b.userLimitersMu.RLock()
	limiter, exists := b.userLimiters[chatID]
	b.userLimitersMu.RUnlock()

	if !exists {
		b.userLimitersMu.Lock()
		if limiter, exists = b.userLimiters[chatID]; !exists {
			limiter = rate.NewLimiter(rate.Limit(1), 3) // 1 msg/sec per chat, small burst
			b.userLimiters[chatID] = limiter

			if !b.cleanupStarted {
				b.cleanupStarted = true
				go b.cleanupUserLimiters()
			}
		}
		b.userLimitersMu.Unlock()
	}

	return limiter
}

// cleanupUserLimiters bounds the limiter map for long-running processes
func (b *Bot) cleanupUserLimiters() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		b.userLimitersMu.Lock()
		if len(b.userLimiters) > 1000 {
			logger.Debug("Cleaning up chat rate limiters", map[string]interface{}{
				"limiter_count": len(b.userLimiters),
			})
			b.userLimiters = make(map[int64]*rate.Limiter)
		}
		b.userLimitersMu.Unlock()
	}
}

// rateLimitedSend sends a message honoring the global and per-chat budgets
func (b *Bot) rateLimitedSend(chatID int64, msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	if err := b.globalLimiter.Wait(context.Background()); err != nil {
		return tgbotapi.Message{}, fmt.Errorf("global rate limiter error: %w", err)
	}

	if err := b.getUserRateLimiter(chatID).Wait(context.Background()); err != nil {
		return tgbotapi.Message{}, fmt.Errorf("user rate limiter error: %w", err)
	}

	return b.api.Send(msg)
}

// isAdmin reports whether the sender may run admin-only commands
func (b *Bot) isAdmin(username string) bool {
	return b.config.AdminUsername != "" && strings.EqualFold(username, b.config.AdminUsername)
}
