package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/indiwide/gembot/internal/consts"
	"github.com/indiwide/gembot/internal/logger"
)

// WorkerPool fans inbound updates out to a bounded set of workers so one
// slow generation cannot stall the update loop
type WorkerPool struct {
	bot                 *Bot
	messageQueue        chan *tgbotapi.Message
	callbackQueue       chan *tgbotapi.CallbackQuery
	messageWorkerCount  int
	callbackWorkerCount int

	// Concurrency control for external calls
	opSemaphore chan struct{}

	// Lifecycle management
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.RWMutex
}

// WorkerPoolConfig holds configuration for the worker pool
type WorkerPoolConfig struct {
	MessageWorkers    int // Workers processing messages
	CallbackWorkers   int // Workers processing callbacks
	MessageQueueSize  int // Message queue buffer
	CallbackQueueSize int // Callback queue buffer
	MaxConcurrentOps  int // Max in-flight LLM/transcription operations
}

// DefaultWorkerPoolConfig returns a sensible default configuration.
// Message workers are sized for the per-request delay: each admitted
// message holds a worker for the whole throttle window.
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		MessageWorkers:    25,
		CallbackWorkers:   10,
		MessageQueueSize:  200,
		CallbackQueueSize: 100,
		MaxConcurrentOps:  15,
	}
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(bot *Bot, config WorkerPoolConfig) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		bot:                 bot,
		messageQueue:        make(chan *tgbotapi.Message, config.MessageQueueSize),
		callbackQueue:       make(chan *tgbotapi.CallbackQuery, config.CallbackQueueSize),
		messageWorkerCount:  config.MessageWorkers,
		callbackWorkerCount: config.CallbackWorkers,
		opSemaphore:         make(chan struct{}, config.MaxConcurrentOps),
		ctx:                 ctx,
		cancel:              cancel,
	}
}

// Start launches all worker goroutines
func (wp *WorkerPool) Start() error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.started {
		return fmt.Errorf("worker pool already started")
	}

	logger.Info("Starting worker pool", map[string]interface{}{
		"message_workers":    wp.messageWorkerCount,
		"callback_workers":   wp.callbackWorkerCount,
		"max_concurrent_ops": cap(wp.opSemaphore),
	})

	for i := 0; i < wp.messageWorkerCount; i++ {
		wp.wg.Add(1)
		go wp.messageWorker(i)
	}

	for i := 0; i < wp.callbackWorkerCount; i++ {
		wp.wg.Add(1)
		go wp.callbackWorker(i)
	}

	wp.started = true
	return nil
}

// Stop drains the queues and waits for in-flight work to finish
func (wp *WorkerPool) Stop() error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if !wp.started {
		return fmt.Errorf("worker pool not started")
	}

	logger.InfoMsg("Stopping worker pool...")

	close(wp.messageQueue)
	close(wp.callbackQueue)
	wp.cancel()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.InfoMsg("Worker pool stopped gracefully")
	case <-time.After(30 * time.Second):
		logger.Warn("Worker pool shutdown timed out", nil)
		return fmt.Errorf("worker pool shutdown timed out")
	}

	wp.started = false
	return nil
}

// SubmitMessage queues a message; full queues drop with an error so the
// update loop never blocks
func (wp *WorkerPool) SubmitMessage(message *tgbotapi.Message) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if !wp.started {
		return fmt.Errorf("worker pool not started")
	}

	select {
	case wp.messageQueue <- message:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	default:
		logger.Warn("Message queue full, dropping message", map[string]interface{}{
			"chat_id": message.Chat.ID,
		})
		return fmt.Errorf("message queue full")
	}
}

// SubmitCallback queues a callback query
func (wp *WorkerPool) SubmitCallback(callback *tgbotapi.CallbackQuery) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if !wp.started {
		return fmt.Errorf("worker pool not started")
	}

	select {
	case wp.callbackQueue <- callback:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	default:
		logger.Warn("Callback queue full, dropping callback", map[string]interface{}{
			"callback_id": callback.ID,
		})
		return fmt.Errorf("callback queue full")
	}
}

func (wp *WorkerPool) messageWorker(workerID int) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Message worker panic recovered", map[string]interface{}{
				"worker_id": workerID,
				"panic":     r,
			})
		}
		wp.wg.Done()
	}()

	for {
		select {
		case message, ok := <-wp.messageQueue:
			if !ok {
				return
			}
			wp.processMessage(message, workerID)
		case <-wp.ctx.Done():
			return
		}
	}
}

func (wp *WorkerPool) callbackWorker(workerID int) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Callback worker panic recovered", map[string]interface{}{
				"worker_id": workerID,
				"panic":     r,
			})
		}
		wp.wg.Done()
	}()

	for {
		select {
		case callback, ok := <-wp.callbackQueue:
			if !ok {
				return
			}
			wp.processCallback(callback, workerID)
		case <-wp.ctx.Done():
			return
		}
	}
}

func (wp *WorkerPool) processMessage(message *tgbotapi.Message, workerID int) {
	select {
	case wp.opSemaphore <- struct{}{}:
		defer func() { <-wp.opSemaphore }()
	case <-wp.ctx.Done():
		return
	}

	startTime := time.Now()

	if err := wp.bot.handleMessage(message); err != nil {
		logger.Error("Error processing message", map[string]interface{}{
			"worker_id": workerID,
			"error":     err.Error(),
			"chat_id":   message.Chat.ID,
		})
		wp.bot.Reply(message.Chat.ID, consts.GenerationFailedMessage)
	}

	logger.Debug("Message processed", map[string]interface{}{
		"worker_id": workerID,
		"chat_id":   message.Chat.ID,
		"duration":  time.Since(startTime).String(),
	})
}

func (wp *WorkerPool) processCallback(callback *tgbotapi.CallbackQuery, workerID int) {
	select {
	case wp.opSemaphore <- struct{}{}:
		defer func() { <-wp.opSemaphore }()
	case <-wp.ctx.Done():
		return
	}

	if err := wp.bot.handleCallbackQuery(callback); err != nil {
		logger.Error("Error processing callback", map[string]interface{}{
			"worker_id":   workerID,
			"error":       err.Error(),
			"callback_id": callback.ID,
		})
	}
}
