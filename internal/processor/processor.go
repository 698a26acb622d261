package processor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/indiwide/gembot/internal/admission"
	"github.com/indiwide/gembot/internal/consts"
	"github.com/indiwide/gembot/internal/history"
	"github.com/indiwide/gembot/internal/llm"
	"github.com/indiwide/gembot/internal/logger"
	"github.com/indiwide/gembot/internal/metrics"
)

// Gate decides whether a user's message may enter the pipeline
type Gate interface {
	TryAdmit(userID int64, now time.Time) admission.Decision
	Release(userID int64)
}

// Ledger is the credit-accounting surface the processor needs
type Ledger interface {
	GetCredits(userID int64) (int64, error)
	DebitCredits(userID int64, amount int64) error
}

// Window is the per-user conversation context
type Window interface {
	Append(userID int64, entry history.Entry)
	Context(userID int64) []history.Entry
}

// Completer is the external chat-completion collaborator
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message, imageData []byte) (string, *llm.Usage, error)
}

// Transcriber is the external speech-to-text collaborator
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio []byte) (string, error)
}

// Replier delivers user-visible responses through the transport
type Replier interface {
	Reply(chatID int64, text string)
	ReplyWithTopup(chatID int64, text string)
}

// Voice carries a downloaded voice note awaiting transcription
type Voice struct {
	Filename string
	Data     []byte
}

// Request is one inbound user message
type Request struct {
	UserID    int64
	ChatID    int64
	Text      string
	ImageURL  string
	ImageData []byte
	Voice     *Voice
}

// Result names the terminal state of a handled request
type Result int

const (
	ResultSuccess Result = iota
	ResultRejectedBusy
	ResultRejectedCooldown
	ResultNoCredits
	ResultTranscriptionFailed
	ResultGenerationFailed
	ResultStoreError
)

// Config tunes the pipeline timing
type Config struct {
	// Delay between admission and the balance re-check, throttling
	// per-request throughput
	Delay time.Duration
	// LLMTimeout bounds the external call so a hung provider cannot pin a
	// user's admission lock forever
	LLMTimeout time.Duration
}

// Processor orchestrates admission, credit accounting and the external
// generation call for a single inbound message
type Processor struct {
	cfg         Config
	gate        Gate
	ledger      Ledger
	window      Window
	completer   Completer
	transcriber Transcriber
	replier     Replier
	collector   *metrics.Collector

	// Injected for deterministic tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

func New(cfg Config, gate Gate, ledger Ledger, window Window, completer Completer, transcriber Transcriber, replier Replier, collector *metrics.Collector) *Processor {
	return &Processor{
		cfg:         cfg,
		gate:        gate,
		ledger:      ledger,
		window:      window,
		completer:   completer,
		transcriber: transcriber,
		replier:     replier,
		collector:   collector,
		now:         time.Now,
		sleep:       sleepWithContext,
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// Handle runs one message through the admission → balance → generation →
// settle pipeline. Every exit path replies with a named reason; failed
// generations never debit.
func (p *Processor) Handle(ctx context.Context, req Request) Result {
	decision := p.gate.TryAdmit(req.UserID, p.now())
	switch decision.Status {
	case admission.StatusBusy:
		p.collector.RecordRejection("busy")
		p.replier.Reply(req.ChatID, consts.BusyMessage)
		return ResultRejectedBusy
	case admission.StatusCooldown:
		p.collector.RecordRejection("cooldown")
		p.replier.Reply(req.ChatID, fmt.Sprintf(consts.CooldownTemplate, decision.RemainingSeconds))
		return ResultRejectedCooldown
	}

	p.collector.RecordAdmission()

	// The pending flag is cleared on every admitted exit path; the cooldown
	// set at admission keeps running independently
	defer p.gate.Release(req.UserID)

	text := req.Text
	if req.Voice != nil {
		transcribed, err := p.transcribe(ctx, req)
		if err != nil || strings.TrimSpace(transcribed) == "" {
			if err != nil {
				logger.Warn("Voice transcription failed", map[string]interface{}{
					"user_id": req.UserID,
					"error":   err.Error(),
				})
			}
			p.collector.RecordRejection("transcription")
			p.replier.Reply(req.ChatID, consts.TranscriptionFailedMessage)
			return ResultTranscriptionFailed
		}
		text = transcribed
	}

	p.sleep(ctx, p.cfg.Delay)

	// Re-check the balance immediately before the paid call. Concurrent
	// overdraft by the same user is already excluded by the pending flag.
	balance, err := p.ledger.GetCredits(req.UserID)
	if err != nil {
		logger.Error("Failed to read credit balance", map[string]interface{}{
			"user_id": req.UserID,
			"error":   err.Error(),
		})
		p.replier.Reply(req.ChatID, consts.GenerationFailedMessage)
		return ResultStoreError
	}

	if balance <= 0 {
		p.collector.RecordRejection("no_credits")
		p.replier.ReplyWithTopup(req.ChatID, consts.NoCreditsMessage)
		return ResultNoCredits
	}

	p.window.Append(req.UserID, history.Entry{
		Role:     consts.RoleUser,
		Content:  text,
		ImageURL: req.ImageURL,
	})

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.LLMTimeout)
	defer cancel()

	started := p.now()
	reply, usage, err := p.completer.Complete(callCtx, toLLMMessages(p.window.Context(req.UserID)), req.ImageData)
	elapsed := p.now().Sub(started).Seconds()

	if err != nil {
		// Failed generations are free: no debit, user may retry immediately
		p.collector.RecordGeneration("failure", elapsed)
		logger.Error("Generation call failed", map[string]interface{}{
			"user_id": req.UserID,
			"error":   err.Error(),
		})
		p.replier.Reply(req.ChatID, consts.GenerationFailedMessage)
		return ResultGenerationFailed
	}

	p.collector.RecordGeneration("success", elapsed)

	p.window.Append(req.UserID, history.Entry{
		Role:    consts.RoleAssistant,
		Content: reply,
	})

	if err := p.ledger.DebitCredits(req.UserID, 1); err != nil {
		// The answer was produced; losing the debit is logged, not surfaced
		logger.Error("Failed to debit credit after successful generation", map[string]interface{}{
			"user_id": req.UserID,
			"error":   err.Error(),
		})
	} else {
		p.collector.RecordDebit(1)
	}

	fields := map[string]interface{}{
		"user_id": req.UserID,
		"balance": balance - 1,
	}
	if usage != nil {
		fields["total_tokens"] = usage.TotalTokens
	}
	logger.Info("Generation completed", fields)

	p.replier.Reply(req.ChatID, reply+"\n\n"+fmt.Sprintf(consts.BalanceTemplate, balance-1))
	return ResultSuccess
}

func (p *Processor) transcribe(ctx context.Context, req Request) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.LLMTimeout)
	defer cancel()

	return p.transcriber.Transcribe(callCtx, req.Voice.Filename, req.Voice.Data)
}

func toLLMMessages(entries []history.Entry) []llm.Message {
	out := make([]llm.Message, len(entries))
	for i, e := range entries {
		out[i] = llm.Message{Role: e.Role, Content: e.Content, ImageURL: e.ImageURL}
	}
	return out
}
