package telegram

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/indiwide/gembot/internal/consts"
	"github.com/indiwide/gembot/internal/logger"
	"github.com/indiwide/gembot/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// rewardStore is the ledger surface the reward endpoint needs
type rewardStore interface {
	AddCredits(telegramID int64, amount int64) (bool, error)
	GetCredits(telegramID int64) (int64, error)
	RecordEvent(eventType string, telegramID int64) error
}

// RewardServer exposes the external credit-grant endpoint used by the ad
// provider after a watched rewarded ad, plus health and metrics
type RewardServer struct {
	store     rewardStore
	collector *metrics.Collector
	notify    func(chatID int64, text string)
}

type rewardRequest struct {
	UserID int64 `json:"user_id"`
	Amount int64 `json:"amount,omitempty"`
}

type rewardResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func NewRewardServer(store rewardStore, collector *metrics.Collector, notify func(chatID int64, text string)) *RewardServer {
	return &RewardServer{
		store:     store,
		collector: collector,
		notify:    notify,
	}
}

// Handler builds the HTTP mux for the reward server
func (rs *RewardServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/reward", rs.handleReward)
	mux.HandleFunc("/health", rs.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// handleReward credits a user after an externally verified reward event.
// For private chats the Telegram chat id equals the user id, so the grant
// notification is delivered directly.
func (rs *RewardServer) handleReward(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeRewardJSON(w, http.StatusMethodNotAllowed, rewardResponse{Error: "method not allowed"})
		return
	}

	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRewardJSON(w, http.StatusBadRequest, rewardResponse{Error: "invalid JSON body"})
		return
	}

	if req.UserID == 0 {
		writeRewardJSON(w, http.StatusBadRequest, rewardResponse{Error: "user_id is required"})
		return
	}

	amount := req.Amount
	if amount <= 0 {
		amount = consts.TopupSmall
	}

	ok, err := rs.store.AddCredits(req.UserID, amount)
	if err != nil {
		logger.Error("Reward grant failed", map[string]interface{}{
			"user_id": req.UserID,
			"amount":  amount,
			"error":   err.Error(),
		})
		writeRewardJSON(w, http.StatusInternalServerError, rewardResponse{Error: "failed to grant credits"})
		return
	}
	if !ok {
		writeRewardJSON(w, http.StatusNotFound, rewardResponse{Error: "user not found"})
		return
	}

	if err := rs.store.RecordEvent(consts.EventReward, req.UserID); err != nil {
		logger.Warn("Failed to record reward event", map[string]interface{}{
			"user_id": req.UserID,
			"error":   err.Error(),
		})
	}
	rs.collector.RecordGrant("reward", amount)

	balance, err := rs.store.GetCredits(req.UserID)
	if err != nil {
		logger.Warn("Failed to read balance after reward", map[string]interface{}{
			"user_id": req.UserID,
			"error":   err.Error(),
		})
	} else if rs.notify != nil {
		rs.notify(req.UserID, fmt.Sprintf(consts.RewardGrantedTemplate, amount, balance))
	}

	logger.Info("Reward granted", map[string]interface{}{
		"user_id": req.UserID,
		"amount":  amount,
	})

	writeRewardJSON(w, http.StatusOK, rewardResponse{
		Success: true,
		Message: fmt.Sprintf("granted %d credits", amount),
	})
}

func (rs *RewardServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeRewardJSON(w, http.StatusOK, rewardResponse{Success: true, Message: "ok"})
}

func writeRewardJSON(w http.ResponseWriter, status int, resp rewardResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Warn("Failed to encode reward response", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// StartRewardServer runs the reward HTTP server in the background
func (b *Bot) StartRewardServer() {
	server := NewRewardServer(b.db, b.collector, b.Reply)

	addr := ":" + b.config.RewardPort
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Reward server listening", map[string]interface{}{
			"addr": addr,
		})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Reward server failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()
}
