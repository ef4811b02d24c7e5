package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sproutfam/sprout/internal/auth"
	"github.com/sproutfam/sprout/internal/level"
	"github.com/sproutfam/sprout/internal/model"
)

type ShopHandler struct {
	levels *level.Service
	logger *slog.Logger
}

func NewShopHandler(levels *level.Service, logger *slog.Logger) *ShopHandler {
	return &ShopHandler{levels: levels, logger: logger}
}

func (h *ShopHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.levels.Summarize(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("level summary", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load level summary")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Grant issues any pending level-up rewards. Safe to call repeatedly.
func (h *ShopHandler) Grant(w http.ResponseWriter, r *http.Request) {
	res, err := h.levels.GrantIfDue(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("grant rewards", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to grant rewards")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *ShopHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.levels.ListItems()
	if err != nil {
		h.logger.Error("list shop items", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	if items == nil {
		items = []model.ShopItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ShopHandler) ListUnlocks(w http.ResponseWriter, r *http.Request) {
	unlocks, err := h.levels.ListUnlocks(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list unlocks", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list unlocks")
		return
	}
	if unlocks == nil {
		unlocks = []model.Unlock{}
	}
	writeJSON(w, http.StatusOK, unlocks)
}

type purchaseRequest struct {
	ItemCode string `json:"item_code"`
}

func (h *ShopHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	item, err := h.levels.Purchase(r.Context(), auth.UserID(r.Context()), req.ItemCode)
	switch {
	case errors.Is(err, level.ErrItemNotFound):
		writeError(w, http.StatusNotFound, "item not found")
	case errors.Is(err, level.ErrLevelTooLow):
		writeError(w, http.StatusForbidden, "level requirement not met")
	case errors.Is(err, level.ErrInsufficientBalance):
		writeError(w, http.StatusPaymentRequired, "not enough coins")
	case errors.Is(err, level.ErrAlreadyUnlocked):
		writeError(w, http.StatusConflict, "item already unlocked")
	case err != nil:
		h.logger.Error("purchase", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to purchase item")
	default:
		writeJSON(w, http.StatusOK, item)
	}
}
