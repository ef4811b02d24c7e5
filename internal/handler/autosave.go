package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sproutfam/sprout/internal/auth"
	"github.com/sproutfam/sprout/internal/autosave"
	"github.com/sproutfam/sprout/internal/model"
)

type AutoSaveHandler struct {
	autosaves *autosave.Service
	logger    *slog.Logger
}

func NewAutoSaveHandler(autosaves *autosave.Service, logger *slog.Logger) *AutoSaveHandler {
	return &AutoSaveHandler{autosaves: autosaves, logger: logger}
}

func (h *AutoSaveHandler) Get(w http.ResponseWriter, r *http.Request) {
	setting, err := h.autosaves.Get(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("get autosave setting", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load setting")
		return
	}
	if setting == nil {
		setting = &model.AutoSaveSetting{SubjectID: auth.UserID(r.Context())}
	}
	writeJSON(w, http.StatusOK, setting)
}

type setPolicyRequest struct {
	Percent int  `json:"percent"`
	Active  bool `json:"active"`
}

func (h *AutoSaveHandler) Set(w http.ResponseWriter, r *http.Request) {
	var req setPolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	setting, err := h.autosaves.SetPolicy(auth.UserID(r.Context()), req.Percent, req.Active)
	if err != nil {
		h.logger.Error("set autosave policy", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save setting")
		return
	}
	writeJSON(w, http.StatusOK, setting)
}

func (h *AutoSaveHandler) ClaimWeekly(w http.ResponseWriter, r *http.Request) {
	res, err := h.autosaves.ClaimWeeklyBonus(r.Context(), auth.UserID(r.Context()), time.Now().UTC())
	switch {
	case errors.Is(err, autosave.ErrAlreadyClaimed):
		writeError(w, http.StatusConflict, "bonus already claimed for that week")
	case errors.Is(err, autosave.ErrNotEligible):
		writeError(w, http.StatusUnprocessableEntity, "weekly bonus conditions not met")
	case err != nil:
		h.logger.Error("claim weekly bonus", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to claim bonus")
	default:
		writeJSON(w, http.StatusOK, res)
	}
}
