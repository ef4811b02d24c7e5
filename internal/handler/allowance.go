package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sproutfam/sprout/internal/allowance"
	"github.com/sproutfam/sprout/internal/auth"
	"github.com/sproutfam/sprout/internal/model"
	"github.com/sproutfam/sprout/internal/store"
)

type AllowanceHandler struct {
	allowances *allowance.Service
	rules      *store.AllowanceRuleStore
	logger     *slog.Logger
}

func NewAllowanceHandler(allowances *allowance.Service, rules *store.AllowanceRuleStore, logger *slog.Logger) *AllowanceHandler {
	return &AllowanceHandler{allowances: allowances, rules: rules, logger: logger}
}

type createRuleRequest struct {
	RecipientID int64  `json:"recipient_id"`
	Amount      int64  `json:"amount"`
	Frequency   string `json:"frequency"`
	DayOfWeek   int    `json:"day_of_week"`
	DayOfMonth  int    `json:"day_of_month"`
}

func (h *AllowanceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	rule, err := h.allowances.CreateRule(model.AllowanceRule{
		IssuerID:    auth.UserID(r.Context()),
		RecipientID: req.RecipientID,
		Amount:      req.Amount,
		Frequency:   req.Frequency,
		DayOfWeek:   req.DayOfWeek,
		DayOfMonth:  req.DayOfMonth,
	}, time.Now().UTC())
	if errors.Is(err, allowance.ErrInvalidRule) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("create allowance rule", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create rule")
		return
	}

	writeJSON(w, http.StatusCreated, rule)
}

func (h *AllowanceHandler) List(w http.ResponseWriter, r *http.Request) {
	rules, err := h.rules.ListByIssuer(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list allowance rules", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list rules")
		return
	}
	if rules == nil {
		rules = []model.AllowanceRule{}
	}
	writeJSON(w, http.StatusOK, rules)
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

func (h *AllowanceHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req setActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := h.allowances.SetActive(id, req.Active); err != nil {
		if errors.Is(err, allowance.ErrRuleNotFound) {
			writeError(w, http.StatusNotFound, "rule not found")
			return
		}
		h.logger.Error("set rule active", "rule_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update rule")
		return
	}

	rule, err := h.rules.GetByID(id)
	if err != nil {
		h.logger.Error("get allowance rule", "rule_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update rule")
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// RunDue is the due-transfer entry point for deployments that prefer an
// explicit trigger over the request-driven tick.
func (h *AllowanceHandler) RunDue(w http.ResponseWriter, r *http.Request) {
	res, err := h.allowances.RunDue(r.Context(), time.Now().UTC())
	if err != nil {
		h.logger.Error("run due transfers", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to run due transfers")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
