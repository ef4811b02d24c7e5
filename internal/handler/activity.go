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

type ActivityHandler struct {
	activities *store.ActivityStore
	users      *store.UserStore
	allowances *allowance.Service
	logger     *slog.Logger
}

func NewActivityHandler(activities *store.ActivityStore, users *store.UserStore, allowances *allowance.Service, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{activities: activities, users: users, allowances: allowances, logger: logger}
}

// recordable kinds a user may write for themselves. Reward kinds are only
// ever produced by the engine.
var manualKinds = map[string]bool{
	model.ActivitySaving:       true,
	model.ActivityPlannedSpend: true,
	model.ActivityImpulseSpend: true,
}

type recordActivityRequest struct {
	Kind     string `json:"kind"`
	Amount   int64  `json:"amount"`
	Category string `json:"category"`
}

func (h *ActivityHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req recordActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !manualKinds[req.Kind] {
		writeError(w, http.StatusBadRequest, "kind must be saving, planned_spend or impulse_spend")
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	activity, err := h.activities.Append(model.Activity{
		SubjectID:  auth.UserID(r.Context()),
		Kind:       req.Kind,
		Amount:     req.Amount,
		Category:   req.Category,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		h.logger.Error("record activity", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record activity")
		return
	}
	writeJSON(w, http.StatusCreated, activity)
}

type manualAllowanceRequest struct {
	RecipientID int64 `json:"recipient_id"`
	Amount      int64 `json:"amount"`
}

// RecordAllowance pays a one-off allowance to a dependent in the guardian's
// family. The recipient's auto-save policy applies to it like any scheduled
// transfer.
func (h *ActivityHandler) RecordAllowance(w http.ResponseWriter, r *http.Request) {
	var req manualAllowanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	recipient, err := h.users.GetByID(req.RecipientID)
	if err != nil {
		h.logger.Error("load recipient", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record allowance")
		return
	}
	fam := auth.FamilyID(r.Context())
	if recipient == nil || recipient.FamilyID == nil || fam == 0 || *recipient.FamilyID != fam {
		writeError(w, http.StatusNotFound, "recipient not found in your family")
		return
	}

	activity, err := h.allowances.RecordManual(r.Context(), req.RecipientID, req.Amount)
	if errors.Is(err, allowance.ErrInvalidRule) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("record manual allowance", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record allowance")
		return
	}
	writeJSON(w, http.StatusCreated, activity)
}

// List returns the caller's ledger, newest first. Optional query params:
// kind, from, to (YYYY-MM-DD); the window defaults to the last 90 days.
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -90)
	to := now.AddDate(0, 0, 1)

	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from date")
			return
		}
		from = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to date")
			return
		}
		to = t.AddDate(0, 0, 1)
	}

	activities, err := h.activities.ListBySubject(auth.UserID(r.Context()), r.URL.Query().Get("kind"), from, to)
	if err != nil {
		h.logger.Error("list activities", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list activities")
		return
	}
	if activities == nil {
		activities = []model.Activity{}
	}
	writeJSON(w, http.StatusOK, activities)
}
