package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sproutfam/sprout/internal/auth"
	"github.com/sproutfam/sprout/internal/challenge"
	"github.com/sproutfam/sprout/internal/model"
)

type ChallengeHandler struct {
	challenges *challenge.Service
	logger     *slog.Logger
}

func NewChallengeHandler(challenges *challenge.Service, logger *slog.Logger) *ChallengeHandler {
	return &ChallengeHandler{challenges: challenges, logger: logger}
}

type createTemplateRequest struct {
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Type           string          `json:"type"`
	Params         json.RawMessage `json:"params"`
	RewardCurrency int64           `json:"reward_currency"`
	RewardPoints   int             `json:"reward_points"`
	DurationDays   int             `json:"duration_days"`
}

func (h *ChallengeHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req createTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	familyID := auth.FamilyID(r.Context())
	tpl := model.ChallengeTemplate{
		Title:          req.Title,
		Description:    req.Description,
		Type:           req.Type,
		ParamsJSON:     string(req.Params),
		RewardCurrency: req.RewardCurrency,
		RewardPoints:   req.RewardPoints,
		DurationDays:   req.DurationDays,
	}
	if familyID != 0 {
		tpl.FamilyID = &familyID
	}

	created, err := h.challenges.CreateTemplate(tpl)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *ChallengeHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.challenges.ListTemplates(auth.FamilyID(r.Context()))
	if err != nil {
		h.logger.Error("list templates", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list templates")
		return
	}
	if templates == nil {
		templates = []model.ChallengeTemplate{}
	}
	writeJSON(w, http.StatusOK, templates)
}

type startRequest struct {
	TemplateID int64 `json:"template_id"`
}

func (h *ChallengeHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	inst, err := h.challenges.Start(req.TemplateID, auth.UserID(r.Context()), time.Now().UTC())
	if errors.Is(err, challenge.ErrTemplateNotFound) {
		writeError(w, http.StatusNotFound, "template not found")
		return
	}
	if err != nil {
		h.logger.Error("start challenge", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start challenge")
		return
	}
	writeJSON(w, http.StatusCreated, inst)
}

func (h *ChallengeHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	instances, err := h.challenges.ListByParticipant(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list challenges", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list challenges")
		return
	}
	if instances == nil {
		instances = []model.ChallengeInstance{}
	}
	writeJSON(w, http.StatusOK, instances)
}

type checkinRequest struct {
	Date  string `json:"date"` // YYYY-MM-DD, defaults to today
	Value int64  `json:"value"`
	Note  string `json:"note"`
}

func (h *ChallengeHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req checkinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	date := time.Now().UTC()
	if req.Date != "" {
		date, err = time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
	}

	checkin, err := h.challenges.CheckIn(id, date, req.Value, req.Note)
	switch {
	case errors.Is(err, challenge.ErrInstanceNotFound):
		writeError(w, http.StatusNotFound, "challenge not found")
	case errors.Is(err, challenge.ErrNotActive):
		writeError(w, http.StatusConflict, "challenge is not active")
	case errors.Is(err, challenge.ErrNotHabit):
		writeError(w, http.StatusBadRequest, "check-ins only apply to habit challenges")
	case errors.Is(err, challenge.ErrOutsideWindow):
		writeError(w, http.StatusBadRequest, "date is outside the challenge window")
	case errors.Is(err, challenge.ErrDuplicateCheckin):
		writeError(w, http.StatusConflict, "already checked in for that date")
	case err != nil:
		h.logger.Error("check in", "instance_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to check in")
	default:
		writeJSON(w, http.StatusCreated, checkin)
	}
}

func (h *ChallengeHandler) Progress(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	inst, res, err := h.challenges.Progress(id, time.Now().UTC())
	if errors.Is(err, challenge.ErrInstanceNotFound) {
		writeError(w, http.StatusNotFound, "challenge not found")
		return
	}
	if err != nil {
		h.logger.Error("challenge progress", "instance_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute progress")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"instance": inst, "progress": res})
}

func (h *ChallengeHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	inst, err := h.challenges.Cancel(id)
	if errors.Is(err, challenge.ErrInstanceNotFound) {
		writeError(w, http.StatusNotFound, "challenge not found")
		return
	}
	if err != nil {
		h.logger.Error("cancel challenge", "instance_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to cancel challenge")
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

func (h *ChallengeHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	inst, err := h.challenges.Finalize(r.Context(), id, time.Now().UTC())
	if errors.Is(err, challenge.ErrInstanceNotFound) {
		writeError(w, http.StatusNotFound, "challenge not found")
		return
	}
	if err != nil {
		h.logger.Error("finalize challenge", "instance_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to finalize challenge")
		return
	}
	writeJSON(w, http.StatusOK, inst)
}
