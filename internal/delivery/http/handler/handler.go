package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/user/review-harvester/internal/delivery/http/request"
	"github.com/user/review-harvester/internal/delivery/http/response"
	"github.com/user/review-harvester/internal/entity"
	"github.com/user/review-harvester/internal/repository"
	"github.com/user/review-harvester/internal/usecase"
)

type Handler struct {
	orchestrator usecase.HarvestOrchestrator
}

func NewHandler(orchestrator usecase.HarvestOrchestrator) *Handler {
	return &Handler{
		orchestrator: orchestrator,
	}
}

func (h *Handler) HandleSubmitHarvest(w http.ResponseWriter, r *http.Request) {
	source := entity.SourceKind(r.PathValue("source"))

	var req request.SubmitHarvestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	taskID, err := h.orchestrator.Submit(r.Context(), entity.HarvestRequest{
		Product:    req.ProductName,
		Brand:      req.Brand,
		StoreURLs:  req.StoreURLs,
		SurfaceURL: req.ShoppingSurfaceURL,
		Kind:       source,
	})
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrInvalidRequest):
			h.writeJSONError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, usecase.ErrQueueFull):
			h.writeJSONError(w, err.Error(), http.StatusServiceUnavailable)
		default:
			slog.Error("Failed to submit harvest", "source", source, "error", err)
			h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	resp := response.SubmitHarvestResponse{
		Success:         true,
		TaskID:          taskID,
		Status:          string(entity.PhasePending),
		PollingEndpoint: fmt.Sprintf("/api/reviews/%s/status/%s", source, taskID),
	}
	h.writeJSON(w, http.StatusAccepted, resp)
}

func (h *Handler) HandleHarvestStatus(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("task_id")
	if taskID == "" {
		h.writeJSONError(w, "task_id is required", http.StatusBadRequest)
		return
	}

	state, err := h.orchestrator.Poll(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			h.writeJSONError(w, "No job found for the given task_id", http.StatusNotFound)
			return
		}
		slog.Error("Failed to poll job state", "task_id", taskID, "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	resp := response.HarvestStatusResponse{
		TaskID:    state.ID,
		Status:    string(state.Phase),
		Ready:     state.Phase.Terminal(),
		Result:    state.Result,
		StateMeta: state.Progress,
		Error:     state.Error,
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to write JSON response", "error", err)
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
