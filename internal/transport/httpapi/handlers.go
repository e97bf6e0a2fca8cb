package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/sandevgo/momentum/internal/core"
	"github.com/sandevgo/momentum/internal/service/chat"
	"github.com/sandevgo/momentum/internal/service/ingest"
	"github.com/sandevgo/momentum/internal/service/planner"
	"github.com/sandevgo/momentum/internal/service/retrieval"
	"github.com/sandevgo/momentum/internal/service/skills"
	"github.com/sandevgo/momentum/pkg/log"
)

// Handler bundles the services behind the HTTP surface.
type Handler struct {
	chat        *chat.Service
	ingestor    *ingest.Ingestor
	planner     *planner.Planner
	completions *planner.Completions
	skills      *skills.Service
	engine      *retrieval.Engine
	hub         *Hub

	upgrader websocket.Upgrader
}

func NewHandler(chatSvc *chat.Service, ingestor *ingest.Ingestor, dayPlanner *planner.Planner, completions *planner.Completions, skillsSvc *skills.Service, engine *retrieval.Engine, hub *Hub) *Handler {
	return &Handler{
		chat:        chatSvc,
		ingestor:    ingestor,
		planner:     dayPlanner,
		completions: completions,
		skills:      skillsSvc,
		engine:      engine,
		hub:         hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("POST /chat", h.handleChat)
	mux.HandleFunc("POST /ingest", h.handleIngest)
	mux.HandleFunc("POST /ingest/syllabus", h.handleIngestSyllabus)
	mux.HandleFunc("POST /plan", h.handlePlan)
	mux.HandleFunc("POST /rebalance", h.handleRebalance)
	mux.HandleFunc("POST /complete", h.handleComplete)
	mux.HandleFunc("POST /skills/suggestions", h.handleSkillSuggestions)
	mux.HandleFunc("POST /skills/roadmap", h.handleSkillRoadmap)
	mux.HandleFunc("POST /retrieve", h.handleRetrieve)
	mux.HandleFunc("GET /ws/{user_id}", h.handleWS)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.chat.Chat(r.Context(), req)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, resp)
}

type ingestRequest struct {
	UserID   string `json:"user_id"`
	Type     string `json:"type,omitempty"`
	Text     string `json:"text"`
	CourseID string `json:"course_id,omitempty"`
	Priority string `json:"priority,omitempty"`
	HTML     bool   `json:"html,omitempty"`
}

func (r ingestRequest) document() ingest.Document {
	return ingest.Document{
		UserID:   r.UserID,
		Type:     r.Type,
		Text:     r.Text,
		CourseID: r.CourseID,
		Priority: r.Priority,
		HTML:     r.HTML,
	}
}

func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	receipt, err := h.ingestor.Ingest(r.Context(), req.document())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, receipt)
}

func (h *Handler) handleIngestSyllabus(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	receipt, err := h.ingestor.ReplaceSyllabus(r.Context(), req.document())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, receipt)
}

func (h *Handler) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req planner.PlanRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.planner.Plan(r.Context(), req)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	h.hub.Send(r.Context(), req.UserID, Event{Type: "plan", Payload: resp})
	writeJSON(r.Context(), w, http.StatusOK, resp)
}

func (h *Handler) handleRebalance(w http.ResponseWriter, r *http.Request) {
	var req planner.PlanRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp := h.planner.Rebalance(r.Context(), req)
	h.hub.Send(r.Context(), req.UserID, Event{Type: "rebalance", Payload: resp})
	writeJSON(r.Context(), w, http.StatusOK, resp)
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req planner.CompleteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	reward, err := h.completions.Record(r.Context(), req)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	resp := map[string]any{"status": "ok", "reward": reward}
	h.hub.Send(r.Context(), req.UserID, Event{Type: "complete", Payload: map[string]any{
		"task_id": req.TaskID,
		"outcome": req.Outcome,
		"reward":  reward,
	}})
	writeJSON(r.Context(), w, http.StatusOK, resp)
}

func (h *Handler) handleSkillSuggestions(w http.ResponseWriter, r *http.Request) {
	var req skills.SuggestionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	suggestions, err := h.skills.Suggest(r.Context(), req)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

func (h *Handler) handleSkillRoadmap(w http.ResponseWriter, r *http.Request) {
	var req skills.RoadmapRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	roadmap, err := h.skills.Roadmap(r.Context(), req)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, roadmap)
}

type retrieveRequest struct {
	UserID string `json:"user_id"`
	Query  string `json:"query"`
	K      int    `json:"k,omitempty"`
}

// handleRetrieve exposes the raw retrieval pipeline for debugging and
// frontend experiments.
func (h *Handler) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rreq := retrieval.NewRequest(req.UserID, req.Query)
	if req.K > 0 {
		rreq.K = req.K
	}
	fragments, err := h.engine.Retrieve(r.Context(), rreq)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	if fragments == nil {
		fragments = []core.ScoredFragment{}
	}
	writeJSON(r.Context(), w, http.StatusOK, map[string]any{"fragments": fragments})
}

func (h *Handler) handleWS(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.FromCtx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	h.hub.Serve(r.Context(), userID, conn)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.FromCtx(ctx).Error().Err(err).Msg("response encoding failed")
	}
}

// writeError maps validation failures to 400 and everything else to 500.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, core.ErrInvalid) {
		status = http.StatusBadRequest
	} else {
		log.FromCtx(ctx).Error().Err(err).Msg("request failed")
	}
	writeJSON(ctx, w, status, map[string]string{"error": err.Error()})
}
