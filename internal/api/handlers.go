package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"mmsim/internal/session"
	"mmsim/pkg/types"
)

// ReportLister reads back persisted session reports. Nil disables the
// /api/reports endpoint's backing store.
type ReportLister interface {
	LoadReports() ([]session.FinalReport, error)
}

// Handlers holds all HTTP handler dependencies.
type Handlers struct {
	manager       *session.Manager
	reports       ReportLister
	defaultParams types.ParamBundle
	hub           *Hub
	logger        *slog.Logger
}

// NewHandlers creates a new handlers instance.
func NewHandlers(manager *session.Manager, reports ReportLister, defaults types.ParamBundle, hub *Hub, logger *slog.Logger) *Handlers {
	return &Handlers{
		manager:       manager,
		reports:       reports,
		defaultParams: defaults,
		hub:           hub,
		logger:        logger.With("component", "api-handlers"),
	}
}

// HandleHealth returns a simple health check response.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// HandleStart creates a new session.
func (h *Handlers) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, fmt.Errorf("%w: %v", types.ErrInvalidParams, err))
		return
	}

	params := h.defaultParams
	if req.Params != nil {
		params = *req.Params
	}

	id, err := h.manager.Start(params, req.InitialCapital, req.Seed)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, StartResponse{SessionID: id})
}

// HandlePoll advances one tick and returns the session snapshot.
func (h *Handlers) HandlePoll(w http.ResponseWriter, r *http.Request) {
	snap, err := h.manager.Poll(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleStop flags a session stopped.
func (h *Handlers) HandleStop(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Stop(r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// HandleTrade executes a manual trade on the session's behalf.
func (h *Handlers) HandleTrade(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, fmt.Errorf("%w: %v", types.ErrInvalidParams, err))
		return
	}

	var side types.Side
	switch req.Side {
	case "buy":
		side = types.Bid
	case "sell":
		side = types.Ask
	default:
		h.writeError(w, fmt.Errorf("%w: side %q must be buy or sell", types.ErrInvalidParams, req.Side))
		return
	}

	trade, err := h.manager.Trade(r.PathValue("id"), side, req.Size)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trade)
}

// HandleReset discards session state and rebuilds from stored params.
func (h *Handlers) HandleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Reset(r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// HandleUpdateParams stages a new parameter bundle, effective next tick.
func (h *Handlers) HandleUpdateParams(w http.ResponseWriter, r *http.Request) {
	var params types.ParamBundle
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		h.writeError(w, fmt.Errorf("%w: %v", types.ErrInvalidParams, err))
		return
	}
	if err := h.manager.UpdateParams(r.PathValue("id"), params); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// HandleReport computes the session's analytics summary on demand.
func (h *Handlers) HandleReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.manager.Report(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// HandleReports lists persisted reports of finished runs.
func (h *Handlers) HandleReports(w http.ResponseWriter, _ *http.Request) {
	if h.reports == nil {
		writeJSON(w, http.StatusOK, []session.FinalReport{})
		return
	}
	reports, err := h.reports.LoadReports()
	if err != nil {
		h.writeError(w, err)
		return
	}
	if reports == nil {
		reports = []session.FinalReport{}
	}
	writeJSON(w, http.StatusOK, reports)
}

// HandleWebSocket upgrades the connection into the live snapshot stream.
func (h *Handlers) HandleWebSocket(allowedOrigins []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(req *http.Request) bool {
				return originAllowed(req.Header.Get("Origin"), allowedOrigins, req.Host)
			},
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Error("websocket upgrade failed", "error", err)
			return
		}
		NewClient(h.hub, conn)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	tag, status := errorTag(err)
	if status >= 500 {
		h.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, ErrorResponse{Error: tag, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
