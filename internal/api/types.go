package api

import (
	"errors"
	"net/http"

	"mmsim/pkg/types"
)

// StartRequest is the POST /api/sessions body. Params may be omitted to
// start with the server's configured defaults.
type StartRequest struct {
	Params         *types.ParamBundle `json:"params,omitempty"`
	InitialCapital float64            `json:"initial_capital"`
	Seed           int64              `json:"seed"`
}

// StartResponse returns the opaque id of the new session.
type StartResponse struct {
	SessionID string `json:"session_id"`
}

// TradeRequest is the POST /api/sessions/{id}/trade body. Size defaults
// to one lot.
type TradeRequest struct {
	Side string `json:"side"` // "buy" or "sell"
	Size int64  `json:"size,omitempty"`
}

// StatusResponse acknowledges state-changing calls with no payload.
type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the tagged error envelope for every failed call.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// StreamMessage wraps one broadcast frame on the /ws live stream.
type StreamMessage struct {
	Type     string                  `json:"type"` // always "snapshots"
	Sessions []types.SessionSnapshot `json:"sessions"`
}

// errorTag maps a core error to its wire tag and HTTP status.
func errorTag(err error) (string, int) {
	switch {
	case errors.Is(err, types.ErrUnknownSession):
		return "unknown_session", http.StatusNotFound
	case errors.Is(err, types.ErrInvalidParams):
		return "invalid_params", http.StatusBadRequest
	case errors.Is(err, types.ErrBusy):
		return "busy", http.StatusConflict
	case errors.Is(err, types.ErrInsufficientLiquidity):
		return "insufficient_liquidity", http.StatusUnprocessableEntity
	case errors.Is(err, types.ErrInvalidOrder):
		return "invalid_order", http.StatusBadRequest
	case errors.Is(err, types.ErrNotFound):
		return "not_found", http.StatusNotFound
	default:
		return "internal", http.StatusInternalServerError
	}
}
