package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/airlens/airlens/internal/api/models"
	"github.com/airlens/airlens/internal/api/response"
	"github.com/airlens/airlens/internal/sim"
)

// writeTimeout bounds a single websocket frame write.
const writeTimeout = 10 * time.Second

// SimulationsHandler manages commute simulation sessions and their
// websocket streams.
type SimulationsHandler struct {
	registry *sim.Registry
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

// NewSimulationsHandler creates a new SimulationsHandler.
func NewSimulationsHandler(registry *sim.Registry, logger zerolog.Logger) *SimulationsHandler {
	return &SimulationsHandler{
		registry: registry,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Readings are public data; any origin may stream them.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// createSimulationRequest is the POST /v1/simulations body.
type createSimulationRequest struct {
	Start     *models.PointParam `json:"start"`
	End       *models.PointParam `json:"end"`
	RouteType string             `json:"route_type"`
}

// CreateSimulation handles POST /v1/simulations - start a session.
func (h *SimulationsHandler) CreateSimulation(w http.ResponseWriter, r *http.Request) {
	var input createSimulationRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if input.Start == nil || input.End == nil {
		response.BadRequest(w, r, "start and end are required", []models.FieldError{
			{Field: "start", Message: "required"},
			{Field: "end", Message: "required"},
		})
		return
	}
	if !input.Start.Valid() || !input.End.Valid() {
		response.BadRequest(w, r, "start and end must be valid coordinates", nil)
		return
	}

	snapshot := h.registry.Start(input.Start.Coordinate(), input.End.Coordinate(), input.RouteType)

	h.logger.Info().
		Str("session_id", snapshot.ID).
		Str("route_type", snapshot.RouteType).
		Msg("simulation session created")

	response.Created(w, r, "/v1/simulations/"+snapshot.ID, snapshot)
}

// GetSimulation handles GET /v1/simulations/{id} - session snapshot.
func (h *SimulationsHandler) GetSimulation(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.registry.Status(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, sim.ErrSessionNotFound) {
			response.NotFound(w, r, "simulation session not found")
			return
		}
		response.InternalError(w, r, "failed to read session")
		return
	}
	response.JSON(w, r, http.StatusOK, snapshot)
}

// StreamSimulation handles GET /v1/simulations/{id}/stream - websocket
// stream of simulation frames. Errors after the upgrade are delivered as
// error frames so clients always get a JSON payload.
func (h *SimulationsHandler) StreamSimulation(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Warn().Err(err).Str("session_id", sessionID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// Clear any server-level deadline inherited from the hijacked
	// connection; frame writes set their own.
	_ = conn.SetReadDeadline(time.Time{})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	frames, err := h.registry.Run(ctx, sessionID)
	if err != nil {
		h.writeFrame(conn, sim.ErrorMessage(sessionID, err))
		return
	}

	// Read pump: clients never send data frames, but reading is what
	// surfaces close frames and dead connections.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for frame := range frames {
		if !h.writeFrame(conn, frame) {
			cancel()
			// Drain so the registry loop can finish.
			for range frames {
			}
			return
		}
	}

	deadline := time.Now().Add(writeTimeout)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
}

func (h *SimulationsHandler) writeFrame(conn *websocket.Conn, frame sim.Message) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(frame); err != nil {
		h.logger.Debug().Err(err).Str("session_id", frame.SessionID).Msg("websocket write failed")
		return false
	}
	return true
}
