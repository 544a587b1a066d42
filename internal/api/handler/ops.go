package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/airlens/airlens/internal/api/models"
	"github.com/airlens/airlens/internal/api/response"
	"github.com/airlens/airlens/internal/source/resilience"
)

// Pinger checks a backing store connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	feeds     *resilience.HealthBoard
	db        Pinger
}

// NewOpsHandler creates a new OpsHandler. feeds and db may be nil when
// the deployment runs without them.
func NewOpsHandler(version, buildTime string, feeds *resilience.HealthBoard, db Pinger) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		feeds:     feeds,
		db:        db,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   time.Now().UTC(),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
// Fails when the database is configured but unreachable.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			response.JSON(w, r, http.StatusServiceUnavailable, models.Health{
				Status: models.HealthStatusFail,
				Time:   time.Now().UTC(),
				Details: map[string]interface{}{
					"database": err.Error(),
				},
			})
			return
		}
	}

	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   time.Now().UTC(),
	})
}

// SystemStatus handles GET /v1/ops/status - feed and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       time.Now().UTC(),
		Subsystems: []models.SubsystemStatus{},
		Feeds:      []models.FeedStatus{},
	}

	if h.db != nil {
		sub := models.SubsystemStatus{Name: "postgres", Status: models.HealthStatusOK}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		if err := h.db.Ping(ctx); err != nil {
			sub.Status = models.HealthStatusFail
			sub.Detail = err.Error()
			status.Status = models.HealthStatusDegraded
		}
		cancel()
		status.Subsystems = append(status.Subsystems, sub)
	}

	if h.feeds != nil {
		for _, feed := range h.feeds.All() {
			fs := models.FeedStatus{
				Feed:          feed.Name,
				Status:        models.HealthStatusOK,
				CircuitState:  feed.CircuitState,
				Requests:      feed.Requests,
				Failures:      feed.Failures,
				LastSuccessAt: feed.LastSuccessAt,
				LastFailureAt: feed.LastFailureAt,
				LastError:     feed.LastError,
			}
			if !feed.Healthy() {
				fs.Status = models.HealthStatusDegraded
				status.Status = models.HealthStatusDegraded
			}
			status.Feeds = append(status.Feeds, fs)
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}
