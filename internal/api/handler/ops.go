// Package handler provides HTTP handlers for the Guardian API.
package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/guardian-safety/guardian/internal/api/models"
	"github.com/guardian-safety/guardian/internal/api/response"
	"github.com/guardian-safety/guardian/internal/inference"
	"github.com/guardian-safety/guardian/internal/provider/resilience"
	"github.com/guardian-safety/guardian/internal/safety"
	"github.com/guardian-safety/guardian/internal/threat"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string

	// Optional subsystems, reported by the status endpoint when wired.
	queue     *inference.Queue
	providers *resilience.Registry
	safety    *safety.Service
	registry  *threat.Registry
}

// OpsHandlerConfig holds the subsystems the status endpoint reports on.
type OpsHandlerConfig struct {
	Version   string
	BuildTime string
	Queue     *inference.Queue
	Providers *resilience.Registry
	Safety    *safety.Service
	Registry  *threat.Registry
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsHandlerConfig) *OpsHandler {
	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		queue:     cfg.Queue,
		providers: cfg.Providers,
		safety:    cfg.Safety,
		registry:  cfg.Registry,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - subsystem and provider status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	now := models.Timestamp(time.Now())
	status := models.SystemStatus{
		Status: models.HealthStatusOK,
		Time:   now,
	}

	if h.queue != nil {
		executed, deferred, pending := h.queue.Stats()
		detail := fmt.Sprintf("executed=%d deferred=%d pending=%d", executed, deferred, pending)
		status.Subsystems = append(status.Subsystems, models.SubsystemStatus{
			Name:   "inference-queue",
			Status: models.HealthStatusOK,
			Detail: &detail,
		})
	}
	if h.safety != nil {
		detail := fmt.Sprintf("entries=%d", h.safety.CacheSize())
		status.Subsystems = append(status.Subsystems, models.SubsystemStatus{
			Name:   "safety-cache",
			Status: models.HealthStatusOK,
			Detail: &detail,
		})
	}
	if h.registry != nil {
		detail := fmt.Sprintf("active=%d", len(h.registry.Active()))
		status.Subsystems = append(status.Subsystems, models.SubsystemStatus{
			Name:   "threat-registry",
			Status: models.HealthStatusOK,
			Detail: &detail,
		})
	}

	if h.providers != nil {
		for _, p := range h.providers.GetAllHealth() {
			ps := models.ProviderStatus{
				Provider: p.Name,
				Status:   providerStatus(p),
			}
			if p.LastSuccessAt != nil {
				t := models.Timestamp(*p.LastSuccessAt)
				ps.LastSuccessAt = &t
			}
			if p.LastFailureAt != nil {
				t := models.Timestamp(*p.LastFailureAt)
				ps.LastFailureAt = &t
			}
			if p.LastError != "" {
				msg := p.LastError
				ps.Message = &msg
			}
			if ps.Status != models.HealthStatusOK {
				status.Status = models.HealthStatusDegraded
			}
			status.Providers = append(status.Providers, ps)
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func providerStatus(p *resilience.ProviderHealth) models.HealthStatus {
	switch {
	case p.IsUnhealthy():
		return models.HealthStatusFail
	case p.IsDegraded():
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusOK
	}
}
