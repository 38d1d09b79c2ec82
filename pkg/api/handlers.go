package api

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/yesbabylon/fleet-alert-gateway/pkg/models"
	"github.com/yesbabylon/fleet-alert-gateway/pkg/services"
)

// APIHandler handles HTTP API requests
type APIHandler struct {
	fleetService *services.FleetService
	orchestrator *services.Orchestrator
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(fleetService *services.FleetService, orchestrator *services.Orchestrator) *APIHandler {
	return &APIHandler{
		fleetService: fleetService,
		orchestrator: orchestrator,
	}
}

// GetTargets returns all monitored targets
func (h *APIHandler) GetTargets(c echo.Context) error {
	targets, err := h.fleetService.GetTargets(c.Request().Context())
	if err != nil {
		logrus.Errorf("Error getting targets: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to get targets"})
	}
	return c.JSON(http.StatusOK, targets)
}

// GetTarget returns a target by ID
func (h *APIHandler) GetTarget(c echo.Context) error {
	id := c.Param("id")
	target, err := h.fleetService.GetTarget(c.Request().Context(), id)
	if err != nil {
		logrus.Errorf("Error getting target %s: %v", id, err)
		return c.JSON(http.StatusNotFound, map[string]string{"error": fmt.Sprintf("Target with ID %s not found", id)})
	}
	return c.JSON(http.StatusOK, target)
}

// GetTargetStatuses returns the recent status history of a target
func (h *APIHandler) GetTargetStatuses(c echo.Context) error {
	id := c.Param("id")
	records, err := h.fleetService.RecentStatuses(c.Request().Context(), id, 50)
	if err != nil {
		logrus.Errorf("Error getting statuses for target %s: %v", id, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to get statuses"})
	}
	return c.JSON(http.StatusOK, records)
}

// CreateTarget registers a new target in the catalog
func (h *APIHandler) CreateTarget(c echo.Context) error {
	target := new(models.Target)
	if err := c.Bind(target); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if target.Name == "" || target.Kind == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "name and kind are required"})
	}
	if target.ID == "" {
		target.ID = uuid.New().String()
	}

	if err := h.fleetService.SaveTarget(c.Request().Context(), target); err != nil {
		logrus.Errorf("Error creating target: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create target"})
	}
	return c.JSON(http.StatusCreated, target)
}

// PollTarget polls a single target on demand and returns the fresh record
func (h *APIHandler) PollTarget(c echo.Context) error {
	id := c.Param("id")
	record, err := h.orchestrator.PollTarget(c.Request().Context(), id)
	if err != nil {
		logrus.Errorf("Error polling target %s: %v", id, err)
		return c.JSON(http.StatusBadGateway, map[string]string{"error": fmt.Sprintf("Failed to poll target %s", id)})
	}
	return c.JSON(http.StatusOK, record)
}

// GetPolicies returns all alert policies
func (h *APIHandler) GetPolicies(c echo.Context) error {
	policies, err := h.fleetService.GetPolicies(c.Request().Context())
	if err != nil {
		logrus.Errorf("Error getting policies: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to get policies"})
	}
	return c.JSON(http.StatusOK, policies)
}

// GetPolicy returns a policy by ID
func (h *APIHandler) GetPolicy(c echo.Context) error {
	id := c.Param("id")
	policy, err := h.fleetService.GetPolicy(c.Request().Context(), id)
	if err != nil {
		logrus.Errorf("Error getting policy %s: %v", id, err)
		return c.JSON(http.StatusNotFound, map[string]string{"error": fmt.Sprintf("Policy with ID %s not found", id)})
	}
	return c.JSON(http.StatusOK, policy)
}

// CreatePolicy creates a new alert policy
func (h *APIHandler) CreatePolicy(c echo.Context) error {
	policy := new(models.AlertPolicy)
	if err := c.Bind(policy); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if policy.Name == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "name is required"})
	}
	if policy.ID == "" {
		policy.ID = uuid.New().String()
	}
	if policy.Scope == "" {
		policy.Scope = models.ScopeAll
	}

	if err := h.fleetService.SavePolicy(c.Request().Context(), policy); err != nil {
		logrus.Errorf("Error creating policy: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create policy"})
	}
	return c.JSON(http.StatusCreated, policy)
}

// CreateTrigger creates a new alert trigger
func (h *APIHandler) CreateTrigger(c echo.Context) error {
	trigger := new(models.AlertTrigger)
	if err := c.Bind(trigger); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if trigger.ID == "" {
		trigger.ID = uuid.New().String()
	}
	if trigger.Scope == "" {
		trigger.Scope = models.ScopeAll
	}
	if err := services.ValidateTrigger(trigger); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if err := h.fleetService.SaveTrigger(c.Request().Context(), trigger); err != nil {
		logrus.Errorf("Error creating trigger: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create trigger"})
	}
	return c.JSON(http.StatusCreated, trigger)
}

// GetTriggers returns all alert triggers
func (h *APIHandler) GetTriggers(c echo.Context) error {
	triggers, err := h.fleetService.GetTriggers(c.Request().Context())
	if err != nil {
		logrus.Errorf("Error getting triggers: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to get triggers"})
	}
	return c.JSON(http.StatusOK, triggers)
}

// GetAlerts returns recent alerts
func (h *APIHandler) GetAlerts(c echo.Context) error {
	alerts, err := h.fleetService.GetAlerts(c.Request().Context())
	if err != nil {
		logrus.Errorf("Error getting alerts: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to get alerts"})
	}
	return c.JSON(http.StatusOK, alerts)
}

// RunCycle triggers a monitoring cycle immediately
func (h *APIHandler) RunCycle(c echo.Context) error {
	result, err := h.orchestrator.RunCycle(c.Request().Context())
	if err != nil {
		logrus.Errorf("Error running cycle: %v", err)
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}

// HealthCheck returns service liveness
func (h *APIHandler) HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// RegisterRoutes registers all API routes
func (h *APIHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.HealthCheck)

	e.GET("/api/targets", h.GetTargets)
	e.GET("/api/targets/:id", h.GetTarget)
	e.GET("/api/targets/:id/statuses", h.GetTargetStatuses)
	e.POST("/api/targets", h.CreateTarget)
	e.POST("/api/targets/:id/poll", h.PollTarget)

	e.GET("/api/policies", h.GetPolicies)
	e.GET("/api/policies/:id", h.GetPolicy)
	e.POST("/api/policies", h.CreatePolicy)

	e.GET("/api/triggers", h.GetTriggers)
	e.POST("/api/triggers", h.CreateTrigger)

	e.GET("/api/alerts", h.GetAlerts)

	e.POST("/api/cycles", h.RunCycle)
}
