package handlers

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/corptransit/transport-request-backend/internal/database"
	"github.com/corptransit/transport-request-backend/internal/middleware"
	"github.com/corptransit/transport-request-backend/internal/models"
	"github.com/corptransit/transport-request-backend/internal/realtime"
	"github.com/corptransit/transport-request-backend/internal/services"
	"github.com/corptransit/transport-request-backend/internal/utils"
)

// DriverHandler handles driver pool management endpoints
type DriverHandler struct {
	driverRepo   *database.DriverRepository
	hub          realtime.Broadcaster
	auditService *services.AuditService
	logger       *logrus.Logger
}

// NewDriverHandler creates a new driver handler
func NewDriverHandler(driverRepo *database.DriverRepository, hub realtime.Broadcaster, auditService *services.AuditService, logger *logrus.Logger) *DriverHandler {
	return &DriverHandler{
		driverRepo:   driverRepo,
		hub:          hub,
		auditService: auditService,
		logger:       logger,
	}
}

// List retrieves all drivers
// GET /api/drivers
func (h *DriverHandler) List(c *gin.Context) {
	drivers, err := h.driverRepo.List()
	if err != nil {
		h.logger.WithError(err).Error("Failed to list drivers")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch drivers"})
		return
	}

	c.JSON(http.StatusOK, drivers)
}

// Create adds a new driver to the pool
// POST /api/drivers
func (h *DriverHandler) Create(c *gin.Context) {
	var req models.CreateDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status := models.DriverStatusAvailable
	if req.Status != nil {
		status = models.DriverStatus(*req.Status)
	}

	driver := &models.Driver{
		DriverName: req.DriverName,
		Age:        req.Age,
		PhoneNo:    req.PhoneNo,
		LicenseNo:  req.LicenseNo,
		Status:     status,
	}

	if err := h.driverRepo.Create(driver); err != nil {
		h.logger.WithError(err).Error("Failed to create driver")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create driver"})
		return
	}

	h.hub.Emit("driver:created", driver)
	h.logFleet(c, "driver_created", "driver", driver.ID)

	c.JSON(http.StatusCreated, driver)
}

// Delete removes a driver from the pool
// DELETE /api/drivers/:id
func (h *DriverHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid driver ID"})
		return
	}

	if err := h.driverRepo.Delete(id); err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Driver not found"})
			return
		}
		h.logger.WithError(err).Error("Failed to delete driver")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete driver"})
		return
	}

	h.hub.Emit("driver:deleted", gin.H{"id": id})
	h.logFleet(c, "driver_deleted", "driver", id)

	c.JSON(http.StatusOK, gin.H{"message": "Driver deleted successfully"})
}

// ToggleUnavailable flips the temporary unavailability flag
// PATCH /api/drivers/:id/toggleUnavailable
func (h *DriverHandler) ToggleUnavailable(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid driver ID"})
		return
	}

	var req models.ToggleUnavailableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	driver, err := h.driverRepo.SetTemporarilyUnavailable(id, *req.TemporarilyUnavailable)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Driver not found"})
			return
		}
		h.logger.WithError(err).Error("Failed to update driver availability")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update driver"})
		return
	}

	h.hub.Emit("driver:updated", driver)
	h.logFleet(c, "driver_availability_toggled", "driver", driver.ID)

	c.JSON(http.StatusOK, driver)
}

func (h *DriverHandler) logFleet(c *gin.Context, action, entityType string, entityID uuid.UUID) {
	if h.auditService == nil {
		return
	}
	employee, ok := middleware.GetEmployee(c)
	if !ok {
		return
	}
	if err := h.auditService.LogFleetAction(action, entityType, employee.ID, entityID, utils.GetRealIP(c), utils.GetUserAgent(c)); err != nil {
		h.logger.WithError(err).Warn("Failed to write audit log")
	}
}
