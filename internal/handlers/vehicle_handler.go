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

// VehicleHandler handles vehicle pool management endpoints
type VehicleHandler struct {
	vehicleRepo  *database.VehicleRepository
	hub          realtime.Broadcaster
	auditService *services.AuditService
	logger       *logrus.Logger
}

// NewVehicleHandler creates a new vehicle handler
func NewVehicleHandler(vehicleRepo *database.VehicleRepository, hub realtime.Broadcaster, auditService *services.AuditService, logger *logrus.Logger) *VehicleHandler {
	return &VehicleHandler{
		vehicleRepo:  vehicleRepo,
		hub:          hub,
		auditService: auditService,
		logger:       logger,
	}
}

// List retrieves all vehicles
// GET /api/vehicles
func (h *VehicleHandler) List(c *gin.Context) {
	vehicles, err := h.vehicleRepo.List()
	if err != nil {
		h.logger.WithError(err).Error("Failed to list vehicles")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch vehicles"})
		return
	}

	c.JSON(http.StatusOK, vehicles)
}

// Create adds a new vehicle to the pool
// POST /api/vehicles
func (h *VehicleHandler) Create(c *gin.Context) {
	var req models.CreateVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status := models.VehicleStatusAvailable
	if req.Status != nil {
		status = models.VehicleStatus(*req.Status)
	}

	vehicle := &models.Vehicle{
		VehicleName:  req.VehicleName,
		Capacity:     req.Capacity,
		VehicleNo:    req.NormalizedVehicleNo(),
		VehicleColor: req.VehicleColor,
		Status:       status,
	}

	if err := h.vehicleRepo.Create(vehicle); err != nil {
		if err == database.ErrDuplicateVehicleNo {
			c.JSON(http.StatusConflict, gin.H{"error": "Vehicle number is already registered"})
			return
		}
		h.logger.WithError(err).Error("Failed to create vehicle")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create vehicle"})
		return
	}

	h.hub.Emit("vehicle:created", vehicle)
	h.logFleet(c, "vehicle_created", vehicle.ID)

	c.JSON(http.StatusCreated, vehicle)
}

// Delete removes a vehicle from the pool
// DELETE /api/vehicles/:id
func (h *VehicleHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid vehicle ID"})
		return
	}

	if err := h.vehicleRepo.Delete(id); err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Vehicle not found"})
			return
		}
		h.logger.WithError(err).Error("Failed to delete vehicle")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete vehicle"})
		return
	}

	h.hub.Emit("vehicle:deleted", gin.H{"id": id})
	h.logFleet(c, "vehicle_deleted", id)

	c.JSON(http.StatusOK, gin.H{"message": "Vehicle deleted successfully"})
}

// ToggleStatus flips the out-of-service flag
// PATCH /api/vehicles/:id/toggleStatus
func (h *VehicleHandler) ToggleStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid vehicle ID"})
		return
	}

	var req models.ToggleOutOfServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	vehicle, err := h.vehicleRepo.SetOutOfService(id, *req.OutOfService)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Vehicle not found"})
			return
		}
		h.logger.WithError(err).Error("Failed to update vehicle service status")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update vehicle"})
		return
	}

	h.hub.Emit("vehicle:updated", vehicle)
	h.logFleet(c, "vehicle_status_toggled", vehicle.ID)

	c.JSON(http.StatusOK, vehicle)
}

func (h *VehicleHandler) logFleet(c *gin.Context, action string, entityID uuid.UUID) {
	if h.auditService == nil {
		return
	}
	employee, ok := middleware.GetEmployee(c)
	if !ok {
		return
	}
	if err := h.auditService.LogFleetAction(action, "vehicle", employee.ID, entityID, utils.GetRealIP(c), utils.GetUserAgent(c)); err != nil {
		h.logger.WithError(err).Warn("Failed to write audit log")
	}
}
