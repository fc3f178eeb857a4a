package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/corptransit/transport-request-backend/internal/database"
	"github.com/corptransit/transport-request-backend/internal/middleware"
	"github.com/corptransit/transport-request-backend/internal/models"
	"github.com/corptransit/transport-request-backend/internal/observability"
	"github.com/corptransit/transport-request-backend/internal/realtime"
	"github.com/corptransit/transport-request-backend/internal/services"
	"github.com/corptransit/transport-request-backend/internal/utils"
)

// TripRequestHandler handles the trip request workflow endpoints
type TripRequestHandler struct {
	tripRepo      *database.TripRequestRepository
	hub           realtime.Broadcaster
	notifications *services.NotificationService
	auditService  *services.AuditService
	logger        *logrus.Logger
}

// NewTripRequestHandler creates a new trip request handler
func NewTripRequestHandler(
	tripRepo *database.TripRequestRepository,
	hub realtime.Broadcaster,
	notifications *services.NotificationService,
	auditService *services.AuditService,
	logger *logrus.Logger,
) *TripRequestHandler {
	return &TripRequestHandler{
		tripRepo:      tripRepo,
		hub:           hub,
		notifications: notifications,
		auditService:  auditService,
		logger:        logger,
	}
}

// List retrieves trip requests. Admins see every request, employees
// only their own.
// GET /api/tripRequest
func (h *TripRequestHandler) List(c *gin.Context) {
	employee, ok := middleware.GetEmployee(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var trips []models.TripRequest
	var err error
	if employee.IsAdmin() {
		trips, err = h.tripRepo.ListAll()
	} else {
		trips, err = h.tripRepo.ListForEmployee(employee.ID)
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to list trip requests")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch trip requests"})
		return
	}

	c.JSON(http.StatusOK, trips)
}

// Create submits a new trip request
// POST /api/tripRequest
func (h *TripRequestHandler) Create(c *gin.Context) {
	employee, ok := middleware.GetEmployee(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.CreateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	startDate, endDate := req.ParsedDates()
	trip := &models.TripRequest{
		Purpose:            models.TripPurpose(req.Purpose),
		Designation:        req.Designation,
		Destination:        req.Destination,
		PickupPoint:        req.PickupPoint,
		StartDate:          startDate,
		StartTime:          req.StartTime,
		EndDate:            endDate,
		NumberOfPassengers: req.NumberOfPassengers,
		Remarks:            req.Remarks,
		Status:             models.TripStatusPending,
		CreatedByID:        employee.ID,
	}

	if err := h.tripRepo.Create(trip); err != nil {
		h.logger.WithError(err).Error("Failed to create trip request")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create trip request"})
		return
	}

	// Re-read with the creator joined in for the broadcast and response
	created, err := h.tripRepo.GetByID(trip.ID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load created trip request")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create trip request"})
		return
	}

	observability.TripRequestsTotal.WithLabelValues("created").Inc()
	h.hub.Emit("tripRequest:created", created)

	go h.notifications.NotifyTripRequestCreated(created)

	c.JSON(http.StatusCreated, created)
}

// Approve approves a pending trip request, assigning either an internal
// driver/vehicle pair or an outside arrangement
// POST /api/tripRequest/:id/approve
func (h *TripRequestHandler) Approve(c *gin.Context) {
	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid trip request ID"})
		return
	}

	var req models.ApproveTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var trip *models.TripRequest
	var driver *models.Driver
	var vehicle *models.Vehicle

	if req.IsOutside {
		details := &models.VehicleDetails{
			IsOutside:      true,
			OutsideVehicle: req.OutsideVehicle,
			OutsideDriver:  req.OutsideDriver,
		}
		trip, err = h.tripRepo.ApproveOutside(tripID, details, req.Remarks)
	} else {
		trip, driver, vehicle, err = h.tripRepo.ApproveInternal(tripID, *req.DriverID, *req.VehicleID, req.Remarks)
	}

	if err != nil {
		h.respondWorkflowError(c, err, "approve")
		return
	}

	// Assignment broadcasts go out before the trip update, so clients
	// see the pool change before the request flips to Approved
	if driver != nil {
		h.hub.Emit("driver:updated", driver)
	}
	if vehicle != nil {
		h.hub.Emit("vehicle:updated", vehicle)
	}
	h.hub.Emit("tripRequest:updated", trip)

	h.logWorkflow(c, "trip_request_approved", tripID, map[string]interface{}{
		"is_outside": req.IsOutside,
	})

	observability.TripRequestsTotal.WithLabelValues("approved").Inc()

	go h.notifications.NotifyTripRequestApproved(trip)

	c.JSON(http.StatusOK, trip)
}

// Reject rejects a pending trip request
// POST /api/tripRequest/:id/reject
func (h *TripRequestHandler) Reject(c *gin.Context) {
	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid trip request ID"})
		return
	}

	var req models.RejectTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	trip, err := h.tripRepo.Reject(tripID, req.Remarks)
	if err != nil {
		h.respondWorkflowError(c, err, "reject")
		return
	}

	h.hub.Emit("tripRequest:updated", trip)

	h.logWorkflow(c, "trip_request_rejected", tripID, map[string]interface{}{
		"remarks": req.Remarks,
	})

	observability.TripRequestsTotal.WithLabelValues("rejected").Inc()

	go h.notifications.NotifyTripRequestRejected(trip)

	c.JSON(http.StatusOK, trip)
}

// Complete marks an approved trip request as completed and releases
// any internal driver/vehicle back to the pool
// POST /api/tripRequest/:id/complete
func (h *TripRequestHandler) Complete(c *gin.Context) {
	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid trip request ID"})
		return
	}

	trip, driver, vehicle, err := h.tripRepo.Complete(tripID)
	if err != nil {
		h.respondWorkflowError(c, err, "complete")
		return
	}

	if driver != nil {
		h.hub.Emit("driver:updated", driver)
	}
	if vehicle != nil {
		h.hub.Emit("vehicle:updated", vehicle)
	}
	h.hub.Emit("tripRequest:updated", trip)

	h.logWorkflow(c, "trip_request_completed", tripID, nil)

	observability.TripRequestsTotal.WithLabelValues("completed").Inc()

	c.JSON(http.StatusOK, gin.H{"message": "Trip marked as completed", "trip": trip})
}

func (h *TripRequestHandler) respondWorkflowError(c *gin.Context, err error, action string) {
	switch {
	case err == sql.ErrNoRows:
		c.JSON(http.StatusNotFound, gin.H{"error": "Trip request not found"})
	case errors.Is(err, database.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, database.ErrDriverUnavailable),
		errors.Is(err, database.ErrVehicleUnavailable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.WithError(err).WithField("action", action).Error("Trip request workflow action failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + action + " trip request"})
	}
}

func (h *TripRequestHandler) logWorkflow(c *gin.Context, action string, tripID uuid.UUID, details map[string]interface{}) {
	if h.auditService == nil {
		return
	}
	employee, ok := middleware.GetEmployee(c)
	if !ok {
		return
	}
	if err := h.auditService.LogWorkflowAction(action, employee.ID, tripID, utils.GetRealIP(c), utils.GetUserAgent(c), details); err != nil {
		h.logger.WithError(err).Warn("Failed to write audit log")
	}
}
