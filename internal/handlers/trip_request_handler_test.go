package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corptransit/transport-request-backend/internal/database"
	"github.com/corptransit/transport-request-backend/internal/middleware"
	"github.com/corptransit/transport-request-backend/internal/models"
	"github.com/corptransit/transport-request-backend/internal/services"
	"github.com/corptransit/transport-request-backend/pkg/mailer"
)

// recordingBroadcaster captures emitted events in order
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingBroadcaster) Emit(event string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingBroadcaster) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.events...)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// injectEmployee stands in for the auth middleware in handler tests
func injectEmployee(employee *models.Employee) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.EmployeeContextKey, employee)
		c.Next()
	}
}

func adminEmployee() *models.Employee {
	return &models.Employee{
		ID:         uuid.New(),
		EmployeeID: "EMP-0001",
		Name:       "Transport Head",
		Email:      "head@corptransit.com",
		Department: "Transport",
		Role:       models.RoleAdmin,
	}
}

func staffEmployee() *models.Employee {
	return &models.Employee{
		ID:         uuid.New(),
		EmployeeID: "EMP-1042",
		Name:       "Nadeesha Perera",
		Email:      "nadeesha@corptransit.com",
		Department: "Finance",
		Role:       models.RoleEmployee,
		PhoneNo:    "+94712345678",
	}
}

func setupTripHandlerTest(t *testing.T, employee *models.Employee) (*gin.Engine, sqlmock.Sqlmock, *recordingBroadcaster) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	postgresDB := &database.PostgresDB{DB: sqlxDB}
	tripRepo := database.NewTripRequestRepository(postgresDB)

	logger := testLogger()
	hub := &recordingBroadcaster{}
	notifications := services.NewNotificationService(mailer.NewLogMailer(logger), nil, logger, "head@corptransit.com")

	handler := NewTripRequestHandler(tripRepo, hub, notifications, nil, logger)

	router := gin.New()
	group := router.Group("/api/tripRequest", injectEmployee(employee))
	group.GET("", handler.List)
	group.POST("", handler.Create)
	group.POST("/:id/approve", handler.Approve)
	group.POST("/:id/reject", handler.Reject)
	group.POST("/:id/complete", handler.Complete)

	return router, mock, hub
}

var tripRowColumns = []string{
	"id", "purpose", "designation", "destination", "pickup_point",
	"start_date", "start_time", "end_date", "number_of_passengers",
	"remarks", "status", "created_by", "vehicle_details", "created_at", "updated_at",
	"creator_id", "creator_employee_id", "creator_name", "creator_email",
	"creator_department", "creator_phone_no", "creator_role",
}

func addTripRow(rows *sqlmock.Rows, tripID uuid.UUID, creator *models.Employee, status models.TripStatus, details []byte) *sqlmock.Rows {
	now := time.Now()
	startDate := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)

	return rows.AddRow(
		tripID, "Official", "Staff", "Head Office", "Main Gate",
		startDate, "08:30", startDate, 4,
		"Quarterly audit visit", status, creator.ID, details, now, now,
		creator.ID, creator.EmployeeID, creator.Name, creator.Email,
		creator.Department, creator.PhoneNo, string(creator.Role),
	)
}

func postJSON(t *testing.T, router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateTripRequestEndpoint(t *testing.T) {
	employee := staffEmployee()

	t.Run("Success", func(t *testing.T) {
		router, mock, hub := setupTripHandlerTest(t, employee)

		tripID := uuid.New()
		now := time.Now()

		mock.ExpectQuery(`INSERT INTO trip_requests`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(tripID, now, now))
		mock.ExpectQuery(`SELECT (.+) FROM trip_requests t`).
			WithArgs(tripID).
			WillReturnRows(addTripRow(sqlmock.NewRows(tripRowColumns),
				tripID, employee, models.TripStatusPending, nil))

		w := postJSON(t, router, "/api/tripRequest", gin.H{
			"purpose":            "Official",
			"designation":        "Staff",
			"destination":        "Head Office",
			"pickupPoint":        "Main Gate",
			"startDate":          "2026-09-10",
			"startTime":          "08:30",
			"endDate":            "2026-09-10",
			"numberOfPassengers": 4,
			"remarks":            "Quarterly audit visit",
		})

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), "Pending")
		assert.Contains(t, w.Body.String(), "createdBy")
		assert.Equal(t, []string{"tripRequest:created"}, hub.Events())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Invalid Passenger Count", func(t *testing.T) {
		router, mock, hub := setupTripHandlerTest(t, employee)

		w := postJSON(t, router, "/api/tripRequest", gin.H{
			"purpose":            "Official",
			"designation":        "Staff",
			"destination":        "Head Office",
			"pickupPoint":        "Main Gate",
			"startDate":          "2026-09-10",
			"startTime":          "08:30",
			"endDate":            "2026-09-10",
			"numberOfPassengers": 21,
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, hub.Events())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("End Before Start", func(t *testing.T) {
		router, _, _ := setupTripHandlerTest(t, employee)

		w := postJSON(t, router, "/api/tripRequest", gin.H{
			"purpose":            "Official",
			"designation":        "Staff",
			"destination":        "Head Office",
			"pickupPoint":        "Main Gate",
			"startDate":          "2026-09-10",
			"startTime":          "08:30",
			"endDate":            "2026-09-09",
			"numberOfPassengers": 4,
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestApproveTripRequestEndpoint(t *testing.T) {
	admin := adminEmployee()

	driverID := uuid.New()
	vehicleID := uuid.New()
	now := time.Now()

	driverCols := []string{
		"id", "driver_name", "age", "phone_no", "license_no",
		"status", "temporarily_unavailable", "created_at", "updated_at",
	}
	vehicleCols := []string{
		"id", "vehicle_name", "capacity", "vehicle_no", "vehicle_color",
		"status", "out_of_service", "created_at", "updated_at",
	}

	t.Run("Internal Assignment", func(t *testing.T) {
		router, mock, hub := setupTripHandlerTest(t, admin)

		tripID := uuid.New()

		details, err := json.Marshal(&models.VehicleDetails{DriverID: &driverID, VehicleID: &vehicleID})
		require.NoError(t, err)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT status FROM trip_requests`).
			WithArgs(tripID).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("Pending"))
		mock.ExpectQuery(`UPDATE drivers`).
			WillReturnRows(sqlmock.NewRows(driverCols).
				AddRow(driverID, "Sunil Fernando", 45, "+94771234567", "B1234567",
					"assigned", false, now, now))
		mock.ExpectQuery(`UPDATE vehicles`).
			WillReturnRows(sqlmock.NewRows(vehicleCols).
				AddRow(vehicleID, "Toyota Hiace", 14, "NB-4521", "White",
					"Assigned", false, now, now))
		mock.ExpectExec(`UPDATE trip_requests`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
		mock.ExpectQuery(`SELECT (.+) FROM trip_requests t`).
			WithArgs(tripID).
			WillReturnRows(addTripRow(sqlmock.NewRows(tripRowColumns),
				tripID, admin, models.TripStatusApproved, details))

		w := postJSON(t, router, "/api/tripRequest/"+tripID.String()+"/approve", gin.H{
			"driverId":  driverID,
			"vehicleId": vehicleID,
			"remarks":   "Approved for audit",
		})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []string{"driver:updated", "vehicle:updated", "tripRequest:updated"}, hub.Events())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Missing Assignment IDs", func(t *testing.T) {
		router, _, hub := setupTripHandlerTest(t, admin)

		w := postJSON(t, router, "/api/tripRequest/"+uuid.New().String()+"/approve", gin.H{
			"driverId": driverID,
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, hub.Events())
	})

	t.Run("Driver Taken Returns Conflict", func(t *testing.T) {
		router, mock, hub := setupTripHandlerTest(t, admin)

		tripID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT status FROM trip_requests`).
			WithArgs(tripID).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("Pending"))
		mock.ExpectQuery(`UPDATE drivers`).
			WillReturnRows(sqlmock.NewRows(driverCols))
		mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM drivers`).
			WithArgs(driverID).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()

		w := postJSON(t, router, "/api/tripRequest/"+tripID.String()+"/approve", gin.H{
			"driverId":  driverID,
			"vehicleId": vehicleID,
		})

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Empty(t, hub.Events())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Unknown Driver Returns Not Found", func(t *testing.T) {
		router, mock, hub := setupTripHandlerTest(t, admin)

		tripID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT status FROM trip_requests`).
			WithArgs(tripID).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("Pending"))
		mock.ExpectQuery(`UPDATE drivers`).
			WillReturnRows(sqlmock.NewRows(driverCols))
		mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM drivers`).
			WithArgs(driverID).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectRollback()

		w := postJSON(t, router, "/api/tripRequest/"+tripID.String()+"/approve", gin.H{
			"driverId":  driverID,
			"vehicleId": vehicleID,
		})

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Empty(t, hub.Events())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Already Approved Returns Conflict", func(t *testing.T) {
		router, mock, hub := setupTripHandlerTest(t, admin)

		tripID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT status FROM trip_requests`).
			WithArgs(tripID).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("Approved"))
		mock.ExpectRollback()

		w := postJSON(t, router, "/api/tripRequest/"+tripID.String()+"/approve", gin.H{
			"driverId":  driverID,
			"vehicleId": vehicleID,
		})

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Empty(t, hub.Events())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Outside Assignment", func(t *testing.T) {
		router, mock, hub := setupTripHandlerTest(t, admin)

		tripID := uuid.New()

		details, err := json.Marshal(&models.VehicleDetails{
			IsOutside:      true,
			OutsideVehicle: &models.OutsideVehicle{VehicleNo: "WP-CAB-1234", VehicleName: "Rental Van"},
		})
		require.NoError(t, err)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT status FROM trip_requests`).
			WithArgs(tripID).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("Pending"))
		mock.ExpectExec(`UPDATE trip_requests`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
		mock.ExpectQuery(`SELECT (.+) FROM trip_requests t`).
			WithArgs(tripID).
			WillReturnRows(addTripRow(sqlmock.NewRows(tripRowColumns),
				tripID, admin, models.TripStatusApproved, details))

		w := postJSON(t, router, "/api/tripRequest/"+tripID.String()+"/approve", gin.H{
			"isOutside":      true,
			"outsideVehicle": gin.H{"vehicleNo": "WP-CAB-1234", "vehicleName": "Rental Van"},
			"outsideDriver":  gin.H{"driverName": "External Driver", "phoneNo": "+94700000000"},
		})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []string{"tripRequest:updated"}, hub.Events())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		router, mock, _ := setupTripHandlerTest(t, admin)

		tripID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT status FROM trip_requests`).
			WithArgs(tripID).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		w := postJSON(t, router, "/api/tripRequest/"+tripID.String()+"/approve", gin.H{
			"driverId":  driverID,
			"vehicleId": vehicleID,
		})

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRejectTripRequestEndpoint(t *testing.T) {
	admin := adminEmployee()

	t.Run("Success", func(t *testing.T) {
		router, mock, hub := setupTripHandlerTest(t, admin)

		tripID := uuid.New()

		mock.ExpectExec(`UPDATE trip_requests`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT (.+) FROM trip_requests t`).
			WithArgs(tripID).
			WillReturnRows(addTripRow(sqlmock.NewRows(tripRowColumns),
				tripID, admin, models.TripStatusRejected, nil))

		w := postJSON(t, router, "/api/tripRequest/"+tripID.String()+"/reject", gin.H{
			"remarks": "No vehicles free that day",
		})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []string{"tripRequest:updated"}, hub.Events())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Already Completed Returns Conflict", func(t *testing.T) {
		router, mock, hub := setupTripHandlerTest(t, admin)

		tripID := uuid.New()

		mock.ExpectExec(`UPDATE trip_requests`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT (.+) FROM trip_requests t`).
			WithArgs(tripID).
			WillReturnRows(addTripRow(sqlmock.NewRows(tripRowColumns),
				tripID, admin, models.TripStatusCompleted, nil))

		w := postJSON(t, router, "/api/tripRequest/"+tripID.String()+"/reject", gin.H{})

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Empty(t, hub.Events())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCompleteTripRequestEndpoint(t *testing.T) {
	admin := adminEmployee()

	t.Run("Pending Cannot Complete", func(t *testing.T) {
		router, mock, hub := setupTripHandlerTest(t, admin)

		tripID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT status, vehicle_details FROM trip_requests`).
			WithArgs(tripID).
			WillReturnRows(sqlmock.NewRows([]string{"status", "vehicle_details"}).
				AddRow("Pending", nil))
		mock.ExpectRollback()

		w := postJSON(t, router, "/api/tripRequest/"+tripID.String()+"/complete", gin.H{})

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Empty(t, hub.Events())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestListTripRequestsEndpoint(t *testing.T) {
	t.Run("Admin Sees All", func(t *testing.T) {
		admin := adminEmployee()
		router, mock, _ := setupTripHandlerTest(t, admin)

		rows := sqlmock.NewRows(tripRowColumns)
		addTripRow(rows, uuid.New(), admin, models.TripStatusPending, nil)
		addTripRow(rows, uuid.New(), admin, models.TripStatusApproved, nil)

		// No WHERE filter expected for admins
		mock.ExpectQuery(`SELECT (.+) FROM trip_requests t(.+)ORDER BY t.created_at DESC`).
			WillReturnRows(rows)

		req := httptest.NewRequest(http.MethodGet, "/api/tripRequest", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var trips []models.TripRequest
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &trips))
		assert.Len(t, trips, 2)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Employee Sees Own", func(t *testing.T) {
		employee := staffEmployee()
		router, mock, _ := setupTripHandlerTest(t, employee)

		rows := sqlmock.NewRows(tripRowColumns)
		addTripRow(rows, uuid.New(), employee, models.TripStatusPending, nil)

		mock.ExpectQuery(`SELECT (.+) FROM trip_requests t`).
			WithArgs(employee.ID).
			WillReturnRows(rows)

		req := httptest.NewRequest(http.MethodGet, "/api/tripRequest", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var trips []models.TripRequest
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &trips))
		require.Len(t, trips, 1)
		require.NotNil(t, trips[0].CreatedBy)
		assert.Equal(t, employee.EmployeeID, trips[0].CreatedBy.EmployeeID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
