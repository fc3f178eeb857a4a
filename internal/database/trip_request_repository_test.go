package database

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corptransit/transport-request-backend/internal/models"
)

var tripRowColumns = []string{
	"id", "purpose", "designation", "destination", "pickup_point",
	"start_date", "start_time", "end_date", "number_of_passengers",
	"remarks", "status", "created_by", "vehicle_details", "created_at", "updated_at",
	"creator_id", "creator_employee_id", "creator_name", "creator_email",
	"creator_department", "creator_phone_no", "creator_role",
}

func addTripRow(rows *sqlmock.Rows, tripID, creatorID uuid.UUID, status models.TripStatus, details []byte) *sqlmock.Rows {
	now := time.Now()
	startDate := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)

	return rows.AddRow(
		tripID, "Official", "Staff", "Head Office", "Main Gate",
		startDate, "08:30", startDate, 4,
		"Quarterly audit visit", status, creatorID, details, now, now,
		creatorID, "EMP-1042", "Nadeesha Perera", "nadeesha@corptransit.com",
		"Finance", "+94712345678", "employee",
	)
}

func TestCreateTripRequest(t *testing.T) {
	mockDB, mock := newMockDatabase(t)
	repo := NewTripRequestRepository(mockDB)

	t.Run("Success", func(t *testing.T) {
		tripID := uuid.New()
		creatorID := uuid.New()
		now := time.Now()
		startDate := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)

		mock.ExpectQuery(`INSERT INTO trip_requests`).
			WithArgs(models.PurposeOfficial, "Staff", "Head Office", "Main Gate",
				startDate, "08:30", startDate, 4, "Quarterly audit visit",
				models.TripStatusPending, creatorID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(tripID, now, now))

		trip := &models.TripRequest{
			Purpose:            models.PurposeOfficial,
			Designation:        "Staff",
			Destination:        "Head Office",
			PickupPoint:        "Main Gate",
			StartDate:          startDate,
			StartTime:          "08:30",
			EndDate:            startDate,
			NumberOfPassengers: 4,
			Remarks:            "Quarterly audit visit",
			Status:             models.TripStatusPending,
			CreatedByID:        creatorID,
		}

		err := repo.Create(trip)
		require.NoError(t, err)
		assert.Equal(t, tripID, trip.ID)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetTripRequestByID(t *testing.T) {
	mockDB, mock := newMockDatabase(t)
	repo := NewTripRequestRepository(mockDB)

	t.Run("Pending Without Assignment", func(t *testing.T) {
		tripID := uuid.New()
		creatorID := uuid.New()

		mock.ExpectQuery(`SELECT (.+) FROM trip_requests t`).
			WithArgs(tripID).
			WillReturnRows(addTripRow(sqlmock.NewRows(tripRowColumns),
				tripID, creatorID, models.TripStatusPending, nil))

		trip, err := repo.GetByID(tripID)
		require.NoError(t, err)
		assert.Equal(t, models.TripStatusPending, trip.Status)
		assert.Nil(t, trip.VehicleDetails)
		require.NotNil(t, trip.CreatedBy)
		assert.Equal(t, "EMP-1042", trip.CreatedBy.EmployeeID)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Approved With Snapshot", func(t *testing.T) {
		tripID := uuid.New()
		creatorID := uuid.New()
		driverID := uuid.New()
		vehicleID := uuid.New()

		details, err := json.Marshal(&models.VehicleDetails{
			DriverID:    &driverID,
			VehicleID:   &vehicleID,
			DriverName:  "Sunil Fernando",
			VehicleNo:   "NB-4521",
			VehicleName: "Toyota Hiace",
		})
		require.NoError(t, err)

		mock.ExpectQuery(`SELECT (.+) FROM trip_requests t`).
			WithArgs(tripID).
			WillReturnRows(addTripRow(sqlmock.NewRows(tripRowColumns),
				tripID, creatorID, models.TripStatusApproved, details))

		trip, err := repo.GetByID(tripID)
		require.NoError(t, err)
		require.NotNil(t, trip.VehicleDetails)
		assert.Equal(t, driverID, *trip.VehicleDetails.DriverID)
		assert.True(t, trip.VehicleDetails.HasInternalAssignment())

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		tripID := uuid.New()

		mock.ExpectQuery(`SELECT (.+) FROM trip_requests t`).
			WithArgs(tripID).
			WillReturnError(sql.ErrNoRows)

		trip, err := repo.GetByID(tripID)
		assert.Equal(t, sql.ErrNoRows, err)
		assert.Nil(t, trip)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestApproveInternal(t *testing.T) {
	mockDB, mock := newMockDatabase(t)
	repo := NewTripRequestRepository(mockDB)

	tripID := uuid.New()
	creatorID := uuid.New()
	driverID := uuid.New()
	vehicleID := uuid.New()
	now := time.Now()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT status FROM trip_requests`).
			WithArgs(tripID).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("Pending"))
		mock.ExpectQuery(`UPDATE drivers`).
			WithArgs(driverID, models.DriverStatusAssigned, models.DriverStatusAvailable).
			WillReturnRows(sqlmock.NewRows(driverColumns).
				AddRow(driverID, "Sunil Fernando", 45, "+94771234567", "B1234567",
					"assigned", false, now, now))
		mock.ExpectQuery(`UPDATE vehicles`).
			WithArgs(vehicleID, models.VehicleStatusAssigned, models.VehicleStatusAvailable).
			WillReturnRows(sqlmock.NewRows(vehicleColumns).
				AddRow(vehicleID, "Toyota Hiace", 14, "NB-4521", "White",
					"Assigned", false, now, now))
		mock.ExpectExec(`UPDATE trip_requests`).
			WithArgs(tripID, models.TripStatusApproved, sqlmock.AnyArg(), "Approved for audit").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		details, err := json.Marshal(&models.VehicleDetails{
			DriverID: &driverID, VehicleID: &vehicleID,
			DriverName: "Sunil Fernando", VehicleNo: "NB-4521",
		})
		require.NoError(t, err)

		mock.ExpectQuery(`SELECT (.+) FROM trip_requests t`).
			WithArgs(tripID).
			WillReturnRows(addTripRow(sqlmock.NewRows(tripRowColumns),
				tripID, creatorID, models.TripStatusApproved, details))

		trip, driver, vehicle, err := repo.ApproveInternal(tripID, driverID, vehicleID, "Approved for audit")
		require.NoError(t, err)
		assert.Equal(t, models.TripStatusApproved, trip.Status)
		assert.Equal(t, models.DriverStatusAssigned, driver.Status)
		assert.Equal(t, models.VehicleStatusAssigned, vehicle.Status)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Already Approved", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT status FROM trip_requests`).
			WithArgs(tripID).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("Approved"))
		mock.ExpectRollback()

		_, _, _, err := repo.ApproveInternal(tripID, driverID, vehicleID, "")
		assert.Equal(t, ErrInvalidTransition, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Driver Taken", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT status FROM trip_requests`).
			WithArgs(tripID).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("Pending"))
		mock.ExpectQuery(`UPDATE drivers`).
			WithArgs(driverID, models.DriverStatusAssigned, models.DriverStatusAvailable).
			WillReturnRows(sqlmock.NewRows(driverColumns))
		mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM drivers`).
			WithArgs(driverID).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()

		_, _, _, err := repo.ApproveInternal(tripID, driverID, vehicleID, "")
		assert.Equal(t, ErrDriverUnavailable, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Driver Missing", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT status FROM trip_requests`).
			WithArgs(tripID).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("Pending"))
		mock.ExpectQuery(`UPDATE drivers`).
			WithArgs(driverID, models.DriverStatusAssigned, models.DriverStatusAvailable).
			WillReturnRows(sqlmock.NewRows(driverColumns))
		mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM drivers`).
			WithArgs(driverID).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectRollback()

		_, _, _, err := repo.ApproveInternal(tripID, driverID, vehicleID, "")
		assert.Equal(t, sql.ErrNoRows, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Vehicle Taken Rolls Back Driver", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT status FROM trip_requests`).
			WithArgs(tripID).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("Pending"))
		mock.ExpectQuery(`UPDATE drivers`).
			WithArgs(driverID, models.DriverStatusAssigned, models.DriverStatusAvailable).
			WillReturnRows(sqlmock.NewRows(driverColumns).
				AddRow(driverID, "Sunil Fernando", 45, "+94771234567", "B1234567",
					"assigned", false, now, now))
		mock.ExpectQuery(`UPDATE vehicles`).
			WithArgs(vehicleID, models.VehicleStatusAssigned, models.VehicleStatusAvailable).
			WillReturnRows(sqlmock.NewRows(vehicleColumns))
		mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM vehicles`).
			WithArgs(vehicleID).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()

		_, _, _, err := repo.ApproveInternal(tripID, driverID, vehicleID, "")
		assert.Equal(t, ErrVehicleUnavailable, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestApproveOutside(t *testing.T) {
	mockDB, mock := newMockDatabase(t)
	repo := NewTripRequestRepository(mockDB)

	tripID := uuid.New()
	creatorID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		details := &models.VehicleDetails{
			IsOutside:      true,
			OutsideVehicle: &models.OutsideVehicle{VehicleNo: "WP-CAB-1234", VehicleName: "Rental Van"},
			OutsideDriver:  &models.OutsideDriver{DriverName: "External Driver", PhoneNo: "+94700000000"},
		}
		payload, err := json.Marshal(details)
		require.NoError(t, err)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT status FROM trip_requests`).
			WithArgs(tripID).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("Pending"))
		mock.ExpectExec(`UPDATE trip_requests`).
			WithArgs(tripID, models.TripStatusApproved, sqlmock.AnyArg(), "").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
		mock.ExpectQuery(`SELECT (.+) FROM trip_requests t`).
			WithArgs(tripID).
			WillReturnRows(addTripRow(sqlmock.NewRows(tripRowColumns),
				tripID, creatorID, models.TripStatusApproved, payload))

		trip, err := repo.ApproveOutside(tripID, details, "")
		require.NoError(t, err)
		require.NotNil(t, trip.VehicleDetails)
		assert.True(t, trip.VehicleDetails.IsOutside)
		assert.False(t, trip.VehicleDetails.HasInternalAssignment())

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRejectTripRequest(t *testing.T) {
	mockDB, mock := newMockDatabase(t)
	repo := NewTripRequestRepository(mockDB)

	tripID := uuid.New()
	creatorID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec(`UPDATE trip_requests`).
			WithArgs(tripID, models.TripStatusRejected, "No vehicles free that day", models.TripStatusPending).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT (.+) FROM trip_requests t`).
			WithArgs(tripID).
			WillReturnRows(addTripRow(sqlmock.NewRows(tripRowColumns),
				tripID, creatorID, models.TripStatusRejected, nil))

		trip, err := repo.Reject(tripID, "No vehicles free that day")
		require.NoError(t, err)
		assert.Equal(t, models.TripStatusRejected, trip.Status)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Already Completed", func(t *testing.T) {
		mock.ExpectExec(`UPDATE trip_requests`).
			WithArgs(tripID, models.TripStatusRejected, "", models.TripStatusPending).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT (.+) FROM trip_requests t`).
			WithArgs(tripID).
			WillReturnRows(addTripRow(sqlmock.NewRows(tripRowColumns),
				tripID, creatorID, models.TripStatusCompleted, nil))

		trip, err := repo.Reject(tripID, "")
		assert.Equal(t, ErrInvalidTransition, err)
		assert.Nil(t, trip)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		mock.ExpectExec(`UPDATE trip_requests`).
			WithArgs(tripID, models.TripStatusRejected, "", models.TripStatusPending).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT (.+) FROM trip_requests t`).
			WithArgs(tripID).
			WillReturnError(sql.ErrNoRows)

		trip, err := repo.Reject(tripID, "")
		assert.Equal(t, sql.ErrNoRows, err)
		assert.Nil(t, trip)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCompleteTripRequest(t *testing.T) {
	mockDB, mock := newMockDatabase(t)
	repo := NewTripRequestRepository(mockDB)

	tripID := uuid.New()
	creatorID := uuid.New()
	driverID := uuid.New()
	vehicleID := uuid.New()
	now := time.Now()

	t.Run("Internal Assignment Released", func(t *testing.T) {
		details, err := json.Marshal(&models.VehicleDetails{
			DriverID: &driverID, VehicleID: &vehicleID,
		})
		require.NoError(t, err)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT status, vehicle_details FROM trip_requests`).
			WithArgs(tripID).
			WillReturnRows(sqlmock.NewRows([]string{"status", "vehicle_details"}).
				AddRow("Approved", details))
		mock.ExpectQuery(`UPDATE drivers`).
			WithArgs(driverID, models.DriverStatusAvailable).
			WillReturnRows(sqlmock.NewRows(driverColumns).
				AddRow(driverID, "Sunil Fernando", 45, "+94771234567", "B1234567",
					"available", false, now, now))
		mock.ExpectQuery(`UPDATE vehicles`).
			WithArgs(vehicleID, models.VehicleStatusAvailable).
			WillReturnRows(sqlmock.NewRows(vehicleColumns).
				AddRow(vehicleID, "Toyota Hiace", 14, "NB-4521", "White",
					"Available", false, now, now))
		mock.ExpectExec(`UPDATE trip_requests`).
			WithArgs(tripID, models.TripStatusCompleted).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
		mock.ExpectQuery(`SELECT (.+) FROM trip_requests t`).
			WithArgs(tripID).
			WillReturnRows(addTripRow(sqlmock.NewRows(tripRowColumns),
				tripID, creatorID, models.TripStatusCompleted, details))

		trip, driver, vehicle, err := repo.Complete(tripID)
		require.NoError(t, err)
		assert.Equal(t, models.TripStatusCompleted, trip.Status)
		require.NotNil(t, driver)
		assert.Equal(t, models.DriverStatusAvailable, driver.Status)
		require.NotNil(t, vehicle)
		assert.Equal(t, models.VehicleStatusAvailable, vehicle.Status)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Outside Assignment Skips Pool", func(t *testing.T) {
		details, err := json.Marshal(&models.VehicleDetails{
			IsOutside:     true,
			OutsideDriver: &models.OutsideDriver{DriverName: "External Driver"},
		})
		require.NoError(t, err)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT status, vehicle_details FROM trip_requests`).
			WithArgs(tripID).
			WillReturnRows(sqlmock.NewRows([]string{"status", "vehicle_details"}).
				AddRow("Approved", details))
		mock.ExpectExec(`UPDATE trip_requests`).
			WithArgs(tripID, models.TripStatusCompleted).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
		mock.ExpectQuery(`SELECT (.+) FROM trip_requests t`).
			WithArgs(tripID).
			WillReturnRows(addTripRow(sqlmock.NewRows(tripRowColumns),
				tripID, creatorID, models.TripStatusCompleted, details))

		trip, driver, vehicle, err := repo.Complete(tripID)
		require.NoError(t, err)
		assert.Equal(t, models.TripStatusCompleted, trip.Status)
		assert.Nil(t, driver)
		assert.Nil(t, vehicle)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Pending Cannot Complete", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT status, vehicle_details FROM trip_requests`).
			WithArgs(tripID).
			WillReturnRows(sqlmock.NewRows([]string{"status", "vehicle_details"}).
				AddRow("Pending", nil))
		mock.ExpectRollback()

		_, _, _, err := repo.Complete(tripID)
		assert.Equal(t, ErrInvalidTransition, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestListTripRequests(t *testing.T) {
	mockDB, mock := newMockDatabase(t)
	repo := NewTripRequestRepository(mockDB)

	t.Run("ListAll", func(t *testing.T) {
		rows := sqlmock.NewRows(tripRowColumns)
		addTripRow(rows, uuid.New(), uuid.New(), models.TripStatusPending, nil)
		addTripRow(rows, uuid.New(), uuid.New(), models.TripStatusApproved, nil)

		mock.ExpectQuery(`SELECT (.+) FROM trip_requests t`).
			WillReturnRows(rows)

		trips, err := repo.ListAll()
		require.NoError(t, err)
		assert.Len(t, trips, 2)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ListForEmployee", func(t *testing.T) {
		creatorID := uuid.New()
		rows := sqlmock.NewRows(tripRowColumns)
		addTripRow(rows, uuid.New(), creatorID, models.TripStatusPending, nil)

		mock.ExpectQuery(`SELECT (.+) FROM trip_requests t`).
			WithArgs(creatorID).
			WillReturnRows(rows)

		trips, err := repo.ListForEmployee(creatorID)
		require.NoError(t, err)
		require.Len(t, trips, 1)
		require.NotNil(t, trips[0].CreatedBy)
		assert.Equal(t, creatorID, trips[0].CreatedBy.ID)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestListOverdueApproved(t *testing.T) {
	mockDB, mock := newMockDatabase(t)
	repo := NewTripRequestRepository(mockDB)

	t.Run("Success", func(t *testing.T) {
		first := uuid.New()
		second := uuid.New()
		now := time.Now()

		mock.ExpectQuery(`SELECT id FROM trip_requests`).
			WithArgs(models.TripStatusApproved, now).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(first).AddRow(second))

		ids, err := repo.ListOverdueApproved(now)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{first, second}, ids)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
