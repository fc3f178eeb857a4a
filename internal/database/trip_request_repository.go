package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/corptransit/transport-request-backend/internal/models"
)

var (
	// ErrInvalidTransition is returned when a workflow action is attempted
	// from a status that does not allow it
	ErrInvalidTransition = errors.New("trip request status does not allow this action")

	// ErrDriverUnavailable is returned when the chosen driver cannot be assigned
	ErrDriverUnavailable = errors.New("driver is not available for assignment")

	// ErrVehicleUnavailable is returned when the chosen vehicle cannot be assigned
	ErrVehicleUnavailable = errors.New("vehicle is not available for assignment")
)

// TripRequestRepository handles trip request data access. Workflow
// actions that touch drivers and vehicles run in a single transaction
// opened through the DB interface's Beginx.
type TripRequestRepository struct {
	db DB
}

// NewTripRequestRepository creates a new trip request repository
func NewTripRequestRepository(db DB) *TripRequestRepository {
	return &TripRequestRepository{db: db}
}

// tripRequestRow is the scan target for trip request reads. The creator
// columns come from a join on employees and the assignment snapshot
// arrives as raw JSONB.
type tripRequestRow struct {
	models.TripRequest
	VehicleDetailsRaw []byte    `db:"vehicle_details"`
	CreatorID         uuid.UUID `db:"creator_id"`
	CreatorEmployeeID string    `db:"creator_employee_id"`
	CreatorName       string    `db:"creator_name"`
	CreatorEmail      string    `db:"creator_email"`
	CreatorDepartment string    `db:"creator_department"`
	CreatorPhoneNo    string    `db:"creator_phone_no"`
	CreatorRole       string    `db:"creator_role"`
}

func (row *tripRequestRow) toModel() (*models.TripRequest, error) {
	trip := row.TripRequest

	if len(row.VehicleDetailsRaw) > 0 {
		var details models.VehicleDetails
		if err := json.Unmarshal(row.VehicleDetailsRaw, &details); err != nil {
			return nil, fmt.Errorf("failed to decode vehicle details: %w", err)
		}
		trip.VehicleDetails = &details
	}

	trip.CreatedBy = &models.EmployeeSummary{
		ID:         row.CreatorID,
		EmployeeID: row.CreatorEmployeeID,
		Name:       row.CreatorName,
		Email:      row.CreatorEmail,
		Department: row.CreatorDepartment,
		PhoneNo:    row.CreatorPhoneNo,
		Role:       row.CreatorRole,
	}

	return &trip, nil
}

const tripRequestColumns = `
	t.id, t.purpose, t.designation, t.destination, t.pickup_point,
	t.start_date, t.start_time, t.end_date, t.number_of_passengers,
	t.remarks, t.status, t.created_by, t.vehicle_details, t.created_at, t.updated_at,
	e.id AS creator_id, e.employee_id AS creator_employee_id, e.name AS creator_name,
	e.email AS creator_email, e.department AS creator_department,
	e.phone_no AS creator_phone_no, e.role AS creator_role`

// Create inserts a new trip request with status Pending
func (r *TripRequestRepository) Create(trip *models.TripRequest) error {
	query := `
		INSERT INTO trip_requests (purpose, designation, destination, pickup_point,
			start_date, start_time, end_date, number_of_passengers, remarks, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(query,
		trip.Purpose,
		trip.Designation,
		trip.Destination,
		trip.PickupPoint,
		trip.StartDate,
		trip.StartTime,
		trip.EndDate,
		trip.NumberOfPassengers,
		trip.Remarks,
		trip.Status,
		trip.CreatedByID,
	).Scan(&trip.ID, &trip.CreatedAt, &trip.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create trip request: %w", err)
	}

	return nil
}

// GetByID retrieves a trip request with its creator
func (r *TripRequestRepository) GetByID(id uuid.UUID) (*models.TripRequest, error) {
	var row tripRequestRow
	query := fmt.Sprintf(`
		SELECT %s
		FROM trip_requests t
		JOIN employees e ON e.id = t.created_by
		WHERE t.id = $1`, tripRequestColumns)

	err := r.db.Get(&row, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get trip request: %w", err)
	}

	return row.toModel()
}

// ListAll retrieves all trip requests with their creators, newest first
func (r *TripRequestRepository) ListAll() ([]models.TripRequest, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM trip_requests t
		JOIN employees e ON e.id = t.created_by
		ORDER BY t.created_at DESC`, tripRequestColumns)

	return r.list(query)
}

// ListForEmployee retrieves the trip requests created by one employee,
// newest first
func (r *TripRequestRepository) ListForEmployee(employeeID uuid.UUID) ([]models.TripRequest, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM trip_requests t
		JOIN employees e ON e.id = t.created_by
		WHERE t.created_by = $1
		ORDER BY t.created_at DESC`, tripRequestColumns)

	return r.list(query, employeeID)
}

func (r *TripRequestRepository) list(query string, args ...interface{}) ([]models.TripRequest, error) {
	rows := []tripRequestRow{}
	if err := r.db.Select(&rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list trip requests: %w", err)
	}

	trips := make([]models.TripRequest, 0, len(rows))
	for i := range rows {
		trip, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		trips = append(trips, *trip)
	}

	return trips, nil
}

// ApproveInternal approves a pending trip request and assigns an internal
// driver/vehicle pair in a single transaction. Both resources are claimed
// with conditional updates, so two admins racing for the same driver or
// vehicle cannot double-book it.
func (r *TripRequestRepository) ApproveInternal(tripID, driverID, vehicleID uuid.UUID, remarks string) (*models.TripRequest, *models.Driver, *models.Vehicle, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var status models.TripStatus
	err = tx.QueryRowx(`SELECT status FROM trip_requests WHERE id = $1 FOR UPDATE`, tripID).Scan(&status)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, nil, err
		}
		return nil, nil, nil, fmt.Errorf("failed to lock trip request: %w", err)
	}
	if status != models.TripStatusPending {
		return nil, nil, nil, ErrInvalidTransition
	}

	var driver models.Driver
	err = tx.QueryRowx(`
		UPDATE drivers
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3 AND temporarily_unavailable = FALSE
		RETURNING id, driver_name, age, phone_no, license_no, status, temporarily_unavailable, created_at, updated_at`,
		driverID, models.DriverStatusAssigned, models.DriverStatusAvailable,
	).StructScan(&driver)
	if err != nil {
		if err == sql.ErrNoRows {
			// Unknown driver is a 404, a claimed one is a conflict
			var exists bool
			if err := tx.QueryRowx(`SELECT EXISTS(SELECT 1 FROM drivers WHERE id = $1)`, driverID).Scan(&exists); err != nil {
				return nil, nil, nil, fmt.Errorf("failed to check driver: %w", err)
			}
			if !exists {
				return nil, nil, nil, sql.ErrNoRows
			}
			return nil, nil, nil, ErrDriverUnavailable
		}
		return nil, nil, nil, fmt.Errorf("failed to assign driver: %w", err)
	}

	var vehicle models.Vehicle
	err = tx.QueryRowx(`
		UPDATE vehicles
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3 AND out_of_service = FALSE
		RETURNING id, vehicle_name, capacity, vehicle_no, vehicle_color, status, out_of_service, created_at, updated_at`,
		vehicleID, models.VehicleStatusAssigned, models.VehicleStatusAvailable,
	).StructScan(&vehicle)
	if err != nil {
		if err == sql.ErrNoRows {
			var exists bool
			if err := tx.QueryRowx(`SELECT EXISTS(SELECT 1 FROM vehicles WHERE id = $1)`, vehicleID).Scan(&exists); err != nil {
				return nil, nil, nil, fmt.Errorf("failed to check vehicle: %w", err)
			}
			if !exists {
				return nil, nil, nil, sql.ErrNoRows
			}
			return nil, nil, nil, ErrVehicleUnavailable
		}
		return nil, nil, nil, fmt.Errorf("failed to assign vehicle: %w", err)
	}

	// Freeze the assignment as it looks right now
	details := &models.VehicleDetails{
		DriverID:     &driver.ID,
		VehicleID:    &vehicle.ID,
		DriverName:   driver.DriverName,
		PhoneNo:      driver.PhoneNo,
		LicenseNo:    driver.LicenseNo,
		VehicleNo:    vehicle.VehicleNo,
		VehicleName:  vehicle.VehicleName,
		VehicleColor: vehicle.VehicleColor,
	}

	if err := r.finishApproval(tx, tripID, details, remarks); err != nil {
		return nil, nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	trip, err := r.GetByID(tripID)
	if err != nil {
		return nil, nil, nil, err
	}

	return trip, &driver, &vehicle, nil
}

// ApproveOutside approves a pending trip request with an outside
// vehicle/driver, leaving the internal pool untouched
func (r *TripRequestRepository) ApproveOutside(tripID uuid.UUID, details *models.VehicleDetails, remarks string) (*models.TripRequest, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var status models.TripStatus
	err = tx.QueryRowx(`SELECT status FROM trip_requests WHERE id = $1 FOR UPDATE`, tripID).Scan(&status)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to lock trip request: %w", err)
	}
	if status != models.TripStatusPending {
		return nil, ErrInvalidTransition
	}

	if err := r.finishApproval(tx, tripID, details, remarks); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return r.GetByID(tripID)
}

func (r *TripRequestRepository) finishApproval(tx sqlxExecer, tripID uuid.UUID, details *models.VehicleDetails, remarks string) error {
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to encode vehicle details: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE trip_requests
		SET status = $2, vehicle_details = $3,
			remarks = CASE WHEN $4 <> '' THEN $4 ELSE remarks END,
			updated_at = NOW()
		WHERE id = $1`,
		tripID, models.TripStatusApproved, payload, remarks)
	if err != nil {
		return fmt.Errorf("failed to approve trip request: %w", err)
	}

	return nil
}

// sqlxExecer is the slice of the transaction API finishApproval needs
type sqlxExecer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

// Reject rejects a pending trip request, recording the admin's remarks
func (r *TripRequestRepository) Reject(tripID uuid.UUID, remarks string) (*models.TripRequest, error) {
	result, err := r.db.Exec(`
		UPDATE trip_requests
		SET status = $2,
			remarks = CASE WHEN $3 <> '' THEN $3 ELSE remarks END,
			updated_at = NOW()
		WHERE id = $1 AND status = $4`,
		tripID, models.TripStatusRejected, remarks, models.TripStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to reject trip request: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		// Either missing or not pending; look again to tell them apart
		if _, err := r.GetByID(tripID); err != nil {
			return nil, err
		}
		return nil, ErrInvalidTransition
	}

	return r.GetByID(tripID)
}

// Complete finishes an approved trip request and releases any internal
// driver/vehicle held by its assignment snapshot, all in one transaction
func (r *TripRequestRepository) Complete(tripID uuid.UUID) (*models.TripRequest, *models.Driver, *models.Vehicle, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var status models.TripStatus
	var detailsRaw []byte
	err = tx.QueryRowx(`SELECT status, vehicle_details FROM trip_requests WHERE id = $1 FOR UPDATE`, tripID).
		Scan(&status, &detailsRaw)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, nil, err
		}
		return nil, nil, nil, fmt.Errorf("failed to lock trip request: %w", err)
	}
	if status != models.TripStatusApproved {
		return nil, nil, nil, ErrInvalidTransition
	}

	var details models.VehicleDetails
	if len(detailsRaw) > 0 {
		if err := json.Unmarshal(detailsRaw, &details); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to decode vehicle details: %w", err)
		}
	}

	var driver *models.Driver
	var vehicle *models.Vehicle

	if details.HasInternalAssignment() {
		if details.DriverID != nil {
			var d models.Driver
			err = tx.QueryRowx(`
				UPDATE drivers
				SET status = $2, updated_at = NOW()
				WHERE id = $1
				RETURNING id, driver_name, age, phone_no, license_no, status, temporarily_unavailable, created_at, updated_at`,
				*details.DriverID, models.DriverStatusAvailable,
			).StructScan(&d)
			if err != nil && err != sql.ErrNoRows {
				return nil, nil, nil, fmt.Errorf("failed to release driver: %w", err)
			}
			if err == nil {
				driver = &d
			}
		}

		if details.VehicleID != nil {
			var v models.Vehicle
			err = tx.QueryRowx(`
				UPDATE vehicles
				SET status = $2, updated_at = NOW()
				WHERE id = $1
				RETURNING id, vehicle_name, capacity, vehicle_no, vehicle_color, status, out_of_service, created_at, updated_at`,
				*details.VehicleID, models.VehicleStatusAvailable,
			).StructScan(&v)
			if err != nil && err != sql.ErrNoRows {
				return nil, nil, nil, fmt.Errorf("failed to release vehicle: %w", err)
			}
			if err == nil {
				vehicle = &v
			}
		}
	}

	_, err = tx.Exec(`
		UPDATE trip_requests
		SET status = $2, updated_at = NOW()
		WHERE id = $1`,
		tripID, models.TripStatusCompleted)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to complete trip request: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	trip, err := r.GetByID(tripID)
	if err != nil {
		return nil, nil, nil, err
	}

	return trip, driver, vehicle, nil
}

// ListOverdueApproved returns the IDs of approved trip requests whose
// end date has passed, for the auto-complete job
func (r *TripRequestRepository) ListOverdueApproved(now time.Time) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	query := `
		SELECT id FROM trip_requests
		WHERE status = $1 AND end_date < $2
		ORDER BY end_date`

	if err := r.db.Select(&ids, query, models.TripStatusApproved, now); err != nil {
		return nil, fmt.Errorf("failed to list overdue trip requests: %w", err)
	}

	return ids, nil
}
