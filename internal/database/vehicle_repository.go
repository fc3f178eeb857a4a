package database

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/corptransit/transport-request-backend/internal/models"
)

// ErrDuplicateVehicleNo is returned when a vehicle number is already registered
var ErrDuplicateVehicleNo = fmt.Errorf("vehicle number already registered")

// VehicleRepository handles vehicle data access
type VehicleRepository struct {
	db DB
}

// NewVehicleRepository creates a new vehicle repository
func NewVehicleRepository(db DB) *VehicleRepository {
	return &VehicleRepository{db: db}
}

// isUniqueViolation reports whether err is a Postgres unique constraint violation
func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}

// Create inserts a new vehicle
func (r *VehicleRepository) Create(vehicle *models.Vehicle) error {
	query := `
		INSERT INTO vehicles (vehicle_name, capacity, vehicle_no, vehicle_color, status, out_of_service)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(query,
		vehicle.VehicleName,
		vehicle.Capacity,
		vehicle.VehicleNo,
		vehicle.VehicleColor,
		vehicle.Status,
		vehicle.OutOfService,
	).Scan(&vehicle.ID, &vehicle.CreatedAt, &vehicle.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateVehicleNo
		}
		return fmt.Errorf("failed to create vehicle: %w", err)
	}

	return nil
}

// GetByID retrieves a vehicle by ID
func (r *VehicleRepository) GetByID(id uuid.UUID) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	query := `
		SELECT id, vehicle_name, capacity, vehicle_no, vehicle_color, status, out_of_service, created_at, updated_at
		FROM vehicles
		WHERE id = $1`

	err := r.db.Get(&vehicle, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get vehicle: %w", err)
	}

	return &vehicle, nil
}

// List retrieves all vehicles, newest first
func (r *VehicleRepository) List() ([]models.Vehicle, error) {
	vehicles := []models.Vehicle{}
	query := `
		SELECT id, vehicle_name, capacity, vehicle_no, vehicle_color, status, out_of_service, created_at, updated_at
		FROM vehicles
		ORDER BY created_at DESC`

	if err := r.db.Select(&vehicles, query); err != nil {
		return nil, fmt.Errorf("failed to list vehicles: %w", err)
	}

	return vehicles, nil
}

// Delete removes a vehicle by ID
func (r *VehicleRepository) Delete(id uuid.UUID) error {
	result, err := r.db.Exec(`DELETE FROM vehicles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete vehicle: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// SetOutOfService updates the out-of-service flag and returns the updated vehicle
func (r *VehicleRepository) SetOutOfService(id uuid.UUID, outOfService bool) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	query := `
		UPDATE vehicles
		SET out_of_service = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING id, vehicle_name, capacity, vehicle_no, vehicle_color, status, out_of_service, created_at, updated_at`

	err := r.db.Get(&vehicle, query, id, outOfService)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update vehicle service status: %w", err)
	}

	return &vehicle, nil
}
