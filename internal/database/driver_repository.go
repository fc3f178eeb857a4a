package database

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/corptransit/transport-request-backend/internal/models"
)

// DriverRepository handles driver data access
type DriverRepository struct {
	db DB
}

// NewDriverRepository creates a new driver repository
func NewDriverRepository(db DB) *DriverRepository {
	return &DriverRepository{db: db}
}

// Create inserts a new driver
func (r *DriverRepository) Create(driver *models.Driver) error {
	query := `
		INSERT INTO drivers (driver_name, age, phone_no, license_no, status, temporarily_unavailable)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(query,
		driver.DriverName,
		driver.Age,
		driver.PhoneNo,
		driver.LicenseNo,
		driver.Status,
		driver.TemporarilyUnavailable,
	).Scan(&driver.ID, &driver.CreatedAt, &driver.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create driver: %w", err)
	}

	return nil
}

// GetByID retrieves a driver by ID
func (r *DriverRepository) GetByID(id uuid.UUID) (*models.Driver, error) {
	var driver models.Driver
	query := `
		SELECT id, driver_name, age, phone_no, license_no, status, temporarily_unavailable, created_at, updated_at
		FROM drivers
		WHERE id = $1`

	err := r.db.Get(&driver, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get driver: %w", err)
	}

	return &driver, nil
}

// List retrieves all drivers, newest first
func (r *DriverRepository) List() ([]models.Driver, error) {
	drivers := []models.Driver{}
	query := `
		SELECT id, driver_name, age, phone_no, license_no, status, temporarily_unavailable, created_at, updated_at
		FROM drivers
		ORDER BY created_at DESC`

	if err := r.db.Select(&drivers, query); err != nil {
		return nil, fmt.Errorf("failed to list drivers: %w", err)
	}

	return drivers, nil
}

// Delete removes a driver by ID
func (r *DriverRepository) Delete(id uuid.UUID) error {
	result, err := r.db.Exec(`DELETE FROM drivers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete driver: %w", err)
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

// SetTemporarilyUnavailable updates the temporary unavailability flag
// and returns the updated driver
func (r *DriverRepository) SetTemporarilyUnavailable(id uuid.UUID, unavailable bool) (*models.Driver, error) {
	var driver models.Driver
	query := `
		UPDATE drivers
		SET temporarily_unavailable = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING id, driver_name, age, phone_no, license_no, status, temporarily_unavailable, created_at, updated_at`

	err := r.db.Get(&driver, query, id, unavailable)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update driver availability: %w", err)
	}

	return &driver, nil
}
