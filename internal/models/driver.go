package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// DriverStatus represents the assignment state of a driver
type DriverStatus string

const (
	DriverStatusAvailable DriverStatus = "available"
	DriverStatusAssigned  DriverStatus = "assigned"
)

// Driver represents a dispatchable driver in the internal pool
type Driver struct {
	ID                     uuid.UUID    `json:"id" db:"id"`
	DriverName             string       `json:"driverName" db:"driver_name"`
	Age                    int          `json:"age" db:"age"`
	PhoneNo                string       `json:"phoneNo" db:"phone_no"`
	LicenseNo              string       `json:"licenseNo" db:"license_no"`
	Status                 DriverStatus `json:"status" db:"status"`
	TemporarilyUnavailable bool         `json:"temporarilyUnavailable" db:"temporarily_unavailable"`
	CreatedAt              time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time    `json:"updated_at" db:"updated_at"`
}

// IsDispatchable reports whether the driver can be offered for assignment
func (d *Driver) IsDispatchable() bool {
	return d.Status == DriverStatusAvailable && !d.TemporarilyUnavailable
}

// CreateDriverRequest represents the request to create a new driver
type CreateDriverRequest struct {
	DriverName string  `json:"driverName" binding:"required"`
	Age        int     `json:"age" binding:"required"`
	PhoneNo    string  `json:"phoneNo" binding:"required"`
	LicenseNo  string  `json:"licenseNo" binding:"required"`
	Status     *string `json:"status,omitempty"`
}

// Validate validates the CreateDriverRequest
func (req *CreateDriverRequest) Validate() error {
	if req.Age < 18 || req.Age > 70 {
		return errors.New("age must be between 18 and 70")
	}

	if req.Status != nil {
		status := DriverStatus(*req.Status)
		if status != DriverStatusAvailable && status != DriverStatusAssigned {
			return errors.New("invalid status: must be available or assigned")
		}
	}

	return nil
}

// ToggleUnavailableRequest represents the request to force a driver
// temporarily out of the assignment pool (or back in)
type ToggleUnavailableRequest struct {
	TemporarilyUnavailable *bool `json:"temporarilyUnavailable" binding:"required"`
}
