package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// VehicleStatus represents the assignment state of a vehicle
type VehicleStatus string

const (
	VehicleStatusAvailable VehicleStatus = "Available"
	VehicleStatusAssigned  VehicleStatus = "Assigned"
)

// Vehicle represents a dispatchable vehicle in the internal pool
type Vehicle struct {
	ID           uuid.UUID     `json:"id" db:"id"`
	VehicleName  string        `json:"vehicleName" db:"vehicle_name"`
	Capacity     int           `json:"capacity" db:"capacity"`
	VehicleNo    string        `json:"vehicleNo" db:"vehicle_no"`
	VehicleColor string        `json:"vehicleColor" db:"vehicle_color"`
	Status       VehicleStatus `json:"status" db:"status"`
	OutOfService bool          `json:"outOfService" db:"out_of_service"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at" db:"updated_at"`
}

// IsDispatchable reports whether the vehicle can be offered for assignment
func (v *Vehicle) IsDispatchable() bool {
	return v.Status == VehicleStatusAvailable && !v.OutOfService
}

// CreateVehicleRequest represents the request to create a new vehicle
type CreateVehicleRequest struct {
	VehicleName  string  `json:"vehicleName" binding:"required"`
	Capacity     int     `json:"capacity" binding:"required,gt=0"`
	VehicleNo    string  `json:"vehicleNo" binding:"required"`
	VehicleColor string  `json:"vehicleColor" binding:"required"`
	Status       *string `json:"status,omitempty"`
}

// Validate validates the CreateVehicleRequest
func (req *CreateVehicleRequest) Validate() error {
	if req.Capacity <= 0 {
		return errors.New("capacity must be greater than 0")
	}

	if strings.TrimSpace(req.VehicleNo) == "" {
		return errors.New("vehicleNo cannot be empty")
	}

	if req.Status != nil {
		status := VehicleStatus(*req.Status)
		if status != VehicleStatusAvailable && status != VehicleStatusAssigned {
			return errors.New("invalid status: must be Available or Assigned")
		}
	}

	return nil
}

// NormalizedVehicleNo returns the plate number trimmed and uppercased,
// matching how plates are stored
func (req *CreateVehicleRequest) NormalizedVehicleNo() string {
	return strings.ToUpper(strings.TrimSpace(req.VehicleNo))
}

// ToggleOutOfServiceRequest represents the request to mark a vehicle
// out of service (or back in service)
type ToggleOutOfServiceRequest struct {
	OutOfService *bool `json:"outOfService" binding:"required"`
}
