package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TripPurpose represents the purpose of a trip request
type TripPurpose string

const (
	PurposeOfficial TripPurpose = "Official"
	PurposePersonal TripPurpose = "Personal"
)

// TripStatus represents the workflow state of a trip request
type TripStatus string

const (
	TripStatusPending   TripStatus = "Pending"
	TripStatusApproved  TripStatus = "Approved"
	TripStatusRejected  TripStatus = "Rejected"
	TripStatusCompleted TripStatus = "Completed"
)

// validDesignations enumerates the requester ranks accepted on a trip request
var validDesignations = map[string]bool{
	"Unit Head":       true,
	"Functional Head": true,
	"Department Head": true,
	"Sectional Head":  true,
	"Management":      true,
	"Staff":           true,
	"Worker":          true,
}

const (
	// MinPassengers is the minimum passenger count on a trip request
	MinPassengers = 1

	// MaxPassengers is the maximum passenger count on a trip request
	MaxPassengers = 20
)

// OutsideVehicle holds free-text details of an external vehicle
type OutsideVehicle struct {
	VehicleNo   string `json:"vehicleNo,omitempty"`
	VehicleName string `json:"vehicleName,omitempty"`
}

// OutsideDriver holds free-text details of an external driver
type OutsideDriver struct {
	DriverName string `json:"driverName,omitempty"`
	PhoneNo    string `json:"phoneNo,omitempty"`
}

// VehicleDetails is the assignment snapshot embedded in a trip request.
// Populated exactly once at approval: either references to an internal
// driver/vehicle pair with display fields frozen at that moment, or the
// outside form with free-text details. Stored as a JSONB document.
type VehicleDetails struct {
	DriverID     *uuid.UUID `json:"driverId,omitempty"`
	VehicleID    *uuid.UUID `json:"vehicleId,omitempty"`
	DriverName   string     `json:"driverName,omitempty"`
	PhoneNo      string     `json:"phoneNo,omitempty"`
	LicenseNo    string     `json:"licenseNo,omitempty"`
	VehicleNo    string     `json:"vehicleNo,omitempty"`
	VehicleName  string     `json:"vehicleName,omitempty"`
	VehicleColor string     `json:"vehicleColor,omitempty"`

	IsOutside      bool            `json:"isOutside,omitempty"`
	OutsideVehicle *OutsideVehicle `json:"outsideVehicle,omitempty"`
	OutsideDriver  *OutsideDriver  `json:"outsideDriver,omitempty"`
}

// Value implements the driver.Valuer interface
func (v *VehicleDetails) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// Scan implements the sql.Scanner interface
func (v *VehicleDetails) Scan(src interface{}) error {
	if src == nil {
		return nil
	}

	var data []byte
	switch s := src.(type) {
	case []byte:
		data = s
	case string:
		data = []byte(s)
	default:
		return fmt.Errorf("unsupported type for VehicleDetails: %T", src)
	}

	return json.Unmarshal(data, v)
}

// HasInternalAssignment reports whether the snapshot references
// internal pool resources that must be released at completion
func (v *VehicleDetails) HasInternalAssignment() bool {
	return v != nil && !v.IsOutside && (v.DriverID != nil || v.VehicleID != nil)
}

// TripRequest is the central workflow record
type TripRequest struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	Purpose            TripPurpose     `json:"purpose" db:"purpose"`
	Designation        string          `json:"designation" db:"designation"`
	Destination        string          `json:"destination" db:"destination"`
	PickupPoint        string          `json:"pickupPoint" db:"pickup_point"`
	StartDate          time.Time       `json:"startDate" db:"start_date"`
	StartTime          string          `json:"startTime" db:"start_time"`
	EndDate            time.Time       `json:"endDate" db:"end_date"`
	NumberOfPassengers int             `json:"numberOfPassengers" db:"number_of_passengers"`
	Remarks            string          `json:"remarks" db:"remarks"`
	Status             TripStatus      `json:"status" db:"status"`
	CreatedByID        uuid.UUID       `json:"-" db:"created_by"`
	VehicleDetails     *VehicleDetails `json:"vehicleDetails,omitempty" db:"-"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at" db:"updated_at"`

	// CreatedBy carries the resolved creator display fields; it is
	// joined in at read time, never written to the trip_requests table.
	CreatedBy *EmployeeSummary `json:"createdBy,omitempty" db:"-"`
}

// CanApprove reports whether the request may be approved or rejected
func (t *TripRequest) CanApprove() bool {
	return t.Status == TripStatusPending
}

// CanComplete reports whether the request may be completed
func (t *TripRequest) CanComplete() bool {
	return t.Status == TripStatusApproved
}

// CreateTripRequest represents the request to create a trip request
type CreateTripRequest struct {
	Purpose            string `json:"purpose" binding:"required"`
	Designation        string `json:"designation" binding:"required"`
	Destination        string `json:"destination" binding:"required"`
	PickupPoint        string `json:"pickupPoint" binding:"required"`
	StartDate          string `json:"startDate" binding:"required"` // Format: YYYY-MM-DD
	StartTime          string `json:"startTime" binding:"required"` // Format: HH:MM
	EndDate            string `json:"endDate" binding:"required"`   // Format: YYYY-MM-DD
	NumberOfPassengers int    `json:"numberOfPassengers" binding:"required"`
	Remarks            string `json:"remarks"`
}

// Validate validates the CreateTripRequest
func (req *CreateTripRequest) Validate() error {
	purpose := TripPurpose(req.Purpose)
	if purpose != PurposeOfficial && purpose != PurposePersonal {
		return errors.New("invalid purpose: must be Official or Personal")
	}

	if !validDesignations[req.Designation] {
		return errors.New("invalid designation")
	}

	if req.NumberOfPassengers < MinPassengers || req.NumberOfPassengers > MaxPassengers {
		return fmt.Errorf("numberOfPassengers must be between %d and %d", MinPassengers, MaxPassengers)
	}

	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return errors.New("invalid startDate format. Use YYYY-MM-DD")
	}

	endDate, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		return errors.New("invalid endDate format. Use YYYY-MM-DD")
	}

	if endDate.Before(startDate) {
		return errors.New("endDate cannot be before startDate")
	}

	if _, err := time.Parse("15:04", req.StartTime); err != nil {
		return errors.New("invalid startTime format. Use HH:MM")
	}

	return nil
}

// ParsedDates returns the parsed start and end dates.
// Call Validate first; invalid dates yield zero times here.
func (req *CreateTripRequest) ParsedDates() (time.Time, time.Time) {
	startDate, _ := time.Parse("2006-01-02", req.StartDate)
	endDate, _ := time.Parse("2006-01-02", req.EndDate)
	return startDate, endDate
}

// ApproveTripRequest represents the request to approve a trip request,
// either assigning an internal driver/vehicle pair or recording an
// outside assignment
type ApproveTripRequest struct {
	VehicleID      *uuid.UUID      `json:"vehicleId,omitempty"`
	DriverID       *uuid.UUID      `json:"driverId,omitempty"`
	Remarks        string          `json:"remarks"`
	IsOutside      bool            `json:"isOutside"`
	OutsideVehicle *OutsideVehicle `json:"outsideVehicle,omitempty"`
	OutsideDriver  *OutsideDriver  `json:"outsideDriver,omitempty"`
}

// Validate validates the ApproveTripRequest
func (req *ApproveTripRequest) Validate() error {
	if req.IsOutside {
		return nil
	}

	if req.VehicleID == nil || req.DriverID == nil {
		return errors.New("vehicleId and driverId are required for an internal assignment")
	}

	return nil
}

// RejectTripRequest represents the request to reject a trip request
type RejectTripRequest struct {
	Remarks string `json:"remarks"`
}
