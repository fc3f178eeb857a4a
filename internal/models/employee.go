package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// EmployeeRole represents the role of an employee account
type EmployeeRole string

const (
	RoleEmployee EmployeeRole = "employee"
	RoleAdmin    EmployeeRole = "admin"
)

// Employee represents an employee account
type Employee struct {
	ID           uuid.UUID    `json:"id" db:"id"`
	EmployeeID   string       `json:"employeeId" db:"employee_id"`
	Name         string       `json:"name" db:"name"`
	Email        string       `json:"email" db:"email"`
	PasswordHash string       `json:"-" db:"password_hash"`
	Department   string       `json:"department" db:"department"`
	Role         EmployeeRole `json:"role" db:"role"`
	PhoneNo      string       `json:"phoneNo" db:"phone_no"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}

// IsAdmin reports whether the employee has admin privileges
func (e *Employee) IsAdmin() bool {
	return e.Role == RoleAdmin
}

// EmployeeSummary is the creator view embedded in trip request responses
type EmployeeSummary struct {
	ID         uuid.UUID `json:"id"`
	EmployeeID string    `json:"employeeId"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Department string    `json:"department"`
	PhoneNo    string    `json:"phoneNo"`
	Role       string    `json:"role"`
}

// Summary returns the public creator view of the employee
func (e *Employee) Summary() *EmployeeSummary {
	return &EmployeeSummary{
		ID:         e.ID,
		EmployeeID: e.EmployeeID,
		Name:       e.Name,
		Email:      e.Email,
		Department: e.Department,
		PhoneNo:    e.PhoneNo,
		Role:       string(e.Role),
	}
}

// SignupRequest represents the request to begin signup
type SignupRequest struct {
	EmployeeID string `json:"employeeId" binding:"required"`
	Name       string `json:"name" binding:"required"`
	Email      string `json:"email" binding:"required"`
	Password   string `json:"password" binding:"required"`
	Department string `json:"department" binding:"required"`
	PhoneNo    string `json:"phoneNo"`
}

// Validate validates the SignupRequest
func (req *SignupRequest) Validate() error {
	if len(req.Password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	if len(req.Name) > 120 {
		return errors.New("name is too long")
	}
	if len(req.EmployeeID) > 40 {
		return errors.New("employeeId is too long")
	}
	return nil
}

// VerifyOTPRequest represents the request to verify a signup OTP
type VerifyOTPRequest struct {
	Email string `json:"email" binding:"required"`
	OTP   string `json:"otp" binding:"required"`
}

// LoginRequest represents the request to log in.
// Either Email or EmployeeID identifies the account.
type LoginRequest struct {
	Email      string `json:"email"`
	EmployeeID string `json:"employeeId"`
	Password   string `json:"password" binding:"required"`
}

// Validate validates the LoginRequest
func (req *LoginRequest) Validate() error {
	if req.Email == "" && req.EmployeeID == "" {
		return errors.New("email or employeeId is required")
	}
	return nil
}

// PendingSignup is a durable signup awaiting OTP verification.
// Keyed by email so verification survives process restarts.
type PendingSignup struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	EmployeeID   string     `json:"employee_id" db:"employee_id"`
	Name         string     `json:"name" db:"name"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	Department   string     `json:"department" db:"department"`
	PhoneNo      string     `json:"phone_no" db:"phone_no"`
	OTPCode      string     `json:"-" db:"otp_code"`
	ExpiresAt    time.Time  `json:"expires_at" db:"expires_at"`
	Attempts     int        `json:"attempts" db:"attempts"`
	MaxAttempts  int        `json:"max_attempts" db:"max_attempts"`
	Verified     bool       `json:"verified" db:"verified"`
	VerifiedAt   *time.Time `json:"verified_at,omitempty" db:"verified_at"`
	IPAddress    string     `json:"ip_address" db:"ip_address"`
	UserAgent    string     `json:"user_agent" db:"user_agent"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}
