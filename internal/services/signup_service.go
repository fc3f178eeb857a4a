package services

import (
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/corptransit/transport-request-backend/internal/database"
	"github.com/corptransit/transport-request-backend/internal/models"
	"github.com/corptransit/transport-request-backend/pkg/validator"
)

// OTPLength is the length of the signup OTP code
const OTPLength = 6

var (
	// ErrEmailTaken indicates an account already uses this email
	ErrEmailTaken = fmt.Errorf("email is already registered")

	// ErrEmployeeIDTaken indicates an account already uses this employee number
	ErrEmployeeIDTaken = fmt.Errorf("employee ID is already registered")

	// ErrNoPendingSignup indicates no signup is awaiting verification for the email
	ErrNoPendingSignup = fmt.Errorf("no pending signup found for this email")

	// ErrOTPExpired indicates the OTP has expired
	ErrOTPExpired = fmt.Errorf("OTP has expired")

	// ErrOTPInvalid indicates the OTP is incorrect
	ErrOTPInvalid = fmt.Errorf("invalid OTP code")

	// ErrMaxAttemptsExceeded indicates too many failed validation attempts
	ErrMaxAttemptsExceeded = fmt.Errorf("maximum OTP validation attempts exceeded")
)

// SignupService handles the OTP-verified signup flow. Pending signups
// live in the database, so verification works across restarts and
// multiple instances.
type SignupService struct {
	db             database.DB
	employees      *database.EmployeeRepository
	emailValidator *validator.EmailValidator
	otpExpiry      time.Duration
	maxAttempts    int
	bcryptCost     int
}

// NewSignupService creates a new signup service
func NewSignupService(db database.DB, employees *database.EmployeeRepository, emailValidator *validator.EmailValidator, otpExpiry time.Duration, maxAttempts, bcryptCost int) *SignupService {
	return &SignupService{
		db:             db,
		employees:      employees,
		emailValidator: emailValidator,
		otpExpiry:      otpExpiry,
		maxAttempts:    maxAttempts,
		bcryptCost:     bcryptCost,
	}
}

// Begin validates a signup request, stores it as a pending signup and
// returns the generated OTP together with the sanitized email.
// Re-submitting for the same email replaces the previous pending signup.
func (s *SignupService) Begin(req *models.SignupRequest, ipAddress, userAgent string) (string, string, error) {
	email, err := s.emailValidator.Validate(req.Email)
	if err != nil {
		return "", "", err
	}

	emailTaken, err := s.employees.ExistsByEmail(email)
	if err != nil {
		return "", "", err
	}
	if emailTaken {
		return "", "", ErrEmailTaken
	}

	idTaken, err := s.employees.ExistsByEmployeeID(req.EmployeeID)
	if err != nil {
		return "", "", err
	}
	if idTaken {
		return "", "", ErrEmployeeIDTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return "", "", fmt.Errorf("failed to hash password: %w", err)
	}

	otp, err := generateRandomOTP()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate OTP: %w", err)
	}

	expiresAt := time.Now().Add(s.otpExpiry)

	query := `
		INSERT INTO pending_signups (employee_id, name, email, password_hash, department, phone_no,
			otp_code, expires_at, attempts, max_attempts, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, $10, $11)
		ON CONFLICT (email) DO UPDATE SET
			employee_id = EXCLUDED.employee_id,
			name = EXCLUDED.name,
			password_hash = EXCLUDED.password_hash,
			department = EXCLUDED.department,
			phone_no = EXCLUDED.phone_no,
			otp_code = EXCLUDED.otp_code,
			expires_at = EXCLUDED.expires_at,
			attempts = 0,
			ip_address = EXCLUDED.ip_address,
			user_agent = EXCLUDED.user_agent,
			created_at = NOW()`

	_, err = s.db.Exec(query,
		req.EmployeeID, req.Name, email, string(hash), req.Department, req.PhoneNo,
		otp, expiresAt, s.maxAttempts, ipAddress, userAgent)
	if err != nil {
		return "", "", fmt.Errorf("failed to store pending signup: %w", err)
	}

	return otp, email, nil
}

// Verify checks the OTP for a pending signup and, on success, creates
// the employee account and removes the pending row
func (s *SignupService) Verify(email, otp string) (*models.Employee, error) {
	sanitized, err := s.emailValidator.Validate(email)
	if err != nil {
		return nil, err
	}

	var pending models.PendingSignup
	query := `
		SELECT id, employee_id, name, email, password_hash, department, phone_no,
			otp_code, expires_at, attempts, max_attempts, verified, verified_at,
			ip_address, user_agent, created_at
		FROM pending_signups
		WHERE email = $1`

	if err := s.db.Get(&pending, query, sanitized); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNoPendingSignup
		}
		return nil, fmt.Errorf("failed to get pending signup: %w", err)
	}

	if time.Now().After(pending.ExpiresAt) {
		return nil, ErrOTPExpired
	}

	if pending.Attempts >= pending.MaxAttempts {
		return nil, ErrMaxAttemptsExceeded
	}

	if _, err := s.db.Exec(`UPDATE pending_signups SET attempts = attempts + 1 WHERE id = $1`, pending.ID); err != nil {
		return nil, fmt.Errorf("failed to increment attempts: %w", err)
	}

	if pending.OTPCode != otp {
		return nil, ErrOTPInvalid
	}

	employee := &models.Employee{
		EmployeeID:   pending.EmployeeID,
		Name:         pending.Name,
		Email:        pending.Email,
		PasswordHash: pending.PasswordHash,
		Department:   pending.Department,
		Role:         models.RoleEmployee,
		PhoneNo:      pending.PhoneNo,
	}

	if err := s.employees.Create(employee); err != nil {
		return nil, err
	}

	if _, err := s.db.Exec(`DELETE FROM pending_signups WHERE id = $1`, pending.ID); err != nil {
		return nil, fmt.Errorf("failed to remove pending signup: %w", err)
	}

	return employee, nil
}

// CleanupExpired removes pending signups whose OTP expired more than
// a day ago. Run from the cron scheduler.
func (s *SignupService) CleanupExpired() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM pending_signups WHERE expires_at < NOW() - INTERVAL '1 day'`)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up pending signups: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}

// generateRandomOTP generates a cryptographically secure 6-digit OTP
func generateRandomOTP() (string, error) {
	max := big.NewInt(1000000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%06d", n.Int64()), nil
}
