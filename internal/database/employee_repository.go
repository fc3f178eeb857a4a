package database

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/corptransit/transport-request-backend/internal/models"
)

// EmployeeRepository handles employee account data access
type EmployeeRepository struct {
	db DB
}

// NewEmployeeRepository creates a new employee repository
func NewEmployeeRepository(db DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

// Create inserts a new employee account
func (r *EmployeeRepository) Create(employee *models.Employee) error {
	query := `
		INSERT INTO employees (employee_id, name, email, password_hash, department, role, phone_no)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(query,
		employee.EmployeeID,
		employee.Name,
		employee.Email,
		employee.PasswordHash,
		employee.Department,
		employee.Role,
		employee.PhoneNo,
	).Scan(&employee.ID, &employee.CreatedAt, &employee.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create employee: %w", err)
	}

	return nil
}

// GetByID retrieves an employee by internal ID
func (r *EmployeeRepository) GetByID(id uuid.UUID) (*models.Employee, error) {
	var employee models.Employee
	query := `
		SELECT id, employee_id, name, email, password_hash, department, role, phone_no, created_at, updated_at
		FROM employees
		WHERE id = $1`

	err := r.db.Get(&employee, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}

	return &employee, nil
}

// GetByEmail retrieves an employee by email address
func (r *EmployeeRepository) GetByEmail(email string) (*models.Employee, error) {
	var employee models.Employee
	query := `
		SELECT id, employee_id, name, email, password_hash, department, role, phone_no, created_at, updated_at
		FROM employees
		WHERE LOWER(email) = LOWER($1)`

	err := r.db.Get(&employee, query, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get employee by email: %w", err)
	}

	return &employee, nil
}

// GetByEmployeeID retrieves an employee by company employee number
func (r *EmployeeRepository) GetByEmployeeID(employeeID string) (*models.Employee, error) {
	var employee models.Employee
	query := `
		SELECT id, employee_id, name, email, password_hash, department, role, phone_no, created_at, updated_at
		FROM employees
		WHERE employee_id = $1`

	err := r.db.Get(&employee, query, employeeID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get employee by employee_id: %w", err)
	}

	return &employee, nil
}

// ExistsByEmail checks whether an account already uses the given email
func (r *EmployeeRepository) ExistsByEmail(email string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM employees WHERE LOWER(email) = LOWER($1))`

	if err := r.db.Get(&exists, query, email); err != nil {
		return false, fmt.Errorf("failed to check email existence: %w", err)
	}

	return exists, nil
}

// ExistsByEmployeeID checks whether an account already uses the given employee number
func (r *EmployeeRepository) ExistsByEmployeeID(employeeID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM employees WHERE employee_id = $1)`

	if err := r.db.Get(&exists, query, employeeID); err != nil {
		return false, fmt.Errorf("failed to check employee_id existence: %w", err)
	}

	return exists, nil
}
