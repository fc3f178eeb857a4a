package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/corptransit/transport-request-backend/internal/database"
	"github.com/corptransit/transport-request-backend/internal/middleware"
	"github.com/corptransit/transport-request-backend/internal/models"
	"github.com/corptransit/transport-request-backend/internal/services"
	"github.com/corptransit/transport-request-backend/internal/utils"
	"github.com/corptransit/transport-request-backend/pkg/jwt"
	"github.com/corptransit/transport-request-backend/pkg/validator"
)

// AuthHandler handles signup, login and session endpoints
type AuthHandler struct {
	employeeRepo  *database.EmployeeRepository
	signupService *services.SignupService
	notifications *services.NotificationService
	auditService  *services.AuditService
	jwtService    *jwt.Service
	logger        *logrus.Logger
	otpExpiryMin  int
	cookieSecure  bool
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(
	employeeRepo *database.EmployeeRepository,
	signupService *services.SignupService,
	notifications *services.NotificationService,
	auditService *services.AuditService,
	jwtService *jwt.Service,
	logger *logrus.Logger,
	otpExpiryMin int,
	cookieSecure bool,
) *AuthHandler {
	return &AuthHandler{
		employeeRepo:  employeeRepo,
		signupService: signupService,
		notifications: notifications,
		auditService:  auditService,
		jwtService:    jwtService,
		logger:        logger,
		otpExpiryMin:  otpExpiryMin,
		cookieSecure:  cookieSecure,
	}
}

// Signup begins the OTP-verified signup flow
// POST /api/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ip := utils.GetRealIP(c)
	userAgent := utils.GetUserAgent(c)

	otp, email, err := h.signupService.Begin(&req, ip, userAgent)
	if err != nil {
		switch {
		case errors.Is(err, validator.ErrEmptyEmail),
			errors.Is(err, validator.ErrInvalidFormat),
			errors.Is(err, validator.ErrWrongDomain):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, services.ErrEmailTaken),
			errors.Is(err, services.ErrEmployeeIDTaken):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			h.logger.WithError(err).Error("Signup failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start signup"})
		}
		return
	}

	h.logAuth("signup_started", nil, email, c, true, "")

	go h.notifications.SendSignupOTP(email, req.Name, otp, h.otpExpiryMin)

	c.JSON(http.StatusOK, gin.H{"message": "OTP sent to your email."})
}

// VerifyOTP completes signup and signs the new employee in
// POST /api/verify-otp
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req models.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	employee, err := h.signupService.Verify(req.Email, req.OTP)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNoPendingSignup):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, services.ErrOTPExpired),
			errors.Is(err, services.ErrOTPInvalid):
			h.logAuth("signup_otp_failed", nil, req.Email, c, false, err.Error())
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, services.ErrMaxAttemptsExceeded):
			h.logAuth("signup_otp_failed", nil, req.Email, c, false, err.Error())
			c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
		case errors.Is(err, validator.ErrEmptyEmail),
			errors.Is(err, validator.ErrInvalidFormat),
			errors.Is(err, validator.ErrWrongDomain):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.WithError(err).Error("OTP verification failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify OTP"})
		}
		return
	}

	h.logAuth("signup_verified", &employee.ID, employee.Email, c, true, "")

	h.setSessionCookie(c, employee)

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Account created successfully.",
		"employee": employee,
	})
}

// Login authenticates by email or employee ID plus password
// POST /api/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var employee *models.Employee
	var err error
	if req.Email != "" {
		employee, err = h.employeeRepo.GetByEmail(req.Email)
	} else {
		employee, err = h.employeeRepo.GetByEmployeeID(req.EmployeeID)
	}
	if err != nil {
		if err == sql.ErrNoRows {
			h.logAuth("login_failed", nil, req.Email, c, false, "account not found")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		h.logger.WithError(err).Error("Login lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to log in"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(employee.PasswordHash), []byte(req.Password)); err != nil {
		h.logAuth("login_failed", &employee.ID, employee.Email, c, false, "wrong password")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	h.logAuth("login", &employee.ID, employee.Email, c, true, "")

	h.setSessionCookie(c, employee)

	c.JSON(http.StatusOK, gin.H{
		"message":  "Logged in successfully.",
		"employee": employee,
	})
}

// Logout clears the session cookie
// POST /api/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if employee, ok := middleware.GetEmployee(c); ok {
		h.logAuth("logout", &employee.ID, employee.Email, c, true, "")
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookieName, "", -1, "/", "", h.cookieSecure, true)

	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully."})
}

// Me returns the authenticated employee
// GET /api/me
func (h *AuthHandler) Me(c *gin.Context) {
	employee, ok := middleware.GetEmployee(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	c.JSON(http.StatusOK, employee)
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, employee *models.Employee) {
	token, err := h.jwtService.GenerateToken(employee.ID, employee.Email, string(employee.Role))
	if err != nil {
		h.logger.WithError(err).Error("Failed to generate session token")
		return
	}

	maxAge := int(h.jwtService.Expiry().Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookieName, token, maxAge, "/", "", h.cookieSecure, true)
}

func (h *AuthHandler) logAuth(action string, actorID *uuid.UUID, email string, c *gin.Context, success bool, reason string) {
	if h.auditService == nil {
		return
	}
	if err := h.auditService.LogAuth(action, actorID, email, utils.GetRealIP(c), utils.GetUserAgent(c), success, reason); err != nil {
		h.logger.WithError(err).Warn("Failed to write audit log")
	}
}
