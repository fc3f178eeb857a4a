package middleware

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/corptransit/transport-request-backend/internal/database"
	"github.com/corptransit/transport-request-backend/internal/models"
	"github.com/corptransit/transport-request-backend/pkg/jwt"
)

// SessionCookieName is the cookie carrying the session token
const SessionCookieName = "jwt"

// EmployeeContextKey is the key used to store the authenticated
// employee in the Gin context
const EmployeeContextKey = "employee"

// AuthMiddleware validates the session cookie and loads the employee
// from the database, so role changes and deleted accounts take effect
// on the next request rather than at token expiry.
func AuthMiddleware(jwtService *jwt.Service, employees *database.EmployeeRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := c.Cookie(SessionCookieName)
		if err != nil || tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Authentication required",
			})
			c.Abort()
			return
		}

		claims, err := jwtService.ValidateToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_token",
				"message": "Session is invalid or expired",
			})
			c.Abort()
			return
		}

		employee, err := employees.GetByID(claims.EmployeeID)
		if err != nil {
			if err == sql.ErrNoRows {
				c.JSON(http.StatusUnauthorized, gin.H{
					"error":   "unauthorized",
					"message": "Account no longer exists",
				})
			} else {
				c.JSON(http.StatusInternalServerError, gin.H{
					"error":   "internal_error",
					"message": "Failed to load account",
				})
			}
			c.Abort()
			return
		}

		c.Set(EmployeeContextKey, employee)
		c.Next()
	}
}

// RequireAdmin rejects requests from non-admin accounts. Must run
// after AuthMiddleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		employee, ok := GetEmployee(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Authentication required",
			})
			c.Abort()
			return
		}

		if !employee.IsAdmin() {
			c.JSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "Admin access required",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetEmployee retrieves the authenticated employee from the Gin context
func GetEmployee(c *gin.Context) (*models.Employee, bool) {
	value, exists := c.Get(EmployeeContextKey)
	if !exists {
		return nil, false
	}

	employee, ok := value.(*models.Employee)
	return employee, ok
}
