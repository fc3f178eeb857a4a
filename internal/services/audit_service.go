package services

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/corptransit/transport-request-backend/internal/database"
	"github.com/corptransit/transport-request-backend/internal/utils"
)

// AuditService records security and workflow events
type AuditService struct {
	db      database.DB
	enabled bool
}

// NewAuditService creates a new audit service
func NewAuditService(db database.DB, enabled bool) *AuditService {
	return &AuditService{
		db:      db,
		enabled: enabled,
	}
}

// AuditEvent represents an event to be logged
type AuditEvent struct {
	ActorID    *uuid.UUID // nil for pre-authentication events
	Action     string     // e.g. "login", "signup_verified", "trip_request_approved"
	EntityType string     // e.g. "employee", "trip_request", "driver", "vehicle"
	EntityID   *uuid.UUID
	IPAddress  string
	UserAgent  string
	Details    map[string]interface{}
}

// LogAuth logs an authentication event (signup, OTP verification, login, logout)
func (s *AuditService) LogAuth(action string, actorID *uuid.UUID, email, ipAddress, userAgent string, success bool, reason string) error {
	details := map[string]interface{}{
		"email":       email,
		"success":     success,
		"device_info": utils.ParseUserAgent(userAgent),
	}
	if reason != "" {
		details["reason"] = reason
	}

	return s.logEvent(AuditEvent{
		ActorID:    actorID,
		Action:     action,
		EntityType: "employee",
		EntityID:   actorID,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Details:    details,
	})
}

// LogWorkflowAction logs an admin action on a trip request
func (s *AuditService) LogWorkflowAction(action string, actorID uuid.UUID, tripID uuid.UUID, ipAddress, userAgent string, details map[string]interface{}) error {
	if details == nil {
		details = map[string]interface{}{}
	}
	details["device_info"] = utils.ParseUserAgent(userAgent)

	return s.logEvent(AuditEvent{
		ActorID:    &actorID,
		Action:     action,
		EntityType: "trip_request",
		EntityID:   &tripID,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Details:    details,
	})
}

// LogFleetAction logs an admin change to the driver or vehicle pool
func (s *AuditService) LogFleetAction(action, entityType string, actorID uuid.UUID, entityID uuid.UUID, ipAddress, userAgent string) error {
	return s.logEvent(AuditEvent{
		ActorID:    &actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   &entityID,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Details: map[string]interface{}{
			"device_info": utils.ParseUserAgent(userAgent),
		},
	})
}

func (s *AuditService) logEvent(event AuditEvent) error {
	if !s.enabled {
		return nil
	}

	payload, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}

	query := `
		INSERT INTO audit_logs (actor_id, action, entity_type, entity_id, ip_address, user_agent, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`

	_, err = s.db.Exec(query,
		event.ActorID,
		event.Action,
		event.EntityType,
		event.EntityID,
		event.IPAddress,
		event.UserAgent,
		payload,
	)
	if err != nil {
		return fmt.Errorf("failed to log audit event: %w", err)
	}

	return nil
}
