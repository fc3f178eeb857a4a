package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/corptransit/transport-request-backend/internal/database"
)

// RateLimitService limits how often unauthenticated auth endpoints can
// be hit from a single IP. Counters live in the database, so the limit
// holds across instances.
type RateLimitService struct {
	db          database.DB
	maxRequests int
	window      time.Duration
}

// NewRateLimitService creates a new rate limit service
func NewRateLimitService(db database.DB, maxRequests int, window time.Duration) *RateLimitService {
	return &RateLimitService{
		db:          db,
		maxRequests: maxRequests,
		window:      window,
	}
}

// RateLimitError represents a rate limit exceeded error
type RateLimitError struct {
	Message    string
	RetryAfter time.Time
}

func (e *RateLimitError) Error() string {
	return e.Message
}

// Check returns a RateLimitError when the IP has exhausted its window
func (s *RateLimitService) Check(ip string) error {
	if ip == "" {
		return nil
	}

	count, lastRequest, err := s.getRequestCount(ip)
	if err != nil {
		return fmt.Errorf("failed to check rate limit: %w", err)
	}

	if count >= s.maxRequests {
		retryAfter := lastRequest.Add(s.window)
		return &RateLimitError{
			Message:    fmt.Sprintf("Too many requests. Please try again after %s", retryAfter.Format("15:04:05")),
			RetryAfter: retryAfter,
		}
	}

	return nil
}

// Record records one request against the IP's window
func (s *RateLimitService) Record(ip string) error {
	if ip == "" {
		return nil
	}

	_, err := s.db.Exec(`INSERT INTO auth_rate_limits (identifier) VALUES ($1)`, ip)
	if err != nil {
		return fmt.Errorf("failed to record rate limit entry: %w", err)
	}

	return nil
}

// getRequestCount gets the number of requests within the time window
func (s *RateLimitService) getRequestCount(ip string) (int, time.Time, error) {
	windowStart := time.Now().Add(-s.window)

	query := `
		SELECT COUNT(*), COALESCE(MAX(created_at), NOW())
		FROM auth_rate_limits
		WHERE identifier = $1 AND created_at > $2`

	var count int
	var lastRequest time.Time

	err := s.db.QueryRow(query, ip, windowStart).Scan(&count, &lastRequest)
	if err != nil && err != sql.ErrNoRows {
		return 0, time.Time{}, err
	}

	return count, lastRequest, nil
}

// CleanupOldEntries removes entries older than twice the window.
// Run from the cron scheduler.
func (s *RateLimitService) CleanupOldEntries() (int64, error) {
	cutoff := time.Now().Add(-2 * s.window)

	result, err := s.db.Exec(`DELETE FROM auth_rate_limits WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up rate limit entries: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}
