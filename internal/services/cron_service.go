package services

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/corptransit/transport-request-backend/internal/database"
	"github.com/corptransit/transport-request-backend/internal/realtime"
)

// CronService manages scheduled background jobs
type CronService struct {
	cron      *cron.Cron
	trips     *database.TripRequestRepository
	signups   *SignupService
	rateLimit *RateLimitService
	hub       realtime.Broadcaster
	logger    *logrus.Logger
}

// NewCronService creates a new CronService
func NewCronService(trips *database.TripRequestRepository, signups *SignupService, rateLimit *RateLimitService, hub realtime.Broadcaster, logger *logrus.Logger) *CronService {
	return &CronService{
		cron:      cron.New(),
		trips:     trips,
		signups:   signups,
		rateLimit: rateLimit,
		hub:       hub,
		logger:    logger,
	}
}

// Start schedules all jobs and starts the scheduler
func (s *CronService) Start() error {
	// Auto-complete approved trips whose end date has passed, hourly
	if _, err := s.cron.AddFunc("@hourly", s.autoCompleteOverdueTrips); err != nil {
		return fmt.Errorf("failed to schedule auto-complete job: %w", err)
	}

	// Remove stale pending signups and rate limit rows, daily at 3 AM
	if _, err := s.cron.AddFunc("0 3 * * *", s.cleanupJob); err != nil {
		return fmt.Errorf("failed to schedule cleanup job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Cron service started")

	return nil
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *CronService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

// autoCompleteOverdueTrips completes approved trips whose end date has
// passed, releasing their assigned drivers and vehicles
func (s *CronService) autoCompleteOverdueTrips() {
	start := time.Now()

	ids, err := s.trips.ListOverdueApproved(time.Now())
	if err != nil {
		s.logger.WithError(err).Error("Auto-complete job failed to list overdue trips")
		return
	}

	completed := 0
	for _, id := range ids {
		trip, driver, vehicle, err := s.trips.Complete(id)
		if err != nil {
			s.logger.WithError(err).WithField("trip_request_id", id).Error("Auto-complete job failed to complete trip")
			continue
		}

		if driver != nil {
			s.hub.Emit("driver:updated", driver)
		}
		if vehicle != nil {
			s.hub.Emit("vehicle:updated", vehicle)
		}
		s.hub.Emit("tripRequest:updated", trip)
		completed++
	}

	if completed > 0 {
		s.logger.WithFields(logrus.Fields{
			"completed": completed,
			"duration":  time.Since(start).String(),
		}).Info("Auto-completed overdue trip requests")
	}
}

// cleanupJob removes expired pending signups and old rate limit entries
func (s *CronService) cleanupJob() {
	signups, err := s.signups.CleanupExpired()
	if err != nil {
		s.logger.WithError(err).Error("Cleanup job failed to remove pending signups")
	}

	limits, err := s.rateLimit.CleanupOldEntries()
	if err != nil {
		s.logger.WithError(err).Error("Cleanup job failed to remove rate limit entries")
	}

	s.logger.WithFields(logrus.Fields{
		"pending_signups_removed":    signups,
		"rate_limit_entries_removed": limits,
	}).Info("Cleanup job finished")
}
