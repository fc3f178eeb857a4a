package services

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/corptransit/transport-request-backend/internal/models"
	"github.com/corptransit/transport-request-backend/internal/observability"
	"github.com/corptransit/transport-request-backend/pkg/mailer"
	"github.com/corptransit/transport-request-backend/pkg/sms"
)

// NotificationService sends workflow emails and SMS messages. Every
// method is safe to call from a goroutine after the HTTP response has
// been written; failures are logged, never surfaced to the requester.
type NotificationService struct {
	mailer             mailer.Mailer
	sms                sms.Gateway
	logger             *logrus.Logger
	transportHeadEmail string
}

// NewNotificationService creates a new notification service
func NewNotificationService(m mailer.Mailer, gateway sms.Gateway, logger *logrus.Logger, transportHeadEmail string) *NotificationService {
	return &NotificationService{
		mailer:             m,
		sms:                gateway,
		logger:             logger,
		transportHeadEmail: transportHeadEmail,
	}
}

// SendSignupOTP emails the signup OTP to the prospective employee
func (s *NotificationService) SendSignupOTP(email, name, otp string, expiryMinutes int) {
	body := fmt.Sprintf("Hello %s,\n\nYour OTP code for signup is: %s\n\nThis code will expire in %d minutes.\n\nIf you did not request this, please ignore this email.",
		name, otp, expiryMinutes)

	s.sendMail(email, "Your OTP Code", body)
}

// NotifyTripRequestCreated emails the transport head about a new trip request
func (s *NotificationService) NotifyTripRequestCreated(trip *models.TripRequest) {
	if s.transportHeadEmail == "" || trip.CreatedBy == nil {
		return
	}

	remarks := trip.Remarks
	if remarks == "" {
		remarks = "None"
	}

	body := fmt.Sprintf("A new trip request has been created by %s, (%s), %s.\n\nDestination: %s\nPurpose: %s\nDepartment: %s\nPickup Point: %s\nStart: %s, %s\nEnd: %s\nNumber of Passengers: %d\nRemarks: %s\n\nPlease review the request in the system.",
		trip.CreatedBy.Name, trip.CreatedBy.Email, trip.CreatedBy.PhoneNo,
		trip.Destination, trip.Purpose, trip.CreatedBy.Department, trip.PickupPoint,
		trip.StartDate.Format("2006-01-02"), trip.StartTime,
		trip.EndDate.Format("2006-01-02"), trip.NumberOfPassengers, remarks)

	s.sendMail(s.transportHeadEmail, "New Trip Request Created", body)
}

// NotifyTripRequestApproved emails and texts the requester about the approval
func (s *NotificationService) NotifyTripRequestApproved(trip *models.TripRequest) {
	if trip.CreatedBy == nil || trip.CreatedBy.Email == "" {
		return
	}

	vehicleInfo, driverInfo := describeAssignment(trip.VehicleDetails)

	remarks := trip.Remarks
	if remarks == "" {
		remarks = "None"
	}

	body := fmt.Sprintf("Hello %s,\n\nYour trip request to %s has been approved.\n\nVehicle: %s\nDriver: %s\n\nRemarks: %s\n\nThank you.",
		trip.CreatedBy.Name, trip.Destination, vehicleInfo, driverInfo, remarks)

	s.sendMail(trip.CreatedBy.Email, "Your trip request has been approved!", body)

	if trip.CreatedBy.PhoneNo != "" {
		msg := fmt.Sprintf("Your trip request to %s has been APPROVED.\nVehicle: %s\nDriver: %s\nRemarks: %s",
			trip.Destination, vehicleInfo, driverInfo, remarks)
		s.sendSMS(trip.CreatedBy.PhoneNo, msg)
	}
}

// NotifyTripRequestRejected emails and texts the requester about the rejection
func (s *NotificationService) NotifyTripRequestRejected(trip *models.TripRequest) {
	if trip.CreatedBy == nil || trip.CreatedBy.Email == "" {
		return
	}

	remarks := trip.Remarks
	if remarks == "" {
		remarks = "None"
	}

	body := fmt.Sprintf("Hello %s,\n\nWe regret to inform you that your trip request to %s has been rejected.\n\nRemarks: %s\n\nIf you have any questions, please contact the transport department.",
		trip.CreatedBy.Name, trip.Destination, remarks)

	s.sendMail(trip.CreatedBy.Email, "Your trip request has been rejected", body)

	if trip.CreatedBy.PhoneNo != "" {
		msg := fmt.Sprintf("Your trip request to %s has been REJECTED.\nRemarks: %s", trip.Destination, remarks)
		s.sendSMS(trip.CreatedBy.PhoneNo, msg)
	}
}

// describeAssignment renders the vehicle and driver lines for
// notification bodies, covering both internal and outside assignments
func describeAssignment(details *models.VehicleDetails) (string, string) {
	if details == nil {
		return "Not assigned", "Not assigned"
	}

	if details.IsOutside {
		vehicleInfo := "Outside Vehicle"
		if details.OutsideVehicle != nil {
			vehicleInfo = fmt.Sprintf("%s (%s)", details.OutsideVehicle.VehicleName, details.OutsideVehicle.VehicleNo)
		}
		driverInfo := "Outside Driver"
		if details.OutsideDriver != nil {
			driverInfo = fmt.Sprintf("%s (%s)", details.OutsideDriver.DriverName, details.OutsideDriver.PhoneNo)
		}
		return vehicleInfo, driverInfo
	}

	vehicleInfo := fmt.Sprintf("%s (%s)", details.VehicleName, details.VehicleNo)
	driverInfo := fmt.Sprintf("%s (%s)", details.DriverName, details.PhoneNo)
	return vehicleInfo, driverInfo
}

func (s *NotificationService) sendMail(to, subject, body string) {
	if err := s.mailer.Send(to, subject, body); err != nil {
		observability.NotificationFailures.WithLabelValues("email").Inc()
		s.logger.WithError(err).WithFields(logrus.Fields{
			"to":      to,
			"subject": subject,
		}).Error("Failed to send email")
	}
}

func (s *NotificationService) sendSMS(to, message string) {
	if s.sms == nil {
		return
	}
	if err := s.sms.Send(to, message); err != nil {
		observability.NotificationFailures.WithLabelValues("sms").Inc()
		s.logger.WithError(err).WithField("to", to).Error("Failed to send SMS")
	}
}
