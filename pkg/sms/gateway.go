package sms

import (
	"github.com/sirupsen/logrus"
)

// Gateway sends SMS messages
type Gateway interface {
	Send(to, message string) error
}

// LogGateway writes messages to the log instead of sending them.
// Used in development and in tests.
type LogGateway struct {
	logger *logrus.Logger
}

// NewLogGateway creates a gateway that only logs messages
func NewLogGateway(logger *logrus.Logger) *LogGateway {
	return &LogGateway{logger: logger}
}

// Send logs the message without sending anything
func (g *LogGateway) Send(to, message string) error {
	g.logger.WithFields(logrus.Fields{
		"to":      to,
		"message": message,
	}).Info("SMS (dev mode, not sent)")
	return nil
}
