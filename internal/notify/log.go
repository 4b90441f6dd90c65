package notify

import "github.com/sirupsen/logrus"

// LogSink writes every notification to the structured log. Always
// configured, so a run without webhook or email still has a visible
// trail.
type LogSink struct{}

var _ Sink = (*LogSink)(nil)

func NewLogSink() *LogSink {
	return &LogSink{}
}

func (l *LogSink) Name() string {
	return "log"
}

func (l *LogSink) Emit(notification Notification) error {
	logrus.WithFields(logrus.Fields{
		"id":      notification.ID,
		"urgency": notification.Urgency,
		"url":     notification.URL,
	}).Infof("%s: %s", notification.Title, notification.Body)
	return nil
}
