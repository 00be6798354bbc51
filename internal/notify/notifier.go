// Package notify defines the notification collaborator. Formatting and
// delivery of the actual messages live outside this engine; the default
// implementation records every notification in the structured log, which
// the surrounding alerting picks up.
package notify

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"transaction-recon/internal/models"
	"transaction-recon/pkg/logger"
)

// Notifier raises operator-facing alerts.
type Notifier interface {
	// NotifyError raises a free-form alert.
	NotifyError(message string)

	// NotifyFileError raises an alert for one whole-file failure.
	NotifyFileError(system, file, message, region, to string)

	// NotifyBatchErrors raises one consolidated alert listing every
	// skipped or malformed record in a file.
	NotifyBatchErrors(system, region, file string, errs []models.ErrorClass)
}

// LogNotifier writes notifications to the process log.
type LogNotifier struct {
	log *logrus.Logger
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logger.GetLogger()}
}

func (n *LogNotifier) NotifyError(message string) {
	n.log.WithField("alert", "error").Error(message)
}

func (n *LogNotifier) NotifyFileError(system, file, message, region, to string) {
	n.log.WithFields(logrus.Fields{
		"alert":  "file-error",
		"system": system,
		"file":   file,
		"region": region,
		"to":     to,
	}).Error(message)
}

func (n *LogNotifier) NotifyBatchErrors(system, region, file string, errs []models.ErrorClass) {
	if len(errs) == 0 {
		return
	}

	var b strings.Builder
	for i, e := range errs {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "record %d: %s", e.RecordNumber, e.Description)
	}

	n.log.WithFields(logrus.Fields{
		"alert":  "batch-errors",
		"system": system,
		"region": region,
		"file":   file,
		"count":  len(errs),
	}).Error(b.String())
}
