package repository

import (
	"time"

	"github.com/google/uuid"

	"transaction-recon/internal/models"
)

// Store is the persistent-storage collaborator consumed by the validator,
// matcher and lifecycle controller.
type Store interface {
	// ReconciliationType returns PAYMENT for registered payment systems
	// and STATUS for everything else.
	ReconciliationType(system string) (string, error)

	// QueryLedger returns ledger rows for (system, bu, reference).
	QueryLedger(system, bu, reference string) ([]models.CandidateRow, error)

	// QueryPayments returns payment-queue and payment rows. byPaymentID
	// selects the payment-id form of the lookup instead of the
	// original-payment-id form.
	QueryPayments(system, bu, reference string, byPaymentID bool) ([]models.CandidateRow, error)

	// QueryIgnoredStatus returns rows from the excluded-state payment
	// table. statusFilter is a quoted list (see config.QuoteList) of the
	// configured ignored statuses.
	QueryIgnoredStatus(system, bu, reference, statusFilter string) ([]models.CandidateRow, error)

	InsertUnmatched(system string, createdDate time.Time, d *models.ReconciliationDetail, fileName string) error
	InsertMatched(system string, createdDate time.Time, d *models.ReconciliationDetail, fileName string, gpiModified time.Time) error

	UpdateUnmatchedStatus(system, bu, reference, gpiStatus string) error
	UpdateUnmatchedError(system, bu, reference, gpiStatus, errCode, errDesc string) error

	MatchedExists(system, bu, reference string) (bool, error)

	ProcessedFileExists(system, fileName string) (bool, error)
	InsertProcessedFile(system, fileName string) error

	// MailAddressFor returns the contact address for (system, region),
	// or empty when no row matches.
	MailAddressFor(system, region string) (string, error)
	ResourcePathFor(system, region string) (string, error)

	// ListUnmatched returns unmatched base-table rows, oldest first.
	// buFilter, when non-empty, is a quoted list restricting business units.
	ListUnmatched(system, buFilter string, limit int) ([]models.TransactionRecon, error)
	GetUnmatched(id uuid.UUID) (*models.TransactionRecon, error)
}
