package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecordType classifies a detail after validation.
type RecordType string

const (
	RecordTypeUnset  RecordType = ""
	RecordTypePay    RecordType = "PAY"
	RecordTypeMRR    RecordType = "MRR"
	RecordTypeStatus RecordType = "STATUS"
)

// Reconciliation categories returned by the recon-type lookup.
const (
	ReconTypePayment = "PAYMENT"
	ReconTypeStatus  = "STATUS"
)

// GPI status values recorded on reconciliation outcomes.
const (
	GPIStatusMatched   = "MATCHED"
	GPIStatusUnmatched = "UNMATCHED"
	GPIStatusError     = "ERROR"
)

// Error codes set by the mandatory amount/currency check.
const (
	ErrCodeAmountMismatch   = "TR-0006"
	ErrCodeCurrencyMismatch = "TR-0007"
)

// ReconciliationBatch is one file's worth of work. It is immutable once a
// parser has produced it; ownership stays with the processing call.
type ReconciliationBatch struct {
	SourceSystem string
	CreatedDate  time.Time
	FileName     string
	Details      []ReconciliationDetail
}

// ReconciliationDetail is one payment event to reconcile. The validator
// assigns RecordType; the matcher sets ErrorCode/ErrorDescription and
// GPIStatus. Amounts are stored as absolute values.
type ReconciliationDetail struct {
	BusinessUnit           string
	SourcePaymentReference string
	LedgerAccount          string
	SourceCurrency         string
	ForeignCurrency        string
	OriginalAmount         *decimal.Decimal
	AccountingAmount       *decimal.Decimal
	RecordType             RecordType
	GroupType              string
	Qualifier              string
	CreatedBy              string
	UniquePaymentID        string
	Status                 string
	GPIStatus              string
	TransactionTime        time.Time
	ErrorCode              string
	ErrorDescription       string
	Region                 string

	// RecordNumber is the record's 1-based position in the source file,
	// counting records that failed to parse.
	RecordNumber int
}

// Eligible reports whether the record carries the mandatory identifiers
// for matching.
func (d *ReconciliationDetail) Eligible() bool {
	return d.BusinessUnit != "" && d.UniquePaymentID != ""
}

// ErrorClass is one parse or validation failure, referencing the 1-based
// record position in the source file.
type ErrorClass struct {
	RecordNumber int
	Description  string
}

// CandidateRow is a prospective match returned by the ledger or payment
// queries, reduced to the fields the matcher compares.
type CandidateRow struct {
	Amount     decimal.Decimal
	Currency   string
	Status     string
	CreatedAt  *time.Time
	ModifiedAt *time.Time
}

// GPIModifiedTime resolves the timestamp recorded on a match: the row's
// modified time when present, else its created time, else now.
func (r *CandidateRow) GPIModifiedTime(now func() time.Time) time.Time {
	if r.ModifiedAt != nil && !r.ModifiedAt.IsZero() {
		return *r.ModifiedAt
	}
	if r.CreatedAt != nil && !r.CreatedAt.IsZero() {
		return *r.CreatedAt
	}
	return now()
}
