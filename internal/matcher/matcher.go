// Package matcher decides whether a reconciliation detail matches the
// external ledger or payment system of record.
package matcher

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"transaction-recon/internal/config"
	"transaction-recon/internal/models"
	"transaction-recon/pkg/logger"
)

// Outcome of reconciling one detail.
type Outcome int

const (
	OutcomeMatched Outcome = iota
	OutcomeUnmatched
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMatched:
		return "matched"
	case OutcomeUnmatched:
		return "unmatched"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// Store is the storage surface the matcher consumes.
type Store interface {
	QueryLedger(system, bu, reference string) ([]models.CandidateRow, error)
	QueryPayments(system, bu, reference string, byPaymentID bool) ([]models.CandidateRow, error)
	QueryIgnoredStatus(system, bu, reference, statusFilter string) ([]models.CandidateRow, error)
	InsertUnmatched(system string, createdDate time.Time, d *models.ReconciliationDetail, fileName string) error
	InsertMatched(system string, createdDate time.Time, d *models.ReconciliationDetail, fileName string, gpiModified time.Time) error
}

type Matcher struct {
	cfg   *config.Config
	store Store
	log   *logrus.Logger

	// now is swappable for tests.
	now func() time.Time
}

func New(cfg *config.Config, store Store) *Matcher {
	return &Matcher{
		cfg:   cfg,
		store: store,
		log:   logger.GetLogger(),
		now:   time.Now,
	}
}

// Reconcile evaluates one detail against the system of record and persists
// the outcome. Failures while evaluating a single detail never propagate;
// the detail degrades to OutcomeError and the caller moves on.
func (m *Matcher) Reconcile(sourceSystem string, createdDate time.Time, d *models.ReconciliationDetail, fileName string) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			m.log.WithFields(logrus.Fields{
				"system":    sourceSystem,
				"reference": d.SourcePaymentReference,
			}).Errorf("reconcile panic: %v", r)
			d.GPIStatus = models.GPIStatusError
			_ = m.store.InsertUnmatched(sourceSystem, createdDate, d, fileName)
			outcome = OutcomeError
		}
	}()

	// An unclassified record gets no match attempt.
	if d.RecordType == models.RecordTypeUnset {
		d.GPIStatus = models.GPIStatusUnmatched
		if err := m.store.InsertUnmatched(sourceSystem, createdDate, d, fileName); err != nil {
			m.log.WithError(err).Warn("insert of unclassified record failed")
			return OutcomeError
		}
		return OutcomeUnmatched
	}

	candidates, err := m.FindCandidates(sourceSystem, d)
	if err != nil {
		m.log.WithFields(logrus.Fields{
			"system":    sourceSystem,
			"bu":        d.BusinessUnit,
			"reference": reference(d),
		}).WithError(err).Warn("candidate lookup failed")
		d.GPIStatus = models.GPIStatusError
		_ = m.store.InsertUnmatched(sourceSystem, createdDate, d, fileName)
		return OutcomeError
	}

	if len(candidates) == 0 {
		// No comparison was attempted, so no error code is recorded.
		d.GPIStatus = models.GPIStatusUnmatched
		d.ErrorCode = ""
		d.ErrorDescription = ""
		if err := m.store.InsertUnmatched(sourceSystem, createdDate, d, fileName); err != nil {
			m.log.WithError(err).Warn("unmatched insert failed")
			return OutcomeError
		}
		return OutcomeUnmatched
	}

	for i := range candidates {
		c := &candidates[i]
		if !MandatoryAmountCurrencyCheck(c.Amount, c.Currency, d) {
			continue
		}
		d.GPIStatus = models.GPIStatusMatched
		d.ErrorCode = ""
		d.ErrorDescription = ""
		gpiModified := c.GPIModifiedTime(m.now)
		if err := m.store.InsertMatched(sourceSystem, createdDate, d, fileName, gpiModified); err != nil {
			m.log.WithError(err).Warn("matched insert failed")
			return OutcomeError
		}
		return OutcomeMatched
	}

	// Candidates existed but none passed; the failed check left its error
	// code on the detail.
	d.GPIStatus = models.GPIStatusUnmatched
	if err := m.store.InsertUnmatched(sourceSystem, createdDate, d, fileName); err != nil {
		m.log.WithError(err).Warn("unmatched insert failed")
		return OutcomeError
	}
	return OutcomeUnmatched
}

// FindCandidates queries the tables selected by the detail's record type.
// Details in a configured ignored status additionally pull from the
// excluded-state table so known-excluded payments are not flagged.
func (m *Matcher) FindCandidates(sourceSystem string, d *models.ReconciliationDetail) ([]models.CandidateRow, error) {
	ref := reference(d)

	var rows []models.CandidateRow
	var err error
	switch d.RecordType {
	case models.RecordTypeMRR:
		rows, err = m.store.QueryLedger(sourceSystem, d.BusinessUnit, ref)
	default:
		byPaymentID := m.cfg.UsesPaymentID(sourceSystem) && m.cfg.AllowsBusinessUnit(d.BusinessUnit)
		rows, err = m.store.QueryPayments(sourceSystem, d.BusinessUnit, ref, byPaymentID)
	}
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 && m.statusIgnored(d.Status) {
		ignored, err := m.store.QueryIgnoredStatus(sourceSystem, d.BusinessUnit, ref,
			config.QuoteList(m.cfg.IgnoredStatuses))
		if err != nil {
			return nil, err
		}
		rows = ignored
	}
	return rows, nil
}

// MandatoryAmountCurrencyCheck reports whether a candidate row matches the
// detail on both amount and currency. Exactly one error code is set on a
// failure: TR-0006 for amount, TR-0007 for currency. Amount runs first.
func MandatoryAmountCurrencyCheck(amount decimal.Decimal, currency string, d *models.ReconciliationDetail) bool {
	if d.OriginalAmount == nil || !amount.Abs().Equal(d.OriginalAmount.Abs()) {
		d.ErrorCode = models.ErrCodeAmountMismatch
		d.ErrorDescription = fmt.Sprintf("amount mismatch: system of record has %s", amount.Abs())
		return false
	}
	if currency != d.SourceCurrency {
		d.ErrorCode = models.ErrCodeCurrencyMismatch
		d.ErrorDescription = fmt.Sprintf("currency mismatch: system of record has %s, source has %s", currency, d.SourceCurrency)
		return false
	}
	return true
}

func (m *Matcher) statusIgnored(status string) bool {
	for _, s := range m.cfg.IgnoredStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func reference(d *models.ReconciliationDetail) string {
	if d.SourcePaymentReference != "" {
		return d.SourcePaymentReference
	}
	return d.UniquePaymentID
}
