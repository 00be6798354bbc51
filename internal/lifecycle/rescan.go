package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"transaction-recon/internal/config"
	"transaction-recon/internal/matcher"
	"transaction-recon/internal/models"
	"transaction-recon/internal/notify"
	"transaction-recon/internal/repository"
	"transaction-recon/internal/retry"
	"transaction-recon/pkg/logger"
)

const rescanBatchLimit = 1000

// Rescanner periodically revisits unmatched rows and retries the match
// against the system of record. A row that now passes is promoted to the
// matched table; a business unit that keeps failing is escalated once per
// failure streak through the retry tracker.
type Rescanner struct {
	cfg      *config.Config
	store    repository.Store
	matcher  *matcher.Matcher
	tracker  *retry.Tracker
	notifier notify.Notifier
	log      *logrus.Logger
}

func NewRescanner(cfg *config.Config, store repository.Store, m *matcher.Matcher, tracker *retry.Tracker, notifier notify.Notifier) *Rescanner {
	return &Rescanner{
		cfg:      cfg,
		store:    store,
		matcher:  m,
		tracker:  tracker,
		notifier: notifier,
		log:      logger.GetLogger(),
	}
}

// Run drives rescan cycles until ctx is cancelled.
func (r *Rescanner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.RescanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Cycle()
		}
	}
}

// Cycle retries every currently unmatched row within the configured
// business units.
func (r *Rescanner) Cycle() {
	rows, err := r.store.ListUnmatched("", config.QuoteList(r.cfg.BusinessUnits), rescanBatchLimit)
	if err != nil {
		r.log.WithError(err).Warn("rescan: listing unmatched rows failed")
		return
	}

	for i := range rows {
		r.RescanRow(&rows[i])
	}
}

// RescanRow retries the match for one unmatched row and records the outcome.
func (r *Rescanner) RescanRow(row *models.TransactionRecon) {
	d := detailFromRow(row)
	key := retry.Key{BusinessUnit: row.BusinessUnit, SourceSystem: row.System}
	log := r.log.WithFields(logrus.Fields{
		"system":    row.System,
		"bu":        row.BusinessUnit,
		"reference": row.SourcePaymentReference,
	})

	candidates, err := r.matcher.FindCandidates(row.System, d)
	if err != nil {
		log.WithError(err).Warn("rescan: candidate lookup failed")
		r.recordFailure(key, row, err)
		return
	}

	compared := false
	for i := range candidates {
		c := &candidates[i]
		compared = true
		if !matcher.MandatoryAmountCurrencyCheck(c.Amount, c.Currency, d) {
			continue
		}

		// Promotion is idempotent; a row already promoted by a competing
		// cycle is only status-flipped here.
		exists, err := r.store.MatchedExists(row.System, row.BusinessUnit, row.SourcePaymentReference)
		if err != nil {
			log.WithError(err).Warn("rescan: matched lookup failed")
			r.recordFailure(key, row, err)
			return
		}
		d.GPIStatus = models.GPIStatusMatched
		d.ErrorCode = ""
		d.ErrorDescription = ""
		if !exists {
			if err := r.store.InsertMatched(row.System, row.CreatedDate, d, row.FileName, c.GPIModifiedTime(time.Now)); err != nil {
				log.WithError(err).Warn("rescan: matched insert failed")
				r.recordFailure(key, row, err)
				return
			}
		}
		if err := r.store.UpdateUnmatchedStatus(row.System, row.BusinessUnit, row.SourcePaymentReference, models.GPIStatusMatched); err != nil {
			log.WithError(err).Warn("rescan: status update failed")
		}
		r.tracker.RecordOutcome(key, true)
		log.Info("rescan: row promoted to matched")
		return
	}

	// Still unmatched. Persist the comparison's error code when one was
	// attempted; absent candidates leave the row untouched.
	if compared {
		if err := r.store.UpdateUnmatchedError(row.System, row.BusinessUnit, row.SourcePaymentReference,
			models.GPIStatusUnmatched, d.ErrorCode, d.ErrorDescription); err != nil {
			log.WithError(err).Warn("rescan: error update failed")
		}
	}
	r.recordFailure(key, row, nil)
}

func (r *Rescanner) recordFailure(key retry.Key, row *models.TransactionRecon, cause error) {
	if r.tracker.RecordOutcome(key, false) != retry.DecisionEscalate {
		return
	}
	msg := fmt.Sprintf("reconciliation for %s/%s has stayed unmatched across %d attempts (reference %s)",
		row.System, row.BusinessUnit, r.tracker.Attempts(key), row.SourcePaymentReference)
	if cause != nil {
		msg += ": " + cause.Error()
	}
	r.notifier.NotifyError(msg)
}

// detailFromRow rebuilds the canonical detail from a persisted base-table row.
func detailFromRow(row *models.TransactionRecon) *models.ReconciliationDetail {
	d := &models.ReconciliationDetail{
		BusinessUnit:           row.BusinessUnit,
		Region:                 row.Region,
		UniquePaymentID:        row.UniquePaymentID,
		SourcePaymentReference: row.SourcePaymentReference,
		LedgerAccount:          row.LedgerAccount,
		SourceCurrency:         row.SourceCurrency,
		ForeignCurrency:        row.ForeignCurrency,
		RecordType:             models.RecordType(row.RecordType),
		GroupType:              row.GroupType,
		Qualifier:              row.Qualifier,
		Status:                 row.Status,
		GPIStatus:              row.GPIStatus,
		CreatedBy:              row.CreatedBy,
		TransactionTime:        row.TransactionTime,
	}
	if row.OriginalAmount != nil {
		v := decimal.NewFromFloat(*row.OriginalAmount)
		d.OriginalAmount = &v
	}
	if row.AccountingAmount != nil {
		v := decimal.NewFromFloat(*row.AccountingAmount)
		d.AccountingAmount = &v
	}
	return d
}
