// Package validator assigns record types and routes each parsed detail to
// skip-and-alert, direct insert, or matching.
package validator

import (
	"transaction-recon/internal/config"
	"transaction-recon/internal/models"
	"transaction-recon/pkg/logger"
)

// Route is the disposition of one detail.
type Route int

const (
	// RouteSkipAlert excludes the record from processing and adds it to
	// the batch error notification.
	RouteSkipAlert Route = iota
	// RouteDirectInsert writes the record to the base reconciliation
	// store without a match attempt.
	RouteDirectInsert
	// RouteMatch hands the record to the matcher.
	RouteMatch
)

func (r Route) String() string {
	switch r {
	case RouteSkipAlert:
		return "skip+alert"
	case RouteDirectInsert:
		return "direct-insert"
	case RouteMatch:
		return "match"
	default:
		return "unknown"
	}
}

// TypeLookup resolves a source system's reconciliation category.
type TypeLookup interface {
	ReconciliationType(system string) (string, error)
}

type Validator struct {
	cfg    *config.Config
	lookup TypeLookup
}

func New(cfg *config.Config, lookup TypeLookup) *Validator {
	return &Validator{cfg: cfg, lookup: lookup}
}

// Validate assigns the detail's record type and returns its route.
func (v *Validator) Validate(d *models.ReconciliationDetail, sourceSystem string) Route {
	d.RecordType = v.recordType(d, sourceSystem)

	if !d.Eligible() {
		return RouteSkipAlert
	}
	if !v.cfg.AllowsBusinessUnit(d.BusinessUnit) {
		return RouteDirectInsert
	}
	return RouteMatch
}

// QuotedAllowList renders the configured business-unit allow-list as a
// SQL-safe quoted list for the storage collaborator.
func (v *Validator) QuotedAllowList() string {
	return config.QuoteList(v.cfg.BusinessUnits)
}

func (v *Validator) recordType(d *models.ReconciliationDetail, sourceSystem string) models.RecordType {
	category, err := v.lookup.ReconciliationType(sourceSystem)
	if err != nil {
		logger.GetLogger().
			WithField("system", sourceSystem).
			WithError(err).
			Warn("recon type lookup failed, treating system as STATUS")
		category = models.ReconTypeStatus
	}

	if category == models.ReconTypeStatus {
		return models.RecordTypeStatus
	}

	for _, g := range v.cfg.PaymentGroupTypes {
		if g == d.GroupType {
			return models.RecordTypePay
		}
	}
	for _, g := range v.cfg.LedgerGroupTypes {
		if g == d.GroupType {
			return models.RecordTypeMRR
		}
	}
	return models.RecordTypeUnset
}
