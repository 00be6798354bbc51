package transport

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"transaction-recon/internal/config"
	"transaction-recon/internal/models"
	"transaction-recon/internal/notify"
	"transaction-recon/internal/retry"
	"transaction-recon/pkg/logger"
)

const deliveryBatchLimit = 500

// Store is the storage surface the delivery cycle consumes.
type Store interface {
	ListUnmatched(system, buFilter string, limit int) ([]models.TransactionRecon, error)
	ResourcePathFor(system, region string) (string, error)
}

// Delivery periodically exports unmatched reconciliation rows and pushes
// them through the transport client, escalating persistent per-business-unit
// failures via the retry tracker instead of retrying forever.
type Delivery struct {
	cfg      *config.Config
	client   Client
	store    Store
	tracker  *retry.Tracker
	notifier notify.Notifier
	log      *logrus.Logger
}

func NewDelivery(cfg *config.Config, client Client, store Store, tracker *retry.Tracker, notifier notify.Notifier) *Delivery {
	return &Delivery{
		cfg:      cfg,
		client:   client,
		store:    store,
		tracker:  tracker,
		notifier: notifier,
		log:      logger.GetLogger(),
	}
}

// Run drives delivery cycles until ctx is cancelled.
func (d *Delivery) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.DeliveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.Cycle()
		}
	}
}

type deliveryGroup struct {
	System       string
	Region       string
	BusinessUnit string
}

// Cycle exports and uploads the current unmatched rows, grouped per
// (system, region, business unit).
func (d *Delivery) Cycle() {
	rows, err := d.store.ListUnmatched("", config.QuoteList(d.cfg.BusinessUnits), deliveryBatchLimit)
	if err != nil {
		d.log.WithError(err).Warn("delivery: listing unmatched rows failed")
		return
	}
	if len(rows) == 0 {
		return
	}

	groups := make(map[deliveryGroup][]models.TransactionRecon)
	for _, row := range rows {
		g := deliveryGroup{System: row.System, Region: row.Region, BusinessUnit: row.BusinessUnit}
		groups[g] = append(groups[g], row)
	}

	for g, groupRows := range groups {
		key := retry.Key{BusinessUnit: g.BusinessUnit, SourceSystem: g.System}

		if err := d.deliverGroup(g, groupRows); err != nil {
			d.log.WithFields(logrus.Fields{
				"system": g.System,
				"bu":     g.BusinessUnit,
			}).WithError(err).Warn("delivery failed")

			if d.tracker.RecordOutcome(key, false) == retry.DecisionEscalate {
				d.notifier.NotifyError(fmt.Sprintf(
					"reconciliation delivery for %s/%s has failed %d consecutive times: %v",
					g.System, g.BusinessUnit, d.tracker.Attempts(key), err))
			}
			continue
		}
		d.tracker.RecordOutcome(key, true)
	}
}

func (d *Delivery) deliverGroup(g deliveryGroup, rows []models.TransactionRecon) error {
	remoteDir, err := d.store.ResourcePathFor(g.System, g.Region)
	if err != nil {
		return fmt.Errorf("resolving resource path: %w", err)
	}
	if remoteDir == "" {
		return fmt.Errorf("no resource path configured for %s/%s", g.System, g.Region)
	}

	localPath, err := d.writeExport(g, rows)
	if err != nil {
		return err
	}
	defer os.Remove(localPath)

	if err := d.client.Upload(localPath, remoteDir); err != nil {
		return fmt.Errorf("uploading %s: %w", localPath, err)
	}
	return nil
}

func (d *Delivery) writeExport(g deliveryGroup, rows []models.TransactionRecon) (string, error) {
	f, err := os.CreateTemp("", fmt.Sprintf("recon_%s_%s_*.csv", g.System, g.BusinessUnit))
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	for _, row := range rows {
		record := []string{
			row.System,
			row.BusinessUnit,
			row.SourcePaymentReference,
			row.SourceCurrency,
			formatAmount(row.OriginalAmount),
			row.GPIStatus,
			row.ErrorCode,
			row.ErrorDesc,
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return f.Name(), nil
}

func formatAmount(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
