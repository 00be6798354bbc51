// Package lifecycle owns the file state machine: watching inbound
// directories, claiming files, driving them through parse/route/match, and
// moving them to the archive or error location.
package lifecycle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"transaction-recon/internal/config"
	"transaction-recon/internal/matcher"
	"transaction-recon/internal/models"
	"transaction-recon/internal/notify"
	"transaction-recon/internal/parser"
	"transaction-recon/internal/repository"
	"transaction-recon/internal/validator"
	"transaction-recon/pkg/logger"
)

// State of one file in the lifecycle.
type State string

const (
	StateDiscovered State = "discovered"
	StateClaimed    State = "claimed"
	StateParsed     State = "parsed"
	StateRouted     State = "routed"
	StateResolved   State = "resolved"
	StateArchived   State = "archived"
	StateErrored    State = "errored"
)

// Progress is the per-file processing snapshot exposed to the ops API.
type Progress struct {
	State          State `json:"state"`
	Total          int   `json:"total"`
	Processed      int   `json:"processed"`
	Matched        int   `json:"matched"`
	Unmatched      int   `json:"unmatched"`
	DirectInserted int   `json:"direct_inserted"`
	Skipped        int   `json:"skipped"`
	Errors         int   `json:"errors"`

	completedAt time.Time
}

// progressRetention bounds how long terminal snapshots stay queryable.
const progressRetention = 24 * time.Hour

// progressKey disambiguates same-named files delivered by different
// region/system directories.
func progressKey(region, system, fileName string) string {
	return region + "/" + system + "/" + fileName
}

type Controller struct {
	cfg       *config.Config
	parsers   *parser.Registry
	validator *validator.Validator
	matcher   *matcher.Matcher
	store     repository.Store
	notifier  notify.Notifier
	dispatch  Strategy
	log       *logrus.Logger

	progress sync.Map // region/system/file -> *Progress
	inflight sync.Map // path -> struct{}
}

func NewController(
	cfg *config.Config,
	parsers *parser.Registry,
	v *validator.Validator,
	m *matcher.Matcher,
	store repository.Store,
	notifier notify.Notifier,
	dispatch Strategy,
) *Controller {
	return &Controller{
		cfg:       cfg,
		parsers:   parsers,
		validator: v,
		matcher:   m,
		store:     store,
		notifier:  notifier,
		dispatch:  dispatch,
		log:       logger.GetLogger(),
	}
}

// HandleFile claims a discovered file and schedules its processing via the
// configured strategy. Files already in flight or with an unaccepted
// extension are left alone.
func (c *Controller) HandleFile(path string) {
	if !c.cfg.AcceptsExtension(filepath.Ext(path)) {
		return
	}
	if _, loaded := c.inflight.LoadOrStore(path, struct{}{}); loaded {
		return
	}
	c.dispatch.Dispatch(func() {
		defer c.inflight.Delete(path)
		c.ProcessFile(path)
	})
}

// Wait blocks until all dispatched files have resolved.
func (c *Controller) Wait() {
	c.dispatch.Wait()
}

// Progress returns the processing snapshot for a file, identified by the
// region and system directory it arrived through.
func (c *Controller) Progress(region, system, fileName string) (*Progress, bool) {
	v, ok := c.progress.Load(progressKey(region, system, fileName))
	if !ok {
		return nil, false
	}
	return v.(*Progress), true
}

// sweepProgress drops terminal snapshots older than the retention window.
func (c *Controller) sweepProgress() {
	cutoff := time.Now().Add(-progressRetention)
	c.progress.Range(func(k, v interface{}) bool {
		p := v.(*Progress)
		if !p.completedAt.IsZero() && p.completedAt.Before(cutoff) {
			c.progress.Delete(k)
		}
		return true
	})
}

// ProcessFile runs the full state machine for one file. It never panics
// outward: an uncaught failure moves the file to the error location and
// raises a single notification.
func (c *Controller) ProcessFile(path string) {
	fileName := filepath.Base(path)
	system := filepath.Base(filepath.Dir(path))
	region := filepath.Base(filepath.Dir(filepath.Dir(path)))

	c.sweepProgress()

	prog := &Progress{State: StateClaimed}
	key := progressKey(region, system, fileName)
	c.progress.Store(key, prog)
	log := c.log.WithFields(logrus.Fields{
		"file":   fileName,
		"system": system,
		"region": region,
	})

	defer func() {
		if r := recover(); r != nil {
			prog.State = StateErrored
			log.Errorf("file processing panic: %v", r)
			c.notifier.NotifyError(fmt.Sprintf("processing of %s failed: %v", fileName, r))
			c.moveFile(path, c.errorPath(region, system, fileName), log)
		}
		if prog.State == StateArchived || prog.State == StateErrored {
			prog.completedAt = time.Now()
		}
	}()

	if c.isDuplicate(system, region, fileName, log) {
		prog.State = StateErrored
		to, _ := c.store.MailAddressFor(system, region)
		c.notifier.NotifyFileError(system, fileName, "duplicate file delivery", region, to)
		c.moveFile(path, c.errorPath(region, system, fileName), log)
		return
	}

	format, ok := c.parsers.ForFile(path)
	if !ok {
		prog.State = StateErrored
		c.moveFile(path, c.errorPath(region, system, fileName), log)
		return
	}

	batch, fileErrs, err := format.Parse(path)
	if errors.Is(err, parser.ErrNotFound) {
		// vanished between discovery and claim; nothing to do
		c.progress.Delete(key)
		return
	}
	if err != nil {
		prog.State = StateErrored
		log.WithError(err).Error("file unusable")
		to, _ := c.store.MailAddressFor(system, region)
		c.notifier.NotifyFileError(system, fileName, err.Error(), region, to)
		c.moveFile(path, c.errorPath(region, system, fileName), log)
		return
	}

	prog.State = StateParsed
	prog.Total = len(batch.Details)
	prog.Errors = len(fileErrs)

	prog.State = StateRouted
	for i := range batch.Details {
		d := &batch.Details[i]
		if d.Region == "" {
			d.Region = region
		}

		switch c.validator.Validate(d, batch.SourceSystem) {
		case validator.RouteSkipAlert:
			prog.Skipped++
			fileErrs = append(fileErrs, models.ErrorClass{
				RecordNumber: d.RecordNumber,
				Description: fmt.Sprintf("record skipped: missing business unit or payment id (reference %q)",
					d.SourcePaymentReference),
			})
		case validator.RouteDirectInsert:
			d.GPIStatus = models.GPIStatusUnmatched
			if err := c.store.InsertUnmatched(batch.SourceSystem, batch.CreatedDate, d, fileName); err != nil {
				log.WithError(err).Warn("direct insert failed")
				prog.Errors++
			} else {
				prog.DirectInserted++
			}
		case validator.RouteMatch:
			switch c.matcher.Reconcile(batch.SourceSystem, batch.CreatedDate, d, fileName) {
			case matcher.OutcomeMatched:
				prog.Matched++
			case matcher.OutcomeUnmatched:
				prog.Unmatched++
			case matcher.OutcomeError:
				prog.Errors++
			}
		}
		prog.Processed++
	}
	prog.State = StateResolved

	if err := c.store.InsertProcessedFile(batch.SourceSystem, fileName); err != nil {
		log.WithError(err).Warn("recording processed file failed")
	}
	if len(fileErrs) > 0 {
		c.notifier.NotifyBatchErrors(batch.SourceSystem, region, fileName, fileErrs)
	}

	// Outcomes are written before the move: a crash here reprocesses the
	// file rather than losing it.
	if c.moveFile(path, c.archivePath(region, system, fileName), log) {
		prog.State = StateArchived
		log.WithField("details", prog.Processed).Info("file archived")
	} else {
		prog.State = StateErrored
	}
}

// isDuplicate consults the processed-files store and the archive location.
func (c *Controller) isDuplicate(system, region, fileName string, log *logrus.Entry) bool {
	seen, err := c.store.ProcessedFileExists(system, fileName)
	if err != nil {
		log.WithError(err).Warn("processed-file lookup failed")
	}
	if seen {
		return true
	}
	return c.archiveHasPrefix(region, system, fileName)
}

// archiveHasPrefix reports whether any archived file shares this file's
// name prefix (name without extension).
func (c *Controller) archiveHasPrefix(region, system, fileName string) bool {
	prefix := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	entries, err := os.ReadDir(filepath.Join(c.cfg.ArchiveDir, region, system))
	if err != nil {
		return false
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), prefix) {
			return true
		}
	}
	return false
}

func (c *Controller) archivePath(region, system, fileName string) string {
	return filepath.Join(c.cfg.ArchiveDir, region, system, fileName)
}

func (c *Controller) errorPath(region, system, fileName string) string {
	return filepath.Join(c.cfg.ErrorDir, region, system, fileName)
}

func (c *Controller) moveFile(src, dst string, log *logrus.Entry) bool {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		log.WithError(err).Error("creating destination directory failed")
		return false
	}
	if err := os.Rename(src, dst); err != nil {
		log.WithError(err).Error("moving file failed")
		return false
	}
	return true
}
