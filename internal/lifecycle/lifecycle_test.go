package lifecycle

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transaction-recon/internal/config"
	"transaction-recon/internal/matcher"
	"transaction-recon/internal/models"
	"transaction-recon/internal/parser"
	"transaction-recon/internal/repository"
	"transaction-recon/internal/retry"
	"transaction-recon/internal/validator"
)

type insertCall struct {
	System string
	Detail models.ReconciliationDetail
	File   string
}

type fakeStore struct {
	mu sync.Mutex

	reconType  string
	candidates []models.CandidateRow
	processed  map[string]bool

	paymentQueries int
	ledgerQueries  int
	ignoredQueries int
	unmatched      []insertCall
	matched        []insertCall
	statusUpdates  []string
	errorUpdates   []string
	recordedFiles  []string
	matchedExists  bool
}

var _ repository.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{reconType: models.ReconTypePayment, processed: map[string]bool{}}
}

func (s *fakeStore) ReconciliationType(system string) (string, error) {
	return s.reconType, nil
}

func (s *fakeStore) QueryLedger(system, bu, reference string) ([]models.CandidateRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledgerQueries++
	return s.candidates, nil
}

func (s *fakeStore) QueryPayments(system, bu, reference string, byPaymentID bool) ([]models.CandidateRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paymentQueries++
	return s.candidates, nil
}

func (s *fakeStore) QueryIgnoredStatus(system, bu, reference, statusFilter string) ([]models.CandidateRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ignoredQueries++
	return nil, nil
}

func (s *fakeStore) InsertUnmatched(system string, createdDate time.Time, d *models.ReconciliationDetail, fileName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unmatched = append(s.unmatched, insertCall{System: system, Detail: *d, File: fileName})
	return nil
}

func (s *fakeStore) InsertMatched(system string, createdDate time.Time, d *models.ReconciliationDetail, fileName string, gpiModified time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matched = append(s.matched, insertCall{System: system, Detail: *d, File: fileName})
	return nil
}

func (s *fakeStore) UpdateUnmatchedStatus(system, bu, reference, gpiStatus string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusUpdates = append(s.statusUpdates, gpiStatus)
	return nil
}

func (s *fakeStore) UpdateUnmatchedError(system, bu, reference, gpiStatus, errCode, errDesc string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorUpdates = append(s.errorUpdates, errCode)
	return nil
}

func (s *fakeStore) MatchedExists(system, bu, reference string) (bool, error) {
	return s.matchedExists, nil
}

func (s *fakeStore) ProcessedFileExists(system, fileName string) (bool, error) {
	return s.processed[system+"/"+fileName], nil
}

func (s *fakeStore) InsertProcessedFile(system, fileName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordedFiles = append(s.recordedFiles, fileName)
	return nil
}

func (s *fakeStore) MailAddressFor(system, region string) (string, error) {
	return "ops@example.com", nil
}

func (s *fakeStore) ResourcePathFor(system, region string) (string, error) {
	return "", nil
}

func (s *fakeStore) ListUnmatched(system, buFilter string, limit int) ([]models.TransactionRecon, error) {
	return nil, nil
}

func (s *fakeStore) GetUnmatched(id uuid.UUID) (*models.TransactionRecon, error) {
	return nil, nil
}

type fakeNotifier struct {
	mu          sync.Mutex
	errors      []string
	fileErrors  []string
	batchErrors [][]models.ErrorClass
}

func (n *fakeNotifier) NotifyError(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, message)
}

func (n *fakeNotifier) NotifyFileError(system, file, message, region, to string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fileErrors = append(n.fileErrors, message)
}

func (n *fakeNotifier) NotifyBatchErrors(system, region, file string, errs []models.ErrorClass) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.batchErrors = append(n.batchErrors, errs)
}

type testRig struct {
	cfg      *config.Config
	store    *fakeStore
	notifier *fakeNotifier
	ctrl     *Controller
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{
		WatchRoot:         filepath.Join(root, "inbound"),
		ArchiveDir:        filepath.Join(root, "archive"),
		ErrorDir:          filepath.Join(root, "error"),
		Extensions:        []string{".csv", ".dat", ".xml"},
		BusinessUnits:     []string{"BU1", "BU2"},
		PaymentGroupTypes: []string{"C", "F"},
		LedgerGroupTypes:  []string{"V"},
		RetryThreshold:    3,
		PollInterval:      10 * time.Millisecond,
	}
	store := newFakeStore()
	notifier := &fakeNotifier{}
	ctrl := NewController(cfg,
		parser.NewRegistry(),
		validator.New(cfg, store),
		matcher.New(cfg, store),
		store, notifier, sequential{})
	return &testRig{cfg: cfg, store: store, notifier: notifier, ctrl: ctrl}
}

// writeInbound places content at <watch root>/<region>/<system>/<name>.
func (r *testRig) writeInbound(t *testing.T, region, system, name, content string) string {
	t.Helper()
	dir := filepath.Join(r.cfg.WatchRoot, region, system)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestProcessFileArchivesDespiteRecordErrors(t *testing.T) {
	rig := newTestRig(t)
	rig.store.candidates = []models.CandidateRow{{
		Amount:   decimal.RequireFromString("100.50"),
		Currency: "EUR",
	}}

	content := "BU1,UPI-1,REF-1,ACC-1,EUR,USD,100.50,90.00,C,Q1,sys,NEW,2025-01-02 10:00:00\n" +
		"not,enough,fields\n" +
		"BU1,UPI-2,REF-2,ACC-2,EUR,USD,-100.50,90.00,C,Q1,sys,NEW,2025-01-02 10:05:00\n"
	path := rig.writeInbound(t, "EMEA", "TRAX", "pay_20250102.csv", content)

	rig.ctrl.ProcessFile(path)

	prog, ok := rig.ctrl.Progress("EMEA", "TRAX", "pay_20250102.csv")
	require.True(t, ok)
	assert.Equal(t, StateArchived, prog.State)
	assert.Equal(t, 2, prog.Matched)
	assert.Equal(t, 1, prog.Errors)

	assert.NoFileExists(t, path)
	assert.FileExists(t, filepath.Join(rig.cfg.ArchiveDir, "EMEA", "TRAX", "pay_20250102.csv"))

	assert.Len(t, rig.store.matched, 2)
	assert.Equal(t, []string{"pay_20250102.csv"}, rig.store.recordedFiles)

	require.Len(t, rig.notifier.batchErrors, 1)
	require.Len(t, rig.notifier.batchErrors[0], 1)
	assert.Equal(t, 2, rig.notifier.batchErrors[0][0].RecordNumber)
}

func TestSkippedRecordNeverReachesStorage(t *testing.T) {
	rig := newTestRig(t)

	// Empty business unit makes the record ineligible.
	path := rig.writeInbound(t, "EMEA", "TRAX", "skip.csv",
		",UPI-1,REF-1,ACC-1,EUR,USD,100.50,90.00,C,Q1,sys,NEW,2025-01-02 10:00:00\n")

	rig.ctrl.ProcessFile(path)

	prog, ok := rig.ctrl.Progress("EMEA", "TRAX", "skip.csv")
	require.True(t, ok)
	assert.Equal(t, StateArchived, prog.State)
	assert.Equal(t, 1, prog.Skipped)

	assert.Zero(t, rig.store.paymentQueries)
	assert.Zero(t, rig.store.ledgerQueries)
	assert.Empty(t, rig.store.unmatched)
	assert.Empty(t, rig.store.matched)
	require.Len(t, rig.notifier.batchErrors, 1)
}

func TestOutOfAllowListDirectInsert(t *testing.T) {
	rig := newTestRig(t)

	path := rig.writeInbound(t, "EMEA", "TRAX", "direct.csv",
		"OTHER,UPI-1,REF-1,ACC-1,EUR,USD,100.50,90.00,C,Q1,sys,NEW,2025-01-02 10:00:00\n")

	rig.ctrl.ProcessFile(path)

	prog, ok := rig.ctrl.Progress("EMEA", "TRAX", "direct.csv")
	require.True(t, ok)
	assert.Equal(t, 1, prog.DirectInserted)

	assert.Zero(t, rig.store.paymentQueries)
	require.Len(t, rig.store.unmatched, 1)
	assert.Equal(t, models.GPIStatusUnmatched, rig.store.unmatched[0].Detail.GPIStatus)
	assert.Empty(t, rig.store.matched)
}

func TestDuplicateFileErroredWithoutInserts(t *testing.T) {
	rig := newTestRig(t)
	rig.store.processed["TRAX/dup.csv"] = true

	path := rig.writeInbound(t, "EMEA", "TRAX", "dup.csv",
		"BU1,UPI-1,REF-1,ACC-1,EUR,USD,100.50,90.00,C,Q1,sys,NEW,2025-01-02 10:00:00\n")

	rig.ctrl.ProcessFile(path)

	prog, ok := rig.ctrl.Progress("EMEA", "TRAX", "dup.csv")
	require.True(t, ok)
	assert.Equal(t, StateErrored, prog.State)

	assert.NoFileExists(t, path)
	assert.FileExists(t, filepath.Join(rig.cfg.ErrorDir, "EMEA", "TRAX", "dup.csv"))

	assert.Empty(t, rig.store.unmatched)
	assert.Empty(t, rig.store.matched)
	assert.Empty(t, rig.store.recordedFiles)
	require.Len(t, rig.notifier.fileErrors, 1)
	assert.Contains(t, rig.notifier.fileErrors[0], "duplicate")
}

func TestArchivedPrefixCountsAsDuplicate(t *testing.T) {
	rig := newTestRig(t)

	archived := filepath.Join(rig.cfg.ArchiveDir, "EMEA", "TRAX")
	require.NoError(t, os.MkdirAll(archived, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(archived, "dup.csv"), []byte("x"), 0o644))

	path := rig.writeInbound(t, "EMEA", "TRAX", "dup.csv",
		"BU1,UPI-1,REF-1,ACC-1,EUR,USD,100.50,90.00,C,Q1,sys,NEW,2025-01-02 10:00:00\n")

	rig.ctrl.ProcessFile(path)

	prog, ok := rig.ctrl.Progress("EMEA", "TRAX", "dup.csv")
	require.True(t, ok)
	assert.Equal(t, StateErrored, prog.State)
	assert.Empty(t, rig.store.matched)
}

func TestUnusableFileErroredWithoutStorageWrites(t *testing.T) {
	rig := newTestRig(t)

	path := rig.writeInbound(t, "EMEA", "TRAX", "broken.xml", "<ReconciliationBatch><Payment>")

	rig.ctrl.ProcessFile(path)

	prog, ok := rig.ctrl.Progress("EMEA", "TRAX", "broken.xml")
	require.True(t, ok)
	assert.Equal(t, StateErrored, prog.State)
	assert.FileExists(t, filepath.Join(rig.cfg.ErrorDir, "EMEA", "TRAX", "broken.xml"))
	assert.Empty(t, rig.store.unmatched)
	assert.Empty(t, rig.store.recordedFiles)
	require.Len(t, rig.notifier.fileErrors, 1)
}

func TestHandleFileIgnoresUnknownExtensions(t *testing.T) {
	rig := newTestRig(t)

	path := rig.writeInbound(t, "EMEA", "TRAX", "notes.txt", "hello")
	rig.ctrl.HandleFile(path)
	rig.ctrl.Wait()

	_, ok := rig.ctrl.Progress("EMEA", "TRAX", "notes.txt")
	assert.False(t, ok)
	assert.FileExists(t, path)
}

func TestWatcherScanClaimsAcceptedFiles(t *testing.T) {
	rig := newTestRig(t)
	rig.store.candidates = []models.CandidateRow{{
		Amount:   decimal.RequireFromString("10"),
		Currency: "EUR",
	}}

	rig.writeInbound(t, "EMEA", "TRAX", "one.csv",
		"BU1,UPI-1,REF-1,ACC-1,EUR,USD,10,10,C,Q1,sys,NEW,2025-01-02 10:00:00\n")
	rig.writeInbound(t, "EMEA", "TRAX", "ignored.txt", "not a data file")

	w := NewWatcher(rig.cfg, rig.ctrl)
	dirs, err := w.systemDirs()
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(rig.cfg.WatchRoot, "EMEA", "TRAX")}, dirs)

	w.scan(dirs[0])
	rig.ctrl.Wait()

	prog, ok := rig.ctrl.Progress("EMEA", "TRAX", "one.csv")
	require.True(t, ok)
	assert.Equal(t, StateArchived, prog.State)
	assert.FileExists(t, filepath.Join(rig.cfg.WatchRoot, "EMEA", "TRAX", "ignored.txt"))
}

func TestSequentialStrategyRunsInline(t *testing.T) {
	var ran bool
	s := sequential{}
	s.Dispatch(func() { ran = true })
	assert.True(t, ran)
	s.Wait()
}

func TestConcurrentStrategyRunsAllTasks(t *testing.T) {
	cfg := &config.Config{Concurrent: true, MaxConcurrentFiles: 2}
	s := NewStrategy(cfg)

	var count atomic.Int32
	for i := 0; i < 10; i++ {
		s.Dispatch(func() { count.Add(1) })
	}
	s.Wait()
	assert.Equal(t, int32(10), count.Load())
}

func TestRescanPromotesNowMatchingRow(t *testing.T) {
	rig := newTestRig(t)
	rig.store.candidates = []models.CandidateRow{{
		Amount:   decimal.RequireFromString("250.00"),
		Currency: "GBP",
	}}

	tracker := retry.NewTracker(rig.cfg.RetryThreshold)
	r := NewRescanner(rig.cfg, rig.store, matcher.New(rig.cfg, rig.store), tracker, rig.notifier)

	amount := 250.00
	row := &models.TransactionRecon{
		System:                 "TRAX",
		BusinessUnit:           "BU1",
		SourcePaymentReference: "REF-9",
		UniquePaymentID:        "UPI-9",
		SourceCurrency:         "GBP",
		OriginalAmount:         &amount,
		RecordType:             string(models.RecordTypePay),
		GPIStatus:              models.GPIStatusUnmatched,
		FileName:               "old.csv",
	}
	r.RescanRow(row)

	require.Len(t, rig.store.matched, 1)
	assert.Equal(t, models.GPIStatusMatched, rig.store.matched[0].Detail.GPIStatus)
	assert.Equal(t, []string{models.GPIStatusMatched}, rig.store.statusUpdates)
	assert.Zero(t, tracker.Attempts(retry.Key{BusinessUnit: "BU1", SourceSystem: "TRAX"}))
	assert.Empty(t, rig.notifier.errors)
}

func TestRescanRecordsMismatchAndEscalatesAtThreshold(t *testing.T) {
	rig := newTestRig(t)
	rig.store.candidates = []models.CandidateRow{{
		Amount:   decimal.RequireFromString("999.99"),
		Currency: "GBP",
	}}

	tracker := retry.NewTracker(2)
	r := NewRescanner(rig.cfg, rig.store, matcher.New(rig.cfg, rig.store), tracker, rig.notifier)

	amount := 250.00
	row := &models.TransactionRecon{
		System:                 "TRAX",
		BusinessUnit:           "BU1",
		SourcePaymentReference: "REF-9",
		SourceCurrency:         "GBP",
		OriginalAmount:         &amount,
		RecordType:             string(models.RecordTypePay),
		GPIStatus:              models.GPIStatusUnmatched,
	}

	r.RescanRow(row)
	assert.Empty(t, rig.notifier.errors)
	r.RescanRow(row)
	require.Len(t, rig.notifier.errors, 1)
	r.RescanRow(row)
	assert.Len(t, rig.notifier.errors, 1, "a streak escalates exactly once")

	require.NotEmpty(t, rig.store.errorUpdates)
	assert.Equal(t, models.ErrCodeAmountMismatch, rig.store.errorUpdates[0])
	assert.Empty(t, rig.store.matched)
}

func TestRescanWithoutCandidatesLeavesRowUntouched(t *testing.T) {
	rig := newTestRig(t)

	tracker := retry.NewTracker(5)
	r := NewRescanner(rig.cfg, rig.store, matcher.New(rig.cfg, rig.store), tracker, rig.notifier)

	row := &models.TransactionRecon{
		System:                 "TRAX",
		BusinessUnit:           "BU1",
		SourcePaymentReference: "REF-9",
		RecordType:             string(models.RecordTypePay),
		GPIStatus:              models.GPIStatusUnmatched,
	}
	r.RescanRow(row)

	assert.Empty(t, rig.store.errorUpdates)
	assert.Empty(t, rig.store.statusUpdates)
	assert.Equal(t, 1, tracker.Attempts(retry.Key{BusinessUnit: "BU1", SourceSystem: "TRAX"}))
}

func TestBatchErrorsCiteSourceRecordNumbers(t *testing.T) {
	rig := newTestRig(t)
	rig.store.candidates = []models.CandidateRow{{
		Amount:   decimal.RequireFromString("100.50"),
		Currency: "EUR",
	}}

	// record 2 fails parsing, record 3 is ineligible; the notification must
	// cite each record's position in the source file, not its position among
	// the records that survived parsing.
	content := "BU1,UPI-1,REF-1,ACC-1,EUR,USD,100.50,90.00,C,Q1,sys,NEW,2025-01-02 10:00:00\n" +
		"not,enough,fields\n" +
		",UPI-3,REF-3,ACC-3,EUR,USD,100.50,90.00,C,Q1,sys,NEW,2025-01-02 10:05:00\n"
	path := rig.writeInbound(t, "EMEA", "TRAX", "numbering.csv", content)

	rig.ctrl.ProcessFile(path)

	require.Len(t, rig.notifier.batchErrors, 1)
	errs := rig.notifier.batchErrors[0]
	require.Len(t, errs, 2)

	numbers := []int{errs[0].RecordNumber, errs[1].RecordNumber}
	assert.ElementsMatch(t, []int{2, 3}, numbers)
}

func TestProgressKeyedBySourceDirectory(t *testing.T) {
	rig := newTestRig(t)
	rig.store.candidates = []models.CandidateRow{{
		Amount:   decimal.RequireFromString("100.50"),
		Currency: "EUR",
	}}

	traxPath := rig.writeInbound(t, "EMEA", "TRAX", "events.csv",
		"BU1,UPI-1,REF-1,ACC-1,EUR,USD,100.50,90.00,C,Q1,sys,NEW,2025-01-02 10:00:00\n")
	glsPath := rig.writeInbound(t, "APAC", "GLS", "events.csv",
		"OTHER,UPI-2,REF-2,ACC-2,EUR,USD,100.50,90.00,C,Q1,sys,NEW,2025-01-02 10:00:00\n")

	rig.ctrl.ProcessFile(traxPath)
	rig.ctrl.ProcessFile(glsPath)

	trax, ok := rig.ctrl.Progress("EMEA", "TRAX", "events.csv")
	require.True(t, ok)
	gls, ok := rig.ctrl.Progress("APAC", "GLS", "events.csv")
	require.True(t, ok)

	assert.Equal(t, 1, trax.Matched)
	assert.Zero(t, trax.DirectInserted)
	assert.Equal(t, 1, gls.DirectInserted)
	assert.Zero(t, gls.Matched)
}

func TestProgressEvictedAfterRetention(t *testing.T) {
	rig := newTestRig(t)
	rig.store.candidates = []models.CandidateRow{{
		Amount:   decimal.RequireFromString("100.50"),
		Currency: "EUR",
	}}

	path := rig.writeInbound(t, "EMEA", "TRAX", "old.csv",
		"BU1,UPI-1,REF-1,ACC-1,EUR,USD,100.50,90.00,C,Q1,sys,NEW,2025-01-02 10:00:00\n")
	rig.ctrl.ProcessFile(path)

	prog, ok := rig.ctrl.Progress("EMEA", "TRAX", "old.csv")
	require.True(t, ok)
	require.Equal(t, StateArchived, prog.State)
	assert.False(t, prog.completedAt.IsZero())

	rig.ctrl.sweepProgress()
	_, ok = rig.ctrl.Progress("EMEA", "TRAX", "old.csv")
	assert.True(t, ok, "recent snapshots stay queryable")

	prog.completedAt = time.Now().Add(-progressRetention - time.Hour)
	rig.ctrl.sweepProgress()
	_, ok = rig.ctrl.Progress("EMEA", "TRAX", "old.csv")
	assert.False(t, ok, "expired snapshots are evicted")
}
