package parser

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"transaction-recon/internal/models"
)

// FixedWidth parses files whose records are exact byte-offset columns,
// one record per line. Fields are space-padded.
type FixedWidth struct{}

// Column layout, [start, end) byte offsets.
var fixedColumns = struct {
	businessUnit     [2]int
	uniquePaymentID  [2]int
	sourceReference  [2]int
	ledgerAccount    [2]int
	sourceCurrency   [2]int
	foreignCurrency  [2]int
	originalAmount   [2]int
	accountingAmount [2]int
	groupType        [2]int
	qualifier        [2]int
	createdBy        [2]int
	status           [2]int
	transactionTime  [2]int
}{
	businessUnit:     [2]int{0, 10},
	uniquePaymentID:  [2]int{10, 30},
	sourceReference:  [2]int{30, 50},
	ledgerAccount:    [2]int{50, 62},
	sourceCurrency:   [2]int{62, 65},
	foreignCurrency:  [2]int{65, 68},
	originalAmount:   [2]int{68, 84},
	accountingAmount: [2]int{84, 100},
	groupType:        [2]int{100, 101},
	qualifier:        [2]int{101, 109},
	createdBy:        [2]int{109, 119},
	status:           [2]int{119, 129},
	transactionTime:  [2]int{129, 143},
}

const fixedMinLineLen = 129

func (p *FixedWidth) Parse(path string) (*models.ReconciliationBatch, []models.ErrorClass, error) {
	f, err := os.Open(path)
	if err != nil {
		if notFound(err) {
			return nil, nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, nil, err
	}
	defer f.Close()

	batch := &models.ReconciliationBatch{
		SourceSystem: systemFromPath(path),
		CreatedDate:  time.Now(),
		FileName:     filepath.Base(path),
	}
	var errs []models.ErrorClass

	scanner := bufio.NewScanner(f)
	num := 0
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		num++

		detail, err := p.parseLine(line)
		if err != nil {
			errs = append(errs, models.ErrorClass{
				RecordNumber: num,
				Description:  err.Error(),
			})
			continue
		}
		detail.RecordNumber = num
		batch.Details = append(batch.Details, *detail)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return batch, errs, nil
}

func (p *FixedWidth) parseLine(line string) (*models.ReconciliationDetail, error) {
	if len(line) < fixedMinLineLen {
		return nil, fmt.Errorf("record too short: %d bytes, need at least %d", len(line), fixedMinLineLen)
	}

	original, err := parseAmount(column(line, fixedColumns.originalAmount))
	if err != nil {
		return nil, fmt.Errorf("invalid original amount %q", column(line, fixedColumns.originalAmount))
	}
	accounting, err := parseAmount(column(line, fixedColumns.accountingAmount))
	if err != nil {
		return nil, fmt.Errorf("invalid accounting amount %q", column(line, fixedColumns.accountingAmount))
	}
	ts, err := parseTimestamp(column(line, fixedColumns.transactionTime))
	if err != nil {
		return nil, err
	}

	return &models.ReconciliationDetail{
		BusinessUnit:           column(line, fixedColumns.businessUnit),
		UniquePaymentID:        column(line, fixedColumns.uniquePaymentID),
		SourcePaymentReference: column(line, fixedColumns.sourceReference),
		LedgerAccount:          column(line, fixedColumns.ledgerAccount),
		SourceCurrency:         column(line, fixedColumns.sourceCurrency),
		ForeignCurrency:        column(line, fixedColumns.foreignCurrency),
		OriginalAmount:         original,
		AccountingAmount:       accounting,
		GroupType:              column(line, fixedColumns.groupType),
		Qualifier:              column(line, fixedColumns.qualifier),
		CreatedBy:              column(line, fixedColumns.createdBy),
		Status:                 column(line, fixedColumns.status),
		TransactionTime:        ts,
	}, nil
}

// column extracts [start, end) from line, tolerating lines that end before
// the optional trailing columns.
func column(line string, span [2]int) string {
	start, end := span[0], span[1]
	if start >= len(line) {
		return ""
	}
	if end > len(line) {
		end = len(line)
	}
	return strings.TrimSpace(line[start:end])
}
