package parser

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"transaction-recon/internal/models"
)

// Delimited parses comma-separated files with quoted fields. One data
// record per line, no header.
//
// Columns: businessUnit, uniquePaymentId, sourcePaymentReference,
// ledgerAccount, sourceCurrency, foreignCurrency, originalAmount,
// accountingAmount, groupType, qualifier, createdBy, status,
// transactionTimestamp.
type Delimited struct{}

const delimitedFieldCount = 13

func (p *Delimited) Parse(path string) (*models.ReconciliationBatch, []models.ErrorClass, error) {
	f, err := os.Open(path)
	if err != nil {
		if notFound(err) {
			return nil, nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}

	batch := &models.ReconciliationBatch{
		SourceSystem: systemFromPath(path),
		CreatedDate:  time.Now(),
		FileName:     filepath.Base(path),
	}
	var errs []models.ErrorClass

	for i, record := range records {
		num := i + 1
		detail, err := p.parseRecord(record)
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

	return batch, errs, nil
}

func (p *Delimited) parseRecord(fields []string) (*models.ReconciliationDetail, error) {
	if len(fields) != delimitedFieldCount {
		return nil, fmt.Errorf("expected %d fields, got %d", delimitedFieldCount, len(fields))
	}

	original, err := parseAmount(fields[6])
	if err != nil {
		return nil, fmt.Errorf("invalid original amount %q", fields[6])
	}
	accounting, err := parseAmount(fields[7])
	if err != nil {
		return nil, fmt.Errorf("invalid accounting amount %q", fields[7])
	}
	ts, err := parseTimestamp(fields[12])
	if err != nil {
		return nil, err
	}

	return &models.ReconciliationDetail{
		BusinessUnit:           fields[0],
		UniquePaymentID:        fields[1],
		SourcePaymentReference: fields[2],
		LedgerAccount:          fields[3],
		SourceCurrency:         fields[4],
		ForeignCurrency:        fields[5],
		OriginalAmount:         original,
		AccountingAmount:       accounting,
		GroupType:              fields[8],
		Qualifier:              fields[9],
		CreatedBy:              fields[10],
		Status:                 fields[11],
		TransactionTime:        ts,
	}, nil
}
