package parser

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"transaction-recon/internal/models"
)

// Markup parses tag-structured XML files. The region is not carried in the
// file; it is read from the parent-of-parent directory name and injected
// into every record.
type Markup struct{}

type markupBatch struct {
	XMLName  xml.Name        `xml:"ReconciliationBatch"`
	Payments []markupPayment `xml:"Payment"`
}

type markupPayment struct {
	BusinessUnit           string `xml:"BusinessUnit"`
	UniquePaymentID        string `xml:"UniquePaymentID"`
	SourcePaymentReference string `xml:"SourcePaymentReference"`
	LedgerAccount          string `xml:"LedgerAccount"`
	SourceCurrency         string `xml:"SourceCurrency"`
	ForeignCurrency        string `xml:"ForeignCurrency"`
	OriginalAmount         string `xml:"OriginalAmount"`
	AccountingAmount       string `xml:"AccountingAmount"`
	GroupType              string `xml:"GroupType"`
	Qualifier              string `xml:"Qualifier"`
	CreatedBy              string `xml:"CreatedBy"`
	Status                 string `xml:"Status"`
	TransactionTime        string `xml:"TransactionTime"`
}

func (p *Markup) Parse(path string) (*models.ReconciliationBatch, []models.ErrorClass, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if notFound(err) {
			return nil, nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, nil, err
	}

	var doc markupBatch
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("malformed markup in %s: %w", path, err)
	}

	region := regionFromPath(path)
	batch := &models.ReconciliationBatch{
		SourceSystem: systemFromPath(path),
		CreatedDate:  time.Now(),
		FileName:     filepath.Base(path),
	}
	var errs []models.ErrorClass

	for i, pay := range doc.Payments {
		num := i + 1

		original, err := parseAmount(pay.OriginalAmount)
		if err != nil {
			errs = append(errs, models.ErrorClass{
				RecordNumber: num,
				Description:  fmt.Sprintf("invalid original amount %q", pay.OriginalAmount),
			})
			continue
		}
		accounting, err := parseAmount(pay.AccountingAmount)
		if err != nil {
			errs = append(errs, models.ErrorClass{
				RecordNumber: num,
				Description:  fmt.Sprintf("invalid accounting amount %q", pay.AccountingAmount),
			})
			continue
		}
		ts, err := parseTimestamp(pay.TransactionTime)
		if err != nil {
			errs = append(errs, models.ErrorClass{
				RecordNumber: num,
				Description:  err.Error(),
			})
			continue
		}

		batch.Details = append(batch.Details, models.ReconciliationDetail{
			BusinessUnit:           pay.BusinessUnit,
			UniquePaymentID:        pay.UniquePaymentID,
			SourcePaymentReference: pay.SourcePaymentReference,
			LedgerAccount:          pay.LedgerAccount,
			SourceCurrency:         pay.SourceCurrency,
			ForeignCurrency:        pay.ForeignCurrency,
			OriginalAmount:         original,
			AccountingAmount:       accounting,
			GroupType:              pay.GroupType,
			Qualifier:              pay.Qualifier,
			CreatedBy:              pay.CreatedBy,
			Status:                 pay.Status,
			TransactionTime:        ts,
			Region:                 region,
			RecordNumber:           num,
		})
	}

	return batch, errs, nil
}
