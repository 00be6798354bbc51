package repository

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"transaction-recon/internal/models"
)

// GormStore implements Store over the reconciliation schema.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) DB() *gorm.DB {
	return s.db
}

func (s *GormStore) ReconciliationType(system string) (string, error) {
	var count int64
	err := s.db.Model(&models.PaymentReconSystem{}).
		Where("system = ?", system).
		Count(&count).Error
	if err != nil {
		return "", err
	}
	if count > 0 {
		return models.ReconTypePayment, nil
	}
	return models.ReconTypeStatus, nil
}

func (s *GormStore) QueryLedger(system, bu, reference string) ([]models.CandidateRow, error) {
	var rows []models.LedgerEntry
	err := s.db.
		Where("led_system = ? AND led_bu = ? AND reference = ?", system, bu, reference).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]models.CandidateRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.CandidateRow{
			Amount:     decimal.NewFromFloat(r.Amount),
			Currency:   r.Currency,
			CreatedAt:  r.CreatedDate,
			ModifiedAt: r.ModifiedDate,
		})
	}
	return out, nil
}

func (s *GormStore) QueryPayments(system, bu, reference string, byPaymentID bool) ([]models.CandidateRow, error) {
	var out []models.CandidateRow

	var queued []models.PaymentQueueEntry
	err := s.db.
		Where("pmq_system = ? AND pmq_bu = ? AND paynum = ?", system, bu, reference).
		Find(&queued).Error
	if err != nil {
		return nil, err
	}
	for _, r := range queued {
		out = append(out, models.CandidateRow{
			Amount:     decimal.NewFromFloat(r.PaymentAmt),
			Currency:   r.Currency,
			Status:     r.Status,
			CreatedAt:  r.CreatedDate,
			ModifiedAt: r.ModifiedDate,
		})
	}

	idColumn := "original_pmt_id"
	if byPaymentID {
		idColumn = "pmt_id"
	}

	var payments []models.Payment
	err = s.db.
		Where("pmt_system = ? AND pmt_bu = ? AND "+idColumn+" = ?", system, bu, reference).
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	for _, r := range payments {
		out = append(out, models.CandidateRow{
			Amount:     decimal.NewFromFloat(r.OriginalAmt),
			Currency:   r.Currency,
			Status:     r.Status,
			CreatedAt:  r.CreatedDate,
			ModifiedAt: r.ModifiedDate,
		})
	}
	return out, nil
}

func (s *GormStore) QueryIgnoredStatus(system, bu, reference, statusFilter string) ([]models.CandidateRow, error) {
	if statusFilter == "" {
		return nil, nil
	}

	var rows []models.IgnoredStatusPayment
	err := s.db.
		Where("system = ? AND bu = ? AND payment_id = ?", system, bu, reference).
		Where("status IN (" + statusFilter + ")").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]models.CandidateRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.CandidateRow{
			Amount:     decimal.NewFromFloat(r.Amount),
			Currency:   r.Currency,
			Status:     r.Status,
			CreatedAt:  r.CreatedDate,
			ModifiedAt: r.ModifiedDate,
		})
	}
	return out, nil
}

func (s *GormStore) InsertUnmatched(system string, createdDate time.Time, d *models.ReconciliationDetail, fileName string) error {
	row := models.TransactionRecon{
		ID:                     uuid.New(),
		System:                 system,
		Region:                 d.Region,
		BusinessUnit:           d.BusinessUnit,
		SourcePaymentReference: d.SourcePaymentReference,
		UniquePaymentID:        d.UniquePaymentID,
		LedgerAccount:          d.LedgerAccount,
		SourceCurrency:         d.SourceCurrency,
		ForeignCurrency:        d.ForeignCurrency,
		OriginalAmount:         toFloat(d.OriginalAmount),
		AccountingAmount:       toFloat(d.AccountingAmount),
		RecordType:             string(d.RecordType),
		GroupType:              d.GroupType,
		Qualifier:              d.Qualifier,
		Status:                 d.Status,
		GPIStatus:              d.GPIStatus,
		ErrorCode:              d.ErrorCode,
		ErrorDesc:              d.ErrorDescription,
		FileName:               fileName,
		TransactionTime:        d.TransactionTime,
		CreatedBy:              d.CreatedBy,
		CreatedDate:            createdDate,
		ModifiedDate:           time.Now(),
	}
	return s.db.Create(&row).Error
}

func (s *GormStore) InsertMatched(system string, createdDate time.Time, d *models.ReconciliationDetail, fileName string, gpiModified time.Time) error {
	details, _ := json.Marshal(map[string]interface{}{
		"source_payment_reference": d.SourcePaymentReference,
		"unique_payment_id":        d.UniquePaymentID,
		"record_type":              string(d.RecordType),
		"group_type":               d.GroupType,
		"currency":                 d.SourceCurrency,
	})

	row := models.TransactionReconMatched{
		ID:                     uuid.New(),
		System:                 system,
		Region:                 d.Region,
		BusinessUnit:           d.BusinessUnit,
		SourcePaymentReference: d.SourcePaymentReference,
		UniquePaymentID:        d.UniquePaymentID,
		SourceCurrency:         d.SourceCurrency,
		OriginalAmount:         toFloat(d.OriginalAmount),
		AccountingAmount:       toFloat(d.AccountingAmount),
		RecordType:             string(d.RecordType),
		GroupType:              d.GroupType,
		Status:                 d.Status,
		GPIStatus:              d.GPIStatus,
		GPIModifiedTime:        gpiModified,
		MatchDetails:           details,
		FileName:               fileName,
		CreatedDate:            createdDate,
	}
	return s.db.Create(&row).Error
}

func (s *GormStore) UpdateUnmatchedStatus(system, bu, reference, gpiStatus string) error {
	return s.db.Model(&models.TransactionRecon{}).
		Where("system = ? AND bu = ? AND source_payment_reference = ?", system, bu, reference).
		Updates(map[string]interface{}{
			"gpi_status":    gpiStatus,
			"modified_date": time.Now(),
		}).Error
}

func (s *GormStore) UpdateUnmatchedError(system, bu, reference, gpiStatus, errCode, errDesc string) error {
	return s.db.Model(&models.TransactionRecon{}).
		Where("system = ? AND bu = ? AND source_payment_reference = ?", system, bu, reference).
		Updates(map[string]interface{}{
			"gpi_status":    gpiStatus,
			"error_code":    errCode,
			"error_desc":    errDesc,
			"modified_date": time.Now(),
		}).Error
}

func (s *GormStore) MatchedExists(system, bu, reference string) (bool, error) {
	var count int64
	err := s.db.Model(&models.TransactionReconMatched{}).
		Where("system = ? AND bu = ? AND source_payment_reference = ?", system, bu, reference).
		Count(&count).Error
	return count > 0, err
}

func (s *GormStore) ProcessedFileExists(system, fileName string) (bool, error) {
	var count int64
	err := s.db.Model(&models.ProcessedFile{}).
		Where("system = ? AND file_name = ?", system, fileName).
		Count(&count).Error
	return count > 0, err
}

func (s *GormStore) InsertProcessedFile(system, fileName string) error {
	return s.db.Create(&models.ProcessedFile{
		ID:          uuid.New(),
		System:      system,
		FileName:    fileName,
		ProcessedAt: time.Now(),
	}).Error
}

func (s *GormStore) MailAddressFor(system, region string) (string, error) {
	var row models.MailDetail
	err := s.db.
		Where("system = ? AND region = ?", system, region).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return row.MailDL, nil
}

func (s *GormStore) ResourcePathFor(system, region string) (string, error) {
	var row models.MailDetail
	err := s.db.
		Where("system = ? AND region = ?", system, region).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return row.ResourcePath, nil
}

func (s *GormStore) ListUnmatched(system, buFilter string, limit int) ([]models.TransactionRecon, error) {
	var rows []models.TransactionRecon
	query := s.db.
		Where("gpi_status = ?", models.GPIStatusUnmatched).
		Order("created_date ASC").
		Limit(limit)
	if system != "" {
		query = query.Where("system = ?", system)
	}
	if buFilter != "" {
		query = query.Where("bu IN (" + buFilter + ")")
	}
	err := query.Find(&rows).Error
	return rows, err
}

func (s *GormStore) GetUnmatched(id uuid.UUID) (*models.TransactionRecon, error) {
	var row models.TransactionRecon
	if err := s.db.First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func toFloat(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	f, _ := d.Float64()
	return &f
}
