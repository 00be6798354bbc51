package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// TransactionRecon is the base reconciliation table. Unmatched and
// direct-inserted records land here.
type TransactionRecon struct {
	ID                     uuid.UUID `gorm:"type:uuid;primaryKey"`
	System                 string    `gorm:"index"`
	Region                 string
	BusinessUnit           string `gorm:"column:bu;index"`
	SourcePaymentReference string `gorm:"index"`
	UniquePaymentID        string
	LedgerAccount          string
	SourceCurrency         string
	ForeignCurrency        string
	OriginalAmount         *float64
	AccountingAmount       *float64
	RecordType             string
	GroupType              string
	Qualifier              string
	Status                 string `gorm:"index"`
	GPIStatus              string `gorm:"column:gpi_status;index"`
	ErrorCode              string
	ErrorDesc              string
	FileName               string
	TransactionTime        time.Time
	CreatedBy              string
	CreatedDate            time.Time
	ModifiedDate           time.Time
}

// TransactionReconMatched holds matched outcomes.
type TransactionReconMatched struct {
	ID                     uuid.UUID `gorm:"type:uuid;primaryKey"`
	System                 string    `gorm:"index"`
	Region                 string
	BusinessUnit           string `gorm:"column:bu;index"`
	SourcePaymentReference string `gorm:"index"`
	UniquePaymentID        string
	SourceCurrency         string
	OriginalAmount         *float64
	AccountingAmount       *float64
	RecordType             string
	GroupType              string
	Status                 string
	GPIStatus              string `gorm:"column:gpi_status"`
	GPIModifiedTime        time.Time
	MatchDetails           datatypes.JSON
	FileName               string
	CreatedDate            time.Time
}

// LedgerEntry mirrors the external ledger table queried for MRR records.
type LedgerEntry struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	System       string    `gorm:"column:led_system;index"`
	BusinessUnit string    `gorm:"column:led_bu;index"`
	Reference    string    `gorm:"index"`
	Currency     string
	Amount       float64
	CreatedDate  *time.Time
	ModifiedDate *time.Time
}

// PaymentQueueEntry mirrors the payment-queue table.
type PaymentQueueEntry struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	System       string    `gorm:"column:pmq_system;index"`
	BusinessUnit string    `gorm:"column:pmq_bu;index"`
	PaymentNum   string    `gorm:"column:paynum;index"`
	AccountNo    string
	Currency     string
	PaymentAmt   float64
	AccountingAmt float64
	GroupType    string
	Qualifier    string
	Status       string
	CreatedBy    string
	CreatedDate  *time.Time
	ModifiedDate *time.Time
}

// Payment mirrors the payment table.
type Payment struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	System        string    `gorm:"column:pmt_system;index"`
	BusinessUnit  string    `gorm:"column:pmt_bu;index"`
	PaymentID     string    `gorm:"column:pmt_id;index"`
	OriginalPmtID string    `gorm:"column:original_pmt_id;index"`
	AccountID     string
	Currency      string
	OriginalAmt   float64
	AccountingAmt float64
	GroupType     string
	Qualifier     string
	Status        string
	CreatedBy     string
	CreatedDate   *time.Time
	ModifiedDate  *time.Time
}

// IgnoredStatusPayment mirrors the excluded-state payment table consulted
// for records whose source status is configured as ignored.
type IgnoredStatusPayment struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	System       string    `gorm:"index"`
	BusinessUnit string    `gorm:"column:bu;index"`
	PaymentID    string    `gorm:"index"`
	Currency     string
	Amount       float64
	Status       string
	CreatedDate  *time.Time
	ModifiedDate *time.Time
}

// ProcessedFile records every file the engine has resolved, keyed by
// system and file name. Duplicate delivery is detected against it.
type ProcessedFile struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	System      string    `gorm:"index:idx_processed_system_file"`
	FileName    string    `gorm:"index:idx_processed_system_file"`
	ProcessedAt time.Time
}

// SystemDetail maps a (system, region) pair to its operational contacts.
type SystemDetail struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	SystemName  string    `gorm:"index"`
	Region      string    `gorm:"index"`
	ContactInfo string
}

// MailDetail maps a (system, region) pair to delivery settings for the
// outbound reconciliation output.
type MailDetail struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	System       string    `gorm:"index"`
	Region       string    `gorm:"index"`
	MailDL       string    `gorm:"column:mail_dl"`
	ResourcePath string
	FileName     string
}

// PaymentReconSystem registers systems reconciled as PAYMENT; anything
// absent defaults to STATUS.
type PaymentReconSystem struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	System string    `gorm:"uniqueIndex"`
}
