// Package domain contains invoice totals and their persistence models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// TotalsStatus records the outcome of computing one invoice.
type TotalsStatus string

const (
	TotalsStatusComputed TotalsStatus = "COMPUTED"
	TotalsStatusFailed   TotalsStatus = "FAILED"
)

// InvoiceTotalsRecord stores the rounded totals of one invoice per run.
type InvoiceTotalsRecord struct {
	ID            snowflake.ID      `gorm:"primaryKey"`
	InvoiceRef    string            `gorm:"type:text;not null;uniqueIndex:ux_invoice_totals_run"`
	RunID         string            `gorm:"type:text;not null;uniqueIndex:ux_invoice_totals_run"`
	Status        TotalsStatus      `gorm:"type:text;not null"`
	Currency      string            `gorm:"type:text;not null"`
	Subtotal      decimal.Decimal   `gorm:"type:numeric(20,4);not null;default:0"`
	Level1Tax     decimal.Decimal   `gorm:"type:numeric(20,4);not null;default:0"`
	Level2Tax     decimal.Decimal   `gorm:"type:numeric(20,4);not null;default:0"`
	Total         decimal.Decimal   `gorm:"type:numeric(20,4);not null;default:0"`
	LineCount     int               `gorm:"not null;default:0"`
	FailureKind   string            `gorm:"type:text"`
	FailureReason string            `gorm:"type:text"`
	Metadata      datatypes.JSONMap `gorm:"type:json"`
	CreatedAt     time.Time         `gorm:"not null"`
}

// TableName sets the database table name.
func (InvoiceTotalsRecord) TableName() string { return "invoice_totals" }

// InvoiceLineRecord stores one priced, described line.
type InvoiceLineRecord struct {
	ID          snowflake.ID      `gorm:"primaryKey"`
	TotalsID    snowflake.ID      `gorm:"not null;index"`
	ItemRef     string            `gorm:"type:text"`
	Position    int               `gorm:"not null"`
	Kind        string            `gorm:"type:text;not null"`
	Description string            `gorm:"type:text;not null"`
	Currency    string            `gorm:"type:text;not null"`
	Taxable     decimal.Decimal   `gorm:"type:numeric(20,4);not null;default:0"`
	Level1Tax   decimal.Decimal   `gorm:"type:numeric(20,4);not null;default:0"`
	Level2Tax   decimal.Decimal   `gorm:"type:numeric(20,4);not null;default:0"`
	Metadata    datatypes.JSONMap `gorm:"type:json"`
	CreatedAt   time.Time         `gorm:"not null"`
}

// TableName sets the database table name.
func (InvoiceLineRecord) TableName() string { return "invoice_lines" }

// InvoiceTaxLineRecord stores the tax collected per level and jurisdiction.
type InvoiceTaxLineRecord struct {
	ID           snowflake.ID    `gorm:"primaryKey"`
	TotalsID     snowflake.ID    `gorm:"not null;index"`
	Level        int             `gorm:"not null"`
	Jurisdiction string          `gorm:"type:text;not null"`
	TaxName      string          `gorm:"type:text;not null"`
	Label        string          `gorm:"type:text"`
	TaxRate      decimal.Decimal `gorm:"type:numeric(9,4);not null"`
	Taxable      decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0"`
	Amount       decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0"`
	CreatedAt    time.Time       `gorm:"not null"`
}

// TableName sets the database table name.
func (InvoiceTaxLineRecord) TableName() string { return "invoice_tax_lines" }
