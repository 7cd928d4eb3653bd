// Package domain defines the raw line-item rows read from the billing store
// and the contracts the batch runner uses to read and write them.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// InvoiceHeader identifies an invoice awaiting computation.
type InvoiceHeader struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Ref       string       `gorm:"type:text;not null;uniqueIndex"`
	Currency  string       `gorm:"type:text;not null"`
	IssueDate time.Time    `gorm:"not null;index"`
	CreatedAt time.Time    `gorm:"not null"`
}

// TableName sets the database table name.
func (InvoiceHeader) TableName() string { return "invoice_headers" }

// RawLine is one stored line item. Rows are immutable once written.
type RawLine struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	InvoiceID snowflake.ID `gorm:"not null;index"`
	Position  int          `gorm:"not null"`

	Entity            string            `gorm:"type:text;not null"`
	DescriptionParams datatypes.JSONMap `gorm:"type:json"`
	Nested            bool              `gorm:"not null;default:false"`

	UnitPrice decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	Currency  string          `gorm:"type:text;not null"`
	Quantity  decimal.Decimal `gorm:"type:numeric(20,4);not null;default:1"`

	Term int    `gorm:"not null;default:1"`
	Unit string `gorm:"type:text;not null;default:'month'"`

	ProrationStart *time.Time `gorm:""`
	ProrationEnd   *time.Time `gorm:""`
	PeriodStart    *time.Time `gorm:""`
	PeriodEnd      *time.Time `gorm:""`
	Direction      string     `gorm:"type:text"`

	DiscountCode  string              `gorm:"type:text"`
	DiscountKind  string              `gorm:"type:text"`
	DiscountValue decimal.NullDecimal `gorm:"type:numeric(20,4)"`

	CreatedAt time.Time `gorm:"not null"`
}

// TableName sets the database table name.
func (RawLine) TableName() string { return "invoice_line_items" }

// RawTaxAssignment attaches one tax rate to a line.
type RawTaxAssignment struct {
	ID      snowflake.ID    `gorm:"primaryKey"`
	LineID  snowflake.ID    `gorm:"not null;index"`
	Name    string          `gorm:"type:text;not null"`
	Level   int             `gorm:"not null"`
	Rate    decimal.Decimal `gorm:"type:numeric(9,4);not null"`
	Country string          `gorm:"type:text;not null"`
	State   *string         `gorm:"type:text"`
	Cascade bool            `gorm:"not null;default:false"`
}

// TableName sets the database table name.
func (RawTaxAssignment) TableName() string { return "invoice_line_taxes" }
