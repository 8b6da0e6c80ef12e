package model

import (
	"github.com/shopspring/decimal"
)

func init() {
	// The backend expects numeric JSON for quantities and prices
	decimal.MarshalJSONWithoutQuotes = true
}

// DocumentType is the kind of inventory document
type DocumentType string

const (
	DocumentTypeReceipt    DocumentType = "receipt"
	DocumentTypeExpense    DocumentType = "expense"
	DocumentTypeTransfer   DocumentType = "transfer"
	DocumentTypeInventory  DocumentType = "inventory"
	DocumentTypeStockInput DocumentType = "stock_input"
)

// DocumentTypes lists every document type in menu order
var DocumentTypes = []DocumentType{
	DocumentTypeStockInput,
	DocumentTypeReceipt,
	DocumentTypeExpense,
	DocumentTypeTransfer,
	DocumentTypeInventory,
}

// ParseDocumentType maps a wire value to a DocumentType, defaulting to receipt
func ParseDocumentType(s string) DocumentType {
	switch t := DocumentType(s); t {
	case DocumentTypeReceipt, DocumentTypeExpense, DocumentTypeTransfer,
		DocumentTypeInventory, DocumentTypeStockInput:
		return t
	}
	return DocumentTypeReceipt
}

// DocumentStatus is the lifecycle state of a document on the server
type DocumentStatus string

const (
	DocumentStatusDraft     DocumentStatus = "draft"
	DocumentStatusPosted    DocumentStatus = "posted"
	DocumentStatusCancelled DocumentStatus = "cancelled"
)

// ParseDocumentStatus maps a wire value to a DocumentStatus, defaulting to draft
func ParseDocumentStatus(s string) DocumentStatus {
	switch st := DocumentStatus(s); st {
	case DocumentStatusDraft, DocumentStatusPosted, DocumentStatusCancelled:
		return st
	}
	return DocumentStatusDraft
}

// Document is an inventory document header
type Document struct {
	ID             int64          `gorm:"primaryKey;autoIncrement:false" json:"id"`
	DocumentType   DocumentType   `gorm:"index" json:"document_type"`
	DocumentNumber string         `gorm:"index" json:"document_number"`
	WarehouseID    int64          `gorm:"index" json:"warehouse_id"`
	Date           string         `json:"date"`
	Status         DocumentStatus `gorm:"index" json:"status"`
	Description    *string        `json:"description"`
	CreatedBy      *int64         `json:"created_by"`
	CreatedAt      string         `gorm:"index" json:"created_at"`
	UpdatedAt      *string        `json:"updated_at"`

	Items []DocumentItem `gorm:"-" json:"items,omitempty"`
}

func (Document) TableName() string {
	return "documents"
}

// Normalize replaces unknown enum values with their defaults
func (d *Document) Normalize() {
	d.DocumentType = ParseDocumentType(string(d.DocumentType))
	d.Status = ParseDocumentStatus(string(d.Status))
}

// DocumentItem is a single line of a document
type DocumentItem struct {
	ID             int64            `gorm:"primaryKey;autoIncrement:false" json:"id"`
	DocumentID     int64            `gorm:"index" json:"document_id"`
	NomenclatureID int64            `json:"nomenclature_id"`
	Quantity       decimal.Decimal  `gorm:"type:numeric" json:"quantity"`
	UnitID         int64            `json:"unit_id"`
	Price          *decimal.Decimal `gorm:"type:numeric" json:"price"`
	Total          *decimal.Decimal `gorm:"type:numeric" json:"total"`
	Description    *string          `json:"description"`
	CreatedAt      string           `json:"created_at"`
	UpdatedAt      *string          `json:"updated_at"`
}

func (DocumentItem) TableName() string {
	return "document_items"
}
