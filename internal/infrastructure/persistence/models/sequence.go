package models

import "time"

// DocumentSequenceModel is the GORM model for the document_sequences table.
// One counter row exists per document type and calendar year.
type DocumentSequenceModel struct {
	DocumentType string    `gorm:"type:varchar(32);primaryKey"`
	Year         int       `gorm:"primaryKey"`
	LastValue    int64     `gorm:"not null;default:0"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for DocumentSequenceModel
func (DocumentSequenceModel) TableName() string {
	return "document_sequences"
}
