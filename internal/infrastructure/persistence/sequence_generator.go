package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/salesdocs/internal/domain/document"
	"github.com/erp/salesdocs/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSequenceGenerator issues "<PREFIX>-<YYYY>-<NNNNN>" numbers from a counter
// row per document type and year. The row is locked for the increment, so
// concurrent callers never receive the same number.
type GormSequenceGenerator struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormSequenceGenerator creates a new database-backed sequence generator
func NewGormSequenceGenerator(db *gorm.DB) *GormSequenceGenerator {
	return &GormSequenceGenerator{db: db, now: time.Now}
}

// Next returns the next number for the document type
func (g *GormSequenceGenerator) Next(ctx context.Context, t document.DocumentType) (string, error) {
	if !t.IsValid() {
		return "", document.ErrUnknownDocumentType
	}
	now := g.now()
	year := now.Year()

	var value int64
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seed := &models.DocumentSequenceModel{DocumentType: string(t), Year: year, UpdatedAt: now}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(seed).Error; err != nil {
			return fmt.Errorf("failed to seed sequence: %w", err)
		}

		var row models.DocumentSequenceModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("document_type = ? AND year = ?", string(t), year).
			First(&row).Error; err != nil {
			return fmt.Errorf("failed to lock sequence: %w", err)
		}

		value = row.LastValue + 1
		return tx.Model(&models.DocumentSequenceModel{}).
			Where("document_type = ? AND year = ?", string(t), year).
			Updates(map[string]any{"last_value": value, "updated_at": now}).Error
	})
	if err != nil {
		return "", err
	}
	return FormatSequenceNumber(t, year, value), nil
}

// FormatSequenceNumber renders a counter value as a document number
func FormatSequenceNumber(t document.DocumentType, year int, value int64) string {
	return fmt.Sprintf("%s-%04d-%05d", t.Prefix(), year, value)
}

var _ document.SequenceGenerator = (*GormSequenceGenerator)(nil)
