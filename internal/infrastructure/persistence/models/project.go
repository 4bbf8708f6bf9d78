package models

import (
	"github.com/erp/salesdocs/internal/domain/document"
	"github.com/shopspring/decimal"
)

// ProjectModel is the GORM model for the projects table
type ProjectModel struct {
	EntityColumns
	CustomerNumber     string                                      `gorm:"type:varchar(50);not null;index"`
	CustomerName       string                                      `gorm:"type:varchar(200);not null"`
	Street             string                                      `gorm:"type:varchar(200)"`
	PostalCode         string                                      `gorm:"type:varchar(20)"`
	City               string                                      `gorm:"type:varchar(100)"`
	ArticleNumber      string                                      `gorm:"type:varchar(50)"`
	ArticleDescription string                                      `gorm:"type:varchar(500)"`
	Unit               string                                      `gorm:"type:varchar(20)"`
	Quantity           decimal.Decimal                             `gorm:"type:decimal(18,4);not null;default:0"`
	UnitPrice          decimal.Decimal                             `gorm:"type:decimal(18,4);not null;default:0"`
	Status             string                                      `gorm:"type:varchar(20);not null;default:'open'"`
	StageRefs          map[document.DocumentType]document.StageRef `gorm:"type:jsonb;serializer:json"`
}

// TableName returns the table name for ProjectModel
func (ProjectModel) TableName() string {
	return "projects"
}

// ToDomain converts ProjectModel to domain Project
func (m *ProjectModel) ToDomain() *document.Project {
	return &document.Project{
		Entity:             m.EntityColumns.entity(),
		CustomerNumber:     m.CustomerNumber,
		CustomerName:       m.CustomerName,
		Street:             m.Street,
		PostalCode:         m.PostalCode,
		City:               m.City,
		ArticleNumber:      m.ArticleNumber,
		ArticleDescription: m.ArticleDescription,
		Unit:               m.Unit,
		Quantity:           m.Quantity,
		UnitPrice:          m.UnitPrice,
		Status:             document.ProjectStatus(m.Status),
		StageRefs:          m.StageRefs,
	}
}

// ProjectModelFromDomain creates a ProjectModel from domain Project
func ProjectModelFromDomain(p *document.Project) *ProjectModel {
	m := &ProjectModel{
		EntityColumns:      entityColumns(p.Entity),
		CustomerNumber:     p.CustomerNumber,
		CustomerName:       p.CustomerName,
		Street:             p.Street,
		PostalCode:         p.PostalCode,
		City:               p.City,
		ArticleNumber:      p.ArticleNumber,
		ArticleDescription: p.ArticleDescription,
		Unit:               p.Unit,
		Quantity:           p.Quantity,
		UnitPrice:          p.UnitPrice,
		Status:             string(p.Status),
		StageRefs:          p.StageRefs,
	}
	if m.Status == "" {
		m.Status = string(document.ProjectStatusOpen)
	}
	return m
}
