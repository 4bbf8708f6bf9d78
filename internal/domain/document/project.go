package document

import (
	"time"

	"github.com/erp/salesdocs/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ProjectStatus reflects the furthest stage a project has reached
type ProjectStatus string

const (
	ProjectStatusOpen      ProjectStatus = "open"
	ProjectStatusQuoted    ProjectStatus = "quoted"
	ProjectStatusConfirmed ProjectStatus = "confirmed"
	ProjectStatusDelivered ProjectStatus = "delivered"
	ProjectStatusInvoiced  ProjectStatus = "invoiced"
)

var stageStatus = map[DocumentType]ProjectStatus{
	TypeQuote:             ProjectStatusQuoted,
	TypeOrderConfirmation: ProjectStatusConfirmed,
	TypeDeliveryNote:      ProjectStatusDelivered,
	TypeInvoice:           ProjectStatusInvoiced,
}

// IsValid checks if the status is known
func (s ProjectStatus) IsValid() bool {
	if s == ProjectStatusOpen {
		return true
	}
	for _, v := range stageStatus {
		if v == s {
			return true
		}
	}
	return false
}

// StatusForStage returns the project status reached by a stage
func StatusForStage(t DocumentType) ProjectStatus {
	if s, ok := stageStatus[t]; ok {
		return s
	}
	return ProjectStatusOpen
}

// StageRef caches the number and date of a stage's current document on the project
type StageRef struct {
	Number   string    `json:"number"`
	IssuedOn time.Time `json:"issued_on"`
}

// Project is the customer engagement a document chain belongs to.
// It is owned by the surrounding application; the lifecycle only reads it and
// maintains Status and StageRefs.
type Project struct {
	shared.Entity
	CustomerNumber     string
	CustomerName       string
	Street             string
	PostalCode         string
	City               string
	ArticleNumber      string
	ArticleDescription string
	Unit               string
	Quantity           decimal.Decimal
	UnitPrice          decimal.Decimal
	Status             ProjectStatus
	StageRefs          map[DocumentType]StageRef
}

// Customer returns the addressee block derived from the project
func (p *Project) Customer() Customer {
	return Customer{
		CustomerNumber: p.CustomerNumber,
		Name:           p.CustomerName,
		Street:         p.Street,
		PostalCode:     p.PostalCode,
		City:           p.City,
	}
}

// DefaultLineItem derives a single line item from the project-level article fields.
// It returns false when the project does not carry an article.
func (p *Project) DefaultLineItem(target DocumentType) (LineItem, bool) {
	if p.ArticleNumber == "" || p.Quantity.IsZero() {
		return LineItem{}, false
	}
	var (
		item *LineItem
		err  error
	)
	if target.IsPriced() {
		item, err = NewPricedLineItem(p.ArticleNumber, p.ArticleDescription, p.Unit, p.Quantity, p.UnitPrice)
	} else {
		item, err = NewUnpricedLineItem(p.ArticleNumber, p.ArticleDescription, p.Unit, p.Quantity)
	}
	if err != nil {
		return LineItem{}, false
	}
	return *item, true
}

// RecordStage caches the stage reference and advances the status if the stage is further along
func (p *Project) RecordStage(t DocumentType, ref StageRef) {
	if p.StageRefs == nil {
		p.StageRefs = make(map[DocumentType]StageRef)
	}
	p.StageRefs[t] = ref
	if StageIndex(t) > statusIndex(p.Status) {
		p.Status = StatusForStage(t)
	}
	p.Touch()
}

func statusIndex(s ProjectStatus) int {
	for t, v := range stageStatus {
		if v == s {
			return StageIndex(t)
		}
	}
	return -1
}
