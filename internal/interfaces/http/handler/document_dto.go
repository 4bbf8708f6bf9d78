package handler

import (
	"time"

	docapp "github.com/erp/salesdocs/internal/application/document"
	"github.com/erp/salesdocs/internal/domain/document"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Request Types
// =============================================================================

// DocumentKeyURI binds the key of a document route
type DocumentKeyURI struct {
	ProjectID string `uri:"project_id" binding:"required,uuid"`
	Type      string `uri:"type" binding:"required,document_type"`
}

// ProjectURI binds the project of a project route
type ProjectURI struct {
	ProjectID string `uri:"project_id" binding:"required,uuid"`
}

// ArtifactURI binds a stored version of a document
type ArtifactURI struct {
	DocumentKeyURI
	Version int `uri:"version" binding:"gte=0"`
}

// ArtifactQuery selects how the artifact is presented
type ArtifactQuery struct {
	Mode string `form:"mode" binding:"omitempty,url_mode"`
}

// CustomerRequest is the recipient block of a document. Drafts may leave it
// incomplete.
type CustomerRequest struct {
	CustomerNumber string `json:"customer_number" binding:"max=32"`
	Name           string `json:"name" binding:"max=200"`
	Street         string `json:"street" binding:"max=200"`
	PostalCode     string `json:"postal_code" binding:"max=16"`
	City           string `json:"city" binding:"max=100"`
}

// LineItemRequest is one position of a document. Prices are ignored on
// delivery notes.
type LineItemRequest struct {
	ID             string           `json:"id" binding:"omitempty,uuid"`
	Number         string           `json:"number" binding:"required,max=64"`
	Description    string           `json:"description" binding:"max=500"`
	Unit           string           `json:"unit" binding:"required,max=16"`
	Quantity       decimal.Decimal  `json:"quantity"`
	UnitPrice      *decimal.Decimal `json:"unit_price"`
	ReferencePrice *decimal.Decimal `json:"reference_price"`
	ReasonCode     string           `json:"reason_code" binding:"max=64"`
}

// SaveDraftRequest replaces the working payload of a document
type SaveDraftRequest struct {
	IssuedOn *time.Time        `json:"issued_on"`
	Customer CustomerRequest   `json:"customer"`
	Items    []LineItemRequest `json:"items" binding:"max=500,dive"`
	Notes    string            `json:"notes" binding:"max=4000"`
	VATRate  *decimal.Decimal  `json:"vat_rate"`
}

// ToPayload converts the request to a domain payload. Items without an ID get
// a fresh one; totals are derived later by normalization.
func (r SaveDraftRequest) ToPayload() document.Payload {
	items := make([]document.LineItem, 0, len(r.Items))
	for _, in := range r.Items {
		id, err := uuid.Parse(in.ID)
		if err != nil {
			id = uuid.New()
		}
		items = append(items, document.LineItem{
			ID:             id,
			Number:         in.Number,
			Description:    in.Description,
			Unit:           in.Unit,
			Quantity:       in.Quantity,
			UnitPrice:      in.UnitPrice,
			ReferencePrice: in.ReferencePrice,
			ReasonCode:     in.ReasonCode,
		})
	}

	payload := document.NewPayload(document.Customer{
		CustomerNumber: r.Customer.CustomerNumber,
		Name:           r.Customer.Name,
		Street:         r.Customer.Street,
		PostalCode:     r.Customer.PostalCode,
		City:           r.Customer.City,
	}, items)
	payload.Notes = r.Notes
	if r.IssuedOn != nil {
		payload.IssuedOn = *r.IssuedOn
	}
	if r.VATRate != nil {
		payload.VATRate = *r.VATRate
	}
	return payload
}

// =============================================================================
// Response Types
// =============================================================================

// StoredDocumentResponse is a committed version of a document
type StoredDocumentResponse struct {
	ID             uuid.UUID             `json:"id"`
	ProjectID      uuid.UUID             `json:"project_id"`
	DocumentType   document.DocumentType `json:"document_type"`
	Number         string                `json:"number"`
	NumberSource   document.NumberSource `json:"number_source"`
	Version        int                   `json:"version"`
	CreatedAt      time.Time             `json:"created_at"`
	GrossAmount    *decimal.Decimal      `json:"gross_amount,omitempty"`
	ArtifactFileID string                `json:"artifact_file_id"`
	IsCurrent      bool                  `json:"is_current"`
	IsVoided       bool                  `json:"is_voided"`
	VoidReason     *string               `json:"void_reason,omitempty"`
	Snapshot       document.Payload      `json:"snapshot"`
}

// SessionViewResponse is the editing state of a document
type SessionViewResponse struct {
	ProjectID    uuid.UUID               `json:"project_id"`
	DocumentType document.DocumentType   `json:"document_type"`
	Label        string                  `json:"label"`
	State        document.LifecycleState `json:"state"`
	Payload      document.Payload        `json:"payload"`
	Totals       *document.Totals        `json:"totals,omitempty"`
	Current      *StoredDocumentResponse `json:"current,omitempty"`
	DraftStatus  docapp.DraftStatus      `json:"draft_status"`
	Actions      []document.Action       `json:"actions"`
	Saving       bool                    `json:"saving"`
}

// CommitResponse is returned by finalize and save-new-version
type CommitResponse struct {
	Document *StoredDocumentResponse `json:"document"`
	State    document.LifecycleState `json:"state"`
	Notices  []docapp.Notice         `json:"notices,omitempty"`
}

// ArtifactURLResponse points at the rendered artifact of a version
type ArtifactURLResponse struct {
	URL     string           `json:"url"`
	Mode    document.URLMode `json:"mode"`
	Version int              `json:"version,omitempty"`
}

// ProjectStatusResponse is the derived status of a project
type ProjectStatusResponse struct {
	ProjectID uuid.UUID              `json:"project_id"`
	Status    document.ProjectStatus `json:"status"`
}

func toStoredDocumentResponse(d *document.StoredDocument) *StoredDocumentResponse {
	if d == nil {
		return nil
	}
	return &StoredDocumentResponse{
		ID:             d.ID,
		ProjectID:      d.ProjectID,
		DocumentType:   d.DocumentType,
		Number:         d.Number,
		NumberSource:   d.NumberSource,
		Version:        d.Version,
		CreatedAt:      d.CreatedAt,
		GrossAmount:    d.GrossAmount,
		ArtifactFileID: d.ArtifactFileID,
		IsCurrent:      d.IsCurrent,
		IsVoided:       d.IsVoided,
		VoidReason:     d.VoidReason,
		Snapshot:       d.Snapshot,
	}
}

func toSessionViewResponse(v *docapp.SessionView) SessionViewResponse {
	actions := v.Actions
	if actions == nil {
		actions = []document.Action{}
	}
	return SessionViewResponse{
		ProjectID:    v.Key.ProjectID,
		DocumentType: v.Key.DocumentType,
		Label:        v.Key.DocumentType.Label(),
		State:        v.State,
		Payload:      v.Payload,
		Totals:       v.Totals,
		Current:      toStoredDocumentResponse(v.Current),
		DraftStatus:  v.DraftStatus,
		Actions:      actions,
		Saving:       v.Saving,
	}
}

func toCommitResponse(r *docapp.CommitResult) CommitResponse {
	return CommitResponse{
		Document: toStoredDocumentResponse(r.Document),
		State:    r.State,
		Notices:  r.Notices,
	}
}
