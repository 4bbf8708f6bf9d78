package document

import "github.com/erp/salesdocs/internal/domain/shared"

// Error codes raised by the document lifecycle
const (
	CodeDraftWriteFailed        = "DRAFT_WRITE_FAILED"
	CodeNumberGenerationFailed  = "NUMBER_GENERATION_FAILED"
	CodeAlreadyFinalized        = "ALREADY_FINALIZED"
	CodeSealedDocument          = "SEALED_DOCUMENT"
	CodeArtifactRenderFailed    = "ARTIFACT_RENDER_FAILED"
	CodeBlobStoreFailed         = "BLOB_STORE_FAILED"
	CodeRepositoryCommitFailed  = "REPOSITORY_COMMIT_FAILED"
	CodeStructuralInconsistency = "STRUCTURAL_INCONSISTENCY"
	CodeNotFinalized            = "NOT_FINALIZED"
	CodeFinalizeInProgress      = "FINALIZE_IN_PROGRESS"
	CodeUnknownDocumentType     = "UNKNOWN_DOCUMENT_TYPE"
	CodeInvalidLineItem         = "INVALID_LINE_ITEM"
	CodeInvalidCommit           = "INVALID_COMMIT"
)

var (
	ErrDraftWriteFailed        = shared.NewDomainError(CodeDraftWriteFailed, "draft could not be saved")
	ErrNumberGenerationFailed  = shared.NewDomainError(CodeNumberGenerationFailed, "sequence generator unavailable, fallback number issued")
	ErrAlreadyFinalized        = shared.NewDomainError(CodeAlreadyFinalized, "this document has already been finalized")
	ErrSealedDocument          = shared.NewDomainError(CodeSealedDocument, "this document cannot be modified")
	ErrArtifactRenderFailed    = shared.NewDomainError(CodeArtifactRenderFailed, "document artifact could not be rendered")
	ErrBlobStoreFailed         = shared.NewDomainError(CodeBlobStoreFailed, "document artifact could not be stored")
	ErrRepositoryCommitFailed  = shared.NewDomainError(CodeRepositoryCommitFailed, "document version could not be committed")
	ErrStructuralInconsistency = shared.NewDomainError(CodeStructuralInconsistency, "stored document history is inconsistent")
	ErrNotFinalized            = shared.NewDomainError(CodeNotFinalized, "no finalized document exists yet")
	ErrFinalizeInProgress      = shared.NewDomainError(CodeFinalizeInProgress, "a save is already in progress for this document")
	ErrUnknownDocumentType     = shared.NewDomainError(CodeUnknownDocumentType, "unknown document type")
	ErrInvalidLineItem         = shared.NewDomainError(CodeInvalidLineItem, "line item does not match the document type")
	ErrInvalidCommit           = shared.NewDomainError(CodeInvalidCommit, "document commit is incomplete")
)
