package document

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HistoryEntry is the read projection of one stored version
type HistoryEntry struct {
	DocumentID     uuid.UUID        `json:"document_id"`
	Number         string           `json:"number"`
	NumberSource   NumberSource     `json:"number_source"`
	Version        int              `json:"version"`
	CreatedAt      time.Time        `json:"created_at"`
	GrossAmount    *decimal.Decimal `json:"gross_amount,omitempty"`
	ArtifactFileID string           `json:"artifact_file_id"`
	IsCurrent      bool             `json:"is_current"`
	IsVoided       bool             `json:"is_voided"`
	VoidReason     *string          `json:"void_reason,omitempty"`
}

// ProjectHistory maps the stored versions of one (project, type) into an ordered history.
// Rows repeated with the same ID are collapsed. The result is ordered by version
// descending, newest creation time first on ties. Data that breaks the versioning
// invariants is reported as ErrStructuralInconsistency instead of being repaired.
func ProjectHistory(docs []StoredDocument) ([]HistoryEntry, error) {
	if len(docs) == 0 {
		return []HistoryEntry{}, nil
	}

	key := docs[0].Key()
	seen := make(map[uuid.UUID]struct{}, len(docs))
	unique := make([]StoredDocument, 0, len(docs))
	for _, d := range docs {
		if d.Key() != key {
			return nil, ErrStructuralInconsistency.WithMessage(
				fmt.Sprintf("history mixes %s with %s", key, d.Key()))
		}
		if _, dup := seen[d.ID]; dup {
			continue
		}
		seen[d.ID] = struct{}{}
		unique = append(unique, d)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		if unique[i].Version != unique[j].Version {
			return unique[i].Version > unique[j].Version
		}
		return unique[i].CreatedAt.After(unique[j].CreatedAt)
	})

	if err := checkVersions(key, unique); err != nil {
		return nil, err
	}

	entries := make([]HistoryEntry, 0, len(unique))
	for _, d := range unique {
		entries = append(entries, HistoryEntry{
			DocumentID:     d.ID,
			Number:         d.Number,
			NumberSource:   d.NumberSource,
			Version:        d.Version,
			CreatedAt:      d.CreatedAt,
			GrossAmount:    copyDecimal(d.GrossAmount),
			ArtifactFileID: d.ArtifactFileID,
			IsCurrent:      d.IsCurrent,
			IsVoided:       d.IsVoided,
			VoidReason:     d.VoidReason,
		})
	}
	return entries, nil
}

// checkVersions expects docs sorted by version descending
func checkVersions(key Key, docs []StoredDocument) error {
	current := 0
	for i, d := range docs {
		if d.IsCurrent {
			current++
		}
		want := len(docs) - i
		if d.Version != want {
			return ErrStructuralInconsistency.WithMessage(
				fmt.Sprintf("%s: expected version %d, found %d", key, want, d.Version))
		}
	}
	switch {
	case current > 1:
		return ErrStructuralInconsistency.WithMessage(
			fmt.Sprintf("%s: %d versions are marked current", key, current))
	case current == 0:
		return ErrStructuralInconsistency.WithMessage(
			fmt.Sprintf("%s: no version is marked current", key))
	}
	if !docs[0].IsCurrent {
		return ErrStructuralInconsistency.WithMessage(
			fmt.Sprintf("%s: current flag is not on the latest version", key))
	}
	return nil
}

// CurrentEntry returns the entry marked current, if any
func CurrentEntry(entries []HistoryEntry) (HistoryEntry, bool) {
	for _, e := range entries {
		if e.IsCurrent {
			return e, true
		}
	}
	return HistoryEntry{}, false
}
