// Package models contains the GORM persistence models of the document store.
// They are kept apart from the domain types so the domain stays free of ORM tags.
//
// Structure:
//   - base.go: EntityColumns shared by mutable rows
//   - document.go: stored document versions and drafts
//   - project.go: projects and their cached stage references
//   - sequence.go: per-type, per-year number counters
//   - outbox.go: document events awaiting delivery
package models
