// Package domain contains core business entities and interfaces.
package domain

import "fmt"

// Issue represents a tracked unit of work.
type Issue struct {
	ID          string   `json:"id" yaml:"id"`                   // Assigned by the store, immutable
	Title       string   `json:"title" yaml:"title"`             // Title (required)
	Description string   `json:"description" yaml:"description"` // Description (may be empty)
	Priority    Priority `json:"priority" yaml:"priority"`       // Priority
	Status      Status   `json:"status" yaml:"status"`           // Current status
}

// Validate checks the issue against the data-model constraints.
func (i Issue) Validate() error {
	if i.ID == "" {
		return ErrEmptyID
	}
	if i.Title == "" {
		return ErrEmptyTitle
	}
	if !i.Priority.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidPriority, i.Priority)
	}
	if !i.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, i.Status)
	}
	return nil
}

// Collection is the ordered set of all issues. It is persisted as a single document.
type Collection []Issue

// Validate checks every issue and ensures ids are unique.
func (c Collection) Validate() error {
	seen := make(map[string]struct{}, len(c))
	for idx, issue := range c {
		if err := issue.Validate(); err != nil {
			return fmt.Errorf("issue %d: %w", idx, err)
		}
		if _, dup := seen[issue.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateID, issue.ID)
		}
		seen[issue.ID] = struct{}{}
	}
	return nil
}

// IndexOf returns the position of the issue with the given id, or -1.
func (c Collection) IndexOf(id string) int {
	for i := range c {
		if c[i].ID == id {
			return i
		}
	}
	return -1
}

// NewIssue contains the caller-supplied fields of an issue to create.
type NewIssue struct {
	Title       string
	Description string
	Priority    Priority
}

// Validate checks the fields required for creation.
func (n NewIssue) Validate() error {
	if n.Title == "" {
		return ErrEmptyTitle
	}
	if !n.Priority.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidPriority, n.Priority)
	}
	return nil
}

// IssuePatch describes a partial update. Nil fields are left unchanged.
type IssuePatch struct {
	Title       *string
	Description *string
	Priority    *Priority
	Status      *Status
}

// IsEmpty returns true if the patch supplies no fields.
func (p IssuePatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil && p.Status == nil
}

// Validate checks every supplied field. It reports the first violation.
func (p IssuePatch) Validate() error {
	if p.Title != nil && *p.Title == "" {
		return ErrEmptyTitle
	}
	if p.Priority != nil && !p.Priority.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidPriority, *p.Priority)
	}
	if p.Status != nil && !p.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, *p.Status)
	}
	return nil
}

// ApplyTo copies the supplied fields onto issue. The patch must be validated first.
func (p IssuePatch) ApplyTo(issue *Issue) {
	if p.Title != nil {
		issue.Title = *p.Title
	}
	if p.Description != nil {
		issue.Description = *p.Description
	}
	if p.Priority != nil {
		issue.Priority = *p.Priority
	}
	if p.Status != nil {
		issue.Status = *p.Status
	}
}
