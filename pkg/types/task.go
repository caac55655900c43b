package types

import (
	"strings"
	"time"
)

// Task is a single to-do record.
type Task struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Validate reports whether the task can be persisted or displayed.
// Returns ErrInvalidTitle when the title is empty or only whitespace.
func (t *Task) Validate() error {
	return ValidateTitle(t.Title)
}

// Clone returns a copy of the task. Tasks hold no reference fields, so the
// copy is independent of the original.
func (t *Task) Clone() *Task {
	c := *t
	return &c
}

// Apply merges the non-nil fields of p into the task. ID and CreatedAt are
// never changed by a patch.
func (t *Task) Apply(p Patch) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
}

// ValidateTitle returns ErrInvalidTitle if title is blank.
func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return ErrInvalidTitle
	}
	return nil
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
}

// Validate checks the fields present in the patch.
func (p Patch) Validate() error {
	if p.Title != nil {
		return ValidateTitle(*p.Title)
	}
	return nil
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Completed == nil
}

// PatchFromTask builds a patch carrying every mutable field of t. It is what
// a completion toggle sends: the full task with its new flag.
func PatchFromTask(t *Task) Patch {
	title, description, completed := t.Title, t.Description, t.Completed
	return Patch{Title: &title, Description: &description, Completed: &completed}
}

// String returns a pointer to s, for building patches.
func String(s string) *string { return &s }

// Bool returns a pointer to b, for building patches.
func Bool(b bool) *bool { return &b }
