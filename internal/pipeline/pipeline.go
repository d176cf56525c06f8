// Package pipeline implements the CRM side of the app: leads a user has
// pulled into their sales pipeline, tracked across stages with tags, notes,
// follow-ups, and an append-only activity log. Every record is scoped to
// the user who created it; operations against another user's record report
// not-found rather than revealing the record exists.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/leadflow-pro/leadflow/internal/model"
)

// ErrNotFound is returned when a record does not exist or belongs to a
// different user. The two cases are deliberately indistinguishable.
var ErrNotFound = eris.New("pipeline: lead not found")

// ListFilter narrows List results.
type ListFilter struct {
	Stage    model.Stage // "" for all
	Tag      string      // "" for all
	MinScore int
}

// UpdateInput carries the mutable fields of a pipeline lead. Nil pointers
// leave the stored value unchanged.
type UpdateInput struct {
	Notes          *string
	Tags           *[]string
	NextFollowUpAt *time.Time
	LeadScore      *int
	ScoreCategory  *string
}

// Store persists pipeline leads and their activity log.
type Store interface {
	// Add puts a lead into the user's pipeline at the "new" stage and
	// returns the stored record.
	Add(ctx context.Context, userID string, lead model.Lead, score int, category string) (*model.PipelineLead, error)

	// Get returns one of the user's pipeline leads.
	Get(ctx context.Context, userID, leadID string) (*model.PipelineLead, error)

	// List returns the user's pipeline leads, newest first.
	List(ctx context.Context, userID string, filter ListFilter) ([]model.PipelineLead, error)

	// UpdateStage moves a lead to another pipeline stage and logs the
	// transition.
	UpdateStage(ctx context.Context, userID, leadID string, stage model.Stage) (*model.PipelineLead, error)

	// Update applies partial field changes.
	Update(ctx context.Context, userID, leadID string, input UpdateInput) (*model.PipelineLead, error)

	// RecordContact stamps last-contacted bookkeeping and logs the touch.
	RecordContact(ctx context.Context, userID, leadID string, method model.ContactMethod) (*model.PipelineLead, error)

	// Delete removes a lead and its activities.
	Delete(ctx context.Context, userID, leadID string) error

	// Activities returns a lead's activity log, newest first.
	Activities(ctx context.Context, userID, leadID string) ([]model.Activity, error)

	// StageCounts returns how many of the user's leads sit in each stage.
	// Stages with no leads are absent from the map.
	StageCounts(ctx context.Context, userID string) (map[model.Stage]int, error)

	// Close releases the store's resources.
	Close()
}
