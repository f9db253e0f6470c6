package patient

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// Create persists a new record and fills in its ID and timestamps.
	Create(ctx context.Context, r *Record) error

	// GetByID returns ErrRecordNotFound if no record has the id.
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)

	// Overwrite replaces every column of the record with r.ID.
	Overwrite(ctx context.Context, r *Record) error

	// Delete removes the record permanently. Returns ErrRecordNotFound if absent.
	Delete(ctx context.Context, id uuid.UUID) error

	List(ctx context.Context, q ListQuery) ([]Record, error)

	// FindBy returns the records whose field equals value, oldest first.
	FindBy(ctx context.Context, field Field, value string) ([]Record, error)

	// Numbers returns every outpatient and registration number issued so far.
	Numbers(ctx context.Context) (outpatient, registration []string, err error)

	// Count counts records created at or after since; nil counts all.
	Count(ctx context.Context, since *time.Time) (int64, error)
}
