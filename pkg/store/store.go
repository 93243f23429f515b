// Package store archives resolution runs for later inspection.
//
// A run record pairs the resolved document with the report of the run that
// produced it. The package ships a MongoDB-backed store for server
// deployments, a file-backed store for CLI use, and an in-memory store for
// tests and single-process use.
package store

import (
	"context"
	"time"

	"github.com/kholzweiler/planfreeze/pkg/engine"
	"github.com/kholzweiler/planfreeze/pkg/model"
)

// Run is one archived resolution run.
type Run struct {
	ID        string         `json:"id" bson:"_id"`
	CreatedAt time.Time      `json:"created_at" bson:"created_at"`
	Document  model.Document `json:"document" bson:"document"`
	Report    engine.Report  `json:"report" bson:"report"`
}

// Summary is the listing view of an archived run.
type Summary struct {
	ID         string        `json:"id" bson:"_id"`
	CreatedAt  time.Time     `json:"created_at" bson:"created_at"`
	Reason     engine.Reason `json:"reason" bson:"reason"`
	Iterations int           `json:"iterations" bson:"iterations"`
	Elements   int           `json:"elements" bson:"elements"`
}

// Summarize builds the listing view of a run.
func Summarize(r *Run) Summary {
	return Summary{
		ID:         r.ID,
		CreatedAt:  r.CreatedAt,
		Reason:     r.Report.Reason,
		Iterations: r.Report.Iterations,
		Elements:   len(r.Document.Elements),
	}
}

// Store is the archive interface shared by all backends.
type Store interface {
	// Put archives a run, replacing any run with the same id.
	Put(ctx context.Context, run *Run) error

	// Get fetches a run by id. Missing runs return an error with code
	// RUN_NOT_FOUND.
	Get(ctx context.Context, id string) (*Run, error)

	// List returns the most recent runs, newest first.
	List(ctx context.Context, limit int) ([]Summary, error)

	// Close releases backend resources.
	Close(ctx context.Context) error
}
