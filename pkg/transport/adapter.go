// Package transport hands serialized workflow documents to the delivery
// layer that forwards them to the workflow manager's edits queue.
package transport

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/ravi-parthasarathy/forge/pkg/workflow"
)

// Submission identifies one delivery of a document.
type Submission struct {
	ID      uuid.UUID
	Name    string
	Version string
	Digest  string
}

// NewSubmission identifies doc with a fresh random id.
func NewSubmission(doc workflow.Document) Submission {
	return Submission{
		ID:      uuid.New(),
		Name:    doc.Name(),
		Version: doc.Version(),
		Digest:  doc.Digest(),
	}
}

// Adapter delivers a document's bytes. Implementations must not retain or
// modify payload after returning.
type Adapter interface {
	Deliver(ctx context.Context, sub Submission, payload []byte) error
}

// Submit delivers doc through a and returns the submission it used.
func Submit(ctx context.Context, a Adapter, doc workflow.Document) (Submission, error) {
	sub := NewSubmission(doc)
	if err := a.Deliver(ctx, sub, doc.Bytes()); err != nil {
		return sub, fmt.Errorf("submit %s@%s: %w", sub.Name, sub.Version, err)
	}
	return sub, nil
}

// WriterAdapter writes the payload followed by a newline. Useful for dry runs
// and piping into other tools.
type WriterAdapter struct {
	W io.Writer
}

func (a *WriterAdapter) Deliver(ctx context.Context, _ Submission, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := a.W.Write(append(append([]byte(nil), payload...), '\n')); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}
