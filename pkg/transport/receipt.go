package transport

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// Receipt records a successful delivery.
type Receipt struct {
	SubmissionID uuid.UUID `json:"submission_id"`
	Name         string    `json:"name"`
	Version      string    `json:"version"`
	Digest       string    `json:"digest"`
	Bytes        int       `json:"bytes"`
	Destination  string    `json:"destination"`
	DeliveredAt  time.Time `json:"delivered_at"`
}

// NewReceipt builds a receipt for sub delivered to dest.
func NewReceipt(sub Submission, size int, dest string, at time.Time) Receipt {
	return Receipt{
		SubmissionID: sub.ID,
		Name:         sub.Name,
		Version:      sub.Version,
		Digest:       sub.Digest,
		Bytes:        size,
		Destination:  dest,
		DeliveredAt:  at.UTC(),
	}
}

// SaveReceipt writes r as indented JSON.
func SaveReceipt(path string, r Receipt) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("receipt marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("receipt write: %w", err)
	}
	return nil
}

// LoadReceipt reads a receipt written by SaveReceipt.
func LoadReceipt(path string) (Receipt, error) {
	var r Receipt
	data, err := os.ReadFile(path)
	if err != nil {
		return r, fmt.Errorf("receipt read: %w", err)
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("receipt unmarshal: %w", err)
	}
	return r, nil
}
