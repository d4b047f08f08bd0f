// Package reports keeps the issues a user files from the report view.
package reports

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pixiworld/pixiworld/internal/store"
	"github.com/pixiworld/pixiworld/internal/types"
)

const slotKey = "pixiworld:reports"

// ErrEmptyDescription is returned for a blank report.
var ErrEmptyDescription = errors.New("report description is empty")

type Service struct {
	reports *store.Slot[types.Report]
	log     *slog.Logger
	now     func() time.Time
}

// New creates a report service. A nil now uses time.Now.
func New(backend store.Backend, logger *slog.Logger, now func() time.Time) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if now == nil {
		now = time.Now
	}
	slot := store.NewSlot[types.Report](backend, slotKey, logger).
		WithValidator(func(r types.Report) error {
			if r.ID == "" {
				return errors.New("missing id")
			}
			return nil
		})
	return &Service{reports: slot, log: logger.With("component", "reports"), now: now}
}

// Submit appends a report with id "r-<unixms>".
func (s *Service) Submit(kind, description string) (types.Report, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return types.Report{}, ErrEmptyDescription
	}
	at := s.now().UTC()
	r := types.Report{
		ID:          fmt.Sprintf("r-%d", at.UnixMilli()),
		Type:        strings.TrimSpace(kind),
		Description: description,
		CreatedAt:   at,
	}
	if err := s.reports.WriteAll(append(s.reports.ReadAll(), r)); err != nil {
		return types.Report{}, err
	}
	s.log.Info("report submitted", "id", r.ID, "type", r.Type)
	return r, nil
}

// List returns the stored reports, oldest first.
func (s *Service) List() []types.Report {
	return s.reports.ReadAll()
}
