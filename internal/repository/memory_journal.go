package repository

import (
	"context"
	"strings"
	"sync"

	"OrdreBook/internal/domain/models"
	domrepo "OrdreBook/internal/domain/repository"
)

const defaultMemoryJournalSize = 1000

// MemoryJournal keeps the most recent executions in process. Used when
// ClickHouse is disabled; decisions are not kept.
type MemoryJournal struct {
	mu      sync.RWMutex
	max     int
	records []models.ExecutionRecord
}

var (
	_ domrepo.Journal          = (*MemoryJournal)(nil)
	_ domrepo.ExecutionHistory = (*MemoryJournal)(nil)
)

func NewMemoryJournal(max int) *MemoryJournal {
	if max <= 0 {
		max = defaultMemoryJournalSize
	}
	return &MemoryJournal{max: max}
}

func (j *MemoryJournal) RecordDecision(context.Context, models.Decision) error { return nil }

func (j *MemoryJournal) RecordExecution(_ context.Context, r models.ExecutionRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, r)
	if over := len(j.records) - j.max; over > 0 {
		j.records = append(j.records[:0], j.records[over:]...)
	}
	return nil
}

// RecentExecutions returns the newest records for symbol, newest first.
func (j *MemoryJournal) RecentExecutions(_ context.Context, symbol string, limit int) ([]models.ExecutionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make([]models.ExecutionRecord, 0, min(limit, len(j.records)))
	for i := len(j.records) - 1; i >= 0 && len(out) < limit; i-- {
		if strings.EqualFold(j.records[i].Symbol, symbol) {
			out = append(out, j.records[i])
		}
	}
	return out, nil
}
