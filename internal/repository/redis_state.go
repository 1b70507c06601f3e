package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"OrdreBook/internal/domain/models"
	domrepo "OrdreBook/internal/domain/repository"
	"OrdreBook/pkg/cache"
)

// StateStore keeps the risk baseline and the latest decision per symbol in
// a cache.Service (Redis in production, memory in tests and when Redis is off).
type StateStore struct {
	cache cache.Service
	ttl   time.Duration
}

var (
	_ domrepo.BaselineStore = (*StateStore)(nil)
	_ domrepo.DecisionCache = (*StateStore)(nil)
)

// NewStateStore builds the store. ttl applies to decisions only; the
// baseline never expires.
func NewStateStore(c cache.Service, ttl time.Duration) *StateStore {
	return &StateStore{cache: c, ttl: ttl}
}

type baselineEntry struct {
	Balance float64   `json:"balance"`
	SavedAt time.Time `json:"saved_at"`
}

func (s *StateStore) LoadBaseline(ctx context.Context, quoteAsset string) (float64, bool, error) {
	var e baselineEntry
	if err := s.cache.Get(ctx, baselineKey(quoteAsset), &e); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("load baseline: %w", err)
	}
	return e.Balance, true, nil
}

func (s *StateStore) SaveBaseline(ctx context.Context, quoteAsset string, balance float64) error {
	if err := s.cache.Set(ctx, baselineKey(quoteAsset), baselineEntry{Balance: balance, SavedAt: time.Now().UTC()}, 0); err != nil {
		return fmt.Errorf("save baseline: %w", err)
	}
	return nil
}

func (s *StateStore) SetLatest(ctx context.Context, d models.Decision) error {
	if err := s.cache.Set(ctx, decisionKey(d.Symbol), d, s.ttl); err != nil {
		return fmt.Errorf("cache decision: %w", err)
	}
	return nil
}

func (s *StateStore) GetLatest(ctx context.Context, symbol string) (models.Decision, bool, error) {
	var d models.Decision
	if err := s.cache.Get(ctx, decisionKey(symbol), &d); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return models.Decision{}, false, nil
		}
		return models.Decision{}, false, fmt.Errorf("get decision: %w", err)
	}
	return d, true, nil
}

func baselineKey(asset string) string  { return "baseline:" + strings.ToUpper(asset) }
func decisionKey(symbol string) string { return "decision:" + strings.ToUpper(symbol) }
