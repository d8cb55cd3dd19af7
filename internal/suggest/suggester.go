// Package suggest proposes a category for new statement descriptions by
// nearest-neighbor search over descriptions already categorized in the
// ledger.
package suggest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"

	"homeledger/internal/storage"
)

// Suggester holds an in-memory snapshot of categorized descriptions and
// answers lookups against it. Retrain refreshes the snapshot; Predict is
// safe for concurrent use.
type Suggester struct {
	store *storage.Store

	mu      sync.RWMutex
	samples []storage.CategorizedDescription
}

func NewSuggester(store *storage.Store) *Suggester {
	return &Suggester{store: store}
}

// Retrain reloads the snapshot from every statement line whose linked
// transaction has a categorized split.
func (s *Suggester) Retrain(ctx context.Context) error {
	samples, err := s.store.Queries().ListCategorizedDescriptions(ctx)
	if err != nil {
		return fmt.Errorf("retrain suggester: %w", err)
	}

	s.mu.Lock()
	s.samples = samples
	s.mu.Unlock()

	slog.DebugContext(ctx, "Retrained category suggester", "samples", len(samples))
	return nil
}

// Predict returns the category of the known description nearest to
// description by edit distance. ok is false when nothing has been learned
// yet or the best match is further than half the description's length,
// which in practice means an unrelated merchant.
func (s *Suggester) Predict(description string) (categoryID int64, ok bool) {
	needle := normalize(description)
	if needle == "" {
		return 0, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	best := -1
	for _, sample := range s.samples {
		d := levenshtein.ComputeDistance(needle, normalize(sample.Description))
		if best < 0 || d < best {
			best = d
			categoryID = sample.CategoryID
		}
	}
	if best < 0 || best > len(needle)/2 {
		return 0, false
	}
	return categoryID, true
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
