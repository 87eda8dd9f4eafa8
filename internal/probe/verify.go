package probe

import (
	"errors"
	"fmt"
	"strings"

	"github.com/okian/aidfeed/internal/domain/merge"
	"github.com/okian/aidfeed/internal/domain/model"
)

// Verification failures.
var (
	ErrUnhealthy   = errors.New("service unhealthy")
	ErrDuplicateID = errors.New("duplicate listing")
	ErrUnnamed     = errors.New("listing without name")
	ErrUnsorted    = errors.New("listings not sorted by priority and amount")
	ErrFirstEvent  = errors.New("first stream event is not the connected status")
)

// Verify checks the invariants every served feed must hold: no two listings
// share an id or dedup key, every listing is named, and the order matches
// the merge sort.
func Verify(listings []model.Listing) error {
	ids := make(map[string]struct{}, len(listings))
	keys := make(map[string]struct{}, len(listings))
	for i := range listings {
		l := &listings[i]
		if strings.TrimSpace(l.Name) == "" {
			return fmt.Errorf("%w: index %d", ErrUnnamed, i)
		}
		if _, ok := ids[l.ID]; ok {
			return fmt.Errorf("%w: id %s", ErrDuplicateID, l.ID)
		}
		ids[l.ID] = struct{}{}
		k := l.DedupKey()
		if _, ok := keys[k]; ok {
			return fmt.Errorf("%w: %s / %s", ErrDuplicateID, l.Name, l.Provider)
		}
		keys[k] = struct{}{}
	}

	sorted := make([]model.Listing, len(listings))
	copy(sorted, listings)
	merge.Sort(sorted)
	for i := range sorted {
		if sorted[i].ID != listings[i].ID {
			return fmt.Errorf("%w: position %d holds %q, expected %q", ErrUnsorted, i, listings[i].Name, sorted[i].Name)
		}
	}
	return nil
}
