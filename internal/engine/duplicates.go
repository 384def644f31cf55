package engine

import (
	"fmt"

	"github.com/mesh-intelligence/semid/pkg/types"
)

// DuplicateFinder reports surrogate rows that collide on the same
// entity-reference columns. Such rows should not exist while the unique
// hash index holds; the finder is the audit tool for stores that
// predate the index or suffered hash corruption.
// Implements: prd001-entity-identity R5.
type DuplicateFinder struct {
	store types.Store
}

// DuplicateReport is one group of colliding rows.
type DuplicateReport struct {
	Count     int64
	Title     string
	Namespace int
	Interwiki string
	Subobject string
}

// NewDuplicateFinder wires a finder.
func NewDuplicateFinder(store types.Store) *DuplicateFinder {
	return &DuplicateFinder{store: store}
}

// FindDuplicates returns every reference-column group holding more than
// one row, ordered by descending count.
func (d *DuplicateFinder) FindDuplicates() ([]DuplicateReport, error) {
	rows, err := d.store.Select(tableObjectIDs,
		[]string{"COUNT(*) AS n", "smw_title", "smw_namespace", "smw_iw", "smw_subobject"},
		nil,
		&types.SelectOptions{
			GroupBy: "smw_title, smw_namespace, smw_iw, smw_subobject",
			Having:  "COUNT(*) > 1",
			OrderBy: "n DESC",
		})
	if err != nil {
		return nil, fmt.Errorf("find duplicates: %w", err)
	}

	reports := make([]DuplicateReport, 0, len(rows))
	for _, row := range rows {
		reports = append(reports, DuplicateReport{
			Count:     row.Int64("n"),
			Title:     row.String("smw_title"),
			Namespace: int(row.Int64("smw_namespace")),
			Interwiki: row.String("smw_iw"),
			Subobject: row.String("smw_subobject"),
		})
	}
	return reports, nil
}

// IsUnique reports whether at most one active row exists for the
// reference. Rows carrying sentinel markers are excluded from the
// uniqueness invariant.
func (d *DuplicateFinder) IsUnique(ref types.EntityReference) (bool, error) {
	if types.IsSentinelInterwiki(ref.Interwiki) {
		return true, nil
	}
	rows, err := d.store.Select(tableObjectIDs, []string{"smw_id"}, refConds(ref),
		&types.SelectOptions{Limit: 2})
	if err != nil {
		return false, fmt.Errorf("uniqueness check for %v: %w", ref, err)
	}
	return len(rows) <= 1, nil
}
