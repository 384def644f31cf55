package types

// Collator is the sort-key service contract. SortKey output is already
// armored into a printable, order-preserving alphabet; raw collation
// bytes never cross this boundary.
// Implements: prd005-collation R1.
type Collator interface {
	// SortKey derives the stored sort field from display text.
	SortKey(text string) string

	// IsIdentical reports whether two stored sort keys collate equal, so
	// a sortkey change that does not affect ordering can skip the write.
	IsIdentical(oldKey, newKey string) bool

	// FirstLetter returns the grouping letter for alphabetic indexes.
	FirstLetter(text string) string
}
