package types

// BorderID marks the upper bound of the reserved ID range. Surrogate IDs
// at or below BorderID belong to predefined entities and are never handed
// out by the sequence; the row with ID == BorderID is a sentinel carrying
// the IWBorder marker.
// Implements: prd001-entity-identity R4.
const BorderID int64 = 50

// Predefined property keys. These are built-in properties whose surrogate
// IDs are fixed at compile time and never touch the backing store.
const (
	PropTypeKey         = "_TYPE"
	PropURIKey          = "_URI"
	PropInstanceKey     = "_INST"
	PropUnitKey         = "_UNIT"
	PropDisplayUnitKey  = "_CONV"
	PropAllowsValueKey  = "_PVAL"
	PropRedirectKey     = "_REDI"
	PropSubPropertyKey  = "_SUBP"
	PropSubCategoryKey  = "_SUBC"
	PropConceptKey      = "_CONC"
	PropModifiedDateKey = "_MDAT"
	PropCreatedDateKey  = "_CDAT"
	PropLastEditorKey   = "_LEDT"
	PropSortKey         = "_SKEY"
	PropAskKey          = "_ASK"
)

// predefinedIDs maps predefined property keys to their fixed surrogate
// IDs. All values are <= BorderID.
var predefinedIDs = map[string]int64{
	PropTypeKey:         1,
	PropURIKey:          2,
	PropInstanceKey:     4,
	PropUnitKey:         7,
	PropDisplayUnitKey:  12,
	PropAllowsValueKey:  14,
	PropRedirectKey:     15,
	PropSubPropertyKey:  17,
	PropSubCategoryKey:  18,
	PropConceptKey:      19,
	PropModifiedDateKey: 28,
	PropCreatedDateKey:  29,
	PropLastEditorKey:   31,
	PropSortKey:         32,
	PropAskKey:          33,
}

// predefinedLabels maps user-facing property labels to their internal
// keys, used to normalize a user-entered reference before lookup.
var predefinedLabels = map[string]string{
	"Has_type":          PropTypeKey,
	"Equivalent_URI":    PropURIKey,
	"Display_units":     PropDisplayUnitKey,
	"Allows_value":      PropAllowsValueKey,
	"Subproperty_of":    PropSubPropertyKey,
	"Subcategory_of":    PropSubCategoryKey,
	"Modification_date": PropModifiedDateKey,
	"Creation_date":     PropCreatedDateKey,
	"Last_editor_is":    PropLastEditorKey,
}

// PredefinedID returns the fixed surrogate ID for a predefined property
// reference. Only plain property-namespace references (no interwiki, no
// subobject) can be predefined.
// Implements: prd001-entity-identity R4.1.
func PredefinedID(r EntityReference) (int64, bool) {
	if r.Namespace != NamespaceProperty || r.Interwiki != "" || r.Subobject != "" {
		return 0, false
	}
	id, ok := predefinedIDs[r.Title]
	return id, ok
}

// NormalizePropertyLabel resolves a user-entered property label to its
// internal key. Unknown labels pass through unchanged.
func NormalizePropertyLabel(title string) string {
	if key, ok := predefinedLabels[title]; ok {
		return key
	}
	return title
}

// SurrogateRecord is one row of the primary ID table: the stable integer
// key for an entity reference plus its sort and hash metadata.
// Implements: prd001-entity-identity R2.
type SurrogateRecord struct {
	ID          int64           // Surrogate key, > 0.
	Reference   EntityReference // The four-part identity.
	Sortkey     string          // Display sort text, defaults to the title.
	Sort        string          // Armored collation key derived from Sortkey.
	ContentHash string          // Hash of Reference; repaired asynchronously when stale.
	Revision    int64           // Associated wiki revision, 0 when unknown.

	// TableHashes and SeqMap are loaded on demand; nil means "not loaded",
	// not "empty".
	TableHashes map[string]string
	SeqMap      SequenceMap
}

// SequenceMap records, per property key, the original insertion order of
// a multi-valued property's value hashes. It compensates for the backing
// store's lack of guaranteed row order.
type SequenceMap map[string][]string

// CountMap records, per property key, the number of stored values.
type CountMap map[string]int

// Position returns the ordinal of a value hash within the property's
// stored order, or -1 when the hash is not mapped.
func (m SequenceMap) Position(property, valueHash string) int {
	for i, h := range m[property] {
		if h == valueHash {
			return i
		}
	}
	return -1
}
