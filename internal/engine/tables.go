// Package engine implements the entity identity resolution and caching
// core: surrogate-ID lookup and creation, redirect resolution, cache
// warm-up, sequence maps, ID migration, and the semantic-data cache
// tiers.
// Implements: prd001-entity-identity, prd004-cache-layer,
//
//	prd007-sequence-maps, prd008-semantic-data;
//	docs/ARCHITECTURE § Identity Engine.
package engine

import (
	"fmt"
	"strconv"

	"github.com/mesh-intelligence/semid/pkg/types"
)

// Table names of the identity core.
const (
	tableObjectIDs    = "sem_object_ids"
	tableObjectAux    = "sem_object_aux"
	tableRedirects    = "sem_redirects"
	tablePropStats    = "sem_prop_stats"
	tableConceptCache = "sem_concept_cache"
)

// objectIDColumns is the fixed column projection for surrogate reads.
var objectIDColumns = []string{
	"smw_id", "smw_title", "smw_namespace", "smw_iw",
	"smw_subobject", "smw_sortkey", "smw_sort", "smw_hash", "smw_rev",
}

// PropertyTable describes one per-kind value table: its name and the
// columns holding the dbkey tuple, in tuple order. Page values store a
// surrogate-ID foreign key instead of literal columns and are resolved
// through the ID cache on read.
type PropertyTable struct {
	Name         string
	Kind         types.DataKind
	ValueColumns []string
}

// propertyTables lists every value table, one per DataItem kind. The
// dispatch from kind to table is fixed at startup.
var propertyTables = []PropertyTable{
	{Name: "sem_di_number", Kind: types.KindNumber, ValueColumns: []string{"o_serial"}},
	{Name: "sem_di_text", Kind: types.KindText, ValueColumns: []string{"o_serial"}},
	{Name: "sem_di_boolean", Kind: types.KindBoolean, ValueColumns: []string{"o_serial"}},
	{Name: "sem_di_uri", Kind: types.KindURI, ValueColumns: []string{"o_serial"}},
	{Name: "sem_di_time", Kind: types.KindTime, ValueColumns: []string{"o_serial"}},
	{Name: "sem_di_coordinate", Kind: types.KindCoordinate, ValueColumns: []string{"o_lat", "o_lon"}},
	{Name: "sem_di_page", Kind: types.KindPage, ValueColumns: []string{"o_id"}},
	{Name: "sem_di_concept", Kind: types.KindConcept, ValueColumns: []string{"o_query", "o_docu", "o_size", "o_depth"}},
}

var tablesByKind = func() map[types.DataKind]PropertyTable {
	m := make(map[types.DataKind]PropertyTable, len(propertyTables))
	for _, t := range propertyTables {
		m[t.Kind] = t
	}
	return m
}()

var tablesByName = func() map[string]PropertyTable {
	m := make(map[string]PropertyTable, len(propertyTables))
	for _, t := range propertyTables {
		m[t.Name] = t
	}
	return m
}()

// TableForKind returns the value table holding items of the given kind.
func TableForKind(kind types.DataKind) (PropertyTable, bool) {
	t, ok := tablesByKind[kind]
	return t, ok
}

// TableByName returns the value table with the given name.
func TableByName(name string) (PropertyTable, bool) {
	t, ok := tablesByName[name]
	return t, ok
}

// PropertyTables returns all value tables.
func PropertyTables() []PropertyTable {
	return propertyTables
}

// rowTuple extracts the dbkey tuple from a value-table row. Integer
// columns render in decimal, matching the DataItem codecs.
func (t PropertyTable) rowTuple(row types.Row) []string {
	tuple := make([]string, len(t.ValueColumns))
	for i, col := range t.ValueColumns {
		switch v := row[col].(type) {
		case string:
			tuple[i] = v
		case int64:
			tuple[i] = strconv.FormatInt(v, 10)
		case []byte:
			tuple[i] = string(v)
		default:
			tuple[i] = fmt.Sprintf("%v", v)
		}
	}
	return tuple
}

// tupleRow renders a dbkey tuple into the table's column values, the
// inverse of rowTuple for literal tables. Integer columns are parsed
// back; a tuple that does not fit the table shape is a malformed-keys
// error.
func (t PropertyTable) tupleRow(tuple []string) (types.Row, error) {
	if len(tuple) != len(t.ValueColumns) {
		return nil, types.ErrMalformedKeys
	}
	row := make(types.Row, len(tuple))
	for i, col := range t.ValueColumns {
		switch col {
		case "o_id", "o_size", "o_depth":
			n, err := strconv.ParseInt(tuple[i], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: column %s: %v", types.ErrMalformedKeys, col, err)
			}
			row[col] = n
		default:
			row[col] = tuple[i]
		}
	}
	return row, nil
}
