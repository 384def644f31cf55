package engine

import (
	"fmt"
	"log/slog"

	"github.com/mesh-intelligence/semid/pkg/types"
)

// IdChanger transactionally migrates a surrogate ID, and every row
// referencing it, to a new ID. Used for page moves and merges.
// Implements: prd009-id-migration.
type IdChanger struct {
	store  types.Store
	cache  *IdCacheManager
	jobs   types.JobQueue
	logger *slog.Logger
}

// fkColumn is one foreign-key column holding surrogate IDs. requiredNS
// constrains which entity namespaces may legally appear in the column;
// nsAny means unconstrained.
type fkColumn struct {
	table      string
	column     string
	requiredNS int
}

const nsAny = -1

// fkColumns lists every column, across every property table and the
// concept cache, that references the primary ID table in either the
// subject or the object/property role.
var fkColumns = func() []fkColumn {
	cols := []fkColumn{
		{tableConceptCache, "s_id", types.NamespaceConcept},
		{tableConceptCache, "o_id", nsAny},
		{tableRedirects, "o_id", nsAny},
		{tablePropStats, "p_id", types.NamespaceProperty},
	}
	for _, t := range PropertyTables() {
		cols = append(cols,
			fkColumn{t.Name, "s_id", nsAny},
			fkColumn{t.Name, "p_id", types.NamespaceProperty},
		)
		if t.Kind == types.KindPage {
			cols = append(cols, fkColumn{t.Name, "o_id", nsAny})
		}
	}
	return cols
}()

// NewIdChanger wires a changer.
func NewIdChanger(store types.Store, cache *IdCacheManager, jobs types.JobQueue, logger *slog.Logger) *IdChanger {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdChanger{store: store, cache: cache, jobs: jobs, logger: logger}
}

// Move migrates curID to targetID inside one transaction: the current
// row is copied under the new ID, the old row deleted, and every
// referencing column rewritten. targetID 0 allocates the next sequence
// value. Returns the moved record, or nil when curID does not exist.
// After the transaction commits, a full update of the moved entity is
// scheduled asynchronously.
func (c *IdChanger) Move(curID, targetID int64) (*types.SurrogateRecord, error) {
	row, err := c.store.SelectRow(tableObjectIDs, objectIDColumns, map[string]any{"smw_id": curID})
	if err == types.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read row %d for move: %w", curID, err)
	}
	rec := recordFromRow(row)

	err = c.store.Atomic(func(tx types.Store) error {
		if targetID == 0 {
			targetID, err = tx.NextSequenceValue(types.SequenceEntityID)
			if err != nil {
				return err
			}
		}

		// The unique hash index forbids two rows with the same hash, so
		// the old row goes before the copy comes.
		if err := tx.Delete(tableObjectIDs, map[string]any{"smw_id": curID}); err != nil {
			return err
		}
		if err := tx.Insert(tableObjectIDs, types.Row{
			"smw_id":        targetID,
			"smw_title":     rec.Reference.Title,
			"smw_namespace": rec.Reference.Namespace,
			"smw_iw":        rec.Reference.Interwiki,
			"smw_subobject": rec.Reference.Subobject,
			"smw_sortkey":   rec.Sortkey,
			"smw_sort":      rec.Sort,
			"smw_hash":      rec.ContentHash,
			"smw_rev":       rec.Revision,
		}); err != nil {
			return err
		}

		// Aux blobs move with the identity.
		if err := tx.Update(tableObjectAux, types.Row{"smw_id": targetID},
			map[string]any{"smw_id": curID}); err != nil {
			return err
		}

		return c.changeIn(tx, curID, targetID, rec.Reference.Namespace)
	})
	if err != nil {
		return nil, fmt.Errorf("move %d to %d: %w", curID, targetID, err)
	}

	c.cache.DeleteCache(rec.Reference)
	c.cache.DeleteLookup(curID)
	c.cache.DeleteLookup(targetID)

	c.jobs.Enqueue(types.Job{
		Kind:   types.JobEntityUpdate,
		Params: map[string]any{"id": targetID},
	})

	rec.ID = targetID
	return &rec, nil
}

// Change rewrites every foreign-key reference from curID to targetID
// without touching the primary row, for narrower remaps. newNamespace is
// the namespace of the identity now holding targetID; rows in columns
// whose namespace constraint it violates are deleted instead of
// migrated.
func (c *IdChanger) Change(curID, targetID int64, newNamespace int) error {
	err := c.store.Atomic(func(tx types.Store) error {
		return c.changeIn(tx, curID, targetID, newNamespace)
	})
	if err != nil {
		return fmt.Errorf("change %d to %d: %w", curID, targetID, err)
	}
	c.cache.DeleteLookup(curID)
	c.cache.DeleteLookup(targetID)
	return nil
}

func (c *IdChanger) changeIn(tx types.Store, curID, targetID int64, newNamespace int) error {
	for _, fk := range fkColumns {
		if fk.requiredNS != nsAny && fk.requiredNS != newNamespace {
			if err := tx.Delete(fk.table, map[string]any{fk.column: curID}); err != nil {
				return fmt.Errorf("drop %s.%s rows: %w", fk.table, fk.column, err)
			}
			continue
		}
		if err := tx.Update(fk.table, types.Row{fk.column: targetID},
			map[string]any{fk.column: curID}); err != nil {
			return fmt.Errorf("rewrite %s.%s: %w", fk.table, fk.column, err)
		}
	}
	return nil
}

// Dispose removes an entity and everything referencing it: the primary
// row, aux blobs, redirect entries, statistics, and all property rows in
// both subject and object roles. Used by explicit maintenance only.
func (c *IdChanger) Dispose(id int64) error {
	row, err := c.store.SelectRow(tableObjectIDs, objectIDColumns, map[string]any{"smw_id": id})
	if err == types.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read row %d for disposal: %w", id, err)
	}
	rec := recordFromRow(row)

	err = c.store.Atomic(func(tx types.Store) error {
		for _, fk := range fkColumns {
			if err := tx.Delete(fk.table, map[string]any{fk.column: id}); err != nil {
				return fmt.Errorf("drop %s.%s rows: %w", fk.table, fk.column, err)
			}
		}
		if err := tx.Delete(tableObjectAux, map[string]any{"smw_id": id}); err != nil {
			return err
		}
		if err := tx.Delete(tableRedirects, map[string]any{
			"s_title":     rec.Reference.Title,
			"s_namespace": rec.Reference.Namespace,
		}); err != nil {
			return err
		}
		return tx.Delete(tableObjectIDs, map[string]any{"smw_id": id})
	})
	if err != nil {
		return fmt.Errorf("dispose %d: %w", id, err)
	}

	c.cache.DeleteCache(rec.Reference)
	c.cache.DeleteLookup(id)
	c.logger.Info("disposed entity", "id", id, "entity", rec.Reference.String())
	return nil
}
