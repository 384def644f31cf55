// Package sqlite implements the relational backing store for the
// identity engine over modernc.org/sqlite.
// Implements: prd003-backing-store (R3 schema, R1 Store interface);
//
//	docs/ARCHITECTURE § Backing Store.
package sqlite

// Schema DDL (prd003-backing-store R3.2). Statements use IF NOT EXISTS:
// the database file is the source of truth and survives reopening.
const (
	createObjectIDs = `CREATE TABLE IF NOT EXISTS sem_object_ids (
    smw_id INTEGER PRIMARY KEY,
    smw_title TEXT NOT NULL,
    smw_namespace INTEGER NOT NULL,
    smw_iw TEXT NOT NULL DEFAULT '',
    smw_subobject TEXT NOT NULL DEFAULT '',
    smw_sortkey TEXT NOT NULL DEFAULT '',
    smw_sort TEXT NOT NULL DEFAULT '',
    smw_hash TEXT NOT NULL,
    smw_rev INTEGER NOT NULL DEFAULT 0
);`

	createObjectAux = `CREATE TABLE IF NOT EXISTS sem_object_aux (
    smw_id INTEGER PRIMARY KEY,
    smw_seqmap BLOB,
    smw_countmap BLOB,
    smw_proptable BLOB
);`

	createRedirects = `CREATE TABLE IF NOT EXISTS sem_redirects (
    s_title TEXT NOT NULL,
    s_namespace INTEGER NOT NULL,
    o_id INTEGER NOT NULL,
    PRIMARY KEY (s_title, s_namespace)
);`

	createPropStats = `CREATE TABLE IF NOT EXISTS sem_prop_stats (
    p_id INTEGER PRIMARY KEY,
    usage_count INTEGER NOT NULL DEFAULT 0
);`

	createConceptCache = `CREATE TABLE IF NOT EXISTS sem_concept_cache (
    s_id INTEGER NOT NULL,
    o_id INTEGER NOT NULL
);`

	createSequences = `CREATE TABLE IF NOT EXISTS sequences (
    seq_name TEXT PRIMARY KEY,
    next_value INTEGER NOT NULL
);`
)

// Property tables, one per DataItem kind (prd003-backing-store R3.4).
// All are keyed by subject ID and property ID; page values hold a
// surrogate-ID foreign key, every other kind holds its literal columns.
const (
	createDiNumber = `CREATE TABLE IF NOT EXISTS sem_di_number (
    s_id INTEGER NOT NULL,
    p_id INTEGER NOT NULL,
    o_serial TEXT NOT NULL
);`

	createDiText = `CREATE TABLE IF NOT EXISTS sem_di_text (
    s_id INTEGER NOT NULL,
    p_id INTEGER NOT NULL,
    o_serial TEXT NOT NULL
);`

	createDiBoolean = `CREATE TABLE IF NOT EXISTS sem_di_boolean (
    s_id INTEGER NOT NULL,
    p_id INTEGER NOT NULL,
    o_serial TEXT NOT NULL
);`

	createDiURI = `CREATE TABLE IF NOT EXISTS sem_di_uri (
    s_id INTEGER NOT NULL,
    p_id INTEGER NOT NULL,
    o_serial TEXT NOT NULL
);`

	createDiTime = `CREATE TABLE IF NOT EXISTS sem_di_time (
    s_id INTEGER NOT NULL,
    p_id INTEGER NOT NULL,
    o_serial TEXT NOT NULL
);`

	createDiCoordinate = `CREATE TABLE IF NOT EXISTS sem_di_coordinate (
    s_id INTEGER NOT NULL,
    p_id INTEGER NOT NULL,
    o_lat TEXT NOT NULL,
    o_lon TEXT NOT NULL
);`

	createDiPage = `CREATE TABLE IF NOT EXISTS sem_di_page (
    s_id INTEGER NOT NULL,
    p_id INTEGER NOT NULL,
    o_id INTEGER NOT NULL
);`

	createDiConcept = `CREATE TABLE IF NOT EXISTS sem_di_concept (
    s_id INTEGER NOT NULL,
    p_id INTEGER NOT NULL,
    o_query TEXT NOT NULL,
    o_docu TEXT NOT NULL DEFAULT '',
    o_size INTEGER NOT NULL DEFAULT 0,
    o_depth INTEGER NOT NULL DEFAULT 0
);`
)

// Index DDL (prd003-backing-store R3.3). The unique hash index is the
// last-resort guard against two concurrent creators inserting the same
// entity reference.
const (
	idxObjectIDsHash    = `CREATE UNIQUE INDEX IF NOT EXISTS idx_object_ids_hash ON sem_object_ids(smw_hash);`
	idxObjectIDsTitle   = `CREATE INDEX IF NOT EXISTS idx_object_ids_title ON sem_object_ids(smw_title, smw_namespace);`
	idxRedirectsTarget  = `CREATE INDEX IF NOT EXISTS idx_redirects_target ON sem_redirects(o_id);`
	idxDiNumberSubject  = `CREATE INDEX IF NOT EXISTS idx_di_number_subject ON sem_di_number(s_id);`
	idxDiNumberProp     = `CREATE INDEX IF NOT EXISTS idx_di_number_prop ON sem_di_number(p_id);`
	idxDiTextSubject    = `CREATE INDEX IF NOT EXISTS idx_di_text_subject ON sem_di_text(s_id);`
	idxDiTextProp       = `CREATE INDEX IF NOT EXISTS idx_di_text_prop ON sem_di_text(p_id);`
	idxDiBooleanSubject = `CREATE INDEX IF NOT EXISTS idx_di_boolean_subject ON sem_di_boolean(s_id);`
	idxDiURISubject     = `CREATE INDEX IF NOT EXISTS idx_di_uri_subject ON sem_di_uri(s_id);`
	idxDiTimeSubject    = `CREATE INDEX IF NOT EXISTS idx_di_time_subject ON sem_di_time(s_id);`
	idxDiCoordSubject   = `CREATE INDEX IF NOT EXISTS idx_di_coordinate_subject ON sem_di_coordinate(s_id);`
	idxDiPageSubject    = `CREATE INDEX IF NOT EXISTS idx_di_page_subject ON sem_di_page(s_id);`
	idxDiPageObject     = `CREATE INDEX IF NOT EXISTS idx_di_page_object ON sem_di_page(o_id);`
	idxDiPageProp       = `CREATE INDEX IF NOT EXISTS idx_di_page_prop ON sem_di_page(p_id);`
	idxDiConceptSubject = `CREATE INDEX IF NOT EXISTS idx_di_concept_subject ON sem_di_concept(s_id);`
	idxConceptCacheSub  = `CREATE INDEX IF NOT EXISTS idx_concept_cache_subject ON sem_concept_cache(s_id);`
	idxConceptCacheObj  = `CREATE INDEX IF NOT EXISTS idx_concept_cache_object ON sem_concept_cache(o_id);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createObjectIDs,
	createObjectAux,
	createRedirects,
	createPropStats,
	createConceptCache,
	createSequences,
	createDiNumber,
	createDiText,
	createDiBoolean,
	createDiURI,
	createDiTime,
	createDiCoordinate,
	createDiPage,
	createDiConcept,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxObjectIDsHash,
	idxObjectIDsTitle,
	idxRedirectsTarget,
	idxDiNumberSubject,
	idxDiNumberProp,
	idxDiTextSubject,
	idxDiTextProp,
	idxDiBooleanSubject,
	idxDiURISubject,
	idxDiTimeSubject,
	idxDiCoordSubject,
	idxDiPageSubject,
	idxDiPageObject,
	idxDiPageProp,
	idxDiConceptSubject,
	idxConceptCacheSub,
	idxConceptCacheObj,
}
