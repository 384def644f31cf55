package types

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
)

// Well-known namespaces. The surrounding wiki platform defines many more;
// the identity engine only needs to distinguish these three.
// Implements: prd001-entity-identity R1.
const (
	NamespaceMain     = 0
	NamespaceProperty = 102
	NamespaceConcept  = 108
)

// Distinguished interwiki sentinels. A surrogate row carrying one of these
// markers holds no data of its own and is excluded from the one-active-row
// uniqueness invariant.
// Implements: prd001-entity-identity R2.
const (
	IWRedirect = ":semid-redi"
	IWDeleted  = ":semid-delete"
	IWOutdated = ":semid-outdated"
	IWBorder   = ":semid-border"
)

// sentinelInterwikis is the set of interwiki markers that denote a
// non-active row.
var sentinelInterwikis = map[string]bool{
	IWRedirect: true,
	IWDeleted:  true,
	IWOutdated: true,
	IWBorder:   true,
}

// IsSentinelInterwiki reports whether iw is one of the distinguished
// non-active markers.
func IsSentinelInterwiki(iw string) bool {
	return sentinelInterwikis[iw]
}

// Reference errors (prd001-entity-identity R7.1).
var (
	ErrInvalidReference = errors.New("invalid entity reference")
)

// EntityReference is the four-part identity of anything the store can name.
// It is an immutable value; two references denote the same entity iff all
// four fields are equal. The SHA-1 content hash over the four fields is the
// canonical cache and lookup key.
// Implements: prd001-entity-identity R1.
type EntityReference struct {
	Title     string // DB-key form of the page title (required, non-empty).
	Namespace int    // Numeric namespace of the title.
	Interwiki string // Foreign-wiki prefix or a distinguished sentinel; "" for local.
	Subobject string // Sub-entity name; "" for the page itself.
}

// Valid reports whether the reference names an entity at all.
func (r EntityReference) Valid() bool {
	return r.Title != ""
}

// Hash returns the canonical content hash of the reference. It is a pure
// function of the four identity fields: equal references always hash equal.
// Implements: prd001-entity-identity R3.1.
func (r EntityReference) Hash() string {
	return ComputeHash(r.Title, r.Namespace, r.Interwiki, r.Subobject)
}

// ComputeHash is the canonical hashing function for entity references.
// The field separator cannot occur in a namespace number, which keeps the
// encoding unambiguous.
// Implements: prd001-entity-identity R3.1.
func ComputeHash(title string, namespace int, interwiki, subobject string) string {
	h := sha1.Sum(fmt.Appendf(nil, "%s#%d#%s#%s", title, namespace, interwiki, subobject))
	return hex.EncodeToString(h[:])
}

// Base returns the reference with the subobject stripped, i.e. the page
// that contains this sub-entity. For a page reference Base returns the
// receiver unchanged.
func (r EntityReference) Base() EntityReference {
	r.Subobject = ""
	return r
}

// WithInterwiki returns a copy of the reference carrying the given
// interwiki marker.
func (r EntityReference) WithInterwiki(iw string) EntityReference {
	r.Interwiki = iw
	return r
}

// String renders the reference for logs and error messages.
func (r EntityReference) String() string {
	s := fmt.Sprintf("%d:%s", r.Namespace, r.Title)
	if r.Interwiki != "" {
		s = r.Interwiki + ":" + s
	}
	if r.Subobject != "" {
		s += "#" + r.Subobject
	}
	return s
}
