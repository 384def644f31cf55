// Package types defines the entity reference and surrogate record value
// types, the DataItem variant, collaborator interfaces (Store, Cache,
// Collator, JobQueue, MapCodec), and standard errors for the semid
// identity engine.
// Implements: prd001-entity-identity (Config, EntityReference, errors).
// See docs/ARCHITECTURE.md § Main Interface.
package types
