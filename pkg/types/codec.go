package types

// MapCodec compresses sequence and count maps into the blob form stored
// in the auxiliary table.
// Implements: prd007-sequence-maps R2.
type MapCodec interface {
	Compress(v any) ([]byte, error)

	// Uncompress decodes into v, which must be a pointer.
	Uncompress(data []byte, v any) error
}
