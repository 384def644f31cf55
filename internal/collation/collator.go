// Package collation implements the sort-key service over x/text
// collation tables.
// Implements: prd005-collation; docs/ARCHITECTURE § Collation.
package collation

import (
	"encoding/hex"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/mesh-intelligence/semid/pkg/types"
)

// Collator derives armored sort keys from display text using the
// collation table for one language. Raw collation keys are binary; they
// are hex-armored before leaving this package so the store can hold and
// ORDER BY them as plain text. Hex preserves byte order, so ordering
// over the armored form equals ordering over the raw keys.
type Collator struct {
	mu  sync.Mutex // collate.Collator is not safe for concurrent use.
	col *collate.Collator
	buf collate.Buffer
}

// New creates a Collator for the given BCP-47 language tag. An
// unparsable tag falls back to und (the root collation).
func New(lang string) *Collator {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.Und
	}
	return &Collator{col: collate.New(tag)}
}

// SortKey returns the armored collation key for text.
func (c *Collator) SortKey(text string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.buf.Reset()
	key := c.col.KeyFromString(&c.buf, text)
	return hex.EncodeToString(key)
}

// IsIdentical reports whether two armored keys collate equal. Keys are
// compared in armored form; armoring is injective so this equals raw-key
// equality.
func (c *Collator) IsIdentical(oldKey, newKey string) bool {
	return oldKey == newKey
}

// FirstLetter returns the grouping letter for alphabetic indexes: the
// uppercased first rune of the text, "" for empty text.
func (c *Collator) FirstLetter(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	r, _ := utf8.DecodeRuneInString(text)
	return string(unicode.ToUpper(r))
}

var _ types.Collator = (*Collator)(nil)
