package types

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DataKind enumerates the closed set of value kinds the store can hold.
// Every kind carries its own DB-key codec; dispatch happens through a
// table built at package init, never through per-call type switching on
// caller-provided tags.
// Implements: prd002-data-items R1.
type DataKind int

const (
	KindNumber DataKind = iota + 1
	KindText
	KindBoolean
	KindURI
	KindTime
	KindCoordinate
	KindPage
	KindConcept
)

// kindNames maps kinds to their stable wire names, used in cache keys and
// property table names.
var kindNames = map[DataKind]string{
	KindNumber:     "number",
	KindText:       "text",
	KindBoolean:    "boolean",
	KindURI:        "uri",
	KindTime:       "time",
	KindCoordinate: "coordinate",
	KindPage:       "page",
	KindConcept:    "concept",
}

func (k DataKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// DataItem errors (prd002-data-items R7).
var (
	ErrUnknownKind   = errors.New("unknown data kind")
	ErrMalformedKeys = errors.New("malformed dbkey tuple")
)

// DataItem is one stored value. Implementations are the eight closed
// variants in this package; no other implementations exist.
type DataItem interface {
	// Kind identifies the variant.
	Kind() DataKind
	// DBKeys serializes the value into its flat dbkey tuple, the raw form
	// held by stubs and persisted in property tables.
	DBKeys() []string
	// SortText is the text the collation service sorts this value by.
	SortText() string
}

// NumberItem holds a floating-point quantity.
type NumberItem struct{ Value float64 }

func (NumberItem) Kind() DataKind     { return KindNumber }
func (d NumberItem) DBKeys() []string { return []string{strconv.FormatFloat(d.Value, 'g', -1, 64)} }
func (d NumberItem) SortText() string { return d.DBKeys()[0] }

// TextItem holds an unconstrained string.
type TextItem struct{ Value string }

func (TextItem) Kind() DataKind     { return KindText }
func (d TextItem) DBKeys() []string { return []string{d.Value} }
func (d TextItem) SortText() string { return d.Value }

// BooleanItem holds a truth value.
type BooleanItem struct{ Value bool }

func (BooleanItem) Kind() DataKind { return KindBoolean }
func (d BooleanItem) DBKeys() []string {
	if d.Value {
		return []string{"1"}
	}
	return []string{"0"}
}
func (d BooleanItem) SortText() string { return d.DBKeys()[0] }

// URIItem holds an external URI.
type URIItem struct{ Value string }

func (URIItem) Kind() DataKind     { return KindURI }
func (d URIItem) DBKeys() []string { return []string{d.Value} }
func (d URIItem) SortText() string { return d.Value }

// TimeItem holds a point in time, stored in UTC.
type TimeItem struct{ Value time.Time }

func (TimeItem) Kind() DataKind { return KindTime }
func (d TimeItem) DBKeys() []string {
	return []string{d.Value.UTC().Format(time.RFC3339Nano)}
}
func (d TimeItem) SortText() string { return d.DBKeys()[0] }

// CoordinateItem holds a geographic point.
type CoordinateItem struct{ Lat, Lon float64 }

func (CoordinateItem) Kind() DataKind { return KindCoordinate }
func (d CoordinateItem) DBKeys() []string {
	return []string{
		strconv.FormatFloat(d.Lat, 'g', -1, 64),
		strconv.FormatFloat(d.Lon, 'g', -1, 64),
	}
}
func (d CoordinateItem) SortText() string { return strings.Join(d.DBKeys(), ",") }

// PageItem holds a reference to another entity.
type PageItem struct{ Ref EntityReference }

func (PageItem) Kind() DataKind { return KindPage }
func (d PageItem) DBKeys() []string {
	return []string{d.Ref.Title, strconv.Itoa(d.Ref.Namespace), d.Ref.Interwiki, d.Ref.Subobject}
}
func (d PageItem) SortText() string { return d.Ref.Title }

// ConceptItem holds a stored concept: a query definition plus its
// complexity metrics.
type ConceptItem struct {
	Query string
	Docu  string
	Size  int
	Depth int
}

func (ConceptItem) Kind() DataKind { return KindConcept }
func (d ConceptItem) DBKeys() []string {
	return []string{d.Query, d.Docu, strconv.Itoa(d.Size), strconv.Itoa(d.Depth)}
}
func (d ConceptItem) SortText() string { return d.Query }

// decoders is the dispatch table from kind to dbkey decoder, built once
// at init.
var decoders map[DataKind]func([]string) (DataItem, error)

func init() {
	decoders = map[DataKind]func([]string) (DataItem, error){
		KindNumber: func(keys []string) (DataItem, error) {
			if len(keys) != 1 {
				return nil, ErrMalformedKeys
			}
			v, err := strconv.ParseFloat(keys[0], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedKeys, err)
			}
			return NumberItem{Value: v}, nil
		},
		KindText: func(keys []string) (DataItem, error) {
			if len(keys) != 1 {
				return nil, ErrMalformedKeys
			}
			return TextItem{Value: keys[0]}, nil
		},
		KindBoolean: func(keys []string) (DataItem, error) {
			if len(keys) != 1 {
				return nil, ErrMalformedKeys
			}
			switch keys[0] {
			case "1":
				return BooleanItem{Value: true}, nil
			case "0":
				return BooleanItem{Value: false}, nil
			}
			return nil, ErrMalformedKeys
		},
		KindURI: func(keys []string) (DataItem, error) {
			if len(keys) != 1 {
				return nil, ErrMalformedKeys
			}
			return URIItem{Value: keys[0]}, nil
		},
		KindTime: func(keys []string) (DataItem, error) {
			if len(keys) != 1 {
				return nil, ErrMalformedKeys
			}
			v, err := time.Parse(time.RFC3339Nano, keys[0])
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedKeys, err)
			}
			return TimeItem{Value: v}, nil
		},
		KindCoordinate: func(keys []string) (DataItem, error) {
			if len(keys) != 2 {
				return nil, ErrMalformedKeys
			}
			lat, err1 := strconv.ParseFloat(keys[0], 64)
			lon, err2 := strconv.ParseFloat(keys[1], 64)
			if err1 != nil || err2 != nil {
				return nil, ErrMalformedKeys
			}
			return CoordinateItem{Lat: lat, Lon: lon}, nil
		},
		KindPage: func(keys []string) (DataItem, error) {
			if len(keys) != 4 {
				return nil, ErrMalformedKeys
			}
			ns, err := strconv.Atoi(keys[1])
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedKeys, err)
			}
			return PageItem{Ref: EntityReference{
				Title: keys[0], Namespace: ns, Interwiki: keys[2], Subobject: keys[3],
			}}, nil
		},
		KindConcept: func(keys []string) (DataItem, error) {
			if len(keys) != 4 {
				return nil, ErrMalformedKeys
			}
			size, err1 := strconv.Atoi(keys[2])
			depth, err2 := strconv.Atoi(keys[3])
			if err1 != nil || err2 != nil {
				return nil, ErrMalformedKeys
			}
			return ConceptItem{Query: keys[0], Docu: keys[1], Size: size, Depth: depth}, nil
		},
	}
}

// NewDataItem decodes a dbkey tuple into its typed value. A tuple whose
// shape does not match the kind returns ErrMalformedKeys; the caller is
// expected to drop that single value rather than fail the whole lookup.
// Implements: prd002-data-items R2.
func NewDataItem(kind DataKind, keys []string) (DataItem, error) {
	decode, ok := decoders[kind]
	if !ok {
		return nil, ErrUnknownKind
	}
	return decode(keys)
}

// ValueHash returns a deterministic hash of an item, used as the stable
// token in sequence maps.
func ValueHash(item DataItem) string {
	h := sha1.Sum([]byte(item.Kind().String() + "\x1f" + strings.Join(item.DBKeys(), "\x1f")))
	return hex.EncodeToString(h[:])
}
