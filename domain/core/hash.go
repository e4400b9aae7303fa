package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Hash represents a cryptographic content hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// Short returns the first 12 hex characters, enough for log lines.
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Equals checks if two hashes are equal
func (h Hash) Equals(other Hash) bool {
	return h == other
}

// Domain-specific hash types
type (
	CorpusVersion    Hash
	InventoryVersion Hash
	ClassVersion     Hash
)

func (h CorpusVersion) String() string    { return Hash(h).String() }
func (h InventoryVersion) String() string { return Hash(h).String() }
func (h ClassVersion) String() string     { return Hash(h).String() }

// Hasher accumulates length-prefixed fields so that ("ab","c") and ("a","bc")
// never collide.
type Hasher struct {
	buf []byte
}

// NewHasher starts a hash with a domain tag.
func NewHasher(tag string) *Hasher {
	h := &Hasher{}
	return h.Field(tag)
}

// Field appends a string field.
func (h *Hasher) Field(s string) *Hasher {
	h.buf = binary.BigEndian.AppendUint64(h.buf, uint64(len(s)))
	h.buf = append(h.buf, s...)
	return h
}

// Int appends an integer field.
func (h *Hasher) Int(v int64) *Hasher {
	h.buf = binary.BigEndian.AppendUint64(h.buf, uint64(v))
	return h
}

// Float appends a float field by its IEEE-754 bits.
func (h *Hasher) Float(v float64) *Hasher {
	h.buf = binary.BigEndian.AppendUint64(h.buf, math.Float64bits(v))
	return h
}

// Sum returns the accumulated hash.
func (h *Hasher) Sum() Hash {
	return NewHash(h.buf)
}

// ComputeParamsHash hashes a parameter map in key order.
func ComputeParamsHash(tag string, params map[string]interface{}) Hash {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data strings.Builder
	data.WriteString(tag)
	for _, key := range keys {
		data.WriteString("|")
		data.WriteString(key)
		data.WriteString("=")
		data.WriteString(fmt.Sprintf("%v", params[key]))
	}

	return NewHash([]byte(data.String()))
}
