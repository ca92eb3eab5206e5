package idgen

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// ULIDGenerator generates ULID-based IDs. Used for ledger records and cycles,
// where lexical order matching creation order is useful.
type ULIDGenerator struct{}

// NewULIDGenerator creates a new ULIDGenerator.
func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{}
}

// Generate generates a new ULID.
func (g *ULIDGenerator) Generate() string {
	return ulid.Make().String()
}

// UUIDGenerator generates random UUIDs. Bybit requires transferId to be a UUID.
type UUIDGenerator struct{}

// NewUUIDGenerator creates a new UUIDGenerator.
func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

// Generate generates a new UUID v4.
func (g *UUIDGenerator) Generate() string {
	return uuid.NewString()
}
