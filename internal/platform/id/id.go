// Package id provides utilities for generating URL-safe identifiers.
//
// Identifiers are generated using UUIDv4 bytes encoded as base32 (RFC 4648)
// with no padding. The resulting strings are 26 characters long, lowercase,
// and safe for use in URLs, file paths, and flat storage keys.
package id

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"encoding/base32"

	"github.com/google/uuid"
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewID returns a new 26-character lowercase identifier.
func NewID() (string, error) {
	value, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return strings.ToLower(encoding.EncodeToString(value[:])), nil
}

// NewCampID derives a checkpoint identifier from the owning party and the
// moment of the save. Including the timestamp keeps repeated saves by the
// same party from colliding.
func NewCampID(partyID string, at time.Time) string {
	return partyID + "-" + strconv.FormatInt(at.UTC().UnixMilli(), 10)
}
