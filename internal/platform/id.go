package platform

import (
	"crypto/rand"

	"github.com/google/uuid"
)

// NewID mints the canonical identifier for stored records: tenants,
// usage entries, isolation handles, scaling events, invoices.
func NewID() string {
	return uuid.New().String()
}

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
const suffixLength = 12

// NewPartitionID and NewSandboxID mint the identifiers the local
// provisioner stamps on isolation handles. Random suffixes keep
// handles from distinct tenants disjoint without coordination.
func NewPartitionID() string { return "part-" + randomSuffix() }

func NewSandboxID() string { return "sbx-" + randomSuffix() }

func randomSuffix() string {
	b := make([]byte, suffixLength)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand: " + err.Error())
	}
	for i := range b {
		b[i] = suffixAlphabet[b[i]%byte(len(suffixAlphabet))]
	}
	return string(b)
}
