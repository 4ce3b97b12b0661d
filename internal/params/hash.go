package params

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainParams separates parameter hashes from any other hash in the system.
// Version suffix enables future algorithm migration.
const DomainParams = "clqa/params/v1"

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash returns a stable content hash of p. The ledger indexes runs by it.
//
// Hash is representation-sensitive: Int(1) and Float(1.0) hash differently
// even though Equal treats them as equal. Matching always goes through Equal;
// the hash only groups runs that were recorded with identical bytes.
func Hash(p Params) (string, error) {
	canonical, err := MarshalCanonical(p)
	if err != nil {
		return "", fmt.Errorf("hash params: %w", err)
	}
	return hashWithDomain(DomainParams, canonical), nil
}
