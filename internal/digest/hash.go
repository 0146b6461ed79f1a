package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Domain prefixes for content-addressed documents.
// Version suffix enables future algorithm migration.
const (
	DomainLedger = "trustgate/ledger/v1"
	DomainBundle = "trustgate/bundle/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Document computes the domain-separated canonical digest of v.
func Document(domain string, v any) (string, error) {
	normalized, err := Normalize(v)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", domain, err)
	}
	canonical, err := MarshalCanonical(normalized)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", domain, err)
	}
	return hashWithDomain(domain, canonical), nil
}

// File returns the hex SHA-256 of the full content of path.
// Missing, unreadable or non-regular files return nil.
func File(path string) *string {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil
	}
	sum := hex.EncodeToString(h.Sum(nil))
	return &sum
}

// Short truncates a hex digest for display.
func Short(hash string) string {
	const n = 12
	if len(hash) <= n {
		return hash
	}
	return hash[:n]
}
