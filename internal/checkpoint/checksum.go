package checkpoint

import "crypto/sha256"

// ComputeChecksum computes the SHA-256 checksum of data.
func ComputeChecksum(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// ValidateChecksum compares a computed checksum against the stored checksum.
// Returns ErrChecksumMismatch if they don't match.
func ValidateChecksum(computed, stored [32]byte) error {
	if computed != stored {
		return ErrChecksumMismatch
	}
	return nil
}
