package cache

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
)

// EntryFileExt is the extension of serialized entry files in the disk tier.
const EntryFileExt = ".cache"

// DeriveKey maps a caller-supplied logical key onto the fixed-form cache key
// used to address both tiers and to name entry files on disk. The result is
// the hex-encoded SHA-256 of the logical key: 64 lowercase hex characters,
// safe as a file name on every supported platform.
func DeriveKey(logicalKey string) string {
	hash := sha256.Sum256([]byte(logicalKey))
	return fmt.Sprintf("%x", hash)
}

// HashBytes returns the hex-encoded SHA-256 digest of data.
func HashBytes(data []byte) string {
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash)
}

// HashFile returns the hex-encoded SHA-256 digest of the file contents at
// path. The file is streamed, not loaded whole.
func HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}
