package jobs

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// HashFile returns the hex SHA-256 of the file contents, streamed.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for hashing: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ComputeKey derives the deduplication identity of a submission from the
// document content hash and the processing parameters. Two submissions with
// the same key are equivalent work.
func ComputeKey(contentSHA256 string, p Params) string {
	material := fmt.Sprintf("%s|%d|%.3f|%s|%s",
		contentSHA256, p.MaxPages, p.RenderScale, p.Model, p.AgentVersion)
	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:])
}
