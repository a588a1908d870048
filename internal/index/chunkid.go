package index

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// chunkID derives a stable, content-addressed identifier for a chunk so
// re-ingesting unchanged content upserts the same row instead of creating a
// duplicate.
func chunkID(docID string, startOffset, endOffset int, text string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%d|", docID, startOffset, endOffset)
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
