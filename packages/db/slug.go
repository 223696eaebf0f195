package db

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// SuffixSlug derives a collision-escape slug from the original slug plus the
// entity id, language, and attempt number. The same inputs always produce
// the same suffix, so reruns converge on the same stored slug.
func SuffixSlug(base string, entityID int64, lang string, attempt int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%s:%d:%s", entityID, lang, attempt, base)))
	return base + "-" + hex.EncodeToString(sum[:])[:6]
}
