package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
)

// GenerateETag generates a strong ETag for a response body
func GenerateETag(content []byte) string {
	hash := sha256.Sum256(content)
	return fmt.Sprintf(`"%s"`, hex.EncodeToString(hash[:16]))
}

// ParseIfNoneMatch splits an If-None-Match header into its entity tags
func ParseIfNoneMatch(header string) []string {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}
	if header == "*" {
		return []string{"*"}
	}
	var etags []string
	for _, part := range strings.Split(header, ",") {
		if part = strings.TrimSpace(part); part != "" {
			etags = append(etags, part)
		}
	}
	return etags
}

// MatchesETag compares etag against a list using weak comparison
func MatchesETag(etag string, etags []string) bool {
	if len(etags) == 1 && etags[0] == "*" {
		return true
	}
	target := strings.TrimPrefix(etag, "W/")
	for _, e := range etags {
		if strings.TrimPrefix(e, "W/") == target {
			return true
		}
	}
	return false
}

// NotModified sets the ETag header and writes 304 when the request already
// holds the current representation.
func NotModified(w http.ResponseWriter, r *http.Request, etag string) bool {
	w.Header().Set("ETag", etag)
	if MatchesETag(etag, ParseIfNoneMatch(r.Header.Get("If-None-Match"))) {
		w.WriteHeader(http.StatusNotModified)
		return true
	}
	return false
}
