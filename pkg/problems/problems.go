// pkg/problems/problems.go
package problems

import (
	"os"
	"strings"
)

// Base returns the base URL under which problem type identifiers live.
// GATEWAY_PROBLEM_BASE_URL wins when set; otherwise GATEWAY_PUBLIC_URL
// gets a "/problems" suffix; otherwise a neutral placeholder is used so
// rendered documents always carry an absolute type URL.
func Base() string {
	if b := os.Getenv("GATEWAY_PROBLEM_BASE_URL"); b != "" {
		return strings.TrimRight(b, "/")
	}
	if b := os.Getenv("GATEWAY_PUBLIC_URL"); b != "" {
		return strings.TrimRight(b, "/") + "/problems"
	}
	return "https://example.com/problems"
}

// Type builds the full problem type URL for a taxonomy slug.
func Type(slug string) string { return Base() + "/" + slug }
