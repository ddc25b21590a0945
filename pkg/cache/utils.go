package cache

import (
	"fmt"
	"strings"
)

var keyEscaper = strings.NewReplacer(" ", "_", ":", "_", "*", "_")

// GenerateKeyWithParams creates a cache key with multiple parameters.
// Parameters keep their case; separators and glob characters are replaced.
func GenerateKeyWithParams(prefix string, params ...interface{}) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, param := range params {
		b.WriteByte(':')
		b.WriteString(keyEscaper.Replace(fmt.Sprint(param)))
	}
	return b.String()
}

// BuildPattern creates a glob pattern for key matching.
func BuildPattern(prefix string) string {
	return prefix + "*"
}
