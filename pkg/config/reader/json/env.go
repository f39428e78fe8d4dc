package json

import (
	"os"
	"regexp"
)

// ${NAME} or ${NAME:-default}
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// ReplaceEnvVars substitutes environment references in raw config data
func ReplaceEnvVars(raw []byte) ([]byte, error) {
	out := envPattern.ReplaceAllFunc(raw, func(m []byte) []byte {
		groups := envPattern.FindSubmatch(m)
		if v, ok := os.LookupEnv(string(groups[1])); ok {
			return []byte(v)
		}
		return groups[3]
	})
	return out, nil
}
