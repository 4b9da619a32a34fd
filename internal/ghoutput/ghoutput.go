// Package ghoutput writes GitHub Actions step outputs.
package ghoutput

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// Write appends values as key=value lines to the step output file at path.
// An empty path means the step is not running under Actions and is a no-op.
func Write(path string, values map[string]string) error {
	path = strings.TrimSpace(path)
	if path == "" || len(values) == 0 {
		return nil
	}

	keys := make([]string, 0, len(values))
	for k, v := range values {
		if strings.TrimSpace(k) == "" {
			continue
		}
		// key=value lines cannot carry line breaks.
		if strings.ContainsAny(k+v, "\r\n") {
			return fmt.Errorf("step output %q: value must be a single line", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open step output file: %w", err)
	}
	defer func() { _ = f.Close() }()

	for _, key := range keys {
		if _, err := fmt.Fprintf(f, "%s=%s\n", key, values[key]); err != nil {
			return fmt.Errorf("write step output %s: %w", key, err)
		}
	}
	return nil
}
