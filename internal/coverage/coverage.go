// Package coverage parses the coverage value reported in pull request comments.
package coverage

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/tools/cover"
)

var (
	// ErrMissingCoverage indicates no coverage value was supplied.
	ErrMissingCoverage = errors.New("coverage value is missing")
	// ErrInvalidCoverage indicates the supplied value is not a usable percentage.
	ErrInvalidCoverage = errors.New("coverage value is not a valid percentage")
)

// decimalPattern admits plain decimals only, not the wider Go number syntax.
var decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// Percentage is a coverage value as supplied by the caller.
// The original text is kept so the comment shows exactly what CI computed.
type Percentage struct {
	text  string
	value float64
}

// ParsePercentage validates text as a number in [0, 100].
// Surrounding whitespace and a single trailing '%' are ignored.
func ParsePercentage(text string) (Percentage, error) {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, "%"))
	if trimmed == "" {
		return Percentage{}, ErrMissingCoverage
	}

	if !decimalPattern.MatchString(trimmed) {
		return Percentage{}, fmt.Errorf("%w: %q", ErrInvalidCoverage, text)
	}
	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return Percentage{}, fmt.Errorf("%w: %q", ErrInvalidCoverage, text)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 || value > 100 {
		return Percentage{}, fmt.Errorf("%w: %q out of range", ErrInvalidCoverage, text)
	}

	return Percentage{text: trimmed, value: value}, nil
}

// FromRatio builds a Percentage from covered and total statement counts.
func FromRatio(covered, total int64) Percentage {
	if total <= 0 {
		return Percentage{text: "0.0"}
	}
	value := float64(covered) / float64(total) * 100
	return Percentage{text: strconv.FormatFloat(value, 'f', 1, 64), value: value}
}

// String returns the percentage text without a '%' suffix.
func (p Percentage) String() string { return p.text }

// Value returns the numeric percentage.
func (p Percentage) Value() float64 { return p.value }

// IsZero reports whether p was never set.
func (p Percentage) IsZero() bool { return p.text == "" }

// TotalFromProfile computes total statement coverage from a go test coverprofile.
// The result matches the "total:" line printed by go tool cover -func.
func TotalFromProfile(path string) (Percentage, error) {
	if strings.TrimSpace(path) == "" {
		return Percentage{}, ErrMissingCoverage
	}

	profiles, err := cover.ParseProfiles(path)
	if err != nil {
		return Percentage{}, fmt.Errorf("parse coverprofile %s: %w", path, err)
	}

	var covered, total int64
	for _, profile := range profiles {
		for _, block := range profile.Blocks {
			total += int64(block.NumStmt)
			if block.Count > 0 {
				covered += int64(block.NumStmt)
			}
		}
	}

	return FromRatio(covered, total), nil
}
