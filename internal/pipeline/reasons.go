package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RejectReasons maps approved rejection-reason codes to their human-readable
// descriptions. Only the code is validated; descriptions are presentation.
type RejectReasons map[string]string

// DefaultRejectReasons is the built-in approved set. Changing it is a
// configuration change, not a runtime operation.
func DefaultRejectReasons() RejectReasons {
	return RejectReasons{
		"culture_fit":      "Not a culture fit",
		"technical_skills": "Insufficient technical skills",
		"experience":       "Insufficient experience",
		"salary":           "Salary expectations mismatch",
		"position_closed":  "Position closed",
	}
}

// LoadRejectReasons reads a YAML file mapping codes to descriptions and
// returns it as the registry. The file replaces the built-in set entirely.
//
// Example:
//
//	culture_fit: Not a culture fit
//	relocation: Unable to relocate
func LoadRejectReasons(path string) (RejectReasons, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reject reasons file: %w", err)
	}
	reasons := RejectReasons{}
	if err := yaml.Unmarshal(raw, &reasons); err != nil {
		return nil, fmt.Errorf("parse reject reasons file: %w", err)
	}
	if len(reasons) == 0 {
		return nil, fmt.Errorf("reject reasons file %s defines no codes", path)
	}
	return reasons, nil
}

// IsValidReason reports whether code is in the approved set.
func (r RejectReasons) IsValidReason(code string) bool {
	_, ok := r[code]
	return ok
}

// Describe returns the human-readable description for a code, or the code
// itself when unknown.
func (r RejectReasons) Describe(code string) string {
	if d, ok := r[code]; ok {
		return d
	}
	return code
}
