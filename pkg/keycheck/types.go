package keycheck

import "go/token"

// Kind classifies a finding.
type Kind string

const (
	// KindUnknown is a constant key absent from the registry.
	KindUnknown Kind = "unknown"
	// KindDynamic is a key computed at run time, which cannot be checked.
	KindDynamic Kind = "dynamic"
)

// Finding is a reported accessor call.
type Finding struct {
	Key            string         `json:"key"`
	Kind           Kind           `json:"kind"`
	Reason         string         `json:"reason"`
	Accessor       string         `json:"accessor"`
	Package        string         `json:"package"`
	Position       token.Position `json:"position"`
	Suppressed     bool           `json:"suppressed"`
	SuppressReason string         `json:"suppress_reason,omitempty"`
}

// Unsuppressed returns the findings that are not suppressed.
func Unsuppressed(findings []Finding) []Finding {
	var out []Finding
	for _, f := range findings {
		if !f.Suppressed {
			out = append(out, f)
		}
	}
	return out
}
