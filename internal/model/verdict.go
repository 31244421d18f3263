package model

import (
	"github.com/nao1215/lensfind/internal/lensing"
)

// Verdict summarises which lensing morphologies a run found.
type Verdict int

const (
	// VerdictNone means neither search accepted a group.
	VerdictNone Verdict = iota

	// VerdictMultiImage means only multi-image groups were found.
	VerdictMultiImage

	// VerdictArc means only arcs were found.
	VerdictArc

	// VerdictBoth means both morphologies were found around the same lens.
	VerdictBoth
)

// String returns a stable identifier for the verdict.
func (v Verdict) String() string {
	switch v {
	case VerdictNone:
		return "none"
	case VerdictMultiImage:
		return "multi_image"
	case VerdictArc:
		return "arc"
	case VerdictBoth:
		return "both"
	default:
		return "unknown"
	}
}

// VerdictFor derives a verdict from the number of accepted groups.
func VerdictFor(multiImage, arcs int) Verdict {
	switch {
	case multiImage > 0 && arcs > 0:
		return VerdictBoth
	case multiImage > 0:
		return VerdictMultiImage
	case arcs > 0:
		return VerdictArc
	default:
		return VerdictNone
	}
}

// PatternInfo holds the wording used to report a pattern kind.
type PatternInfo struct {
	// Name is the astronomical name of the morphology.
	Name string
	// Found explains why an accepted group is suggestive.
	Found string
	// NotFound is printed when no group was accepted.
	NotFound string
}

var patternInfoMapping = map[lensing.PatternKind]PatternInfo{
	lensing.PatternMultiImage: {
		Name:     "Einstein Cross",
		Found:    "This is based on finding a tight cluster of 4 sources with similar brightness near the central object.",
		NotFound: "No patterns suggestive of an 'Einstein Cross' were found.",
	},
	lensing.PatternArc: {
		Name:     "Gravitational Arc",
		Found:    "This is based on finding multiple sources arranged in a circular arc around the central object.",
		NotFound: "No patterns suggestive of a 'Gravitational Arc' were found.",
	},
}

// GetPatternInfo returns the wording for kind. Unknown kinds get a
// generic entry named after the kind itself.
func GetPatternInfo(kind lensing.PatternKind) PatternInfo {
	if info, ok := patternInfoMapping[kind]; ok {
		return info
	}
	return PatternInfo{
		Name:     string(kind),
		NotFound: "No patterns of kind '" + string(kind) + "' were found.",
	}
}
