// Package stage enumerates the filesystem locations a DPX sequence moves
// through and maps each one to a directory on disk.
package stage

import "strings"

// Stage is a named pipeline location. A sequence's stage is the directory that
// currently holds it; there is no other record of state.
type Stage string

const (
	AssessmentIntake     Stage = "assessment-intake"
	GapCheckFailed       Stage = "gap-check-failed"
	PolicyCheckPending   Stage = "policy-check-pending"
	PolicyCheckFailed    Stage = "policy-check-failed"
	ReadyToCook          Stage = "ready-to-cook"
	ReadyToCookV2        Stage = "ready-to-cook-v2"
	MKVCooked            Stage = "mkv-cooked"
	MKVPolicyFailed      Stage = "mkv-policy-failed"
	PostCookReviewFailed Stage = "post-cook-review-failed"
	Completed            Stage = "completed"
)

var allStages = []Stage{
	AssessmentIntake,
	GapCheckFailed,
	PolicyCheckPending,
	PolicyCheckFailed,
	ReadyToCook,
	ReadyToCookV2,
	MKVCooked,
	MKVPolicyFailed,
	PostCookReviewFailed,
	Completed,
}

var terminalStages = map[Stage]struct{}{
	GapCheckFailed:       {},
	PolicyCheckFailed:    {},
	MKVPolicyFailed:      {},
	PostCookReviewFailed: {},
	Completed:            {},
}

// All returns the stages in pipeline order.
func All() []Stage {
	cp := make([]Stage, len(allStages))
	copy(cp, allStages)
	return cp
}

// Parse converts a string into a known Stage.
func Parse(value string) (Stage, bool) {
	normalized := Stage(strings.ToLower(strings.TrimSpace(value)))
	for _, s := range allStages {
		if s == normalized {
			return s, true
		}
	}
	return "", false
}

// Terminal reports whether no automated transition leaves s.
func (s Stage) Terminal() bool {
	_, ok := terminalStages[s]
	return ok
}

// Review reports whether s is one of the manual-review destinations.
func (s Stage) Review() bool {
	return s.Terminal() && s != Completed
}

func (s Stage) String() string { return string(s) }
