package model

// Classification describes how strongly two records relate.
type Classification string

// Classification constants, strongest first.
const (
	ClassDuplicate    Classification = "duplicate"
	ClassSamePurchase Classification = "same-purchase"
	ClassRelated      Classification = "related"
	ClassUnrelated    Classification = "unrelated"
)

// Strength returns an ordering value for tie-breaking; higher is a stronger
// match.
func (c Classification) Strength() int {
	switch c {
	case ClassDuplicate:
		return 3
	case ClassSamePurchase:
		return 2
	case ClassRelated:
		return 1
	default:
		return 0
	}
}

// Action is the oracle's recommended handling for a candidate pair.
type Action string

// Action constants.
const (
	ActionMerge         Action = "merge"
	ActionFlagForReview Action = "flag-for-review"
	ActionKeepSeparate  Action = "keep-separate"
)

// Verdict is the oracle's judgment for one (incoming, candidate) pair.
// Verdicts are ephemeral: produced per correlation attempt, consumed by the
// decision policy, never mutated.
type Verdict struct {
	CandidateID    string         `json:"candidateId"`
	Classification Classification `json:"classification"`
	Action         Action         `json:"recommendedAction"`
	Reason         string         `json:"reason,omitempty"`
	Confidence     int            `json:"confidence"`
	Correlated     bool           `json:"isCorrelated"`
}

// DefaultVerdict is the no-correlation verdict substituted whenever the
// oracle cannot supply a usable judgment for a candidate.
func DefaultVerdict(candidateID string) Verdict {
	return Verdict{
		CandidateID:    candidateID,
		Correlated:     false,
		Confidence:     0,
		Classification: ClassUnrelated,
		Action:         ActionKeepSeparate,
	}
}
