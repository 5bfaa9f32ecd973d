package oracle

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/quiltmoney/quilt/internal/model"
)

// verdictPayload is the wire shape of a single per-candidate judgment.
// Candidate numbering in the prompt is 1-based.
type verdictPayload struct {
	Classification string  `json:"classification"`
	Action         string  `json:"recommendedAction"`
	Reason         string  `json:"reason"`
	Candidate      int     `json:"candidate"`
	Confidence     float64 `json:"confidence"`
	Correlated     bool    `json:"isCorrelated"`
}

var trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)

// parseVerdicts decodes the oracle's structured output into exactly one
// verdict per candidate, in candidate order. Cosmetic formatting noise
// (markdown fences, trailing commas) is tolerated; under-counted responses
// are padded with the no-correlation default; out-of-range or repeated
// candidate indices are ignored. It returns an error only when nothing
// usable can be decoded at all.
func parseVerdicts(content string, candidates []model.Transaction) ([]model.Verdict, error) {
	content = cleanMarkdownWrapper(content)
	content = trailingCommaPattern.ReplaceAllString(content, "$1")

	var payload struct {
		Verdicts []verdictPayload `json:"verdicts"`
	}
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w", err)
	}
	if len(payload.Verdicts) == 0 {
		return nil, fmt.Errorf("no verdicts found in response")
	}

	verdicts := make([]model.Verdict, len(candidates))
	seen := make([]bool, len(candidates))
	for i, candidate := range candidates {
		verdicts[i] = model.DefaultVerdict(candidate.ID)
	}

	for _, v := range payload.Verdicts {
		idx := v.Candidate - 1
		if idx < 0 || idx >= len(candidates) || seen[idx] {
			continue
		}
		seen[idx] = true

		verdicts[idx] = model.Verdict{
			CandidateID:    candidates[idx].ID,
			Correlated:     v.Correlated,
			Confidence:     normalizeConfidence(v.Confidence),
			Classification: normalizeClassification(v.Classification),
			Action:         normalizeAction(v.Action),
			Reason:         strings.TrimSpace(v.Reason),
		}
	}

	return verdicts, nil
}

// normalizeConfidence clamps confidence into the 0-100 integer range.
// Fractional values below 1 are treated as a 0-1 scale and converted.
func normalizeConfidence(conf float64) int {
	if conf > 0 && conf < 1 {
		conf *= 100
	}
	if conf < 0 {
		return 0
	}
	if conf > 100 {
		return 100
	}
	return int(math.Round(conf))
}

// normalizeClassification maps free-form classification strings onto the
// verdict schema. Unknown values degrade to unrelated.
func normalizeClassification(s string) model.Classification {
	switch normalizeEnum(s) {
	case "duplicate":
		return model.ClassDuplicate
	case "same-purchase":
		return model.ClassSamePurchase
	case "related":
		return model.ClassRelated
	default:
		return model.ClassUnrelated
	}
}

// normalizeAction maps free-form action strings onto the verdict schema.
// Unknown values degrade to keep-separate.
func normalizeAction(s string) model.Action {
	switch normalizeEnum(s) {
	case "merge":
		return model.ActionMerge
	case "flag-for-review", "flag", "review":
		return model.ActionFlagForReview
	default:
		return model.ActionKeepSeparate
	}
}

func normalizeEnum(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, " ", "-")
	return s
}

// cleanMarkdownWrapper strips markdown code fences that some models wrap
// around JSON output despite instructions not to.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		if idx := strings.Index(content, "\n"); idx != -1 {
			content = content[idx+1:]
		} else {
			content = strings.TrimPrefix(content, "```json")
			content = strings.TrimPrefix(content, "```")
		}
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")

	return strings.TrimSpace(content)
}
