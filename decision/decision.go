// Package decision turns a session summary into the scripted hired/rejected
// outcome.
//
// The rule set is policy data reproduced exactly as the demo shipped it. The
// gender criterion is discriminatory and kept only so the behaviour can be
// tested; any real deployment must remove or redesign it.
package decision

import (
	"slices"

	"github.com/maastricht-university/interview-pipeline/aggregate"
)

type Outcome string

const (
	Hired    Outcome = "hired"
	Rejected Outcome = "rejected"
)

const (
	RequiredGender            = "male"
	MinSmilePercent           = 70
	MaxNegativeEmotionPercent = 30
)

type Decision struct {
	Outcome Outcome  `json:"outcome"`
	Reasons []string `json:"reasons"`
}

// Criterion is one predicate of the rule set. Label is reported when it fails.
type Criterion struct {
	Label string
	Holds func(aggregate.Summary) bool
}

// criteria in declaration order; reasons are reported in this order.
var criteria = []Criterion{
	{
		Label: "gender identification",
		Holds: func(s aggregate.Summary) bool { return s.DominantGender == RequiredGender },
	},
	{
		Label: "insufficient smiling",
		Holds: func(s aggregate.Summary) bool { return s.SmilePercent >= MinSmilePercent },
	},
	{
		Label: "negative emotions detected",
		Holds: func(s aggregate.Summary) bool { return s.NegativeEmotionPercent <= MaxNegativeEmotionPercent },
	},
}

// Criteria returns a copy of the rule set in evaluation order.
func Criteria() []Criterion {
	return slices.Clone(criteria)
}

// Decide is hired iff every criterion holds. No partial credit.
func Decide(s aggregate.Summary) Decision {
	reasons := []string{}
	for _, c := range criteria {
		if !c.Holds(s) {
			reasons = append(reasons, c.Label)
		}
	}
	if len(reasons) == 0 {
		return Decision{Outcome: Hired, Reasons: reasons}
	}
	return Decision{Outcome: Rejected, Reasons: reasons}
}

// Message is the text the results view shows for d.
func (d Decision) Message() string {
	if d.Outcome == Hired {
		return "Congratulations! You've been selected for this position."
	}
	msg := "We regret to inform you that you have not been selected for this position."
	if len(d.Reasons) > 0 {
		msg += " Potential reasons: "
		for i, r := range d.Reasons {
			if i > 0 {
				msg += ", "
			}
			msg += r
		}
		msg += "."
	}
	return msg
}
