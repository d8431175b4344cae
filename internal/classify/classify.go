// Package classify turns raw tool output and directory listings into
// decisions: signature rule sets over log bytes, and pairing of cooked
// containers with their logs.
package classify

import "bytes"

// Disposition is the outcome a matching rule selects.
type Disposition string

const (
	DispositionPass      Disposition = "pass"
	DispositionReview    Disposition = "review"
	DispositionOversized Disposition = "oversized"
)

// Rule is one byte signature.
type Rule struct {
	Name        string
	Pattern     []byte
	Disposition Disposition
}

// RuleSet is an ordered list of rules. An exclusive set stops at the first
// match; a non-exclusive set reports every rule that matched. Default is the
// disposition when nothing matches.
type RuleSet struct {
	Rules     []Rule
	Exclusive bool
	Default   Disposition
}

// Result is the outcome of classifying one blob.
type Result struct {
	Disposition Disposition
	Hits        []Rule
}

// Matched reports whether any rule fired.
func (r Result) Matched() bool {
	return len(r.Hits) > 0
}

// HitNames lists the names of the rules that fired, in rule order.
func (r Result) HitNames() []string {
	names := make([]string, 0, len(r.Hits))
	for _, hit := range r.Hits {
		names = append(names, hit.Name)
	}
	return names
}

// Classify scans data against the rule set. The result depends only on the
// rules and the bytes.
func (rs RuleSet) Classify(data []byte) Result {
	result := Result{Disposition: rs.Default}
	for _, rule := range rs.Rules {
		if len(rule.Pattern) == 0 || !bytes.Contains(data, rule.Pattern) {
			continue
		}
		if len(result.Hits) == 0 {
			result.Disposition = rule.Disposition
		}
		result.Hits = append(result.Hits, rule)
		if rs.Exclusive {
			break
		}
	}
	return result
}

// ProbeRules classifies reversibility probe output.
func ProbeRules() RuleSet {
	return RuleSet{
		Exclusive: true,
		Default:   DispositionPass,
		Rules: []Rule{
			{Name: "reversibility_oversized", Pattern: []byte("Error: the reversibility file is becoming big"), Disposition: DispositionOversized},
		},
	}
}

// CookLogRules flags cook logs that need manual review.
func CookLogRules() RuleSet {
	return RuleSet{
		Default: DispositionPass,
		Rules: []Rule{
			{Name: "reversibility_issues", Pattern: []byte("Reversibility was checked, issues detected, see below."), Disposition: DispositionReview},
			{Name: "error", Pattern: []byte("Error:"), Disposition: DispositionReview},
			{Name: "conversion_failed", Pattern: []byte("Conversion failed!"), Disposition: DispositionReview},
			{Name: "unsupported_content", Pattern: []byte("Please contact info@mediaarea.net if you want support of such content."), Disposition: DispositionReview},
		},
	}
}
