// Package safety gates agent output before it reaches the client. Drafting
// is the only effect an agent may have; text that looks like a direct write
// call against the project-management API is rejected so mutations stay
// behind the explicit human-confirmed submission step.
package safety

import (
	"regexp"
)

// ValidationResult is the outcome of a validation pass.
type ValidationResult struct {
	Safe    bool   `json:"safe"`
	Warning string `json:"warning,omitempty"`
}

// Rule pairs a name with a compiled pattern. Rules are evaluated in order;
// the first match determines the result.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
}

// defaultRules covers invocation-looking patterns for the external API's
// mutating operations. This is a denylist and inherently bypassable — the
// hard guarantee comes from agents having no write capability at all, not
// from this check.
var defaultRules = []Rule{
	{
		Name:    "teamwork create call",
		Pattern: regexp.MustCompile(`(?i)teamwork\.\w+(\.\w+)*\.create\s*\(`),
	},
	{
		Name:    "teamwork update call",
		Pattern: regexp.MustCompile(`(?i)teamwork\.\w+(\.\w+)*\.update\s*\(`),
	},
	{
		Name:    "teamwork delete call",
		Pattern: regexp.MustCompile(`(?i)teamwork\.\w+(\.\w+)*\.delete\s*\(`),
	},
	{
		Name:    "mutating HTTP call",
		Pattern: regexp.MustCompile(`(?i)\b(POST|PUT|PATCH|DELETE)\s+https?://[^\s]*teamwork[^\s]*`),
	},
}

// Validator applies an ordered rule list to agent output.
type Validator struct {
	rules []Rule
}

// NewValidator creates a validator with the built-in rule set.
func NewValidator() *Validator {
	return &Validator{rules: defaultRules}
}

// NewValidatorWithRules creates a validator with a custom ordered rule set.
func NewValidatorWithRules(rules []Rule) *Validator {
	return &Validator{rules: rules}
}

// Validate checks text against the rules. Pure function of its input: no
// side effects, callable in isolation.
func (v *Validator) Validate(text string) ValidationResult {
	for _, rule := range v.rules {
		if rule.Pattern.MatchString(text) {
			return ValidationResult{Safe: false, Warning: rule.Name}
		}
	}
	return ValidationResult{Safe: true}
}
