package safety

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidator_PlainTextIsSafe(t *testing.T) {
	v := NewValidator()

	result := v.Validate("plain analysis text")

	assert.True(t, result.Safe)
	assert.Empty(t, result.Warning)
}

func TestValidator_CreateInvocationIsUnsafe(t *testing.T) {
	v := NewValidator()

	result := v.Validate("calling teamwork.tasks.create(...)")

	assert.False(t, result.Safe)
	assert.Contains(t, result.Warning, "create")
}

func TestValidator_MutatingOperations(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name string
		text string
		safe bool
	}{
		{"create call", `teamwork.projects.create({"name": "x"})`, false},
		{"update call", "await teamwork.tasks.update(id, body)", false},
		{"delete call", "teamwork.timeentries.delete(42)", false},
		{"nested resource create", "teamwork.projects.tasklists.create(...)", false},
		{"mutating http call", "POST https://acme.teamwork.com/projects.json", false},
		{"read call mentioned", "teamwork.tasks.list() returned 12 tasks", true},
		{"discussion of creating", "you could create a task for this next week", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.Validate(tt.text)
			assert.Equal(t, tt.safe, result.Safe)
			if !tt.safe {
				assert.NotEmpty(t, result.Warning)
			}
		})
	}
}

func TestValidator_FirstMatchingRuleWins(t *testing.T) {
	v := NewValidatorWithRules([]Rule{
		{Name: "rule one", Pattern: regexp.MustCompile("alpha")},
		{Name: "rule two", Pattern: regexp.MustCompile("beta")},
	})

	result := v.Validate("beta then alpha")

	assert.False(t, result.Safe)
	assert.Equal(t, "rule one", result.Warning, "rule order decides, not match position")
}

func TestValidator_Deterministic(t *testing.T) {
	v := NewValidator()
	text := "calling teamwork.tasks.create(...)"

	first := v.Validate(text)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, v.Validate(text))
	}
}
