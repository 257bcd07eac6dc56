package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveVerdict_CriticalForcesRequestChanges(t *testing.T) {
	findings := []Finding{
		{Severity: SeveritySuggestion},
		{Severity: SeverityCritical},
	}
	assert.Equal(t, VerdictRequestChanges, DeriveVerdict(findings))
}

func TestDeriveVerdict_WarningForcesComment(t *testing.T) {
	findings := []Finding{{Severity: SeverityWarning}}
	assert.Equal(t, VerdictComment, DeriveVerdict(findings))
}

func TestDeriveVerdict_SuggestionForcesComment(t *testing.T) {
	findings := []Finding{{Severity: SeveritySuggestion}}
	assert.Equal(t, VerdictComment, DeriveVerdict(findings))
}

func TestDeriveVerdict_NoFindingsApproves(t *testing.T) {
	assert.Equal(t, VerdictApprove, DeriveVerdict(nil))
}

func TestDeriveVerdict_OnlyNotesApproves(t *testing.T) {
	findings := []Finding{{Severity: SeverityNote}, {Severity: SeverityNote}}
	assert.Equal(t, VerdictApprove, DeriveVerdict(findings))
}

func TestFinding_Eligible(t *testing.T) {
	assert.True(t, Finding{Path: "main.go", Line: 10}.Eligible())
	assert.False(t, Finding{Path: "", Line: 10}.Eligible())
	assert.False(t, Finding{Path: "main.go", Line: 0}.Eligible())
}
