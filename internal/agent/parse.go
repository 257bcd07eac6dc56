package agent

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/iemarjay/reviewbot/internal/apperr"
	"github.com/iemarjay/reviewbot/internal/domain"
)

var reviewBlockRe = regexp.MustCompile(`(?s)<review>(.*?)</review>`)

// ExtractReview finds the first <review>...</review> block in text and
// parses its content per spec.md §4.H's strict rules.
func ExtractReview(text string) (Review, error) {
	match := reviewBlockRe.FindStringSubmatch(text)
	if match == nil {
		return Review{}, fmt.Errorf("%w: no <review> block found", apperr.ErrParseFailure)
	}

	raw := stripFencedBlock(strings.TrimSpace(match[1]))

	var parsed rawReview
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return Review{}, fmt.Errorf("%w: review block is not valid JSON: %s", apperr.ErrParseFailure, err)
	}

	verdict := domain.Verdict(parsed.Verdict)
	switch verdict {
	case domain.VerdictApprove, domain.VerdictRequestChanges, domain.VerdictComment:
	default:
		return Review{}, fmt.Errorf("%w: verdict %q is not one of the three literals", apperr.ErrParseFailure, parsed.Verdict)
	}

	findings := make([]domain.Finding, 0, len(parsed.Findings))
	for _, f := range parsed.Findings {
		if f.Path == nil || f.Line == nil {
			continue
		}
		finding := domain.Finding{
			Path:  *f.Path,
			Line:  *f.Line,
			Title: "Finding",
		}
		if f.Skill != nil {
			finding.Skill = *f.Skill
		} else {
			finding.Skill = "unknown"
		}
		if f.Severity != nil {
			finding.Severity = domain.Severity(*f.Severity)
		} else {
			finding.Severity = domain.SeveritySuggestion
		}
		if f.Title != nil {
			finding.Title = *f.Title
		}
		if f.Body != nil {
			finding.Body = *f.Body
		}
		finding.EndLine = f.EndLine
		findings = append(findings, finding)
	}

	// The verdict law (spec.md §3/§7) is a strict function of the
	// findings' severities, not the model's self-report: a model that
	// emits "approve" alongside a critical finding must not sail
	// through unchanged.
	return Review{
		Verdict:  domain.DeriveVerdict(findings),
		Summary:  parsed.Summary,
		Findings: findings,
	}, nil
}

type rawReview struct {
	Verdict  string          `json:"verdict"`
	Summary  string          `json:"summary"`
	Findings []rawFinding    `json:"findings"`
}

type rawFinding struct {
	Skill    *string `json:"skill"`
	Severity *string `json:"severity"`
	Path     *string `json:"path"`
	Line     *int    `json:"line"`
	EndLine  *int    `json:"end_line"`
	Title    *string `json:"title"`
	Body     *string `json:"body"`
}

var fencedBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

func stripFencedBlock(s string) string {
	if m := fencedBlockRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}
