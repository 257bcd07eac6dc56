// Package publish maps a completed agent run onto the forge's review
// API: verdict, inline comments, and a markdown summary (spec.md §4.I).
package publish

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/iemarjay/reviewbot/internal/agent"
	"github.com/iemarjay/reviewbot/internal/domain"
	"github.com/iemarjay/reviewbot/internal/forge"
)

// Stats carries the run metadata the summary body reports.
type Stats struct {
	ActiveSkills []string
	Iterations   int
	InputTokens  int
	OutputTokens int
	WallTime     time.Duration
}

// Publisher posts a finished review back to the forge.
type Publisher struct {
	client forge.Client
}

// NewPublisher builds a Publisher against the given forge client.
func NewPublisher(client forge.Client) *Publisher {
	return &Publisher{client: client}
}

// Publish maps review and stats onto one forge review call.
func (p *Publisher) Publish(ctx context.Context, repoFullName string, prNumber int, headSHA string, review agent.Review, stats Stats) error {
	comments := buildComments(review.Findings)
	body := buildSummary(review, stats)
	return p.client.PublishReview(ctx, repoFullName, prNumber, headSHA, review.Verdict, body, comments)
}

func buildComments(findings []domain.Finding) []forge.ReviewComment {
	comments := make([]forge.ReviewComment, 0, len(findings))
	for _, f := range findings {
		if !f.Eligible() {
			continue
		}
		comments = append(comments, forge.ReviewComment{
			Path: f.Path,
			Line: f.Line,
			Body: formatFinding(f),
		})
	}
	return comments
}

func formatFinding(f domain.Finding) string {
	return fmt.Sprintf("**[%s] %s** _(%s)_\n\n%s", strings.ToUpper(string(f.Severity)), f.Title, f.Skill, f.Body)
}

func buildSummary(review agent.Review, stats Stats) string {
	var sb strings.Builder

	sb.WriteString(review.Summary)
	sb.WriteString("\n\n---\n\n")

	if len(stats.ActiveSkills) > 0 {
		sb.WriteString("**Skills:** ")
		sb.WriteString(strings.Join(stats.ActiveSkills, ", "))
		sb.WriteString("\n\n")
	}

	counts := countBySeverity(review.Findings)
	sb.WriteString(fmt.Sprintf("**Findings:** %d critical, %d warning, %d suggestion, %d note\n\n",
		counts[domain.SeverityCritical], counts[domain.SeverityWarning], counts[domain.SeveritySuggestion], counts[domain.SeverityNote]))

	sb.WriteString(fmt.Sprintf("<sub>%d iterations · %d input / %d output tokens · %s</sub>",
		stats.Iterations, stats.InputTokens, stats.OutputTokens, stats.WallTime.Round(time.Second)))

	return sb.String()
}

func countBySeverity(findings []domain.Finding) map[domain.Severity]int {
	counts := make(map[domain.Severity]int)
	for _, f := range findings {
		counts[f.Severity]++
	}
	return counts
}
