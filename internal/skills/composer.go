package skills

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/iemarjay/reviewbot/internal/tools"
)

// SkippedSkill records why a catalog entry did not make the active set.
type SkippedSkill struct {
	Name   string
	Reason string
}

// Composition is the result of composing skills for one PR.
type Composition struct {
	SystemPrompt     string
	Tools            []string
	ActiveSkillNames []string
	SkippedSkills    []SkippedSkill
}

const systemPreamble = `You are an automated code reviewer. You will be given a pull request
diff and a set of tools to inspect the repository. Use the tools to
verify anything you are unsure about before reporting it as a finding.
Do not speculate about code you have not read.`

const outputContract = `## Output format

When you are done, emit exactly one ` + "`<review>…</review>`" + ` block whose
content is a single JSON object:

{"verdict":"approve|request_changes|comment",
 "summary":"...",
 "findings":[{"skill":"...","severity":"critical|warning|suggestion|note",
              "path":"...","line":<int>,"end_line":<int?>,
              "title":"...","body":"..."}]}

Use request_changes if any finding is critical. Use comment if there is
any warning or suggestion finding and no critical one. Otherwise use
approve. Every finding intended as an inline comment must have a string
path and an integer line.`

// Compose runs the §4.G algorithm: default-enabled filter, glob filter,
// priority sort, tool union, and system prompt assembly.
func Compose(changedFiles []string, prTitle, prBody string) Composition {
	var active []Skill
	var skipped []SkippedSkill

	for _, s := range Catalog {
		if !s.EnabledByDefault {
			skipped = append(skipped, SkippedSkill{Name: s.Name, Reason: "not enabled"})
			continue
		}
		if len(s.FileGlobs) > 0 && len(changedFiles) > 0 && !anyGlobMatches(s.FileGlobs, changedFiles) {
			skipped = append(skipped, SkippedSkill{Name: s.Name, Reason: "no matching files in diff"})
			continue
		}
		active = append(active, s)
	}

	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Priority < active[j].Priority
	})

	toolSet := unionTools(active)

	var prompt strings.Builder
	prompt.WriteString(systemPreamble)
	prompt.WriteString("\n\n## Pull request\n\n")
	fmt.Fprintf(&prompt, "Title: %s\n\n%s\n", prTitle, prBody)

	names := make([]string, 0, len(active))
	for _, s := range active {
		names = append(names, s.Name)
		prompt.WriteString("\n---\n\n")
		prompt.WriteString(s.Instructions)
	}

	prompt.WriteString("\n---\n\n")
	prompt.WriteString(outputContract)

	return Composition{
		SystemPrompt:     prompt.String(),
		Tools:            toolSet,
		ActiveSkillNames: names,
		SkippedSkills:    skipped,
	}
}

func anyGlobMatches(globs []string, files []string) bool {
	for _, g := range globs {
		for _, f := range files {
			if MatchGlob(g, f) {
				return true
			}
		}
	}
	return false
}

func unionTools(active []Skill) []string {
	known := make(map[string]bool)
	for _, name := range tools.Names() {
		known[name] = true
	}

	seen := make(map[string]bool)
	var union []string
	for _, s := range active {
		for _, t := range s.RequiredTools {
			if !known[t] || seen[t] {
				continue
			}
			seen[t] = true
			union = append(union, t)
		}
	}
	return union
}

var addedFileRe = regexp.MustCompile(`(?m)^\+\+\+ b/(.+)$`)

// ExtractChangedFiles collects each unique path following "+++ b/" in a
// unified diff.
func ExtractChangedFiles(diff string) []string {
	matches := addedFileRe.FindAllStringSubmatch(diff, -1)
	seen := make(map[string]bool)
	var files []string
	for _, m := range matches {
		path := m[1]
		if seen[path] {
			continue
		}
		seen[path] = true
		files = append(files, path)
	}
	return files
}

// DiffStat counts added and deleted content lines in a unified diff,
// ignoring the "+++"/"---" file-header lines.
func DiffStat(diff string) (added, deleted int) {
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---"):
			continue
		case strings.HasPrefix(line, "+"):
			added++
		case strings.HasPrefix(line, "-"):
			deleted++
		}
	}
	return added, deleted
}
