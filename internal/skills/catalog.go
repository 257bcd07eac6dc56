// Package skills implements the skill registry and composer of
// spec.md §4.G: a static catalog, glob-based file filtering, and system
// prompt composition.
package skills

// Skill is a static record describing one reviewer lens.
type Skill struct {
	Name             string
	Label            string
	Description      string
	RequiredTools    []string
	FileGlobs        []string
	EnabledByDefault bool
	Priority         int
	Instructions     string
}

// Catalog is the fixed, built-in set of skills.
var Catalog = []Skill{
	{
		Name:             "general-review",
		Label:            "General Review",
		Description:      "Overall code quality, correctness, and maintainability.",
		RequiredTools:    []string{"read_file", "git_diff", "search_content"},
		EnabledByDefault: true,
		Priority:         10,
		Instructions: `Review the diff for logic errors, missing error handling, unhandled
edge cases, and readability problems. Prefer actionable, specific
feedback over general praise. When you reference a line, use the
finding schema's path/line fields exactly.`,
	},
	{
		Name:             "bug-hunt",
		Label:            "Bug Hunt",
		Description:      "High-signal search for real runtime bugs.",
		RequiredTools:    []string{"read_file", "git_diff", "search_content", "run_command"},
		EnabledByDefault: true,
		Priority:         20,
		Instructions: `Hunt for bugs that will actually cause runtime errors, data
corruption, or incorrect behavior: off-by-one errors, nil/empty
dereferences, unchecked type assertions, race conditions, resource
leaks. Keep the false-positive rate low — only report something here
if you can describe the concrete input or sequence that triggers it.`,
	},
	{
		Name:          "security-audit",
		Label:         "Security Audit",
		Description:   "Injection, auth, and secret-handling issues.",
		RequiredTools: []string{"read_file", "git_diff", "search_content", "check_vulnerabilities"},
		FileGlobs: []string{
			"**/*.go", "**/*.py", "**/*.js", "**/*.ts", "**/*.rb", "**/*.java",
			"**/go.sum", "**/package-lock.json", "**/requirements*.txt",
		},
		EnabledByDefault: true,
		Priority:         15,
		Instructions: `Audit the changed code for injection flaws, broken authentication or
authorization checks, unsafe deserialization, and hardcoded secrets.
If the diff touches a dependency manifest or lockfile, use
check_vulnerabilities on the added/changed packages and report any
critical or high severity results as findings.`,
	},
	{
		Name:             "performance",
		Label:            "Performance",
		Description:      "Obvious algorithmic or I/O performance regressions.",
		RequiredTools:    []string{"read_file", "git_diff"},
		EnabledByDefault: false,
		Priority:         30,
		Instructions: `Look for N+1 queries, unnecessary O(n^2) loops over request-sized
data, synchronous I/O on a hot path, and unbounded allocations. Only
raise a finding when the regression is visible in the diff itself, not
speculative.`,
	},
	{
		Name:             "deep-analysis",
		Label:            "Deep Analysis",
		Description:      "Architectural and cross-cutting concerns for large diffs.",
		RequiredTools:    []string{"read_file", "git_diff", "list_files", "find_files", "search_content"},
		EnabledByDefault: false,
		Priority:         40,
		Instructions: `For substantial changes, consider how the diff fits the surrounding
package: broken invariants, inconsistent error handling compared to
neighboring code, and missing test coverage for the new branches.
Use list_files/find_files to orient yourself in the package before
raising a structural concern.`,
	},
}
