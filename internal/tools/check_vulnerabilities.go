package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"
)

const (
	maxVulnPackages = 50
	vulnAPIURL      = "https://api.osv.dev/v1/querybatch"
	vulnAPITimeout  = 20 * time.Second
)

// VulnPackage is one package to check (spec.md §4.F.7).
type VulnPackage struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// VulnFinding is one collated vulnerability result for a package.
type VulnFinding struct {
	Package          string `json:"package"`
	ID               string `json:"id"`
	Summary          string `json:"summary"`
	Severity         string `json:"severity"` // critical|high|moderate|low
	FirstFixedVersion string `json:"first_fixed_version,omitempty"`
}

type osvQuery struct {
	Package struct {
		Name      string `json:"name"`
		Ecosystem string `json:"ecosystem"`
	} `json:"package"`
	Version string `json:"version"`
}

type osvBatchRequest struct {
	Queries []osvQuery `json:"queries"`
}

type osvSeverity struct {
	Type  string `json:"type"`
	Score string `json:"score"`
}

type osvEvent struct {
	Introduced string `json:"introduced,omitempty"`
	Fixed      string `json:"fixed,omitempty"`
}

type osvRange struct {
	Events []osvEvent `json:"events"`
}

type osvAffected struct {
	Ranges []osvRange `json:"ranges"`
}

type osvVuln struct {
	ID       string        `json:"id"`
	Summary  string        `json:"summary"`
	Severity []osvSeverity `json:"severity"`
	Affected []osvAffected `json:"affected"`
}

type osvBatchResponse struct {
	Results []struct {
		Vulns []osvVuln `json:"vulns"`
	} `json:"results"`
}

// CheckVulnerabilities queries the vulnerability database for up to
// maxVulnPackages packages in one batch and collates findings.
func CheckVulnerabilities(ctx context.Context, ecosystem string, packages []VulnPackage) ([]VulnFinding, error) {
	if len(packages) > maxVulnPackages {
		packages = packages[:maxVulnPackages]
	}

	req := osvBatchRequest{Queries: make([]osvQuery, len(packages))}
	for i, p := range packages {
		req.Queries[i].Package.Name = p.Name
		req.Queries[i].Package.Ecosystem = ecosystem
		req.Queries[i].Version = p.Version
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("check_vulnerabilities: marshal request: %w", err)
	}

	cctx, cancel := context.WithTimeout(ctx, vulnAPITimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(cctx, http.MethodPost, vulnAPIURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("check_vulnerabilities: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("check_vulnerabilities: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("check_vulnerabilities: vulnerability database returned %s", resp.Status)
	}

	var batch osvBatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return nil, fmt.Errorf("check_vulnerabilities: decode response: %w", err)
	}

	var findings []VulnFinding
	for i, result := range batch.Results {
		if i >= len(packages) {
			break
		}
		for _, v := range result.Vulns {
			findings = append(findings, VulnFinding{
				Package:          packages[i].Name,
				ID:               v.ID,
				Summary:          v.Summary,
				Severity:         classifySeverity(v.Severity),
				FirstFixedVersion: firstFixedVersion(v.Affected),
			})
		}
	}

	return findings, nil
}

func classifySeverity(severities []osvSeverity) string {
	for _, s := range severities {
		if s.Type != "CVSS_V3" {
			continue
		}
		score := parseCVSSScore(s.Score)
		switch {
		case score >= 9:
			return "critical"
		case score >= 7:
			return "high"
		case score >= 4:
			return "moderate"
		default:
			return "low"
		}
	}
	return "low"
}

// parseCVSSScore reads a base score from an OSV CVSS_V3 severity field.
// Most real records carry the full vector string (e.g.
// "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H") rather than a bare
// number, so the vector is parsed and the base score recomputed per the
// CVSS v3.1 specification's formula; a bare numeric field is still
// accepted directly for the rare record that uses one.
func parseCVSSScore(scoreField string) float64 {
	var score float64
	if _, err := fmt.Sscanf(scoreField, "%f", &score); err == nil {
		return score
	}
	if s, ok := cvssVectorBaseScore(scoreField); ok {
		return s
	}
	return 0
}

var cvssAttackVector = map[string]float64{"N": 0.85, "A": 0.62, "L": 0.55, "P": 0.2}
var cvssAttackComplexity = map[string]float64{"L": 0.77, "H": 0.44}
var cvssUserInteraction = map[string]float64{"N": 0.85, "R": 0.62}
var cvssImpactMetric = map[string]float64{"H": 0.56, "L": 0.22, "N": 0}
var cvssPrivilegesRequiredUnchanged = map[string]float64{"N": 0.85, "L": 0.62, "H": 0.27}
var cvssPrivilegesRequiredChanged = map[string]float64{"N": 0.85, "L": 0.68, "H": 0.5}

// cvssVectorBaseScore computes the CVSS v3.1 base score from a vector
// string per the official formula: Exploitability and Impact sub-scores
// combine, scaled by 1.08 when Scope is Changed, then rounded up to one
// decimal place.
func cvssVectorBaseScore(vector string) (float64, bool) {
	metrics := map[string]string{}
	for _, part := range strings.Split(vector, "/") {
		kv := strings.SplitN(part, ":", 2)
		if len(kv) != 2 {
			continue
		}
		metrics[kv[0]] = kv[1]
	}

	av, ok := cvssAttackVector[metrics["AV"]]
	if !ok {
		return 0, false
	}
	ac, ok := cvssAttackComplexity[metrics["AC"]]
	if !ok {
		return 0, false
	}
	ui, ok := cvssUserInteraction[metrics["UI"]]
	if !ok {
		return 0, false
	}
	conf, ok := cvssImpactMetric[metrics["C"]]
	if !ok {
		return 0, false
	}
	integ, ok := cvssImpactMetric[metrics["I"]]
	if !ok {
		return 0, false
	}
	avail, ok := cvssImpactMetric[metrics["A"]]
	if !ok {
		return 0, false
	}
	scopeChanged := metrics["S"] == "C"

	var pr float64
	if scopeChanged {
		pr, ok = cvssPrivilegesRequiredChanged[metrics["PR"]]
	} else {
		pr, ok = cvssPrivilegesRequiredUnchanged[metrics["PR"]]
	}
	if !ok {
		return 0, false
	}

	isc := 1 - (1-conf)*(1-integ)*(1-avail)

	var impact float64
	if scopeChanged {
		impact = 7.52*(isc-0.029) - 3.25*math.Pow(isc-0.02, 15)
	} else {
		impact = 6.42 * isc
	}
	if impact <= 0 {
		return 0, true
	}

	exploitability := 8.22 * av * ac * pr * ui

	var base float64
	if scopeChanged {
		base = math.Min(1.08*(impact+exploitability), 10)
	} else {
		base = math.Min(impact+exploitability, 10)
	}

	return math.Ceil(base*10) / 10, true
}

func firstFixedVersion(affected []osvAffected) string {
	for _, a := range affected {
		for _, r := range a.Ranges {
			for _, e := range r.Events {
				if e.Fixed != "" {
					return e.Fixed
				}
			}
		}
	}
	return ""
}
