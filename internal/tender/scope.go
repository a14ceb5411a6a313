package tender

import (
	_ "embed"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/width"
	"gopkg.in/yaml.v3"
)

//go:embed scope_rules.yaml
var defaultScopeRules []byte

// ScopeRules holds the keyword rules that classify announcing organizations
// and gate which announcements are worth keeping.
type ScopeRules struct {
	PriorityRules struct {
		AgencyKeywords []string `yaml:"agency_keywords"`
		TitleKeywords  []string `yaml:"title_keywords"`
	} `yaml:"priority"`
	Scopes []struct {
		Name           string   `yaml:"name"`
		AgencyKeywords []string `yaml:"agency_keywords"`
	} `yaml:"scopes"`
}

// DefaultScopeRules parses the embedded rule set.
func DefaultScopeRules() (*ScopeRules, error) {
	return parseScopeRules(defaultScopeRules)
}

// LoadScopeRules reads rules from a YAML file, falling back to the embedded
// defaults when path is empty.
func LoadScopeRules(path string) (*ScopeRules, error) {
	if path == "" {
		return DefaultScopeRules()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "tender: read scope rules %s", path)
	}
	return parseScopeRules(data)
}

func parseScopeRules(data []byte) (*ScopeRules, error) {
	var rules ScopeRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, eris.Wrap(err, "tender: parse scope rules")
	}
	return &rules, nil
}

// Classify maps an announcing organization name to a scope. Rules are
// checked in file order; the first scope whose keyword matches wins.
func (r *ScopeRules) Classify(agency string) string {
	a := fold(agency)
	for _, s := range r.Scopes {
		for _, kw := range s.AgencyKeywords {
			if strings.Contains(a, fold(kw)) {
				return s.Name
			}
		}
	}
	return ScopeOther
}

// Priority reports whether an announcement is worth keeping: either the
// agency matches directly or the title carries one of the region keywords.
func (r *ScopeRules) Priority(agency, title string) bool {
	a := fold(agency)
	for _, kw := range r.PriorityRules.AgencyKeywords {
		if strings.Contains(a, fold(kw)) {
			return true
		}
	}
	t := fold(title)
	for _, kw := range r.PriorityRules.TitleKeywords {
		if strings.Contains(t, fold(kw)) {
			return true
		}
	}
	return false
}

// fold normalizes full-width/half-width variants (common in Korean
// government data) and case before substring matching.
func fold(s string) string {
	return strings.ToLower(width.Fold.String(strings.TrimSpace(s)))
}
