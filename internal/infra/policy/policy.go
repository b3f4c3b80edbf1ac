// Package policy loads the archive exclusion rules. A dataset is archived
// unless its label matches one of the configured exclusion patterns.
package policy

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/wasilibs/go-re2"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/gsa-vigilante/internal/domain/transfer"
)

var _ transfer.ArchivePolicy = (*Policy)(nil)

// Rule excludes every dataset whose label matches LabelPattern.
type Rule struct {
	Name         string `yaml:"name"`
	LabelPattern string `yaml:"label_pattern"`
}

type document struct {
	Exclude []Rule `yaml:"exclude"`
}

type compiledRule struct {
	name string
	re   *re2.Regexp
}

// Policy is an immutable set of compiled exclusion rules.
type Policy struct {
	rules []compiledRule
}

// ArchiveAll is the policy used when no rules file is configured.
func ArchiveAll() *Policy { return &Policy{} }

// Load reads the rules file at path. An empty path or a missing file yields a
// policy that archives everything.
func Load(path string) (*Policy, error) {
	if path == "" {
		return ArchiveAll(), nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ArchiveAll(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}
	return Parse(data)
}

// Parse compiles a YAML rules document.
func Parse(data []byte) (*Policy, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding policy: %w", err)
	}

	p := &Policy{rules: make([]compiledRule, 0, len(doc.Exclude))}
	for i, r := range doc.Exclude {
		if r.LabelPattern == "" {
			return nil, fmt.Errorf("rule %d (%q): empty label_pattern", i, r.Name)
		}
		re, err := re2.Compile(r.LabelPattern)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%q): %w", i, r.Name, err)
		}
		p.rules = append(p.rules, compiledRule{name: r.Name, re: re})
	}
	return p, nil
}

// IsArchivable reports whether no exclusion rule matches the dataset label.
func (p *Policy) IsArchivable(ds transfer.DatasetFile) bool {
	_, excluded := p.MatchingRule(ds)
	return !excluded
}

// MatchingRule returns the name of the first rule excluding ds.
func (p *Policy) MatchingRule(ds transfer.DatasetFile) (string, bool) {
	for _, r := range p.rules {
		if r.re.MatchString(ds.Label()) {
			return r.name, true
		}
	}
	return "", false
}

// Len returns the number of exclusion rules.
func (p *Policy) Len() int { return len(p.rules) }
