package seed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest is what a module declares at install time.
type Manifest struct {
	Module      string       `yaml:"module"`
	Groups      []GroupDecl  `yaml:"groups"`
	ModelAccess []AccessDecl `yaml:"model_access"`
	RecordRules []RuleDecl   `yaml:"record_rules"`
	Users       []UserDecl   `yaml:"users"`
}

type GroupDecl struct {
	Identifier string   `yaml:"identifier"`
	Name       string   `yaml:"name"`
	Category   string   `yaml:"category"`
	Active     *bool    `yaml:"active"`
	Implies    []string `yaml:"implies"`
}

// AccessDecl leaves unset permissions false.
type AccessDecl struct {
	Identifier string `yaml:"identifier"`
	Model      string `yaml:"model"`
	Group      string `yaml:"group"`
	Read       bool   `yaml:"read"`
	Write      bool   `yaml:"write"`
	Create     bool   `yaml:"create"`
	Unlink     bool   `yaml:"unlink"`
	Active     *bool  `yaml:"active"`
}

// RuleDecl applies to every operation unless at least one is set. Domain may
// be written as YAML (list or mapping) or as a string.
type RuleDecl struct {
	Identifier string    `yaml:"identifier"`
	Model      string    `yaml:"model"`
	Domain     yaml.Node `yaml:"domain"`
	Global     bool      `yaml:"global"`
	Groups     []string  `yaml:"groups"`
	Read       *bool     `yaml:"read"`
	Write      *bool     `yaml:"write"`
	Create     *bool     `yaml:"create"`
	Unlink     *bool     `yaml:"unlink"`
	Priority   *int      `yaml:"priority"`
	Active     *bool     `yaml:"active"`
}

type UserDecl struct {
	Email     string   `yaml:"email"`
	Name      string   `yaml:"name"`
	Password  string   `yaml:"password"`
	CompanyID *uint64  `yaml:"company_id"`
	TeamID    *uint64  `yaml:"team_id"`
	Groups    []string `yaml:"groups"`
}

const defaultPriority = 10

// Parse decodes one manifest and checks required fields.
func Parse(data []byte) (Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return Manifest{}, fmt.Errorf("seed: decode manifest: %w", err)
	}
	if err := m.validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// LoadDir reads every *.yaml and *.yml file of dir in name order.
func LoadDir(dir string) ([]Manifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	var names []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	manifests := make([]Manifest, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("seed: %w", err)
		}
		m, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		manifests = append(manifests, m)
	}
	return manifests, nil
}

func (m Manifest) validate() error {
	if m.Module == "" {
		return fmt.Errorf("seed: manifest without module")
	}
	for _, g := range m.Groups {
		if g.Identifier == "" {
			return fmt.Errorf("seed: %s: group without identifier", m.Module)
		}
	}
	for _, a := range m.ModelAccess {
		if a.Identifier == "" || a.Model == "" {
			return fmt.Errorf("seed: %s: model access needs identifier and model", m.Module)
		}
	}
	for _, r := range m.RecordRules {
		if r.Identifier == "" || r.Model == "" {
			return fmt.Errorf("seed: %s: record rule needs identifier and model", m.Module)
		}
		if !r.Global && len(r.Groups) == 0 {
			return fmt.Errorf("seed: %s: record rule %s is neither global nor scoped", m.Module, r.Identifier)
		}
		if _, err := r.domainText(); err != nil {
			return fmt.Errorf("seed: %s: record rule %s: %w", m.Module, r.Identifier, err)
		}
	}
	for _, u := range m.Users {
		if u.Email == "" {
			return fmt.Errorf("seed: %s: user without email", m.Module)
		}
	}
	return nil
}

// domainText turns the YAML domain into the stored text form.
func (r RuleDecl) domainText() (string, error) {
	switch r.Domain.Kind {
	case 0:
		return "[]", nil
	case yaml.ScalarNode:
		if r.Domain.Tag == "!!null" {
			return "[]", nil
		}
		return r.Domain.Value, nil
	}
	var v any
	if err := r.Domain.Decode(&v); err != nil {
		return "", err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("domain is not JSON-compatible: %w", err)
	}
	return string(raw), nil
}

func (r RuleDecl) perms() (read, write, create, unlink bool) {
	if r.Read == nil && r.Write == nil && r.Create == nil && r.Unlink == nil {
		return true, true, true, true
	}
	return isSet(r.Read), isSet(r.Write), isSet(r.Create), isSet(r.Unlink)
}

func isSet(b *bool) bool { return b != nil && *b }

func activeOr(b *bool) bool { return b == nil || *b }
