// Package rulesets loads rule packs from YAML and keeps the registry of
// compiled rule sets by input kind.
package rulesets

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/raysh454/cyberguard/internal/logging"
	"github.com/raysh454/cyberguard/internal/scoring"
)

//go:embed packs/*.yaml
var packsFS embed.FS

// Parse decodes one YAML rule pack and compiles it. source names the pack in
// errors. Unknown YAML keys are rejected so typos do not silently disable a rule.
func Parse(data []byte, source string) (*scoring.RuleSet, error) {
	var def scoring.Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &scoring.ConfigError{RuleSet: source, Reason: "empty rule pack"}
		}
		return nil, &scoring.ConfigError{RuleSet: source, Reason: "parse yaml", Err: err}
	}
	if def.Name == "" {
		def.Name = strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	}
	return scoring.Compile(def)
}

// Load reads and compiles the rule pack at path.
func Load(path string) (*scoring.RuleSet, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule pack: %w", err)
	}
	rs, err := Parse(b, path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return rs, nil
}

// LoadDir compiles every *.yaml and *.yml file in dir, in file name order.
// The first invalid pack aborts the load.
func LoadDir(dir string) ([]*scoring.RuleSet, error) {
	return loadFS(os.DirFS(dir), ".", dir)
}

// Defaults returns the built-in rule sets for email, url and text inputs.
func Defaults() ([]*scoring.RuleSet, error) {
	return loadFS(packsFS, "packs", "embedded packs")
}

func loadFS(fsys fs.FS, dir, label string) ([]*scoring.RuleSet, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", label, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]*scoring.RuleSet, 0, len(names))
	for _, name := range names {
		b, err := fs.ReadFile(fsys, pathJoin(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		rs, err := Parse(b, name)
		if err != nil {
			return nil, fmt.Errorf("compile rule pack %q: %w", name, err)
		}
		out = append(out, rs)
	}
	return out, nil
}

// fs.FS paths always use forward slashes.
func pathJoin(dir, name string) string {
	if dir == "." || dir == "" {
		return name
	}
	return dir + "/" + name
}

// LoadRegistry builds a registry from the embedded defaults and then, when
// dir is non-empty, replaces or extends them with the packs found in dir.
func LoadRegistry(dir string, logger logging.Logger) (*Registry, error) {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	logger = logger.With(logging.Field{Key: "component", Value: "rulesets"})

	defaults, err := Defaults()
	if err != nil {
		return nil, err
	}
	reg := NewRegistry(defaults...)

	if dir == "" {
		logger.Info("loaded default rule sets", logging.Field{Key: "count", Value: len(defaults)})
		return reg, nil
	}

	overrides, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, rs := range overrides {
		if prev, ok := reg.Get(rs.Kind); ok {
			logger.Info("rule set overrides default",
				logging.Field{Key: "kind", Value: string(rs.Kind)},
				logging.Field{Key: "default", Value: prev.Name},
				logging.Field{Key: "override", Value: rs.Name})
		}
		reg.Register(rs)
	}
	logger.Info("loaded rule sets",
		logging.Field{Key: "dir", Value: dir},
		logging.Field{Key: "overrides", Value: len(overrides)})
	return reg, nil
}
