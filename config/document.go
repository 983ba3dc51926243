// Package config implements the mutable JSON configuration document spec
// §4.L describes: merging JSON from the command line, files, and direct
// strings, an immutable command-line overlay, ${name} variable
// substitution, JSON-Pointer read-through access, and JSON-Schema
// validation against the resource schemas in §6.
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/imdario/mergo"
	"github.com/spf13/viper"

	liberr "github.com/yohummus/yogi-framework-sub001/internal/errs"
)

// Document is a JSON tree built by merging, in order, every file matched by
// the configured glob patterns and every direct JSON string passed to
// MergeJSON, with the command-line overlay and ${name} substitution
// applied on top whenever the document is read. CLI overrides therefore
// always win on read even though MergeFiles/MergeJSON may run afterward.
type Document struct {
	mu sync.RWMutex

	vpr       *viper.Viper
	overlay   map[string]interface{}
	variables map[string]interface{}

	noSubstitution bool

	// mutableCmdLine mirrors the --override semantics of spec §4.L: when
	// false (the default), overlay entries are fixed at construction and
	// Update never touches them; when true, --override values are merged
	// into the document instead and can be changed later like any other
	// key.
	mutableCmdLine bool
}

// NewDocument returns an empty Document. mutableCmdLine controls whether
// command-line overrides behave as a fixed overlay (false, the default
// spec §4.L behavior) or as regular mutable document content (true).
func NewDocument(mutableCmdLine bool) *Document {
	v := viper.New()
	v.SetConfigType("json")
	return &Document{
		vpr:            v,
		overlay:        map[string]interface{}{},
		variables:      map[string]interface{}{},
		mutableCmdLine: mutableCmdLine,
	}
}

// DisableVariableSubstitution turns off ${name} expansion entirely; any
// later Get/Validate leaves literal "${...}" text untouched. Intended for
// embedders that never call SetVariable and want to avoid paying for the
// tree walk (spec §4.L describes substitution as an opt-in feature).
func (d *Document) DisableVariableSubstitution() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.noSubstitution = true
}

// MergeJSON merge-patches raw JSON-object bytes over the document's
// current content. Later calls win over earlier ones, key by key.
func (d *Document) MergeJSON(raw []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := d.vpr.MergeConfig(bytes.NewReader(raw)); err != nil {
		return liberr.ParsingJsonFailed.Error(err)
	}
	return nil
}

// MergeFiles expands every glob pattern in patterns (via filepath.Glob) and
// merges each matched file's JSON content in lexical match order, mirroring
// the Files flag bit of the command-line parser (spec §4.L). A pattern that
// matches nothing is treated as a literal path, so plain filenames without
// glob metacharacters still work.
func (d *Document) MergeFiles(patterns []string) error {
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return liberr.ParsingFileFailed.Error(err)
		}
		if len(matches) == 0 {
			matches = []string{pattern}
		}
		for _, path := range matches {
			raw, err := os.ReadFile(path)
			if err != nil {
				return liberr.ParsingFileFailed.Error(err)
			}
			if err := d.MergeJSON(raw); err != nil {
				return err
			}
		}
	}
	return nil
}

// SetVariable records name=value under /variables/name for ${name}
// substitution (spec §4.L).
func (d *Document) SetVariable(name string, value interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.variables[name] = value
}

// SetOverride applies a single JSON-Pointer=value override. When the
// Document was constructed with mutableCmdLine false, the override is kept
// in the immutable overlay and survives any later Update; otherwise it is
// merged directly into the mutable document.
func (d *Document) SetOverride(pointer string, value interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.mutableCmdLine {
		return d.mergeIntoViper(map[string]interface{}{}, pointer, value)
	}
	return setAtPointer(d.overlay, pointer, value)
}

func (d *Document) mergeIntoViper(scratch map[string]interface{}, pointer string, value interface{}) error {
	if err := setAtPointer(scratch, pointer, value); err != nil {
		return err
	}
	return d.vpr.MergeConfigMap(scratch)
}

// MergeOverrideJSON merge-patches a JSON object of overrides the same way
// SetOverride does for a single pointer, following the --override flag's
// "JSON object OR /pointer=value" dual syntax (spec §4.L).
func (d *Document) MergeOverrideJSON(obj map[string]interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.mutableCmdLine {
		return d.vpr.MergeConfigMap(obj)
	}
	return mergo.Merge(&d.overlay, obj, mergo.WithOverride)
}

// Update merge-patches patch over the mutable document. The immutable
// overlay, if any, is untouched and keeps taking precedence on read.
func (d *Document) Update(patch map[string]interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.vpr.MergeConfigMap(patch); err != nil {
		return liberr.ConfigNotValid.Error(err)
	}
	return nil
}

// resolved returns the document with the overlay merged on top, the
// /variables section populated from SetVariable, and every ${name}
// reference substituted, without mutating the stored content.
func (d *Document) resolved() (map[string]interface{}, error) {
	d.mu.RLock()
	base := d.vpr.AllSettings()
	overlay := d.overlay
	vars := d.variables
	substitute := !d.noSubstitution
	d.mu.RUnlock()

	if len(overlay) > 0 {
		if err := mergo.Merge(&base, overlay, mergo.WithOverride); err != nil {
			return nil, err
		}
	}

	if len(vars) > 0 {
		merged := map[string]interface{}{}
		if existing, ok := base["variables"].(map[string]interface{}); ok {
			_ = mergo.Merge(&merged, existing)
		}
		_ = mergo.Merge(&merged, vars, mergo.WithOverride)
		base["variables"] = merged
	}

	if substitute {
		if err := substituteTree(base); err != nil {
			return nil, err
		}
	}
	return base, nil
}

func parseJSONObjectString(raw string) (map[string]interface{}, error) {
	var out map[string]interface{}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
