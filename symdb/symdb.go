/*
Package symdb normalizes externally produced symbol database metadata
into the model in package ir.

The metadata schema is owned by the compiler-side analysis plugin, not by
this package; we only validate per-module local structure here.
Cross-module type references are left unresolved on purpose, the
eligibility resolver deals with those.
*/
package symdb

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/kestrel-engine/bindgen/ir"
)

// MalformedMetadataError reports metadata that is missing required fields
// or carries values outside the schema. It aborts the whole run: input is
// untrusted until it passes this stage.
type MalformedMetadataError struct {
	File   string // source file, if known
	Module string // module identifier, if known
	Symbol string // offending symbol, if known
	Reason string
}

func (e *MalformedMetadataError) Error() string {
	var b strings.Builder
	b.WriteString("malformed metadata")
	if e.File != "" {
		b.WriteString(" in ")
		b.WriteString(e.File)
	}
	if e.Module != "" {
		fmt.Fprintf(&b, " (module %v", e.Module)
		if e.Symbol != "" {
			fmt.Fprintf(&b, ", symbol %v", e.Symbol)
		}
		b.WriteString(")")
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	return b.String()
}

// Raw metadata documents. These mirror the analysis plugin's JSON layout;
// kinds and receiver forms arrive as strings and are validated here.
type rawSet struct {
	Modules []rawModule `json:"modules"`
}

type rawModule struct {
	Name     string    `json:"name"`
	Version  string    `json:"version"`
	Path     string    `json:"path"`
	SelfHost bool      `json:"self_host"`
	Deps     []string  `json:"deps"`
	Types    []rawType `json:"types"`
}

type rawType struct {
	Name     string       `json:"name"`
	Kind     string       `json:"kind"`
	Doc      string       `json:"doc"`
	Reflect  bool         `json:"reflect"`
	Exported bool         `json:"exported"`
	Generics []rawGeneric `json:"generics"`
	Fields   []rawField   `json:"fields"`
	Methods  []rawMethod  `json:"methods"`
}

type rawGeneric struct {
	Name    string     `json:"name"`
	Binding ir.TypeRef `json:"binding"`
}

type rawField struct {
	Name   string     `json:"name"`
	Type   ir.TypeRef `json:"type"`
	Doc    string     `json:"doc"`
	Ignore bool       `json:"ignore"`
}

type rawMethod struct {
	Name     string       `json:"name"`
	Receiver string       `json:"receiver"`
	Params   []ir.TypeRef `json:"params"`
	Return   ir.TypeRef   `json:"return"`
	Doc      string       `json:"doc"`
}

// Load reads one metadata document and returns the normalized modules,
// sorted by identifier. Pure transform, no resolution.
func Load(r io.Reader) ([]*ir.Module, error) {
	return load(r, "")
}

// LoadFile is [Load] on a file, with the file name attached to errors.
func LoadFile(path string) ([]*ir.Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return load(f, path)
}

// LoadDir loads every .json document in dir and merges the result, in
// the manner of a metadata output directory written by the analysis
// plugin (one document per module, but combined documents work too).
//
// Duplicate entries for the same module identifier are allowed across
// documents; the entry with the highest semantic version wins.
func LoadDir(dir string) ([]*ir.Module, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var all []*ir.Module
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		mods, err := LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		all = append(all, mods...)
	}
	return dedupe(all), nil
}

func load(r io.Reader, file string) ([]*ir.Module, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var raw rawSet
	if err := dec.Decode(&raw); err != nil {
		return nil, &MalformedMetadataError{File: file, Reason: err.Error()}
	}

	var mods []*ir.Module
	for _, rm := range raw.Modules {
		mod, err := normalizeModule(rm, file)
		if err != nil {
			return nil, err
		}
		mods = append(mods, mod)
	}
	return dedupe(mods), nil
}

func normalizeModule(rm rawModule, file string) (*ir.Module, error) {
	malformed := func(symbol, format string, args ...any) error {
		return &MalformedMetadataError{
			File:   file,
			Module: rm.Name,
			Symbol: symbol,
			Reason: fmt.Sprintf(format, args...),
		}
	}

	if rm.Name == "" {
		return nil, malformed("", "module is missing its identifier")
	}
	if rm.Version != "" && !semver.IsValid(rm.Version) {
		return nil, malformed("", "invalid module version %q", rm.Version)
	}

	mod := &ir.Module{
		Name:     rm.Name,
		Version:  rm.Version,
		Path:     rm.Path,
		SelfHost: rm.SelfHost,
	}
	if mod.Path == "" {
		mod.Path = rm.Name
	}

	// Self-reference arrives as a graph edge from some producers; the
	// model carries it as a flag so the dependency graph stays a DAG.
	for _, dep := range rm.Deps {
		if dep == "" {
			return nil, malformed("", "empty dependency identifier")
		}
		if dep == rm.Name {
			continue
		}
		mod.Deps = append(mod.Deps, dep)
	}
	slices.Sort(mod.Deps)
	mod.Deps = slices.Compact(mod.Deps)

	for _, rt := range rm.Types {
		if rt.Name == "" {
			return nil, malformed("", "type is missing its name")
		}
		kind, ok := ir.ParseKind(rt.Kind)
		if !ok {
			return nil, malformed(rt.Name, "unknown type kind %q", rt.Kind)
		}
		td := &ir.TypeDef{
			Module:   rm.Name,
			Name:     rt.Name,
			Kind:     kind,
			Doc:      rt.Doc,
			Reflect:  rt.Reflect,
			Exported: rt.Exported,
		}
		for _, g := range rt.Generics {
			if g.Name == "" {
				return nil, malformed(rt.Name, "generic parameter is missing its name")
			}
			td.Generics = append(td.Generics, ir.GenericParam{Name: g.Name, Binding: g.Binding})
		}
		for _, rf := range rt.Fields {
			if rf.Name == "" {
				return nil, malformed(rt.Name, "field is missing its name")
			}
			if rf.Type.IsZero() && !rf.Ignore {
				return nil, malformed(rt.Name+"."+rf.Name, "field is missing its type")
			}
			td.Fields = append(td.Fields, &ir.Field{
				Name:   rf.Name,
				Type:   rf.Type,
				Doc:    rf.Doc,
				Ignore: rf.Ignore,
			})
		}
		for _, rmt := range rt.Methods {
			if rmt.Name == "" {
				return nil, malformed(rt.Name, "method is missing its name")
			}
			if rmt.Receiver == "" {
				return nil, malformed(rt.Name+"."+rmt.Name, "method is missing its receiver form")
			}
			// Unknown receiver forms are kept; the eligibility
			// resolver drops those methods with a warning.
			recv, _ := ir.ParseReceiver(rmt.Receiver)
			td.Methods = append(td.Methods, &ir.Method{
				Name:     rmt.Name,
				Receiver: recv,
				Params:   rmt.Params,
				Return:   rmt.Return,
				Doc:      rmt.Doc,
			})
		}
		mod.Types = append(mod.Types, td)
	}

	// Deterministic type order regardless of metadata order.
	slices.SortStableFunc(mod.Types, func(a, b *ir.TypeDef) int {
		return strings.Compare(a.Name, b.Name)
	})
	for i := 1; i < len(mod.Types); i++ {
		if mod.Types[i].Name == mod.Types[i-1].Name {
			return nil, malformed(mod.Types[i].Name, "duplicate type declaration")
		}
	}

	return mod, nil
}

// dedupe keeps one entry per module identifier (highest version wins)
// and returns the set sorted by identifier.
func dedupe(mods []*ir.Module) []*ir.Module {
	byName := map[string]*ir.Module{}
	for _, m := range mods {
		prev, ok := byName[m.Name]
		if !ok || semver.Compare(prev.Version, m.Version) < 0 {
			byName[m.Name] = m
		}
	}
	res := make([]*ir.Module, 0, len(byName))
	for _, m := range byName {
		res = append(res, m)
	}
	slices.SortFunc(res, func(a, b *ir.Module) int {
		return strings.Compare(a.Name, b.Name)
	})
	return res
}
