// Package config loads the generator's TOML configuration, with support
// for file imports merged in the order they are listed.
package config

import (
	"bytes"
	"errors"
	"os"
	"regexp"
	"strconv"

	"dario.cat/mergo"
	"github.com/pelletier/go-toml/v2"

	"github.com/kestrel-engine/bindgen/ir"
)

// Pattern is a regexp usable directly in TOML values.
type Pattern struct {
	*regexp.Regexp
}

func (p *Pattern) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Pattern) UnmarshalText(text []byte) error {
	re, err := regexp.Compile(string(text))
	if err != nil {
		return err
	}
	p.Regexp = re
	return nil
}

// Rule selects types by module/type name and controls their inclusion.
// Rules apply in order; the last matching rule wins.
type Rule struct {
	Select struct {
		Module *Pattern `toml:"module"`
		Type   *Pattern `toml:"type"`
	} `toml:"select"`
	Actions struct {
		Include *bool `toml:"include"`
	} `toml:"action"`
}

func (r *Rule) matches(td *ir.TypeDef) bool {
	if r.Select.Module != nil && !r.Select.Module.MatchString(td.Module) {
		return false
	}
	if r.Select.Type != nil && !r.Select.Type.MatchString(td.Name) {
		return false
	}
	return r.Select.Module != nil || r.Select.Type != nil
}

type Config struct {
	Imports []string `toml:"imports"`

	// APIName is the package name of the shared registration index.
	APIName string `toml:"api-name"`
	// SelfHost overrides which module is treated as the host of the
	// script-support scaffolding.
	SelfHost string `toml:"self-host"`
	// ScriptcorePath overrides the import path of the script-support
	// module in generated code.
	ScriptcorePath string `toml:"scriptcore-path"`
	// Primitives extends the primitive kind allow-list.
	Primitives []string `toml:"primitives"`
	// TemplateDir points at override templates; empty uses built-ins.
	TemplateDir string `toml:"template-dir"`
	CacheFile   string `toml:"cache-file"`
	OutputDir   string `toml:"output-dir"`
	// Workers bounds per-module parallelism; 0 means GOMAXPROCS.
	Workers int `toml:"workers"`

	Rules []Rule `toml:"rule"`
}

// Include decides whether a type takes part in the run at all, per the
// configured rules. Types excluded here are filtered before eligibility
// resolution, without warnings.
func (c *Config) Include(td *ir.TypeDef) bool {
	include := true
	for i := range c.Rules {
		r := &c.Rules[i]
		if r.Actions.Include != nil && r.matches(td) {
			include = *r.Actions.Include
		}
	}
	return include
}

// Error carries the file a configuration error originates from.
type Error struct {
	filePath string
	err      error  // short, single-line error
	str      string // full, multi-line error string, or err string, if none
}

// Error returns a short error message.
func (e *Error) Error() string {
	return e.filePath + ": " + e.err.Error()
}

// String returns the full multi-line error string.
func (e *Error) String() string {
	if e.str != "" {
		return "Error in file " + strconv.Quote(e.filePath) + ":\n" + e.str
	}
	return e.Error()
}

func (e *Error) Unwrap() error {
	return e.err
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		APIName:   "bindings",
		OutputDir: "bindings",
		CacheFile: "bindgen.cache.json",
	}
}

func Load(path string) (_ *Config, err error) {
	defer func() {
		if err != nil {
			if tErr := (&toml.DecodeError{}); errors.As(err, &tErr) {
				err = &Error{filePath: path, err: err, str: tErr.String()}
			} else if tErr := (&toml.StrictMissingError{}); errors.As(err, &tErr) {
				err = &Error{filePath: path, err: err, str: tErr.String()}
			} else {
				err = &Error{filePath: path, err: err}
			}
		}
	}()

	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	c := &Config{}
	err = toml.NewDecoder(bytes.NewReader(file)).
		DisallowUnknownFields().
		Decode(&c)
	if err != nil {
		return nil, err
	}

	var importedCs []*Config // collect imported files first so their imports don't leak into our file's imports
	for _, imp := range c.Imports {
		newC, err := Load(imp)
		if err != nil {
			return nil, err
		}
		importedCs = append(importedCs, newC)
	}
	for _, newC := range importedCs {
		if err := mergo.Merge(c, newC, mergo.WithAppendSlice); err != nil {
			return nil, err
		}
	}

	if err := mergo.Merge(c, Default()); err != nil {
		return nil, err
	}
	return c, nil
}
