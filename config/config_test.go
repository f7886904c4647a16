package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrel-engine/bindgen/ir"
)

func writeConfig(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0666))
	return path
}

func TestDefault(t *testing.T) {
	c := Default()
	require.Equal(t, "bindings", c.APIName)
	require.Equal(t, "bindings", c.OutputDir)
	require.NotEmpty(t, c.CacheFile)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "bindgen.toml", `
api-name = "scriptapi"
self-host = "core"
primitives = ["complex128"]
workers = 4

[[rule]]
select.module = "internal"
action.include = false
`)

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "scriptapi", c.APIName)
	require.Equal(t, "core", c.SelfHost)
	require.Equal(t, []string{"complex128"}, c.Primitives)
	require.Equal(t, 4, c.Workers)
	require.Len(t, c.Rules, 1)

	// Defaults fill the unset fields.
	require.Equal(t, "bindings", c.OutputDir)
}

func TestLoadImports(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	writeConfig(t, dir, "base.toml", `
api-name = "scriptapi"
primitives = ["uintptr"]

[[rule]]
select.type = "Deprecated"
action.include = false
`)
	path := writeConfig(t, dir, "bindgen.toml", `
imports = ["base.toml"]
primitives = ["complex128"]

[[rule]]
select.type = "DeprecatedButNeeded"
action.include = true
`)

	c, err := Load(path)
	require.NoError(t, err)
	// Scalars from the importing file win; slices append.
	require.Equal(t, "scriptapi", c.APIName)
	require.Equal(t, []string{"complex128", "uintptr"}, c.Primitives)
	require.Len(t, c.Rules, 2)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing_file", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "nope.toml"))
		var cErr *Error
		require.ErrorAs(t, err, &cErr)
	})

	t.Run("unknown_key", func(t *testing.T) {
		path := writeConfig(t, dir, "unknown.toml", `api-nam = "typo"`)
		_, err := Load(path)
		var cErr *Error
		require.ErrorAs(t, err, &cErr)
		require.Contains(t, cErr.String(), "unknown.toml")
	})

	t.Run("bad_pattern", func(t *testing.T) {
		path := writeConfig(t, dir, "badre.toml", `
[[rule]]
select.type = "]["
action.include = false
`)
		_, err := Load(path)
		require.Error(t, err)
	})
}

func TestInclude(t *testing.T) {
	c, err := Load(writeConfig(t, t.TempDir(), "bindgen.toml", `
[[rule]]
select.module = "^internal"
action.include = false

[[rule]]
select.module = "^internal$"
select.type = "^Clock$"
action.include = true
`))
	require.NoError(t, err)

	td := func(module, name string) *ir.TypeDef {
		return &ir.TypeDef{Module: module, Name: name}
	}

	// No matching rule: included.
	require.True(t, c.Include(td("core", "Transform")))
	require.False(t, c.Include(td("internal", "Scratch")))
	// The last matching rule wins.
	require.True(t, c.Include(td("internal", "Clock")))
}

func TestIncludeNoRules(t *testing.T) {
	require.True(t, Default().Include(&ir.TypeDef{Module: "core", Name: "Point"}))
}
