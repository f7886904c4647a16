package symdb

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"

	"github.com/kestrel-engine/bindgen/ir"
)

func TestLoad(t *testing.T) {
	mods, err := Load(strings.NewReader(`{
		"modules": [
			{
				"name": "geometry",
				"version": "v0.3.0",
				"path": "kestrel.dev/kestrel/geometry",
				"deps": ["core", "geometry", "core"],
				"types": [
					{
						"name": "Point",
						"kind": "struct",
						"reflect": true,
						"exported": true,
						"fields": [
							{"name": "X", "type": {"prim": "float64"}},
							{"name": "Y", "type": {"prim": "float64"}}
						],
						"methods": [
							{"name": "Scale", "receiver": "mut-ref", "params": [{"prim": "float64"}]},
							{"name": "AsPtr", "receiver": "raw-pointer"}
						]
					},
					{
						"name": "Aabb",
						"kind": "struct",
						"reflect": true,
						"exported": true,
						"fields": [
							{"name": "Min", "type": {"type": "Point"}},
							{"name": "Max", "type": {"type": "Point"}}
						]
					}
				]
			},
			{"name": "core", "self_host": true}
		]
	}`))
	require.NoError(t, err)
	require.Len(t, mods, 2)

	// Sorted by identifier.
	core, geom := mods[0], mods[1]
	require.Equal(t, "core", core.Name)
	require.Equal(t, "geometry", geom.Name)

	require.True(t, core.SelfHost)
	require.Equal(t, "core", core.Path) // defaults to the identifier

	// Self-dependency dropped, duplicates compacted.
	require.Equal(t, []string{"core"}, geom.Deps)

	// Types sorted by name regardless of metadata order.
	require.Equal(t, "Aabb", geom.Types[0].Name)
	require.Equal(t, "Point", geom.Types[1].Name)

	point := geom.Type("Point")
	require.NotNil(t, point)
	require.Equal(t, "geometry", point.Module)
	require.Equal(t, ir.KindStruct, point.Kind)
	require.Equal(t, ir.RecvMutRef, point.Methods[0].Receiver)
	// Unknown receiver forms load as unsupported instead of failing.
	require.Equal(t, ir.RecvUnsupported, point.Methods[1].Receiver)
}

func TestLoadMalformed(t *testing.T) {
	cases := []struct {
		name   string
		doc    string
		reason string
	}{
		{
			"missing_module_name",
			`{"modules": [{"version": "v1.0.0"}]}`,
			"module is missing its identifier",
		},
		{
			"invalid_version",
			`{"modules": [{"name": "a", "version": "1.0"}]}`,
			`invalid module version "1.0"`,
		},
		{
			"empty_dep",
			`{"modules": [{"name": "a", "deps": [""]}]}`,
			"empty dependency identifier",
		},
		{
			"unknown_kind",
			`{"modules": [{"name": "a", "types": [{"name": "T", "kind": "union"}]}]}`,
			`unknown type kind "union"`,
		},
		{
			"missing_field_type",
			`{"modules": [{"name": "a", "types": [{"name": "T", "kind": "struct", "fields": [{"name": "X"}]}]}]}`,
			"field is missing its type",
		},
		{
			"missing_receiver",
			`{"modules": [{"name": "a", "types": [{"name": "T", "kind": "struct", "methods": [{"name": "M"}]}]}]}`,
			"method is missing its receiver form",
		},
		{
			"duplicate_type",
			`{"modules": [{"name": "a", "types": [{"name": "T", "kind": "struct"}, {"name": "T", "kind": "enum"}]}]}`,
			"duplicate type declaration",
		},
		{
			"unknown_json_field",
			`{"modules": [{"name": "a", "typo": true}]}`,
			"unknown field",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(c.doc))
			var mErr *MalformedMetadataError
			require.ErrorAs(t, err, &mErr)
			require.Contains(t, mErr.Reason, c.reason)
		})
	}
}

func TestLoadIgnoredFieldWithoutType(t *testing.T) {
	mods, err := Load(strings.NewReader(`{"modules": [{
		"name": "a",
		"types": [{"name": "T", "kind": "struct", "fields": [{"name": "X", "ignore": true}]}]
	}]}`))
	require.NoError(t, err)
	require.True(t, mods[0].Types[0].Fields[0].Ignore)
}

var metaDirFixture = []byte(`Metadata directory as written by the analysis plugin: one document
per module, plus an older duplicate of core and a non-metadata file.
-- core.json --
{"modules": [{"name": "core", "version": "v0.4.0", "self_host": true, "types": [
	{"name": "Transform", "kind": "struct", "reflect": true, "exported": true}
]}]}
-- core_old.json --
{"modules": [{"name": "core", "version": "v0.3.9", "self_host": true}]}
-- geometry.json --
{"modules": [{"name": "geometry", "deps": ["core"], "types": [
	{"name": "Point", "kind": "struct", "reflect": true, "exported": true}
]}]}
-- notes.txt --
not metadata
`)

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	for _, f := range txtar.Parse(metaDirFixture).Files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f.Name), f.Data, 0666))
	}

	mods, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, mods, 2)
	require.Equal(t, "core", mods[0].Name)
	require.Equal(t, "geometry", mods[1].Name)

	// The highest-versioned duplicate wins.
	require.Equal(t, "v0.4.0", mods[0].Version)
	require.NotNil(t, mods[0].Type("Transform"))
}
