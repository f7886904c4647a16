package ir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	for _, s := range []string{"struct", "enum", "opaque"} {
		k, ok := ParseKind(s)
		require.True(t, ok)
		require.Equal(t, s, k.String())
	}
	_, ok := ParseKind("union")
	require.False(t, ok)
}

func TestParseReceiver(t *testing.T) {
	for _, s := range []string{"value", "ref", "mut-ref", "static"} {
		r, ok := ParseReceiver(s)
		require.True(t, ok)
		require.True(t, r.Supported())
		require.Equal(t, s, r.String())
	}
	r, ok := ParseReceiver("raw-pointer")
	require.False(t, ok)
	require.Equal(t, RecvUnsupported, r)
	require.False(t, r.Supported())
}

func TestTypeRefString(t *testing.T) {
	require.Equal(t, "<none>", TypeRef{}.String())
	require.Equal(t, "float64", TypeRef{Prim: "float64"}.String())
	require.Equal(t, "Point", TypeRef{Name: "Point"}.String())
	require.Equal(t, "core::Point", TypeRef{Module: "core", Name: "Point"}.String())
}

func TestModuleClone(t *testing.T) {
	orig := &Module{
		Name: "core",
		Deps: []string{"math"},
		Types: []*TypeDef{{
			Module:   "core",
			Name:     "Point",
			Reflect:  true,
			Exported: true,
			Generics: []GenericParam{{Name: "T", Binding: TypeRef{Prim: "float64"}}},
			Fields:   []*Field{{Name: "X", Type: TypeRef{Prim: "float64"}}},
			Methods:  []*Method{{Name: "Scale", Params: []TypeRef{{Prim: "float64"}}}},
		}},
	}

	clone := orig.Clone()
	require.Equal(t, orig, clone)

	clone.Deps[0] = "changed"
	clone.Types[0].Eligible = true
	clone.Types[0].Fields[0].Eligible = true
	clone.Types[0].Methods[0].Params[0] = TypeRef{Prim: "string"}
	clone.Types[0].Generics[0].Binding = TypeRef{Prim: "int"}

	require.Equal(t, "math", orig.Deps[0])
	require.False(t, orig.Types[0].Eligible)
	require.False(t, orig.Types[0].Fields[0].Eligible)
	require.Equal(t, TypeRef{Prim: "float64"}, orig.Types[0].Methods[0].Params[0])
	require.Equal(t, TypeRef{Prim: "float64"}, orig.Types[0].Generics[0].Binding)
}

func TestFingerprintParse(t *testing.T) {
	fp := Fingerprint(0xdeadbeef12345678)
	require.Equal(t, "deadbeef12345678", fp.String())
	parsed, err := ParseFingerprint(fp.String())
	require.NoError(t, err)
	require.Equal(t, fp, parsed)

	_, err = ParseFingerprint("not-hex")
	require.Error(t, err)
}

func testBindingModule() *BindingModule {
	return &BindingModule{
		Module: &Module{Name: "geometry"},
		Imports: []ImportDecl{
			{Alias: "core", Path: "kestrel.dev/kestrel/core"},
		},
		Types: []*TypeDef{{
			Module:   "geometry",
			Name:     "Point",
			Kind:     KindStruct,
			Reflect:  true,
			Exported: true,
			Eligible: true,
			Fields: []*Field{
				{Name: "X", Type: TypeRef{Prim: "float64"}, Eligible: true},
				{Name: "Y", Type: TypeRef{Prim: "float64"}, Eligible: true},
			},
			Methods: []*Method{
				{Name: "Scale", Receiver: RecvMutRef, Params: []TypeRef{{Prim: "float64"}}, Eligible: true},
				{Name: "Raw", Receiver: RecvUnsupported}, // ineligible
			},
		}},
	}
}

func TestFingerprintStable(t *testing.T) {
	require.Equal(t,
		testBindingModule().Fingerprint(),
		testBindingModule().Fingerprint())
}

func TestFingerprintCoversResolvedModel(t *testing.T) {
	base := testBindingModule().Fingerprint()

	// Dropping an eligible member changes the fingerprint.
	bm := testBindingModule()
	bm.Types[0].Methods[0].Eligible = false
	require.NotEqual(t, base, bm.Fingerprint())

	// Imports are covered.
	bm = testBindingModule()
	bm.Imports[0].Path = "kestrel.dev/kestrel/core/v2"
	require.NotEqual(t, base, bm.Fingerprint())

	// The self-host flag is covered.
	bm = testBindingModule()
	bm.Module.SelfHost = true
	require.NotEqual(t, base, bm.Fingerprint())

	// Ineligible members are not covered: removing one entirely is
	// equivalent to having dropped it.
	bm = testBindingModule()
	bm.Types[0].Methods = bm.Types[0].Methods[:1]
	require.Equal(t, base, bm.Fingerprint())

	// Doc strings render into the output, so they are content too.
	bm = testBindingModule()
	bm.Types[0].Doc = "A 2D point."
	require.NotEqual(t, base, bm.Fingerprint())
}
