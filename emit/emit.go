/*
Package emit renders one binding module into registration source text.

The emitter only builds an immutable context value per module and hands
it to the template layer; all layout lives in the templates, all
eligibility and ordering decisions happened upstream. Given identical
resolved input the rendered text is byte-identical across runs: every
range in the templates walks a slice ordered by earlier stages, never a
map.
*/
package emit

import (
	"bytes"
	"embed"
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"text/template"

	"github.com/iancoleman/strcase"

	"github.com/kestrel-engine/bindgen/ir"
	"github.com/kestrel-engine/bindgen/namespace"
)

//go:embed templates/*.go.tmpl
var builtinTemplates embed.FS

// DefaultScriptcorePath is the import path of the script-support module
// used when the workspace does not declare a self-host module.
const DefaultScriptcorePath = "kestrel.dev/kestrel/scriptcore"

var templateFuncMap = template.FuncMap{
	"snake":  strcase.ToSnake,
	"pascal": strcase.ToCamel,
	"camel":  strcase.ToLowerCamel,
	// Renders a (possibly multi-line) doc string as line comments.
	"comment": func(indent, doc string) string {
		var b strings.Builder
		for ln := range strings.Lines(strings.TrimSpace(doc)) {
			b.WriteString(indent)
			b.WriteString("// ")
			b.WriteString(strings.TrimRight(ln, "\n"))
			b.WriteByte('\n')
		}
		return strings.TrimRight(b.String(), "\n")
	},
	"join": strings.Join,
}

// Args is the template argument block controlling emission branches.
type Args struct {
	// SelfIsScriptcore selects the self-reference emission branch: the
	// rendered file is compiled inside the scriptcore module itself, so
	// registry symbols resolve in-package instead of via import.
	SelfIsScriptcore bool
}

// Context is the per-module template context. It is built fresh and
// immutable per emission, so concurrent per-module rendering shares
// nothing.
type Context struct {
	ModuleName  string
	PackageName string
	// Dependencies holds the identifiers of the modules the rendered
	// bindings reference, in global emission order.
	Dependencies []string
	Imports      []ir.ImportDecl
	// ScriptcorePath is the import path of the script-support module.
	ScriptcorePath string
	Args           Args
	// Types holds the ordered eligible types to render.
	Types []*ir.TypeDef
}

// NewContext builds the rendering context for one binding module.
func NewContext(bm *ir.BindingModule, scriptcorePath string) *Context {
	ctx := &Context{
		ModuleName:     bm.Module.Name,
		PackageName:    packageName(bm.Module.Path),
		ScriptcorePath: scriptcorePath,
		Args:           Args{SelfIsScriptcore: bm.Module.SelfHost},
		Imports:        bm.Imports,
		Types:          bm.Types,
	}
	for _, imp := range bm.Imports {
		if imp.SelfSubstitute {
			continue
		}
		ctx.Dependencies = append(ctx.Dependencies, imp.Alias)
	}
	// The template always imports scriptcore; drop a dependency import
	// that would collide with that alias.
	ctx.Imports = slices.DeleteFunc(slices.Clone(ctx.Imports), func(imp ir.ImportDecl) bool {
		return imp.Alias == namespace.SelfAlias && imp.Path == scriptcorePath && !imp.SelfSubstitute
	})
	return ctx
}

func packageName(modPath string) string {
	name := path.Base(modPath)
	name = strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		if r >= 'A' && r <= 'Z' {
			return r - 'A' + 'a'
		}
		return -1
	}, name)
	if name == "" {
		name = "bindings"
	}
	// A package identifier can't start with a digit.
	if name[0] >= '0' && name[0] <= '9' {
		name = "m" + name
	}
	return name
}

// Q qualifies a scriptcore symbol. Inside the scriptcore module itself
// the symbol resolves in-package and stays unqualified.
func (c *Context) Q(sym string) string {
	if c.Args.SelfIsScriptcore {
		return sym
	}
	return namespace.SelfAlias + "." + sym
}

// GoType renders the host type expression for a resolved reference,
// relative to the module being emitted.
func (c *Context) GoType(ref ir.TypeRef) string {
	if ref.IsPrimitive() {
		return ref.Prim
	}
	if ref.Module == "" || ref.Module == c.ModuleName {
		return ref.Name
	}
	return ref.Module + "." + ref.Name
}

// TypeExpr renders the host type expression for a type declaration,
// including bound generic arguments.
func (c *Context) TypeExpr(td *ir.TypeDef) string {
	base := c.GoType(td.Ref())
	if len(td.Generics) == 0 {
		return base
	}
	args := make([]string, len(td.Generics))
	for i, g := range td.Generics {
		args[i] = c.GoType(g.Binding)
	}
	return base + "[" + strings.Join(args, ", ") + "]"
}

// ScriptName derives the script-facing name of a type: snake case, with
// generic bindings suffixed so distinct instantiations stay distinct.
func (c *Context) ScriptName(td *ir.TypeDef) string {
	name := strcase.ToSnake(td.Name)
	for _, g := range td.Generics {
		suffix := g.Binding.Prim
		if suffix == "" {
			suffix = g.Binding.Name
		}
		name += "_" + strcase.ToSnake(suffix)
	}
	return name
}

// Ctor returns the scriptcore constructor for the type's kind.
func (c *Context) Ctor(td *ir.TypeDef) string {
	switch td.Kind {
	case ir.KindStruct:
		return c.Q("ForeignStruct")
	case ir.KindEnum:
		return c.Q("ForeignEnum")
	case ir.KindOpaque:
		return c.Q("ForeignOpaque")
	default:
		panic(fmt.Sprintf("invalid type kind: %d", int(td.Kind)))
	}
}

// RecvExpr renders the receiver binding for a method.
func (c *Context) RecvExpr(m *ir.Method) string {
	var form string
	switch m.Receiver {
	case ir.RecvValue:
		form = "ByValue"
	case ir.RecvRef:
		form = "ByRef"
	case ir.RecvMutRef:
		form = "ByMutRef"
	case ir.RecvStatic:
		form = "Static"
	default:
		panic("programmer error: ineligible receiver form reached emission: " + m.Receiver.String())
	}
	return fmt.Sprintf("%v(%q)", c.Q(form), m.Name)
}

// CollectContext is the context for the shared registration index
// rendered after all per-module emissions.
type CollectContext struct {
	APIName        string
	ScriptcorePath string
	Modules        []CollectModule
}

type CollectModule struct {
	Name string
	Path string
	// SkipImport is set when the module is already covered by the
	// fixed scriptcore import line.
	SkipImport bool
}

// Emitter renders binding modules through the template layer.
type Emitter struct {
	tmpl           *template.Template
	scriptcorePath string
}

// New returns an Emitter using the built-in templates.
// scriptcorePath may be empty to use [DefaultScriptcorePath].
func New(scriptcorePath string) *Emitter {
	return &Emitter{
		tmpl: template.Must(template.New("bindgen").Funcs(templateFuncMap).
			ParseFS(builtinTemplates, "templates/*.go.tmpl")),
		scriptcorePath: orDefaultPath(scriptcorePath),
	}
}

// NewFromDir returns an Emitter using override templates from dir. The
// directory must provide module.go.tmpl and collect.go.tmpl.
func NewFromDir(dir, scriptcorePath string) (*Emitter, error) {
	tmpl, err := template.New("bindgen").Funcs(templateFuncMap).
		ParseGlob(filepath.Join(dir, "*.go.tmpl"))
	if err != nil {
		return nil, fmt.Errorf("load templates from %v: %w", dir, err)
	}
	for _, name := range []string{"module.go.tmpl", "collect.go.tmpl"} {
		if tmpl.Lookup(name) == nil {
			return nil, fmt.Errorf("load templates from %v: missing %v", dir, name)
		}
	}
	return &Emitter{tmpl: tmpl, scriptcorePath: orDefaultPath(scriptcorePath)}, nil
}

func orDefaultPath(p string) string {
	if p == "" {
		return DefaultScriptcorePath
	}
	return p
}

// Emit renders one binding module and returns the text verbatim; no
// post-processing happens here, formatting belongs to the template.
func (e *Emitter) Emit(bm *ir.BindingModule) ([]byte, error) {
	var b bytes.Buffer
	if err := e.tmpl.ExecuteTemplate(&b, "module.go.tmpl", NewContext(bm, e.scriptcorePath)); err != nil {
		return nil, fmt.Errorf("render bindings for %v: %w", bm.Module.Name, err)
	}
	return b.Bytes(), nil
}

// EmitCollect renders the shared index registering every generated
// module, in emission order.
func (e *Emitter) EmitCollect(apiName string, mods []*ir.BindingModule) ([]byte, error) {
	ctx := &CollectContext{
		APIName:        apiName,
		ScriptcorePath: e.scriptcorePath,
	}
	for _, bm := range mods {
		ctx.Modules = append(ctx.Modules, CollectModule{
			Name:       bm.Module.Name,
			Path:       bm.Module.Path,
			SkipImport: bm.Module.Name == namespace.SelfAlias && bm.Module.Path == e.scriptcorePath,
		})
	}
	var b bytes.Buffer
	if err := e.tmpl.ExecuteTemplate(&b, "collect.go.tmpl", ctx); err != nil {
		return nil, fmt.Errorf("render collect module: %w", err)
	}
	return b.Bytes(), nil
}
