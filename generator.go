/*
Package bindgen generates script binding modules for reflected types in
an engine workspace.

A run is a single pass over five strictly sequential stages: symbol
database loading, dependency ordering, eligibility resolution, namespace
reconciliation and emission. Within the later stages per-module work is
independent and runs on worker goroutines; the incremental cache is the
only shared mutable resource.

A run either produces bindings for every module (possibly with some
types or methods excluded, listed as warnings) or fails fast with a
typed error before producing any output.
*/
package bindgen

import (
	"fmt"
	"runtime"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kestrel-engine/bindgen/cache"
	"github.com/kestrel-engine/bindgen/config"
	"github.com/kestrel-engine/bindgen/depgraph"
	"github.com/kestrel-engine/bindgen/emit"
	"github.com/kestrel-engine/bindgen/ir"
	"github.com/kestrel-engine/bindgen/namespace"
	"github.com/kestrel-engine/bindgen/resolve"
)

// Options configures a generation run. The zero value works: default
// config, fresh in-memory cache, built-in templates.
type Options struct {
	Config *config.Config
	// Cache persists across runs; nil means a fresh in-memory cache.
	Cache *cache.Cache
	// Emitter overrides the template layer; nil uses the built-in
	// templates with the workspace's scriptcore path.
	Emitter *emit.Emitter
}

// Output is the rendered binding module for one input module.
type Output struct {
	Module      string
	FileName    string
	Text        []byte
	Fingerprint ir.Fingerprint
	// FromCache is set when emission was skipped entirely for this
	// module.
	FromCache bool
}

// Result of a successful run, in emission order.
type Result struct {
	Outputs []*Output
	// Collect is the shared registration index covering every output.
	Collect []byte
	// Warnings lists per-symbol exclusions and empty-output notices.
	// They never fail a run.
	Warnings []error
	// CacheHits counts outputs served from the incremental cache.
	CacheHits int
}

// Generate runs the whole pipeline over the loaded modules.
func Generate(mods []*ir.Module, opts Options) (*Result, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	store := opts.Cache
	if store == nil {
		store = cache.New()
	}

	mods = applyConfig(mods, cfg)

	ordered, err := depgraph.Order(mods)
	if err != nil {
		return nil, err
	}
	Logger().Debug("ordered modules", zap.Int("count", len(ordered)))

	scriptcorePath := cfg.ScriptcorePath
	for _, m := range ordered {
		if m.SelfHost {
			scriptcorePath = m.Path
			break
		}
	}
	emitter := opts.Emitter
	if emitter == nil {
		if cfg.TemplateDir != "" {
			emitter, err = emit.NewFromDir(cfg.TemplateDir, scriptcorePath)
			if err != nil {
				return nil, err
			}
		} else {
			emitter = emit.New(scriptcorePath)
		}
	}

	resolver := resolve.New(ordered, cfg.Primitives...)

	// Per-module results land in fixed slots so the output order stays
	// the emission order no matter how workers interleave.
	resolved := make([]*ir.Module, len(ordered))
	outputs := make([]*Output, len(ordered))
	bindingMods := make([]*ir.BindingModule, len(ordered))
	warnings := make([][]error, len(ordered))

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	// Resolution finishes for every module before reconciliation
	// starts: the import computation reads the annotated types of the
	// module's dependencies.
	var rg errgroup.Group
	rg.SetLimit(workers)
	for i, mod := range ordered {
		rg.Go(func() error {
			mod, warns := resolver.Resolve(mod)
			if merr, ok := warns.(*multierror.Error); ok {
				warnings[i] = append(warnings[i], merr.Errors...)
			} else if warns != nil {
				warnings[i] = append(warnings[i], warns)
			}
			resolved[i] = mod
			return nil
		})
	}
	rg.Wait()

	var g errgroup.Group
	g.SetLimit(workers)
	for i, mod := range resolved {
		g.Go(func() error {
			bm := &ir.BindingModule{
				Module:  mod,
				Imports: namespace.Reconcile(mod, resolved),
				Types:   resolve.EligibleTypes(mod),
			}
			bindingMods[i] = bm
			if bm.Empty() {
				warnings[i] = append(warnings[i],
					fmt.Errorf("%v: no eligible types or methods, emitting empty bindings", mod.Name))
			}
			for _, name := range namespace.Ambiguities(bm.Imports, resolved) {
				warnings[i] = append(warnings[i],
					fmt.Errorf("%v: type name %v exported by multiple dependencies, references stay fully qualified", mod.Name, name))
			}

			out := &Output{
				Module:      mod.Name,
				FileName:    mod.Name + ".go",
				Fingerprint: bm.Fingerprint(),
			}
			if text, ok := store.Get(out.Fingerprint); ok {
				out.Text = text
				out.FromCache = true
				Logger().Debug("cache hit", zap.String("module", mod.Name),
					zap.Stringer("fingerprint", out.Fingerprint))
			} else {
				text, err := emitter.Emit(bm)
				if err != nil {
					return err
				}
				out.Text = text
				store.Put(mod.Name, out.Fingerprint, text, typeNames(bm))
			}
			outputs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	collect, err := emitter.EmitCollect(cfg.APIName, bindingMods)
	if err != nil {
		return nil, err
	}

	res := &Result{Outputs: outputs, Collect: collect}
	for i, out := range outputs {
		res.Warnings = append(res.Warnings, warnings[i]...)
		if out.FromCache {
			res.CacheHits++
		}
	}
	return res, nil
}

// applyConfig filters out rule-excluded types and applies the self-host
// override on deep copies, leaving the caller's modules untouched.
func applyConfig(mods []*ir.Module, cfg *config.Config) []*ir.Module {
	res := make([]*ir.Module, len(mods))
	for i, m := range mods {
		mod := m.Clone()
		if cfg.SelfHost != "" {
			mod.SelfHost = mod.Name == cfg.SelfHost
		}
		var kept []*ir.TypeDef
		for _, td := range mod.Types {
			if cfg.Include(td) {
				kept = append(kept, td)
			} else {
				Logger().Debug("type excluded by rule",
					zap.String("module", td.Module), zap.String("type", td.Name))
			}
		}
		mod.Types = kept
		res[i] = mod
	}
	return res
}

func typeNames(bm *ir.BindingModule) []string {
	res := make([]string, len(bm.Types))
	for i, t := range bm.Types {
		res[i] = t.Name
	}
	return res
}
