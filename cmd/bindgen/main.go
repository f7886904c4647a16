package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"

	"github.com/kestrel-engine/bindgen"
	"github.com/kestrel-engine/bindgen/cache"
	"github.com/kestrel-engine/bindgen/config"
	"github.com/kestrel-engine/bindgen/depgraph"
	"github.com/kestrel-engine/bindgen/symdb"
)

var (
	optMeta    string
	optOut     string
	optConfig  string
	optCache   string
	optAPI     string
	optDOT     string
	optVerbose bool
)

func init() {
	flag.StringVar(&optMeta, "meta", "meta", "directory containing symbol metadata files")
	flag.StringVar(&optOut, "out", "", "output directory for generated files (overrides config)")
	flag.StringVar(&optConfig, "config", "", "config file (TOML)")
	flag.StringVar(&optCache, "cache", "", "cache file (.json or .cbor; overrides config)")
	flag.StringVar(&optAPI, "api", "", "name of the collect module (overrides config)")
	flag.StringVar(&optDOT, "dot", "", "write the module dependency graph in DOT format to this file")
	flag.BoolVar(&optVerbose, "v", false, "verbose logging")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), `usage: bindgen [options...]

options:
`)
		flag.PrintDefaults()
		fmt.Fprintf(flag.CommandLine.Output(),
			`
examples:
  bindgen -meta target/meta -out scriptbindings
  	Generate bindings for every module described under target/meta
  bindgen -meta target/meta -out scriptbindings -cache bindgen.cbor
  	Same, but skip re-rendering modules whose bindings are unchanged
`)
	}
}

func main() {
	flag.Parse()
	if flag.NArg() != 0 {
		fmt.Println("Error:", "unexpected arguments:", flag.Args())
		fmt.Println()
		flag.Usage()
		os.Exit(1)
	}

	if optVerbose {
		log, err := zap.NewDevelopment()
		if err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}
		bindgen.SetLogger(log)
		defer log.Sync()
	}

	cfg := config.Default()
	if optConfig != "" {
		var err error
		cfg, err = config.Load(optConfig)
		if err != nil {
			fmt.Println("Error loading config:", err)
			os.Exit(1)
		}
	}
	if optAPI != "" {
		cfg.APIName = optAPI
	}
	if optCache != "" {
		cfg.CacheFile = optCache
	}
	if optOut != "" {
		cfg.OutputDir = optOut
	}

	timeStart := time.Now()
	mods, err := symdb.LoadDir(optMeta)
	if err != nil {
		fmt.Println("Error loading metadata:", err)
		os.Exit(1)
	}
	if len(mods) == 0 {
		fmt.Printf("Error: no metadata files found under %v\n", optMeta)
		os.Exit(1)
	}
	timeLoad := time.Since(timeStart)
	timeStart = time.Now()

	if optDOT != "" {
		if err := os.WriteFile(optDOT, depgraph.DOT(mods), 0666); err != nil {
			fmt.Println("Error writing DOT file:", err)
			os.Exit(1)
		}
	}

	store := cache.New()
	if cfg.CacheFile != "" {
		store, err = cache.LoadFile(cfg.CacheFile, cacheSalt)
		if err != nil {
			fmt.Println("Error loading cache:", err)
			os.Exit(1)
		}
	}

	res, err := bindgen.Generate(mods, bindgen.Options{Config: cfg, Cache: store})
	if err != nil {
		var cycErr *depgraph.CycleError
		if errors.As(err, &cycErr) {
			fmt.Println("Error:", cycErr)
			fmt.Println("Hint: use -dot to dump the dependency graph.")
		} else {
			fmt.Println("Error:", err)
		}
		os.Exit(1)
	}
	timeGen := time.Since(timeStart)
	timeStart = time.Now()

	for _, w := range res.Warnings {
		fmt.Println("Warning:", w)
	}

	if err := os.MkdirAll(cfg.OutputDir, os.ModePerm); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	for _, out := range res.Outputs {
		if err := os.WriteFile(filepath.Join(cfg.OutputDir, out.FileName), out.Text, 0666); err != nil {
			fmt.Println("Error writing bindings:", err)
			os.Exit(1)
		}
	}
	if err := os.WriteFile(filepath.Join(cfg.OutputDir, cfg.APIName+".go"), res.Collect, 0666); err != nil {
		fmt.Println("Error writing collect module:", err)
		os.Exit(1)
	}

	if cfg.CacheFile != "" {
		if err := store.SaveFile(cfg.CacheFile); err != nil {
			fmt.Println("Error saving cache:", err)
			os.Exit(1)
		}
	}
	timeWrite := time.Since(timeStart)

	fmt.Println()
	fmt.Printf("==Binding stats==\n")
	{
		tbl := tablewriter.NewWriter(os.Stdout)
		tbl.SetHeader([]string{"Module", "Fingerprint", "Cached"})
		for _, out := range res.Outputs {
			cached := ""
			if out.FromCache {
				cached = "yes"
			}
			tbl.Append([]string{out.Module, out.Fingerprint.String(), cached})
		}
		tbl.Append([]string{"==TOTAL==", fmt.Sprintf("%v modules", len(res.Outputs)),
			fmt.Sprintf("%v/%v", res.CacheHits, len(res.Outputs))})
		tbl.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER, tablewriter.ALIGN_CENTER})
		tbl.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
		tbl.SetCenterSeparator("|")
		tbl.Render()
	}
	fmt.Println()
	fmt.Printf("==Timing stats==\n")
	{
		tbl := tablewriter.NewWriter(os.Stdout)
		tbl.SetHeader([]string{"Task", "Time"})
		tbl.AppendBulk([][]string{
			{"Load metadata", timeLoad.String()},
			{"Generate bindings", timeGen.String()},
			{"Write output", timeWrite.String()},
			{"==TOTAL==", (timeLoad + timeGen + timeWrite).String()},
		})
		tbl.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})
		tbl.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
		tbl.SetCenterSeparator("|")
		tbl.Render()
	}

	fmt.Println()
	fmt.Printf("Wrote bindings to %v\n", cfg.OutputDir)
}

// cacheSalt invalidates cache files written by older template sets.
const cacheSalt = "bindgen-templates-v1"
