/*
Package cache memoizes per-module emission keyed on a content fingerprint
of that module's resolved bindings, so unchanged modules are skipped on
repeated runs.

The fingerprint covers the resolved model, not the rendered text; a
template change is a separate cache-invalidating input handled by the
caller (via [Cache.Salt]).

The cache is the only shared mutable resource during emission: lookups
may run concurrently and writes are at-most-once per fingerprint. A write
race on an identical fingerprint is benign, content is deterministic.
*/
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/kestrel-engine/bindgen/ir"
)

// Entry is the persisted record for one module.
type Entry struct {
	Fingerprint string `json:"fingerprint" cbor:"1,keyasint"`
	Text        []byte `json:"text" cbor:"2,keyasint"`
	// Meta shared with later runs of dependent modules, in the manner
	// of per-crate meta files.
	Types        []string `json:"types,omitempty" cbor:"3,keyasint,omitempty"`
	WillGenerate bool     `json:"will_generate,omitempty" cbor:"4,keyasint,omitempty"`
}

type fileFormat struct {
	Salt    string           `json:"salt,omitempty" cbor:"1,keyasint,omitempty"`
	Entries map[string]Entry `json:"entries" cbor:"2,keyasint"`
}

// Cache holds rendered binding text keyed by fingerprint, persisted per
// module identifier.
type Cache struct {
	mu            sync.RWMutex
	byFingerprint map[ir.Fingerprint][]byte
	byModule      map[string]Entry
	salt          string
}

func New() *Cache {
	return &Cache{
		byFingerprint: map[ir.Fingerprint][]byte{},
		byModule:      map[string]Entry{},
	}
}

// Salt declares an extra cache-invalidating input (e.g. a hash of the
// template set). A persisted cache whose salt differs loads as empty.
func (c *Cache) Salt(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.salt = s
}

// Get returns the rendered text for fp, if present.
func (c *Cache) Get(fp ir.Fingerprint) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	text, ok := c.byFingerprint[fp]
	return text, ok
}

// Put records the rendered text for one module. If the fingerprint is
// already present its text is kept; emission is deterministic, so both
// writers carry identical content and first-write-wins is free.
func (c *Cache) Put(module string, fp ir.Fingerprint, text []byte, types []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.byFingerprint[fp]; !ok {
		c.byFingerprint[fp] = text
	}
	c.byModule[module] = Entry{
		Fingerprint:  fp.String(),
		Text:         text,
		Types:        types,
		WillGenerate: len(text) > 0,
	}
}

// Entry returns the persisted record for a module identifier. Absence is
// equivalent to a cache miss.
func (c *Cache) Entry(module string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.byModule[module]
	return e, ok
}

// Len returns the number of cached modules.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byModule)
}

// LoadFile populates the cache from a persisted file. A missing file is
// an empty cache, not an error. Supported extensions are ".json" and
// ".cbor".
func LoadFile(path, salt string) (*Cache, error) {
	c := New()
	c.salt = salt
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, err
	}
	var ff fileFormat
	switch filepath.Ext(path) {
	case ".json":
		if err := json.Unmarshal(data, &ff); err != nil {
			return nil, fmt.Errorf("read cache %v: %w", path, err)
		}
	case ".cbor":
		if err := cbor.Unmarshal(data, &ff); err != nil {
			return nil, fmt.Errorf("read cache %v: %w", path, err)
		}
	default:
		panic("unknown file extension")
	}
	if ff.Salt != salt {
		// Template set (or other out-of-band input) changed, all
		// entries are stale.
		return c, nil
	}
	for module, e := range ff.Entries {
		fp, err := ir.ParseFingerprint(e.Fingerprint)
		if err != nil {
			return nil, fmt.Errorf("read cache %v: module %v: %w", path, module, err)
		}
		c.byModule[module] = e
		c.byFingerprint[fp] = e.Text
	}
	return c, nil
}

// SaveFile persists the cache. The format follows the file extension,
// ".json" or ".cbor".
func (c *Cache) SaveFile(path string) error {
	c.mu.RLock()
	ff := fileFormat{Salt: c.salt, Entries: map[string]Entry{}}
	for module, e := range c.byModule {
		ff.Entries[module] = e
	}
	c.mu.RUnlock()

	var data []byte
	var err error
	switch filepath.Ext(path) {
	case ".json":
		data, err = json.MarshalIndent(ff, "", "    ")
	case ".cbor":
		data, err = cbor.Marshal(ff)
	default:
		panic("unknown file extension")
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0666)
}
