package ir

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// Fingerprint is a stable content hash over a BindingModule's resolved
// representation. It deliberately hashes the resolved model, not the
// rendered text, so a template change alone never looks like a content
// change (template changes invalidate the cache separately).
type Fingerprint uint64

func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x", uint64(f))
}

// ParseFingerprint parses the canonical 16-digit hex form.
func ParseFingerprint(s string) (Fingerprint, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse fingerprint %q: %w", s, err)
	}
	return Fingerprint(v), nil
}

// Fingerprint hashes the module's canonical serialization: identifiers,
// the self-host flag, the ordered import list and every eligible
// type/method/field in order. Ineligible members are excluded, so
// dropping a member changes the fingerprint while an unrelated metadata
// change does not.
func (b *BindingModule) Fingerprint() Fingerprint {
	var sb strings.Builder
	sb.WriteString(b.Module.Name)
	sb.WriteByte('\n')
	if b.Module.SelfHost {
		sb.WriteString("self\n")
	}
	for _, imp := range b.Imports {
		sb.WriteString("import ")
		sb.WriteString(imp.Alias)
		sb.WriteByte(' ')
		sb.WriteString(imp.Path)
		if imp.SelfSubstitute {
			sb.WriteString(" substitute")
		}
		sb.WriteByte('\n')
	}
	for _, t := range b.Types {
		sb.WriteString(t.Kind.String())
		sb.WriteByte(' ')
		sb.WriteString(t.Name)
		// Docs render into output, so they are content too.
		sb.WriteString("#")
		sb.WriteString(t.Doc)
		for _, g := range t.Generics {
			sb.WriteByte('<')
			sb.WriteString(g.Name)
			sb.WriteByte('=')
			writeRef(&sb, g.Binding)
			sb.WriteByte('>')
		}
		sb.WriteByte('\n')
		for _, f := range t.EligibleFields() {
			sb.WriteString("  .")
			sb.WriteString(f.Name)
			sb.WriteByte(' ')
			writeRef(&sb, f.Type)
			sb.WriteString("#")
			sb.WriteString(f.Doc)
			sb.WriteByte('\n')
		}
		for _, m := range t.EligibleMethods() {
			sb.WriteString("  fn ")
			sb.WriteString(m.Name)
			sb.WriteByte('/')
			sb.WriteString(m.Receiver.String())
			sb.WriteByte('(')
			for _, p := range m.Params {
				writeRef(&sb, p)
			}
			sb.WriteByte(')')
			writeRef(&sb, m.Return)
			sb.WriteString("#")
			sb.WriteString(m.Doc)
			sb.WriteByte('\n')
		}
	}

	h := fnv.New64a()
	h.Write([]byte(sb.String()))
	return Fingerprint(h.Sum64())
}
