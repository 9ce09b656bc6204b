// Package mapping provides the location tables that translate
// source-specific identifiers (an alarm channel, a sales showcase
// number) into normalized floor codes.
package mapping

// Table maps a raw source identifier to a floor code. Keys are the
// identifier's string form regardless of how the source represents it,
// so numeric-vs-text quirks in exports cannot create duplicate keys.
//
// Tables are sparse: an identifier with no entry resolves to absent,
// and callers drop the record rather than treat it as an error.
type Table map[string]string

// Resolve looks up rawID and reports whether it is mapped.
func (t Table) Resolve(rawID string) (string, bool) {
	floor, ok := t[rawID]
	return floor, ok
}

// Clone returns an independent copy of the table.
func (t Table) Clone() Table {
	out := make(Table, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}
