package transform

import (
	"fmt"

	"github.com/turnere/Migrator-Tools/pkg/common"
	"github.com/turnere/Migrator-Tools/pkg/record"
)

// Transformer turns a fetched record into a create payload. It holds no
// state between calls and never mutates its input.
type Transformer struct {
	profile     Profile
	deny        common.DenyList
	denied      map[string]struct{}
	mapping     common.FieldMapping
	normalizers []namedNormalizer
}

type namedNormalizer struct {
	name string
	fn   normalizer
}

// New creates a transformer. Unknown normalizer names are rejected here so
// a bad profile fails before any record is processed.
func New(profile Profile, deny common.DenyList, mapping common.FieldMapping) (*Transformer, error) {
	profile = profile.withDefaults()

	t := &Transformer{
		profile: profile,
		deny:    deny,
		denied:  closeDenied(deny, mapping),
		mapping: mapping,
	}
	for _, name := range profile.Normalizers {
		fn, err := lookupNormalizer(name)
		if err != nil {
			return nil, err
		}
		t.normalizers = append(t.normalizers, namedNormalizer{name: name, fn: fn})
	}
	return t, nil
}

// closeDenied extends the denied names with their mapped counterparts, so a
// denied field cannot reappear under its other name.
func closeDenied(deny common.DenyList, mapping common.FieldMapping) map[string]struct{} {
	out := make(map[string]struct{}, len(deny.Fields)*2)
	for name := range deny.Fields {
		out[name] = struct{}{}
		if ext, ok := mapping.External(name); ok {
			out[ext] = struct{}{}
		}
		if in, ok := mapping.Internal(name); ok {
			out[in] = struct{}{}
		}
	}
	return out
}

// Profile returns the profile in use
func (t *Transformer) Profile() Profile {
	return t.profile
}

// Transform returns the payload for rec, or nil when the record is
// deny-listed. A normalizer error means the record cannot be migrated.
func (t *Transformer) Transform(rec *record.Record) (*record.Record, error) {
	if rec == nil {
		return nil, nil
	}
	if t.deny.DeniesID(t.profile.SourceID(rec)) {
		return nil, nil
	}

	out := rec.Clone()

	for _, f := range t.profile.ServerFields {
		out.Delete(f)
	}

	for _, k := range out.Keys() {
		if _, ok := t.denied[k]; ok {
			out.Delete(k)
		}
	}
	visitor := ruleVisitor{denied: t.denied, rename: t.mapping.External}
	WalkGroups(out, t.profile.Groups, visitor)

	if t.profile.RenameKeys {
		out = renameKeys(out, t.mapping.External)
	}

	for _, n := range t.normalizers {
		next, err := n.fn(out, t.profile)
		if err != nil {
			return nil, fmt.Errorf("%s normalizer: %w", n.name, err)
		}
		out = next
	}
	return out, nil
}

// renameKeys rebuilds rec with every top-level key looked up once, so
// chained and swapped mappings cannot feed into each other. When a renamed
// key lands on the name of a key that was not renamed, the renamed value
// wins and keeps the position of whichever came first.
func renameKeys(rec *record.Record, rename func(string) (string, bool)) *record.Record {
	out := record.New()
	renamed := make(map[string]bool, rec.Len())
	for _, k := range rec.Keys() {
		v, _ := rec.Get(k)
		target, ok := rename(k)
		if !ok {
			target = k
		}
		if out.Has(target) && !ok && renamed[target] {
			continue
		}
		out.Set(target, v)
		renamed[target] = ok
	}
	return out
}

// TransformAll transforms a batch, dropping excluded records. Records that
// fail are returned with their error keyed by position in the input.
func (t *Transformer) TransformAll(recs []*record.Record) ([]*record.Record, map[int]error) {
	out := make([]*record.Record, 0, len(recs))
	var errs map[int]error
	for i, r := range recs {
		ready, err := t.Transform(r)
		if err != nil {
			if errs == nil {
				errs = make(map[int]error)
			}
			errs[i] = err
			continue
		}
		if ready != nil {
			out = append(out, ready)
		}
	}
	return out, errs
}
