package transform

import (
	"strings"

	"github.com/turnere/Migrator-Tools/pkg/record"
)

// Action tells the walker what to do with a visited field
type Action int

const (
	Keep Action = iota
	Remove
)

// FieldVisitor is applied to every field entry of a field-group tree.
// Dependent fields are visited before the field that holds them.
type FieldVisitor interface {
	VisitField(field *record.Record) Action
}

// WalkGroups applies v to every field under rec[spec.GroupsKey]. Removed
// fields are dropped from their list; a removed dependent field is deleted
// from its parent.
func WalkGroups(rec *record.Record, spec GroupSpec, v FieldVisitor) {
	if spec.GroupsKey == "" {
		return
	}
	for _, g := range rec.GetList(spec.GroupsKey) {
		group, ok := g.(*record.Record)
		if !ok {
			continue
		}
		fields, ok := group.Get(spec.FieldsKey)
		if !ok {
			continue
		}
		if list, ok := fields.([]any); ok {
			group.Set(spec.FieldsKey, walkFields(list, spec, v))
		}
	}
}

func walkFields(fields []any, spec GroupSpec, v FieldVisitor) []any {
	out := make([]any, 0, len(fields))
	for _, item := range fields {
		field, ok := item.(*record.Record)
		if !ok {
			out = append(out, item)
			continue
		}
		walkDependents(field, spec, v)
		if v.VisitField(field) == Remove {
			continue
		}
		out = append(out, field)
	}
	return out
}

func walkDependents(field *record.Record, spec GroupSpec, v FieldVisitor) {
	dep, ok := field.Get(spec.DependentKey)
	if !ok {
		return
	}
	switch t := dep.(type) {
	case *record.Record:
		walkDependents(t, spec, v)
		if v.VisitField(t) == Remove {
			field.Delete(spec.DependentKey)
		}
	case []any:
		field.Set(spec.DependentKey, walkFields(t, spec, v))
	}
}

// ruleVisitor removes denied field names and renames mapped ones
type ruleVisitor struct {
	denied map[string]struct{}
	rename func(string) (string, bool)
}

func (r ruleVisitor) VisitField(field *record.Record) Action {
	name := strings.TrimSpace(field.GetString("name", ""))
	if name == "" {
		return Keep
	}
	if _, ok := r.denied[name]; ok {
		return Remove
	}
	if ext, ok := r.rename(name); ok {
		field.Set("name", ext)
	}
	return Keep
}
