package transform

import (
	"fmt"

	"github.com/turnere/Migrator-Tools/pkg/record"
)

// Normalizer names accepted in Profile.Normalizers
const (
	NormalizeDraftState        = "draft-state"
	NormalizeEpochMillis       = "epoch-millis"
	NormalizeFormMetadata      = "form-metadata"
	NormalizeWorkflow          = "workflow"
	NormalizeCampaign          = "campaign"
	NormalizeProperty          = "property"
	NormalizeCadence           = "cadence"
	NormalizeSalesloftTemplate = "salesloft-template"
)

// normalizer rewrites a cloned record. It may return a new record.
type normalizer func(rec *record.Record, p Profile) (*record.Record, error)

var normalizers = map[string]normalizer{
	NormalizeDraftState:        draftState,
	NormalizeEpochMillis:       epochMillis,
	NormalizeFormMetadata:      formMetadata,
	NormalizeWorkflow:          workflow,
	NormalizeCampaign:          campaign,
	NormalizeProperty:          property,
	NormalizeCadence:           cadence,
	NormalizeSalesloftTemplate: salesloftTemplate,
}

func lookupNormalizer(name string) (normalizer, error) {
	n, ok := normalizers[name]
	if !ok {
		return nil, fmt.Errorf("unknown normalizer %q", name)
	}
	return n, nil
}

// draftState forces an unpublished state so nothing goes live on create
func draftState(rec *record.Record, p Profile) (*record.Record, error) {
	rec.Set("state", p.DraftState)
	return rec, nil
}

func epochMillis(rec *record.Record, p Profile) (*record.Record, error) {
	for _, field := range p.TimestampFields {
		v, ok := rec.Get(field)
		if !ok {
			continue
		}
		converted, err := toEpochMillis(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field, err)
		}
		rec.Set(field, converted)
	}
	return rec, nil
}

// formMetadata drops metaData entries that only the source app may set
func formMetadata(rec *record.Record, _ Profile) (*record.Record, error) {
	meta := rec.GetList("metaData")
	if meta == nil {
		return rec, nil
	}
	kept := make([]any, 0, len(meta))
	for _, m := range meta {
		if entry, ok := m.(*record.Record); ok && entry.GetString("name", "") == "createdByAppId" {
			continue
		}
		kept = append(kept, m)
	}
	rec.Set("metaData", kept)
	return rec, nil
}

// project copies the listed keys in order; missing keys become null
func project(rec *record.Record, keys ...string) *record.Record {
	out := record.New()
	for _, k := range keys {
		v, _ := rec.Get(k)
		out.Set(k, v)
	}
	return out
}

func campaign(rec *record.Record, _ Profile) (*record.Record, error) {
	return project(rec, "name", "startDate", "endDate", "type", "status"), nil
}

func property(rec *record.Record, _ Profile) (*record.Record, error) {
	out := project(rec, "name", "label", "type", "fieldType", "groupName")
	if options := rec.GetList("options"); len(options) > 0 {
		out.Set("options", options)
	}
	return out, nil
}

// salesloftTemplate unwraps an exported {"data": {...}} template and
// defaults its name to the title.
func salesloftTemplate(rec *record.Record, _ Profile) (*record.Record, error) {
	tpl := rec
	if data := rec.GetRecord("data"); data != nil {
		tpl = data
	}
	title, ok := tpl.Get("title")
	if !ok {
		return nil, fmt.Errorf("template is missing a title")
	}
	if !tpl.Has("name") {
		tpl.Set("name", title)
	}
	for _, f := range SalesloftServerFields {
		tpl.Delete(f)
	}
	return tpl, nil
}
