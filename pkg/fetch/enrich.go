package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/turnere/Migrator-Tools/pkg/record"
)

// EnrichConfig joins a follow-up lookup onto fetched records: the id found
// at Field is fetched from Path/{id} and stored under As. A list of ids
// stores a list of records.
type EnrichConfig struct {
	IDFetchConfig
	Field string // dotted path to the id, e.g. "call_id"
	As    string // defaults to Field without its "_id" or "Id" suffix
}

// Target returns the key the joined record is stored under
func (c EnrichConfig) Target() string {
	if c.As != "" {
		return c.As
	}
	name := c.Field
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	for _, suffix := range []string{"_id", "Id", "_ids", "Ids"} {
		if trimmed := strings.TrimSuffix(name, suffix); trimmed != name && trimmed != "" {
			return trimmed
		}
	}
	return name + "_details"
}

// Enrich fetches the follow-up record of every input record in place. Each
// distinct id is requested once. Records without an id are left alone; a
// failed lookup is reported and the record keeps its other fields.
func Enrich(ctx context.Context, client *http.Client, cfg EnrichConfig, recs []*record.Record) []error {
	client = defaultClient(client)
	target := cfg.Target()

	cache := make(map[string]*record.Record)
	var errs []error
	lookup := func(id string) (*record.Record, bool) {
		if rec, ok := cache[id]; ok {
			return rec, rec != nil
		}
		rec, err := fetchOne(ctx, client, cfg.IDFetchConfig, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("enrich %s: %w", cfg.Field, err))
		}
		cache[id] = rec
		return rec, rec != nil
	}

	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return append(errs, err)
		}
		v, ok := rec.Path(cfg.Field)
		if !ok || v == nil {
			continue
		}

		if list, isList := v.([]any); isList {
			joined := make([]any, 0, len(list))
			for _, item := range list {
				id := scalarID(item)
				if id == "" {
					continue
				}
				if found, ok := lookup(id); ok {
					joined = append(joined, found.Clone())
				}
			}
			rec.Set(target, joined)
			continue
		}

		id := scalarID(v)
		if id == "" {
			continue
		}
		if found, ok := lookup(id); ok {
			rec.Set(target, found.Clone())
		}
	}
	return errs
}

func scalarID(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}
