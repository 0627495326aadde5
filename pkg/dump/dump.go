package dump

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/360EntSecGroup-Skylar/excelize/v2"

	"github.com/turnere/Migrator-Tools/pkg/record"
)

// ReadRecords loads an input file. Accepted shapes are a JSON array of
// objects, an API page ({"results": [...]}) or an object keyed by id, as
// written by workflow exports. Keyed records without an "id" get the key.
func ReadRecords(path string) ([]*record.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading input file: %w", err)
	}
	recs, err := ParseRecords(data)
	if err != nil {
		return nil, fmt.Errorf("error parsing input file %s: %w", path, err)
	}
	return recs, nil
}

// ParseRecords decodes the shapes accepted by ReadRecords
func ParseRecords(data []byte) ([]*record.Record, error) {
	v, err := record.Decode(data)
	if err != nil {
		return nil, err
	}

	switch t := v.(type) {
	case []any:
		return objects(t)
	case *record.Record:
		if results := t.GetList("results"); results != nil {
			return objects(results)
		}
		out := make([]*record.Record, 0, t.Len())
		for _, key := range t.Keys() {
			rec := t.GetRecord(key)
			if rec == nil {
				return nil, fmt.Errorf("value under %q is not an object", key)
			}
			if !rec.Has("id") {
				rec.Set("id", key)
			}
			out = append(out, rec)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a JSON array or object, got %T", v)
	}
}

func objects(list []any) ([]*record.Record, error) {
	out := make([]*record.Record, 0, len(list))
	for i, item := range list {
		rec, ok := item.(*record.Record)
		if !ok {
			return nil, fmt.Errorf("item %d is not an object", i)
		}
		out = append(out, rec)
	}
	return out, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// WriteJSON writes records as an indented JSON array. HTML is kept as is.
func WriteJSON(path string, recs []*record.Record) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	if recs == nil {
		recs = []*record.Record{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(recs); err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Columns returns the top-level keys holding scalar values, in first-seen order
func Columns(recs []*record.Record) []string {
	seen := map[string]bool{}
	var cols []string
	for _, r := range recs {
		for _, k := range r.Keys() {
			if seen[k] {
				continue
			}
			v, _ := r.Get(k)
			switch v.(type) {
			case *record.Record, []any:
				continue
			}
			seen[k] = true
			cols = append(cols, k)
		}
	}
	return cols
}

// Rows renders records as a table. Nested values are written as compact
// JSON; missing keys are empty.
func Rows(recs []*record.Record, columns []string) [][]string {
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		row := make([]string, len(columns))
		for i, c := range columns {
			v, ok := r.Path(c)
			if !ok || v == nil {
				continue
			}
			row[i] = cellText(v)
		}
		rows = append(rows, row)
	}
	return rows
}

func cellText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	case *record.Record:
		return t.String()
	default:
		holder := record.New()
		holder.Set("v", t)
		s := holder.String()
		return s[len(`{"v":`) : len(s)-1]
	}
}

// WriteCSV writes a header and one row per record. Empty columns means
// every scalar top-level key. Columns may be dotted paths.
func WriteCSV(path string, recs []*record.Record, columns []string) error {
	if len(columns) == 0 {
		columns = Columns(recs)
	}
	if err := ensureDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		return err
	}
	if err := w.WriteAll(Rows(recs, columns)); err != nil {
		return err
	}
	return f.Close()
}

// WriteExcel writes the same table as WriteCSV to a workbook
func WriteExcel(path string, recs []*record.Record, columns []string) error {
	if len(columns) == 0 {
		columns = Columns(recs)
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	f := excelize.NewFile()
	const sheet = "Sheet1"
	table := append([][]string{columns}, Rows(recs, columns)...)
	for r, row := range table {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}
