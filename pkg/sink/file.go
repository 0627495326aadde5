package sink

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/360EntSecGroup-Skylar/excelize/v2"
)

// EntryColumns is the column order of CSV and Excel summaries
var EntryColumns = []string{"source_id", "name", "status", "new_id", "reason", "detail", "attempts"}

func entryRow(e Entry) []string {
	return []string{e.SourceID, e.Name, e.Status, e.NewID, e.Reason, e.Detail, strconv.Itoa(e.Attempts)}
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// JSONWriter writes the whole summary as indented JSON
type JSONWriter struct {
	Path string
}

func (w JSONWriter) Name() string { return "json" }

func (w JSONWriter) Write(_ context.Context, s Summary) error {
	if err := ensureDir(w.Path); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	return os.WriteFile(w.Path, data, 0o644)
}

// CSVWriter writes one row per entry
type CSVWriter struct {
	Path string
}

func (w CSVWriter) Name() string { return "csv" }

func (w CSVWriter) Write(_ context.Context, s Summary) error {
	if err := ensureDir(w.Path); err != nil {
		return err
	}
	f, err := os.Create(w.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(EntryColumns); err != nil {
		return err
	}
	for _, e := range s.Entries {
		if err := cw.Write(entryRow(e)); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return f.Close()
}

// ExcelWriter writes one row per entry to the first sheet of a workbook
type ExcelWriter struct {
	Path string
}

const excelSheet = "Sheet1"

func (w ExcelWriter) Name() string { return "excel" }

func (w ExcelWriter) Write(_ context.Context, s Summary) error {
	if err := ensureDir(w.Path); err != nil {
		return err
	}
	f := excelize.NewFile()
	rows := make([][]string, 0, len(s.Entries)+1)
	rows = append(rows, EntryColumns)
	for _, e := range s.Entries {
		rows = append(rows, entryRow(e))
	}
	if err := setRows(f, excelSheet, rows); err != nil {
		return err
	}
	if err := f.SaveAs(w.Path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// setRows fills sheet starting at A1
func setRows(f *excelize.File, sheet string, rows [][]string) error {
	for r, row := range rows {
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
	return nil
}
