package common

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/turnere/Migrator-Tools/pkg/logger"
)

// MappingEntry represents one row of a field mapping table
type MappingEntry struct {
	ExternalName string `json:"externalName" yaml:"externalName"`
	InternalName string `json:"internalName" yaml:"internalName"`
}

// MappingConfig represents a mapping configuration
type MappingConfig struct {
	File           string         `json:"file" yaml:"file"`                     // CSV file holding the mapping table
	ExternalColumn string         `json:"externalColumn" yaml:"externalColumn"` // default "external_name"
	InternalColumn string         `json:"internalColumn" yaml:"internalColumn"` // default "gs_internal_name"
	Entries        []MappingEntry `json:"entries" yaml:"entries"`               // inline entries, merged after the file
	ExcludeFields  []string       `json:"excludeFields" yaml:"excludeFields"`
	ExcludeIDs     []string       `json:"excludeIds" yaml:"excludeIds"`
}

const (
	DefaultExternalColumn = "external_name"
	DefaultInternalColumn = "gs_internal_name"
)

// FieldMapping maps external field names to internal ones and back.
// Both sides are unique.
type FieldMapping struct {
	toInternal map[string]string
	toExternal map[string]string
	order      []string
}

// NewFieldMapping builds a mapping, rejecting duplicate names on either side
func NewFieldMapping(entries []MappingEntry) (FieldMapping, error) {
	m := FieldMapping{
		toInternal: make(map[string]string, len(entries)),
		toExternal: make(map[string]string, len(entries)),
	}
	for _, e := range entries {
		if err := m.add(e); err != nil {
			return FieldMapping{}, err
		}
	}
	return m, nil
}

func (m *FieldMapping) add(e MappingEntry) error {
	if e.ExternalName == "" || e.InternalName == "" {
		return fmt.Errorf("mapping entry %q -> %q has an empty name", e.ExternalName, e.InternalName)
	}
	if prev, ok := m.toInternal[e.ExternalName]; ok {
		return fmt.Errorf("duplicate external name %q (mapped to %q and %q)", e.ExternalName, prev, e.InternalName)
	}
	if prev, ok := m.toExternal[e.InternalName]; ok {
		return fmt.Errorf("duplicate internal name %q (mapped from %q and %q)", e.InternalName, prev, e.ExternalName)
	}
	m.toInternal[e.ExternalName] = e.InternalName
	m.toExternal[e.InternalName] = e.ExternalName
	m.order = append(m.order, e.ExternalName)
	return nil
}

// External returns the external name for an internal field name
func (m FieldMapping) External(internal string) (string, bool) {
	ext, ok := m.toExternal[internal]
	return ext, ok
}

// Internal returns the internal name for an external field name
func (m FieldMapping) Internal(external string) (string, bool) {
	in, ok := m.toInternal[external]
	return in, ok
}

// Len returns the number of entries
func (m FieldMapping) Len() int {
	return len(m.order)
}

// Entries returns the table in load order
func (m FieldMapping) Entries() []MappingEntry {
	out := make([]MappingEntry, 0, len(m.order))
	for _, ext := range m.order {
		out = append(out, MappingEntry{ExternalName: ext, InternalName: m.toInternal[ext]})
	}
	return out
}

// LoadMapping builds the mapping described by cfg: the CSV file first, then
// the inline entries.
func LoadMapping(cfg MappingConfig, log *logger.Logger) (FieldMapping, error) {
	var entries []MappingEntry
	if cfg.File != "" {
		f, err := os.Open(cfg.File)
		if err != nil {
			return FieldMapping{}, fmt.Errorf("error opening mapping file: %w", err)
		}
		defer f.Close()

		fromFile, err := ReadMappingCSV(f, cfg.ExternalColumn, cfg.InternalColumn, log)
		if err != nil {
			return FieldMapping{}, fmt.Errorf("error reading mapping file %s: %w", cfg.File, err)
		}
		entries = append(entries, fromFile...)
	}
	entries = append(entries, cfg.Entries...)
	return NewFieldMapping(entries)
}

// ReadMappingCSV reads a mapping table with a header row. A leading UTF-8
// byte order mark is ignored and rows with an empty cell are skipped.
func ReadMappingCSV(r io.Reader, externalColumn, internalColumn string, log *logger.Logger) ([]MappingEntry, error) {
	if externalColumn == "" {
		externalColumn = DefaultExternalColumn
	}
	if internalColumn == "" {
		internalColumn = DefaultInternalColumn
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("mapping file is empty")
		}
		return nil, err
	}
	extIdx, inIdx := -1, -1
	for i, col := range header {
		col = strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
		switch col {
		case externalColumn:
			extIdx = i
		case internalColumn:
			inIdx = i
		}
	}
	if extIdx < 0 || inIdx < 0 {
		return nil, fmt.Errorf("mapping header must contain %q and %q columns", externalColumn, internalColumn)
	}

	var entries []MappingEntry
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		ext, in := cell(row, extIdx), cell(row, inIdx)
		if ext == "" || in == "" {
			if log != nil {
				log.Warnf("Skipping mapping row %d: empty %s or %s", line, externalColumn, internalColumn)
			}
			continue
		}
		entries = append(entries, MappingEntry{ExternalName: ext, InternalName: in})
	}
	return entries, nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
