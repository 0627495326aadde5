package common

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// LoadIDs reads the id list stored in a CSV file
func LoadIDs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening id file: %w", err)
	}
	defer f.Close()

	ids, err := ReadIDsCSV(f)
	if err != nil {
		return nil, fmt.Errorf("error reading id file %s: %w", path, err)
	}
	return ids, nil
}

// ReadIDsCSV returns the first column of every row. There is no header row;
// blank cells are skipped and a leading byte order mark is ignored.
func ReadIDsCSV(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var ids []string
	for first := true; ; first = false {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if first && len(row) > 0 {
			row[0] = strings.TrimPrefix(row[0], "\ufeff")
		}
		if id := cell(row, 0); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no ids found")
	}
	return ids, nil
}
