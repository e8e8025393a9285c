package dataset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"dropout-alerts/internal/models"
)

var ErrDatasetUnavailable = errors.New("DATASET_UNAVAILABLE")

const utf8BOM = "\ufeff"

// Write emits the records as CSV with a header row. The BOM keeps spreadsheet
// tools reading the accents correctly.
func Write(w io.Writer, records []models.StudentRecord) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(models.Columns()); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(r.Values()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read parses a dataset. Columns are matched by header name so extra or
// reordered columns are fine; cells that are missing or fail to parse leave
// the field unset.
func Read(r io.Reader) ([]models.StudentRecord, error) {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && string(prefix) == utf8BOM {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty dataset", ErrDatasetUnavailable)
		}
		return nil, fmt.Errorf("%w: read header: %v", ErrDatasetUnavailable, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	idCol := -1
	for i, h := range header {
		if h == "id_etudiant" {
			idCol = i
		}
	}
	if idCol < 0 {
		return nil, fmt.Errorf("%w: missing id_etudiant column", ErrDatasetUnavailable)
	}

	var records []models.StudentRecord
	seen := map[string]struct{}{}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrDatasetUnavailable, line, err)
		}
		if idCol >= len(row) || strings.TrimSpace(row[idCol]) == "" {
			continue
		}

		rec := models.NewStudentRecord("")
		for i, h := range header {
			if i < len(row) {
				rec.SetField(h, row[i])
			}
		}
		if _, dup := seen[rec.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %s on line %d", ErrDatasetUnavailable, rec.ID, line)
		}
		seen[rec.ID] = struct{}{}
		records = append(records, rec)
	}
	return records, nil
}

// Load reads a dataset file.
func Load(path string) ([]models.StudentRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatasetUnavailable, err)
	}
	defer f.Close()
	return Read(f)
}

// Save writes a dataset file, replacing any existing one.
func Save(path string, records []models.StudentRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Stamp identifies the current version of the dataset file by size and
// modification time. A missing file stamps as "missing".
func Stamp(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "missing"
	}
	return strconv.FormatInt(info.Size(), 36) + "-" + strconv.FormatInt(info.ModTime().UnixNano(), 36)
}
