package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/dendroclim/internal/domain"
)

// LoadCSV reads a comma separated file whose first record is the header.
// Selector.Sheet is ignored.
func LoadCSV(path string, sel Selector) (*domain.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	frame, err := ReadCSV(f, sel)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return frame, nil
}

// ReadCSV reads a frame from r. Records may have fewer fields than the header;
// missing cells are null.
func ReadCSV(r io.Reader, sel Selector) (*domain.Frame, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return buildFrame(rows, sel)
}
