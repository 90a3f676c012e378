package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

// CSVExporter renders a Dataset as CSV: optional title line, preamble rows, a blank line and the table.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV bytes. Cells that a spreadsheet would evaluate as formulas are prefixed with a quote.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	write := func(record []string, what string) error {
		for i := range record {
			record[i] = inert(record[i])
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv %s: %w", what, err)
		}
		return nil
	}

	if data.Title != "" {
		if err := write([]string{data.Title}, "title"); err != nil {
			return nil, err
		}
	}
	for _, field := range data.Preamble {
		if err := write([]string{field.Label, field.Value}, "preamble"); err != nil {
			return nil, err
		}
	}
	if data.Title != "" || len(data.Preamble) > 0 {
		if err := write([]string{""}, "separator"); err != nil {
			return nil, err
		}
	}
	if err := write(append([]string(nil), data.Headers...), "headers"); err != nil {
		return nil, err
	}
	for _, row := range data.Rows {
		record := make([]string, len(data.Headers))
		for i, header := range data.Headers {
			record[i] = row[header]
		}
		if err := write(record, "row"); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func inert(cell string) string {
	if cell != "" && strings.ContainsRune("=+-@", rune(cell[0])) {
		return "'" + cell
	}
	return cell
}
