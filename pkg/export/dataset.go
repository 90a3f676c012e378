package export

// Field is a labelled value rendered above the table, e.g. "Date: 2024-05-01".
type Field struct {
	Label string
	Value string
}

// Dataset defines tabular export content with an optional preamble.
type Dataset struct {
	Title    string
	Preamble []Field
	Headers  []string
	Rows     []map[string]string
}

// Format identifies a supported export encoding.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/csv"
	}
}

// Valid reports whether the format is supported.
func (f Format) Valid() bool {
	return f == FormatCSV || f == FormatPDF
}

// Render encodes the dataset in the requested format.
func Render(format Format, data Dataset) ([]byte, error) {
	if format == FormatPDF {
		return NewPDFExporter().Render(data)
	}
	return NewCSVExporter().Render(data)
}
