package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"cardsync/internal/domain"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// columns is the header row shared by CSV and Excel exports.
var columns = append(append([]string{"#"}, domain.KnownFields...), "Error")

// Columns returns a copy of the export header row.
func Columns() []string {
	return append([]string(nil), columns...)
}

// Writer wraps csv.Writer for exporting records as CSV.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteHeader writes the header row.
func (w *Writer) WriteHeader() error {
	return w.csv.Write(columns)
}

// WriteRecords writes one row per record. Error records fill only the
// position and Error columns.
func (w *Writer) WriteRecords(records []domain.Record) error {
	for i := range records {
		if err := w.csv.Write(recordToRow(i, &records[i])); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}

// WriteCSV writes the BOM, header and every record to out.
func WriteCSV(out io.Writer, records []domain.Record) error {
	if _, err := out.Write(BOM); err != nil {
		return err
	}
	w := NewWriter(out)
	if err := w.WriteHeader(); err != nil {
		return err
	}
	if err := w.WriteRecords(records); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func recordToRow(i int, rec *domain.Record) []string {
	row := make([]string, len(columns))
	row[0] = strconv.Itoa(i + 1)
	if rec.IsError() {
		row[len(columns)-1] = rec.Error.Message
		return row
	}
	for j, f := range domain.KnownFields {
		row[j+1] = rec.Text(f)
	}
	return row
}
