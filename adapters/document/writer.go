// Package document materializes a normalized table as the JSON document the
// dashboard loads: {"metadata": {...}, "data": [{...}, ...]}.
package document

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"entitlements/domain/table"
	"entitlements/internal"
	"entitlements/internal/errors"
	"entitlements/internal/storage"
	"entitlements/ports"
)

// Writer writes the document to a single file, replacing it atomically
type Writer struct {
	path   string
	logger *internal.Logger
}

// NewWriter creates a document writer for path
func NewWriter(path string, logger *internal.Logger) *Writer {
	return &Writer{path: path, logger: internal.OrDefault(logger).With("Document")}
}

// Name implements ports.Materializer
func (w *Writer) Name() string { return "json" }

// Target implements ports.Materializer
func (w *Writer) Target() string { return w.path }

// Materialize writes t and meta to the output path, creating parent directories
func (w *Writer) Materialize(ctx context.Context, t *table.Table, meta table.Metadata) (ports.MaterializeResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.MaterializeResult{}, err
	}

	w.logger.Info("Writing JSON to: %s", w.path)
	err := storage.WriteFileAtomic(w.path, func(out io.Writer) error {
		return Encode(out, t, meta)
	})
	if err != nil {
		return ports.MaterializeResult{}, errors.MaterializeFailed(w.path, err)
	}

	return ports.MaterializeResult{Name: w.Name(), Target: w.path, Records: t.Len()}, nil
}

// Document is the top-level JSON shape
type Document struct {
	Metadata metadataJSON `json:"metadata"`
	Data     []recordJSON `json:"data"`
}

type metadataJSON struct {
	GeneratedAt  string   `json:"generated_at"`
	TotalRecords int      `json:"total_records"`
	SourceFile   string   `json:"source_file"`
	Columns      []string `json:"columns"`
}

// recordJSON encodes one record as an object whose keys follow column order
type recordJSON struct {
	columns []string
	values  table.Record
}

func (r recordJSON) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSON(&buf, name); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeValue(&buf, r.values[i]); err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// writeValue encodes a cell. Every missing form is written as null and
// numbers are written as plain JSON numbers.
func writeValue(buf *bytes.Buffer, v table.Value) error {
	switch v.Kind {
	case table.KindString:
		return writeJSON(buf, v.StrVal)
	case table.KindInt:
		return writeJSON(buf, v.IntVal)
	case table.KindFloat:
		if math.IsNaN(v.FloatVal) || math.IsInf(v.FloatVal, 0) {
			buf.WriteString("null")
			return nil
		}
		return writeJSON(buf, v.FloatVal)
	case table.KindBool:
		return writeJSON(buf, v.BoolVal)
	case table.KindDate:
		return writeJSON(buf, v.DateVal.Format(table.DateTimeLayout))
	}
	buf.WriteString("null")
	return nil
}

// writeJSON encodes v without HTML escaping so "&" in brand names stays readable
func writeJSON(buf *bytes.Buffer, v interface{}) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Truncate(buf.Len() - 1) // Encode appends a newline
	return nil
}

// Build assembles the document for t and meta
func Build(t *table.Table, meta table.Metadata) Document {
	columns := t.ColumnNames()
	data := make([]recordJSON, len(t.Records))
	for i, rec := range t.Records {
		data[i] = recordJSON{columns: columns, values: rec}
	}

	metaColumns := meta.Columns
	if metaColumns == nil {
		metaColumns = []string{}
	}

	return Document{
		Metadata: metadataJSON{
			GeneratedAt:  meta.GeneratedAtISO(),
			TotalRecords: meta.TotalRecords,
			SourceFile:   meta.SourceFile,
			Columns:      metaColumns,
		},
		Data: data,
	}
}

// Encode writes the indented document for t and meta to w
func Encode(w io.Writer, t *table.Table, meta table.Metadata) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Build(t, meta)); err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	return nil
}

// ReadMetadata decodes only the metadata object of an existing document
func ReadMetadata(r io.Reader) (table.Metadata, error) {
	var doc struct {
		Metadata metadataJSON `json:"metadata"`
	}
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return table.Metadata{}, fmt.Errorf("failed to decode document: %w", err)
	}

	generatedAt, _ := time.ParseInLocation("2006-01-02T15:04:05.000000", doc.Metadata.GeneratedAt, time.Local)
	return table.Metadata{
		GeneratedAt:  generatedAt,
		TotalRecords: doc.Metadata.TotalRecords,
		SourceFile:   doc.Metadata.SourceFile,
		Columns:      doc.Metadata.Columns,
	}, nil
}
