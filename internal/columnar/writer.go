// Package columnar implements the streaming materialiser of spec.md
// §4.5: buffer a lazy record stream into fixed-size batches and write
// one columnar (Parquet) file, attaching transform_types schema
// metadata for the downstream masking service.
package columnar

import (
	"encoding/json"
	"errors"
	"strings"
	"syscall"

	"transformat/internal/convert"
	"transformat/internal/model"
	"transformat/internal/parser"
	"transformat/internal/xerrors"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"
)

// DefaultBatchSize matches spec.md §4.5's default of 30,000 rows per
// batch/row-group; callers normally pass config.StreamBatchSize instead.
const DefaultBatchSize = 30000

// Writer buffers records into batches and writes them as row groups of
// a single parquet file. It is opened lazily: zero-record input never
// creates a file on disk.
type Writer struct {
	path      string
	defs      []model.FieldDefinition
	batchSize int

	fileWriter source.ParquetFile
	pqWriter   *writer.JSONWriter
	buffer     []parser.Record
	rowsTotal  int64
}

// New prepares a Writer for path and defs. No file is created until the
// first batch is flushed.
func New(path string, defs []model.FieldDefinition, batchSize int) *Writer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Writer{path: path, defs: defs, batchSize: batchSize}
}

// WriteAll drains stream, buffering and flushing batches, then closes
// the underlying file (if one was ever opened) on every exit path,
// including errors. It returns the total number of records written.
func (w *Writer) WriteAll(stream *parser.Stream) (int64, error) {
	defer w.close()

	for {
		rec, ok, err := stream.Next()
		if err != nil {
			return w.rowsTotal, err
		}
		if !ok {
			break
		}
		w.buffer = append(w.buffer, rec)
		if len(w.buffer) >= w.batchSize {
			if err := w.flush(); err != nil {
				return w.rowsTotal, err
			}
		}
	}

	if len(w.buffer) > 0 {
		if err := w.flush(); err != nil {
			return w.rowsTotal, err
		}
	}
	return w.rowsTotal, nil
}

// flush writes the current buffer as one row group, opening the file
// and writer lazily on the first call.
func (w *Writer) flush() error {
	if w.pqWriter == nil {
		if err := w.open(); err != nil {
			return err
		}
	}

	for _, rec := range w.buffer {
		row := make(map[string]any, len(rec.Fields))
		for _, f := range rec.Fields {
			row[sanitizeFieldName(f.Name)] = valueToJSON(f.Value)
		}
		encoded, err := json.Marshal(row)
		if err != nil {
			return wrapWriteErr(err, w.path)
		}
		if err := w.pqWriter.Write(string(encoded)); err != nil {
			return wrapWriteErr(err, w.path)
		}
	}
	w.rowsTotal += int64(len(w.buffer))
	w.buffer = w.buffer[:0]

	if err := w.pqWriter.Flush(true); err != nil {
		return wrapWriteErr(err, w.path)
	}
	return nil
}

func (w *Writer) open() error {
	fw, err := local.NewLocalFileWriter(w.path)
	if err != nil {
		return wrapWriteErr(err, w.path)
	}
	schema := buildSchema(w.defs)
	pw, err := writer.NewJSONWriter(schema, fw, 4)
	if err != nil {
		_ = fw.Close()
		return wrapWriteErr(err, w.path)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	if pw.Footer != nil {
		pw.Footer.KeyValueMetadata = append(pw.Footer.KeyValueMetadata, &parquet.KeyValue{
			Key:   "transform_types",
			Value: strPtr(transformTypesMetadata(w.defs)),
		})
	}
	w.fileWriter = fw
	w.pqWriter = pw
	return nil
}

func (w *Writer) close() {
	if w.pqWriter != nil {
		_ = w.pqWriter.WriteStop()
	}
	if w.fileWriter != nil {
		_ = w.fileWriter.Close()
	}
}

func valueToJSON(v convert.Value) any {
	if v.Null {
		return nil
	}
	switch v.Type {
	case model.FieldInt:
		return v.Int
	case model.FieldDouble:
		f, _ := v.Double.Float64()
		return f
	case model.FieldTimestamp:
		return v.Timestamp.Format("2006-01-02 15:04:05")
	default:
		return v.String
	}
}

func wrapWriteErr(err error, path string) error {
	if errors.Is(err, syscall.ENOSPC) || strings.Contains(strings.ToLower(err.Error()), "no space left on device") {
		return xerrors.New(xerrors.CodeDiskSpaceInsufficient, map[string]any{"path": path})
	}
	return xerrors.Wrap(xerrors.CodeParquetWriteFailed, err, map[string]any{"path": path})
}

func strPtr(s string) *string { return &s }
