package sink

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"unicode/utf16"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/taosdata/taosgen-sub001/internal/format"
	"github.com/taosdata/taosgen-sub001/internal/model"
	"github.com/taosdata/taosgen-sub001/internal/pacing"
)

// FilesystemConfig configures a FilesystemWriter (spec §6 "target.file_system",
// supplementing the distilled spec: original_source declares this target
// type in WriterFactory.h but never shipped an implementation — see
// DESIGN.md).
type FilesystemConfig struct {
	Directory  string
	FilePrefix string
	// RotateRows bounds how many rows accumulate in current_file_path_
	// before a new file is opened, mirroring FileSystemWriter.h's
	// time-bucketed rotation with a row count instead of a wall-clock
	// window (this writer has no sink-side notion of "current time
	// bucket" independent of the rows it's handed).
	RotateRows int
}

// FilesystemWriter appends formatted rows as CSV to a rotating set of
// files under Directory, grounded on original_source's FileSystemWriter.h
// (get_current_file_path/write_csv), using encoding/csv in place of the
// header's std::ofstream-based writer.
type FilesystemWriter struct {
	*BaseWriter
	cfg FilesystemConfig

	currentFile *os.File
	currentCSV  *csv.Writer
	rowsInFile  int
	fileIndex   int
}

// NewFilesystemWriter constructs a FilesystemWriter; call Connect before Write.
func NewFilesystemWriter(cfg FilesystemConfig, pacer *pacing.Strategy, retry *RetryPolicy, reg prometheus.Registerer) *FilesystemWriter {
	return &FilesystemWriter{
		BaseWriter: NewBaseWriter("filesystem", pacer, retry, reg),
		cfg:        cfg,
	}
}

// Connect implements Writer: ensures the target directory exists.
func (w *FilesystemWriter) Connect(ctx context.Context) error {
	if err := os.MkdirAll(w.cfg.Directory, 0o755); err != nil {
		return errors.Wrap(err, "sink/filesystem: creating target directory")
	}
	return nil
}

// Prepare implements Writer: filesystem sinks have nothing to prepare.
func (w *FilesystemWriter) Prepare(ctx context.Context, sinkCtx format.SinkContext) error {
	return nil
}

// Write implements Writer. The envelope's Block is walked directly rather
// than through a Formatter, since none of the wire formatters produce a
// CSV-shaped FormatResult.
func (w *FilesystemWriter) Write(ctx context.Context, env Envelope) error {
	if env.Block == nil {
		return errors.New("sink/filesystem: envelope carries no block to read rows from")
	}
	return w.ExecuteWrite(env, "filesystem append", func() error {
		return w.appendBlock(env)
	})
}

func (w *FilesystemWriter) appendBlock(env Envelope) error {
	for t := 0; t < env.Block.UsedTables(); t++ {
		tb := env.Block.Table(t)
		for row := 0; row < tb.UsedRows(); row++ {
			if err := w.ensureFile(); err != nil {
				return err
			}
			record := make([]string, 0, len(env.Columns)+2)
			record = append(record, tb.TableName())
			record = append(record, strconv.FormatInt(tb.Timestamp(row), 10))
			for col := range env.Columns {
				if tb.IsNull(col, row) {
					record = append(record, "")
					continue
				}
				record = append(record, csvCellText(tb.Cell(col, row)))
			}
			if err := w.currentCSV.Write(record); err != nil {
				return errors.Wrap(err, "sink/filesystem: writing CSV row")
			}
			w.rowsInFile++
			if w.cfg.RotateRows > 0 && w.rowsInFile >= w.cfg.RotateRows {
				w.closeCurrentFile()
			}
		}
	}
	if w.currentCSV != nil {
		w.currentCSV.Flush()
		if err := w.currentCSV.Error(); err != nil {
			return errors.Wrap(err, "sink/filesystem: flushing CSV writer")
		}
	}
	return nil
}

func (w *FilesystemWriter) ensureFile() error {
	if w.currentFile != nil {
		return nil
	}
	name := filepath.Join(w.cfg.Directory, w.cfg.FilePrefix+"_"+strconv.Itoa(w.fileIndex)+".csv")
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrap(err, "sink/filesystem: opening output file")
	}
	w.currentFile = f
	w.currentCSV = csv.NewWriter(f)
	w.rowsInFile = 0
	w.fileIndex++
	return nil
}

func (w *FilesystemWriter) closeCurrentFile() {
	if w.currentCSV != nil {
		w.currentCSV.Flush()
	}
	if w.currentFile != nil {
		w.currentFile.Close()
	}
	w.currentFile = nil
	w.currentCSV = nil
}

// Close implements Writer.
func (w *FilesystemWriter) Close() error {
	w.closeCurrentFile()
	return nil
}

// csvCellText renders a cell as plain text for a CSV field; encoding/csv
// handles quoting of any value that itself contains a comma or newline, so
// this need not escape anything.
func csvCellText(c model.Cell) string {
	switch c.Tag {
	case model.TagBool:
		if c.Bool {
			return "true"
		}
		return "false"
	case model.TagInt8, model.TagInt16, model.TagInt32, model.TagInt64:
		return strconv.FormatInt(c.I64, 10)
	case model.TagUint8, model.TagUint16, model.TagUint32, model.TagUint64:
		return strconv.FormatUint(c.AsUint64(), 10)
	case model.TagFloat:
		return strconv.FormatFloat(float64(c.F32), 'g', -1, 32)
	case model.TagDouble:
		return strconv.FormatFloat(c.F64, 'g', -1, 64)
	case model.TagNchar:
		return string(utf16.Decode(c.NcharCodepoints))
	case model.TagVarchar, model.TagVarbinary:
		return string(c.Bytes)
	case model.TagDecimal, model.TagJSON, model.TagGeometry:
		return c.Str
	default:
		return ""
	}
}
