package sink

import (
	"context"
	"database/sql"
	"unicode/utf16"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"

	// Registers the "taosSql" database/sql driver used to open connections
	// below; the driver's own internals are out of this rewrite's scope
	// (spec §1), only the database/sql contract it satisfies is.
	_ "github.com/taosdata/driver-go/v3/taosSql"

	"github.com/taosdata/taosgen-sub001/internal/format"
	"github.com/taosdata/taosgen-sub001/internal/memtable"
	"github.com/taosdata/taosgen-sub001/internal/model"
	"github.com/taosdata/taosgen-sub001/internal/pacing"
	"github.com/taosdata/taosgen-sub001/internal/sinkerr"
)

// TDengineConfig configures a TDengineWriter's connection (spec §6 "target.tdengine").
type TDengineConfig struct {
	DSN      string
	Database string
}

// TDengineWriter writes formatted rows through database/sql against a
// TDengine-shaped driver, dispatching on whichever of FormatResult.SQL or
// FormatResult.Binds is populated (grounded on original_source's
// TDengineWriter.cpp / TDengineConnector.hpp).
type TDengineWriter struct {
	*BaseWriter
	cfg       TDengineConfig
	db        *sql.DB
	prepared  *sql.Stmt
	bindShape format.BindShape
}

// NewTDengineWriter constructs a TDengineWriter; call Connect before Write.
func NewTDengineWriter(cfg TDengineConfig, pacer *pacing.Strategy, retry *RetryPolicy, reg prometheus.Registerer) *TDengineWriter {
	return &TDengineWriter{
		BaseWriter: NewBaseWriter("tdengine", pacer, retry, reg),
		cfg:        cfg,
	}
}

// Connect implements Writer.
func (w *TDengineWriter) Connect(ctx context.Context) error {
	if w.db != nil {
		return nil
	}
	db, err := sql.Open("taosSql", w.cfg.DSN)
	if err != nil {
		return sinkerr.NewFatal(errors.Wrap(err, "sink/tdengine: opening connection"))
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return sinkerr.NewFatal(errors.Wrap(err, "sink/tdengine: connecting"))
	}
	w.db = db
	if w.cfg.Database != "" {
		if _, err := w.db.ExecContext(ctx, "USE `"+w.cfg.Database+"`"); err != nil {
			w.db.Close()
			w.db = nil
			return sinkerr.NewFatal(errors.Wrap(err, "sink/tdengine: selecting database"))
		}
	}
	return nil
}

// Prepare implements Writer: executes the parameterized prepare for the
// statement formatter's SinkContext; a no-op (but connection-validating)
// call for the SQL formatter, whose SinkContext carries no PrepareSQL.
func (w *TDengineWriter) Prepare(ctx context.Context, sinkCtx format.SinkContext) error {
	if w.db == nil {
		return ErrNotConnected
	}
	if sinkCtx.PrepareSQL == "" {
		return nil
	}
	stmt, err := w.db.PrepareContext(ctx, sinkCtx.PrepareSQL)
	if err != nil {
		return sinkerr.NewFatal(errors.Wrap(err, "sink/tdengine: preparing statement"))
	}
	w.prepared = stmt
	w.bindShape = sinkCtx.BindShape
	return nil
}

// Write implements Writer.
func (w *TDengineWriter) Write(ctx context.Context, env Envelope) error {
	if w.db == nil {
		return ErrNotConnected
	}
	return w.ExecuteWrite(env, "tdengine insert", func() error {
		switch {
		case env.Result.SQL != "":
			return w.execSQL(ctx, env.Result.SQL)
		case len(env.Result.Binds) > 0:
			return w.execBinds(ctx, env)
		default:
			return errors.New("sink/tdengine: envelope carries neither SQL text nor bind descriptors")
		}
	})
}

func (w *TDengineWriter) execSQL(ctx context.Context, stmt string) error {
	if _, err := w.db.ExecContext(ctx, stmt); err != nil {
		return classifyTDengineError(err)
	}
	return nil
}

// execBinds runs the prepared statement once per row, reading cell values
// straight out of env.Block's columnar buffers (the "bind directly against
// the MemoryBlock" path spec §4.5 describes) rather than copying through
// an intermediate row representation. Argument order matches the
// placeholder order StmtFormatter.Init established for the active bind
// shape: sub-table and super-table are (tbname, ts, cols...); auto-create
// is (tbname, tags..., ts, cols...).
func (w *TDengineWriter) execBinds(ctx context.Context, env Envelope) error {
	if w.prepared == nil {
		return errors.New("sink/tdengine: stmt formatter output requires a prior Prepare")
	}
	for _, b := range env.Result.Binds {
		tb := env.Block.Table(b.TableIndex)
		for row := 0; row < b.RowCount; row++ {
			args := w.bindArgs(b.TableName, tb, env, row)
			if _, err := w.prepared.ExecContext(ctx, args...); err != nil {
				return classifyTDengineError(err)
			}
		}
	}
	return nil
}

func (w *TDengineWriter) bindArgs(tableName string, tb *memtable.TableBlock, env Envelope, row int) []interface{} {
	var args []interface{}
	switch w.bindShape {
	case format.BindShapeSubTable:
		args = append(args, tableName)
	case format.BindShapeSuperTable:
		args = append(args, tableName)
	case format.BindShapeAutoCreate:
		args = append(args, tableName)
		for _, tag := range env.Block.TagsFor(tableName) {
			args = append(args, cellArg(tag))
		}
	}
	args = append(args, tb.Timestamp(row))
	for col := range env.Columns {
		if tb.IsNull(col, row) {
			args = append(args, nil)
			continue
		}
		args = append(args, cellArg(tb.Cell(col, row)))
	}
	return args
}

// cellArg converts a model.Cell to the driver.Value-compatible type
// database/sql expects as a bind argument.
func cellArg(c model.Cell) interface{} {
	switch c.Tag {
	case model.TagBool:
		return c.Bool
	case model.TagInt8, model.TagInt16, model.TagInt32, model.TagInt64:
		return c.I64
	case model.TagUint8, model.TagUint16, model.TagUint32, model.TagUint64:
		return c.AsUint64()
	case model.TagFloat:
		return c.F32
	case model.TagDouble:
		return c.F64
	case model.TagNchar:
		return string(utf16.Decode(c.NcharCodepoints))
	case model.TagVarchar, model.TagVarbinary:
		return c.Bytes
	case model.TagDecimal, model.TagJSON, model.TagGeometry:
		return c.Str
	default:
		return nil
	}
}

// classifyTDengineError marks connection-shaped errors as transient (worth
// retrying) and everything else — malformed SQL, auth, schema mismatch —
// as fatal, per spec §7's error-kind table.
func classifyTDengineError(err error) error {
	if errors.Is(err, sql.ErrConnDone) {
		return sinkerr.NewTransient(err)
	}
	return sinkerr.NewFatal(err)
}

// Close implements Writer.
func (w *TDengineWriter) Close() error {
	var err error
	if w.prepared != nil {
		err = w.prepared.Close()
		w.prepared = nil
	}
	if w.db != nil {
		if cerr := w.db.Close(); cerr != nil && err == nil {
			err = cerr
		}
		w.db = nil
	}
	return err
}
