package rowgen

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/cockroachdb/errors"

	"github.com/taosdata/taosgen-sub001/internal/model"
)

// LoadCSVRows reads rows for one table from r: the first field of each
// record is the timestamp, followed by one field per column in schema
// order. This is the CSV-backed row source referenced by
// original_source's TableData.h/ChildTableInfo.h and dropped from the
// distilled spec (see SPEC_FULL.md §7).
func LoadCSVRows(r io.Reader, schema []model.ColumnConfig) ([]model.Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(schema) + 1

	var rows []model.Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "rowgen: reading csv row")
		}
		ts, err := strconv.ParseInt(record[0], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "rowgen: parsing csv timestamp %q", record[0])
		}
		cells := make([]model.Cell, len(schema))
		for i, col := range schema {
			cell, err := convertLiteral(col.Type, record[i+1])
			if err != nil {
				return nil, errors.Wrapf(err, "rowgen: parsing csv column %q", col.Name)
			}
			cells[i] = cell
		}
		rows = append(rows, model.Row{Timestamp: ts, Columns: cells})
	}
	if len(rows) == 0 {
		return nil, errors.New("rowgen: csv source contains no rows")
	}
	return rows, nil
}
