package dal

import (
	"encoding/json"
	"fmt"
	"os"
)

// Table is a detached tabular result: rows with named columns but no column
// metadata. UCD and datalink discovery do not apply to it.
type Table struct {
	columns []string
	rows    []Row
}

// Row is one detached table row.
type Row struct {
	columns []string
	values  map[string]any
}

// NewTable creates a table with the given column order.
func NewTable(columns []string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{columns: cols}
}

// Append adds a row. Values for columns missing from the map read as absent.
func (t *Table) Append(values map[string]any) {
	t.rows = append(t.rows, Row{columns: t.columns, values: values})
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Row returns the i-th row.
func (t *Table) Row(i int) Row { return t.rows[i] }

// Rows returns all rows in order.
func (t *Table) Rows() []Row { return t.rows }

// ColumnNames returns the ordered column names.
func (t *Table) ColumnNames() []string {
	cols := make([]string, len(t.columns))
	copy(cols, t.columns)
	return cols
}

// Value returns the field value by column name.
func (r Row) Value(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// ColumnNames returns the ordered column names of the owning table.
func (r Row) ColumnNames() []string {
	cols := make([]string, len(r.columns))
	copy(cols, r.columns)
	return cols
}

// tableFile is the on-disk JSON shape read by LoadTable.
type tableFile struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// LoadTable reads a detached table from a JSON file of the form
// {"columns": [...], "rows": [{...}, ...]}.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read table %s: %w", path, err)
	}
	var tf tableFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse table %s: %w", path, err)
	}
	t := NewTable(tf.Columns)
	for _, r := range tf.Rows {
		t.Append(r)
	}
	return t, nil
}
