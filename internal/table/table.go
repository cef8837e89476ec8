package table

// RawTable is a delimited file as read from disk: ordered column labels and
// rows of string cells aligned to those labels. An empty string is a
// missing cell. Transformations return new tables.
type RawTable struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"-"`

	// Read diagnostics
	HeaderRow         int      `json:"header_row"`
	Delimiter         rune     `json:"-"`
	SkippedRows       int      `json:"skipped_rows"`
	DroppedDuplicates []string `json:"dropped_duplicates,omitempty"`
}

// New builds a table from columns and rows. Rows are padded or truncated to
// the column count.
func New(columns []string, rows [][]string) *RawTable {
	t := &RawTable{
		Columns: append([]string(nil), columns...),
		Rows:    make([][]string, 0, len(rows)),
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, fit(r, len(columns)))
	}
	return t
}

func fit(row []string, n int) []string {
	out := make([]string, n)
	copy(out, row)
	return out
}

// Len returns the number of data rows.
func (t *RawTable) Len() int {
	return len(t.Rows)
}

// Index returns the position of the column with exactly this label, or -1.
func (t *RawTable) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Has reports whether a column with exactly this label exists.
func (t *RawTable) Has(name string) bool {
	return t.Index(name) >= 0
}

// Column returns a copy of the cells of the named column.
func (t *RawTable) Column(name string) ([]string, bool) {
	idx := t.Index(name)
	if idx < 0 {
		return nil, false
	}
	out := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[idx]
	}
	return out, true
}

// Clone returns a deep copy of the table.
func (t *RawTable) Clone() *RawTable {
	out := *t
	out.Columns = append([]string(nil), t.Columns...)
	out.DroppedDuplicates = append([]string(nil), t.DroppedDuplicates...)
	out.Rows = make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		out.Rows[i] = append([]string(nil), r...)
	}
	return &out
}

// WithColumn returns a copy of the table where the named column holds
// values. An existing column is replaced in place, a new one is appended.
func (t *RawTable) WithColumn(name string, values []string) *RawTable {
	out := t.Clone()
	idx := out.Index(name)
	if idx < 0 {
		out.Columns = append(out.Columns, name)
		for i := range out.Rows {
			out.Rows[i] = append(out.Rows[i], "")
		}
		idx = len(out.Columns) - 1
	}
	for i := range out.Rows {
		if i < len(values) {
			out.Rows[i][idx] = values[i]
		} else {
			out.Rows[i][idx] = ""
		}
	}
	return out
}

// Drop returns a copy without the named columns. Unknown names are ignored.
func (t *RawTable) Drop(names ...string) *RawTable {
	if len(names) == 0 {
		return t.Clone()
	}
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	return t.Keep(func(col string) bool { return !drop[col] })
}

// Keep returns a copy holding only the columns for which keep returns true.
func (t *RawTable) Keep(keep func(col string) bool) *RawTable {
	return t.keepIndex(func(_ int, col string) bool { return keep(col) })
}

func (t *RawTable) keepIndex(keep func(i int, col string) bool) *RawTable {
	var idx []int
	out := &RawTable{
		HeaderRow:         t.HeaderRow,
		Delimiter:         t.Delimiter,
		SkippedRows:       t.SkippedRows,
		DroppedDuplicates: append([]string(nil), t.DroppedDuplicates...),
	}
	for i, c := range t.Columns {
		if keep(i, c) {
			idx = append(idx, i)
			out.Columns = append(out.Columns, c)
		}
	}
	out.Rows = make([][]string, len(t.Rows))
	for r, row := range t.Rows {
		nr := make([]string, len(idx))
		for j, i := range idx {
			nr[j] = row[i]
		}
		out.Rows[r] = nr
	}
	return out
}

// Rename returns a copy with columns renamed per mapping. Columns absent from
// the mapping keep their label.
func (t *RawTable) Rename(mapping map[string]string) *RawTable {
	out := t.Clone()
	for i, c := range out.Columns {
		if to, ok := mapping[c]; ok {
			out.Columns[i] = to
		}
	}
	return out
}

// DropEmpty removes rows whose cells are all blank, then columns whose cells
// are all blank.
func (t *RawTable) DropEmpty() *RawTable {
	out := t.Clone()
	rows := out.Rows[:0]
	for _, r := range out.Rows {
		if !allBlank(r) {
			rows = append(rows, r)
		}
	}
	out.Rows = rows

	filled := make([]bool, len(out.Columns))
	for _, r := range out.Rows {
		for i, v := range r {
			if !IsBlank(v) {
				filled[i] = true
			}
		}
	}
	return out.keepIndex(func(i int, _ string) bool { return filled[i] })
}

func allBlank(row []string) bool {
	for _, v := range row {
		if !IsBlank(v) {
			return false
		}
	}
	return true
}
