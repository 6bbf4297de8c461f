package google

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"budget/internal/docstore"
)

// idColumn is the header of the first column of every collection sheet.
const idColumn = "id"

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []any, idx int) any {
	if idx < 0 || idx >= len(arr) {
		return nil
	}
	return arr[idx]
}

// rowsToDocuments converts a values matrix whose first row is the header into
// documents. Rows without an id and empty cells are skipped.
func rowsToDocuments(values [][]any) []docstore.Document {
	if len(values) == 0 {
		return nil
	}
	header := toStrings(values[0])
	idCol := slices.Index(header, idColumn)
	if idCol == -1 {
		return nil
	}
	out := make([]docstore.Document, 0, len(values)-1)
	for _, row := range values[1:] {
		id := strings.TrimSpace(fmt.Sprint(safeGet(row, idCol)))
		if id == "" || id == "<nil>" {
			continue
		}
		rec := docstore.Record{}
		for col, name := range header {
			if col == idCol || name == "" {
				continue
			}
			v := safeGet(row, col)
			if v == nil {
				continue
			}
			if s, ok := v.(string); ok && s == "" {
				continue
			}
			rec[name] = v
		}
		out = append(out, docstore.Document{ID: id, Data: rec})
	}
	return out
}

// extendHeader returns header with any record keys it lacks appended in
// sorted order, and whether anything was added. An empty header starts with
// the id column.
func extendHeader(header []string, rec docstore.Record) ([]string, bool) {
	out := slices.Clone(header)
	changed := false
	if len(out) == 0 {
		out = []string{idColumn}
		changed = true
	}
	keys := make([]string, 0, len(rec))
	for k := range rec {
		if k != idColumn && !slices.Contains(out, k) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	if len(keys) > 0 {
		out = append(out, keys...)
		changed = true
	}
	return out, changed
}

// recordToRow lays rec out along header. Nested values are stored as JSON text.
func recordToRow(header []string, id string, rec docstore.Record) []any {
	row := make([]any, len(header))
	for i, name := range header {
		if name == idColumn {
			row[i] = id
			continue
		}
		switch v := rec[name].(type) {
		case nil:
			row[i] = ""
		case string, float64, float32, int, int64, bool:
			row[i] = v
		default:
			b, err := json.Marshal(v)
			if err != nil {
				row[i] = fmt.Sprint(v)
			} else {
				row[i] = string(b)
			}
		}
	}
	return row
}

// findRow returns the zero-based sheet row holding id, or -1.
func findRow(values [][]any, id string) int {
	if len(values) == 0 {
		return -1
	}
	idCol := slices.Index(toStrings(values[0]), idColumn)
	if idCol == -1 {
		return -1
	}
	for i := 1; i < len(values); i++ {
		if strings.TrimSpace(fmt.Sprint(safeGet(values[i], idCol))) == id {
			return i
		}
	}
	return -1
}

// quoteSheet quotes a sheet title for use in A1 notation.
func quoteSheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}
