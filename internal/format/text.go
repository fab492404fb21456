package format

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
)

// WriteText writes a human-oriented rendering. A {"data": ...} envelope is unwrapped;
// lists of objects become aligned columns, lists of scalars one per line and
// objects "key: value" lines.
func WriteText(w io.Writer, v any) error {
	x, err := generic(v)
	if err != nil {
		return err
	}
	if m, ok := x.(map[string]any); ok && len(m) == 1 {
		if d, ok := m["data"]; ok {
			x = d
		}
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	switch t := x.(type) {
	case []any:
		writeRows(tw, t)
	case map[string]any:
		keys := sortedKeys(t)
		for _, k := range keys {
			fmt.Fprintf(tw, "%s:\t%s\n", k, scalar(t[k]))
		}
	default:
		fmt.Fprintln(tw, scalar(t))
	}
	return tw.Flush()
}

func writeRows(w io.Writer, rows []any) {
	if len(rows) == 0 {
		return
	}
	if _, ok := rows[0].(map[string]any); !ok {
		for _, r := range rows {
			fmt.Fprintln(w, scalar(r))
		}
		return
	}
	var cols []string
	seen := map[string]bool{}
	for _, r := range rows {
		m, _ := r.(map[string]any)
		for _, k := range sortedKeys(m) {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	cols = preferIDName(cols)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(cols, "\t")))
	for _, r := range rows {
		m, _ := r.(map[string]any)
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = scalar(m[c])
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
}

// preferIDName moves id and name to the front.
func preferIDName(cols []string) []string {
	out := make([]string, 0, len(cols))
	for _, c := range []string{"id", "name"} {
		for _, x := range cols {
			if x == c {
				out = append(out, c)
			}
		}
	}
	for _, c := range cols {
		if c != "id" && c != "name" {
			out = append(out, c)
		}
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return "-"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		if float64(int64(t)) == t {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []any:
		parts := make([]string, len(t))
		for i, x := range t {
			parts[i] = scalar(x)
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		if n, ok := t["name"].(string); ok {
			return n
		}
		parts := make([]string, 0, len(t))
		for _, k := range sortedKeys(t) {
			parts = append(parts, k+"="+scalar(t[k]))
		}
		return strings.Join(parts, " ")
	}
	return fmt.Sprintf("%v", v)
}
