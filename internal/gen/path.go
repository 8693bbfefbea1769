package gen

import (
	"fmt"
	"strconv"
	"strings"
)

// ExpandPath substitutes the first "{field}" token of path with the value of
// each listed field, the way a generated method does at run time. Fields
// whose value is absent or nil leave their token in place.
func ExpandPath(path string, fields []string, values map[string]any) string {
	for _, f := range fields {
		v, ok := values[f]
		if !ok || v == nil {
			continue
		}
		path = strings.Replace(path, "{"+f+"}", pathValue(v), 1)
	}
	return path
}

// pathValue formats v the way String(v) would in TypeScript for the scalar
// values a request can carry.
func pathValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}
