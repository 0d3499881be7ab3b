package rendering

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// CellText converts a row value to display text. Missing and null values
// become the empty string.
func CellText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case map[string]any, []any:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	default:
		return fmt.Sprint(val)
	}
}

// flattenCell keeps a value on one line so column alignment holds.
func flattenCell(s string) string {
	if !strings.ContainsAny(s, "\t\r\n") {
		return s
	}
	r := strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ")
	return r.Replace(s)
}
