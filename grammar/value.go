package grammar

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatValue renders a Go value as a SQLite literal suitable for an INSERT
// statement: strings are single-quoted with embedded quotes doubled, byte
// slices become X'..' blob literals, numbers and bools render directly, a
// time.Time renders as a quoted UTC timestamp, and anything else falls back
// to a JSON round trip wrapped in a quoted string literal.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return formatBlob(val)
	case string:
		return QuoteLiteral(val)
	case bool:
		if val {
			return "1"
		}
		return "0"
	case int:
		return strconv.FormatInt(int64(val), 10)
	case int8:
		return strconv.FormatInt(int64(val), 10)
	case int16:
		return strconv.FormatInt(int64(val), 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint:
		return strconv.FormatUint(uint64(val), 10)
	case uint8:
		return strconv.FormatUint(uint64(val), 10)
	case uint16:
		return strconv.FormatUint(uint64(val), 10)
	case uint32:
		return strconv.FormatUint(uint64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case time.Time:
		return QuoteLiteral(val.UTC().Format("2006-01-02 15:04:05"))
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return "NULL"
		}
		return QuoteLiteral(string(b))
	}
}

// QuoteLiteral wraps s as a single-quoted SQLite string literal, doubling
// any embedded single quotes.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func formatBlob(b []byte) string {
	var sb strings.Builder
	sb.WriteString("X'")
	for _, c := range b {
		fmt.Fprintf(&sb, "%02x", c)
	}
	sb.WriteString("'")
	return sb.String()
}
