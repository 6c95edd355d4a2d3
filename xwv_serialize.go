package xwebview

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

type scriptRepresentable interface {
	scriptNamespace() string
}

// serialize converts a native value into a script literal expression.
// Script object handles serialize as their namespace expression rather than
// being flattened; nil is undefined, Null is null; anything else falls back
// to its JSON representation.
func serialize(value any) string {
	switch v := value.(type) {
	case nil:
		return "undefined"
	case nullValue:
		return "null"
	case scriptRepresentable:
		return v.scriptNamespace()
	case error:
		return fmt.Sprintf("new Error(%s)", quote(v.Error()))
	case bool:
		if v {
			return "true"
		}
		return "false"
	case string:
		return quote(v)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case time.Time:
		return fmt.Sprintf("new Date(%d)", v.UnixMilli())
	case []any:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = serialize(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = quote(k) + ": " + serialize(v[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		if b, err := json.Marshal(value); err == nil {
			return string(b)
		}
		return "undefined"
	}
}

func serializeArgs(args []any) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = serialize(arg)
	}
	return strings.Join(parts, ", ")
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
