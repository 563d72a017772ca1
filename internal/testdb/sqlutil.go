package testdb

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// TableRef names a table as schema.table.
type TableRef struct {
	Schema string
	Table  string
}

func (r TableRef) String() string {
	return r.Schema + "." + r.Table
}

// ParseTableRef splits "schema.table" and validates both parts.
func ParseTableRef(v string) (TableRef, error) {
	parts := strings.Split(strings.TrimSpace(v), ".")
	if len(parts) != 2 {
		return TableRef{}, fmt.Errorf("table %q must be written as schema.table", v)
	}

	ref := TableRef{Schema: parts[0], Table: parts[1]}
	if err := checkIdentifier(ref.Schema); err != nil {
		return TableRef{}, err
	}
	if err := checkIdentifier(ref.Table); err != nil {
		return TableRef{}, err
	}
	return ref, nil
}

func checkIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}

// renderLiteral is the only place values become SQL text. Strings and times
// are quoted with embedded quotes doubled; numbers and booleans are written
// bare.
func renderLiteral(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return quoteLiteral(t), nil
	case []byte:
		return quoteLiteral(string(t)), nil
	case time.Time:
		return quoteLiteral(t.Format("2006-01-02 15:04:05.999999")), nil
	case bool:
		return strconv.FormatBool(t), nil
	case int:
		return strconv.Itoa(t), nil
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", t), nil
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported value %v of type %T", v, v)
	}
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func stripLeadingComments(sqlText string) string {
	s := strings.TrimSpace(sqlText)
	for {
		s = strings.TrimSpace(s)

		if strings.HasPrefix(s, "--") {
			idx := strings.Index(s, "\n")
			if idx == -1 {
				return ""
			}
			s = s[idx+1:]
			continue
		}

		if strings.HasPrefix(s, "/*") {
			idx := strings.Index(s, "*/")
			if idx == -1 {
				return ""
			}
			s = s[idx+2:]
			continue
		}

		return s
	}
}
