package sql

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vireosql/vireo/dialect"
	"github.com/vireosql/vireo/schema"
	"github.com/vireosql/vireo/schema/field"
)

const defaultStringSize = 255

// ColumnType maps a logical column to the dialect's SQL type syntax.
// The mapping is a total, deterministic function over the closed type
// enumeration; combinations the dialect cannot express return an
// UnsupportedTypeError naming the type and dialect.
func (g *Grammar) ColumnType(c *schema.Column) (string, error) {
	switch c.Type {
	case field.TypeBool:
		switch g.Name {
		case dialect.Postgres:
			return "boolean", nil
		case dialect.SQLServer:
			return "bit", nil
		default:
			return "bool", nil
		}
	case field.TypeInt8:
		return g.intType("tinyint", "smallint"), nil
	case field.TypeInt16:
		return "smallint", nil
	case field.TypeInt32:
		return g.intType("int", "integer"), nil
	case field.TypeInt, field.TypeInt64:
		if g.Name == dialect.SQLite {
			// sqlite rowid aliasing requires the exact "integer" name.
			return "integer", nil
		}
		return "bigint", nil
	case field.TypeUint8:
		return g.unsignedType("tinyint unsigned", "smallint")
	case field.TypeUint16:
		return g.unsignedType("smallint unsigned", "integer")
	case field.TypeUint32:
		return g.unsignedType("int unsigned", "bigint")
	case field.TypeUint64:
		return g.unsignedType("bigint unsigned", "numeric(20)")
	case field.TypeFloat32:
		if g.Name == dialect.Postgres {
			return "real", nil
		}
		return "float", nil
	case field.TypeFloat64:
		if g.Name == dialect.Postgres {
			return "double precision", nil
		}
		if g.Name == dialect.MySQL {
			return "double", nil
		}
		return "float", nil
	case field.TypeDecimal:
		p, s := c.Precision, c.Scale
		if p == 0 {
			p, s = 10, 2
		}
		return fmt.Sprintf("decimal(%d,%d)", p, s), nil
	case field.TypeString:
		size := c.Size
		if size == 0 {
			size = defaultStringSize
		}
		return fmt.Sprintf("varchar(%d)", size), nil
	case field.TypeText:
		switch g.Name {
		case dialect.SQLServer:
			return "varchar(max)", nil
		default:
			return "text", nil
		}
	case field.TypeChar:
		size := c.Size
		if size == 0 {
			size = 1
		}
		return fmt.Sprintf("char(%d)", size), nil
	case field.TypeTime:
		switch g.Name {
		case dialect.Postgres:
			return "timestamptz", nil
		case dialect.SQLServer:
			return "datetime2", nil
		case dialect.MySQL:
			return "datetime(6)", nil
		default:
			return "datetime", nil
		}
	case field.TypeDateOnly:
		return "date", nil
	case field.TypeTimeOnly:
		if g.Name == dialect.MySQL {
			return "time(6)", nil
		}
		return "time", nil
	case field.TypeEnum:
		return g.enumType(c)
	case field.TypeJSON:
		switch g.Name {
		case dialect.SQLServer:
			// No json column type before 2025; stored as text and
			// accessed through JSON_VALUE/JSON_QUERY.
			return "nvarchar(max)", nil
		default:
			return "json", nil
		}
	case field.TypeJSONB:
		if g.Name != dialect.Postgres {
			return "", &UnsupportedTypeError{Type: c.Type.String(), Dialect: g.Name}
		}
		return "jsonb", nil
	case field.TypeUUID:
		switch g.Name {
		case dialect.Postgres:
			return "uuid", nil
		case dialect.SQLServer:
			return "uniqueidentifier", nil
		default:
			return "char(36)", nil
		}
	case field.TypeGeometry:
		switch g.Name {
		case dialect.MySQL, dialect.SQLServer:
			return "geometry", nil
		default:
			return "", &UnsupportedTypeError{Type: c.Type.String(), Dialect: g.Name}
		}
	case field.TypeBytes:
		switch g.Name {
		case dialect.Postgres:
			return "bytea", nil
		case dialect.SQLServer:
			return "varbinary(max)", nil
		default:
			return "blob", nil
		}
	default:
		return "", &UnsupportedTypeError{Type: c.Type.String(), Dialect: g.Name}
	}
}

func (g *Grammar) intType(mysqlName, stdName string) string {
	if g.Name == dialect.MySQL {
		return mysqlName
	}
	if g.Name == dialect.SQLite {
		return "integer"
	}
	return stdName
}

func (g *Grammar) unsignedType(mysqlName, widened string) (string, error) {
	switch g.Name {
	case dialect.MySQL:
		return mysqlName, nil
	case dialect.SQLite:
		return "integer", nil
	default:
		// Dialects without unsigned integers widen to the next size.
		return widened, nil
	}
}

// enumType renders an enum column. Dialects without a native enum type
// get a fixed-width character column sized to the longest permitted
// value; the restriction itself is enforced by the model layer. This is
// a portability simplification.
func (g *Grammar) enumType(c *schema.Column) (string, error) {
	if len(c.Enums) == 0 {
		return "", NewRequestError("enum column %q has no permitted values", c.Name)
	}
	if g.NativeEnum {
		quoted := make([]string, len(c.Enums))
		for i, e := range c.Enums {
			quoted[i] = g.escapeString(e)
		}
		return "enum(" + strings.Join(quoted, ", ") + ")", nil
	}
	longest := 0
	for _, e := range c.Enums {
		if len(e) > longest {
			longest = len(e)
		}
	}
	return fmt.Sprintf("char(%d)", longest), nil
}

// ParseOptions configure raw driver value parsing.
type ParseOptions struct {
	// Location reconstructs timestamps in the given timezone.
	// Defaults to UTC.
	Location *time.Location
}

// geomHeaderLen is the length of the SRID prefix some drivers prepend to
// WKB geometry payloads.
const geomHeaderLen = 4

// ParseValue converts a raw driver value into the typed value matching
// the abstract column type. It is the inverse direction of ColumnType,
// applied when reading rows back.
func (g *Grammar) ParseValue(raw any, t field.Type, opts ParseOptions) (any, error) {
	if raw == nil {
		return nil, nil
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	switch t {
	case field.TypeBool:
		return parseBool(raw)
	case field.TypeInt8, field.TypeInt16, field.TypeInt32, field.TypeInt, field.TypeInt64,
		field.TypeUint8, field.TypeUint16, field.TypeUint32, field.TypeUint64:
		return parseInt(raw)
	case field.TypeFloat32, field.TypeFloat64:
		return parseFloat(raw)
	case field.TypeDecimal:
		// Decimals stay textual to avoid precision loss.
		return asString(raw), nil
	case field.TypeString, field.TypeText, field.TypeChar, field.TypeEnum:
		return asString(raw), nil
	case field.TypeTime, field.TypeDateOnly, field.TypeTimeOnly:
		return parseTime(raw, t, loc)
	case field.TypeJSON, field.TypeJSONB:
		return parseJSON(raw)
	case field.TypeUUID:
		return parseUUID(raw)
	case field.TypeGeometry:
		return parseGeometry(raw)
	case field.TypeBytes:
		if b, ok := raw.([]byte); ok {
			return b, nil
		}
		return []byte(asString(raw)), nil
	default:
		return raw, nil
	}
}

func asString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

func parseBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case []byte:
		return parseBoolString(string(v))
	case string:
		return parseBoolString(v)
	default:
		return false, fmt.Errorf("sql: cannot parse %T as bool", raw)
	}
}

func parseBoolString(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "t", "true":
		return true, nil
	case "0", "f", "false", "":
		return false, nil
	}
	return strconv.ParseBool(s)
}

func parseInt(raw any) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("sql: cannot parse %T as integer", raw)
	}
}

func parseFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case []byte:
		return strconv.ParseFloat(string(v), 64)
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("sql: cannot parse %T as float", raw)
	}
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02",
	"15:04:05.999999999",
	"15:04:05",
}

func parseTime(raw any, t field.Type, loc *time.Location) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v.In(loc), nil
	case []byte:
		return parseTimeString(string(v), loc)
	case string:
		return parseTimeString(v, loc)
	default:
		return time.Time{}, fmt.Errorf("sql: cannot parse %T as %s", raw, t)
	}
}

func parseTimeString(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range timeLayouts {
		if tv, err := time.ParseInLocation(layout, s, loc); err == nil {
			return tv, nil
		}
	}
	return time.Time{}, fmt.Errorf("sql: unrecognized time literal %q", s)
}

// parseJSON decodes a JSON document. Drivers return either raw text
// needing a parse, or an already-structured value that passes through.
func parseJSON(raw any) (any, error) {
	var data []byte
	switch v := raw.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return v, nil
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("sql: malformed json document: %w", err)
	}
	return out, nil
}

func parseUUID(raw any) (uuid.UUID, error) {
	switch v := raw.(type) {
	case []byte:
		if len(v) == 16 {
			return uuid.FromBytes(v)
		}
		return uuid.Parse(string(v))
	case string:
		return uuid.Parse(v)
	default:
		return uuid.Nil, fmt.Errorf("sql: cannot parse %T as uuid", raw)
	}
}

// parseGeometry strips the 4-byte SRID header the driver prepends to the
// payload and returns the remaining WKB bytes.
func parseGeometry(raw any) ([]byte, error) {
	b, ok := raw.([]byte)
	if !ok {
		return nil, fmt.Errorf("sql: cannot parse %T as geometry", raw)
	}
	if len(b) <= geomHeaderLen {
		return nil, fmt.Errorf("sql: geometry payload too short (%d bytes)", len(b))
	}
	return b[geomHeaderLen:], nil
}
