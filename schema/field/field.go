// Package field defines the closed enumeration of abstract column types
// shared by the schema definitions and the dialect-specific SQL generators.
package field

// A Type represents an abstract, dialect-neutral column type.
type Type uint8

// List of all abstract column types.
const (
	TypeInvalid Type = iota
	TypeBool
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt
	TypeInt64
	TypeUint8
	TypeUint16
	TypeUint32
	TypeUint64
	TypeFloat32
	TypeFloat64
	TypeDecimal
	TypeString
	TypeText
	TypeChar
	TypeTime
	TypeDateOnly
	TypeTimeOnly
	TypeEnum
	TypeJSON
	TypeJSONB
	TypeUUID
	TypeGeometry
	TypeBytes
	endTypes
)

var typeNames = [...]string{
	TypeInvalid:  "invalid",
	TypeBool:     "bool",
	TypeInt8:     "int8",
	TypeInt16:    "int16",
	TypeInt32:    "int32",
	TypeInt:      "int",
	TypeInt64:    "int64",
	TypeUint8:    "uint8",
	TypeUint16:   "uint16",
	TypeUint32:   "uint32",
	TypeUint64:   "uint64",
	TypeFloat32:  "float32",
	TypeFloat64:  "float64",
	TypeDecimal:  "decimal",
	TypeString:   "string",
	TypeText:     "text",
	TypeChar:     "char",
	TypeTime:     "time",
	TypeDateOnly: "date",
	TypeTimeOnly: "timeofday",
	TypeEnum:     "enum",
	TypeJSON:     "json",
	TypeJSONB:    "jsonb",
	TypeUUID:     "uuid",
	TypeGeometry: "geometry",
	TypeBytes:    "bytes",
}

var constNames = [...]string{
	TypeInvalid:  "TypeInvalid",
	TypeBool:     "TypeBool",
	TypeInt8:     "TypeInt8",
	TypeInt16:    "TypeInt16",
	TypeInt32:    "TypeInt32",
	TypeInt:      "TypeInt",
	TypeInt64:    "TypeInt64",
	TypeUint8:    "TypeUint8",
	TypeUint16:   "TypeUint16",
	TypeUint32:   "TypeUint32",
	TypeUint64:   "TypeUint64",
	TypeFloat32:  "TypeFloat32",
	TypeFloat64:  "TypeFloat64",
	TypeDecimal:  "TypeDecimal",
	TypeString:   "TypeString",
	TypeText:     "TypeText",
	TypeChar:     "TypeChar",
	TypeTime:     "TypeTime",
	TypeDateOnly: "TypeDateOnly",
	TypeTimeOnly: "TypeTimeOnly",
	TypeEnum:     "TypeEnum",
	TypeJSON:     "TypeJSON",
	TypeJSONB:    "TypeJSONB",
	TypeUUID:     "TypeUUID",
	TypeGeometry: "TypeGeometry",
	TypeBytes:    "TypeBytes",
}

// String returns the lowercase name of the type.
func (t Type) String() string {
	if t < endTypes {
		return typeNames[t]
	}
	return typeNames[TypeInvalid]
}

// ConstName returns the Go constant name of the type.
func (t Type) ConstName() string {
	if t < endTypes {
		return constNames[t]
	}
	return constNames[TypeInvalid]
}

// Valid reports if the given type is a valid member of the enumeration.
func (t Type) Valid() bool {
	return t > TypeInvalid && t < endTypes
}

// Numeric reports if the given type is a numeric type.
func (t Type) Numeric() bool {
	return t >= TypeInt8 && t <= TypeDecimal
}

// Integer reports if the given type is an integral type.
func (t Type) Integer() bool {
	return t >= TypeInt8 && t <= TypeUint64
}

// Float reports if the given type is a float type.
func (t Type) Float() bool {
	return t == TypeFloat32 || t == TypeFloat64
}

// Textual reports if the given type renders as a character type.
func (t Type) Textual() bool {
	switch t {
	case TypeString, TypeText, TypeChar, TypeEnum:
		return true
	}
	return false
}

// NoDefault reports if columns of the given type must not carry a literal
// default value. Several dialects reject defaults on large-object columns,
// so the generator suppresses them uniformly.
func (t Type) NoDefault() bool {
	switch t {
	case TypeText, TypeBytes, TypeJSON, TypeJSONB, TypeGeometry:
		return true
	}
	return false
}

// FromName returns the type matching the given lowercase name,
// or TypeInvalid if there is no such type.
func FromName(name string) Type {
	for t := TypeBool; t < endTypes; t++ {
		if typeNames[t] == name {
			return t
		}
	}
	return TypeInvalid
}
