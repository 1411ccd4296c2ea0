package field

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeNames(t *testing.T) {
	for typ := TypeBool; typ < endTypes; typ++ {
		assert.True(t, typ.Valid())
		assert.Equal(t, typ, FromName(typ.String()), "name %q must round-trip", typ.String())
	}
	assert.Equal(t, "invalid", TypeInvalid.String())
	assert.Equal(t, "invalid", Type(200).String())
	assert.Equal(t, "TypeDateOnly", TypeDateOnly.ConstName())
	assert.Equal(t, TypeInvalid, FromName("varint"))
	assert.Equal(t, TypeInvalid, FromName("Bool"))
	assert.False(t, TypeInvalid.Valid())
	assert.False(t, Type(200).Valid())
}

func TestTypePredicates(t *testing.T) {
	assert.True(t, TypeInt.Numeric())
	assert.True(t, TypeDecimal.Numeric())
	assert.False(t, TypeBool.Numeric())
	assert.False(t, TypeString.Numeric())

	assert.True(t, TypeUint64.Integer())
	assert.False(t, TypeFloat64.Integer())
	assert.False(t, TypeDecimal.Integer())

	assert.True(t, TypeFloat32.Float())
	assert.False(t, TypeDecimal.Float())

	assert.True(t, TypeEnum.Textual())
	assert.True(t, TypeChar.Textual())
	assert.True(t, TypeText.Textual())
	assert.False(t, TypeBytes.Textual())

	assert.True(t, TypeJSONB.NoDefault())
	assert.True(t, TypeGeometry.NoDefault())
	assert.False(t, TypeString.NoDefault())
	assert.False(t, TypeTime.NoDefault())
}
