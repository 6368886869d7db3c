package valuecodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapNativeToWireTotal(t *testing.T) {
	assert.Equal(t, TypeString, MapNativeToWire(NativeString))
	assert.Equal(t, TypeInt, MapNativeToWire(NativeInt))
	assert.Equal(t, TypeNone, MapNativeToWire(NativeNone))
	assert.Equal(t, TypeGroup, MapNativeToWire(NativeGroup))
	assert.Equal(t, TypeString, MapNativeToWire(NativeType(999)))
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	cases := []TypedValue{
		{Value: "true", Type: TypeBool},
		{Value: "false", Type: TypeBool},
		{Value: "-42", Type: TypeInt},
		{Value: "42", Type: TypeUint},
		{Value: "3.14", Type: TypeFloat},
		{Value: "hello", Type: TypeString},
		{Value: "9223372036854775807", Type: TypeLong},
	}
	for _, tc := range cases {
		decoded, err := Decode(tc.Value, tc.Type)
		require.NoError(t, err)
		v, ty := Encode(decoded)
		assert.Equal(t, tc.Value, v)
		assert.Equal(t, tc.Type, ty)
	}
}

func TestDecodeRejectsInvalidBool(t *testing.T) {
	_, err := Decode("yes", TypeBool)
	require.Error(t, err)
}

func TestDecodeRejectsOutOfRangeInt(t *testing.T) {
	_, err := Decode("99999999999999999999", TypeInt)
	require.Error(t, err)
}

func TestDecodeBytesBase64(t *testing.T) {
	tv, err := Decode("aGVsbG8=", TypeBytes)
	require.NoError(t, err)
	assert.Equal(t, "aGVsbG8=", tv.Value)
}

func TestDecodeRejectsInvalidBase64(t *testing.T) {
	_, err := Decode("not base64!!", TypeBytes)
	require.Error(t, err)
}

func TestEncodeBoolLowercasesAndTrims(t *testing.T) {
	v, _ := Encode(TypedValue{Value: "TRUE  ", Type: TypeBool})
	assert.Equal(t, "true", v)
}
