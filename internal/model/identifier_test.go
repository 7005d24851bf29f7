package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeIdentifier(t *testing.T) {
	assert.Equal(t, "52998224725", NormalizeIdentifier("529.982.247-25"))
	assert.Equal(t, "11222333000181", NormalizeIdentifier("11.222.333/0001-81"))
	assert.Equal(t, "52998224725", NormalizeIdentifier("52998224725"))
	assert.Equal(t, "", NormalizeIdentifier("abc"))
}

func TestDetectKind(t *testing.T) {
	kind, err := DetectKind("529.982.247-25")
	require.NoError(t, err)
	assert.Equal(t, KindIndividual, kind)

	kind, err = DetectKind("11.222.333/0001-81")
	require.NoError(t, err)
	assert.Equal(t, KindCompany, kind)

	_, err = DetectKind("12345")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidIdentifier))
}

func TestValidateIdentifier_Individual(t *testing.T) {
	assert.NoError(t, ValidateIdentifier("529.982.247-25"))
	assert.NoError(t, ValidateIdentifier("52998224725"))

	// Last digit off by one.
	assert.Error(t, ValidateIdentifier("52998224724"))
	// Checksum-satisfying but never issued.
	assert.Error(t, ValidateIdentifier("11111111111"))
	assert.Error(t, ValidateIdentifier("123"))
}

func TestValidateIdentifier_Company(t *testing.T) {
	assert.NoError(t, ValidateIdentifier("11.222.333/0001-81"))
	assert.NoError(t, ValidateIdentifier("11222333000181"))

	assert.Error(t, ValidateIdentifier("11222333000182"))
	assert.Error(t, ValidateIdentifier("00000000000000"))
}

func TestMaskIdentifier(t *testing.T) {
	assert.Equal(t, "529.***.***-25", MaskIdentifier("52998224725"))
	assert.Equal(t, "529.***.***-25", MaskIdentifier("529.982.247-25"))
	assert.Equal(t, "1122****/****-81", MaskIdentifier("11222333000181"))
	// Unrecognized lengths still never echo the middle.
	assert.Equal(t, "12***78", MaskIdentifier("1234578"))
	assert.Equal(t, "****", MaskIdentifier("123"))
}
