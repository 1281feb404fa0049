package edsbridge

import (
	"testing"

	"github.com/samsamfire/coodcore/pkg/cood"
	"github.com/samsamfire/coodcore/pkg/cood/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleEDS = `
[1000]
ParameterName=Device type
DataType=0x0007
AccessType=ro
PDOMapping=0

[1018]
ParameterName=Identity object
SubNumber=2

[1018sub0]
ParameterName=Highest sub-index supported
DataType=0x0005
AccessType=ro

[1018sub1]
ParameterName=Vendor ID
DataType=0x0007
AccessType=ro
PDOMapping=0
`

func TestLoadRegistersVariableAndRecord(t *testing.T) {
	dict := cood.New()
	require.NoError(t, Load(dict, []byte(sampleEDS)))

	assert.Equal(t, 2, dict.Count())

	h := dict.Get(0x1000)
	defer h.Close()
	require.False(t, h.IsEmpty())
	obj, err := h.Object()
	require.NoError(t, err)
	assert.Equal(t, object.KindVariable, obj.Kind())
	assert.Equal(t, "Device type", obj.Name())

	h2 := dict.Get(0x1018)
	defer h2.Close()
	require.False(t, h2.IsEmpty())
	obj2, err := h2.Object()
	require.NoError(t, err)
	assert.Equal(t, object.KindRecord, obj2.Kind())
	assert.Equal(t, uint8(1), obj2.MaxSubindices())
}

func TestLoadRejectsUnsupportedDataType(t *testing.T) {
	dict := cood.New()
	err := Load(dict, []byte(`
[2000]
ParameterName=Bad
DataType=0xFFFF
AccessType=ro
`))
	assert.Error(t, err)
}
