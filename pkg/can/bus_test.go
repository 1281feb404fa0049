package can

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteAccessCOBIDsMatchesPredefinedConnectionSet(t *testing.T) {
	req, resp, err := RemoteAccessCOBIDs(0x22)
	require.NoError(t, err)
	assert.EqualValues(t, 0x622, req)
	assert.EqualValues(t, 0x5A2, resp)
}

func TestRemoteAccessCOBIDsRejectsOutOfRangeNodeID(t *testing.T) {
	_, _, err := RemoteAccessCOBIDs(0)
	assert.Error(t, err)
	_, _, err = RemoteAccessCOBIDs(128)
	assert.Error(t, err)
}

func TestNewBusRejectsUnregisteredInterface(t *testing.T) {
	_, err := NewBus("does-not-exist", "can0", 0)
	assert.Error(t, err)
}
