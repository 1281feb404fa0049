package cood

import (
	"sync"
	"testing"

	"github.com/samsamfire/coodcore/pkg/cood/codec"
	"github.com/samsamfire/coodcore/pkg/cood/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVar(index uint16, name string) *object.Object {
	acc := object.NewMapAccessor(map[uint8]any{0: uint8(0)})
	return object.NewVariable(index, name, object.SubindexDescriptor{
		DataType: codec.Unsigned8, Attr: object.AttrRead | object.AttrWrite,
	}, acc)
}

func TestRegisterLookupRemove(t *testing.T) {
	od := New()
	require.NoError(t, od.Register(0x1000, newVar(0x1000, "var")))
	require.NoError(t, od.Register(0x2000, newVar(0x2000, "array")))
	require.NoError(t, od.Register(0x3000, newVar(0x3000, "record")))

	assert.Equal(t, 3, od.Count())
	assert.Equal(t, []uint16{0x1000, 0x2000, 0x3000}, od.Indices())

	h := od.Get(0x2000)
	obj, err := h.Object()
	require.NoError(t, err)
	assert.Equal(t, "array", obj.Name())
	h.Close()

	od.Remove(0x2000)
	assert.Equal(t, 2, od.Count())
}

func TestRegisterDuplicateIndexFails(t *testing.T) {
	od := New()
	require.NoError(t, od.Register(0x1000, newVar(0x1000, "a")))
	err := od.Register(0x1000, newVar(0x1000, "b"))
	assert.ErrorIs(t, err, ErrIndexInUse)
}

func TestGetNextNearest(t *testing.T) {
	od := New()
	require.NoError(t, od.Register(0x1000, newVar(0x1000, "a")))
	require.NoError(t, od.Register(0x2000, newVar(0x2000, "b")))

	h := od.GetNextNearest(0)
	assert.Equal(t, uint16(0x1000), h.Index())
	h.Close()

	h = od.GetNextNearest(0x1000)
	assert.Equal(t, uint16(0x1000), h.Index())
	h.Close()

	h = od.GetNextNearest(0x1001)
	assert.Equal(t, uint16(0x2000), h.Index())
	h.Close()

	h = od.GetNextNearest(0x2001)
	assert.True(t, h.IsEmpty())
}

func TestRegisterBlocksWhileHandleOutstanding(t *testing.T) {
	od := New()
	require.NoError(t, od.Register(0x1000, newVar(0x1000, "a")))

	h := od.Get(0x1000)
	defer h.Close()

	registered := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = od.Register(0x2000, newVar(0x2000, "b"))
		close(registered)
	}()

	select {
	case <-registered:
		t.Fatal("Register proceeded while a handle was outstanding")
	default:
	}

	h.Close() // release the outstanding read-lock
	wg.Wait()
	assert.Equal(t, 2, od.Count())
}

func TestHandleIncrementWalksAscending(t *testing.T) {
	od := New()
	require.NoError(t, od.Register(0x1000, newVar(0x1000, "a")))
	require.NoError(t, od.Register(0x2000, newVar(0x2000, "b")))

	h := od.First()
	assert.Equal(t, uint16(0x1000), h.Index())
	h.Increment()
	assert.Equal(t, uint16(0x2000), h.Index())
	h.Increment()
	assert.True(t, h.IsEmpty())
}

func TestHandleCloneIndependentClose(t *testing.T) {
	od := New()
	require.NoError(t, od.Register(0x1000, newVar(0x1000, "a")))

	h1 := od.Get(0x1000)
	h2 := h1.Clone()

	h1.Close()
	// od should still be read-locked by h2: Register must not proceed.
	done := make(chan struct{})
	go func() {
		_ = od.Register(0x2000, newVar(0x2000, "b"))
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("Register proceeded while h2 was outstanding")
	default:
	}
	h2.Close()
	<-done
}

func TestEmptyHandleObjectFails(t *testing.T) {
	var h ObjectHandle
	_, err := h.Object()
	assert.ErrorIs(t, err, ErrEmptyHandle)
}

func TestDestroyPanicsWithOutstandingHandle(t *testing.T) {
	od := New()
	require.NoError(t, od.Register(0x1000, newVar(0x1000, "a")))
	h := od.Get(0x1000)
	defer h.Close()

	assert.Panics(t, func() { od.Destroy() })
}
