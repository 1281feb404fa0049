package object

import "github.com/samsamfire/coodcore/pkg/cood/abortcode"

// BeforeReadHook runs with the data mutex held, before a subindex's
// native value is transcoded onto the wire. sizeQuery is set when the
// caller only wants subindexActualSizeBits refreshed (e.g. before
// computing a flexible-length object's current size) rather than an
// actual read; implementations that refresh producer-side state on
// every poll can use it to avoid unnecessary work. A non-OK return
// aborts the read without touching the writer (§4.B read algorithm,
// step 4).
type BeforeReadHook func(si uint8, completeAccess bool, sizeQuery bool) abortcode.Code

// BeforeWriteHook runs with the data mutex held, after the incoming
// payload has been decoded into a scratch value but before it is
// committed to native storage. A non-OK return aborts the write without
// any mutation (§4.B write algorithm, step 4).
type BeforeWriteHook func(si uint8, completeAccess bool, scratch any) abortcode.Code

// AfterWriteHook runs with the data mutex held, after the scratch value
// has been committed to native storage. Per §4.B/§7, a panic from this
// hook is a contract violation and propagates as a panic, not an
// AbortCode.
type AfterWriteHook func(si uint8, completeAccess bool)

// Hooks is a small struct of optional callbacks stored by value in each
// Object (design note §9: "use a small struct of optional callbacks...
// not vtable"). A nil field means "no hook registered"; the call is
// skipped and treated as an unconditional OK.
type Hooks struct {
	BeforeRead  BeforeReadHook
	BeforeWrite BeforeWriteHook
	AfterWrite  AfterWriteHook
}

func (h Hooks) callBeforeRead(si uint8, completeAccess bool, sizeQuery bool) abortcode.Code {
	if h.BeforeRead == nil {
		return abortcode.OK
	}
	return h.BeforeRead(si, completeAccess, sizeQuery)
}

func (h Hooks) callBeforeWrite(si uint8, completeAccess bool, scratch any) abortcode.Code {
	if h.BeforeWrite == nil {
		return abortcode.OK
	}
	return h.BeforeWrite(si, completeAccess, scratch)
}

func (h Hooks) callAfterWrite(si uint8, completeAccess bool) {
	if h.AfterWrite == nil {
		return
	}
	h.AfterWrite(si, completeAccess)
}
