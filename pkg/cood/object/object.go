// Package object implements the CANopen object model (§4.B): the
// polymorphic VARIABLE/ARRAY/RECORD object with typed subindices,
// attribute-based access control, before-read/before-write/after-write
// hooks, and bit-exact single-subindex / Complete Access transfers.
//
// The teacher's inheritance-based Entry/Variable/VariableList
// (pkg/od/entry.go, pkg/od/variable_list.go) becomes a single tagged
// struct here (design note §9): Kind selects which of the variant-
// specific fields are meaningful, and every exported method dispatches
// internally rather than through a vtable.
package object

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/samsamfire/coodcore/pkg/cood/abortcode"
	"github.com/samsamfire/coodcore/pkg/cood/codec"
)

// Kind discriminates the three object variants.
type Kind uint8

const (
	KindVariable Kind = iota
	KindArray
	KindRecord
)

func (k Kind) String() string {
	switch k {
	case KindVariable:
		return "VARIABLE"
	case KindArray:
		return "ARRAY"
	case KindRecord:
		return "RECORD"
	default:
		return "UNKNOWN"
	}
}

// SubindexDescriptor is the fixed (construction-time immutable)
// metadata of a single subindex.
type SubindexDescriptor struct {
	DataType    codec.DataType
	Attr        Attribute
	NElements   int // string element count; 1 for all other types
	Name        string
	AppMetadata []byte // optional application-specific metadata bytes
	Gap         bool   // RECORD only: reads as zero, writes discarded, no hooks
	Empty       bool   // RECORD only: subindex does not exist
}

func (d SubindexDescriptor) maxSizeBits() (int, error) {
	if d.Empty {
		return 0, nil
	}
	return codec.SizeOfBits(d.DataType, d.NElements)
}

// Object is the polymorphic VARIABLE/ARRAY/RECORD object. Zero value is
// not usable; construct via NewVariable, NewArray or NewRecord.
type Object struct {
	logger   *slog.Logger
	mu       *sync.Mutex // nil unless WithDataMutex was given
	index    uint16
	name     string
	kind     Kind
	hooks    Hooks
	accessor NativeAccessor

	// KindVariable
	variableSI SubindexDescriptor

	// KindArray
	arraySI0    SubindexDescriptor // count subindex
	arrayElem   SubindexDescriptor // shared descriptor for SI1..arrayMax
	arrayMax    uint8              // SI_max, fixed for object lifetime

	// KindRecord
	recordSI []SubindexDescriptor // recordSI[0] is SI0 (constant count)
}

// Option configures an Object at construction time.
type Option func(*Object)

// WithLogger overrides the default slog logger, matching the teacher's
// per-struct *slog.Logger field convention (pkg/od/entry.go).
func WithLogger(l *slog.Logger) Option {
	return func(o *Object) { o.logger = l }
}

// WithHooks installs before-read/before-write/after-write hooks.
func WithHooks(h Hooks) Option {
	return func(o *Object) { o.hooks = h }
}

// WithDataMutex installs an externally-owned data mutex. Required if the
// object is writable or the producer ever mutates data concurrently with
// reads (§3).
func WithDataMutex(mu *sync.Mutex) Option {
	return func(o *Object) { o.mu = mu }
}

func newBase(index uint16, name string, accessor NativeAccessor, opts []Option) *Object {
	o := &Object{
		logger:   slog.Default(),
		index:    index,
		name:     name,
		accessor: accessor,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("index", fmt.Sprintf("0x%04X", index), "object", name)
	return o
}

// NewVariable creates a VARIABLE object with a single subindex (SI0).
func NewVariable(index uint16, name string, si SubindexDescriptor, accessor NativeAccessor, opts ...Option) *Object {
	o := newBase(index, name, accessor, opts)
	o.kind = KindVariable
	o.variableSI = si
	return o
}

// NewArray creates an ARRAY object. si0 describes the count subindex;
// elem describes SI1..max uniformly.
func NewArray(index uint16, name string, max uint8, si0, elem SubindexDescriptor, accessor NativeAccessor, opts ...Option) *Object {
	o := newBase(index, name, accessor, opts)
	o.kind = KindArray
	o.arraySI0 = si0
	o.arrayElem = elem
	o.arrayMax = max
	return o
}

// NewRecord creates a RECORD object. subindices[0] is SI0 (the constant
// count); subindices[1:] describe SI1.. individually, any of which may
// be Empty or Gap.
func NewRecord(index uint16, name string, subindices []SubindexDescriptor, accessor NativeAccessor, opts ...Option) *Object {
	o := newBase(index, name, accessor, opts)
	o.kind = KindRecord
	o.recordSI = subindices
	return o
}

// ---- read accessors (no data mutex required) ----

func (o *Object) Index() uint16 { return o.index }
func (o *Object) Name() string  { return o.name }
func (o *Object) Kind() Kind    { return o.kind }

// DataType returns the element data type: the VARIABLE's type, or the
// ARRAY's shared element type. RECORD has no single data type (each SI
// may differ) and returns codec.Null.
func (o *Object) DataType() codec.DataType {
	switch o.kind {
	case KindVariable:
		return o.variableSI.DataType
	case KindArray:
		return o.arrayElem.DataType
	default:
		return codec.Null
	}
}

// MaxSubindices returns SI_max, constant for the life of the object.
func (o *Object) MaxSubindices() uint8 {
	switch o.kind {
	case KindVariable:
		return 0
	case KindArray:
		return o.arrayMax
	case KindRecord:
		return uint8(len(o.recordSI) - 1)
	default:
		return 0
	}
}

func (o *Object) descriptor(si uint8) (SubindexDescriptor, error) {
	switch o.kind {
	case KindVariable:
		if si != 0 {
			return SubindexDescriptor{}, errSubindexDoesNotExist
		}
		return o.variableSI, nil
	case KindArray:
		if si == 0 {
			return o.arraySI0, nil
		}
		if si > o.arrayMax {
			return SubindexDescriptor{}, errSubindexDoesNotExist
		}
		return o.arrayElem, nil
	case KindRecord:
		if int(si) >= len(o.recordSI) {
			return SubindexDescriptor{}, errSubindexDoesNotExist
		}
		d := o.recordSI[si]
		if d.Empty {
			return SubindexDescriptor{}, errSubindexDoesNotExist
		}
		return d, nil
	default:
		return SubindexDescriptor{}, errSubindexDoesNotExist
	}
}

var errSubindexDoesNotExist = fmt.Errorf("object: subindex does not exist")

func (o *Object) IsEmpty(si uint8) bool {
	_, err := o.descriptor(si)
	return err != nil
}

func (o *Object) DataTypeOf(si uint8) (codec.DataType, error) {
	d, err := o.descriptor(si)
	if err != nil {
		return 0, err
	}
	return d.DataType, nil
}

func (o *Object) Attributes(si uint8) (Attribute, error) {
	d, err := o.descriptor(si)
	if err != nil {
		return 0, err
	}
	return d.Attr, nil
}

func (o *Object) MaxSizeBits(si uint8) (int, error) {
	d, err := o.descriptor(si)
	if err != nil {
		return 0, err
	}
	return d.maxSizeBits()
}

func (o *Object) NameOf(si uint8) (string, error) {
	d, err := o.descriptor(si)
	if err != nil {
		return "", err
	}
	return d.Name, nil
}

func (o *Object) AppSpecificMetadata(si uint8) ([]byte, bool) {
	d, err := o.descriptor(si)
	if err != nil || d.AppMetadata == nil {
		return nil, false
	}
	return d.AppMetadata, true
}

// ---- runtime accessors (require the data mutex) ----

// LockData acquires the object's data mutex and returns an unlock
// closure, matching the teacher's guard-by-closure idiom
// (pkg/od/streamer.go uses sync.RWMutex directly; here any object that
// is ever written needs one explicit mutex).
func (o *Object) LockData() func() {
	if o.mu == nil {
		return func() {}
	}
	o.mu.Lock()
	return o.mu.Unlock
}

// NSubindices returns the number of subindices presently valid,
// identical to MaxSubindices()+1 except for an ARRAY whose SI0 is
// writable, where it reflects the current count.
func (o *Object) NSubindices() uint8 {
	if o.kind != KindArray || !IsWritable(o.arraySI0.Attr) {
		return o.MaxSubindices() + 1
	}
	v, err := o.accessor.Get(0)
	if err != nil {
		return o.MaxSubindices() + 1
	}
	n, ok := v.(uint8)
	if !ok {
		return o.MaxSubindices() + 1
	}
	return n + 1
}
