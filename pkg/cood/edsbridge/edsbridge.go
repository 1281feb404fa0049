// Package edsbridge populates a pkg/cood ObjectDictionary from an EDS
// (Electronic Data Sheet) .ini-format file — the DOMAIN STACK bridge
// between CANopen's standard configuration-file format and this
// module's in-memory object model.
//
// Section-by-section parsing is grounded on pkg/od/parser.go's
// ParseV2/ParseVariable family (index/subindex section-name matching
// via regexp, AccessType/PDOMapping/DataType key lookups); per-variable
// construction is grounded on pkg/od/variable.go's
// NewVariableFromSection. Both are generalized here to build
// object.Object values (VARIABLE or RECORD) backed by
// object.MapAccessor rather than the teacher's single Variable struct,
// since the cood object model has no EDS-only "Variable" concept of its
// own. An index with subindex sections is always built as a RECORD;
// ARRAY objects are not built.
package edsbridge

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"

	"github.com/samsamfire/coodcore/pkg/cood"
	"github.com/samsamfire/coodcore/pkg/cood/codec"
	"github.com/samsamfire/coodcore/pkg/cood/object"
	"gopkg.in/ini.v1"
)

var (
	matchIndex    = regexp.MustCompile(`^[0-9A-Fa-f]{4}$`)
	matchSubindex = regexp.MustCompile(`^([0-9A-Fa-f]{4})[Ss]ub([0-9A-Fa-f]+)$`)
)

// dataTypeByEDSCode maps the standard CiA 301 EDS DataType numeric code
// (as found in each section's "DataType" key, e.g. "0x0005") to this
// module's codec.DataType.
var dataTypeByEDSCode = map[int64]codec.DataType{
	0x0001: codec.Boolean,
	0x0002: codec.Integer8,
	0x0003: codec.Integer16,
	0x0004: codec.Integer32,
	0x0005: codec.Unsigned8,
	0x0006: codec.Unsigned16,
	0x0007: codec.Unsigned32,
	0x0008: codec.Real32,
	0x0009: codec.VisibleString,
	0x000A: codec.OctetString,
	0x000B: codec.UnicodeString,
	0x0015: codec.Integer64,
	0x001B: codec.Unsigned64,
	0x0011: codec.Real64,
}

// Load parses raw EDS bytes and registers one object.Object per
// top-level index section into dict. Subindex sections ("1018sub1")
// attach RECORD subindices to their parent; a lone top-level section
// with no subindex children becomes a VARIABLE.
func Load(dict *cood.ObjectDictionary, raw []byte, opts ...Option) error {
	cfg := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	f, err := ini.Load(raw)
	if err != nil {
		return fmt.Errorf("edsbridge: parse EDS: %w", err)
	}

	type parsed struct {
		index uint16
		top   *ini.Section
		subs  map[uint8]*ini.Section
	}
	byIndex := map[uint16]*parsed{}

	for _, section := range f.Sections() {
		name := section.Name()
		if matchIndex.MatchString(name) {
			idx, _ := strconv.ParseUint(name, 16, 16)
			byIndex[uint16(idx)] = &parsed{index: uint16(idx), top: section, subs: map[uint8]*ini.Section{}}
			continue
		}
		if m := matchSubindex.FindStringSubmatch(name); m != nil {
			idx, _ := strconv.ParseUint(m[1], 16, 16)
			si, _ := strconv.ParseUint(m[2], 16, 8)
			p, ok := byIndex[uint16(idx)]
			if !ok {
				p = &parsed{index: uint16(idx), subs: map[uint8]*ini.Section{}}
				byIndex[uint16(idx)] = p
			}
			p.subs[uint8(si)] = section
		}
	}

	indices := make([]uint16, 0, len(byIndex))
	for idx := range byIndex {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	for _, idx := range indices {
		p := byIndex[idx]
		obj, err := buildObject(p.index, p.top, p.subs, cfg.logger)
		if err != nil {
			return fmt.Errorf("edsbridge: index 0x%04X: %w", p.index, err)
		}
		if obj == nil {
			continue
		}
		if err := dict.Register(p.index, obj); err != nil {
			return fmt.Errorf("edsbridge: registering index 0x%04X: %w", p.index, err)
		}
	}
	return nil
}

type options struct {
	logger *slog.Logger
}

// Option configures Load.
type Option func(*options)

// WithLogger overrides the default slog logger used for parse
// diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildObject(index uint16, top *ini.Section, subs map[uint8]*ini.Section, logger *slog.Logger) (*object.Object, error) {
	if len(subs) == 0 {
		if top == nil {
			return nil, fmt.Errorf("section missing")
		}
		return buildVariable(index, top)
	}

	// RECORD/ARRAY: subindex 0 is the count; it may live in its own
	// "...sub0" section or, for older EDS files, directly on the
	// top-level section.
	si0Section := subs[0]
	if si0Section == nil {
		si0Section = top
	}
	if si0Section == nil {
		return nil, fmt.Errorf("subindex 0 missing")
	}
	si0, err := descriptorFromSection(si0Section, 1)
	if err != nil {
		return nil, fmt.Errorf("subindex 0: %w", err)
	}

	name := "object"
	if top != nil {
		if n, err := top.GetKey("ParameterName"); err == nil {
			name = n.String()
		}
	}

	maxSI := uint8(0)
	for si := range subs {
		if si > maxSI {
			maxSI = si
		}
	}

	descriptors := make([]object.SubindexDescriptor, maxSI+1)
	descriptors[0] = si0
	accessorValues := map[uint8]any{0: uint8(len(subs) - boolToInt(subs[0] != nil))}

	for si := uint8(1); si <= maxSI; si++ {
		section, ok := subs[si]
		if !ok {
			descriptors[si] = object.SubindexDescriptor{Empty: true}
			continue
		}
		d, err := descriptorFromSection(section, 0)
		if err != nil {
			return nil, fmt.Errorf("subindex %d: %w", si, err)
		}
		descriptors[si] = d
		accessorValues[si] = initialValue(d.DataType)
	}

	accessor := object.NewMapAccessor(accessorValues)
	return object.NewRecord(index, name, descriptors, accessor, object.WithLogger(logger)), nil
}

func buildVariable(index uint16, section *ini.Section) (*object.Object, error) {
	d, err := descriptorFromSection(section, 0)
	if err != nil {
		return nil, err
	}
	name := d.Name
	accessor := object.NewMapAccessor(map[uint8]any{0: initialValue(d.DataType)})
	return object.NewVariable(index, name, d, accessor, object.WithLogger(slog.Default())), nil
}

// descriptorFromSection reads DataType/AccessType/PDOMapping/
// ParameterName and returns a SubindexDescriptor, matching
// pkg/od/variable.go's NewVariableFromSection field-by-field reads.
func descriptorFromSection(section *ini.Section, defaultNElements int) (object.SubindexDescriptor, error) {
	dtKey, err := section.GetKey("DataType")
	if err != nil {
		return object.SubindexDescriptor{}, fmt.Errorf("missing DataType: %w", err)
	}
	code, err := dtKey.Int64()
	if err != nil {
		return object.SubindexDescriptor{}, fmt.Errorf("invalid DataType: %w", err)
	}
	dt, ok := dataTypeByEDSCode[code]
	if !ok {
		return object.SubindexDescriptor{}, fmt.Errorf("unsupported DataType 0x%X", code)
	}

	accessTypeKey, err := section.GetKey("AccessType")
	accessType := "rw"
	if err == nil {
		accessType = accessTypeKey.String()
	}
	pdoMapping := true
	if pm, err := section.GetKey("PDOMapping"); err == nil {
		pdoMapping, _ = pm.Bool()
	}

	name := ""
	if n, err := section.GetKey("ParameterName"); err == nil {
		name = n.String()
	}

	nElements := defaultNElements
	if nElements == 0 {
		nElements = 1
	}

	return object.SubindexDescriptor{
		DataType:  dt,
		Attr:      encodeAttribute(accessType, pdoMapping),
		NElements: nElements,
		Name:      name,
	}, nil
}

// encodeAttribute translates an EDS AccessType string plus PDOMapping
// flag into an object.Attribute bitset, generalizing
// pkg/od/variable.go's EncodeAttribute (which packed the same inputs
// into a single SDO-only uint8).
func encodeAttribute(accessType string, pdoMapping bool) object.Attribute {
	var attr object.Attribute
	switch accessType {
	case "ro", "const":
		attr = object.AttrRead
	case "wo":
		attr = object.AttrWrite
	default: // "rw" and anything unrecognized default to read-write
		attr = object.AttrRead | object.AttrWrite
	}
	if accessType == "const" {
		attr = object.AttrReadConst
	}
	if pdoMapping {
		attr |= object.AttrRPDO | object.AttrTPDO
	}
	return attr
}

func initialValue(dt codec.DataType) any {
	switch dt {
	case codec.Boolean, codec.BooleanNativeBit1:
		return false
	case codec.Integer8:
		return int8(0)
	case codec.Integer16:
		return int16(0)
	case codec.Integer32:
		return int32(0)
	case codec.Integer64:
		return int64(0)
	case codec.Unsigned8, codec.Bit1, codec.Bit2, codec.Bit3, codec.Bit4, codec.Bit5, codec.Bit6, codec.Bit7, codec.Bit8:
		return uint8(0)
	case codec.Unsigned16:
		return uint16(0)
	case codec.Unsigned32:
		return uint32(0)
	case codec.Unsigned64:
		return uint64(0)
	case codec.Real32:
		return float32(0)
	case codec.Real64:
		return float64(0)
	case codec.VisibleString, codec.UnicodeString:
		return ""
	case codec.OctetString:
		return []byte{}
	default:
		return nil
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
