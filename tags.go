package metastream

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/tajtiattila/metadata/exif"
	"github.com/tajtiattila/metadata/exif/exiftag"
)

// Tag key families.
const (
	FamilyEXIF = "Exif"
	FamilyXMP  = "Xmp"
	FamilyIPTC = "Iptc"
)

// TagKey identifies a metadata tag in the dotted "Family.Group.Name" form,
// e.g. "Exif.GPSInfo.GPSLatitude" or "Xmp.xmp.Rating". For EXIF keys the
// group is the IFD name; for XMP keys it is the schema prefix.
type TagKey struct {
	Family string
	Group  string
	Name   string
}

// ParseTagKey parses a dotted tag key.
func ParseTagKey(s string) (TagKey, error) {
	parts := strings.SplitN(s, ".", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return TagKey{}, errors.Wrapf(ErrUnknownTag, "invalid key %q", s)
	}
	return TagKey{Family: parts[0], Group: parts[1], Name: parts[2]}, nil
}

func (k TagKey) String() string {
	return k.Family + "." + k.Group + "." + k.Name
}

// exifTagDef describes one known EXIF tag: its TIFF tag number and field type.
type exifTagDef struct {
	tag uint16
	typ uint16
}

// Curated tag tables for the EXIF groups the store surfaces. Unknown tags
// remain readable through their group directory under a hex name.
var exifTagDefs = map[string]map[string]exifTagDef{
	"Image": {
		"ImageDescription": {0x010e, exif.TypeAscii},
		"Make":             {0x010f, exif.TypeAscii},
		"Model":            {0x0110, exif.TypeAscii},
		"Orientation":      {0x0112, exif.TypeShort},
		"XResolution":      {0x011a, exif.TypeRational},
		"YResolution":      {0x011b, exif.TypeRational},
		"ResolutionUnit":   {0x0128, exif.TypeShort},
		"Software":         {0x0131, exif.TypeAscii},
		"DateTime":         {0x0132, exif.TypeAscii},
		"Artist":           {0x013b, exif.TypeAscii},
		"Copyright":        {0x8298, exif.TypeAscii},
	},
	"Photo": {
		"ExposureTime":      {0x829a, exif.TypeRational},
		"FNumber":           {0x829d, exif.TypeRational},
		"ISOSpeedRatings":   {0x8827, exif.TypeShort},
		"ExifVersion":       {0x9000, exif.TypeUndef},
		"DateTimeOriginal":  {0x9003, exif.TypeAscii},
		"DateTimeDigitized": {0x9004, exif.TypeAscii},
		"FocalLength":       {0x920a, exif.TypeRational},
		"UserComment":       {0x9286, exif.TypeUndef},
		"PixelXDimension":   {0xa002, exif.TypeLong},
		"PixelYDimension":   {0xa003, exif.TypeLong},
	},
	"GPSInfo": {
		"GPSVersionID":        {0x0000, exif.TypeByte},
		"GPSLatitudeRef":      {0x0001, exif.TypeAscii},
		"GPSLatitude":         {0x0002, exif.TypeRational},
		"GPSLongitudeRef":     {0x0003, exif.TypeAscii},
		"GPSLongitude":        {0x0004, exif.TypeRational},
		"GPSAltitudeRef":      {0x0005, exif.TypeByte},
		"GPSAltitude":         {0x0006, exif.TypeRational},
		"GPSTimeStamp":        {0x0007, exif.TypeRational},
		"GPSSatellites":       {0x0008, exif.TypeAscii},
		"GPSStatus":           {0x0009, exif.TypeAscii},
		"GPSMapDatum":         {0x0012, exif.TypeAscii},
		"GPSProcessingMethod": {0x001b, exif.TypeUndef},
		"GPSDateStamp":        {0x001d, exif.TypeAscii},
	},
}

// exifTagNames maps group -> tag number -> name, built from exifTagDefs.
var exifTagNames = func() map[string]map[uint16]string {
	m := make(map[string]map[uint16]string, len(exifTagDefs))
	for group, defs := range exifTagDefs {
		names := make(map[uint16]string, len(defs))
		for name, def := range defs {
			names[def.tag] = name
		}
		m[group] = names
	}
	return m
}()

// exifGroupMasks routes a group name to the exiftag id namespace used by
// Exif.Set.
var exifGroupMasks = map[string]uint32{
	"Image":   exiftag.Tiff,
	"Photo":   exiftag.Exif,
	"GPSInfo": exiftag.GPS,
	"Iop":     exiftag.Interop,
}

func lookupExifTag(group, name string) (exifTagDef, bool) {
	defs, ok := exifTagDefs[group]
	if !ok {
		return exifTagDef{}, false
	}
	def, ok := defs[name]
	return def, ok
}

// exifTagNumber resolves a name within a group to a tag number. Besides the
// curated table, the "0xNNNN" spelling exifTagName gives unknown tags is
// accepted, so those tags stay addressable by key.
func exifTagNumber(group, name string) (uint16, bool) {
	if def, ok := lookupExifTag(group, name); ok {
		return def.tag, true
	}
	if strings.HasPrefix(name, "0x") {
		if n, err := strconv.ParseUint(name[2:], 16, 16); err == nil {
			return uint16(n), true
		}
	}
	return 0, false
}

func exifTagName(group string, tag uint16) string {
	if name, ok := exifTagNames[group][tag]; ok {
		return name
	}
	return fmt.Sprintf("0x%04x", tag)
}

// exifIFD is an EXIF IFD, a list of tagged entries.
type exifIFD []exif.Entry

// Tag returns the entry with the given tag number, or nil.
func (d *exifIFD) Tag(tag uint16) *exif.Entry {
	for i := range *d {
		if (*d)[i].Tag == tag {
			return &(*d)[i]
		}
	}
	return nil
}

// exifDir returns the IFD holding the given group, or nil.
func exifDir(x *exif.Exif, group string) *exifIFD {
	switch group {
	case "Image":
		return (*exifIFD)(&x.IFD0)
	case "Thumbnail":
		return (*exifIFD)(&x.IFD1)
	case "Photo":
		return (*exifIFD)(&x.Exif)
	case "GPSInfo":
		return (*exifIFD)(&x.GPS)
	case "Iop":
		return (*exifIFD)(&x.Interop)
	}
	return nil
}

// exifValue parses a tag value string into a typed EXIF value, the way the
// value would be spelled by formatEntry: ascii verbatim, bytes and integers
// space separated, rationals as space separated "num/den" pairs.
func exifValue(def exifTagDef, value string) (exif.Value, error) {
	switch def.typ {
	case exif.TypeAscii:
		return exif.Ascii(value), nil
	case exif.TypeByte, exif.TypeUndef:
		fields := strings.Fields(value)
		b := make([]byte, len(fields))
		for i, f := range fields {
			n, err := strconv.Atoi(f)
			if err != nil || n < 0 || n > 255 {
				return nil, errors.Errorf("invalid byte value %q", value)
			}
			b[i] = byte(n)
		}
		if def.typ == exif.TypeUndef {
			return exif.Undef(b), nil
		}
		return exif.Byte(b), nil
	case exif.TypeShort:
		fields := strings.Fields(value)
		v := make(exif.Short, len(fields))
		for i, f := range fields {
			n, err := strconv.Atoi(f)
			if err != nil || n < 0 || n > 0xffff {
				return nil, errors.Errorf("invalid short value %q", value)
			}
			v[i] = uint16(n)
		}
		return v, nil
	case exif.TypeLong:
		fields := strings.Fields(value)
		v := make(exif.Long, len(fields))
		for i, f := range fields {
			n, err := strconv.ParseUint(f, 10, 32)
			if err != nil {
				return nil, errors.Errorf("invalid long value %q", value)
			}
			v[i] = uint32(n)
		}
		return v, nil
	case exif.TypeRational:
		fields := strings.Fields(value)
		v := make(exif.Rational, 0, 2*len(fields))
		for _, f := range fields {
			var r rat[uint32]
			if err := r.UnmarshalText([]byte(f)); err != nil {
				return nil, errors.Wrapf(err, "invalid rational value %q", value)
			}
			v = append(v, r.Num(), r.Den())
		}
		return v, nil
	}
	return nil, errors.Errorf("unsupported tag type %d", def.typ)
}

// formatEntry renders a raw IFD entry as a tag value string.
func formatEntry(bo binary.ByteOrder, e *exif.Entry) string {
	if e == nil {
		return ""
	}
	switch e.Type {
	case exif.TypeAscii:
		return toString(e.Value)
	case exif.TypeByte, exif.TypeUndef, exif.TypeSByte:
		parts := make([]string, len(e.Value))
		for i, b := range e.Value {
			parts[i] = strconv.Itoa(int(b))
		}
		return strings.Join(parts, " ")
	case exif.TypeShort, exif.TypeSShort:
		var sb strings.Builder
		for i := 0; 2*i+2 <= len(e.Value); i++ {
			if i > 0 {
				sb.WriteString(" ")
			}
			v := bo.Uint16(e.Value[2*i:])
			if e.Type == exif.TypeSShort {
				fmt.Fprintf(&sb, "%d", int16(v))
			} else {
				fmt.Fprintf(&sb, "%d", v)
			}
		}
		return sb.String()
	case exif.TypeLong, exif.TypeSLong:
		var sb strings.Builder
		for i := 0; 4*i+4 <= len(e.Value); i++ {
			if i > 0 {
				sb.WriteString(" ")
			}
			v := bo.Uint32(e.Value[4*i:])
			if e.Type == exif.TypeSLong {
				fmt.Fprintf(&sb, "%d", int32(v))
			} else {
				fmt.Fprintf(&sb, "%d", v)
			}
		}
		return sb.String()
	case exif.TypeRational, exif.TypeSRational:
		var sb strings.Builder
		for i := 0; 8*i+8 <= len(e.Value); i++ {
			if i > 0 {
				sb.WriteString(" ")
			}
			num := bo.Uint32(e.Value[8*i:])
			den := bo.Uint32(e.Value[8*i+4:])
			if e.Type == exif.TypeSRational {
				fmt.Fprintf(&sb, "%d/%d", int32(num), int32(den))
			} else {
				fmt.Fprintf(&sb, "%d/%d", num, den)
			}
		}
		return sb.String()
	}
	return fmt.Sprintf("% 02x", e.Value)
}
