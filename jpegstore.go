// Copyright 2025 Jens Heikel
// SPDX-License-Identifier: MIT

package metastream

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/tajtiattila/metadata/exif"
	xjpeg "github.com/tajtiattila/metadata/jpeg"
	"golang.org/x/text/encoding/charmap"
)

const (
	markerSOI   = 0xd8
	markerAPP0  = 0xe0
	markerAPP1  = 0xe1
	markerAPP13 = 0xed
	markerCOM   = 0xfe
)

var (
	soiBytes   = []byte{0xff, 0xd8}
	exifHeader = []byte("Exif\x00\x00")
	xmpHeader  = []byte("http://ns.adobe.com/xap/1.0/\x00")
	psHeader   = []byte("Photoshop 3.0\x00")
)

// JPEGStore is a Store over a JPEG image. The header segments are kept
// verbatim for pass-through; the EXIF and XMP dictionaries are decoded on
// ReadMetadata and re-encoded on SaveTo. IPTC (APP13) is carried through
// unmodified, so its kind is read-only in the access-mode sense.
type JPEGStore struct {
	segments [][]byte // raw segments up to start of scan, incl. markers
	tail     []byte   // from start of scan to end of image

	x              *exif.Exif
	xmp            *xmpPacket
	comment        string
	hasComment     bool
	commentChanged bool
	hasIPTC        bool

	read  bool
	warnf func(string, ...any)
}

var _ Store = (*JPEGStore)(nil)

// OpenJPEG scans the JPEG in r into a store. warnf may be nil.
func OpenJPEG(r io.Reader, warnf func(string, ...any)) (*JPEGStore, error) {
	if warnf == nil {
		warnf = func(string, ...any) {}
	}

	sc, err := xjpeg.NewScanner(r)
	if err != nil {
		return nil, newInvalidFormatError(err)
	}

	s := &JPEGStore{warnf: warnf}
	for sc.Next() {
		seg, err := sc.ReadSegment()
		if err != nil {
			return nil, newInvalidFormatError(errors.Wrap(err, "reading segment"))
		}
		s.segments = append(s.segments, seg)
	}
	if err := sc.Err(); err != nil {
		return nil, newInvalidFormatError(err)
	}

	tail, err := io.ReadAll(sc.Reader())
	if err != nil {
		return nil, newInvalidFormatError(errors.Wrap(err, "reading image data"))
	}
	s.tail = tail

	return s, nil
}

// OpenJPEGBytes opens a store over a private copy of p, read through a
// BufStream.
func OpenJPEGBytes(p []byte, warnf func(string, ...any)) (*JPEGStore, error) {
	return OpenJPEG(IOStream(NewBufStream(p)), warnf)
}

func segmentMarker(seg []byte) (byte, bool) {
	if len(seg) >= 2 && seg[0] == 0xff {
		return seg[1], true
	}
	return 0, false
}

// isChunkSegment reports whether seg is a chunk with the given marker whose
// payload starts with pfx.
func isChunkSegment(seg []byte, marker byte, pfx []byte) bool {
	if m, ok := segmentMarker(seg); !ok || m != marker || len(seg) < 4 {
		return false
	}
	return bytes.HasPrefix(seg[4:], pfx)
}

// ReadMetadata implements Store. It decodes the EXIF and XMP dictionaries
// and the JPEG comment from the scanned segments.
func (s *JPEGStore) ReadMetadata() error {
	if s.read {
		return nil
	}
	for _, seg := range s.segments {
		marker, ok := segmentMarker(seg)
		if !ok {
			continue
		}
		switch {
		case isChunkSegment(seg, markerAPP1, exifHeader):
			if s.x != nil {
				continue
			}
			x, err := exif.DecodeBytes(seg[4+len(exifHeader):])
			if err != nil {
				return newInvalidFormatError(errors.Wrap(err, "decoding exif"))
			}
			s.x = x
		case isChunkSegment(seg, markerAPP1, xmpHeader):
			if s.xmp != nil {
				continue
			}
			xmp, err := decodeXMPPacket(seg[4+len(xmpHeader):])
			if err != nil {
				return err
			}
			s.xmp = xmp
		case isChunkSegment(seg, markerAPP13, psHeader):
			s.hasIPTC = true
		case marker == markerCOM && len(seg) >= 4:
			if s.hasComment {
				continue
			}
			// JPEG comments have no declared encoding; Latin-1 is the
			// common interpretation.
			b, err := charmap.ISO8859_1.NewDecoder().Bytes(seg[4:])
			if err != nil {
				s.warnf("failed to decode comment: %v", err)
				continue
			}
			s.comment = printableString(string(b))
			s.hasComment = true
		}
	}
	s.read = true
	return nil
}

// MIMEType implements Store.
func (s *JPEGStore) MIMEType() (string, bool) {
	return "image/jpeg", true
}

// Comment returns the JPEG comment, if one is present.
func (s *JPEGStore) Comment() (string, bool) {
	return s.comment, s.hasComment
}

// SetComment replaces the JPEG comment. The new value is written to the
// first COM segment on save; further COM segments are dropped.
func (s *JPEGStore) SetComment(comment string) {
	s.comment = comment
	s.hasComment = true
	s.commentChanged = true
}

// ClearComment removes all COM segments on save.
func (s *JPEGStore) ClearComment() {
	s.comment = ""
	s.hasComment = false
	s.commentChanged = true
}

// AccessMode implements Store.
func (s *JPEGStore) AccessMode(kind MetadataKind) AccessMode {
	switch kind {
	case KindEXIF, KindXMP:
		return AccessReadWrite
	case KindIPTC:
		if s.hasIPTC {
			return AccessRead
		}
		return AccessNone
	case KindComment:
		return AccessReadWrite
	}
	return AccessNone
}

// TagString implements Store. An absent tag yields ok == false; a present
// but empty tag yields ("", true).
func (s *JPEGStore) TagString(key string) (string, bool) {
	k, err := ParseTagKey(key)
	if err != nil {
		return "", false
	}
	switch k.Family {
	case FamilyEXIF:
		if s.x == nil {
			return "", false
		}
		tag, ok := exifTagNumber(k.Group, k.Name)
		if !ok {
			return "", false
		}
		dir := exifDir(s.x, k.Group)
		if dir == nil {
			return "", false
		}
		e := dir.Tag(tag)
		if e == nil {
			return "", false
		}
		return formatEntry(s.x.ByteOrder, e), true
	case FamilyXMP:
		if s.xmp == nil {
			return "", false
		}
		return s.xmp.get(k.Group, k.Name)
	}
	return "", false
}

// SetTag implements Store. Writes to read-only metadata kinds are skipped
// silently, matching the permissive save semantics of the codec contract.
func (s *JPEGStore) SetTag(key, value string) error {
	k, err := ParseTagKey(key)
	if err != nil {
		return err
	}
	switch k.Family {
	case FamilyEXIF:
		def, ok := lookupExifTag(k.Group, k.Name)
		if !ok {
			return errors.Wrapf(ErrUnknownTag, "%s", key)
		}
		mask, ok := exifGroupMasks[k.Group]
		if !ok {
			return errors.Wrapf(ErrUnknownTag, "group not writable: %s", key)
		}
		v, err := exifValue(def, value)
		if err != nil {
			return err
		}
		if s.x == nil {
			s.x = &exif.Exif{ByteOrder: binary.BigEndian}
		}
		s.x.Set(mask|uint32(def.tag), v)
		return nil
	case FamilyXMP:
		if _, ok := xmpNamespaces[k.Group]; !ok {
			return errors.Wrapf(ErrUnknownTag, "unknown xmp prefix: %s", key)
		}
		if s.xmp == nil {
			s.xmp = &xmpPacket{}
		}
		s.xmp.set(k.Group, k.Name, value)
		return nil
	case FamilyIPTC:
		s.warnf("iptc is not writable, skipping %s", key)
		return nil
	}
	return errors.Wrapf(ErrUnknownTag, "%s", key)
}

// DeleteTags implements Store.
func (s *JPEGStore) DeleteTags(match func(key TagKey) bool) {
	if s.x != nil {
		for _, group := range []string{"Image", "Thumbnail", "Photo", "GPSInfo", "Iop"} {
			dir := exifDir(s.x, group)
			if dir == nil || len(*dir) == 0 {
				continue
			}
			kept := (*dir)[:0]
			for _, e := range *dir {
				k := TagKey{Family: FamilyEXIF, Group: group, Name: exifTagName(group, e.Tag)}
				if !match(k) {
					kept = append(kept, e)
				}
			}
			*dir = kept
		}
	}
	if s.xmp != nil {
		s.xmp.deleteMatching(func(prefix, name string) bool {
			return match(TagKey{Family: FamilyXMP, Group: prefix, Name: name})
		})
	}
}

// SaveTo implements Store. The image is rewritten segment by segment with
// the EXIF and XMP APP1 payloads replaced by the current dictionary state;
// everything else, including the entropy-coded image data, passes through
// untouched.
func (s *JPEGStore) SaveTo(target Stream) error {
	if !s.read {
		return errors.New("metastream: metadata not read")
	}

	exifPayload, err := s.encodeExifPayload()
	if err != nil {
		return err
	}
	xmpPayload := s.encodeXMPPayload()
	commentPayload := s.encodeCommentPayload()

	w := IOStream(target)
	wroteExif, wroteXMP, wroteComment := false, false, false

	writeNew := func() error {
		if exifPayload != nil && !wroteExif {
			wroteExif = true
			if err := writeSegment(w, markerAPP1, exifPayload); err != nil {
				return errors.Wrap(ErrSerialize, err.Error())
			}
		}
		if xmpPayload != nil && !wroteXMP {
			wroteXMP = true
			if err := writeSegment(w, markerAPP1, xmpPayload); err != nil {
				return errors.Wrap(ErrSerialize, err.Error())
			}
		}
		if commentPayload != nil && !wroteComment {
			wroteComment = true
			if err := writeSegment(w, markerCOM, commentPayload); err != nil {
				return errors.Wrap(ErrSerialize, err.Error())
			}
		}
		return nil
	}

	// the scanner always yields the SOI as its first segment; restore it
	// up front should it ever be missing, so no marker precedes it
	var first []byte
	if len(s.segments) > 0 {
		first = s.segments[0]
	}
	if m, ok := segmentMarker(first); !ok || m != markerSOI {
		if _, err := w.Write(soiBytes); err != nil {
			return errors.Wrap(ErrSerialize, err.Error())
		}
	}

	for _, seg := range s.segments {
		marker, ok := segmentMarker(seg)
		switch {
		case isChunkSegment(seg, markerAPP1, exifHeader),
			isChunkSegment(seg, markerAPP1, xmpHeader):
			// replaced below, or dropped when the dictionary is now empty
			continue
		case ok && marker == markerCOM && s.commentChanged:
			continue
		case ok && marker == markerSOI:
			// passes through verbatim, never preceded by new metadata
		case ok && marker != markerAPP0:
			// metadata goes before the first non-APP0 segment
			if err := writeNew(); err != nil {
				return err
			}
		}
		if _, err := w.Write(seg); err != nil {
			return errors.Wrap(ErrSerialize, err.Error())
		}
	}
	if err := writeNew(); err != nil {
		return err
	}

	if _, err := w.Write(s.tail); err != nil {
		return errors.Wrap(ErrSerialize, err.Error())
	}
	target.Flush()
	return nil
}

// writeSegment writes one marker segment. The length field covers the
// payload plus its own two bytes, per the JPEG spec.
func writeSegment(w io.Writer, marker byte, payload []byte) error {
	n := len(payload) + 2
	if n > 0xffff {
		return errors.Errorf("metastream: segment too long (%d bytes)", len(payload))
	}
	if _, err := w.Write([]byte{0xff, marker, byte(n >> 8), byte(n)}); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// encodeExifPayload returns the APP1 payload for the current EXIF state,
// or nil if there is none to write.
func (s *JPEGStore) encodeExifPayload() ([]byte, error) {
	if s.x == nil {
		return nil, nil
	}
	if len(s.x.IFD0) == 0 && len(s.x.Exif) == 0 && len(s.x.GPS) == 0 &&
		len(s.x.Interop) == 0 && len(s.x.IFD1) == 0 {
		return nil, nil
	}
	p, err := s.x.EncodeBytes()
	if err != nil {
		return nil, errors.Wrap(ErrSerialize, err.Error())
	}
	return append(append([]byte{}, exifHeader...), p...), nil
}

// encodeXMPPayload returns the APP1 payload for the current XMP state, or
// nil if the packet is missing or empty.
func (s *JPEGStore) encodeXMPPayload() []byte {
	if s.xmp.empty() {
		return nil
	}
	return append(append([]byte{}, xmpHeader...), s.xmp.encode()...)
}

// encodeCommentPayload returns the Latin-1 COM payload for an updated
// comment, or nil if the comment is unchanged or cleared.
func (s *JPEGStore) encodeCommentPayload() []byte {
	if !s.commentChanged || !s.hasComment {
		return nil
	}
	b, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(s.comment))
	if err != nil {
		s.warnf("comment not representable in Latin-1, keeping raw bytes: %v", err)
		return []byte(s.comment)
	}
	return b
}

// IsGPSTag reports whether key holds GPS position data: the whole EXIF
// GPSInfo directory, and XMP tags whose name starts with "GPS".
func IsGPSTag(k TagKey) bool {
	switch k.Family {
	case FamilyEXIF:
		return k.Group == "GPSInfo"
	case FamilyXMP:
		return strings.HasPrefix(k.Name, "GPS")
	}
	return false
}
