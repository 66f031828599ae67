// Copyright 2025 Jens Heikel
// SPDX-License-Identifier: MIT

package metastream_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/jheik/metastream"

	qt "github.com/frankban/quicktest"
	texif "github.com/tajtiattila/metadata/exif"
	"github.com/tajtiattila/metadata/exif/exiftag"
)

// jpegFixture builds a minimal but well formed JPEG: SOI, JFIF APP0, the
// given metadata segments, a bare SOS and a token entropy stream.
type jpegFixture struct {
	exif    *texif.Exif
	xmpXML  string
	comment string
}

func (f jpegFixture) build(c *qt.C) []byte {
	var buf bytes.Buffer

	writeSeg := func(marker byte, payload []byte) {
		n := len(payload) + 2
		buf.Write([]byte{0xff, marker, byte(n >> 8), byte(n)})
		buf.Write(payload)
	}

	buf.Write([]byte{0xff, 0xd8}) // SOI
	writeSeg(0xe0, []byte("JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00"))

	if f.exif != nil {
		p, err := f.exif.EncodeBytes()
		c.Assert(err, qt.IsNil)
		writeSeg(0xe1, append([]byte("Exif\x00\x00"), p...))
	}
	if f.xmpXML != "" {
		writeSeg(0xe1, append([]byte("http://ns.adobe.com/xap/1.0/\x00"), f.xmpXML...))
	}
	if f.comment != "" {
		writeSeg(0xfe, []byte(f.comment))
	}

	buf.Write([]byte{0xff, 0xda, 0x00, 0x08, 0x01, 0x01, 0x00, 0x00, 0x3f, 0x00}) // SOS
	buf.Write([]byte{0x12, 0x34, 0x56, 0x78})
	buf.Write([]byte{0xff, 0xd9}) // EOI

	return buf.Bytes()
}

func newTestExif() *texif.Exif {
	x := texif.New(80, 60)
	x.Set(exiftag.Make, texif.Ascii("Canon"))
	x.Set(exiftag.Model, texif.Ascii("EOS 5D"))
	return x
}

const testXMP = `<x:xmpmeta xmlns:x="adobe:ns:meta/">
 <rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
  <rdf:Description rdf:about=""
    xmlns:xmp="http://ns.adobe.com/xap/1.0/"
    xmlns:dc="http://purl.org/dc/elements/1.1/"
    xmp:Rating="4"
    dc:title="Sunrise"/>
 </rdf:RDF>
</x:xmpmeta>`

func TestOpenJPEGReadTags(t *testing.T) {
	c := qt.New(t)

	buf := jpegFixture{exif: newTestExif(), xmpXML: testXMP, comment: "caf\xe9 test"}.build(c)

	s, err := metastream.OpenJPEGBytes(buf, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(s.ReadMetadata(), qt.IsNil)

	v, ok := s.TagString("Exif.Image.Make")
	c.Assert(ok, qt.IsTrue)
	c.Assert(v, qt.Equals, "Canon")

	v, ok = s.TagString("Exif.Image.Model")
	c.Assert(ok, qt.IsTrue)
	c.Assert(v, qt.Equals, "EOS 5D")

	v, ok = s.TagString("Exif.Image.XResolution")
	c.Assert(ok, qt.IsTrue)
	c.Assert(v, qt.Equals, "72/1")

	// absent is distinct from empty
	_, ok = s.TagString("Exif.Image.Artist")
	c.Assert(ok, qt.IsFalse)

	v, ok = s.TagString("Xmp.xmp.Rating")
	c.Assert(ok, qt.IsTrue)
	c.Assert(v, qt.Equals, "4")

	v, ok = s.TagString("Xmp.dc.title")
	c.Assert(ok, qt.IsTrue)
	c.Assert(v, qt.Equals, "Sunrise")

	// comments are Latin-1
	comment, ok := s.Comment()
	c.Assert(ok, qt.IsTrue)
	c.Assert(comment, qt.Equals, "café test")

	mime, ok := s.MIMEType()
	c.Assert(ok, qt.IsTrue)
	c.Assert(mime, qt.Equals, "image/jpeg")
}

func TestSetTagAndSave(t *testing.T) {
	c := qt.New(t)

	buf := jpegFixture{exif: newTestExif()}.build(c)

	s, err := metastream.OpenJPEGBytes(buf, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(s.ReadMetadata(), qt.IsNil)

	c.Assert(s.SetTag("Exif.Image.Artist", "Jane Doe"), qt.IsNil)
	c.Assert(s.SetTag("Exif.Photo.ISOSpeedRatings", "200"), qt.IsNil)
	c.Assert(s.SetTag("Xmp.dc.title", "Harbour"), qt.IsNil)

	out := metastream.NewBufStreamSize(len(buf) + 1024)
	c.Assert(s.SaveTo(out), qt.IsNil)
	saved := out.Detach()

	c.Assert(metastream.DetectMIME(saved), qt.Equals, "image/jpeg")
	c.Assert(bytes.HasSuffix(saved, []byte{0xff, 0xd9}), qt.IsTrue)

	r, err := metastream.OpenJPEGBytes(saved, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(r.ReadMetadata(), qt.IsNil)

	v, ok := r.TagString("Exif.Image.Artist")
	c.Assert(ok, qt.IsTrue)
	c.Assert(v, qt.Equals, "Jane Doe")

	v, ok = r.TagString("Exif.Photo.ISOSpeedRatings")
	c.Assert(ok, qt.IsTrue)
	c.Assert(v, qt.Equals, "200")

	v, ok = r.TagString("Xmp.dc.title")
	c.Assert(ok, qt.IsTrue)
	c.Assert(v, qt.Equals, "Harbour")

	// values that were not touched survive the rewrite
	v, ok = r.TagString("Exif.Image.Make")
	c.Assert(ok, qt.IsTrue)
	c.Assert(v, qt.Equals, "Canon")
}

func TestTagPresentButEmpty(t *testing.T) {
	c := qt.New(t)

	buf := jpegFixture{exif: newTestExif()}.build(c)

	s, err := metastream.OpenJPEGBytes(buf, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(s.ReadMetadata(), qt.IsNil)

	// an empty value is present, not absent
	c.Assert(s.SetTag("Exif.Image.ImageDescription", ""), qt.IsNil)
	v, ok := s.TagString("Exif.Image.ImageDescription")
	c.Assert(ok, qt.IsTrue)
	c.Assert(v, qt.Equals, "")

	// and stays present across a save and reopen
	out := metastream.NewBufStreamSize(len(buf))
	c.Assert(s.SaveTo(out), qt.IsNil)

	r, err := metastream.OpenJPEGBytes(out.Detach(), nil)
	c.Assert(err, qt.IsNil)
	c.Assert(r.ReadMetadata(), qt.IsNil)

	v, ok = r.TagString("Exif.Image.ImageDescription")
	c.Assert(ok, qt.IsTrue)
	c.Assert(v, qt.Equals, "")
}

func TestTagStringHexName(t *testing.T) {
	c := qt.New(t)

	x := newTestExif()
	x.Set(exiftag.Tiff|0x9999, texif.Ascii("mystery"))
	buf := jpegFixture{exif: x}.build(c)

	s, err := metastream.OpenJPEGBytes(buf, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(s.ReadMetadata(), qt.IsNil)

	// tags outside the curated table are readable under their hex name
	v, ok := s.TagString("Exif.Image.0x9999")
	c.Assert(ok, qt.IsTrue)
	c.Assert(v, qt.Equals, "mystery")

	// the hex spelling resolves known tags too
	v, ok = s.TagString("Exif.Image.0x010f")
	c.Assert(ok, qt.IsTrue)
	c.Assert(v, qt.Equals, "Canon")

	_, ok = s.TagString("Exif.Image.0x7777")
	c.Assert(ok, qt.IsFalse)
}

func TestSaveKeepsMarkerOrder(t *testing.T) {
	c := qt.New(t)

	buf := jpegFixture{exif: newTestExif(), comment: "hi"}.build(c)

	s, err := metastream.OpenJPEGBytes(buf, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(s.ReadMetadata(), qt.IsNil)
	c.Assert(s.SetTag("Exif.Image.Artist", "Jane Doe"), qt.IsNil)
	s.SetComment("rewritten")

	out := metastream.NewBufStreamSize(len(buf))
	c.Assert(s.SaveTo(out), qt.IsNil)
	saved := out.Detach()

	// the start-of-image marker leads
	c.Assert(saved[0], qt.Equals, byte(0xff))
	c.Assert(saved[1], qt.Equals, byte(0xd8))

	// walk the header segments: every one carries a valid marker, none
	// repeats the SOI, and the walk lands exactly on the start of scan
	i := 2
	for saved[i+1] != 0xda {
		c.Assert(saved[i], qt.Equals, byte(0xff), qt.Commentf("offset %d", i))
		c.Assert(saved[i+1], qt.Not(qt.Equals), byte(0xd8), qt.Commentf("offset %d", i))
		i += 2 + (int(saved[i+2])<<8 | int(saved[i+3]))
	}
	c.Assert(saved[i], qt.Equals, byte(0xff))
}

func TestSetCommentAndSave(t *testing.T) {
	c := qt.New(t)

	buf := jpegFixture{exif: newTestExif(), comment: "old"}.build(c)

	s, err := metastream.OpenJPEGBytes(buf, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(s.ReadMetadata(), qt.IsNil)

	s.SetComment("new comment")

	out := metastream.NewBufStreamSize(len(buf))
	c.Assert(s.SaveTo(out), qt.IsNil)

	r, err := metastream.OpenJPEGBytes(out.Detach(), nil)
	c.Assert(err, qt.IsNil)
	c.Assert(r.ReadMetadata(), qt.IsNil)

	comment, ok := r.Comment()
	c.Assert(ok, qt.IsTrue)
	c.Assert(comment, qt.Equals, "new comment")
}

func TestClearComment(t *testing.T) {
	c := qt.New(t)

	buf := jpegFixture{exif: newTestExif(), comment: "to be removed"}.build(c)

	s, err := metastream.OpenJPEGBytes(buf, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(s.ReadMetadata(), qt.IsNil)

	s.ClearComment()

	out := metastream.NewBufStreamSize(len(buf))
	c.Assert(s.SaveTo(out), qt.IsNil)

	r, err := metastream.OpenJPEGBytes(out.Detach(), nil)
	c.Assert(err, qt.IsNil)
	c.Assert(r.ReadMetadata(), qt.IsNil)

	_, ok := r.Comment()
	c.Assert(ok, qt.IsFalse)
}

func TestSetTagIPTCSkipped(t *testing.T) {
	c := qt.New(t)

	var warnings []string
	warnf := func(format string, args ...any) {
		warnings = append(warnings, format)
	}

	buf := jpegFixture{exif: newTestExif()}.build(c)
	s, err := metastream.OpenJPEGBytes(buf, warnf)
	c.Assert(err, qt.IsNil)
	c.Assert(s.ReadMetadata(), qt.IsNil)

	// the container cannot write IPTC; the set is skipped, not an error
	c.Assert(s.SetTag("Iptc.Application2.Keywords", "beach"), qt.IsNil)
	c.Assert(len(warnings), qt.Equals, 1)

	_, ok := s.TagString("Iptc.Application2.Keywords")
	c.Assert(ok, qt.IsFalse)
}

func TestSetTagUnknown(t *testing.T) {
	c := qt.New(t)

	buf := jpegFixture{exif: newTestExif()}.build(c)
	s, err := metastream.OpenJPEGBytes(buf, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(s.ReadMetadata(), qt.IsNil)

	err = s.SetTag("Exif.Image.NoSuchTag", "x")
	c.Assert(errors.Is(err, metastream.ErrUnknownTag), qt.IsTrue)

	err = s.SetTag("bogus", "x")
	c.Assert(errors.Is(err, metastream.ErrUnknownTag), qt.IsTrue)
}

func TestDeleteTags(t *testing.T) {
	c := qt.New(t)

	x := newTestExif()
	x.SetLatLong(37.5, -122.25)
	buf := jpegFixture{exif: x}.build(c)

	s, err := metastream.OpenJPEGBytes(buf, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(s.ReadMetadata(), qt.IsNil)

	_, ok := s.TagString("Exif.GPSInfo.GPSLatitudeRef")
	c.Assert(ok, qt.IsTrue)

	s.DeleteTags(metastream.IsGPSTag)

	for _, key := range []string{
		"Exif.GPSInfo.GPSVersionID",
		"Exif.GPSInfo.GPSLatitudeRef",
		"Exif.GPSInfo.GPSLatitude",
		"Exif.GPSInfo.GPSLongitudeRef",
		"Exif.GPSInfo.GPSLongitude",
	} {
		_, ok := s.TagString(key)
		c.Assert(ok, qt.IsFalse, qt.Commentf("key %s", key))
	}

	// non-GPS tags are untouched
	v, ok := s.TagString("Exif.Image.Make")
	c.Assert(ok, qt.IsTrue)
	c.Assert(v, qt.Equals, "Canon")
}

func TestOpenJPEGInvalid(t *testing.T) {
	c := qt.New(t)

	_, err := metastream.OpenJPEGBytes([]byte("definitely not a jpeg"), nil)
	c.Assert(errors.Is(err, metastream.ErrInvalidFormat), qt.IsTrue)
}

func TestIsGPSTag(t *testing.T) {
	c := qt.New(t)

	mustKey := func(s string) metastream.TagKey {
		k, err := metastream.ParseTagKey(s)
		c.Assert(err, qt.IsNil)
		return k
	}

	c.Assert(metastream.IsGPSTag(mustKey("Exif.GPSInfo.GPSLatitude")), qt.IsTrue)
	c.Assert(metastream.IsGPSTag(mustKey("Exif.GPSInfo.GPSMapDatum")), qt.IsTrue)
	c.Assert(metastream.IsGPSTag(mustKey("Xmp.exif.GPSLatitude")), qt.IsTrue)
	c.Assert(metastream.IsGPSTag(mustKey("Exif.Image.Make")), qt.IsFalse)
	c.Assert(metastream.IsGPSTag(mustKey("Xmp.xmp.Rating")), qt.IsFalse)
}

func TestDetectMIME(t *testing.T) {
	c := qt.New(t)

	c.Assert(metastream.DetectMIME([]byte{0xff, 0xd8, 0xff, 0xe0}), qt.Equals, "image/jpeg")
	c.Assert(metastream.DetectMIME([]byte("\x89PNG\r\n\x1a\nrest")), qt.Equals, "image/png")
	c.Assert(metastream.DetectMIME([]byte("GIF89a....")), qt.Equals, "image/gif")
	c.Assert(metastream.DetectMIME([]byte("II*\x00....")), qt.Equals, "image/tiff")
	c.Assert(metastream.DetectMIME([]byte("RIFF\x00\x00\x00\x00WEBP")), qt.Equals, "image/webp")
	c.Assert(metastream.DetectMIME([]byte("plain text")), qt.Equals, "")
	c.Assert(metastream.DetectMIME(nil), qt.Equals, "")
}
