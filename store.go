// Copyright 2025 Jens Heikel
// SPDX-License-Identifier: MIT

package metastream

// MetadataKind is one of the embedded metadata families a container format
// may carry.
type MetadataKind int

const (
	KindEXIF MetadataKind = iota
	KindXMP
	KindIPTC
	KindComment
)

// AccessMode describes what a store supports for one metadata kind in its
// container format.
type AccessMode int

const (
	AccessNone AccessMode = iota
	AccessRead
	AccessWrite
	AccessReadWrite
)

// CanWrite reports whether the mode allows updates.
func (m AccessMode) CanWrite() bool {
	return m == AccessWrite || m == AccessReadWrite
}

// CanRead reports whether the mode allows lookups.
func (m AccessMode) CanRead() bool {
	return m == AccessRead || m == AccessReadWrite
}

// Store is the metadata codec collaborator: a handle over one opened image
// exposing its tag dictionaries. Implementations are not safe for
// concurrent use; a store is owned by one caller at a time.
type Store interface {
	// ReadMetadata populates the tag dictionaries from the opened source.
	ReadMetadata() error

	// TagString returns the value of the tag with the given dotted key.
	// The second result distinguishes an absent tag from a present but
	// empty value.
	TagString(key string) (string, bool)

	// MIMEType returns the media type of the opened source, if known.
	MIMEType() (string, bool)

	// SetTag updates the tag with the given dotted key. Writes to a
	// metadata kind the container does not support writing are skipped
	// silently.
	SetTag(key, value string) error

	// DeleteTags removes every tag whose key matches, over the EXIF and
	// XMP dictionaries independently.
	DeleteTags(match func(key TagKey) bool)

	// AccessMode reports the store's support for one metadata kind.
	AccessMode(kind MetadataKind) AccessMode

	// SaveTo serializes the source with the current dictionary state into
	// target. On error the target content must be considered garbage;
	// nothing partial is ever handed back to callers.
	SaveTo(target Stream) error
}

// DetectMIME sniffs the media type of an encoded image from its magic
// bytes. It returns "" when the format is not recognized.
func DetectMIME(p []byte) string {
	switch {
	case len(p) >= 3 && p[0] == 0xff && p[1] == 0xd8 && p[2] == 0xff:
		return "image/jpeg"
	case len(p) >= 8 && string(p[:8]) == "\x89PNG\r\n\x1a\n":
		return "image/png"
	case len(p) >= 6 && (string(p[:6]) == "GIF87a" || string(p[:6]) == "GIF89a"):
		return "image/gif"
	case len(p) >= 4 && (string(p[:4]) == "II*\x00" || string(p[:4]) == "MM\x00*"):
		return "image/tiff"
	case len(p) >= 12 && string(p[:4]) == "RIFF" && string(p[8:12]) == "WEBP":
		return "image/webp"
	}
	return ""
}
