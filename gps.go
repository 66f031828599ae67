// Copyright 2025 Jens Heikel
// SPDX-License-Identifier: MIT

package metastream

import (
	"fmt"
	"math"
)

// EXIF keys written by GPSInfo.Encode.
const (
	KeyGPSVersionID    = "Exif.GPSInfo.GPSVersionID"
	KeyGPSMapDatum     = "Exif.GPSInfo.GPSMapDatum"
	KeyGPSAltitudeRef  = "Exif.GPSInfo.GPSAltitudeRef"
	KeyGPSAltitude     = "Exif.GPSInfo.GPSAltitude"
	KeyGPSLatitudeRef  = "Exif.GPSInfo.GPSLatitudeRef"
	KeyGPSLatitude     = "Exif.GPSInfo.GPSLatitude"
	KeyGPSLongitudeRef = "Exif.GPSInfo.GPSLongitudeRef"
	KeyGPSLongitude    = "Exif.GPSInfo.GPSLongitude"
)

// gpsSecondsDen is the fixed denominator for the seconds component of
// encoded coordinates.
const gpsSecondsDen = 1000000

// GPSInfo is a geodetic position in the WGS-84 datum.
type GPSInfo struct {
	// Latitude in degrees, positive north.
	Latitude float64
	// Longitude in degrees, positive east.
	Longitude float64
	// Altitude in metres, negative below sea level.
	Altitude float64
}

// GPSTag is a single EXIF tag produced by GPSInfo.Encode.
type GPSTag struct {
	Key   string
	Value string

	// SkipIfPresent marks tags that must only be written when the target
	// has no value for the key yet (the GPS version marker).
	SkipIfPresent bool
}

// Encode converts the position into the EXIF GPSInfo tag set. The transform
// is stateless and deterministic: identical inputs produce byte-identical
// tag values.
//
// Hemisphere references follow the sign of the input (latitude south and
// longitude west when negative, altitude reference "1" below sea level),
// while degrees, minutes and seconds are derived from the absolute value.
// Seconds carry the fixed denominator 1000000.
func (g GPSInfo) Encode() []GPSTag {
	altRef := "0"
	if g.Altitude < 0 {
		altRef = "1"
	}
	latRef := "N"
	if g.Latitude < 0 {
		latRef = "S"
	}
	longRef := "E"
	if g.Longitude < 0 {
		longRef = "W"
	}

	altNum, altDen := floatToRational(float32(math.Abs(g.Altitude)))

	return []GPSTag{
		{Key: KeyGPSVersionID, Value: "2 0 0 0", SkipIfPresent: true},
		{Key: KeyGPSMapDatum, Value: "WGS-84"},
		{Key: KeyGPSAltitudeRef, Value: altRef},
		{Key: KeyGPSAltitude, Value: fmt.Sprintf("%d/%d", altNum, altDen)},
		{Key: KeyGPSLatitudeRef, Value: latRef},
		{Key: KeyGPSLatitude, Value: encodeDegrees(math.Abs(g.Latitude))},
		{Key: KeyGPSLongitudeRef, Value: longRef},
		{Key: KeyGPSLongitude, Value: encodeDegrees(math.Abs(g.Longitude))},
	}
}

// encodeDegrees renders a non-negative coordinate as
// "deg/1 min/1 sec/1000000".
func encodeDegrees(a float64) string {
	whole, frac := math.Modf(a)
	deg := int(whole)
	whole, frac = math.Modf(frac * 60)
	min := int(whole)
	sec := int(math.Floor(frac * 60 * gpsSecondsDen))
	return fmt.Sprintf("%d/1 %d/1 %d/%d", deg, min, sec, gpsSecondsDen)
}

// floatToRational converts f to a decimal rational, trading precision for
// range so the numerator fits in an int32. This matches the precision of a
// single-precision float to rational cast.
func floatToRational(f float32) (num, den int32) {
	den = 1000000
	abs := math.Abs(float64(f))
	if abs > float64(math.MaxInt32)/float64(den) {
		den = 10000
	}
	if abs > float64(math.MaxInt32)/10000 {
		den = 1
	}
	r, _ := NewRat[int32](int32(math.Round(float64(f)*float64(den))), den) // den is never zero
	return r.Num(), r.Den()
}
