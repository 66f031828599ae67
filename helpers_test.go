package metastream_test

import (
	"testing"

	"github.com/jheik/metastream"

	qt "github.com/frankban/quicktest"
)

func TestNewRat(t *testing.T) {
	c := qt.New(t)

	r, err := metastream.NewRat[uint32](10, 4)
	c.Assert(err, qt.IsNil)
	c.Assert(r.Num(), qt.Equals, uint32(5))
	c.Assert(r.Den(), qt.Equals, uint32(2))
	c.Assert(r.String(), qt.Equals, "5/2")
	c.Assert(r.Float64(), qt.Equals, 2.5)

	r, err = metastream.NewRat[uint32](6, 3)
	c.Assert(err, qt.IsNil)
	c.Assert(r.String(), qt.Equals, "2")

	_, err = metastream.NewRat[uint32](1, 0)
	c.Assert(err, qt.IsNotNil)

	ri, err := metastream.NewRat[int32](-10, 5)
	c.Assert(err, qt.IsNil)
	c.Assert(ri.String(), qt.Equals, "-2")
}
