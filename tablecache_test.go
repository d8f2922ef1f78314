package transcriptome

import (
	"io"

	"gopkg.in/check.v1"
)

type tableCacheSuite struct{}

var _ = check.Suite(&tableCacheSuite{})

func (s *tableCacheSuite) TestHitMissEvict(c *check.C) {
	tc := &tableCache{Max: 2}
	parses := 0
	read := func(r io.Reader) (*MetadataTable, error) {
		parses++
		return ReadMetadataTable(r)
	}
	a := []byte("sample,group\nS1,a\n")
	b := []byte("sample,group\nS2,b\n")

	t1, err := cachedTable(tc, "metadata_file", a, read)
	c.Assert(err, check.IsNil)
	t2, err := cachedTable(tc, "metadata_file", a, read)
	c.Assert(err, check.IsNil)
	c.Check(t2, check.Equals, t1)
	c.Check(parses, check.Equals, 1)

	// same bytes under a different field name are parsed separately
	_, err = cachedTable(tc, "other_file", a, read)
	c.Assert(err, check.IsNil)
	c.Check(parses, check.Equals, 2)

	// evicts the oldest entry
	_, err = cachedTable(tc, "metadata_file", b, read)
	c.Assert(err, check.IsNil)
	c.Check(parses, check.Equals, 3)
	_, err = cachedTable(tc, "metadata_file", a, read)
	c.Assert(err, check.IsNil)
	c.Check(parses, check.Equals, 4)
}

func (s *tableCacheSuite) TestErrorsNotCached(c *check.C) {
	tc := &tableCache{Max: 2}
	bad := []byte("gene\nG1\n")
	for i := 0; i < 2; i++ {
		_, err := cachedTable(tc, "counts_file", bad, ReadCountsTable)
		c.Check(err, check.FitsTypeOf, &TableFormatError{})
	}
	c.Check(tc.entries, check.HasLen, 0)
}
