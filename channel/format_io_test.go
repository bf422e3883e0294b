package channel

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrisio/hris/serializetype"
)

func TestPrintfScanfRoundTrip(t *testing.T) {
	c := openMem(t, RdWr)

	n := int32(42)
	u := uint32(7)
	f := 3.5
	s := "hello"
	err := c.Printf("%d %u %f %s\n", []serializetype.ValueRef{
		{Type: serializetype.Int32, I32: &n},
		{Type: serializetype.Uint32, U32: &u},
		{Type: serializetype.Float64, F64: &f},
		{Type: serializetype.String, Str: &s},
	})
	require.NoError(t, err)
	require.NoError(t, c.Rewind())

	var gotN int32
	var gotU uint32
	var gotF float64
	var gotS string
	nv, err := c.Scanf("%d %u %f %s", []serializetype.ValueRef{
		{Type: serializetype.Int32, I32: &gotN},
		{Type: serializetype.Uint32, U32: &gotU},
		{Type: serializetype.Float64, F64: &gotF},
		{Type: serializetype.String, Str: &gotS},
	})
	require.NoError(t, err)
	require.Equal(t, 4, nv)
	require.Equal(t, n, gotN)
	require.Equal(t, u, gotU)
	require.Equal(t, f, gotF)
	require.Equal(t, s, gotS)
}

func TestScanfSkipsWhitespaceRuns(t *testing.T) {
	c := openMem(t, RdWr)
	_, err := c.Write([]byte("1    2"))
	require.NoError(t, err)
	require.NoError(t, c.Rewind())

	var a, b int64
	_, err = c.Scanf("%d %d", []serializetype.ValueRef{
		{Type: serializetype.Int64, I64: &a},
		{Type: serializetype.Int64, I64: &b},
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), a)
	require.Equal(t, int64(2), b)
}

func TestScanfUngetsOnLiteralMismatch(t *testing.T) {
	c := openMem(t, RdWr)
	_, err := c.Write([]byte("X9"))
	require.NoError(t, err)
	require.NoError(t, c.Rewind())

	_, err = c.Scanf("Y", nil)
	require.Error(t, err)

	// The mismatched byte must have been pushed back: a plain Read still
	// sees it.
	got := make([]byte, 2)
	_, err = c.Read(got)
	require.NoError(t, err)
	require.Equal(t, "X9", string(got))
}

func TestPrintfQuotedString(t *testing.T) {
	c := openMem(t, RdWr)
	s := `say "hi"`
	err := c.Printf("%qs", []serializetype.ValueRef{
		{Type: serializetype.String, Str: &s},
	})
	require.NoError(t, err)
	require.NoError(t, c.Rewind())

	var got string
	_, err = c.Scanf("%qs", []serializetype.ValueRef{
		{Type: serializetype.String, Str: &got},
	})
	require.NoError(t, err)
	require.Equal(t, s, got)
}
