package refvalue_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrisio/hris/refvalue"
)

func TestParseAndFormat(t *testing.T) {
	l, err := refvalue.Parse(`type = 'Point' name = instanceName objSize =          73 format = Ascii`)
	require.NoError(t, err)
	require.Equal(t, "Point", l.MustGet("type"))
	require.Equal(t, "instanceName", l.MustGet("name"))
	require.Equal(t, "73", l.MustGet("objSize"))
	require.Equal(t, "Ascii", l.MustGet("format"))
}

func TestParseQuotedEscapes(t *testing.T) {
	l, err := refvalue.Parse(`opts = 'a \'quoted\' value'`)
	require.NoError(t, err)
	require.Equal(t, "a 'quoted' value", l.MustGet("opts"))
}

func TestSetOverwritesLast(t *testing.T) {
	var l refvalue.List
	l.Set("k", "v1")
	l.Set("k", "v2")
	require.Equal(t, "v2", l.MustGet("k"))
	require.Len(t, l.Pairs(), 1)
}

func TestFormatRoundTrip(t *testing.T) {
	var l refvalue.List
	l.Set("type", "Point")
	l.Set("opts", "has space")
	out := l.Format()
	parsed, err := refvalue.Parse(out)
	require.NoError(t, err)
	require.Equal(t, "Point", parsed.MustGet("type"))
	require.Equal(t, "has space", parsed.MustGet("opts"))
}

func TestParseV1(t *testing.T) {
	l, err := refvalue.ParseV1("Point instanceName 73 Ascii some opts here")
	require.NoError(t, err)
	require.Equal(t, "Point", l.MustGet("type"))
	require.Equal(t, "instanceName", l.MustGet("name"))
	require.Equal(t, "73", l.MustGet("objSize"))
	require.Equal(t, "Ascii", l.MustGet("format"))
	require.Equal(t, "some opts here", l.MustGet("opts"))
}

func TestParseMissingEquals(t *testing.T) {
	_, err := refvalue.Parse("type Point")
	require.Error(t, err)
}
