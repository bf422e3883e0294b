package header_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrisio/hris/header"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	h := &header.Header{
		Type:    "Point",
		Name:    "instanceName",
		ObjSize: 8,
		Format:  "Binary",
		Opts:    "LITTLE_ENDIAN",
	}
	line := header.Encode(h)
	require.Equal(t, byte('\n'), line[len(line)-1])

	got, err := header.Decode(line)
	require.NoError(t, err)
	require.Equal(t, h.Type, got.Type)
	require.Equal(t, h.Name, got.Name)
	require.Equal(t, h.ObjSize, got.ObjSize)
	require.Equal(t, h.Format, got.Format)
	require.Equal(t, h.Opts, got.Opts)
	require.Equal(t, header.V2Major, got.Major)
	require.Equal(t, header.V2Minor, got.Minor)
}

func TestObjSizeIsRightJustified(t *testing.T) {
	h := &header.Header{Type: "T", Name: "n", ObjSize: 73, Format: "Ascii"}
	line := header.Encode(h)
	require.Contains(t, line, "objSize =          73")
}

func TestDecodeV1(t *testing.T) {
	line := "HRIS-1.0 Point instanceName 8 Binary LITTLE_ENDIAN\n"
	h, err := header.Decode(line)
	require.NoError(t, err)
	require.Equal(t, 1, h.Major)
	require.Equal(t, 0, h.Minor)
	require.Equal(t, "Point", h.Type)
	require.Equal(t, "instanceName", h.Name)
	require.Equal(t, int64(8), h.ObjSize)
	require.Equal(t, "Binary", h.Format)
	require.Equal(t, "LITTLE_ENDIAN", h.Opts)
}

func TestDecodeMissingPreamble(t *testing.T) {
	_, err := header.Decode("garbage\n")
	require.Error(t, err)
}

func TestObjSizeFieldOffsetLocatesPatchPoint(t *testing.T) {
	h := &header.Header{Type: "T", Name: "n", ObjSize: 0, Format: "Ascii"}
	line := header.Encode(h)
	off := header.ObjSizeFieldOffset(line)
	require.Greater(t, off, 0)
	require.Equal(t, "        73", padTo10("73"))
	patched := line[:off] + padTo10("73") + line[off+header.ObjSizeWidth:]
	got, err := header.Decode(patched)
	require.NoError(t, err)
	require.Equal(t, int64(73), got.ObjSize)
}

func padTo10(s string) string {
	for len(s) < 10 {
		s = " " + s
	}
	return s
}
