package dfu

import (
	"encoding/binary"
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/require"
)

// withFooter appends a DFU suffix to payload with a correct CRC.
func withFooter(payload []byte, device, product, vendor, bcdDFU uint16, length uint8) []byte {
	blob := append([]byte(nil), payload...)
	blob = binary.LittleEndian.AppendUint16(blob, device)
	blob = binary.LittleEndian.AppendUint16(blob, product)
	blob = binary.LittleEndian.AppendUint16(blob, vendor)
	blob = binary.LittleEndian.AppendUint16(blob, bcdDFU)
	blob = append(blob, 'U', 'F', 'D', length)

	return binary.LittleEndian.AppendUint32(blob, crc32.ChecksumIEEE(blob)^0xffffffff)
}

// TestCheckValid accepts a well-formed suffix.
func TestCheckValid(t *testing.T) {
	t.Parallel()

	result := Check(withFooter([]byte("firmware image"), 0x0001, 0x5678, 0x1234, 0x0100, 16))
	require.True(t, result.Passed())
	require.Empty(t, result.Failures())
	require.Len(t, result.Attributes, 3)
}

// TestCheckFailures reports each broken field.
func TestCheckFailures(t *testing.T) {
	t.Parallel()

	result := Check([]byte("short"))
	require.False(t, result.Passed())
	require.Equal(t, "FileSize", result.Failures()[0].Title)

	result = Check(make([]byte, 32))
	require.Len(t, result.Attributes, 1)
	require.Equal(t, "Footer Signature", result.Attributes[0].Title)

	blob := withFooter([]byte("payload"), 0, 0, 0, 0x0200, 4)
	result = Check(blob)

	titles := make([]string, 0, len(result.Failures()))
	for _, attr := range result.Failures() {
		titles = append(titles, attr.Title)
	}

	require.Equal(t, []string{"Device", "Product", "Vendor", "DFU Version", "DFU Length"}, titles)

	blob = withFooter([]byte("payload"), 1, 2, 3, 0x0101, 16)
	blob[0] ^= 0xff
	result = Check(blob)
	require.Equal(t, "CRC", result.Failures()[0].Title)
}
