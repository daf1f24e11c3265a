// Package dfu checks the USB DFU suffix appended to firmware payloads.
package dfu

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// Protocol is the component protocol whose payloads carry a DFU suffix.
const Protocol = "org.usb.dfu"

const (
	footerSize = 16
	signature  = "UFD"
	minLength  = 10
)

// Attribute is one finding of the check.
type Attribute struct {
	Title   string
	Message string
	Success bool
}

// Result collects the findings for one payload.
type Result struct {
	Attributes []Attribute
}

// Passed reports whether no finding failed.
func (r *Result) Passed() bool {
	for _, attr := range r.Attributes {
		if !attr.Success {
			return false
		}
	}

	return true
}

// Failures returns the failed findings.
func (r *Result) Failures() []Attribute {
	var failed []Attribute

	for _, attr := range r.Attributes {
		if !attr.Success {
			failed = append(failed, attr)
		}
	}

	return failed
}

func (r *Result) pass(title, format string, args ...any) {
	r.Attributes = append(r.Attributes, Attribute{Title: title, Message: fmt.Sprintf(format, args...), Success: true})
}

func (r *Result) fail(title, format string, args ...any) {
	r.Attributes = append(r.Attributes, Attribute{Title: title, Message: fmt.Sprintf(format, args...)})
}

// footer is the little-endian DFU suffix at the end of a payload.
type footer struct {
	Device  uint16
	Product uint16
	Vendor  uint16
	DFU     uint16
	Sig     [3]byte
	Length  uint8
	CRC     uint32
}

// Check validates the DFU suffix of blob.
func Check(blob []byte) *Result {
	result := new(Result)

	size := len(blob)
	if size < footerSize {
		result.fail("FileSize", "0x%x", size)

		return result
	}

	raw := blob[size-footerSize:]
	ftr := footer{
		Device:  binary.LittleEndian.Uint16(raw[0:2]),
		Product: binary.LittleEndian.Uint16(raw[2:4]),
		Vendor:  binary.LittleEndian.Uint16(raw[4:6]),
		DFU:     binary.LittleEndian.Uint16(raw[6:8]),
		Length:  raw[11],
		CRC:     binary.LittleEndian.Uint32(raw[12:16]),
	}
	copy(ftr.Sig[:], raw[8:11])

	if string(ftr.Sig[:]) != signature {
		result.fail("Footer Signature", "%q is not valid", ftr.Sig[:])

		return result
	}

	if ftr.Device == 0 {
		result.fail("Device", "0x%04x is not valid", ftr.Device)
	}

	if ftr.Product == 0 {
		result.fail("Product", "0x%04x is not valid", ftr.Product)
	}

	if ftr.Vendor == 0 {
		result.fail("Vendor", "0x%04x is not valid", ftr.Vendor)
	}

	if ftr.DFU == 0x0100 || ftr.DFU == 0x0101 {
		result.pass("DFU Version", "0x%04x", ftr.DFU)
	} else {
		result.fail("DFU Version", "0x%04x is not valid", ftr.DFU)
	}

	if ftr.Length >= minLength {
		result.pass("DFU Length", "0x%02x", ftr.Length)
	} else {
		result.fail("DFU Length", "0x%02x is not valid", ftr.Length)
	}

	// The suffix stores the bit-inverted IEEE CRC of everything before it.
	expected := crc32.ChecksumIEEE(blob[:size-4]) ^ 0xffffffff
	if ftr.CRC == expected {
		result.pass("CRC", "0x%04x", ftr.CRC)
	} else {
		result.fail("CRC", "0x%04x is not valid, expected 0x%04x", ftr.CRC, expected)
	}

	return result
}
