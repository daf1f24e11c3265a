package metadata

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/oshokin/fwmeta/internal/domain/firmware"
)

//nolint:gochecknoglobals // Codec modes are immutable once built.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() { //nolint:gochecknoinits // Codec modes must exist before the first query.
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("metadata: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("metadata: CBOR decoder initialization failed: " + err.Error())
	}
}

// encodeComponent serializes the descriptor payload; identity columns are excluded.
func encodeComponent(md *firmware.Component) ([]byte, error) {
	data, err := encMode.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("encode component %s: %w", md.AppstreamID, err)
	}

	return data, nil
}

func decodeComponent(data []byte) (*firmware.Component, error) {
	md := new(firmware.Component)
	if err := decMode.Unmarshal(data, md); err != nil {
		return nil, fmt.Errorf("decode component: %w", err)
	}

	return md, nil
}
