// Package ledgerv1 defines the ledger.v1.Ledger gRPC service and its
// messages. Messages travel as CBOR; the same structs carry json tags so
// the HTTP gateway serves them unchanged.
package ledgerv1

import (
	"github.com/fxamacker/cbor/v2"
	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content subtype ("application/grpc+cbor").
const CodecName = "cbor"

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	var err error
	encMode, err = opts.EncMode()
	if err != nil {
		panic("ledgerv1: cbor encoder: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("ledgerv1: cbor decoder: " + err.Error())
	}
	encoding.RegisterCodec(Codec{})
}

// Codec is a grpc encoding.Codec backed by CBOR.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error)      { return encMode.Marshal(v) }
func (Codec) Unmarshal(data []byte, v any) error { return decMode.Unmarshal(data, v) }
func (Codec) Name() string                       { return CodecName }
