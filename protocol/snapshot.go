// Package protocol defines the snapshot wire format streamed to
// subscribers: one MessagePack frame per snapshot.
package protocol

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Level is one price level on the wire, encoded as a 2-element array
// [price, size] to keep frames compact.
type Level struct {
	Price float64
	Size  uint64
}

var (
	_ msgpack.CustomEncoder = (*Level)(nil)
	_ msgpack.CustomDecoder = (*Level)(nil)
)

// EncodeMsgpack encodes the level as [price, size].
func (l *Level) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeArrayLen(2); err != nil {
		return err
	}
	if err := enc.EncodeFloat64(l.Price); err != nil {
		return err
	}
	return enc.EncodeUint64(l.Size)
}

// DecodeMsgpack decodes a [price, size] array.
func (l *Level) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	if n != 2 {
		return fmt.Errorf("level: want 2 elements, got %d", n)
	}
	if l.Price, err = dec.DecodeFloat64(); err != nil {
		return err
	}
	l.Size, err = dec.DecodeUint64()
	return err
}

// Snapshot is one bounded-depth frame of the book, both sides best-first.
type Snapshot struct {
	TS   uint64  `msgpack:"ts"`
	Seq  uint64  `msgpack:"seq"`
	Bids []Level `msgpack:"bids"`
	Asks []Level `msgpack:"asks"`
}
