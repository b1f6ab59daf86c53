package protocol

import "github.com/vmihailenco/msgpack/v5"

// Serializer converts snapshots to wire frames and back.
type Serializer interface {
	Marshal(s *Snapshot) ([]byte, error)
	Unmarshal(data []byte, s *Snapshot) error
}

// MsgpackSerializer is the production wire codec.
type MsgpackSerializer struct{}

func NewMsgpackSerializer() *MsgpackSerializer {
	return &MsgpackSerializer{}
}

func (MsgpackSerializer) Marshal(s *Snapshot) ([]byte, error) {
	return msgpack.Marshal(s)
}

func (MsgpackSerializer) Unmarshal(data []byte, s *Snapshot) error {
	return msgpack.Unmarshal(data, s)
}
