package transport

import (
	"bytes"

	"github.com/hashicorp/go-msgpack/v2/codec"
)

// msgpackHandle mirrors memberlist's own encodeMsgPack/decodeMsgPack
// helpers (drone/swim used memberlist directly; this repo uses the
// same wire codec memberlist already pulls in for the consensus
// broadcast payload).
var msgpackHandle codec.MsgpackHandle

// EncodeMessage serializes a broadcast message for handoff to
// Transport.SendData.
func EncodeMessage(msg Message) ([]byte, error) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, &msgpackHandle)
	if err := enc.Encode(msg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeMessage parses a broadcast message received from Transport.
func DecodeMessage(data []byte) (Message, error) {
	var msg Message
	dec := codec.NewDecoderBytes(data, &msgpackHandle)
	if err := dec.Decode(&msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

func encodeSignal(sig Signal) ([]byte, error) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, &msgpackHandle)
	if err := enc.Encode(sig); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeSignal(data []byte) (Signal, error) {
	var sig Signal
	dec := codec.NewDecoderBytes(data, &msgpackHandle)
	if err := dec.Decode(&sig); err != nil {
		return Signal{}, err
	}
	return sig, nil
}
