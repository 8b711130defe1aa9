package tsplot

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// The live preview websocket speaks a small binary protocol: an 8-byte
// envelope followed by a typed payload. Samples travel as packed float64s
// because a busy source can emit thousands of rows per second; metadata
// and stream-end notices are JSON since they are rare and small.

const (
	// WireVersion is the current protocol version.
	WireVersion byte = 1

	MessageTypeSamples   byte = 0x01
	MessageTypeMetadata  byte = 0x02
	MessageTypeStreamEnd byte = 0x03

	// EnvelopeSize is the envelope header size in bytes.
	EnvelopeSize = 8
)

// Envelope is the fixed-size message header.
type Envelope struct {
	Version  byte
	Reserved [2]byte
	Type     byte
	Length   uint32 // Payload length in bytes
}

// SamplesMessage carries a batch of samples (type 0x01). Every sample must
// have exactly Width y values.
type SamplesMessage struct {
	Width   uint32
	Samples []Sample
}

// StreamEndMessage signals the end of the input stream (type 0x03).
type StreamEndMessage struct {
	Error bool
	Msg   string
}

// WireMessage is a complete decoded message.
type WireMessage struct {
	Envelope Envelope
	Payload  interface{} // One of: SamplesMessage, Metadata, StreamEndMessage
}

// EncodeEnvelope encodes the envelope header.
func EncodeEnvelope(env Envelope) []byte {
	buf := make([]byte, EnvelopeSize)
	buf[0] = env.Version
	buf[1] = env.Reserved[0]
	buf[2] = env.Reserved[1]
	buf[3] = env.Type
	binary.LittleEndian.PutUint32(buf[4:8], env.Length)
	return buf
}

// DecodeEnvelope decodes the envelope header, failing if the buffer is too
// short.
func DecodeEnvelope(buf []byte) (Envelope, error) {
	if len(buf) < EnvelopeSize {
		return Envelope{}, fmt.Errorf("buffer too short: expected at least %d bytes, got %d", EnvelopeSize, len(buf))
	}

	env := Envelope{
		Version: buf[0],
		Type:    buf[3],
		Length:  binary.LittleEndian.Uint32(buf[4:8]),
	}
	env.Reserved[0] = buf[1]
	env.Reserved[1] = buf[2]

	return env, nil
}

// EncodeSamplesMessage encodes a SAMPLES payload: width, count, then
// count rows of (x, y_0 .. y_width-1) as little-endian float64s.
func EncodeSamplesMessage(msg SamplesMessage) ([]byte, error) {
	for i, sample := range msg.Samples {
		if uint32(len(sample.Ys)) != msg.Width {
			return nil, fmt.Errorf("sample %d has %d y values, want %d", i, len(sample.Ys), msg.Width)
		}
	}

	count := uint32(len(msg.Samples))
	payloadSize := 8 + count*(1+msg.Width)*8
	buf := make([]byte, payloadSize)

	binary.LittleEndian.PutUint32(buf[0:4], msg.Width)
	binary.LittleEndian.PutUint32(buf[4:8], count)

	offset := 8
	for _, sample := range msg.Samples {
		binary.LittleEndian.PutUint64(buf[offset:offset+8], math.Float64bits(sample.X))
		offset += 8
		for _, y := range sample.Ys {
			binary.LittleEndian.PutUint64(buf[offset:offset+8], math.Float64bits(y))
			offset += 8
		}
	}

	return buf, nil
}

// DecodeSamplesMessage decodes a SAMPLES payload.
func DecodeSamplesMessage(buf []byte) (SamplesMessage, error) {
	if len(buf) < 8 {
		return SamplesMessage{}, fmt.Errorf("buffer too short for SAMPLES message: expected at least 8 bytes, got %d", len(buf))
	}

	msg := SamplesMessage{Width: binary.LittleEndian.Uint32(buf[0:4])}
	count := binary.LittleEndian.Uint32(buf[4:8])

	// The size check must use 64-bit arithmetic: a crafted count/width pair
	// can wrap a uint32 product and sneak a huge count past a short buffer.
	rowFloats := uint64(count) * (1 + uint64(msg.Width))
	if rowFloats > (uint64(len(buf))-8)/8 || uint64(len(buf)) != 8+rowFloats*8 {
		return SamplesMessage{}, fmt.Errorf("buffer size mismatch: expected %d samples of width %d in %d bytes", count, msg.Width, len(buf))
	}

	msg.Samples = make([]Sample, count)
	offset := 8
	for i := uint32(0); i < count; i++ {
		msg.Samples[i].X = math.Float64frombits(binary.LittleEndian.Uint64(buf[offset : offset+8]))
		offset += 8
		ys := make([]float64, msg.Width)
		for j := uint32(0); j < msg.Width; j++ {
			ys[j] = math.Float64frombits(binary.LittleEndian.Uint64(buf[offset : offset+8]))
			offset += 8
		}
		msg.Samples[i].Ys = ys
	}

	return msg, nil
}

// encodeJSONPayload frames a JSON-marshalable value as length + data.
func encodeJSONPayload(value any) ([]byte, error) {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	buf := make([]byte, 4+len(jsonData))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(jsonData)))
	copy(buf[4:], jsonData)

	return buf, nil
}

func decodeJSONPayload(buf []byte, into any) error {
	if len(buf) < 4 {
		return fmt.Errorf("buffer too short for JSON payload: expected at least 4 bytes, got %d", len(buf))
	}

	jsonLength := binary.LittleEndian.Uint32(buf[0:4])
	if uint32(len(buf)) != 4+jsonLength {
		return fmt.Errorf("buffer size mismatch: expected %d bytes, got %d", 4+jsonLength, len(buf))
	}

	return json.Unmarshal(buf[4:], into)
}

// EncodeWireMessage encodes a complete message (envelope + payload). The
// envelope length is set from the encoded payload.
func EncodeWireMessage(msg WireMessage) ([]byte, error) {
	var payload []byte
	var err error

	switch msg.Envelope.Type {
	case MessageTypeSamples:
		samples, ok := msg.Payload.(SamplesMessage)
		if !ok {
			return nil, fmt.Errorf("payload type mismatch: expected SamplesMessage for type 0x%02x, got %T", msg.Envelope.Type, msg.Payload)
		}
		payload, err = EncodeSamplesMessage(samples)
	case MessageTypeMetadata:
		metadata, ok := msg.Payload.(Metadata)
		if !ok {
			return nil, fmt.Errorf("payload type mismatch: expected Metadata for type 0x%02x, got %T", msg.Envelope.Type, msg.Payload)
		}
		payload, err = encodeJSONPayload(metadata)
	case MessageTypeStreamEnd:
		streamEnd, ok := msg.Payload.(StreamEndMessage)
		if !ok {
			return nil, fmt.Errorf("payload type mismatch: expected StreamEndMessage for type 0x%02x, got %T", msg.Envelope.Type, msg.Payload)
		}
		payload, err = encodeJSONPayload(streamEnd)
	default:
		return nil, fmt.Errorf("unknown message type: 0x%02x", msg.Envelope.Type)
	}
	if err != nil {
		return nil, err
	}

	msg.Envelope.Length = uint32(len(payload))
	header := EncodeEnvelope(msg.Envelope)

	fullMsg := make([]byte, len(header)+len(payload))
	copy(fullMsg, header)
	copy(fullMsg[len(header):], payload)

	return fullMsg, nil
}

// DecodeWireMessage decodes a complete message (envelope + payload).
func DecodeWireMessage(buf []byte) (WireMessage, error) {
	env, err := DecodeEnvelope(buf)
	if err != nil {
		return WireMessage{}, err
	}

	// 64-bit comparison so a near-max declared length cannot wrap past the
	// envelope size and pass the check.
	if uint64(len(buf)) < EnvelopeSize+uint64(env.Length) {
		return WireMessage{}, fmt.Errorf("buffer too short: expected %d bytes (envelope + payload), got %d", EnvelopeSize+uint64(env.Length), len(buf))
	}

	payloadBytes := buf[EnvelopeSize : EnvelopeSize+int(env.Length)]

	var payload interface{}
	switch env.Type {
	case MessageTypeSamples:
		payload, err = DecodeSamplesMessage(payloadBytes)
	case MessageTypeMetadata:
		var metadata Metadata
		err = decodeJSONPayload(payloadBytes, &metadata)
		payload = metadata
	case MessageTypeStreamEnd:
		var streamEnd StreamEndMessage
		err = decodeJSONPayload(payloadBytes, &streamEnd)
		payload = streamEnd
	default:
		return WireMessage{}, fmt.Errorf("unknown message type: 0x%02x", env.Type)
	}
	if err != nil {
		return WireMessage{}, err
	}

	return WireMessage{
		Envelope: env,
		Payload:  payload,
	}, nil
}
