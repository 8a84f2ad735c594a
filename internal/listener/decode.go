package listener

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// ErrMalformedPacket is returned for payloads that are not a single JSON object
var ErrMalformedPacket = errors.New("malformed packet")

// Field is one top-level key of a packet with its undecoded scalar
type Field struct {
	Name  string
	Value interface{}
}

// DecodePacket parses a datagram into its fields, in the order they appear.
// Numbers are kept as json.Number so integer channels do not lose precision. Nothing is returned
// unless the whole payload parses.
func DecodePacket(payload []byte) ([]Field, error) {
	// senders pad fixed-size buffers with NULs
	payload = bytes.Trim(payload, " \t\r\n\x00")
	if len(payload) == 0 || payload[0] != '{' {
		return nil, ErrMalformedPacket
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, ErrMalformedPacket
	}

	var fields []Field
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, ErrMalformedPacket
		}
		name, ok := tok.(string)
		if !ok {
			return nil, ErrMalformedPacket
		}

		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return nil, ErrMalformedPacket
		}
		fields = append(fields, Field{Name: name, Value: value})
	}

	if tok, err := dec.Token(); err != nil || tok != json.Delim('}') {
		return nil, ErrMalformedPacket
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, ErrMalformedPacket
	}

	return fields, nil
}
