package codec

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"io"
)

// Decoder reads complete RFC6242-framed netconf messages and decodes them with
// the standard xml package.
type Decoder struct {
	r       *bufio.Reader
	chunked bool
}

// Encoder encodes netconf messages with the standard xml package and writes
// each one as a single RFC6242-framed message.
type Encoder struct {
	w       io.Writer
	chunked bool
}

// NewDecoder delivers a new decoder.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// NewEncoder delivers a new encoder.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode encodes netconf message.
func (e *Encoder) Encode(msg interface{}) error {
	body, err := xml.Marshal(msg)
	if err != nil {
		return err
	}
	// Prepend xml document declaration to each message.
	return e.WriteMessage(append([]byte(xml.Header), body...))
}

// WriteMessage frames and writes an already serialised message.
func (e *Encoder) WriteMessage(msg []byte) error {
	if e.chunked {
		return writeChunked(e.w, msg)
	}
	return writeEndOfMessage(e.w, msg)
}

// ReadMessage returns the content of the next message, without framing.
// io.EOF is returned if the input ends cleanly between messages.
func (d *Decoder) ReadMessage() ([]byte, error) {
	if d.chunked {
		return readChunked(d.r)
	}
	return readEndOfMessage(d.r)
}

// Decode reads the next message and unmarshals it into v.
func (d *Decoder) Decode(v interface{}) error {
	msg, err := d.ReadMessage()
	if err != nil {
		return err
	}
	return xml.Unmarshal(bytes.TrimSpace(msg), v)
}

// RootName returns the name of the root element of a message.
func RootName(msg []byte) (xml.Name, error) {
	dec := xml.NewDecoder(bytes.NewReader(msg))
	for {
		token, err := dec.Token()
		if err != nil {
			return xml.Name{}, err
		}
		if start, ok := token.(xml.StartElement); ok {
			return start.Name, nil
		}
	}
}

// EnableChunkedFraming enables chunked framing on the specified decoder and encoder.
func EnableChunkedFraming(d *Decoder, e *Encoder) {
	if d != nil {
		d.chunked = true
	}
	if e != nil {
		e.chunked = true
	}
}
