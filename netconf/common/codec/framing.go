package codec

import (
	"bufio"
	"bytes"
	"io"
	"strconv"

	"github.com/pkg/errors"
)

// RFC6242 message framing.
//
// Until both peers have advertised :base:1.1 every message is terminated by the
// end-of-message marker. Afterwards messages are sent as one or more chunks
// (\n#<size>\n<data>) followed by the end-of-chunks marker (\n##\n).

const (
	// RFC6242 section 4.2 defines the "maximum allowed chunk-size".
	maxChunkSize uint64 = 4294967295
	// Outgoing messages larger than this are split over several chunks.
	writeChunkSize = 1 << 30
)

var (
	endOfMessage = []byte("]]>]]>")
	endOfChunks  = []byte("\n##\n")
)

// ErrMalformedChunk is reported when chunked input does not follow RFC6242 section 4.2.
var ErrMalformedChunk = errors.New("netconf: malformed chunk")

func writeEndOfMessage(w io.Writer, msg []byte) error {
	buf := make([]byte, 0, len(msg)+len(endOfMessage))
	buf = append(buf, msg...)
	buf = append(buf, endOfMessage...)
	_, err := w.Write(buf)
	return err
}

func writeChunked(w io.Writer, msg []byte) error {
	var buf bytes.Buffer
	for len(msg) > 0 {
		size := len(msg)
		if size > writeChunkSize {
			size = writeChunkSize
		}
		buf.WriteString("\n#")
		buf.WriteString(strconv.Itoa(size))
		buf.WriteByte('\n')
		buf.Write(msg[:size])
		msg = msg[size:]
	}
	buf.Write(endOfChunks)
	_, err := w.Write(buf.Bytes())
	return err
}

func readEndOfMessage(r *bufio.Reader) ([]byte, error) {
	var msg []byte
	for {
		seg, err := r.ReadBytes('>')
		msg = append(msg, seg...)
		if bytes.HasSuffix(msg, endOfMessage) {
			return msg[:len(msg)-len(endOfMessage)], nil
		}
		if err != nil {
			if err == io.EOF && len(bytes.TrimSpace(msg)) > 0 {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}
}

func readChunked(r *bufio.Reader) ([]byte, error) {
	var msg []byte
	for first := true; ; first = false {
		if err := expect(r, '\n', first); err != nil {
			return nil, err
		}
		if err := expect(r, '#', false); err != nil {
			return nil, err
		}
		b, err := r.ReadByte()
		if err != nil {
			return nil, unexpected(err)
		}
		if b == '#' {
			if err = expect(r, '\n', false); err != nil {
				return nil, err
			}
			return msg, nil
		}
		if err = r.UnreadByte(); err != nil {
			return nil, err
		}
		size, err := readChunkSize(r)
		if err != nil {
			return nil, err
		}
		chunk := make([]byte, size)
		if _, err = io.ReadFull(r, chunk); err != nil {
			return nil, unexpected(err)
		}
		msg = append(msg, chunk...)
	}
}

func readChunkSize(r *bufio.Reader) (uint64, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return 0, unexpected(err)
	}
	digits := line[:len(line)-1]
	if digits == "" || digits[0] < '1' || digits[0] > '9' {
		return 0, ErrMalformedChunk
	}
	size, err := strconv.ParseUint(digits, 10, 64)
	if err != nil || size > maxChunkSize {
		return 0, ErrMalformedChunk
	}
	return size, nil
}

// expect consumes a single byte, which must be want. A clean EOF is only
// acceptable at the start of a message.
func expect(r *bufio.Reader, want byte, eofOK bool) error {
	b, err := r.ReadByte()
	if err != nil {
		if eofOK {
			return err
		}
		return unexpected(err)
	}
	if b != want {
		return ErrMalformedChunk
	}
	return nil
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
