package client

import "bytes"

// dataPrefix is the event framing marker: every payload-bearing line starts
// with these six bytes and runs to the next line break.
const dataPrefix = "data: "

// sseDecoder reassembles "data: " framed lines from arbitrary byte chunks.
// The transport gives no alignment guarantees, so an incomplete trailing line
// is buffered until its terminator arrives. Payloads are returned exactly as
// they appear on the wire, with no trimming.
type sseDecoder struct {
	buf []byte
}

// Feed appends a chunk and returns the payloads of all lines completed by it,
// in arrival order. Lines without the data prefix are discarded.
func (d *sseDecoder) Feed(chunk []byte) []string {
	d.buf = append(d.buf, chunk...)

	var payloads []string
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			return payloads
		}
		line := d.buf[:i]
		d.buf = d.buf[i+1:]
		if payload, ok := cutDataPrefix(line); ok {
			payloads = append(payloads, payload)
		}
	}
}

// Flush returns the payload of a buffered unterminated line, if it carries
// the data prefix. Called at end of stream to handle a body that ends without
// a trailing newline.
func (d *sseDecoder) Flush() (string, bool) {
	line := d.buf
	d.buf = nil
	return cutDataPrefix(line)
}

func cutDataPrefix(line []byte) (string, bool) {
	if len(line) < len(dataPrefix) || string(line[:len(dataPrefix)]) != dataPrefix {
		return "", false
	}
	return string(line[len(dataPrefix):]), true
}
