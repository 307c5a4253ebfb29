package protocol

import (
	"bytes"
	"compress/flate"
	"fmt"

	"github.com/openmmo/realmd/pkg/netmsg"
)

// compressor holds one deflate stream per session, reset per message.
// The legacy wire carries raw deflate streams, no zlib wrapper.
type compressor struct {
	buf bytes.Buffer
	w   *flate.Writer
}

func newCompressor(level int) (*compressor, error) {
	c := &compressor{}
	w, err := flate.NewWriter(&c.buf, level)
	if err != nil {
		return nil, fmt.Errorf("deflate level %d: %w", level, err)
	}
	c.w = w
	return c, nil
}

// compress replaces the message payload with its deflated form.
// Returns false, leaving the payload untouched, when deflation does
// not shrink it.
func (c *compressor) compress(msg *netmsg.OutputMessage) bool {
	body := msg.Body()

	c.buf.Reset()
	c.w.Reset(&c.buf)
	if _, err := c.w.Write(body); err != nil {
		return false
	}
	if err := c.w.Close(); err != nil {
		return false
	}
	if c.buf.Len() >= len(body) {
		return false
	}

	n := copy(msg.Buffer()[netmsg.HeaderLength:], c.buf.Bytes())
	msg.SetLength(n)
	msg.SetBufferPosition(netmsg.HeaderLength + n)
	return true
}
