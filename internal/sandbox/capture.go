package sandbox

import (
	"bytes"
	"encoding/binary"
	"io"
)

// Docker multiplexes stdout and stderr over a single log stream when the
// container runs without a TTY: each frame is an 8-byte header (stream
// type, three padding bytes, big-endian payload length) followed by the
// payload. demuxLogs splits the stream back apart, capping each side at
// capBytes.
func demuxLogs(r io.Reader, capBytes int) (stdout, stderr string, truncated bool) {
	out := newCapBuffer(capBytes)
	errOut := newCapBuffer(capBytes)
	hdr := make([]byte, 8)
	for {
		if _, err := io.ReadFull(r, hdr); err != nil {
			break
		}
		n := int64(binary.BigEndian.Uint32(hdr[4:8]))
		dst := out
		if hdr[0] == 2 {
			dst = errOut
		}
		if _, err := io.CopyN(dst, r, n); err != nil {
			break
		}
	}
	return out.String(), errOut.String(), out.truncated || errOut.truncated
}

// capBuffer keeps the first max bytes written and drops the rest, flagging
// that it did. Write never fails so callers can keep draining a stream past
// the cap.
type capBuffer struct {
	buf       bytes.Buffer
	max       int
	truncated bool
}

func newCapBuffer(max int) *capBuffer {
	return &capBuffer{max: max}
}

func (b *capBuffer) Write(p []byte) (int, error) {
	room := b.max - b.buf.Len()
	if room <= 0 {
		if len(p) > 0 {
			b.truncated = true
		}
		return len(p), nil
	}
	if len(p) > room {
		b.buf.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *capBuffer) String() string { return b.buf.String() }
