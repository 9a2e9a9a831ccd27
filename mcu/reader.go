package mcu

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// FrameReader reassembles frames of one Dialect from a Transport
type FrameReader struct {
	t Transport
	d Dialect
}

// NewFrameReader creates a FrameReader on t
func NewFrameReader(t Transport, d Dialect) *FrameReader {
	return &FrameReader{t: t, d: d}
}

// ReadFrame waits at most timeout for a complete frame and returns its payload.
// ok is false if no end delimiter arrived in time. Partial data dropped on a
// resync or a timeout is only logged.
func (r *FrameReader) ReadFrame(timeout time.Duration) (payload []byte, ok bool, err error) {
	deadline := time.Now().Add(timeout)
	buf := []byte{}
	started := false

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			if len(buf) > 0 {
				log.Debugf("Timed out with partial frame '% x'", buf)
			}
			return nil, false, nil
		}
		b, got, err := r.t.ReadByteTimeout(remaining)
		if err != nil {
			return nil, false, err
		}
		if !got {
			continue
		}

		if r.d.Resync {
			switch b {
			case r.d.Start:
				if len(buf) > 0 {
					log.Debugf("Resync, dropping '% x'", buf)
				}
				buf = buf[:0]
			case r.d.End:
				return buf, true, nil
			default:
				buf = append(buf, b)
			}
			continue
		}

		switch {
		case !started && b == r.d.Start:
			started = true
		case !started:
			log.Debugf("Skipping %#02x while waiting for start byte", b)
		case b == r.d.End:
			return buf, true, nil
		default:
			buf = append(buf, b)
		}
	}
}
