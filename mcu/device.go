package mcu

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tarm/serial"
)

// DefaultBaud is the line speed of the test firmware
const DefaultBaud = 115200

// serialPoll is the read timeout the serial port is opened with.
// termios counts in deciseconds, so this is also the finest timeout granularity.
const serialPoll = 100 * time.Millisecond

// Transport is the byte-oriented duplex stream the driver talks over
type Transport interface {
	Write(b []byte) (int, error)
	// ReadByteTimeout waits at most d for one byte. ok is false if none arrived.
	ReadByteTimeout(d time.Duration) (b byte, ok bool, err error)
}

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// Device is the Transport representation of a microcontroller attached via serial device or tcp
type Device struct {
	conn         io.ReadWriteCloser
	r            *bufio.Reader
	rlock, wlock sync.Mutex

	link      string
	connected bool
	// deadline is set for network links, serial links poll with serialPoll instead
	deadline readDeadliner
}

// NewDevice is the factory method to create a new, unconnected Device
func NewDevice() *Device {
	return &Device{}
}

// Open creates a Device and connects it to link
func Open(link string, baud int) (*Device, error) {
	o := NewDevice()
	if err := o.Connect(link, baud); err != nil {
		return nil, err
	}
	return o, nil
}

// WithDevice opens link, hands the Device to fn and closes it afterwards,
// also when fn fails or panics.
func WithDevice(link string, baud int, fn func(*Device) error) (err error) {
	o, err := Open(link, baud)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := o.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(o)
}

// Connect attaches to the device via serial device or a tcp socket.
// Serial links are opened 8N1 at baud.
func (o *Device) Connect(link string, baud int) error {
	o.rlock.Lock()
	o.wlock.Lock()
	defer o.rlock.Unlock()
	defer o.wlock.Unlock()

	u, err := url.Parse(link)
	if err != nil {
		o.connected = false
		return err
	}
	if baud <= 0 {
		baud = DefaultBaud
	}

	switch u.Scheme {
	case "socket", "tcp":
		c, err := net.Dial("tcp", u.Host)
		if err != nil {
			return err
		}
		c.(*net.TCPConn).SetKeepAlive(true)
		c.(*net.TCPConn).SetKeepAlivePeriod(30 * time.Second)
		o.conn = c
		o.deadline = c
	case "file", "":
		name := u.Path
		if name == "" {
			name = link
		}
		p, err := serial.OpenPort(&serial.Config{
			Name:        name,
			Baud:        baud,
			Size:        8,
			Parity:      serial.ParityNone,
			StopBits:    serial.Stop1,
			ReadTimeout: serialPoll,
		})
		if err != nil {
			return err
		}
		o.conn = p
		o.deadline = nil
	default:
		o.connected = false
		return fmt.Errorf("%w in %q", ErrNoLink, link)
	}

	o.connected = true
	o.link = link
	o.r = bufio.NewReader(o.conn)
	log.Debugf("Connected to %v", link)
	return nil
}

// Link returns the connection string of the last successful Connect
func (o *Device) Link() string {
	return o.link
}

// Close closes Device, closing underlying connection via serial or network
func (o *Device) Close() error {
	o.rlock.Lock()
	o.wlock.Lock()
	defer o.rlock.Unlock()
	defer o.wlock.Unlock()

	if !o.connected {
		return io.ErrClosedPipe
	}
	o.connected = false
	log.Debugf("Closing %v", o.link)
	return o.conn.Close()
}

func (o *Device) Write(b []byte) (int, error) {
	o.wlock.Lock()
	defer o.wlock.Unlock()
	if !o.connected {
		return 0, io.EOF
	}
	n, err := o.conn.Write(b)
	log.Debugf("Write b='% x', n=%v, err=%v", b, n, err)
	return n, err
}

// ReadByteTimeout reads a single byte, waiting at most d.
// A serial port may overshoot d by up to serialPoll.
func (o *Device) ReadByteTimeout(d time.Duration) (byte, bool, error) {
	o.rlock.Lock()
	defer o.rlock.Unlock()
	if !o.connected {
		return 0, false, io.EOF
	}

	deadline := time.Now().Add(d)
	if o.deadline != nil {
		if err := o.deadline.SetReadDeadline(deadline); err != nil {
			return 0, false, err
		}
		b, err := o.r.ReadByte()
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return 0, false, nil
		}
		if err != nil {
			return 0, false, err
		}
		return b, true, nil
	}

	for {
		b, err := o.r.ReadByte()
		if err == nil {
			return b, true, nil
		}
		// an idle serial port reads zero bytes, which surfaces as EOF
		if err != io.EOF && err != io.ErrNoProgress {
			return 0, false, err
		}
		if !time.Now().Before(deadline) {
			return 0, false, nil
		}
	}
}
