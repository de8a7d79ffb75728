//go:build linux

package dmx

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"btdmx/internal/logger"
	"golang.org/x/sys/unix"
)

const (
	DefaultBaud = 250000

	pollTimeout = 100 * time.Millisecond
	readBufSize = 1024
)

// SerialSource reads DMX512 from a Linux UART (8N2, breaks marked in-band).
type SerialSource struct {
	log        *logger.Log
	device     string
	mu         sync.Mutex
	fd         int
	closed     bool
	oldTermios *unix.Termios
}

// OpenSerial opens and configures device for DMX reception at baud
// (0 = 250000). Non standard rates are set with termios2.
func OpenSerial(log logger.Logger, device string, baud int) (*SerialSource, error) {
	if device == "" {
		return nil, errors.New("dmx: device path required")
	}
	if baud == 0 {
		baud = DefaultBaud
	}

	fd, err := unix.Open(device, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("dmx: open %s: %w", device, err)
	}

	oldTermios, err := unix.IoctlGetTermios(fd, unix.TCGETS2)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("dmx: get termios: %w", err)
	}

	termios := *oldTermios

	// Raw input, but report breaks and framing errors as FF 00 x.
	termios.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.IGNPAR | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON | unix.IXOFF | unix.IXANY
	termios.Iflag |= unix.PARMRK | unix.INPCK

	termios.Oflag &^= unix.OPOST

	// 8N2
	termios.Cflag &^= unix.CSIZE | unix.PARENB | unix.PARODD | unix.CRTSCTS | unix.CBAUD
	termios.Cflag |= unix.CS8 | unix.CSTOPB | unix.CREAD | unix.CLOCAL | unix.BOTHER
	termios.Ispeed = uint32(baud)
	termios.Ospeed = uint32(baud)

	termios.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN

	termios.Cc[unix.VMIN] = 0
	termios.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS2, &termios); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("dmx: set termios: %w", err)
	}

	s := &SerialSource{
		log:        log.With(logger.Fields{"module": "dmx"}),
		device:     device,
		fd:         fd,
		oldTermios: oldTermios,
	}
	s.log.Infof("UART %s opened at %d baud", device, baud)
	return s, nil
}

// Run reads the UART and sends events until ctx is done or the device fails.
func (s *SerialSource) Run(ctx context.Context, events chan<- Event) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("dmx: port closed")
	}
	fd := s.fd
	s.mu.Unlock()

	var parser markParser
	emit := func(ev Event) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}
	buf := make([]byte, readBufSize)
	for ctx.Err() == nil {
		pfd := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		n, err := unix.Poll(pfd, int(pollTimeout.Milliseconds()))
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("dmx: poll: %w", err)
		}
		if n == 0 {
			continue
		}
		if pfd[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			return fmt.Errorf("dmx: %s: device gone", s.device)
		}
		n, err = unix.Read(fd, buf)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("dmx: read: %w", err)
		}
		parser.Feed(buf[:n], emit)
	}
	return ctx.Err()
}

// Close restores the original line settings and closes the device.
func (s *SerialSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.oldTermios != nil {
		_ = unix.IoctlSetTermios(s.fd, unix.TCSETS2, s.oldTermios)
	}
	return unix.Close(s.fd)
}
