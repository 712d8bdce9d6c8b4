package serialmux

import (
	"errors"
	"io"
	"sync"
)

// ErrPortClosed is returned by PipePort after Close.
var ErrPortClosed = errors.New("serial port closed")

// PipePort implements SerialPorter over an in-memory pipe. Bytes passed to
// Feed are returned by Read; writes are discarded.
type PipePort struct {
	r *io.PipeReader
	w *io.PipeWriter

	mu     sync.Mutex
	closed bool
}

// NewPipePort creates a PipePort.
func NewPipePort() *PipePort {
	r, w := io.Pipe()
	return &PipePort{r: r, w: w}
}

// Feed delivers data to the reading side. It blocks until read.
func (p *PipePort) Feed(data []byte) error {
	_, err := p.w.Write(data)
	return err
}

// EndOfStream makes subsequent reads return io.EOF once drained.
func (p *PipePort) EndOfStream() error {
	return p.w.Close()
}

func (p *PipePort) Read(b []byte) (int, error) {
	return p.r.Read(b)
}

func (p *PipePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrPortClosed
	}
	return len(b), nil
}

// Close unblocks any pending Read with ErrPortClosed.
func (p *PipePort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.w.CloseWithError(ErrPortClosed)
	return p.r.Close()
}
