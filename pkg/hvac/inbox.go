// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 HWHardsoft

package hvac

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"
)

// maxInboxSize bounds the bytes held between controller iterations.
const maxInboxSize = 4096

// Inbox buffers bytes arriving from the display link so the scheduler can
// consume them without blocking. Writes come from a reader goroutine, reads
// from the control loop.
type Inbox struct {
	mu      sync.Mutex
	buf     []byte
	dropped uint64
}

// NewInbox creates an empty inbox
func NewInbox() *Inbox {
	return &Inbox{}
}

// Write appends received bytes. Bytes beyond the inbox capacity are dropped.
func (in *Inbox) Write(p []byte) (int, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	room := maxInboxSize - len(in.buf)
	n := len(p)
	if n > room {
		in.dropped += uint64(n - room)
		n = room
	}
	in.buf = append(in.buf, p[:n]...)
	return len(p), nil
}

// TryReadByte implements ByteSource.
func (in *Inbox) TryReadByte() (byte, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if len(in.buf) == 0 {
		return 0, false
	}
	b := in.buf[0]
	in.buf = in.buf[1:]
	if len(in.buf) == 0 {
		in.buf = nil
	}
	return b, true
}

// Len returns the number of buffered bytes.
func (in *Inbox) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.buf)
}

// Dropped returns the number of bytes lost to a full inbox.
func (in *Inbox) Dropped() uint64 {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.dropped
}

// Pump copies r into the inbox until ctx is cancelled or r is closed.
// Other read errors are treated as transient and retried after a short pause.
func (in *Inbox) Pump(ctx context.Context, r io.Reader) error {
	buf := make([]byte, 128)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := r.Read(buf)
		if n > 0 {
			in.Write(buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(10 * time.Millisecond):
			}
		}
	}
}
