/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/valyala/bytebufferpool"
	"go.uber.org/zap"
)

// StreamQueue carries envelopes as newline-delimited JSON over a byte
// stream, such as the stdin and stdout pipes of a child process.
//
// Incoming frames are read by a background goroutine into a LocalQueue.
// Either side may be nil for a one-way queue.
type StreamQueue struct {
	wmu sync.Mutex
	w   io.Writer

	in     *LocalQueue
	r      io.Reader
	logger *zap.Logger

	errMu   sync.Mutex
	readErr error

	closeOnce sync.Once
}

var _ Queue = (*StreamQueue)(nil)

// NewStreamQueue creates a StreamQueue reading from r and writing to w.
func NewStreamQueue(r io.Reader, w io.Writer, logger *zap.Logger) *StreamQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &StreamQueue{w: w, r: r, in: NewLocalQueue(), logger: logger}
	if r != nil {
		go s.readLoop()
	} else {
		s.in.closeWrite()
	}
	return s
}

func (s *StreamQueue) readLoop() {
	br := bufio.NewReader(s.r)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 1 {
			frame := line
			if frame[len(frame)-1] == '\n' {
				frame = frame[:len(frame)-1]
			}
			if perr := s.in.putFrame(frame); perr != nil {
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Warn("stream queue read failed", zap.Error(err))
				s.errMu.Lock()
				s.readErr = err
				s.errMu.Unlock()
			}
			s.in.closeWrite()
			return
		}
	}
}

// Put implements Queue. Each envelope is written with a single Write.
func (s *StreamQueue) Put(env *Envelope) error {
	if s.w == nil {
		return fmt.Errorf("transport: put on read-only stream queue")
	}
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := sonic.ConfigDefault.NewEncoder(buf).Encode(env); err != nil {
		return fmt.Errorf("transport: encode envelope: %w", err)
	}
	// Frames are newline-delimited whether or not the encoder terminates them.
	if n := buf.Len(); n == 0 || buf.B[n-1] != '\n' {
		if err := buf.WriteByte('\n'); err != nil {
			return fmt.Errorf("transport: encode envelope: %w", err)
		}
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()
	if _, err := s.w.Write(buf.B); err != nil {
		if errors.Is(err, io.ErrClosedPipe) || errors.Is(err, io.EOF) {
			return ErrClosed
		}
		return fmt.Errorf("transport: write envelope: %w", err)
	}
	return nil
}

// Get implements Queue. After the stream ends, queued envelopes are still
// returned before ErrClosed.
func (s *StreamQueue) Get(ctx context.Context) (*Envelope, error) {
	env, err := s.in.Get(ctx)
	if errors.Is(err, ErrClosed) {
		s.errMu.Lock()
		defer s.errMu.Unlock()
		if s.readErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrClosed, s.readErr)
		}
	}
	return env, err
}

// Close implements Queue. It closes the writer if it is an io.Closer.
func (s *StreamQueue) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if c, ok := s.w.(io.Closer); ok {
			err = c.Close()
		}
		s.in.Close()
	})
	return err
}
