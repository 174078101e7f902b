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
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	queuepkg "github.com/Workiva/go-datastructures/queue"
	"github.com/bytedance/sonic"
)

const (
	defaultQueueHint = 64
	pollInterval     = 50 * time.Millisecond
)

// LocalQueue is an in-process Queue.
type LocalQueue struct {
	q    *queuepkg.Queue
	done atomic.Bool
}

var _ Queue = (*LocalQueue)(nil)

// NewLocalQueue creates an empty LocalQueue.
func NewLocalQueue() *LocalQueue {
	return &LocalQueue{q: queuepkg.New(defaultQueueHint)}
}

// Put implements Queue.
func (l *LocalQueue) Put(env *Envelope) error {
	b, err := sonic.Marshal(env)
	if err != nil {
		return fmt.Errorf("transport: encode envelope: %w", err)
	}
	return l.putFrame(b)
}

func (l *LocalQueue) putFrame(b []byte) error {
	if err := l.q.Put(b); err != nil {
		if errors.Is(err, queuepkg.ErrDisposed) {
			return ErrClosed
		}
		return err
	}
	return nil
}

// Get implements Queue.
func (l *LocalQueue) Get(ctx context.Context) (*Envelope, error) {
	for {
		items, err := l.q.Poll(1, pollInterval)
		switch {
		case err == nil:
			var env Envelope
			if err := sonic.Unmarshal(items[0].([]byte), &env); err != nil {
				return nil, fmt.Errorf("transport: decode envelope: %w", err)
			}
			return &env, nil
		case errors.Is(err, queuepkg.ErrTimeout):
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if l.done.Load() && l.q.Empty() {
				return nil, ErrClosed
			}
		case errors.Is(err, queuepkg.ErrDisposed):
			return nil, ErrClosed
		default:
			return nil, err
		}
	}
}

// Len returns the number of queued envelopes.
func (l *LocalQueue) Len() int {
	return int(l.q.Len())
}

// closeWrite marks the end of input: Get drains what is queued, then
// returns ErrClosed.
func (l *LocalQueue) closeWrite() {
	l.done.Store(true)
}

// Close implements Queue. Queued envelopes are dropped.
func (l *LocalQueue) Close() error {
	l.q.Dispose()
	return nil
}
