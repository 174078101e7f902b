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

// Package transport moves encoded arrays between processes.
//
// Queues carry Envelopes by value: every Put serializes the envelope, so a
// receiver never shares Go memory with the sender even inside one process.
// Array contents travel by reference when the codec produced one.
package transport

import (
	"context"
	"errors"

	"github.com/srediag/sharedmem/pkg/codec"
)

// ErrClosed is returned by queue operations after Close.
var ErrClosed = errors.New("transport: queue closed")

// Envelope is one message.
type Envelope struct {
	Topic string         `json:"topic"`
	Array *codec.Payload `json:"array,omitempty"`
}

// Queue is a FIFO of envelopes. Put never blocks; Get blocks until an
// envelope is available, the queue is closed or ctx is done.
type Queue interface {
	Put(env *Envelope) error
	Get(ctx context.Context) (*Envelope, error)
	Close() error
}
