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
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srediag/sharedmem/pkg/codec"
	"github.com/srediag/sharedmem/pkg/ndarray"
	"github.com/srediag/sharedmem/pkg/shm"
)

func testEnvelope(topic string) *Envelope {
	return &Envelope{
		Topic: topic,
		Array: &codec.Payload{Ref: &codec.Reference{
			Handle: shm.HandleRef{Segment: shm.Descriptor{Name: "seg", Size: 4096}, Offset: 64, Size: 80},
			Shape:  []int{10},
			DType:  ndarray.Float64,
			Order:  ndarray.RowMajor,
		}},
	}
}

func TestLocalQueueFIFO(t *testing.T) {
	q := NewLocalQueue()
	defer q.Close()

	for _, topic := range []string{"a", "b", "c"} {
		require.NoError(t, q.Put(testEnvelope(topic)))
	}
	assert.Equal(t, 3, q.Len())

	ctx := context.Background()
	for _, topic := range []string{"a", "b", "c"} {
		env, err := q.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, topic, env.Topic)
		assert.Equal(t, testEnvelope(topic), env)
	}
}

func TestLocalQueueCopiesEnvelope(t *testing.T) {
	q := NewLocalQueue()
	defer q.Close()

	env := testEnvelope("x")
	require.NoError(t, q.Put(env))
	env.Array.Ref.Shape[0] = 99

	got, err := q.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{10}, got.Array.Ref.Shape)
}

func TestLocalQueueGetBlocks(t *testing.T) {
	q := NewLocalQueue()
	defer q.Close()

	done := make(chan *Envelope)
	go func() {
		env, err := q.Get(context.Background())
		assert.NoError(t, err)
		done <- env
	}()

	select {
	case <-done:
		t.Fatal("Get returned before Put")
	case <-time.After(100 * time.Millisecond):
	}
	require.NoError(t, q.Put(testEnvelope("late")))
	assert.Equal(t, "late", (<-done).Topic)
}

func TestLocalQueueContext(t *testing.T) {
	q := NewLocalQueue()
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := q.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLocalQueueClose(t *testing.T) {
	q := NewLocalQueue()
	require.NoError(t, q.Close())
	assert.ErrorIs(t, q.Put(testEnvelope("x")), ErrClosed)
	_, err := q.Get(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStreamQueuePipe(t *testing.T) {
	r, w := io.Pipe()
	sender := NewStreamQueue(nil, w, nil)
	receiver := NewStreamQueue(r, nil, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for _, topic := range []string{"one", "two"} {
			assert.NoError(t, sender.Put(testEnvelope(topic)))
		}
		assert.NoError(t, sender.Close())
	}()

	ctx := context.Background()
	for _, topic := range []string{"one", "two"} {
		env, err := receiver.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, testEnvelope(topic), env)
	}
	_, err := receiver.Get(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	wg.Wait()
}

func TestStreamQueueFraming(t *testing.T) {
	var sb strings.Builder
	q := NewStreamQueue(nil, &sb, nil)
	require.NoError(t, q.Put(&Envelope{Topic: "a"}))
	require.NoError(t, q.Put(&Envelope{Topic: "b"}))

	sc := bufio.NewScanner(strings.NewReader(sb.String()))
	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"topic":"a"}`, lines[0])
	assert.JSONEq(t, `{"topic":"b"}`, lines[1])
	assert.Equal(t, 2, strings.Count(sb.String(), "\n"), "one terminator per frame")

	_, err := q.Get(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStreamQueueDrainsAfterEOF(t *testing.T) {
	q := NewStreamQueue(strings.NewReader("{\"topic\":\"last\"}\n"), nil, nil)
	env, err := q.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "last", env.Topic)

	_, err = q.Get(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.Error(t, q.Put(&Envelope{}))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestStreamQueueReadError(t *testing.T) {
	q := NewStreamQueue(failingReader{}, nil, nil)
	_, err := q.Get(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorContains(t, err, "broken pipe")
}

func TestStreamQueueMalformedFrame(t *testing.T) {
	q := NewStreamQueue(strings.NewReader("not json\n"), nil, nil)
	_, err := q.Get(context.Background())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrClosed)
}
