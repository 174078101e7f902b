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

package shmarray_test

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srediag/sharedmem/pkg/codec"
	"github.com/srediag/sharedmem/pkg/ndarray"
	"github.com/srediag/sharedmem/pkg/shm"
	"github.com/srediag/sharedmem/pkg/shmarray"
	"github.com/srediag/sharedmem/pkg/transport"
)

// peer is everything one process owns: its attach table, its allocator and
// its codec.
type peer struct {
	alloc *shm.Allocator
	codec *codec.Codec
}

func newPeer(t *testing.T, provider shm.Provider) *peer {
	t.Helper()
	segments := shm.NewAttacher(provider, shm.AttacherOptions{})
	c, err := codec.New(codec.Options{Attacher: segments})
	require.NoError(t, err)
	return &peer{alloc: shm.NewAllocator(segments, shm.AllocatorOptions{}), codec: c}
}

func (p *peer) send(t *testing.T, q transport.Queue, topic string, v *ndarray.View) {
	t.Helper()
	require.NoError(t, q.Put(&transport.Envelope{Topic: topic, Array: p.codec.Encode(context.Background(), v)}))
}

func (p *peer) receive(t *testing.T, q transport.Queue) *ndarray.View {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	env, err := q.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, env.Array)
	require.Equal(t, codec.KindReference, env.Array.Kind())
	v, err := p.codec.Decode(ctx, env.Array)
	require.NoError(t, err)
	return v
}

// runPingPong plays the two-process exchange: the parent sends four zeros,
// the child answers with ten zeros from its own allocator, the parent
// writes 0..9 into them and the child sees the values without another
// message.
func runPingPong(t *testing.T, parentProvider, childProvider shm.Provider) {
	parent := newPeer(t, parentProvider)
	child := newPeer(t, childProvider)
	toChild := transport.NewLocalQueue()
	toParent := transport.NewLocalQueue()
	defer toChild.Close()
	defer toParent.Close()

	written := make(chan struct{})
	observed := make(chan []float64, 2)
	go func() {
		defer close(observed)
		got := child.receive(t, toChild)
		observed <- got.Values()

		reply, err := shmarray.Zeros(child.alloc, []int{10}, ndarray.Float64, ndarray.RowMajor)
		if !assert.NoError(t, err) {
			return
		}
		child.send(t, toParent, "reply", reply)

		<-written
		observed <- reply.Values()
	}()

	four, err := shmarray.Zeros(parent.alloc, []int{4}, ndarray.Float64, ndarray.RowMajor)
	require.NoError(t, err)
	parent.send(t, toChild, "ping", four)
	assert.Equal(t, []float64{0, 0, 0, 0}, <-observed)

	ten := parent.receive(t, toParent)
	require.Equal(t, []float64{0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, ten.Values())
	for i := 0; i < ten.Len(); i++ {
		ten.Set(float64(i), i)
	}
	close(written)

	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, <-observed)
}

func TestPingPongHeap(t *testing.T) {
	provider := shm.NewHeapProvider()
	runPingPong(t, provider, provider)
}

func TestPingPongDevShm(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("named shared memory segments need linux")
	}
	dir := t.TempDir()
	parent := shm.NewDevShmProvider(shm.ProviderOptions{Dir: dir})
	child := shm.NewDevShmProvider(shm.ProviderOptions{Dir: dir})
	defer parent.Close()
	defer child.Close()
	runPingPong(t, parent, child)
}
