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

package codec

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/srediag/sharedmem/pkg/ndarray"
	"github.com/srediag/sharedmem/pkg/shm"
)

const instrumentationName = "github.com/srediag/sharedmem/pkg/codec"

// Options configures a Codec.
type Options struct {
	// Attacher maps the segments named by decoded references. Required for
	// decoding references.
	Attacher *shm.Attacher
	Logger   *zap.Logger
	Meter    metric.Meter
	Tracer   trace.Tracer
}

// Codec encodes views to payloads and back.
type Codec struct {
	attacher *shm.Attacher
	logger   *zap.Logger
	tracer   trace.Tracer
	encoded  metric.Int64Counter
	decoded  metric.Int64Counter
}

// New creates a Codec.
func New(opts Options) (*Codec, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Meter == nil {
		opts.Meter = metricnoop.NewMeterProvider().Meter(instrumentationName)
	}
	if opts.Tracer == nil {
		opts.Tracer = tracenoop.NewTracerProvider().Tracer(instrumentationName)
	}
	encoded, err := opts.Meter.Int64Counter("sharedmem.codec.encoded",
		metric.WithDescription("Views encoded, by payload kind."))
	if err != nil {
		return nil, fmt.Errorf("codec: create encoded counter: %w", err)
	}
	decoded, err := opts.Meter.Int64Counter("sharedmem.codec.decoded",
		metric.WithDescription("Payloads decoded, by payload kind."))
	if err != nil {
		return nil, fmt.Errorf("codec: create decoded counter: %w", err)
	}
	return &Codec{
		attacher: opts.Attacher,
		logger:   opts.Logger,
		tracer:   opts.Tracer,
		encoded:  encoded,
		decoded:  decoded,
	}, nil
}

// Encode describes v. Views rooted in a *shm.Handle become references;
// anything else is copied.
func (c *Codec) Encode(ctx context.Context, v *ndarray.View) *Payload {
	ctx, span := c.tracer.Start(ctx, "codec.Encode")
	defer span.End()

	var p *Payload
	if h, ok := v.Root().Owner().(*shm.Handle); ok {
		p = &Payload{Ref: encodeReference(v, h)}
	} else {
		c.logger.Debug("view is not in shared memory, encoding a copy",
			zap.Stringer("dtype", v.DType()), zap.Ints("shape", v.Shape()))
		p = &Payload{Copy: &Copy{Shape: v.Shape(), DType: v.DType(), Data: v.Bytes()}}
	}
	kind := attribute.String("kind", string(p.Kind()))
	span.SetAttributes(kind)
	c.encoded.Add(ctx, 1, metric.WithAttributes(kind))
	return p
}

func encodeReference(v *ndarray.View, h *shm.Handle) *Reference {
	ref := &Reference{
		Handle: h.Ref(),
		Shape:  v.Shape(),
		DType:  v.DType(),
		Order:  v.Layout(),
		Offset: int(v.DataAddress() - h.Address()),
	}
	if ref.Order != ndarray.RowMajor {
		ref.Strides = v.Strides()
	}
	return ref
}

// Decode rebuilds a view from p. A reference is checked against its
// allocation before any segment is attached.
func (c *Codec) Decode(ctx context.Context, p *Payload) (*ndarray.View, error) {
	ctx, span := c.tracer.Start(ctx, "codec.Decode")
	defer span.End()

	var (
		v   *ndarray.View
		err error
	)
	switch {
	case p == nil || (p.Ref == nil) == (p.Copy == nil):
		err = errors.New("codec: payload must carry exactly one of ref and copy")
	case p.Ref != nil:
		v, err = c.decodeReference(p.Ref)
	default:
		v, err = decodeCopy(p.Copy)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	kind := attribute.String("kind", string(p.Kind()))
	span.SetAttributes(kind)
	c.decoded.Add(ctx, 1, metric.WithAttributes(kind))
	return v, nil
}

func (c *Codec) decodeReference(ref *Reference) (*ndarray.View, error) {
	corrupt := func(reason string, err error) error {
		c.logger.Warn("corrupt reference",
			zap.Stringer("segment", ref.Handle.Segment), zap.String("reason", reason), zap.Error(err))
		return &CorruptReferenceError{Ref: ref, Reason: reason, Err: err}
	}

	if !ref.DType.Valid() {
		return nil, corrupt("invalid dtype", nil)
	}
	if err := ref.Handle.Validate(); err != nil {
		return nil, corrupt("allocation exceeds segment", err)
	}
	strides, err := ref.strides()
	if err != nil {
		return nil, corrupt("invalid strides", err)
	}
	if _, err := ndarray.ByteSize(ref.Shape, ref.DType.Size()); err != nil {
		return nil, corrupt("invalid shape", err)
	}
	if !ndarray.InBounds(ref.Shape, strides, ref.DType.Size(), ref.Offset, ref.Handle.Size) {
		return nil, corrupt("view exceeds allocation", nil)
	}
	if c.attacher == nil {
		return nil, errors.New("codec: no attacher configured for references")
	}

	seg, err := c.attacher.Attach(ref.Handle.Segment)
	if err != nil {
		return nil, err
	}
	h, err := shm.NewHandle(seg, ref.Handle.Offset, ref.Handle.Size)
	if err != nil {
		return nil, corrupt("allocation exceeds segment", err)
	}
	v, err := ndarray.NewStrided(h, ref.DType, ref.Shape, strides, ref.Offset)
	if err != nil {
		return nil, corrupt("invalid layout", err)
	}
	return v, nil
}

func decodeCopy(cp *Copy) (*ndarray.View, error) {
	n, err := ndarray.ByteSize(cp.Shape, cp.DType.Size())
	if err != nil {
		return nil, fmt.Errorf("codec: decode copy: %w", err)
	}
	if n != len(cp.Data) {
		return nil, fmt.Errorf("codec: decode copy: %w: %d bytes for shape %v of %s",
			ndarray.ErrShape, len(cp.Data), cp.Shape, cp.DType)
	}
	v, err := ndarray.Make(cp.DType, cp.Shape, ndarray.RowMajor)
	if err != nil {
		return nil, fmt.Errorf("codec: decode copy: %w", err)
	}
	if err := v.SetBytes(cp.Data); err != nil {
		return nil, fmt.Errorf("codec: decode copy: %w", err)
	}
	return v, nil
}
