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

package shm

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
	"go.uber.org/zap"

	internalshm "github.com/srediag/sharedmem/internal/shm"
)

const (
	// DefaultDir is where segments are created on Linux.
	DefaultDir = "/dev/shm"
	// DefaultPrefix prefixes every segment name.
	DefaultPrefix = "sharedmem"
)

// ProviderOptions configures a DevShmProvider.
type ProviderOptions struct {
	// Dir is the directory holding segment files. Every process sharing
	// segments must use the same Dir.
	Dir    string
	Prefix string
	// CheckFreeSpace refuses to create segments larger than the free space of Dir.
	CheckFreeSpace bool
	Logger         *zap.Logger
}

// DevShmProvider is a Provider backed by named files in a tmpfs directory.
//
// Names are unique per create. The provider remembers the names it created
// so Close can unlink them; mappings stay valid after unlink.
type DevShmProvider struct {
	dir            string
	prefix         string
	checkFreeSpace bool
	logger         *zap.Logger
	created        cmap.ConcurrentMap[string, int]
}

// NewDevShmProvider creates a DevShmProvider.
func NewDevShmProvider(opts ProviderOptions) *DevShmProvider {
	if opts.Dir == "" {
		opts.Dir = DefaultDir
	}
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &DevShmProvider{
		dir:            opts.Dir,
		prefix:         opts.Prefix,
		checkFreeSpace: opts.CheckFreeSpace,
		logger:         opts.Logger,
		created:        cmap.New[int](),
	}
}

// Dir returns the segment directory.
func (p *DevShmProvider) Dir() string { return p.dir }

// Create implements Provider.
func (p *DevShmProvider) Create(size int) (Descriptor, []byte, error) {
	name := fmt.Sprintf("%s-%d-%s", p.prefix, os.Getpid(), uuid.NewString())
	region, err := internalshm.MapRegion(internalshm.MapOptions{
		Dir:            p.dir,
		Name:           name,
		Size:           size,
		Create:         true,
		CheckFreeSpace: p.checkFreeSpace,
	})
	if err != nil {
		return Descriptor{}, nil, err
	}
	p.created.Set(name, size)
	p.logger.Debug("segment created", zap.String("name", name), zap.Int("size", size))
	return Descriptor{Name: name, Size: size}, region.Addr, nil
}

// Attach implements Provider.
func (p *DevShmProvider) Attach(desc Descriptor) ([]byte, error) {
	if err := validateName(desc.Name); err != nil {
		return nil, err
	}
	region, err := internalshm.MapRegion(internalshm.MapOptions{Dir: p.dir, Name: desc.Name})
	if err != nil {
		return nil, err
	}
	if region.Size < desc.Size {
		_ = internalshm.UnmapRegion(region)
		return nil, fmt.Errorf("segment %s has %d bytes, descriptor claims %d", desc.Name, region.Size, desc.Size)
	}
	p.logger.Debug("segment attached", zap.String("name", desc.Name), zap.Int("size", region.Size))
	return region.Addr, nil
}

// Unmap implements Unmapper. mem must be a slice returned by Create or Attach.
func (p *DevShmProvider) Unmap(mem []byte) error {
	return internalshm.UnmapRegion(&internalshm.MappedRegion{Addr: mem})
}

// SizeOf implements Provider.
func (p *DevShmProvider) SizeOf(desc Descriptor) (int, error) {
	if err := validateName(desc.Name); err != nil {
		return 0, err
	}
	return internalshm.StatRegion(p.dir, desc.Name)
}

// Unlink removes the name of a segment. Processes that already mapped it
// keep their mapping; later attaches fail.
func (p *DevShmProvider) Unlink(desc Descriptor) error {
	if err := validateName(desc.Name); err != nil {
		return err
	}
	p.created.Remove(desc.Name)
	return internalshm.RemoveRegion(p.dir, desc.Name)
}

// Close unlinks every segment this provider created.
func (p *DevShmProvider) Close() error {
	var errs []error
	for _, name := range p.created.Keys() {
		if err := internalshm.RemoveRegion(p.dir, name); err != nil {
			errs = append(errs, err)
			continue
		}
		p.created.Remove(name)
	}
	if n := len(errs); n > 0 {
		p.logger.Warn("failed to unlink segments", zap.Int("count", n))
	}
	return errors.Join(errs...)
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsRune(name, '/') {
		return fmt.Errorf("%w: name %q", errInvalidDescriptor, name)
	}
	return nil
}
