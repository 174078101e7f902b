//go:build !linux

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

// MapRegion is not implemented on this platform.
func MapRegion(opts MapOptions) (*MappedRegion, error) {
	return nil, ErrUnsupported
}

// UnmapRegion is not implemented on this platform.
func UnmapRegion(region *MappedRegion) error {
	return ErrUnsupported
}

// RemoveRegion is not implemented on this platform.
func RemoveRegion(dir, name string) error {
	return ErrUnsupported
}

// StatRegion is not implemented on this platform.
func StatRegion(dir, name string) (int, error) {
	return 0, ErrUnsupported
}

// CanCreate always reports true; there is nothing to check.
func CanCreate(dir string, size uint64) bool {
	return true
}
