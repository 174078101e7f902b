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

import "fmt"

// CorruptReferenceError is returned by Decode when a reference describes
// memory outside its allocation or outside the attached segment.
type CorruptReferenceError struct {
	Ref    *Reference
	Reason string
	Err    error
}

func (e *CorruptReferenceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("codec: corrupt reference to %s: %s: %v", e.Ref.Handle.Segment, e.Reason, e.Err)
	}
	return fmt.Sprintf("codec: corrupt reference to %s: %s", e.Ref.Handle.Segment, e.Reason)
}

func (e *CorruptReferenceError) Unwrap() error { return e.Err }
