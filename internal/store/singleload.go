// Copyright 2026 The Dualview Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//       http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"sync"
	"weak"
)

// registry is a weak-reference map keyed on (entity kind, id) that
// guarantees a second load of an already-live object returns that same
// object, without the registry itself keeping the object alive. No
// third-party library provides weak references, so this is justified
// stdlib (see DESIGN.md).
type registry struct {
	mu    sync.Mutex
	slots map[slotKey]func() any
}

type slotKey struct {
	kind string
	id   int64
}

func newRegistry() *registry {
	return &registry{slots: make(map[slotKey]func() any)}
}

// loadOrStore returns the live object registered for (kind, id), if any;
// otherwise it calls construct, registers the result weakly, and returns it.
// The registry only ever observes obj through a weak.Pointer, so obj is
// reclaimed as soon as nothing else (i.e. the caller that received it)
// keeps it alive.
func loadOrStore[T any](r *registry, kind string, id int64, construct func() *T) *T {
	key := slotKey{kind: kind, id: id}

	r.mu.Lock()
	defer r.mu.Unlock()

	if peek, ok := r.slots[key]; ok {
		if v := peek(); v != nil {
			if t, ok := v.(*T); ok && t != nil {
				return t
			}
		}
		delete(r.slots, key)
	}

	obj := construct()
	wp := weak.Make(obj)
	r.slots[key] = func() any {
		p := wp.Value()
		if p == nil {
			return nil
		}
		return any(p)
	}
	return obj
}

// forget removes any registration for (kind, id), regardless of liveness.
// Used when an entity is permanently deleted so a stale slot cannot
// resurrect a half-torn-down object.
func (r *registry) forget(kind string, id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.slots, slotKey{kind: kind, id: id})
}
