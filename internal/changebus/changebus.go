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

// Package changebus implements a semantic event bus: a table of
// event-kind to weakly-held observers, dispatched synchronously on the
// firing goroutine. It reuses the single-method Sink
// contract from github.com/docker/go-events (moby-moby's own internal
// event-bus dependency) as the observer interface, but does not route
// through that package's Broadcaster: Broadcaster fans events out
// asynchronously through per-sink goroutines, which would violate the
// "dispatch is synchronous on the caller's thread" invariant this bus must
// provide, so Fire walks the observer table directly instead.
package changebus

import (
	"sync"
	"unsafe"

	"weak"

	"github.com/docker/go-events"
	"k8s.io/klog/v2"
)

// Event is re-exported so callers constructing payloads do not need to
// import github.com/docker/go-events directly.
type Event = events.Event

// Observer is anything that can receive a bus notification. It is the exact
// shape of events.Sink: Write delivers the event, Close is called if the bus
// ever needs to tear an observer down explicitly (the bus itself never calls
// it; it exists so Observer implementations compose with go-events sinks).
type Observer = events.Sink

// ChangeKind enumerates the semantic events the resource store and journal
// fire. New values are appended at the end, never inserted, since its
// integer value is persisted.
type ChangeKind int

const (
	CollectionCreated ChangeKind = iota
	CollectionRenamed
	CollectionDeleted
	FolderCreated
	FolderRenamed
	FolderDeleted
	ImageImported
	ImageDeleted
	TagCreated
	NetGalleryCreated
	DownloadGalleryCreated
	ActionRecorded
	ActionUndone
	ActionRedone
	ActionPurged
)

func (k ChangeKind) String() string {
	switch k {
	case CollectionCreated:
		return "COLLECTION_CREATED"
	case CollectionRenamed:
		return "COLLECTION_RENAMED"
	case CollectionDeleted:
		return "COLLECTION_DELETED"
	case FolderCreated:
		return "FOLDER_CREATED"
	case FolderRenamed:
		return "FOLDER_RENAMED"
	case FolderDeleted:
		return "FOLDER_DELETED"
	case ImageImported:
		return "IMAGE_IMPORTED"
	case ImageDeleted:
		return "IMAGE_DELETED"
	case TagCreated:
		return "TAG_CREATED"
	case NetGalleryCreated:
		return "NET_GALLERY_CREATED"
	case DownloadGalleryCreated:
		return "DOWNLOAD_GALLERY_CREATED"
	case ActionRecorded:
		return "ACTION_RECORDED"
	case ActionUndone:
		return "ACTION_UNDONE"
	case ActionRedone:
		return "ACTION_REDONE"
	case ActionPurged:
		return "ACTION_PURGED"
	default:
		return "UNKNOWN"
	}
}

// PtrObserver constrains T so that *T both names a concrete type we can take
// a weak pointer of, and implements Observer. This is the standard pattern
// for expressing "pointer-to-T satisfies interface I" in Go generics.
type PtrObserver[T any] interface {
	*T
	Observer
}

type subscription struct {
	id   uintptr
	peek func() (Observer, bool)
}

// Bus is a table of ChangeKind to weakly-held observers. Registering the
// same observer twice for the same kind is a no-op. Fire iterates live
// observers and invokes Write on the caller's goroutine; firing the bus
// again, recursively, from inside a Write call is undefined and may
// deadlock.
type Bus struct {
	mu        sync.Mutex
	observers map[ChangeKind][]subscription
}

// New returns an empty change bus.
func New() *Bus {
	return &Bus{observers: make(map[ChangeKind][]subscription)}
}

// Subscribe registers obs to receive notifications for kind. obs is held
// weakly: once nothing else in the process keeps it alive, it is
// transparently dropped from the table the next time Fire or Unsubscribe
// walks it. Registering the same (kind, obs) pair more than once is a no-op.
func Subscribe[T any, PT PtrObserver[T]](b *Bus, kind ChangeKind, obs PT) {
	id := uintptr(unsafe.Pointer(obs))
	wp := weak.Make(obs)
	peek := func() (Observer, bool) {
		p := wp.Value()
		if p == nil {
			return nil, false
		}
		return PT(p), true
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.observers[kind] {
		if s.id == id {
			return
		}
	}
	b.observers[kind] = append(b.observers[kind], subscription{id: id, peek: peek})
}

// Unsubscribe removes obs's registration for kind, if present.
func Unsubscribe[T any, PT PtrObserver[T]](b *Bus, kind ChangeKind, obs PT) {
	id := uintptr(unsafe.Pointer(obs))

	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.observers[kind]
	for i, s := range subs {
		if s.id == id {
			b.observers[kind] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Fire dispatches event to every live observer registered for kind,
// synchronously, on the calling goroutine. Dead (garbage collected)
// observers are pruned as they are encountered.
func (b *Bus) Fire(kind ChangeKind, event Event) {
	b.mu.Lock()
	subs := b.observers[kind]
	live := make([]subscription, 0, len(subs))
	var toNotify []Observer
	for _, s := range subs {
		o, ok := s.peek()
		if !ok {
			continue
		}
		live = append(live, s)
		toNotify = append(toNotify, o)
	}
	b.observers[kind] = live
	b.mu.Unlock()

	for _, o := range toNotify {
		if err := o.Write(event); err != nil {
			klog.Errorf("change bus observer for %s returned error: %s", kind, err)
		}
	}
}
