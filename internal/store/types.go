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

import "time"

// Image is the in-memory view of a pictures row. Fields the store
// exclusively owns the truth of (Deleted, Merged, Hash) are still exported,
// since callers only ever obtain an *Image through the store's single-load
// table or a query result, never by constructing one directly.
type Image struct {
	ID            int64
	ResourcePath  string
	DisplayName   string
	Extension     string
	Width         int
	Height        int
	FileHash      string
	ImportedFrom  string
	IsPrivate     bool
	AddedAt       time.Time
	LastViewedAt  time.Time
	Deleted       bool
	Merged        bool
}

// Collection is an ordered bag of images.
type Collection struct {
	ID             int64
	Name           string
	IsPrivate      bool
	AddedAt        time.Time
	ModifiedAt     time.Time
	LastViewedAt   time.Time
	PreviewImageID *int64
	Deleted        bool
}

// Folder groups collections and sub-folders.
type Folder struct {
	ID        int64
	Name      string
	IsPrivate bool
	Deleted   bool
}

// Tag is a vocabulary entry. Name is compared lower-cased.
type Tag struct {
	ID          int64
	Name        string
	Description string
	Category    int
	IsPrivate   bool
	Deleted     bool
}

// TagModifier is an adverb-like prefix, e.g. "red".
type TagModifier struct {
	ID      int64
	Name    string
	Deleted bool
}

// AppliedTag is a concrete tag instance: a main tag, an ordered modifier
// list, and an optional combine partner forming "hair on face"-style
// structures.
type AppliedTag struct {
	ID          int64
	TagID       int64
	Modifiers   []int64 // TagModifier ids, in order
	CombineWord string
	CombinedID  *int64 // right-side AppliedTag id, if any
}

// NetGallery is a pending download batch.
type NetGallery struct {
	ID               int64
	TargetCollection string
	TargetPath       string
	TagString        string
	IsDownloaded     bool
	Deleted          bool
}

// NetFile is one entry of a NetGallery.
type NetFile struct {
	ID                int64
	GalleryID         int64
	FileURL           string
	ReferrerURL       string
	PreferredFilename string
	TagString         string
}
