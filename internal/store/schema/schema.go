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

// Package schema carries the DDL for the primary and auxiliary SQLite
// databases, plus the sequential migration list the store applies on open.
package schema

// CurrentVersion is the schema version this binary expects. store.Open
// creates a fresh database at this version, or migrates a lower one up to
// it; a database stamped with a higher version refuses to open.
const CurrentVersion = 1

// Primary is the full DDL for a freshly created database at CurrentVersion.
const Primary = `
CREATE TABLE IF NOT EXISTS version (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	schema_version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS pictures (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	resource_path TEXT NOT NULL,
	display_name TEXT NOT NULL,
	extension TEXT NOT NULL,
	width INTEGER NOT NULL DEFAULT 0,
	height INTEGER NOT NULL DEFAULT 0,
	file_hash TEXT NOT NULL DEFAULT '',
	imported_from TEXT NOT NULL DEFAULT '',
	is_private INTEGER NOT NULL DEFAULT 0,
	added_at INTEGER NOT NULL,
	last_viewed_at INTEGER NOT NULL DEFAULT 0,
	deleted INTEGER NOT NULL DEFAULT 0,
	merged INTEGER NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_pictures_hash
	ON pictures(file_hash) WHERE deleted = 0 AND file_hash != '';

CREATE TABLE IF NOT EXISTS collections (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	is_private INTEGER NOT NULL DEFAULT 0,
	added_at INTEGER NOT NULL,
	modified_at INTEGER NOT NULL,
	last_viewed_at INTEGER NOT NULL DEFAULT 0,
	preview_image_id INTEGER,
	deleted INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS collection_image (
	collection_id INTEGER NOT NULL REFERENCES collections(id),
	image_id INTEGER NOT NULL REFERENCES pictures(id),
	show_order INTEGER NOT NULL,
	PRIMARY KEY (collection_id, image_id)
);

CREATE TABLE IF NOT EXISTS virtual_folders (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	is_private INTEGER NOT NULL DEFAULT 0,
	deleted INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS folder_collection (
	folder_id INTEGER NOT NULL REFERENCES virtual_folders(id),
	collection_id INTEGER NOT NULL REFERENCES collections(id),
	PRIMARY KEY (folder_id, collection_id)
);

CREATE TABLE IF NOT EXISTS folder_folder (
	parent_id INTEGER NOT NULL REFERENCES virtual_folders(id),
	child_id INTEGER NOT NULL REFERENCES virtual_folders(id),
	PRIMARY KEY (parent_id, child_id)
);

CREATE TABLE IF NOT EXISTS tags (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	category INTEGER NOT NULL DEFAULT 0,
	is_private INTEGER NOT NULL DEFAULT 0,
	deleted INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS tag_modifiers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	deleted INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS tag_aliases (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	alias TEXT NOT NULL UNIQUE,
	tag_id INTEGER NOT NULL REFERENCES tags(id)
);

CREATE TABLE IF NOT EXISTS tag_super_aliases (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	alias TEXT NOT NULL UNIQUE,
	expansion TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS tag_implies (
	tag_id INTEGER NOT NULL REFERENCES tags(id),
	implied_tag_id INTEGER NOT NULL REFERENCES tags(id),
	PRIMARY KEY (tag_id, implied_tag_id)
);

CREATE TABLE IF NOT EXISTS common_composite_tags (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	pattern TEXT NOT NULL,
	tag_id INTEGER NOT NULL REFERENCES tags(id),
	modifier_names TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS applied_tag (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	tag_id INTEGER NOT NULL REFERENCES tags(id),
	combine_word TEXT NOT NULL DEFAULT '',
	combined_with_id INTEGER REFERENCES applied_tag(id)
);

CREATE TABLE IF NOT EXISTS applied_tag_modifier (
	applied_tag_id INTEGER NOT NULL REFERENCES applied_tag(id),
	modifier_id INTEGER NOT NULL REFERENCES tag_modifiers(id),
	position INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (applied_tag_id, modifier_id)
);

CREATE TABLE IF NOT EXISTS applied_tag_combine (
	left_id INTEGER NOT NULL REFERENCES applied_tag(id),
	right_id INTEGER NOT NULL REFERENCES applied_tag(id),
	PRIMARY KEY (left_id, right_id)
);

CREATE TABLE IF NOT EXISTS image_applied_tag (
	image_id INTEGER NOT NULL REFERENCES pictures(id),
	applied_tag_id INTEGER NOT NULL REFERENCES applied_tag(id),
	PRIMARY KEY (image_id, applied_tag_id)
);

CREATE TABLE IF NOT EXISTS net_gallery (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	target_collection TEXT NOT NULL,
	target_path TEXT NOT NULL DEFAULT '',
	tag_string TEXT NOT NULL DEFAULT '',
	is_downloaded INTEGER NOT NULL DEFAULT 0,
	deleted INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS net_files (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	gallery_id INTEGER NOT NULL REFERENCES net_gallery(id),
	file_url TEXT NOT NULL,
	referrer_url TEXT NOT NULL DEFAULT '',
	preferred_filename TEXT NOT NULL DEFAULT '',
	tag_string TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS actions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	type TEXT NOT NULL,
	performed INTEGER NOT NULL DEFAULT 0,
	json_payload TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	description TEXT NOT NULL DEFAULT ''
);
`

// Auxiliary is the DDL for the second, signatures-only database file.
const Auxiliary = `
CREATE TABLE IF NOT EXISTS signatures (
	image_id INTEGER PRIMARY KEY,
	phash BLOB NOT NULL,
	computed_at INTEGER NOT NULL
);
`

// Migration is one sequential upgrade step; From is the version it applies
// to, producing From+1.
type Migration struct {
	From int
	SQL  string
}

// Migrations lists every upgrade step in order. Empty until CurrentVersion
// advances past 1.
var Migrations []Migration
