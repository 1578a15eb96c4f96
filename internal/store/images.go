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
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dualview/workstation/internal/changebus"
	"github.com/dualview/workstation/internal/errs"
	"github.com/dualview/workstation/internal/fsutil"
)

const kindImage = "image"

// FinalPath expands img's stored portable path against the configured
// public/private roots.
func (s *Store) FinalPath(img *Image) string {
	return s.paths.ToFinal(img.ResourcePath)
}

// InsertImage creates a new image row. hash and dimensions are required:
// the store never inserts an image whose content hash has not yet been
// computed; callers insert only after that step.
func (s *Store) InsertImage(ctx context.Context, img Image) (*Image, error) {
	var out *Image
	err := s.WithTx(ctx, func(tx *Tx) error {
		var err error
		out, err = s.InsertImageTx(ctx, tx, img)
		return err
	})
	return out, err
}

// InsertImageTx is the Tx-taking variant, usable by callers (e.g. the
// action journal) that already hold an open transaction.
func (s *Store) InsertImageTx(ctx context.Context, tx *Tx, img Image) (*Image, error) {
	if img.FileHash == "" {
		return nil, fmt.Errorf("store: %w: image hash is required on insert", errs.InvalidArgument)
	}
	now := time.Now()
	if img.AddedAt.IsZero() {
		img.AddedAt = now
	}
	res, err := tx.tx.ExecContext(ctx, `
		INSERT INTO pictures (resource_path, display_name, extension, width, height, file_hash, imported_from, is_private, added_at, last_viewed_at, deleted, merged)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0)`,
		img.ResourcePath, img.DisplayName, img.Extension, img.Width, img.Height,
		img.FileHash, img.ImportedFrom, boolToInt(img.IsPrivate), img.AddedAt.Unix(), img.LastViewedAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("store: insert image: %w: %s", errs.InvalidSQL, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store: insert image id: %w: %s", errs.InvalidSQL, err)
	}
	img.ID = id
	obj := img
	s.fire(changebus.ImageImported, id)
	return loadOrStore(s.singleload, kindImage, id, func() *Image { return &obj }), nil
}

// ImageByID returns the image with the given id, or errs.NotFound. Repeated
// calls for the same still-referenced id return the identical object.
func (s *Store) ImageByID(ctx context.Context, id int64) (*Image, error) {
	return loadImage(ctx, s, s.db, id)
}

func loadImage(ctx context.Context, s *Store, q queryer, id int64) (*Image, error) {
	var notFound bool
	img := loadOrStore(s.singleload, kindImage, id, func() *Image {
		row := q.QueryRowContext(ctx, `
			SELECT id, resource_path, display_name, extension, width, height, file_hash, imported_from, is_private, added_at, last_viewed_at, deleted, merged
			FROM pictures WHERE id = ?`, id)
		out, err := scanImage(row)
		if err != nil {
			notFound = true
			return nil
		}
		return out
	})
	if notFound || img == nil {
		return nil, fmt.Errorf("store: image %d: %w", id, errs.NotFound)
	}
	return img, nil
}

// ImageByHash returns the non-deleted image carrying hash, or errs.NotFound.
func (s *Store) ImageByHash(ctx context.Context, hash string) (*Image, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, resource_path, display_name, extension, width, height, file_hash, imported_from, is_private, added_at, last_viewed_at, deleted, merged
		FROM pictures WHERE file_hash = ? AND deleted = 0`, hash)
	img, err := scanImage(row)
	if err != nil {
		return nil, fmt.Errorf("store: image with hash %s: %w", hash, errs.NotFound)
	}
	return loadOrStore(s.singleload, kindImage, img.ID, func() *Image { return img }), nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func scanImage(row *sql.Row) (*Image, error) {
	var img Image
	var addedAt, lastViewedAt int64
	var isPrivate, deleted, merged int
	if err := row.Scan(&img.ID, &img.ResourcePath, &img.DisplayName, &img.Extension, &img.Width, &img.Height,
		&img.FileHash, &img.ImportedFrom, &isPrivate, &addedAt, &lastViewedAt, &deleted, &merged); err != nil {
		return nil, err
	}
	img.IsPrivate = isPrivate != 0
	img.Deleted = deleted != 0
	img.Merged = merged != 0
	img.AddedAt = time.Unix(addedAt, 0)
	img.LastViewedAt = time.Unix(lastViewedAt, 0)
	return &img, nil
}

// UpdateImage persists img's mutable fields.
func (s *Store) UpdateImage(ctx context.Context, img *Image) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE pictures SET resource_path = ?, display_name = ?, width = ?, height = ?, is_private = ?, last_viewed_at = ?
		WHERE id = ?`,
		img.ResourcePath, img.DisplayName, img.Width, img.Height, boolToInt(img.IsPrivate), img.LastViewedAt.Unix(), img.ID)
	if err != nil {
		return fmt.Errorf("store: update image %d: %w: %s", img.ID, errs.InvalidSQL, err)
	}
	return nil
}

// MoveImageFile moves the underlying file on disk (rename, falling back to
// copy+verify-size+unlink) and then updates the image's stored path.
func (s *Store) MoveImageFile(ctx context.Context, img *Image, newPortablePath string) error {
	oldFinal := s.FinalPath(img)
	newFinal := s.paths.ToFinal(newPortablePath)
	if err := fsutil.MoveFile(oldFinal, newFinal); err != nil {
		return fmt.Errorf("store: move image %d file: %w", img.ID, err)
	}
	img.ResourcePath = newPortablePath
	return s.UpdateImage(ctx, img)
}

// SetDeleted flips an image's soft-delete flag. The path string only
// becomes "[deleted]" on purge (see journal.ImageDelete.OnPurge), not here.
func (s *Store) SetDeleted(ctx context.Context, tx *Tx, id int64, deleted bool) error {
	exec := s.db.ExecContext
	if tx != nil {
		exec = tx.tx.ExecContext
	}
	_, err := exec(ctx, `UPDATE pictures SET deleted = ? WHERE id = ?`, boolToInt(deleted), id)
	if err != nil {
		return fmt.Errorf("store: set image %d deleted=%v: %w: %s", id, deleted, errs.InvalidSQL, err)
	}
	if deleted {
		s.fire(changebus.ImageDeleted, id)
	}
	return nil
}

// SetMerged flips an image's runtime-only merged flag.
func (s *Store) SetMerged(ctx context.Context, id int64, merged bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE pictures SET merged = ? WHERE id = ?`, boolToInt(merged), id)
	if err != nil {
		return fmt.Errorf("store: set image %d merged=%v: %w: %s", id, merged, errs.InvalidSQL, err)
	}
	return nil
}

// PurgeImage permanently deletes the underlying file for a previously
// deleted image and tombstones its path to "[deleted]". The row itself is
// never removed: collection_image and image_applied_tag rows may still
// reference this image's id, and pictures carries no ON DELETE CASCADE.
func (s *Store) PurgeImage(ctx context.Context, id int64) error {
	img, err := s.ImageByID(ctx, id)
	if err != nil {
		return err
	}
	final := s.FinalPath(img)
	if err := fsutil.Remove(final); err != nil {
		return fmt.Errorf("store: purge image %d file: %w", id, err)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE pictures SET resource_path = '[deleted]' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: purge image %d row: %w: %s", id, errs.InvalidSQL, err)
	}
	img.ResourcePath = "[deleted]"
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
