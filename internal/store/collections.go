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
)

const kindCollection = "collection"

// CreateCollection inserts a new collection, rejecting a case-insensitive
// name conflict unless ignoreID matches the conflicting row (used by
// rename, which re-validates against everything except itself).
func (s *Store) CreateCollection(ctx context.Context, name string, isPrivate bool, ignoreID int64) (*Collection, error) {
	if conflict, err := s.collectionNameConflict(ctx, name, ignoreID); err != nil {
		return nil, err
	} else if conflict {
		return nil, fmt.Errorf("store: %w: collection name %q already in use", errs.InvalidArgument, name)
	}
	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO collections (name, is_private, added_at, modified_at, deleted)
		VALUES (?, ?, ?, ?, 0)`, name, boolToInt(isPrivate), now.Unix(), now.Unix())
	if err != nil {
		return nil, fmt.Errorf("store: create collection: %w: %s", errs.InvalidSQL, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store: create collection id: %w: %s", errs.InvalidSQL, err)
	}
	col := &Collection{ID: id, Name: name, IsPrivate: isPrivate, AddedAt: now, ModifiedAt: now}
	s.fire(changebus.CollectionCreated, id)
	// Every new collection starts out only implicitly reachable; callers add
	// it to root or another folder via AddCollectionToFolder.
	return loadOrStore(s.singleload, kindCollection, id, func() *Collection { return col }), nil
}

// RenameCollection renames a collection, rejecting a case-insensitive
// conflict with any other collection.
func (s *Store) RenameCollection(ctx context.Context, id int64, newName string) error {
	conflict, err := s.collectionNameConflict(ctx, newName, id)
	if err != nil {
		return err
	}
	if conflict {
		return fmt.Errorf("store: %w: collection name %q already in use", errs.InvalidArgument, newName)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE collections SET name = ?, modified_at = ? WHERE id = ?`, newName, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("store: rename collection %d: %w: %s", id, errs.InvalidSQL, err)
	}
	s.fire(changebus.CollectionRenamed, id)
	return nil
}

func (s *Store) collectionNameConflict(ctx context.Context, name string, ignoreID int64) (bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id FROM collections WHERE LOWER(name) = LOWER(?) AND deleted = 0 AND id != ?`, name, ignoreID)
	var id int64
	err := row.Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: checking collection name conflict: %w: %s", errs.InvalidSQL, err)
	}
	return true, nil
}

// CollectionByID returns the collection with the given id.
func (s *Store) CollectionByID(ctx context.Context, id int64) (*Collection, error) {
	var notFound bool
	col := loadOrStore(s.singleload, kindCollection, id, func() *Collection {
		row := s.db.QueryRowContext(ctx, `
			SELECT id, name, is_private, added_at, modified_at, last_viewed_at, preview_image_id, deleted
			FROM collections WHERE id = ?`, id)
		out, err := scanCollection(row)
		if err != nil {
			notFound = true
			return nil
		}
		return out
	})
	if notFound || col == nil {
		return nil, fmt.Errorf("store: collection %d: %w", id, errs.NotFound)
	}
	return col, nil
}

func scanCollection(row *sql.Row) (*Collection, error) {
	var c Collection
	var addedAt, modifiedAt, lastViewedAt int64
	var isPrivate, deleted int
	var previewID sql.NullInt64
	if err := row.Scan(&c.ID, &c.Name, &isPrivate, &addedAt, &modifiedAt, &lastViewedAt, &previewID, &deleted); err != nil {
		return nil, err
	}
	c.IsPrivate = isPrivate != 0
	c.Deleted = deleted != 0
	c.AddedAt = time.Unix(addedAt, 0)
	c.ModifiedAt = time.Unix(modifiedAt, 0)
	c.LastViewedAt = time.Unix(lastViewedAt, 0)
	if previewID.Valid {
		c.PreviewImageID = &previewID.Int64
	}
	return &c, nil
}

// SetDeletedCollection soft-deletes or restores a collection. Deleting the
// Uncategorized sentinel is forbidden.
func (s *Store) SetDeletedCollection(ctx context.Context, id int64, deleted bool) error {
	if deleted && id == DatabaseUncategorizedCollectionID {
		return fmt.Errorf("store: %w: the Uncategorized collection cannot be deleted", errs.InvalidArgument)
	}
	_, err := s.db.ExecContext(ctx, `UPDATE collections SET deleted = ?, modified_at = ? WHERE id = ?`, boolToInt(deleted), time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("store: set collection %d deleted=%v: %w: %s", id, deleted, errs.InvalidSQL, err)
	}
	if deleted {
		s.fire(changebus.CollectionDeleted, id)
	}
	return nil
}

// AddImageToCollection inserts a (collection, image, show_order) row. If
// showOrder is <= 0 the image is placed after the current maximum.
func (s *Store) AddImageToCollection(ctx context.Context, tx *Tx, collectionID, imageID int64, showOrder int) error {
	exec := s.db.ExecContext
	query := s.db.QueryRowContext
	if tx != nil {
		exec = tx.tx.ExecContext
		query = tx.tx.QueryRowContext
	}
	if showOrder <= 0 {
		row := query(ctx, `SELECT COALESCE(MAX(show_order), 0) + 1 FROM collection_image WHERE collection_id = ?`, collectionID)
		if err := row.Scan(&showOrder); err != nil {
			return fmt.Errorf("store: computing next show_order: %w: %s", errs.InvalidSQL, err)
		}
	}
	_, err := exec(ctx, `
		INSERT OR REPLACE INTO collection_image (collection_id, image_id, show_order) VALUES (?, ?, ?)`,
		collectionID, imageID, showOrder)
	if err != nil {
		return fmt.Errorf("store: add image %d to collection %d: %w: %s", imageID, collectionID, errs.InvalidSQL, err)
	}
	return nil
}

// RemoveImageFromCollection deletes the link. If reparentToUncategorized is
// true and the image now belongs to no collection, it is re-added to the
// Uncategorized sentinel; undo paths pass false so a reversed removal does
// not leave a stray Uncategorized link.
func (s *Store) RemoveImageFromCollection(ctx context.Context, tx *Tx, collectionID, imageID int64, reparentToUncategorized bool) error {
	exec := s.db.ExecContext
	query := s.db.QueryRowContext
	if tx != nil {
		exec = tx.tx.ExecContext
		query = tx.tx.QueryRowContext
	}
	if _, err := exec(ctx, `DELETE FROM collection_image WHERE collection_id = ? AND image_id = ?`, collectionID, imageID); err != nil {
		return fmt.Errorf("store: remove image %d from collection %d: %w: %s", imageID, collectionID, errs.InvalidSQL, err)
	}
	if !reparentToUncategorized {
		return nil
	}
	var remaining int
	if err := query(ctx, `SELECT COUNT(*) FROM collection_image WHERE image_id = ?`, imageID).Scan(&remaining); err != nil {
		return fmt.Errorf("store: counting remaining collections for image %d: %w: %s", imageID, errs.InvalidSQL, err)
	}
	if remaining == 0 {
		return s.AddImageToCollection(ctx, tx, DatabaseUncategorizedCollectionID, imageID, 0)
	}
	return nil
}

// ImagesInCollection returns the non-deleted images of collectionID ordered
// by show_order, then insertion id as a stable, documented tiebreak among
// duplicate show_order values.
func (s *Store) ImagesInCollection(ctx context.Context, collectionID int64) ([]*Image, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id FROM pictures p
		JOIN collection_image ci ON ci.image_id = p.id
		WHERE ci.collection_id = ? AND p.deleted = 0
		ORDER BY ci.show_order ASC, p.id ASC`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("store: listing images in collection %d: %w: %s", collectionID, errs.InvalidSQL, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scanning image id: %w: %s", errs.InvalidSQL, err)
		}
		ids = append(ids, id)
	}
	out := make([]*Image, 0, len(ids))
	for _, id := range ids {
		img, err := s.ImageByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, nil
}

// ReorderCollection rewrites show_order so that images appear in exactly
// the given sequence; any image currently in the collection but not listed
// is placed after the listed ones, preserving its relative order among
// other unlisted images.
func (s *Store) ReorderCollection(ctx context.Context, tx *Tx, collectionID int64, images []int64) error {
	exec := s.db.ExecContext
	if tx != nil {
		exec = tx.tx.ExecContext
	}
	listed := make(map[int64]bool, len(images))
	order := 1
	for _, imageID := range images {
		listed[imageID] = true
		if _, err := exec(ctx, `UPDATE collection_image SET show_order = ? WHERE collection_id = ? AND image_id = ?`, order, collectionID, imageID); err != nil {
			return fmt.Errorf("store: reorder collection %d: %w: %s", collectionID, errs.InvalidSQL, err)
		}
		order++
	}

	current, err := s.ImagesInCollection(ctx, collectionID)
	if err != nil {
		return err
	}
	for _, img := range current {
		if listed[img.ID] {
			continue
		}
		if _, err := exec(ctx, `UPDATE collection_image SET show_order = ? WHERE collection_id = ? AND image_id = ?`, order, collectionID, img.ID); err != nil {
			return fmt.Errorf("store: reorder collection %d tail: %w: %s", collectionID, errs.InvalidSQL, err)
		}
		order++
	}
	return nil
}

// PurgeCollection permanently removes a collection row and its folder and
// image links. Callers must have already reparented any contained images
// (e.g. to Uncategorized) before calling this.
func (s *Store) PurgeCollection(ctx context.Context, id int64) error {
	return s.WithTx(ctx, func(tx *Tx) error {
		if _, err := tx.tx.ExecContext(ctx, `DELETE FROM folder_collection WHERE collection_id = ?`, id); err != nil {
			return fmt.Errorf("store: purge collection %d folder links: %w: %s", id, errs.InvalidSQL, err)
		}
		if _, err := tx.tx.ExecContext(ctx, `DELETE FROM collection_image WHERE collection_id = ?`, id); err != nil {
			return fmt.Errorf("store: purge collection %d image links: %w: %s", id, errs.InvalidSQL, err)
		}
		if _, err := tx.tx.ExecContext(ctx, `DELETE FROM collections WHERE id = ?`, id); err != nil {
			return fmt.Errorf("store: purge collection %d row: %w: %s", id, errs.InvalidSQL, err)
		}
		s.singleload.forget(kindCollection, id)
		return nil
	})
}

// CollectionFolders returns the ids of every folder collectionID belongs to.
func (s *Store) CollectionFolders(ctx context.Context, collectionID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT folder_id FROM folder_collection WHERE collection_id = ?`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("store: listing folders for collection %d: %w: %s", collectionID, errs.InvalidSQL, err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scanning folder id: %w: %s", errs.InvalidSQL, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
