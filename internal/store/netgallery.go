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
	"fmt"

	"github.com/dualview/workstation/internal/changebus"
	"github.com/dualview/workstation/internal/errs"
)

// CreateNetGallery inserts a new pending download batch.
func (s *Store) CreateNetGallery(ctx context.Context, g NetGallery) (*NetGallery, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO net_gallery (target_collection, target_path, tag_string, is_downloaded, deleted)
		VALUES (?, ?, ?, 0, 0)`, g.TargetCollection, g.TargetPath, g.TagString)
	if err != nil {
		return nil, fmt.Errorf("store: create net gallery: %w: %s", errs.InvalidSQL, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store: create net gallery id: %w: %s", errs.InvalidSQL, err)
	}
	g.ID = id
	s.fire(changebus.NetGalleryCreated, id)
	return &g, nil
}

// NetGalleryByID looks up a gallery by id.
func (s *Store) NetGalleryByID(ctx context.Context, id int64) (*NetGallery, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, target_collection, target_path, tag_string, is_downloaded, deleted FROM net_gallery WHERE id = ?`, id)
	var g NetGallery
	var downloaded, deleted int
	if err := row.Scan(&g.ID, &g.TargetCollection, &g.TargetPath, &g.TagString, &downloaded, &deleted); err != nil {
		return nil, fmt.Errorf("store: net gallery %d: %w", id, errs.NotFound)
	}
	g.IsDownloaded = downloaded != 0
	g.Deleted = deleted != 0
	return &g, nil
}

// SetNetGalleryDeleted soft-deletes or restores a gallery.
func (s *Store) SetNetGalleryDeleted(ctx context.Context, id int64, deleted bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE net_gallery SET deleted = ? WHERE id = ?`, boolToInt(deleted), id)
	if err != nil {
		return fmt.Errorf("store: set net gallery %d deleted=%v: %w: %s", id, deleted, errs.InvalidSQL, err)
	}
	return nil
}

// PendingNetGalleries lists every non-deleted gallery not yet fully
// downloaded, for the net-sync worker to pick up.
func (s *Store) PendingNetGalleries(ctx context.Context) ([]*NetGallery, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, target_collection, target_path, tag_string, is_downloaded, deleted
		FROM net_gallery WHERE is_downloaded = 0 AND deleted = 0`)
	if err != nil {
		return nil, fmt.Errorf("store: listing pending net galleries: %w: %s", errs.InvalidSQL, err)
	}
	defer rows.Close()
	var out []*NetGallery
	for rows.Next() {
		var g NetGallery
		var downloaded, deleted int
		if err := rows.Scan(&g.ID, &g.TargetCollection, &g.TargetPath, &g.TagString, &downloaded, &deleted); err != nil {
			return nil, fmt.Errorf("store: scanning pending net gallery: %w: %s", errs.InvalidSQL, err)
		}
		g.IsDownloaded = downloaded != 0
		g.Deleted = deleted != 0
		out = append(out, &g)
	}
	return out, nil
}

// SetNetGalleryDownloaded marks a gallery's batch complete once every file
// has resolved through the downloader and the hasher.
func (s *Store) SetNetGalleryDownloaded(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE net_gallery SET is_downloaded = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: set net gallery %d downloaded: %w: %s", id, errs.InvalidSQL, err)
	}
	return nil
}

// PurgeNetGallery permanently removes a gallery row and its files.
func (s *Store) PurgeNetGallery(ctx context.Context, id int64) error {
	return s.WithTx(ctx, func(tx *Tx) error {
		if _, err := tx.tx.ExecContext(ctx, `DELETE FROM net_files WHERE gallery_id = ?`, id); err != nil {
			return fmt.Errorf("store: purge net gallery %d files: %w: %s", id, errs.InvalidSQL, err)
		}
		if _, err := tx.tx.ExecContext(ctx, `DELETE FROM net_gallery WHERE id = ?`, id); err != nil {
			return fmt.Errorf("store: purge net gallery %d: %w: %s", id, errs.InvalidSQL, err)
		}
		return nil
	})
}

// NetFilesForGallery lists every file queued for a gallery.
func (s *Store) NetFilesForGallery(ctx context.Context, galleryID int64) ([]*NetFile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, gallery_id, file_url, referrer_url, preferred_filename, tag_string FROM net_files WHERE gallery_id = ?`, galleryID)
	if err != nil {
		return nil, fmt.Errorf("store: listing net files for gallery %d: %w: %s", galleryID, errs.InvalidSQL, err)
	}
	defer rows.Close()
	var out []*NetFile
	for rows.Next() {
		var f NetFile
		if err := rows.Scan(&f.ID, &f.GalleryID, &f.FileURL, &f.ReferrerURL, &f.PreferredFilename, &f.TagString); err != nil {
			return nil, fmt.Errorf("store: scanning net file: %w: %s", errs.InvalidSQL, err)
		}
		out = append(out, &f)
	}
	return out, nil
}

// ReplaceNetFiles deletes galleryID's existing files in a save-point
// transaction and inserts the new set.
func (s *Store) ReplaceNetFiles(ctx context.Context, galleryID int64, files []NetFile) error {
	return s.WithTx(ctx, func(tx *Tx) error {
		sp, err := tx.Savepoint(ctx, "replace_net_files")
		if err != nil {
			return err
		}
		if _, err := sp.tx.ExecContext(ctx, `DELETE FROM net_files WHERE gallery_id = ?`, galleryID); err != nil {
			_ = sp.Rollback(ctx)
			return fmt.Errorf("store: clearing net files for gallery %d: %w: %s", galleryID, errs.InvalidSQL, err)
		}
		for _, f := range files {
			if _, err := sp.tx.ExecContext(ctx, `
				INSERT INTO net_files (gallery_id, file_url, referrer_url, preferred_filename, tag_string) VALUES (?, ?, ?, ?, ?)`,
				galleryID, f.FileURL, f.ReferrerURL, f.PreferredFilename, f.TagString); err != nil {
				_ = sp.Rollback(ctx)
				return fmt.Errorf("store: inserting net file for gallery %d: %w: %s", galleryID, errs.InvalidSQL, err)
			}
		}
		return sp.Commit(ctx)
	})
}
