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

	"github.com/dualview/workstation/internal/changebus"
	"github.com/dualview/workstation/internal/errs"
)

const kindFolder = "folder"

// CreateFolder inserts a new sub-folder under parentID, rejecting a name
// conflict with an existing sibling.
func (s *Store) CreateFolder(ctx context.Context, parentID int64, name string, isPrivate bool) (*Folder, error) {
	if conflict, err := s.folderSiblingConflict(ctx, parentID, name, 0); err != nil {
		return nil, err
	} else if conflict {
		return nil, fmt.Errorf("store: %w: folder name %q already exists under parent %d", errs.InvalidArgument, name, parentID)
	}

	var out *Folder
	err := s.WithTx(ctx, func(tx *Tx) error {
		res, err := tx.tx.ExecContext(ctx, `INSERT INTO virtual_folders (name, is_private, deleted) VALUES (?, ?, 0)`, name, boolToInt(isPrivate))
		if err != nil {
			return fmt.Errorf("store: create folder: %w: %s", errs.InvalidSQL, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("store: create folder id: %w: %s", errs.InvalidSQL, err)
		}
		if _, err := tx.tx.ExecContext(ctx, `INSERT INTO folder_folder (parent_id, child_id) VALUES (?, ?)`, parentID, id); err != nil {
			return fmt.Errorf("store: link folder %d under %d: %w: %s", id, parentID, errs.InvalidSQL, err)
		}
		f := &Folder{ID: id, Name: name, IsPrivate: isPrivate}
		out = loadOrStore(s.singleload, kindFolder, id, func() *Folder { return f })
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.fire(changebus.FolderCreated, out.ID)
	return out, nil
}

func (s *Store) folderSiblingConflict(ctx context.Context, parentID int64, name string, ignoreID int64) (bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT f.id FROM virtual_folders f
		JOIN folder_folder ff ON ff.child_id = f.id
		WHERE ff.parent_id = ? AND LOWER(f.name) = LOWER(?) AND f.deleted = 0 AND f.id != ?`, parentID, name, ignoreID)
	var id int64
	err := row.Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: checking folder sibling conflict: %w: %s", errs.InvalidSQL, err)
	}
	return true, nil
}

// RenameFolder renames a folder, rejecting a conflict with a sibling under
// any of its parents.
func (s *Store) RenameFolder(ctx context.Context, id int64, newName string) error {
	parents, err := s.db.QueryContext(ctx, `SELECT parent_id FROM folder_folder WHERE child_id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: listing folder %d parents: %w: %s", id, errs.InvalidSQL, err)
	}
	var parentIDs []int64
	for parents.Next() {
		var p int64
		if err := parents.Scan(&p); err != nil {
			parents.Close()
			return fmt.Errorf("store: scanning folder parent: %w: %s", errs.InvalidSQL, err)
		}
		parentIDs = append(parentIDs, p)
	}
	parents.Close()

	for _, p := range parentIDs {
		conflict, err := s.folderSiblingConflict(ctx, p, newName, id)
		if err != nil {
			return err
		}
		if conflict {
			return fmt.Errorf("store: %w: folder name %q already exists under parent %d", errs.InvalidArgument, newName, p)
		}
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE virtual_folders SET name = ? WHERE id = ?`, newName, id); err != nil {
		return fmt.Errorf("store: rename folder %d: %w: %s", id, errs.InvalidSQL, err)
	}
	return nil
}

// AddCollectionToFolder links collectionID under folderID. If the
// collection was only in root and folderID is not root, the root link is
// removed.
func (s *Store) AddCollectionToFolder(ctx context.Context, collectionID, folderID int64) error {
	return s.WithTx(ctx, func(tx *Tx) error {
		if _, err := tx.tx.ExecContext(ctx, `INSERT OR IGNORE INTO folder_collection (folder_id, collection_id) VALUES (?, ?)`, folderID, collectionID); err != nil {
			return fmt.Errorf("store: add collection %d to folder %d: %w: %s", collectionID, folderID, errs.InvalidSQL, err)
		}
		if folderID == RootFolderID {
			return nil
		}
		var inRoot int
		row := tx.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM folder_collection WHERE folder_id = ? AND collection_id = ?`, RootFolderID, collectionID)
		if err := row.Scan(&inRoot); err != nil {
			return fmt.Errorf("store: checking root link for collection %d: %w: %s", collectionID, errs.InvalidSQL, err)
		}
		if inRoot == 0 {
			return nil
		}
		_, err := tx.tx.ExecContext(ctx, `DELETE FROM folder_collection WHERE folder_id = ? AND collection_id = ?`, RootFolderID, collectionID)
		if err != nil {
			return fmt.Errorf("store: removing root link for collection %d: %w: %s", collectionID, errs.InvalidSQL, err)
		}
		return nil
	})
}

// RemoveCollectionFromFolder unlinks collectionID from folderID. If the
// collection ends up in no folder at all, it is re-added to root.
func (s *Store) RemoveCollectionFromFolder(ctx context.Context, collectionID, folderID int64) error {
	return s.WithTx(ctx, func(tx *Tx) error {
		if _, err := tx.tx.ExecContext(ctx, `DELETE FROM folder_collection WHERE folder_id = ? AND collection_id = ?`, folderID, collectionID); err != nil {
			return fmt.Errorf("store: remove collection %d from folder %d: %w: %s", collectionID, folderID, errs.InvalidSQL, err)
		}
		var remaining int
		row := tx.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM folder_collection WHERE collection_id = ?`, collectionID)
		if err := row.Scan(&remaining); err != nil {
			return fmt.Errorf("store: counting folders for collection %d: %w: %s", collectionID, errs.InvalidSQL, err)
		}
		if remaining > 0 {
			return nil
		}
		_, err := tx.tx.ExecContext(ctx, `INSERT OR IGNORE INTO folder_collection (folder_id, collection_id) VALUES (?, ?)`, RootFolderID, collectionID)
		if err != nil {
			return fmt.Errorf("store: re-adding collection %d to root: %w: %s", collectionID, errs.InvalidSQL, err)
		}
		return nil
	})
}

// FolderByID returns the folder with the given id.
func (s *Store) FolderByID(ctx context.Context, id int64) (*Folder, error) {
	var notFound bool
	f := loadOrStore(s.singleload, kindFolder, id, func() *Folder {
		row := s.db.QueryRowContext(ctx, `SELECT id, name, is_private, deleted FROM virtual_folders WHERE id = ?`, id)
		var out Folder
		var isPrivate, deleted int
		if err := row.Scan(&out.ID, &out.Name, &isPrivate, &deleted); err != nil {
			notFound = true
			return nil
		}
		out.IsPrivate = isPrivate != 0
		out.Deleted = deleted != 0
		return &out
	})
	if notFound || f == nil {
		return nil, fmt.Errorf("store: folder %d: %w", id, errs.NotFound)
	}
	return f, nil
}
