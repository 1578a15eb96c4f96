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

	"github.com/dualview/workstation/internal/errs"
)

// Signature is a perceptual hash computed for an image. Computing the hash
// is out of scope here; the store only persists and retrieves it.
type Signature struct {
	ImageID    int64
	Phash      []byte
	ComputedAt time.Time
}

// PutSignature upserts a signature in the auxiliary database.
func (s *Store) PutSignature(ctx context.Context, sig Signature) error {
	computedAt := sig.ComputedAt
	if computedAt.IsZero() {
		computedAt = time.Now()
	}
	_, err := s.aux.ExecContext(ctx, `
		INSERT INTO signatures (image_id, phash, computed_at) VALUES (?, ?, ?)
		ON CONFLICT(image_id) DO UPDATE SET phash = excluded.phash, computed_at = excluded.computed_at`,
		sig.ImageID, sig.Phash, computedAt.Unix())
	if err != nil {
		return fmt.Errorf("store: put signature for image %d: %w: %s", sig.ImageID, errs.InvalidSQL, err)
	}
	return nil
}

// Signature returns the perceptual hash stored for imageID, if any.
func (s *Store) Signature(ctx context.Context, imageID int64) (*Signature, error) {
	row := s.aux.QueryRowContext(ctx, `SELECT image_id, phash, computed_at FROM signatures WHERE image_id = ?`, imageID)
	var sig Signature
	var computedAt int64
	if err := row.Scan(&sig.ImageID, &sig.Phash, &computedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("store: signature for image %d: %w", imageID, errs.NotFound)
		}
		return nil, fmt.Errorf("store: reading signature for image %d: %w: %s", imageID, errs.InvalidSQL, err)
	}
	sig.ComputedAt = time.Unix(computedAt, 0)
	return &sig, nil
}
