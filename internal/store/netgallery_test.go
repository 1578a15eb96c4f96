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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPendingNetGalleriesExcludesDownloadedAndDeleted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pending, err := s.CreateNetGallery(ctx, NetGallery{TargetCollection: "set-a", TargetPath: ":?ocl/set-a", TagString: "red"})
	require.NoError(t, err)
	done, err := s.CreateNetGallery(ctx, NetGallery{TargetCollection: "set-b", TargetPath: ":?ocl/set-b", TagString: "blue"})
	require.NoError(t, err)
	require.NoError(t, s.SetNetGalleryDownloaded(ctx, done.ID))
	gone, err := s.CreateNetGallery(ctx, NetGallery{TargetCollection: "set-c", TargetPath: ":?ocl/set-c", TagString: "green"})
	require.NoError(t, err)
	require.NoError(t, s.SetNetGalleryDeleted(ctx, gone.ID, true))

	got, err := s.PendingNetGalleries(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, pending.ID, got[0].ID)
}

func TestSetNetGalleryDownloadedRemovesFromPending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	g, err := s.CreateNetGallery(ctx, NetGallery{TargetCollection: "set-a", TargetPath: ":?ocl/set-a", TagString: "red"})
	require.NoError(t, err)

	pending, err := s.PendingNetGalleries(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, s.SetNetGalleryDownloaded(ctx, g.ID))

	pending, err = s.PendingNetGalleries(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 0)

	got, err := s.NetGalleryByID(ctx, g.ID)
	require.NoError(t, err)
	require.True(t, got.IsDownloaded)
}
