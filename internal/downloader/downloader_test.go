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

package downloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dualview/workstation/internal/store"
)

func TestFetchSucceedsFirstTry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("image bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := New(srv.Client())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)
	defer d.Stop()

	ch := d.Enqueue(NetFileTask{
		File:    store.NetFile{FileURL: srv.URL, PreferredFilename: "a.jpg"},
		DestDir: dir,
	})

	select {
	case res := <-ch:
		require.NoError(t, res.Err)
		data, err := os.ReadFile(res.Path)
		require.NoError(t, err)
		require.Equal(t, "image bytes", string(data))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for download result")
	}
}

func TestFetchRetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := New(srv.Client())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)
	defer d.Stop()

	ch := d.Enqueue(NetFileTask{
		File:    store.NetFile{FileURL: srv.URL, PreferredFilename: "b.jpg"},
		DestDir: dir,
	})

	select {
	case res := <-ch:
		require.NoError(t, res.Err)
		require.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(3))
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for download result")
	}
}

func TestFetchPermanentFailureDoesNotRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := New(srv.Client())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)
	defer d.Stop()

	ch := d.Enqueue(NetFileTask{
		File:    store.NetFile{FileURL: srv.URL, PreferredFilename: "c.jpg"},
		DestDir: dir,
	})

	select {
	case res := <-ch:
		require.Error(t, res.Err)
		require.Equal(t, int32(1), atomic.LoadInt32(&calls))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for download result")
	}
}

func TestDestDirCreatedIfMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "nested", "dir")
	d := New(srv.Client())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)
	defer d.Stop()

	ch := d.Enqueue(NetFileTask{
		File:    store.NetFile{FileURL: srv.URL, PreferredFilename: "d.jpg"},
		DestDir: dir,
	})

	select {
	case res := <-ch:
		require.NoError(t, res.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for download result")
	}
}
