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

// Command dualviewd is the daemon entrypoint: it wires the core components
// together and runs the fixed worker set until signalled to stop.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/dualview/workstation/internal/changebus"
	"github.com/dualview/workstation/internal/downloader"
	"github.com/dualview/workstation/internal/hasher"
	"github.com/dualview/workstation/internal/imagecache"
	"github.com/dualview/workstation/internal/journal"
	"github.com/dualview/workstation/internal/store"
	"github.com/dualview/workstation/internal/thumbnail"
	"github.com/dualview/workstation/internal/workers"
)

// Version holds the current binary version. Set at compile time.
var Version = "v0.0.0"

var (
	dataDir     string
	publicRoot  string
	privateRoot string
	metricsAddr string
	maxHistory  int
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	root := &cobra.Command{
		Use:          "dualviewd",
		Short:        "local content-addressed image library daemon",
		SilenceUsage: true,
		RunE:         runServe,
	}
	root.Flags().StringVar(&dataDir, "data-dir", defaultDataDir(), "directory holding the primary and signature databases")
	root.Flags().StringVar(&publicRoot, "public-root", "", "root directory for public collection images (defaults under --data-dir)")
	root.Flags().StringVar(&privateRoot, "private-root", "", "root directory for private collection images and thumbnails (defaults under --data-dir)")
	root.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "address to serve Prometheus metrics on")
	root.Flags().IntVar(&maxHistory, "max-history", 100, "maximum number of actions retained in the undo/redo journal")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		klog.Fatalf("dualviewd: %s", err)
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dualview"
	}
	return filepath.Join(home, ".dualview")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	klog.Info(` _              _       _           `)
	klog.Info(`| |_ _ _ ___| |_ _ _|_|___ _ _ _ `)
	klog.Info(`| . | | | .'| | | | | | -_| | | |`)
	klog.Info(`|___|___|__,|_|_____|_|___|_____|`)
	klog.Info(`starting dualview workstation core...`)
	klog.Info(`version `, Version)

	if publicRoot == "" {
		publicRoot = filepath.Join(dataDir, "public")
	}
	if privateRoot == "" {
		privateRoot = filepath.Join(dataDir, "private")
	}
	for _, dir := range []string{dataDir, publicRoot, privateRoot} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	bus := changebus.New()
	paths := rootPaths{publicRoot: publicRoot, privateRoot: privateRoot}

	st, err := store.Open(ctx,
		filepath.Join(dataDir, "library.db"),
		filepath.Join(dataDir, "signatures.db"),
		store.Options{Paths: paths, Bus: bus},
	)
	if err != nil {
		return err
	}
	defer st.Close()

	jrnl := journal.New(st, bus, maxHistory)
	rows, err := st.ListActions(ctx)
	if err != nil {
		return err
	}
	if err := jrnl.Load(ctx, rows); err != nil {
		return err
	}
	klog.Infof("action journal ready, max history %d, can_undo=%t", maxHistory, jrnl.CanUndo())

	thumbs := thumbnail.New(privateRoot)
	cache := imagecache.New(thumbs, imagecache.Options{})
	dl := downloader.New(http.DefaultClient)
	hsh := hasher.New(st)
	poll := workers.NewConditionalPoller(200 * time.Millisecond)
	netsyncer := newNetSync(st, dl, hsh, paths, poll)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{Addr: metricsAddr, Handler: mux}
	go func() {
		klog.Infof("serving metrics on %s", metricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			klog.Errorf("metrics server: %s", err)
		}
	}()

	sup := workers.New(
		workers.FuncWorker{WorkerName: "image-cache", RunFunc: func(ctx context.Context) error {
			cache.Start(ctx)
			<-ctx.Done()
			cache.Stop()
			return nil
		}},
		workers.FuncWorker{WorkerName: "downloader", RunFunc: func(ctx context.Context) error {
			dl.Start(ctx)
			<-ctx.Done()
			dl.Stop()
			return nil
		}},
		workers.FuncWorker{WorkerName: "hasher", RunFunc: func(ctx context.Context) error {
			hsh.Start(ctx)
			<-ctx.Done()
			hsh.Stop()
			return nil
		}},
		poll,
		netsyncer,
	)
	sup.Start(ctx)

	klog.Info("dualview workstation core running, waiting for shutdown signal")
	<-ctx.Done()
	klog.Info("shutdown signal received, stopping workers")
	sup.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)

	return nil
}
