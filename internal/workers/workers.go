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

// Package workers implements the fixed set of long-lived goroutines
// (image loader, thumbnail generator, cache evictor, hash calculator,
// DB-serialisation worker, generic worker, conditional poller, downloader),
// started and stopped together by a Supervisor.
//
// Grounded on infra/starter.Starter's start-all/cancel-all/WaitGroup
// pattern, with Kubernetes leader election dropped: a single-process
// desktop daemon has exactly one instance running, so there is no leader to
// elect (see DESIGN.md).
package workers

import (
	"context"
	"sync"
	"time"

	"k8s.io/klog/v2"
)

// Worker is a single long-lived goroutine managed by a Supervisor. Run must
// block until ctx is cancelled and then return promptly.
type Worker interface {
	Name() string
	Run(ctx context.Context) error
}

// Supervisor starts every registered Worker in its own goroutine and waits
// for all of them to return on Stop.
type Supervisor struct {
	workers []Worker
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// New returns a Supervisor for the given workers. Order does not matter;
// all are started concurrently.
func New(workers ...Worker) *Supervisor {
	return &Supervisor{workers: workers}
}

// Start launches every worker's Run in its own goroutine, wrapping ctx in a
// cancellable child so Stop can signal them independently of the parent's
// own lifetime.
func (s *Supervisor) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	for _, w := range s.workers {
		s.wg.Add(1)
		go s.run(ctx, w)
	}
}

func (s *Supervisor) run(ctx context.Context, w Worker) {
	defer s.wg.Done()
	klog.Infof("workers: starting %q", w.Name())
	if err := w.Run(ctx); err != nil {
		klog.Errorf("workers: %q exited with error: %s", w.Name(), err)
		return
	}
	klog.Infof("workers: %q stopped", w.Name())
}

// Stop cancels every worker's context and waits for all Run calls to
// return.
func (s *Supervisor) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// FuncWorker adapts a name and a run function into a Worker, for workers
// that don't warrant their own named type.
type FuncWorker struct {
	WorkerName string
	RunFunc    func(ctx context.Context) error
}

func (f FuncWorker) Name() string                  { return f.WorkerName }
func (f FuncWorker) Run(ctx context.Context) error { return f.RunFunc(ctx) }

// ConditionalPoller re-polls a list of predicates on an interval and runs
// the associated action the first time each predicate becomes true —
// useful for deferred work waiting on async completion. Once an action has
// run for a given predicate it is removed from the poll set.
type ConditionalPoller struct {
	interval time.Duration

	mu    sync.Mutex
	items []conditionalItem
}

type conditionalItem struct {
	predicate func() bool
	action    func()
}

// NewConditionalPoller returns a poller checking predicates every interval.
func NewConditionalPoller(interval time.Duration) *ConditionalPoller {
	return &ConditionalPoller{interval: interval}
}

// Add registers a (predicate, action) pair. action runs once, the first
// time predicate returns true, and the pair is then forgotten.
func (p *ConditionalPoller) Add(predicate func() bool, action func()) {
	p.mu.Lock()
	p.items = append(p.items, conditionalItem{predicate: predicate, action: action})
	p.mu.Unlock()
}

// Name implements Worker.
func (p *ConditionalPoller) Name() string { return "conditional-poller" }

// Run implements Worker: polls every interval until ctx is cancelled.
func (p *ConditionalPoller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.pollOnce()
		}
	}
}

func (p *ConditionalPoller) pollOnce() {
	p.mu.Lock()
	defer p.mu.Unlock()

	var remaining []conditionalItem
	for _, item := range p.items {
		if item.predicate() {
			item.action()
			continue
		}
		remaining = append(remaining, item)
	}
	p.items = remaining
}
