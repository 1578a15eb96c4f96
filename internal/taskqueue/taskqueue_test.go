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

package taskqueue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPushPopSamePriorityInsertionOrder(t *testing.T) {
	q := New[string]()
	q.Push("a", 1)
	q.Push("b", 1)
	q.Push("c", 1)

	var got []string
	for {
		v, ok := q.Pop()
		if !ok {
			break
		}
		got = append(got, v)
	}
	require.Equal(t, []string{"a", "b", "c"}, got)
}

func TestPopEmpty(t *testing.T) {
	q := New[int]()
	_, ok := q.Pop()
	require.False(t, ok)
}

func TestBumpSurfacesWithinWindowPlusOne(t *testing.T) {
	q := New[string]()
	// Bury the target at the head of the queue, then push a modest pile of
	// higher-priority noise after it (queue depth kept within 2*window so the
	// bubble pass has enough polls to walk it back into the scanned range).
	target := q.Push("target", 0)
	for i := 0; i < defaultWindow+5; i++ {
		q.Push("noise", int64(i+1000))
	}
	target.Bump()

	found := false
	for i := 0; i < defaultWindow+1; i++ {
		v, ok := q.Pop()
		require.True(t, ok)
		if v == "target" {
			found = true
			break
		}
	}
	require.True(t, found, "bumped task must surface within window+1 pops")
}

func TestClearAndEmpty(t *testing.T) {
	q := New[int]()
	require.True(t, q.Empty())
	q.Push(1, 1)
	require.False(t, q.Empty())
	require.Equal(t, 1, q.Len())
	q.Clear()
	require.True(t, q.Empty())
}

func TestSetPriorityReordersEventually(t *testing.T) {
	q := New[int]()
	h := q.Push(1, 1)
	q.Push(2, 2)
	q.Push(3, 3)
	h.SetPriority(100)

	var got []int
	for i := 0; i < defaultWindow+1 && !q.Empty(); i++ {
		v, _ := q.Pop()
		got = append(got, v)
	}
	require.Contains(t, got, 1)
}
