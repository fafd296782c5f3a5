// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package model

import (
	"reflect"
	"testing"
)

func TestApplyAppend(t *testing.T) {
	vec := Apply([]int{1, 2}, Append([]int{3, 4}))
	if !reflect.DeepEqual(vec, []int{1, 2, 3, 4}) {
		t.Fatalf("got %v", vec)
	}
}

func TestApplyPushFrontBack(t *testing.T) {
	vec := []int{2}
	vec = Apply(vec, PushFront(1))
	vec = Apply(vec, PushBack(3))
	if !reflect.DeepEqual(vec, []int{1, 2, 3}) {
		t.Fatalf("got %v", vec)
	}
}

func TestApplyInsertSetRemove(t *testing.T) {
	vec := []int{1, 2, 4}
	vec = Apply(vec, Insert(2, 3))
	if !reflect.DeepEqual(vec, []int{1, 2, 3, 4}) {
		t.Fatalf("after insert: got %v", vec)
	}
	vec = Apply(vec, Set(0, 100))
	if vec[0] != 100 {
		t.Fatalf("after set: got %v", vec)
	}
	vec = Apply(vec, Remove(1))
	if !reflect.DeepEqual(vec, []int{100, 3, 4}) {
		t.Fatalf("after remove: got %v", vec)
	}
}

func TestApplyPopFrontBackEmpty(t *testing.T) {
	var vec []int
	vec = Apply(vec, PopFront[int]())
	vec = Apply(vec, PopBack[int]())
	if len(vec) != 0 {
		t.Fatalf("popping an empty vector should be a no-op, got %v", vec)
	}
}

func TestApplyTruncateAndClear(t *testing.T) {
	vec := []int{1, 2, 3, 4, 5}
	vec = Apply(vec, Truncate[int](2))
	if !reflect.DeepEqual(vec, []int{1, 2}) {
		t.Fatalf("after truncate: got %v", vec)
	}
	vec = Apply(vec, Clear[int]())
	if len(vec) != 0 {
		t.Fatalf("after clear: got %v", vec)
	}
}

func TestApplyResetReplacesWholeVector(t *testing.T) {
	vec := []int{9, 9, 9}
	vec = Apply(vec, Reset([]int{1, 2}))
	if !reflect.DeepEqual(vec, []int{1, 2}) {
		t.Fatalf("got %v", vec)
	}
}

// TestApplySequenceMatchesReferenceModel applies a long sequence of diffs
// both through Apply and through a plain-slice reference implementation,
// checking they never diverge - the property the room-list reconciler and
// timeline subscriber both depend on never disagreeing.
func TestApplySequenceMatchesReferenceModel(t *testing.T) {
	vec := []int{}
	reference := []int{}

	steps := []Diff[int]{
		Append([]int{1, 2, 3}),
		PushBack(4),
		PushFront(0),
		Insert(2, 99),
		Set(0, -1),
		Remove(3),
		Truncate[int](4),
		PopBack[int](),
	}
	applyReference := func(ref []int, d Diff[int]) []int {
		switch d.Kind {
		case DiffAppend:
			return append(ref, d.Values...)
		case DiffPushFront:
			return append([]int{d.Value}, ref...)
		case DiffPushBack:
			return append(ref, d.Value)
		case DiffInsert:
			out := make([]int, 0, len(ref)+1)
			out = append(out, ref[:d.Index]...)
			out = append(out, d.Value)
			out = append(out, ref[d.Index:]...)
			return out
		case DiffSet:
			ref[d.Index] = d.Value
			return ref
		case DiffRemove:
			return append(ref[:d.Index], ref[d.Index+1:]...)
		case DiffTruncate:
			return ref[:d.Index]
		case DiffPopBack:
			return ref[:len(ref)-1]
		default:
			return ref
		}
	}

	for _, step := range steps {
		vec = Apply(vec, step)
		reference = applyReference(reference, step)
		if !reflect.DeepEqual(vec, reference) {
			t.Fatalf("diverged after %+v: got %v, want %v", step, vec, reference)
		}
	}
}
