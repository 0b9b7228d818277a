// Package seq adapts small generic helpers over Go's range-over-func
// iterators (iter.Seq/iter.Seq2), used by the device property store and by
// the monitor's user-space re-filter.
package seq

import "iter"

// SliceSeq turns a slice into a single-value iterator over its elements.
func SliceSeq[T any](items []T) iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, item := range items {
			if !yield(item) {
				return
			}
		}
	}
}

// Map12 calls cb on every item of input, yielding cb's two results to the
// output 2-value iterator.
func Map12[F, T1, T2 any](input iter.Seq[F], cb func(F) (T1, T2)) iter.Seq2[T1, T2] {
	return func(yield func(T1, T2) bool) {
		input(func(item F) bool {
			t1, t2 := cb(item)
			return yield(t1, t2)
		})
	}
}

// Filter passes through only the items of input for which test returns true.
func Filter[T any](input iter.Seq[T], test func(T) bool) iter.Seq[T] {
	return func(yield func(T) bool) {
		input(func(item T) bool {
			if !test(item) {
				return true
			}
			return yield(item)
		})
	}
}

// Enumerate pairs each item of input with its zero-based index.
func Enumerate[T any](input iter.Seq[T]) iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		i := 0
		input(func(item T) bool {
			cont := yield(i, item)
			i++
			return cont
		})
	}
}
