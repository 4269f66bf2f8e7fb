package bench

import "iter"

// Iterate wraps a slice so that ranging over it records an iteration
// boundary on the named accumulator before each element, mirroring a
// training loop that calls GStep at the top of every epoch. The final
// iteration stays open; call GStop (or Save) on the accumulator when the
// loop is done.
func Iterate[S ~[]E, E any](reg *Registry, name string, items S) iter.Seq2[int, E] {
	return func(yield func(int, E) bool) {
		acc := reg.Lookup(name)
		for i, item := range items {
			acc.GStep()
			if !yield(i, item) {
				return
			}
		}
	}
}
