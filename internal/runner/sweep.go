package runner

import "iter"

// MaxSweepBase is the largest power of ten the sweep visits.
const MaxSweepBase = 1_000_000

// Sweep yields the element counts to run. A positive elements yields just
// that count; otherwise it yields i, 2i and 5i for every power of ten i up
// to MaxSweepBase. The sequence can be ranged over any number of times.
func Sweep(elements int) iter.Seq[int] {
	return func(yield func(int) bool) {
		if elements > 0 {
			yield(elements)
			return
		}
		for i := 1; i <= MaxSweepBase; i *= 10 {
			for _, m := range [...]int{1, 2, 5} {
				if !yield(i * m) {
					return
				}
			}
		}
	}
}
