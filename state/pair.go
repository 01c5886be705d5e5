package state

// Pair and Triple are tiny tuple helpers used by the dispatch loop and the
// test harnesses.
type Pair[Ty1, Ty2 any] struct {
	V1 Ty1
	V2 Ty2
}
type Triple[Ty1, Ty2, Ty3 any] struct {
	V1 Ty1
	V2 Ty2
	V3 Ty3
}
