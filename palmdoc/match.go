package palmdoc

type matcher interface {
	// find returns the distance and length of the best back reference for
	// src[i:], or a length of 0 when there is none.
	find(i int) (dist, n int)
	// skip records that src[i:i+n] has been emitted.
	skip(i, n int)
}

// matchLen returns how many bytes of src starting at cand equal those
// starting at i, capped at limit. cand+k may run into i; the decoder copies
// byte by byte so such overlapping matches are valid.
func matchLen(src []byte, cand, i, limit int) int {
	n := 0
	for n < limit && src[cand+n] == src[i+n] {
		n++
	}
	return n
}

func matchLimit(src []byte, i int) int {
	return min(maxMatch, len(src)-i)
}

type linearMatcher struct {
	src []byte
}

func (m linearMatcher) find(i int) (int, int) {
	limit := matchLimit(m.src, i)
	if limit < minMatch {
		return 0, 0
	}
	bestDist, bestLen := 0, 0
	for cand := i - 1; cand >= 0 && i-cand <= maxWindow; cand-- {
		if n := matchLen(m.src, cand, i, limit); n > bestLen {
			bestDist, bestLen = i-cand, n
			if n == limit {
				break
			}
		}
	}
	if bestLen < minMatch {
		return 0, 0
	}
	return bestDist, bestLen
}

func (linearMatcher) skip(int, int) {}

// hashChain keeps, for every 3-byte prefix, the ascending positions already
// emitted that start with it.
type hashChain struct {
	src   []byte
	chain map[[3]byte][]int
}

func newHashChain(src []byte) *hashChain {
	return &hashChain{src: src, chain: make(map[[3]byte][]int)}
}

func (h *hashChain) key(i int) [3]byte {
	return [3]byte{h.src[i], h.src[i+1], h.src[i+2]}
}

func (h *hashChain) find(i int) (int, int) {
	limit := matchLimit(h.src, i)
	if limit < minMatch {
		return 0, 0
	}
	locs := h.chain[h.key(i)]
	bestDist, bestLen := 0, 0
	for k := len(locs) - 1; k >= 0; k-- {
		cand := locs[k]
		if i-cand > maxWindow {
			break
		}
		if n := matchLen(h.src, cand, i, limit); n > bestLen {
			bestDist, bestLen = i-cand, n
			if n == limit {
				break
			}
		}
	}
	if bestLen < minMatch {
		return 0, 0
	}
	return bestDist, bestLen
}

func (h *hashChain) skip(i, n int) {
	for p := i; p < i+n && p+minMatch <= len(h.src); p++ {
		k := h.key(p)
		h.chain[k] = append(h.chain[k], p)
	}
}
