package palmdoc

// Strategy selects how Compress searches the window for back references.
// Both strategies find the same matches; they trade memory for speed.
type Strategy int

const (
	// StrategyHashChain indexes every 3-byte prefix as it is passed.
	StrategyHashChain Strategy = iota
	// StrategyLinear scans the window backwards and allocates nothing.
	StrategyLinear
)

func (s Strategy) String() string {
	switch s {
	case StrategyHashChain:
		return "hash-chain"
	case StrategyLinear:
		return "linear"
	default:
		return "unknown"
	}
}

// Compress encodes src with the default strategy.
func Compress(src []byte) []byte {
	return StrategyHashChain.Compress(src)
}

// Compress encodes src. At each position the longest back reference in the
// preceding 2047 bytes wins, the nearest one on ties. Without a match a
// space followed by 0x40..0x7F packs into one byte, plain bytes are copied,
// and anything else goes into a literal run.
func (s Strategy) Compress(src []byte) []byte {
	var m matcher
	if s == StrategyLinear {
		m = linearMatcher{src}
	} else {
		m = newHashChain(src)
	}

	out := make([]byte, 0, len(src))
	for i := 0; i < len(src); {
		if dist, n := m.find(i); n >= minMatch {
			word := 0x8000 | uint16(dist)<<3 | uint16(n-minMatch)
			out = append(out, byte(word>>8), byte(word))
			m.skip(i, n)
			i += n
			continue
		}

		c := src[i]
		switch {
		case c == ' ' && i+1 < len(src) && src[i+1] >= 0x40 && src[i+1] < 0x80:
			out = append(out, src[i+1]^0x80)
			m.skip(i, 2)
			i += 2
		case plain(c):
			out = append(out, c)
			m.skip(i, 1)
			i++
		default:
			j := i
			for j < len(src) && j-i < maxRun && !plain(src[j]) {
				j++
			}
			out = append(out, byte(j-i))
			out = append(out, src[i:j]...)
			m.skip(i, j-i)
			i = j
		}
	}
	return out
}

// plain reports whether c decodes as itself when written as a token.
func plain(c byte) bool {
	return c == 0 || (c >= 0x09 && c < 0x80)
}
