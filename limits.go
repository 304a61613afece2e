package mobi

// Limits bounds what the reader will allocate and what the writer will
// produce. Zero fields take their defaults.
type Limits struct {
	MaxInputSize   int64  // bytes accepted by Decode from an io.Reader
	MaxTextLength  uint64 // decoded text bytes
	MaxEXTHRecords int
	MaxImageCount  int
}

func defaultLimits() Limits {
	return Limits{
		MaxInputSize:   1 << 30,   // 1 GiB
		MaxTextLength:  256 << 20, // 256 MiB
		MaxEXTHRecords: 4096,
		MaxImageCount:  0xFFFF - 4,
	}
}

func (l Limits) withDefaults() Limits {
	d := defaultLimits()
	if l.MaxInputSize == 0 {
		l.MaxInputSize = d.MaxInputSize
	}
	if l.MaxTextLength == 0 {
		l.MaxTextLength = d.MaxTextLength
	}
	if l.MaxEXTHRecords == 0 {
		l.MaxEXTHRecords = d.MaxEXTHRecords
	}
	if l.MaxImageCount == 0 {
		l.MaxImageCount = d.MaxImageCount
	}
	return l
}
