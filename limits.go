package gosieve

const (
	// Unbounded is the PagingDescriptor limit that returns every element.
	Unbounded    = 0
	NoLimit      = -1
	MaxLimit     = 100
	DefaultLimit = 10
)

// IsNormalizedLimitMax clamps limit into (0, maxLimit], replacing a missing
// limit with defaultLimit. The flag reports whether limit was already in
// range.
func IsNormalizedLimitMax(limit, defaultLimit, maxLimit int) (int, bool) {
	if limit <= 0 {
		return defaultLimit, false
	} else if limit > maxLimit {
		return maxLimit, false
	}

	return limit, true
}

// normalizeLimitConfig clamps limit with the engine configuration. NoLimit is
// kept and becomes Unbounded.
func normalizeLimitConfig(limit int, cfg Config) (int, bool) {
	if limit == NoLimit {
		return Unbounded, true
	}

	return IsNormalizedLimitMax(limit, cfg.DefaultLimit, cfg.MaxLimit)
}
