package remodel

// Key identifies one segment-builder configuration.
type Key struct {
	SS    string
	AA    string
	Left  int
	Right int
}

// BuildCache remembers the most recent builder configuration. A lookup
// with the same key reuses it; any other key replaces it. It is not safe
// for concurrent use.
type BuildCache struct {
	key    Key
	cfg    BuildConfig
	valid  bool
	builds int
}

// NewBuildCache returns an empty cache.
func NewBuildCache() *BuildCache { return &BuildCache{} }

// Get returns the cached configuration for key, calling build on a miss.
// The second result reports a hit. A failed build leaves the cache empty.
func (c *BuildCache) Get(key Key, build func() (BuildConfig, error)) (BuildConfig, bool, error) {
	if c.valid && c.key == key {
		return c.cfg, true, nil
	}
	c.builds++
	cfg, err := build()
	if err != nil {
		c.valid = false
		return BuildConfig{}, false, err
	}
	c.key, c.cfg, c.valid = key, cfg, true
	return cfg, false, nil
}

// Builds counts cache misses.
func (c *BuildCache) Builds() int { return c.builds }

// Invalidate drops the cached configuration.
func (c *BuildCache) Invalidate() { c.valid = false }
