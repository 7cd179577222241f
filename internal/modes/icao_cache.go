package modes

import (
	"strconv"
	"time"

	cache "github.com/patrickmn/go-cache"
)

// ICAOCacheTTL is the time an address recovered from a checksummed DF11/17
// message remains "recently seen" for brute-force AP recovery on
// address-xored DFs (spec §4.7's ICAO_CACHE_TTL, reused here exactly as
// the teacher's Decoder.icao_cache did).
const ICAOCacheTTL = 60 * time.Second

// ICAOCache tracks addresses recently confirmed by a checksummed message,
// grounded directly on the teacher's mode_s.Decoder.icao_cache
// (patrickmn/go-cache keyed by address with a TTL eviction).
type ICAOCache struct {
	c *cache.Cache
}

// NewICAOCache constructs a cache with the standard TTL and a cleanup
// sweep at twice that interval.
func NewICAOCache() *ICAOCache {
	return &ICAOCache{c: cache.New(ICAOCacheTTL, 2*ICAOCacheTTL)}
}

// Remember records addr as recently confirmed.
func (c *ICAOCache) Remember(addr uint32) {
	c.c.SetDefault(strconv.FormatUint(uint64(addr), 10), struct{}{})
}

// Recent reports whether addr was confirmed within the TTL.
func (c *ICAOCache) Recent(addr uint32) bool {
	_, found := c.c.Get(strconv.FormatUint(uint64(addr), 10))
	return found
}
