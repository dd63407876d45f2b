package expression

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/skovalik/cognograph/metric"
	"github.com/skovalik/cognograph/pkg/cache"
)

const regexCacheCapacity = 100

// globalRegexCache holds compiled regular expressions so hot rules do not
// recompile their pattern on every event.
var globalRegexCache cache.Cache[*regexp.Regexp]

func init() {
	var err error
	globalRegexCache, err = cache.NewLRU[*regexp.Regexp](regexCacheCapacity)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize regex cache: %v", err))
	}
}

// EnableRegexCacheMetrics replaces the regex cache with one that exports
// hit/miss/eviction metrics to the given registry. Call once at startup,
// before any events are handled; the swap is not synchronized. A nil
// registry is a no-op.
func EnableRegexCacheMetrics(registry *metric.MetricsRegistry) error {
	if registry == nil {
		return nil
	}
	metered, err := cache.NewLRU[*regexp.Regexp](regexCacheCapacity,
		cache.WithMetrics[*regexp.Regexp](registry, "regex-cache"))
	if err != nil {
		return err
	}
	globalRegexCache = metered
	return nil
}

// compileRegex returns a cached compiled regex or compiles and caches a new
// one. Patterns that fail the complexity guard are rejected before
// compilation.
func compileRegex(pattern string) (*regexp.Regexp, error) {
	if re, found := globalRegexCache.Get(pattern); found {
		return re, nil
	}

	if err := validateRegexComplexity(pattern); err != nil {
		return nil, err
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern %q: %w", pattern, err)
	}

	_, _ = globalRegexCache.Set(pattern, re)
	return re, nil
}

// validateRegexComplexity rejects patterns likely to cause excessive
// backtracking or memory use. Heuristic, not exhaustive.
func validateRegexComplexity(pattern string) error {
	if len(pattern) > 500 {
		return fmt.Errorf("regex pattern too long (max 500 chars): %d chars", len(pattern))
	}

	dangerousFragments := []string{
		`(a+)+`,
		`(.*)*`,
		`(.+)+`,
		`(\w+)*`,
		`(\w*)+`,
		`(\s+)*`,
	}
	for _, fragment := range dangerousFragments {
		if strings.Contains(pattern, fragment) {
			return fmt.Errorf("regex pattern contains nested quantifiers that may cause exponential backtracking")
		}
	}

	if strings.Count(pattern, "(") > 20 {
		return fmt.Errorf("regex pattern has too many groups (max 20)")
	}

	return nil
}

// clearRegexCache removes all cached patterns. Test helper.
func clearRegexCache() {
	_ = globalRegexCache.Clear()
}

// regexCacheSize returns the current number of cached patterns.
func regexCacheSize() int {
	return globalRegexCache.Size()
}
