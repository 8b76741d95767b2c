package internal

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
)

const patternCacheSize = 128

type patternKey struct {
	mode       Mode
	ignoreCase bool
	pattern    string
}

// Compiled patterns are immutable, so repeated Validate calls with the
// same pattern share one instance.
var patternCache = mustPatternCache()

func mustPatternCache() *lru.Cache[patternKey, Pattern] {
	c, err := lru.New[patternKey, Pattern](patternCacheSize)
	if err != nil {
		panic(fmt.Sprintf("pattern cache: %v", err))
	}
	return c
}

func cachedPattern(mode Mode, pattern string, ignoreCase bool) (Pattern, error) {
	key := patternKey{mode: mode, ignoreCase: ignoreCase, pattern: pattern}
	if p, ok := patternCache.Get(key); ok {
		logrus.Debugf("Pattern cache hit: %s", p.Desc())
		return p, nil
	}
	p, err := compilePattern(mode, pattern, ignoreCase)
	if err != nil {
		return nil, err
	}
	patternCache.Add(key, p)
	return p, nil
}
