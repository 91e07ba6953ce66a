package audit

import (
	"sync"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/hargabyte/bundlescope/internal/bundle"
)

// Cache memoizes per-asset audit computations for one parse. It is keyed by
// asset ref and shared by every entry point of the parse.
type Cache struct {
	mu       sync.Mutex
	minified map[int]int64
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{minified: make(map[int]int64)}
}

// MinifiedLength returns the byte length of the asset re-serialized with
// minimal whitespace, or false when the asset cannot be minified.
func (c *Cache) MinifiedLength(a *bundle.Asset) (int64, bool) {
	c.mu.Lock()
	n, ok := c.minified[a.Ref]
	c.mu.Unlock()
	if ok {
		return n, n >= 0
	}

	n = minifiedLength(a)
	c.mu.Lock()
	c.minified[a.Ref] = n
	c.mu.Unlock()
	return n, n >= 0
}

func minifiedLength(a *bundle.Asset) int64 {
	var loader api.Loader
	switch a.Type {
	case bundle.TypeJS:
		loader = api.LoaderJS
	case bundle.TypeCSS:
		loader = api.LoaderCSS
	default:
		return -1
	}
	if len(a.Content) == 0 {
		return -1
	}
	res := api.Transform(string(a.Content), api.TransformOptions{
		Loader:           loader,
		MinifyWhitespace: true,
		LogLevel:         api.LogLevelSilent,
	})
	if len(res.Errors) > 0 {
		return -1
	}
	return int64(len(res.Code))
}
