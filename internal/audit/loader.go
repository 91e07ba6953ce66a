package audit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/spf13/afero"
)

const (
	scriptCacheTTL  = 15 * time.Minute
	maxScriptBytes  = 4 << 20
	defaultCacheLen = 32
)

// ScriptLoader resolves rule scripts from a filesystem or over http(s).
// Fetched scripts are cached for a while so repeated audits in one process
// do not refetch them.
type ScriptLoader struct {
	fs     afero.Fs
	client *http.Client
	cache  *expirable.LRU[string, string]
}

// NewScriptLoader creates a loader. A nil fs disables file scripts.
func NewScriptLoader(fs afero.Fs, cacheSize int, timeout time.Duration) *ScriptLoader {
	if cacheSize <= 0 {
		cacheSize = defaultCacheLen
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ScriptLoader{
		fs:     fs,
		client: &http.Client{Timeout: timeout},
		cache:  expirable.NewLRU[string, string](cacheSize, nil, scriptCacheTTL),
	}
}

// Load returns the script text for source.
func (l *ScriptLoader) Load(ctx context.Context, source string) (string, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		if script, ok := l.cache.Get(source); ok {
			return script, nil
		}
		script, err := l.fetch(ctx, source)
		if err != nil {
			return "", &ScriptLoadError{Source: source, Err: err}
		}
		l.cache.Add(source, script)
		return script, nil
	}

	if l.fs == nil {
		return "", &ScriptLoadError{Source: source, Err: fmt.Errorf("no filesystem configured")}
	}
	data, err := afero.ReadFile(l.fs, source)
	if err != nil {
		return "", &ScriptLoadError{Source: source, Err: err}
	}
	return string(data), nil
}

func (l *ScriptLoader) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxScriptBytes+1))
	if err != nil {
		return "", err
	}
	if len(data) > maxScriptBytes {
		return "", fmt.Errorf("script larger than %d bytes", maxScriptBytes)
	}
	return string(data), nil
}
