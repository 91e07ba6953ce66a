package audit

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/hargabyte/bundlescope/internal/bundle"
	"github.com/hargabyte/bundlescope/internal/metrics"
	"github.com/hargabyte/bundlescope/internal/sandbox"
)

// CacheInvalidationID is the id of the baseline comparison rule.
const CacheInvalidationID = "cache-invalidation"

// TrustedFunc is a local rule implemented in Go. It receives its own deep
// copy of the entry-point parameters and returns a result object with the
// same shape a rule script returns.
type TrustedFunc func(ctx context.Context, params Params) (map[string]any, error)

// Engine runs rules against entry points. It is safe for concurrent use
// once configured.
type Engine struct {
	settings Settings
	rules    []Rule
	runtime  *sandbox.Runtime
	loader   *ScriptLoader

	mu    sync.RWMutex
	funcs map[string]TrustedFunc
}

// NewEngine creates an engine with the built-in rules. fs resolves rule
// scripts given as file paths.
func NewEngine(settings Settings, fs afero.Fs) *Engine {
	return &Engine{
		settings: settings,
		rules:    BuiltinRules(),
		runtime: sandbox.New(
			sandbox.WithTimeout(settings.SandboxTimeout),
			sandbox.WithMemoryLimit(settings.SandboxMemoryMB),
		),
		loader: NewScriptLoader(fs, settings.ScriptCacheSize, settings.ScriptFetchTimeout),
		funcs:  make(map[string]TrustedFunc),
	}
}

// RegisterFunc registers a trusted rule under id. Rules listed in the
// external settings resolve to a registered function before any script.
func (e *Engine) RegisterFunc(id string, fn TrustedFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.funcs[id] = fn
}

// Rules returns the built-in rules with their effective weights.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	for i, r := range e.rules {
		r.Weight = e.settings.weight(r.ID, r.Weight)
		out[i] = r
	}
	return out
}

// Descriptor summarizes one enabled rule for listings.
type Descriptor struct {
	ID     string  `yaml:"id" json:"id"`
	Title  string  `yaml:"title" json:"title"`
	Weight float64 `yaml:"weight" json:"weight"`
	// Source is "builtin", "trusted" or the script location.
	Source string `yaml:"source" json:"source"`
}

// Describe lists the enabled rules in the order their results are returned.
func (e *Engine) Describe() []Descriptor {
	var out []Descriptor
	for _, r := range e.Rules() {
		if !e.settings.disabled(r.ID) {
			out = append(out, Descriptor{ID: r.ID, Title: r.Title, Weight: r.Weight, Source: "builtin"})
		}
	}
	if !e.settings.disabled(CacheInvalidationID) {
		out = append(out, Descriptor{
			ID:     CacheInvalidationID,
			Title:  cacheInvalidationTitle,
			Weight: e.settings.weight(CacheInvalidationID, cacheInvalidationWeight),
			Source: "builtin",
		})
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, x := range e.settings.External {
		if e.settings.disabled(x.ID) {
			continue
		}
		d := Descriptor{ID: x.ID, Source: x.Script}
		if _, ok := e.funcs[x.ID]; ok {
			d.Source = "trusted"
		}
		out = append(out, d)
	}
	return out
}

// Audit runs every enabled rule against v. Results are ordered built-in
// rules first in registration order, then cache invalidation, then external
// rules in configuration order.
func (e *Engine) Audit(ctx context.Context, v *View) []bundle.AuditResult {
	logger := log.With().Str("run_id", v.RunID).Str("entrypoint", v.Name).Logger()

	var rules []Rule
	for _, r := range e.rules {
		if !e.settings.disabled(r.ID) {
			rules = append(rules, r)
		}
	}
	var external []ExternalRule
	for _, x := range e.settings.External {
		if !e.settings.disabled(x.ID) {
			external = append(external, x)
		}
	}

	builtin := make([]*bundle.AuditResult, len(rules))
	scripted := make([]*bundle.AuditResult, len(external))

	g, gctx := errgroup.WithContext(ctx)
	for i, r := range rules {
		g.Go(func() error {
			builtin[i] = e.runRule(gctx, logger, r, v)
			return nil
		})
	}
	if len(external) > 0 {
		params := NewParams(v)
		for i, x := range external {
			g.Go(func() error {
				scripted[i] = e.runExternal(gctx, logger, x, v, params)
				return nil
			})
		}
	}
	_ = g.Wait()

	var results []bundle.AuditResult
	for _, r := range builtin {
		if r != nil {
			results = append(results, *r)
		}
	}
	if v.Baseline != nil && !e.settings.disabled(CacheInvalidationID) {
		results = append(results, CacheInvalidation(v, e.settings.weight(CacheInvalidationID, cacheInvalidationWeight)))
	}
	for _, r := range scripted {
		if r != nil {
			results = append(results, *r)
		}
	}
	return results
}

func (e *Engine) runRule(ctx context.Context, logger zerolog.Logger, r Rule, v *View) (result *bundle.AuditResult) {
	defer func() {
		if p := recover(); p != nil {
			logger.Warn().Str("rule", r.ID).Interface("panic", p).Msg("Audit rule panicked")
			metrics.RecordAuditFailure(r.ID)
			result = nil
		}
	}()

	f, err := r.Check(ctx, v, e.settings)
	if err != nil {
		logger.Warn().Err(err).Str("rule", r.ID).Msg("Audit rule failed")
		metrics.RecordAuditFailure(r.ID)
		return nil
	}
	if f == nil {
		return nil
	}
	res := r.result(f, e.settings.weight(r.ID, r.Weight))
	return &res
}

func (e *Engine) runExternal(ctx context.Context, logger zerolog.Logger, x ExternalRule, v *View, params Params) (result *bundle.AuditResult) {
	logger = logger.With().Str("rule", x.ID).Logger()
	defer func() {
		if p := recover(); p != nil {
			logger.Warn().Interface("panic", p).Msg("External rule panicked")
			metrics.RecordAuditFailure(x.ID)
			result = nil
		}
	}()

	raw, err := e.execute(ctx, logger, x, v, params)
	if err != nil {
		logger.Warn().Err(err).Msg("External rule failed")
		metrics.RecordAuditFailure(x.ID)
		return nil
	}

	res, err := ValidateResult(x.ID, raw)
	if err != nil {
		logger.Warn().Err(err).Msg("Discarding external rule result")
		metrics.RecordAuditFailure(x.ID)
		return nil
	}
	if w, ok := e.settings.Weights[x.ID]; ok && w >= 0 {
		res.Weight = w
	}
	return &res
}

func (e *Engine) execute(ctx context.Context, logger zerolog.Logger, x ExternalRule, v *View, params Params) (map[string]any, error) {
	e.mu.RLock()
	fn, trusted := e.funcs[x.ID]
	e.mu.RUnlock()

	if trusted {
		cp, err := params.Copy()
		if err != nil {
			return nil, err
		}
		return fn(ctx, cp)
	}

	if x.Script == "" {
		return nil, fmt.Errorf("rule %s has neither a registered function nor a script", x.ID)
	}
	script, err := e.loader.Load(ctx, x.Script)
	if err != nil {
		return nil, err
	}
	return e.runtime.Run(ctx, script, "audit", params, e.capabilities(logger, v))
}

// capabilities exposes console logging and a byte-bounded asset reader
// limited to the assets of the audited entry point.
func (e *Engine) capabilities(logger zerolog.Logger, v *View) sandbox.Capabilities {
	var mu sync.Mutex
	budget := e.settings.MaxAssetSourceBytes

	return sandbox.Capabilities{
		Log: func(level, message string) {
			lvl, err := zerolog.ParseLevel(level)
			if err != nil {
				lvl = zerolog.InfoLevel
			}
			logger.WithLevel(lvl).Str("source", "script").Msg(message)
		},
		GetAssetSource: func(nameOrPath string) (string, bool) {
			for _, a := range v.Assets {
				if a.Name != nameOrPath && a.Path != nameOrPath {
					continue
				}
				if !a.Type.IsText() || len(a.Content) == 0 {
					return "", false
				}
				mu.Lock()
				defer mu.Unlock()
				if int64(len(a.Content)) > budget {
					logger.Warn().Str("asset", a.Name).Msg("Asset source budget exhausted")
					return "", false
				}
				budget -= int64(len(a.Content))
				return string(a.Content), true
			}
			return "", false
		},
	}
}
