// Package sandbox runs untrusted audit scripts in an isolated JavaScript
// interpreter with a wall-clock timeout and a heap ceiling.
//
// Every run gets a fresh interpreter that is discarded afterwards. Scripts
// see only deep copies of their input and an explicit set of capabilities:
// the console logging functions and getAssetSource. There is no filesystem,
// network or timer access.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"runtime/metrics"
	"strings"
	"time"

	"github.com/dop251/goja"
	json "github.com/goccy/go-json"

	bsmetrics "github.com/hargabyte/bundlescope/internal/metrics"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultMemoryMB    = 64
	defaultStackSize   = 1024
	heapSampleInterval = 10 * time.Millisecond
	heapMetric         = "/memory/classes/heap/objects:bytes"
)

// Runtime runs scripts under fixed limits. A Runtime holds no interpreter
// state and is safe for concurrent use.
type Runtime struct {
	timeout     time.Duration
	memoryLimit uint64
	stackSize   int
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithTimeout sets the wall-clock limit of one run.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Runtime) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// WithMemoryLimit sets the heap growth limit of one run in MB.
func WithMemoryLimit(mb int) Option {
	return func(r *Runtime) {
		if mb > 0 {
			r.memoryLimit = uint64(mb) << 20
		}
	}
}

// New creates a Runtime with a 30s timeout and a 64 MB heap ceiling.
func New(opts ...Option) *Runtime {
	r := &Runtime{
		timeout:     defaultTimeout,
		memoryLimit: defaultMemoryMB << 20,
		stackSize:   defaultStackSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Capabilities are the host functions exposed to a script.
type Capabilities struct {
	// Log receives console output. Level is debug, info, warn or error.
	Log func(level, message string)
	// GetAssetSource returns the text of an asset by name or path.
	GetAssetSource func(nameOrPath string) (string, bool)
}

// Run evaluates script, then calls the global function entry with a deep
// copy of params and returns a deep copy of its result as decoded JSON.
func (r *Runtime) Run(ctx context.Context, script, entry string, params any, caps Capabilities) (result map[string]any, err error) {
	outcome := bsmetrics.OutcomeError
	defer func() { bsmetrics.RecordSandboxRun(outcome) }()

	input, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encoding sandbox params: %w", err)
	}

	vm := goja.New()
	vm.SetMaxCallStackSize(r.stackSize)
	if err := r.install(vm, caps); err != nil {
		return nil, err
	}

	stop := r.watch(ctx, vm)
	defer stop()

	out, err := r.call(vm, script, entry, string(input))
	if err != nil {
		err = unwrapInterrupt(err)
		var te *TimeoutError
		var me *MemoryLimitError
		switch {
		case errors.As(err, &te):
			outcome = bsmetrics.OutcomeTimeout
		case errors.As(err, &me):
			outcome = bsmetrics.OutcomeMemory
		}
		return nil, err
	}

	if err := json.Unmarshal([]byte(out), &result); err != nil {
		return nil, &ResultError{Reason: "result is not an object"}
	}
	outcome = bsmetrics.OutcomeOK
	return result, nil
}

func (r *Runtime) call(vm *goja.Runtime, script, entry, input string) (string, error) {
	if _, err := vm.RunString(script); err != nil {
		return "", err
	}
	fn, ok := goja.AssertFunction(vm.Get(entry))
	if !ok {
		return "", &ResultError{Reason: fmt.Sprintf("script does not define function %s", entry)}
	}

	jsonObj := vm.Get("JSON").ToObject(vm)
	parse, _ := goja.AssertFunction(jsonObj.Get("parse"))
	stringify, _ := goja.AssertFunction(jsonObj.Get("stringify"))

	params, err := parse(goja.Undefined(), vm.ToValue(input))
	if err != nil {
		return "", err
	}
	value, err := fn(goja.Undefined(), params)
	if err != nil {
		return "", err
	}

	if p, ok := value.Export().(*goja.Promise); ok {
		switch p.State() {
		case goja.PromiseStateFulfilled:
			value = p.Result()
		case goja.PromiseStateRejected:
			return "", &ResultError{Reason: "promise rejected: " + p.Result().String()}
		default:
			return "", &ResultError{Reason: "promise never settled"}
		}
	}
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return "", &ResultError{Reason: "no result"}
	}

	text, err := stringify(goja.Undefined(), value)
	if err != nil {
		return "", err
	}
	return text.String(), nil
}

// install exposes the capabilities to the script.
func (r *Runtime) install(vm *goja.Runtime, caps Capabilities) error {
	console := vm.NewObject()
	for _, level := range []string{"debug", "info", "warn", "error"} {
		target := level
		if err := console.Set(level, func(call goja.FunctionCall) goja.Value {
			if caps.Log != nil {
				parts := make([]string, len(call.Arguments))
				for i, a := range call.Arguments {
					parts[i] = a.String()
				}
				caps.Log(target, strings.Join(parts, " "))
			}
			return goja.Undefined()
		}); err != nil {
			return err
		}
	}
	if err := vm.Set("console", console); err != nil {
		return err
	}

	return vm.Set("getAssetSource", func(call goja.FunctionCall) goja.Value {
		if caps.GetAssetSource == nil || len(call.Arguments) == 0 {
			return goja.Null()
		}
		if src, ok := caps.GetAssetSource(call.Arguments[0].String()); ok {
			return vm.ToValue(src)
		}
		return goja.Null()
	})
}

// watch interrupts vm on timeout, context cancellation or heap growth past
// the limit. The returned func stops the watchdog.
func (r *Runtime) watch(ctx context.Context, vm *goja.Runtime) func() {
	done := make(chan struct{})
	timer := time.NewTimer(r.timeout)
	ticker := time.NewTicker(heapSampleInterval)
	base := heapBytes()

	go func() {
		defer timer.Stop()
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				vm.Interrupt(ctx.Err())
				return
			case <-timer.C:
				vm.Interrupt(&TimeoutError{Timeout: r.timeout})
				return
			case <-ticker.C:
				if used := heapBytes(); used > base && used-base > r.memoryLimit {
					vm.Interrupt(&MemoryLimitError{Limit: r.memoryLimit, Used: used - base})
					return
				}
			}
		}
	}()

	return func() {
		close(done)
		vm.ClearInterrupt()
	}
}

func heapBytes() uint64 {
	sample := []metrics.Sample{{Name: heapMetric}}
	metrics.Read(sample)
	if sample[0].Value.Kind() != metrics.KindUint64 {
		return 0
	}
	return sample[0].Value.Uint64()
}

func unwrapInterrupt(err error) error {
	var ie *goja.InterruptedError
	if errors.As(err, &ie) {
		if inner, ok := ie.Value().(error); ok {
			return inner
		}
		return fmt.Errorf("interrupted: %v", ie.Value())
	}
	return err
}
