// Package sandbox evaluates user-authored JavaScript in an isolated goja
// runtime. Each evaluation gets a fresh VM whose only bindings are $input,
// $vars, $nodes and the caller's extra globals. There is no require, console,
// timers, filesystem or network access.
//
// Native built-ins that allocate in one step (repeat, join, split, fill and
// friends) are guarded by size ceilings, and the caller always gets control
// back at the deadline. With WithIsolation the evaluations run in a worker
// process under operating system memory and CPU limits, which is the hard
// ceiling for scripts that allocate in many small steps.
package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
)

var (
	// ErrTimeout is returned when an evaluation exceeds its wall-clock budget.
	ErrTimeout = errors.New("execution timed out")
	// ErrPanic is returned when the runtime panics during an evaluation.
	ErrPanic = errors.New("sandbox panic")
	// ErrMemoryLimit is returned when an evaluation allocates past a ceiling.
	ErrMemoryLimit = errors.New("memory limit exceeded")
	// ErrWorker is returned when the isolated worker process fails.
	ErrWorker = errors.New("sandbox worker failed")
)

const (
	// CodeTimeout is the budget of a code node script.
	CodeTimeout = 500 * time.Millisecond
	// ItemTimeout is the budget of one per-item expression.
	ItemTimeout = 100 * time.Millisecond

	// MaxStringLength bounds strings built by guarded native calls.
	MaxStringLength = 1 << 20
	// MaxArrayLength bounds arrays touched by guarded native calls.
	MaxArrayLength = 1 << 18

	defaultMaxCallStack = 256

	// interruptGrace is how long an interrupted VM may take to unwind
	// before the evaluation is abandoned.
	interruptGrace = 20 * time.Millisecond
)

var (
	freezeProgram = goja.MustCompile("freeze.js", `(function freeze(o) {
	if (o === null || typeof o !== "object" || Object.isFrozen(o)) { return o; }
	Object.getOwnPropertyNames(o).forEach(function (k) { freeze(o[k]); });
	return Object.freeze(o);
})`, false)

	guardProgram = goja.MustCompile("guards.js", guardSource, false)
)

// Scope is the data a script may read.
type Scope struct {
	Input string            `json:"input,omitempty"`
	Vars  map[string]string `json:"vars,omitempty"`
	Nodes map[string]any    `json:"nodes,omitempty"`
}

// Request is one evaluation.
type Request struct {
	// Body is a function body; bare return statements are allowed.
	Body    string         `json:"body"`
	Scope   Scope          `json:"scope"`
	Globals map[string]any `json:"globals,omitempty"`
	Timeout time.Duration  `json:"timeout"`
}

func (r Request) budget() time.Duration {
	if r.Timeout <= 0 {
		return CodeTimeout
	}

	return r.Timeout
}

// Result is the exported value of an evaluation.
type Result struct {
	Value  any
	Truthy bool
}

// Outcome is the result of one request of a batch.
type Outcome struct {
	Result Result
	Err    error
}

// Sandbox runs scripts with a call-stack ceiling and native allocation
// guards, in process or in an isolated worker.
type Sandbox struct {
	maxCallStack int
	maxString    int
	maxArray     int
	isolation    *Isolation
}

// Option configures a Sandbox.
type Option func(*Sandbox)

// WithMaxCallStack sets the call-stack ceiling.
func WithMaxCallStack(depth int) Option {
	return func(s *Sandbox) { s.maxCallStack = depth }
}

// WithAllocationLimits sets the string and array ceilings of guarded
// native calls.
func WithAllocationLimits(maxString, maxArray int) Option {
	return func(s *Sandbox) {
		s.maxString = maxString
		s.maxArray = maxArray
	}
}

// WithIsolation runs every evaluation in a worker process started from
// iso.Command under the given resource limits.
func WithIsolation(iso Isolation) Option {
	return func(s *Sandbox) { s.isolation = &iso }
}

func New(opts ...Option) *Sandbox {
	s := &Sandbox{
		maxCallStack: defaultMaxCallStack,
		maxString:    MaxStringLength,
		maxArray:     MaxArrayLength,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Isolated reports whether evaluations run in a worker process.
func (s *Sandbox) Isolated() bool {
	return s.isolation != nil
}

// Expression turns a JavaScript expression into a function body.
func Expression(expr string) string {
	return "return (" + expr + "\n);"
}

// Run evaluates req.Body. The caller gets control back when the timeout
// elapses or ctx is cancelled, whatever the script is doing.
func (s *Sandbox) Run(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	outcomes := s.RunBatch(ctx, []Request{req})

	return outcomes[0].Result, outcomes[0].Err
}

// RunBatch evaluates each request in its own VM, in order. An isolated
// sandbox runs the whole batch in one worker process; when the worker dies
// the unfinished requests share its error.
func (s *Sandbox) RunBatch(ctx context.Context, reqs []Request) []Outcome {
	if len(reqs) == 0 {
		return nil
	}

	if s.isolation != nil {
		return s.runIsolated(ctx, reqs)
	}

	outcomes := make([]Outcome, len(reqs))
	for i, req := range reqs {
		if err := ctx.Err(); err != nil {
			outcomes[i] = Outcome{Err: err}

			continue
		}

		result, err := s.evaluate(ctx, req)
		outcomes[i] = Outcome{Result: result, Err: err}
	}

	return outcomes
}

type evaluation struct {
	result Result
	err    error
}

// evaluate runs req in a fresh VM on its own goroutine. At the deadline the VM
// is interrupted; a VM stuck inside a native call is abandoned and the
// caller returns without waiting for it.
func (s *Sandbox) evaluate(ctx context.Context, req Request) (Result, error) {
	vm := goja.New()
	vm.SetMaxCallStackSize(s.maxCallStack)

	done := make(chan evaluation, 1)

	go func() {
		result, err := s.execute(vm, req)
		done <- evaluation{result: result, err: err}
	}()

	timer := time.NewTimer(req.budget())
	defer timer.Stop()

	var cause error

	select {
	case e := <-done:
		return e.result, e.err
	case <-timer.C:
		cause = ErrTimeout
	case <-ctx.Done():
		cause = context.Cause(ctx)
	}

	vm.Interrupt(cause)

	grace := time.NewTimer(interruptGrace)
	defer grace.Stop()

	select {
	case e := <-done:
		if e.err != nil {
			return Result{}, e.err
		}

		return Result{}, cause
	case <-grace.C:
		return Result{}, cause
	}
}

func (s *Sandbox) execute(vm *goja.Runtime, req Request) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = Result{}
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	if err := s.install(vm); err != nil {
		return Result{}, err
	}

	if err := s.bind(vm, req); err != nil {
		return Result{}, err
	}

	value, err := vm.RunString("(function () {\n" + req.Body + "\n})()")
	if err != nil {
		return Result{}, describe(err)
	}

	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return Result{Value: nil, Truthy: false}, nil
	}

	return Result{Value: value.Export(), Truthy: value.ToBoolean()}, nil
}

// install applies the native allocation guards and removes the binary
// buffer constructors, which allocate their full size up front.
func (s *Sandbox) install(vm *goja.Runtime) error {
	guards, err := vm.RunProgram(guardProgram)
	if err != nil {
		return fmt.Errorf("failed to prepare sandbox: %w", err)
	}

	apply, ok := goja.AssertFunction(guards)
	if !ok {
		return errors.New("failed to prepare sandbox: guards are not callable")
	}

	if _, err := apply(goja.Undefined(), vm.ToValue(s.maxString), vm.ToValue(s.maxArray)); err != nil {
		return fmt.Errorf("failed to prepare sandbox: %w", err)
	}

	for _, name := range bufferGlobals {
		if err := vm.GlobalObject().Delete(name); err != nil {
			return fmt.Errorf("failed to remove %s: %w", name, err)
		}
	}

	return nil
}

var bufferGlobals = []string{
	"ArrayBuffer", "SharedArrayBuffer", "DataView",
	"Int8Array", "Uint8Array", "Uint8ClampedArray",
	"Int16Array", "Uint16Array", "Int32Array", "Uint32Array",
	"Float32Array", "Float64Array", "BigInt64Array", "BigUint64Array",
}

func (s *Sandbox) bind(vm *goja.Runtime, req Request) error {
	freeze, err := vm.RunProgram(freezeProgram)
	if err != nil {
		return fmt.Errorf("failed to prepare sandbox: %w", err)
	}

	freezeFn, ok := goja.AssertFunction(freeze)
	if !ok {
		return errors.New("failed to prepare sandbox: freeze is not callable")
	}

	vars := make(map[string]any, len(req.Scope.Vars))
	for k, v := range req.Scope.Vars {
		vars[k] = v
	}

	varsValue, err := plain(vm, vars)
	if err != nil {
		return err
	}

	nodesValue, err := plain(vm, req.Scope.Nodes)
	if err != nil {
		return err
	}

	frozenNodes, err := freezeFn(goja.Undefined(), nodesValue)
	if err != nil {
		return fmt.Errorf("failed to freeze $nodes: %w", err)
	}

	bindings := map[string]any{
		"$input": req.Scope.Input,
		"$vars":  varsValue,
		"$nodes": frozenNodes,
	}

	for name, value := range req.Globals {
		converted, err := plain(vm, value)
		if err != nil {
			return err
		}

		bindings[name] = converted
	}

	for name, value := range bindings {
		if err := vm.Set(name, value); err != nil {
			return fmt.Errorf("failed to bind %s: %w", name, err)
		}
	}

	return nil
}

// plain copies a Go value into the VM as a detached JavaScript value so that
// scripts can never write through to host maps.
func plain(vm *goja.Runtime, value any) (goja.Value, error) {
	if value == nil {
		return goja.Null(), nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode sandbox value: %w", err)
	}

	parse, ok := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("parse"))
	if !ok {
		return nil, errors.New("JSON.parse unavailable")
	}

	return parse(goja.Undefined(), vm.ToValue(string(raw)))
}

func describe(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok {
			return cause
		}

		return ErrTimeout
	}

	var exception *goja.Exception
	if errors.As(err, &exception) {
		message := exception.Value().String()
		if strings.Contains(message, limitMarker) {
			return fmt.Errorf("%w: %s", ErrMemoryLimit, message)
		}

		return errors.New(message)
	}

	return err
}
