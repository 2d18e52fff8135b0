package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/dop251/goja"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

// BackendGoja names the embedded interpreter backend.
const BackendGoja = "goja"

// harnessSource captures the built-ins it relies on before candidate code runs, so a
// solution that reassigns JSON.stringify or Object.keys cannot change how its own
// results are reported or judged. decode is supplied from Go.
const harnessSource = `(function (decode) {
	var stringify = JSON.stringify;
	var values = Object.values;
	var keys = Object.keys;
	var isArray = Array.isArray;
	var apply = Reflect.apply;
	var hasOwn = Function.prototype.call.bind(Object.prototype.hasOwnProperty);

	function same(a, b) {
		if (a === b) {
			return true;
		}
		if (a === null || b === null || typeof a !== "object" || typeof b !== "object") {
			return false;
		}
		if (isArray(a) !== isArray(b)) {
			return false;
		}
		if (isArray(a)) {
			if (a.length !== b.length) {
				return false;
			}
			for (var i = 0; i < a.length; i++) {
				if (!same(a[i], b[i])) {
					return false;
				}
			}
			return true;
		}
		var aKeys = keys(a);
		if (aKeys.length !== keys(b).length) {
			return false;
		}
		for (var j = 0; j < aKeys.length; j++) {
			if (!hasOwn(b, aKeys[j]) || !same(a[aKeys[j]], b[aKeys[j]])) {
				return false;
			}
		}
		return true;
	}

	return function (solve, input, expected) {
		var args;
		if (isArray(input)) {
			args = input;
		} else if (input !== null && typeof input === "object") {
			args = values(input);
		} else {
			args = [input];
		}
		var output = stringify(apply(solve, null, args));
		if (output === undefined) {
			return { output: undefined, matched: false };
		}
		return { output: output, matched: same(decode(output), decode(stringify(expected))) };
	};
})`

// GojaConfig tunes the embedded interpreter.
type GojaConfig struct {
	Timeout          time.Duration
	MaxCallStackSize int
	// MaxConcurrent caps how many evaluations share the process at once. The VM has no
	// heap limit, so this bounds the memory candidate code can claim in total.
	MaxConcurrent int
	Logger        zerolog.Logger
}

// GojaRunner evaluates candidate code inside an embedded ECMAScript VM. Every Run gets a
// fresh VM without require, timers or any I/O bindings.
type GojaRunner struct {
	cfg    GojaConfig
	slots  *semaphore.Weighted
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewGojaRunner builds a runner with sane defaults for omitted settings.
func NewGojaRunner(cfg GojaConfig) *GojaRunner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.MaxCallStackSize <= 0 {
		cfg.MaxCallStackSize = 4096
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &GojaRunner{
		cfg:    cfg,
		slots:  semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		tracer: otel.Tracer("github.com/noah-isme/mock-interview-api/pkg/sandbox"),
		logger: logger.With().Str("component", "goja_runner").Logger(),
	}
}

// Name implements Runner.
func (r *GojaRunner) Name() string {
	return BackendGoja
}

// Run compiles req.Source and calls solve once per input, in order.
func (r *GojaRunner) Run(parent context.Context, req Request) (report Report, err error) {
	ctx, span := r.tracer.Start(parent, "sandbox.run", trace.WithAttributes(
		attribute.String("sandbox.backend", BackendGoja),
		attribute.Int("sandbox.cases", len(req.Inputs)),
	))
	started := time.Now()
	defer func() {
		report.Duration = time.Since(started)
		observeRun(BackendGoja, started, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = r.cfg.Timeout
	}

	if err := r.slots.Acquire(ctx, 1); err != nil {
		return Report{}, fmt.Errorf("wait for sandbox slot: %w", err)
	}
	defer r.slots.Release(1)

	vm := r.newRuntime()
	harness, err := loadHarness(vm)
	if err != nil {
		return Report{}, err
	}

	solve, err := r.compile(ctx, vm, req.Source, timeout)
	if err != nil {
		return Report{}, err
	}

	report.Cases = make([]CaseResult, 0, len(req.Inputs))
	for i, input := range req.Inputs {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		result, err := r.call(ctx, vm, harness, solve, input, json.RawMessage(expectedAt(req, i)), timeout)
		if err != nil {
			return report, err
		}
		if result.Failed() {
			r.logger.Debug().Int("case", i).Str("error", result.Error).Msg("test case failed")
		}
		report.Cases = append(report.Cases, result)
	}

	return report, nil
}

func (r *GojaRunner) newRuntime() *goja.Runtime {
	vm := goja.New()
	vm.SetMaxCallStackSize(r.cfg.MaxCallStackSize)
	// Fixed seed keeps repeated evaluations of the same submission identical.
	vm.SetRandSource(rand.New(rand.NewPCG(1, 2)).Float64)

	console := vm.NewObject()
	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	for _, name := range []string{"log", "info", "warn", "error", "debug"} {
		_ = console.Set(name, noop)
	}
	_ = vm.Set("console", console)

	return vm
}

func loadHarness(vm *goja.Runtime) (goja.Callable, error) {
	value, err := vm.RunScript("harness.js", harnessSource)
	if err != nil {
		return nil, fmt.Errorf("load harness: %w", err)
	}
	factory, ok := goja.AssertFunction(value)
	if !ok {
		return nil, errors.New("load harness: not a function")
	}

	decode := func(call goja.FunctionCall) goja.Value {
		decoded, err := decodeJSONValue(vm, []byte(call.Argument(0).String()), true)
		if err != nil {
			panic(vm.NewGoError(err))
		}
		return decoded
	}
	value, err = factory(goja.Undefined(), vm.ToValue(decode))
	if err != nil {
		return nil, fmt.Errorf("load harness: %w", err)
	}
	harness, ok := goja.AssertFunction(value)
	if !ok {
		return nil, errors.New("load harness: not a function")
	}
	return harness, nil
}

func (r *GojaRunner) compile(ctx context.Context, vm *goja.Runtime, source string, timeout time.Duration) (goja.Value, error) {
	// Kept on the opening line so reported line numbers match the submission.
	wrapped := "(function () {" + source + "\n;if (typeof solve !== \"function\") { throw new Error(" +
		fmt.Sprintf("%q", MissingSolveMessage) + "); }\nreturn solve;\n})()"

	value, err := withDeadline(ctx, vm, timeout, func() (goja.Value, error) {
		return vm.RunScript("solution.js", wrapped)
	})
	if err != nil {
		message, fatal := failureMessage(err, timeout)
		if fatal != nil {
			return nil, fatal
		}
		return nil, compileError(message)
	}
	return value, nil
}

func (r *GojaRunner) call(ctx context.Context, vm *goja.Runtime, harness goja.Callable, solve goja.Value, input, expected json.RawMessage, timeout time.Duration) (CaseResult, error) {
	// Each case gets fresh values so mutations made by an earlier call never leak.
	inputValue, err := decodeJSONValue(vm, []byte(inputOrNull(input)), false)
	if err != nil {
		return failedCase(fmt.Sprintf("invalid test input: %v", err)), nil
	}
	expectedValue, err := decodeJSONValue(vm, []byte(inputOrNull(expected)), true)
	if err != nil {
		return failedCase(fmt.Sprintf("invalid expected output: %v", err)), nil
	}

	value, err := withDeadline(ctx, vm, timeout, func() (goja.Value, error) {
		return harness(goja.Undefined(), solve, inputValue, expectedValue)
	})
	if err != nil {
		message, fatal := failureMessage(err, timeout)
		if fatal != nil {
			return CaseResult{}, fatal
		}
		return failedCase(message), nil
	}

	verdict, ok := value.(*goja.Object)
	if !ok {
		return CaseResult{}, nil
	}
	output := verdict.Get("output")
	if output == nil || goja.IsUndefined(output) {
		return CaseResult{}, nil
	}
	return CaseResult{
		Output:  json.RawMessage(output.String()),
		Defined: true,
		Matched: verdict.Get("matched").ToBoolean(),
	}, nil
}

// withDeadline runs fn and interrupts the VM once timeout elapses or ctx is done.
// The interrupt flag is always cleared before returning so the VM stays usable.
func withDeadline(ctx context.Context, vm *goja.Runtime, timeout time.Duration, fn func() (goja.Value, error)) (goja.Value, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fired := make(chan struct{})
	stop := context.AfterFunc(runCtx, func() {
		vm.Interrupt(runCtx.Err())
		close(fired)
	})

	value, err := fn()
	if !stop() {
		<-fired
	}
	vm.ClearInterrupt()

	return value, err
}

// failureMessage converts a VM error into the message recorded for the case. A non-nil
// second return means the caller's context was cancelled and the run must stop.
func failureMessage(err error, timeout time.Duration) (string, error) {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok && errors.Is(cause, context.Canceled) {
			return "", cause
		}
		caseTimeouts.WithLabelValues(BackendGoja).Inc()
		return timedOutMessage(timeout), nil
	}

	var exception *goja.Exception
	if errors.As(err, &exception) {
		return exceptionMessage(exception), nil
	}

	return err.Error(), nil
}

func exceptionMessage(exception *goja.Exception) string {
	value := exception.Value()
	if value == nil {
		return exception.Error()
	}
	if obj, ok := value.(*goja.Object); ok {
		if message := obj.Get("message"); message != nil && !goja.IsUndefined(message) {
			return message.String()
		}
	}
	return value.String()
}
