package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func rawInputs(values ...string) []json.RawMessage {
	inputs := make([]json.RawMessage, 0, len(values))
	for _, v := range values {
		inputs = append(inputs, json.RawMessage(v))
	}
	return inputs
}

func TestGojaRunnerSpreadsInputs(t *testing.T) {
	runner := NewGojaRunner(GojaConfig{})

	report, err := runner.Run(context.Background(), Request{
		Source: `function solve(a, b) { return [a, b]; }`,
		Inputs: rawInputs(`[1, 2]`, `{"nums": [3], "target": 4}`, `"solo"`),
	})
	require.NoError(t, err)
	require.Len(t, report.Cases, 3)

	require.JSONEq(t, `[1,2]`, string(report.Cases[0].Output))
	require.JSONEq(t, `[[3],4]`, string(report.Cases[1].Output))
	require.JSONEq(t, `["solo",null]`, string(report.Cases[2].Output))
	for _, c := range report.Cases {
		require.True(t, c.Defined)
		require.False(t, c.Failed())
	}
}

func TestGojaRunnerIsolatesThrowingCase(t *testing.T) {
	runner := NewGojaRunner(GojaConfig{})

	report, err := runner.Run(context.Background(), Request{
		Source: `function solve(n) {
			if (n === 2) { throw new Error("boom on two"); }
			return n * 10;
		}`,
		Inputs: rawInputs(`1`, `2`, `3`),
	})
	require.NoError(t, err)
	require.Len(t, report.Cases, 3)

	require.Equal(t, "10", string(report.Cases[0].Output))
	require.Equal(t, "boom on two", report.Cases[1].Error)
	require.False(t, report.Cases[1].Defined)
	require.Equal(t, "30", string(report.Cases[2].Output))
}

func TestGojaRunnerMissingSolve(t *testing.T) {
	runner := NewGojaRunner(GojaConfig{})

	_, err := runner.Run(context.Background(), Request{
		Source: `function answer() { return 1; }`,
		Inputs: rawInputs(`1`),
	})

	var compileErr *CompileError
	require.True(t, errors.As(err, &compileErr))
	require.Equal(t, MissingSolveMessage, compileErr.Message)
}

func TestGojaRunnerSyntaxError(t *testing.T) {
	runner := NewGojaRunner(GojaConfig{})

	_, err := runner.Run(context.Background(), Request{
		Source: `function solve( { return`,
		Inputs: rawInputs(`1`),
	})

	var compileErr *CompileError
	require.True(t, errors.As(err, &compileErr))
	require.NotEmpty(t, compileErr.Message)
}

func TestGojaRunnerInterruptsLongRunningCase(t *testing.T) {
	runner := NewGojaRunner(GojaConfig{Timeout: 50 * time.Millisecond})

	report, err := runner.Run(context.Background(), Request{
		Source: `function solve(n) { if (n === 0) { while (true) {} } return n; }`,
		Inputs: rawInputs(`0`, `7`),
	})
	require.NoError(t, err)
	require.Len(t, report.Cases, 2)

	require.Equal(t, "execution timed out after 50ms", report.Cases[0].Error)
	require.Equal(t, "7", string(report.Cases[1].Output))
}

func TestGojaRunnerUndefinedResult(t *testing.T) {
	runner := NewGojaRunner(GojaConfig{})

	report, err := runner.Run(context.Background(), Request{
		Source: `function solve() {}`,
		Inputs: rawInputs(`[]`),
	})
	require.NoError(t, err)
	require.False(t, report.Cases[0].Defined)
	require.False(t, report.Cases[0].Failed())
}

func TestGojaRunnerIsDeterministic(t *testing.T) {
	runner := NewGojaRunner(GojaConfig{})
	req := Request{
		Source: `function solve(n) { console.log("n", n); return Math.floor(Math.random() * 1000) + n; }`,
		Inputs: rawInputs(`1`, `2`),
	}

	first, err := runner.Run(context.Background(), req)
	require.NoError(t, err)
	second, err := runner.Run(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, first.Cases, second.Cases)
}

func TestGojaRunnerCannotTamperWithHarness(t *testing.T) {
	runner := NewGojaRunner(GojaConfig{})

	report, err := runner.Run(context.Background(), Request{
		Source: `JSON.stringify = function () { return "[1,2,3]"; };
		function solve() { return [9]; }`,
		Inputs: rawInputs(`[]`),
	})
	require.NoError(t, err)
	require.Equal(t, "[9]", string(report.Cases[0].Output))
}

func TestGojaRunnerStopsOnCancelledContext(t *testing.T) {
	runner := NewGojaRunner(GojaConfig{Timeout: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runner.Run(ctx, Request{
		Source: `function solve(n) { return n; }`,
		Inputs: rawInputs(`1`),
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestGojaRunnerComparesAfterJSONRoundTrip(t *testing.T) {
	cases := map[string]struct {
		source   string
		expected string
		matched  bool
	}{
		"negative zero prints as zero": {source: `function solve() { return 0; }`, expected: `-0`, matched: true},
		"overflowing number prints as null": {source: `function solve() { return null; }`, expected: `1e400`, matched: true},
		"distinct lone surrogates":          {source: `function solve() { return "\ud801"; }`, expected: `"\ud800"`, matched: false},
		"same lone surrogate":               {source: `function solve() { return "\ud800"; }`, expected: `"\ud800"`, matched: true},
		"key order is ignored":              {source: `function solve() { return {b: 2, a: [1, {y: 1, x: 0}]}; }`, expected: `{"a":[1,{"x":0,"y":1}],"b":2}`, matched: true},
		"array order matters":               {source: `function solve() { return [2, 1]; }`, expected: `[1,2]`, matched: false},
		"extra key fails":                   {source: `function solve() { return {a: 1, b: 2}; }`, expected: `{"a":1}`, matched: false},
		"undefined fields are dropped":      {source: `function solve() { return {a: 1, b: undefined}; }`, expected: `{"a":1}`, matched: true},
	}

	runner := NewGojaRunner(GojaConfig{})
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			report, err := runner.Run(context.Background(), Request{
				Source:   tc.source,
				Inputs:   rawInputs(`[]`),
				Expected: rawInputs(tc.expected),
			})
			require.NoError(t, err)
			require.True(t, report.Cases[0].Defined)
			require.Equal(t, tc.matched, report.Cases[0].Matched)
		})
	}
}

func TestGojaRunnerComparisonSurvivesTampering(t *testing.T) {
	runner := NewGojaRunner(GojaConfig{})

	report, err := runner.Run(context.Background(), Request{
		Source: `Object.keys = function () { return []; };
		Object.prototype.hasOwnProperty = function () { return true; };
		Function.prototype.call = function () { return true; };
		function solve() { return {a: 1}; }`,
		Inputs:   rawInputs(`[]`),
		Expected: rawInputs(`{"a":2}`),
	})
	require.NoError(t, err)
	require.False(t, report.Cases[0].Matched)

	report, err = runner.Run(context.Background(), Request{
		Source: `Object.prototype.toJSON = function () { return 1; };
		Array.prototype.toJSON = function () { return 1; };
		function solve() { return {a: 1}; }`,
		Inputs:   rawInputs(`[]`),
		Expected: rawInputs(`{"a":2}`),
	})
	require.NoError(t, err)
	require.JSONEq(t, `1`, string(report.Cases[0].Output))
	require.False(t, report.Cases[0].Matched)
}

func TestGojaRunnerPassesInputsUnchanged(t *testing.T) {
	runner := NewGojaRunner(GojaConfig{})

	report, err := runner.Run(context.Background(), Request{
		Source:   `function solve(s, n, o) { return [s.length, s.charCodeAt(0), n === Infinity, Object.keys(o)]; }`,
		Inputs:   rawInputs(`["\ud800", 1e400, {"__proto__": 1}]`),
		Expected: rawInputs(`[1, 55296, true, ["__proto__"]]`),
	})
	require.NoError(t, err)
	require.JSONEq(t, `[1,55296,true,["__proto__"]]`, string(report.Cases[0].Output))
	require.True(t, report.Cases[0].Matched)
}

func TestGojaRunnerWaitsForFreeSlot(t *testing.T) {
	runner := NewGojaRunner(GojaConfig{MaxConcurrent: 1})
	require.NoError(t, runner.slots.Acquire(context.Background(), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := runner.Run(ctx, Request{Source: `function solve(n) { return n; }`, Inputs: rawInputs(`1`)})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	runner.slots.Release(1)
	report, err := runner.Run(context.Background(), Request{Source: `function solve(n) { return n; }`, Inputs: rawInputs(`1`), Expected: rawInputs(`1`)})
	require.NoError(t, err)
	require.True(t, report.Cases[0].Matched)
}
