package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	ServeIfWorker()
	goleak.VerifyTestMain(m)
}

func scope() Scope {
	return Scope{
		Input: "hello world",
		Vars:  map[string]string{"city": "Boston"},
		Nodes: map[string]any{
			"search": map[string]any{"output": map[string]any{"text": "news", "ok": true}},
		},
	}
}

func TestRun_ReturnsValue(t *testing.T) {
	s := New()

	result, err := s.Run(context.Background(), Request{
		Body:  `return $input.toUpperCase() + " from " + $vars.city + " / " + $nodes.search.output.text;`,
		Scope: scope(),
	})

	require.NoError(t, err)
	assert.Equal(t, "HELLO WORLD from Boston / news", result.Value)
	assert.True(t, result.Truthy)
}

func TestRun_InfiniteLoopIsInterrupted(t *testing.T) {
	s := New()
	started := time.Now()

	_, err := s.Run(context.Background(), Request{Body: `while (true) {}`, Scope: scope(), Timeout: CodeTimeout})

	require.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(started), 2*time.Second)
}

func TestRun_ContextCancellationInterrupts(t *testing.T) {
	s := New()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.Run(ctx, Request{Body: `while (true) {}`, Timeout: 5 * time.Second})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRun_ExceptionBecomesError(t *testing.T) {
	s := New()

	_, err := s.Run(context.Background(), Request{Body: `throw new Error("boom");`})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestRun_NodesAreFrozen(t *testing.T) {
	s := New()
	nodes := scope().Nodes

	result, err := s.Run(context.Background(), Request{
		Body:  `"use strict"; try { $nodes.search.output.text = "x"; return "mutated"; } catch (e) { return "frozen"; }`,
		Scope: Scope{Nodes: nodes},
	})

	require.NoError(t, err)
	assert.Equal(t, "frozen", result.Value)
	assert.Equal(t, "news", nodes["search"].(map[string]any)["output"].(map[string]any)["text"])
}

func TestRun_VarsAreACopy(t *testing.T) {
	s := New()
	sc := scope()

	_, err := s.Run(context.Background(), Request{Body: `$vars.city = "Paris"; return $vars.city;`, Scope: sc})

	require.NoError(t, err)
	assert.Equal(t, "Boston", sc.Vars["city"])
}

func TestRun_NoAmbientCapabilities(t *testing.T) {
	s := New()

	result, err := s.Run(context.Background(), Request{
		Body: `return [typeof require, typeof process, typeof console, typeof setTimeout, typeof fetch].join(",");`,
	})

	require.NoError(t, err)
	assert.Equal(t, "undefined,undefined,undefined,undefined,undefined", result.Value)
}

func TestRun_StackCeiling(t *testing.T) {
	s := New(WithMaxCallStack(64))

	_, err := s.Run(context.Background(), Request{Body: `function f(n) { return f(n + 1); } return f(0);`})

	assert.Error(t, err)
}

func TestRun_ExpressionWithGlobals(t *testing.T) {
	s := New()

	result, err := s.Run(context.Background(), Request{
		Body:    Expression(`item.score > 10 && index < 2`),
		Globals: map[string]any{"item": map[string]any{"score": 12}, "index": 1},
		Timeout: ItemTimeout,
	})

	require.NoError(t, err)
	assert.True(t, result.Truthy)
}

func TestRun_UndefinedIsFalsy(t *testing.T) {
	result, err := New().Run(context.Background(), Request{Body: `var x = 1;`})

	require.NoError(t, err)
	assert.Nil(t, result.Value)
	assert.False(t, result.Truthy)
}

func TestRun_AllocatingNativeCallsHitTheCeiling(t *testing.T) {
	scripts := map[string]string{
		"fill and join":     `var a = new Array(3e7).fill("ab"); return a.join(",").length;`,
		"repeat then split": `return "x".repeat(1 << 27).split("").length;`,
		"split large":       `return "x".repeat(1 << 23).split("").length;`,
		"repeat":            `return "x".repeat(1 << 28).length;`,
		"pad":               `return "x".padStart(1 << 28).length;`,
		"array from":        `return Array.from({length: 1e9}).length;`,
		"apply spread":      `return Math.max.apply(null, {length: 1e8});`,
		"join of big parts": `var s = "x".repeat(1 << 19); return [s, s, s, s].join("").length;`,
		"replace all":       `var s = "x".repeat(1 << 16); return s.replaceAll("x", s).length;`,
	}

	s := New()

	for name, body := range scripts {
		t.Run(name, func(t *testing.T) {
			started := time.Now()

			_, err := s.Run(context.Background(), Request{Body: body, Timeout: CodeTimeout})

			require.ErrorIs(t, err, ErrMemoryLimit)
			assert.Less(t, time.Since(started), time.Second)
		})
	}
}

func TestRun_BinaryBuffersAreUnavailable(t *testing.T) {
	result, err := New().Run(context.Background(), Request{
		Body: `return [typeof ArrayBuffer, typeof Uint8Array, typeof DataView].join(",");`,
	})

	require.NoError(t, err)
	assert.Equal(t, "undefined,undefined,undefined", result.Value)
}

func TestRun_GuardedBuiltinsStillWork(t *testing.T) {
	result, err := New().Run(context.Background(), Request{
		Body: `return [
			["b", "a"].sort().join(","),
			"ab".repeat(2),
			"a,b,c".split(",").length,
			[[1, [2]], 3].flat(Infinity).join(""),
			[1, 2].flatMap(function (x) { return [x, x]; }).join(""),
			Math.max.apply(null, [1, 5, 3]),
			"7".padStart(3, "0"),
			"a-b".replace("-", "+"),
			Array.from("hey").length,
			[1].concat([2, 3], 4).length
		].join("|");`,
	})

	require.NoError(t, err)
	assert.Equal(t, "a,b|abab|3|123|1122|5|007|a+b|3|4", result.Value)
}

func TestRun_GuardsCannotBeReplaced(t *testing.T) {
	result, err := New().Run(context.Background(), Request{
		Body: `"use strict";
		try { String.prototype.repeat = function () { return "patched"; }; } catch (e) {}
		try { return "x".repeat(1 << 28).length; } catch (e) { return String(e); }`,
	})

	require.NoError(t, err)
	assert.Contains(t, result.Value, "sandbox limit")
}

func TestRunBatch_InProcess(t *testing.T) {
	outcomes := New().RunBatch(context.Background(), []Request{
		{Body: Expression(`item * 2`), Globals: map[string]any{"item": 21}, Timeout: ItemTimeout},
		{Body: `throw new Error("bad item");`, Timeout: ItemTimeout},
		{Body: `while (true) {}`, Timeout: 20 * time.Millisecond},
	})

	require.Len(t, outcomes, 3)
	require.NoError(t, outcomes[0].Err)
	assert.EqualValues(t, 42, outcomes[0].Result.Value)
	assert.ErrorContains(t, outcomes[1].Err, "bad item")
	assert.ErrorIs(t, outcomes[2].Err, ErrTimeout)
}
