package operation_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"pgregory.net/rapid"

	"github.com/agentstation/operation"
	"github.com/agentstation/operation/internal/testutil"
)

var statuses = []operation.Status{"", "X", "Y", "Z"}

func genRoundResult(t *rapid.T, label string) operation.RoundResult {
	status := rapid.SampledFrom(statuses).Draw(t, label+"-status")
	delay := time.Duration(rapid.IntRange(0, 500).Draw(t, label+"-delay")) * time.Millisecond
	switch rapid.IntRange(0, 3).Draw(t, label+"-mode") {
	case 0:
		return operation.Success(status, nil, delay)
	case 1:
		return operation.Fail(status, nil, delay)
	case 2:
		return operation.Retry(status, delay)
	default:
		return operation.Wait(status, delay)
	}
}

type outcome struct {
	Result operation.Result
	Path   []string
	Calls  []string
}

// TestDeterminism runs the same scripted graph twice and expects identical
// outcomes.
func TestDeterminism(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(t, "script-len")
		script := make([]operation.RoundResult, n)
		for i := range script {
			script[i] = genRoundResult(t, "A")
		}
		script[n-1] = operation.Success(script[n-1].Status, nil)
		maxRetries := rapid.IntRange(0, 4).Draw(t, "max-retries")

		run := func() outcome {
			trace := testutil.NewTrace()
			g, err := operation.NewBuilder("det").
				Node("A", testutil.Script("A", trace, script...), operation.WithMaxRetries(maxRetries)).
				Node("B", testutil.Script("B", trace)).
				Node("C", testutil.Script("C", trace)).
				Node("D", testutil.Script("D", trace)).
				Edge("A", "B", operation.OnStatus("X")).
				Edge("A", "C").
				Edge("A", "D", operation.OnFail()).
				Build()
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			op := operation.New(g, nil, operation.WithClock(testutil.NewFakeClock()))
			r := op.Execute(context.Background())
			return outcome{Result: r, Path: op.Path(), Calls: trace.Calls()}
		}

		first, second := run(), run()
		if diff := cmp.Diff(first, second); diff != "" {
			t.Fatalf("runs differ (-first +second):\n%s", diff)
		}
	})
}

// TestRetryBoundProperty checks that a node which always retries is invoked
// exactly max+1 times.
func TestRetryBoundProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		max := rapid.IntRange(0, 20).Draw(t, "max")
		body := testutil.Script("A", nil, operation.Retry("R"))
		g, err := operation.NewBuilder("bound").
			Node("A", body, operation.WithMaxRetries(max)).
			Build()
		if err != nil {
			t.Fatalf("build: %v", err)
		}

		r := operation.New(g, nil, operation.WithClock(testutil.NewFakeClock())).Execute(context.Background())
		if r.Status != operation.StatusMaxRetriesExceeded {
			t.Fatalf("status = %q, want %q", r.Status, operation.StatusMaxRetriesExceeded)
		}
		if body.Calls() != max+1 {
			t.Fatalf("calls = %d, want %d", body.Calls(), max+1)
		}
	})
}

// TestWaitNeverExhaustsRetries interleaves waits with fewer retries than the
// budget allows and expects success.
func TestWaitNeverExhaustsRetries(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		max := rapid.IntRange(0, 5).Draw(t, "max")
		retries := rapid.IntRange(0, max).Draw(t, "retries")
		waits := rapid.IntRange(0, 30).Draw(t, "waits")

		var script []operation.RoundResult
		for i := 0; i < waits; i++ {
			script = append(script, operation.Wait("W", time.Millisecond))
		}
		for i := 0; i < retries; i++ {
			script = append(script, operation.Retry("R"))
		}
		script = append(script, operation.Success("", nil))

		body := testutil.Script("A", nil, script...)
		g, err := operation.NewBuilder("wait").
			Node("A", body, operation.WithMaxRetries(max)).
			Build()
		if err != nil {
			t.Fatalf("build: %v", err)
		}

		r := operation.New(g, nil, operation.WithClock(testutil.NewFakeClock())).Execute(context.Background())
		if !r.Success {
			t.Fatalf("result = %v, want success", r)
		}
		if body.Calls() != waits+retries+1 {
			t.Fatalf("calls = %d, want %d", body.Calls(), waits+retries+1)
		}
	})
}
