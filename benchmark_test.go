package operation_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/agentstation/operation"
	"github.com/agentstation/operation/internal/testutil"
)

func BenchmarkBuild(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = operation.NewBuilder("bench").
			Func("a", noop).
			Func("b", noop).
			Func("c", noop).
			Edge("a", "b").
			Edge("b", "c").
			Edge("a", "c", operation.OnFail()).
			Build()
	}
}

func BenchmarkExecuteSingleNode(b *testing.B) {
	g, err := operation.NewBuilder("bench").Func("a", noop).Build()
	if err != nil {
		b.Fatal(err)
	}
	op := operation.New(g, nil)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		op.Execute(ctx)
	}
}

func BenchmarkExecuteChain(b *testing.B) {
	for _, n := range []int{5, 50} {
		b.Run(fmt.Sprintf("nodes=%d", n), func(b *testing.B) {
			names := make([]string, n)
			for i := range names {
				names[i] = fmt.Sprintf("n%d", i)
			}
			g, err := testutil.Linear("chain", nil, names...)
			if err != nil {
				b.Fatal(err)
			}
			op := operation.New(g, nil)
			ctx := context.Background()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				op.Execute(ctx)
			}
		})
	}
}

func BenchmarkSelectEdge(b *testing.B) {
	builder := operation.NewBuilder("fanout").Func("root", func(ctx context.Context, bot *operation.Context) operation.RoundResult {
		return operation.Success("S15", nil)
	})
	for i := 0; i < 16; i++ {
		name := fmt.Sprintf("leaf%d", i)
		builder.Func(name, noop).Edge("root", name, operation.OnStatus(operation.Status(fmt.Sprintf("S%d", i))))
	}
	g, err := builder.Build()
	if err != nil {
		b.Fatal(err)
	}
	op := operation.New(g, nil)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		op.Execute(ctx)
	}
}
