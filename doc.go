/*
Package operation is the execution engine behind a vision-driven game bot.

Every automated task is a small directed graph of named nodes. A node body
looks at the screen, pokes the input controller and returns a RoundResult;
the engine picks the next node by matching that result against the node's
outgoing edges.

Key features:
  - Deterministic branching on (success, status) pairs
  - Bounded retry per node, polling waits that are never counted
  - Per-node and whole-run timeouts
  - Re-runnable Operation objects: all run state resets on Execute
  - Sub-task composition through nested operations and FromChild
  - Cooperative cancellation through a StopToken

Declaring a graph:

	g, err := operation.NewBuilder("claim-reward").
		Func("open-mail", openMail, operation.WithMaxRetries(3)).
		Func("claim", claim, operation.WithNodeTimeout(10*time.Second)).
		Func("close", closeMail).
		Edge("open-mail", "claim").
		Edge("claim", "close").
		Edge("claim", "close", operation.OnFail(), operation.OnStatus("NOTHING_TO_CLAIM")).
		Build()

Running it:

	bot := operation.NewContext(operation.WithScreen(screen), operation.WithInput(input))
	op := operation.New(g, bot, operation.WithTimeout(2*time.Minute))
	result := op.Execute(ctx)

Node bodies:

	func claim(ctx context.Context, bot *operation.Context) operation.RoundResult {
		frame, err := bot.Screenshot(ctx)
		if err != nil {
			return operation.Retry("SCREENSHOT_FAILED", time.Second)
		}
		if _, ok := frame.Label("claim_button"); !ok {
			return operation.Wait("BUTTON_NOT_VISIBLE", 500*time.Millisecond)
		}
		...
		return operation.Success("", nil)
	}

Composition:

	func enterDungeon(ctx context.Context, bot *operation.Context) operation.RoundResult {
		return operation.FromChild(operation.New(transportGraph, bot).Execute(ctx))
	}
*/
package operation
