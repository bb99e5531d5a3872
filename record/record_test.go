package record

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/operation"
	"github.com/agentstation/operation/internal/testutil"
)

func TestAttachWritesOneLinePerRun(t *testing.T) {
	g, err := testutil.Linear("daily", nil, "login", "claim")
	require.NoError(t, err)

	clock := testutil.NewFakeClock()
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.now = func() time.Time { return clock.Now().Add(3 * time.Second) }

	op := operation.New(g, nil, operation.WithClock(clock), operation.WithName("daily-alice"))
	w.Attach(op)

	first := op.Execute(context.Background())
	require.True(t, first.Success)
	firstID := op.RunID()
	op.Execute(context.Background())

	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))

	recs, err := Read(&buf)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	want := Record{
		ID:        firstID,
		Operation: "daily-alice",
		Graph:     g.Fingerprint(),
		Success:   true,
		Started:   clock.Now(),
		Duration:  3 * time.Second,
		Path:      []string{"login", "claim"},
	}
	if diff := cmp.Diff(want, recs[0]); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
	assert.NotEqual(t, recs[0].ID, recs[1].ID)
}

func TestRecordsFailure(t *testing.T) {
	g, err := operation.NewBuilder("mail").
		Node("open", testutil.Script("open", nil, operation.Fail("EMPTY", nil))).
		Build()
	require.NoError(t, err)

	op := operation.New(g, nil)
	r := op.Execute(context.Background())
	rec := New(op, r, time.Now())

	assert.False(t, rec.Success)
	assert.Equal(t, operation.Status("EMPTY"), rec.Status)
	assert.False(t, rec.Aborted)
	assert.Equal(t, []string{"open"}, rec.Path)
}

func TestReadRejectsGarbage(t *testing.T) {
	_, err := Read(strings.NewReader("{\"id\":\"x\"}\nnot json\n"))
	assert.Error(t, err)
}
