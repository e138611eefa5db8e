package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTriggerRequiresClient(t *testing.T) {
	var c *JobsCLI
	_, err := c.Trigger(context.Background(), "idempotency:cleanup")
	require.Error(t, err)
}

func TestTriggerRejectsUnknownJob(t *testing.T) {
	c, err := NewJobsCLI("127.0.0.1:6379")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	_, err = c.Trigger(context.Background(), "no-such-job")
	require.ErrorContains(t, err, "unsupported job")
}

func TestInspectQueueRequiresInspector(t *testing.T) {
	c := &JobsCLI{}
	_, err := c.InspectQueue(context.Background())
	require.Error(t, err)
}
