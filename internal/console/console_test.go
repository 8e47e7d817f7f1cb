package console

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amd/madctl/internal/errs"
)

func TestRunCapturesStdout(t *testing.T) {
	c := &Console{}
	out, err := c.Run(context.Background(), "echo hello", Options{})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestRunNonZeroExitFails(t *testing.T) {
	c := &Console{}
	_, err := c.Run(context.Background(), "exit 3", Options{})
	require.Error(t, err)

	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.CategoryRuntime, e.Category)
}

func TestRunCanFailSuppressesError(t *testing.T) {
	c := &Console{}
	out, err := c.Run(context.Background(), "exit 1", Options{CanFail: true})
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestRunTimeout(t *testing.T) {
	c := &Console{}
	_, err := c.Run(context.Background(), "sleep 5", Options{Timeout: 50 * time.Millisecond})
	require.Error(t, err)

	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.CategoryTimeout, e.Category)
}

func TestRunSecretOmitsCommandFromError(t *testing.T) {
	c := &Console{}
	_, err := c.Run(context.Background(), "exit 1", Options{Secret: "<redacted>"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "<redacted>")
	assert.NotContains(t, err.Error(), "exit 1")
}

func TestRunLiveOutputTeesToSink(t *testing.T) {
	var buf bytes.Buffer
	c := &Console{LiveOutput: true, Sink: &buf}
	out, err := c.Run(context.Background(), "printf 'a\\nb\\n'", Options{LiveOutput: true})
	require.NoError(t, err)
	assert.Equal(t, "a\nb", out)
	assert.Contains(t, buf.String(), "a\n")
	assert.Contains(t, buf.String(), "b\n")
}
