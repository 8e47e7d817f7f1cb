package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryRecoverability(t *testing.T) {
	cases := []struct {
		category    Category
		recoverable bool
	}{
		{CategoryValidation, true},
		{CategoryConnection, true},
		{CategoryAuthentication, true},
		{CategoryRuntime, false},
		{CategoryBuild, false},
		{CategoryDiscovery, true},
		{CategoryOrchestration, false},
		{CategoryRunner, true},
		{CategoryConfiguration, true},
		{CategoryTimeout, true},
	}

	for _, tc := range cases {
		t.Run(string(tc.category), func(t *testing.T) {
			e := New(tc.category, "boom")
			assert.Equal(t, tc.recoverable, e.Recoverable)
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	e := Connection("ssh.Dial", "failed to reach node", WithCause(cause))

	assert.ErrorIs(t, e, cause)
	require.Error(t, e)
	assert.Contains(t, e.Error(), "connection refused")
	assert.Equal(t, "ssh.Dial", e.Context.Operation)
}

func TestWithSuggestionsAndContext(t *testing.T) {
	e := Build("imagebuilder.Build", "dockerfile not found",
		WithSuggestions("check the model directory", "run discover_models first"),
		WithContext(Context{ModelName: "resnet50", FilePath: "Dockerfile.resnet50"}),
	)

	assert.False(t, e.Recoverable)
	assert.Len(t, e.Suggestions, 2)
	assert.Equal(t, "resnet50", e.Context.ModelName)
}
