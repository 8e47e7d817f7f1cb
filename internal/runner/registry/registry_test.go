package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amd/madctl/internal/runner"
)

type stubRunner struct{}

func (stubRunner) SetupInfrastructure(ctx context.Context, w runner.WorkloadSpec) (bool, error) {
	return true, nil
}
func (stubRunner) ExecuteWorkload(ctx context.Context, w runner.WorkloadSpec) (*runner.DistributedResult, error) {
	return &runner.DistributedResult{}, nil
}
func (stubRunner) CleanupInfrastructure(ctx context.Context, w runner.WorkloadSpec) (bool, error) {
	return true, nil
}

func TestRegisterAndCreateRoundtrip(t *testing.T) {
	defer unregisterAll()

	require.NoError(t, Register(KindSSH, func() (runner.Runner, error) { return stubRunner{}, nil }))

	r, err := Create(KindSSH)
	require.NoError(t, err)
	assert.IsType(t, stubRunner{}, r)
}

func TestRegisterTwiceFails(t *testing.T) {
	defer unregisterAll()

	require.NoError(t, Register(KindSlurm, func() (runner.Runner, error) { return stubRunner{}, nil }))
	err := Register(KindSlurm, func() (runner.Runner, error) { return stubRunner{}, nil })
	assert.Error(t, err)
}

func TestCreateUnknownKindReturnsConfigurationError(t *testing.T) {
	defer unregisterAll()

	_, err := Create(Kind("bogus"))
	assert.Error(t, err)
}

func TestMustRegisterPanicsOnDuplicate(t *testing.T) {
	defer unregisterAll()

	MustRegister(KindAnsible, func() (runner.Runner, error) { return stubRunner{}, nil })
	assert.Panics(t, func() {
		MustRegister(KindAnsible, func() (runner.Runner, error) { return stubRunner{}, nil })
	})
}

func TestAvailableListsRegisteredKindsSorted(t *testing.T) {
	defer unregisterAll()

	require.NoError(t, Register(KindSlurm, func() (runner.Runner, error) { return stubRunner{}, nil }))
	require.NoError(t, Register(KindAnsible, func() (runner.Runner, error) { return stubRunner{}, nil }))

	assert.Equal(t, []Kind{KindAnsible, KindSlurm}, Available())
}
