package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tnqbao/gau-plugin-installer/entity"
)

func stepNames(steps []Step) []string {
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.Name
	}
	return names
}

func TestDefaultRegistry_Install(t *testing.T) {
	steps, err := NewDefaultRegistry().Resolve(entity.JobTypeInstall)
	require.NoError(t, err)

	assert.Equal(t, []string{
		StepUpdateConfig, StepUp, StepSyncUI, StepRestartCoreUI, StepWaitPluginAPI, StepRestartGateway,
	}, stepNames(steps))

	wait := steps[4]
	assert.Equal(t, KindWait, wait.Kind)
	assert.Equal(t, 10*time.Second, wait.Wait)
}

func TestDefaultRegistry_Uninstall(t *testing.T) {
	steps, err := NewDefaultRegistry().Resolve(entity.JobTypeUninstall)
	require.NoError(t, err)

	assert.Equal(t, []string{
		StepUpdateConfig, StepUp, StepRemoveService, StepRestartCoreUI, StepRestartGateway,
	}, stepNames(steps))
}

func TestRegistry_UnknownType(t *testing.T) {
	_, err := NewDefaultRegistry().Resolve("upgrade")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownJobType))
}

func TestRegistry_ResolveIsDeterministic(t *testing.T) {
	r := NewDefaultRegistry()

	first, err := r.Resolve(entity.JobTypeInstall)
	require.NoError(t, err)
	first[0].Run = "mutated by caller"

	second, err := r.Resolve(entity.JobTypeInstall)
	require.NoError(t, err)
	assert.NotEqual(t, "mutated by caller", second[0].Run)

	third, err := r.Resolve(entity.JobTypeInstall)
	require.NoError(t, err)
	assert.Equal(t, second, third)
}

func TestRegistry_ResolveFor_RendersTemplates(t *testing.T) {
	steps, err := NewDefaultRegistry().ResolveFor(&entity.JobRequest{Type: entity.JobTypeUninstall, Name: "loyalties"})
	require.NoError(t, err)

	assert.Equal(t, "npm run erxes manage-installation -- --type=uninstall --name=loyalties", steps[0].Run)
	assert.Equal(t, "Removing loyalties service ....", steps[2].Label)
	assert.Equal(t, "docker service rm erxes_plugin_loyalties_api", steps[2].Run)
}

func TestNewRegistry_Validation(t *testing.T) {
	tests := []struct {
		name  string
		steps []Step
	}{
		{name: "empty pipeline", steps: nil},
		{name: "missing name", steps: []Step{{Run: "true"}}},
		{name: "command without run", steps: []Step{{Name: "a", Kind: KindCommand}}},
		{name: "wait without duration", steps: []Step{{Name: "a", Kind: KindWait}}},
		{name: "unknown kind", steps: []Step{{Name: "a", Kind: "teleport"}}},
		{name: "duplicate names", steps: []Step{{Name: "a", Run: "true"}, {Name: "a", Run: "false"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(map[entity.JobType][]Step{entity.JobTypeInstall: tt.steps})
			assert.Error(t, err)
		})
	}
}

func TestNewRegistry_InfersKind(t *testing.T) {
	r, err := NewRegistry(map[entity.JobType][]Step{
		entity.JobTypeInstall: {
			{Name: "run", Run: "true"},
			{Name: "pause", Wait: time.Second},
		},
	})
	require.NoError(t, err)

	steps, err := r.Resolve(entity.JobTypeInstall)
	require.NoError(t, err)
	assert.Equal(t, KindCommand, steps[0].Kind)
	assert.Equal(t, KindWait, steps[1].Kind)
}

func TestRender_BadTemplate(t *testing.T) {
	_, err := Render([]Step{{Name: "a", Run: "echo {{.Nope}}"}}, Vars{Name: "x"})
	assert.Error(t, err)
}

func TestStep_DisplayName(t *testing.T) {
	assert.Equal(t, "Running up ....", Step{Name: "up", Label: "Running up .... "}.DisplayName())
	assert.Equal(t, "update-config", Step{Name: "update-config"}.DisplayName())
}
