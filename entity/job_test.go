package entity

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJobRequest(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    *JobRequest
		wantErr bool
	}{
		{
			name: "valid install",
			body: `{"data":{"type":"install","name":"loyalties","subdomain":"acme"}}`,
			want: &JobRequest{
				Type: JobTypeInstall,
				Name: "loyalties",
				CorrelationData: map[string]interface{}{
					"type": "install", "name": "loyalties", "subdomain": "acme",
				},
			},
		},
		{
			name: "unknown type still parses",
			body: `{"data":{"type":"upgrade","name":"loyalties"}}`,
			want: &JobRequest{
				Type:            JobType("upgrade"),
				Name:            "loyalties",
				CorrelationData: map[string]interface{}{"type": "upgrade", "name": "loyalties"},
			},
		},
		{name: "malformed json", body: `{"data":`, wantErr: true},
		{name: "missing data", body: `{"type":"install"}`, wantErr: true},
		{name: "missing name", body: `{"data":{"type":"install"}}`, wantErr: true},
		{name: "missing type", body: `{"data":{"name":"loyalties"}}`, wantErr: true},
		{name: "non-string name", body: `{"data":{"type":"install","name":42}}`, wantErr: true},
		{name: "shell metacharacters in name", body: `{"data":{"type":"install","name":"x; rm -rf /"}}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseJobRequest([]byte(tt.body))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidJob))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewJobMessage(t *testing.T) {
	msg := NewJobMessage(JobTypeUninstall, "loyalties", map[string]interface{}{"requestId": "r-1", "name": "ignored"})

	assert.Equal(t, map[string]interface{}{
		"type":      "uninstall",
		"name":      "loyalties",
		"requestId": "r-1",
	}, msg.Data)
}

func TestJobState_Terminal(t *testing.T) {
	assert.True(t, JobStateSucceeded.Terminal())
	assert.True(t, JobStateRejected.Terminal())
	assert.True(t, JobStateDeadLettered.Terminal())
	assert.False(t, JobStateRunning.Terminal())
	assert.False(t, JobState("").Terminal())
}

func TestValidPluginName(t *testing.T) {
	for _, name := range []string{"loyalties", "a", "plugin_2-x", "X9"} {
		assert.True(t, ValidPluginName(name), name)
	}
	for _, name := range []string{"", "-lead", "_lead", "a b", "a;b", "$(id)", "a/b", strings.Repeat("a", 65)} {
		assert.False(t, ValidPluginName(name), name)
	}
}
