package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tnqbao/gau-plugin-installer/config"
	"github.com/tnqbao/gau-plugin-installer/entity"
	"github.com/tnqbao/gau-plugin-installer/infra"
	"github.com/tnqbao/gau-plugin-installer/infra/produce"
	"github.com/tnqbao/gau-plugin-installer/pipeline"
)

// dialPublisher connects to the broker for enqueue. Tests replace it.
var dialPublisher = func(env *config.EnvConfig) (produce.Publisher, func() error, error) {
	client, err := infra.InitRabbitMQClient(env)
	if err != nil {
		return nil, nil, err
	}
	if err := client.EnsureQueue(env.Installer.InstallQueue); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return client, client.Close, nil
}

func GetEnqueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Publish an install or uninstall job",
		Example: `  installer enqueue --type install --name loyalties --field requestId=42
  installer enqueue --type uninstall --name loyalties`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			jobType, _ := cmd.Flags().GetString(flagType)
			name, _ := cmd.Flags().GetString(flagName)
			rawFields, _ := cmd.Flags().GetStringArray(flagField)

			env := config.LoadEnvConfig()

			registry, err := pipeline.LoadRegistry(env.Installer.PipelineFile)
			if err != nil {
				return fmt.Errorf("failed to load pipelines: %w", err)
			}
			if _, err := registry.Resolve(entity.JobType(jobType)); err != nil {
				return err
			}
			if !entity.ValidPluginName(name) {
				return fmt.Errorf("invalid plugin name %q", name)
			}
			fields, err := parseFields(rawFields)
			if err != nil {
				return err
			}

			publisher, closeFn, err := dialPublisher(env)
			if err != nil {
				return fmt.Errorf("failed to connect to broker: %w", err)
			}
			defer func() { _ = closeFn() }()

			jobs := produce.InitJobService(publisher, env.Installer.InstallQueue)
			messageID, err := jobs.PublishJob(cmd.Context(), entity.NewJobMessage(entity.JobType(jobType), name, fields))
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Enqueued %s job for %s (message id %s)\n", jobType, name, messageID)
			return nil
		},
	}

	cmd.Flags().StringP(flagType, "t", "", "Job type (install or uninstall)")
	cmd.Flags().StringP(flagName, "n", "", "Plugin name")
	cmd.Flags().StringArrayP(flagField, "f", nil, "Extra correlation field as key=value, repeatable")
	_ = cmd.MarkFlagRequired(flagType)
	_ = cmd.MarkFlagRequired(flagName)
	return cmd
}

// parseFields turns key=value pairs into correlation fields.
func parseFields(raw []string) (map[string]interface{}, error) {
	fields := make(map[string]interface{}, len(raw))
	for _, kv := range raw {
		key, value, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid field %q, expected key=value", kv)
		}
		if key == "type" || key == "name" {
			return nil, errors.New("fields may not override type or name")
		}
		fields[key] = value
	}
	return fields, nil
}
