package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tnqbao/gau-plugin-installer/config"
	"github.com/tnqbao/gau-plugin-installer/entity"
	"github.com/tnqbao/gau-plugin-installer/pipeline"
)

func GetPipelineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline <type>",
		Short: "Print the steps a job type runs",
		Long: `Print the resolved pipeline for a job type. With --name the labels and
commands are rendered for that plugin. YAML output is a valid PIPELINE_FILE.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobType := entity.JobType(args[0])
			name, _ := cmd.Flags().GetString(flagName)
			output, _ := cmd.Flags().GetString(flagOutput)

			registry, err := pipeline.LoadRegistry(config.LoadEnvConfig().Installer.PipelineFile)
			if err != nil {
				return fmt.Errorf("failed to load pipelines: %w", err)
			}

			var steps []pipeline.Step
			if name == "" {
				steps, err = registry.Resolve(jobType)
			} else {
				if !entity.ValidPluginName(name) {
					return fmt.Errorf("invalid plugin name %q", name)
				}
				steps, err = registry.ResolveFor(&entity.JobRequest{Type: jobType, Name: name})
			}
			if err != nil {
				return err
			}

			file := pipeline.File{Pipelines: map[entity.JobType][]pipeline.Step{jobType: steps}}
			var out []byte
			switch output {
			case "yaml":
				out, err = yaml.Marshal(file)
			case "json":
				out, err = json.MarshalIndent(file, "", "  ")
				out = append(out, '\n')
			default:
				return fmt.Errorf("unsupported output format %q", output)
			}
			if err != nil {
				return fmt.Errorf("failed to encode pipeline: %w", err)
			}

			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	cmd.Flags().StringP(flagName, "n", "", "Render the pipeline for this plugin")
	cmd.Flags().StringP(flagOutput, "o", "yaml", "Output format (yaml or json)")
	return cmd
}
