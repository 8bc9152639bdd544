package pipeline

import (
	"time"

	"github.com/tnqbao/gau-plugin-installer/entity"
)

const (
	StepUpdateConfig   = "update-config"
	StepUp             = "up"
	StepSyncUI         = "sync-ui"
	StepRestartCoreUI  = "restart-coreui"
	StepWaitPluginAPI  = "wait-plugin-api"
	StepRestartGateway = "restart-gateway"
	StepRemoveService  = "remove-service"
)

// DefaultDefinitions are the install and uninstall pipelines of a docker
// swarm deployment driven by the erxes CLI.
func DefaultDefinitions() map[entity.JobType][]Step {
	updateConfig := Step{
		Name: StepUpdateConfig,
		Kind: KindCommand,
		Run:  "npm run erxes manage-installation -- --type={{.Type}} --name={{.Name}}",
	}
	up := Step{
		Name:  StepUp,
		Label: "Running up ....",
		Kind:  KindCommand,
		Run:   "npm run erxes up -- --fromInstaller",
	}
	restartCoreUI := Step{
		Name:  StepRestartCoreUI,
		Label: "Restarting coreui ....",
		Kind:  KindCommand,
		Run:   "docker service update --force erxes_coreui",
	}
	restartGateway := Step{
		Name:  StepRestartGateway,
		Label: "Restarting gateway ...",
		Kind:  KindCommand,
		Run:   "docker service update --force erxes_gateway",
	}

	return map[entity.JobType][]Step{
		entity.JobTypeInstall: {
			updateConfig,
			up,
			{
				Name:  StepSyncUI,
				Label: "Syncing ui ....",
				Kind:  KindCommand,
				Run:   "npm run erxes syncui -- {{.Name}}",
			},
			restartCoreUI,
			{
				Name:  StepWaitPluginAPI,
				Label: "Waiting for 10 seconds for plugin api....",
				Kind:  KindWait,
				Wait:  10 * time.Second,
			},
			restartGateway,
		},
		entity.JobTypeUninstall: {
			updateConfig,
			up,
			{
				Name:  StepRemoveService,
				Label: "Removing {{.Name}} service ....",
				Kind:  KindCommand,
				Run:   "docker service rm erxes_plugin_{{.Name}}_api",
			},
			restartCoreUI,
			restartGateway,
		},
	}
}

func NewDefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultDefinitions())
	if err != nil {
		panic("invalid default pipelines: " + err.Error())
	}
	return r
}
