package entity

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidJob marks payloads that can never be processed. The consumer
// treats it as a poison message.
var ErrInvalidJob = errors.New("invalid job request")

type JobType string

const (
	JobTypeInstall   JobType = "install"
	JobTypeUninstall JobType = "uninstall"
)

var pluginNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,63}$`)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("plugin_name", func(fl validator.FieldLevel) bool {
			return pluginNamePattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

// JobMessage is the envelope published on the install queue.
type JobMessage struct {
	Data map[string]interface{} `json:"data"`
}

// JobRequest is one install or uninstall request for a named plugin.
// CorrelationData is the full data object of the envelope and is echoed
// back in every progress event.
type JobRequest struct {
	Type            JobType                `json:"type" validate:"required"`
	Name            string                 `json:"name" validate:"required,plugin_name"`
	CorrelationData map[string]interface{} `json:"-"`
}

// ParseJobRequest decodes and validates a queue message body. Whether Type
// names a known pipeline is decided by the pipeline registry, not here.
func ParseJobRequest(body []byte) (*JobRequest, error) {
	var msg JobMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("%w: malformed json: %v", ErrInvalidJob, err)
	}
	if msg.Data == nil {
		return nil, fmt.Errorf("%w: missing data object", ErrInvalidJob)
	}

	jobType, _ := msg.Data["type"].(string)
	name, _ := msg.Data["name"].(string)

	req := &JobRequest{
		Type:            JobType(jobType),
		Name:            name,
		CorrelationData: msg.Data,
	}
	if err := getValidator().Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}

	return req, nil
}

// NewJobMessage builds the envelope for a request, used by publishers.
func NewJobMessage(jobType JobType, name string, fields map[string]interface{}) JobMessage {
	data := make(map[string]interface{}, len(fields)+2)
	for k, v := range fields {
		data[k] = v
	}
	data["type"] = string(jobType)
	data["name"] = name
	return JobMessage{Data: data}
}

// ValidPluginName reports whether name is safe to render into step commands.
func ValidPluginName(name string) bool {
	return pluginNamePattern.MatchString(name)
}
