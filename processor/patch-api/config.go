package patchapi

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/c360studio/ldpatch/jsonld"
	"github.com/c360studio/semstreams/component"
)

// patchAPISchema defines the configuration schema.
var patchAPISchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// Input port names, one per operation.
const (
	PortApply   = "apply_requests"
	PortDiff    = "diff_requests"
	PortProject = "project_requests"
)

// defaultTimeoutSecs bounds a single request when no timeout is configured.
const defaultTimeoutSecs = 30

// Config holds configuration for the patch-api processor.
type Config struct {
	Ports       *component.PortConfig `json:"ports" schema:"type:ports,description:Port configuration,category:basic"`
	TimeoutSecs int                   `json:"timeout_secs" schema:"type:integer,description:Request timeout in seconds,category:basic,default:30"`
	Defaults    jsonld.Options        `json:"defaults" schema:"type:object,description:JSON-LD options used when a request carries none,category:advanced"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.TimeoutSecs < 0 {
		return fmt.Errorf("timeout_secs must be non-negative")
	}
	if c.Ports == nil {
		return fmt.Errorf("ports are required")
	}
	for _, operation := range operations {
		subject := c.Subject(operation)
		if subject == "" {
			return fmt.Errorf("missing input port %s", portName(operation))
		}
		if strings.ContainsAny(subject, " \t") {
			return fmt.Errorf("subject must not contain whitespace: %q", subject)
		}
	}
	if err := jsonld.ValidateEmbed(c.Defaults.Embed); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}
	return nil
}

// Subject returns the request subject bound to operation, or "" when no
// input port serves it.
func (c *Config) Subject(operation string) string {
	if c.Ports == nil {
		return ""
	}
	name := portName(operation)
	for _, port := range c.Ports.Inputs {
		if port.Name == name {
			return port.Subject
		}
	}
	return ""
}

// RequestTimeout returns the per-request timeout.
func (c *Config) RequestTimeout() time.Duration {
	if c.TimeoutSecs == 0 {
		return defaultTimeoutSecs * time.Second
	}
	return time.Duration(c.TimeoutSecs) * time.Second
}

// DefaultConfig returns the default configuration for patch-api.
func DefaultConfig() Config {
	return ConfigForPrefix("ldpatch")
}

// ConfigForPrefix returns the default configuration with every request
// subject under prefix, e.g. <prefix>.apply.
func ConfigForPrefix(prefix string) Config {
	return Config{
		Ports: &component.PortConfig{
			Inputs: []component.PortDefinition{
				{
					Name:        PortApply,
					Type:        "nats",
					Subject:     prefix + "." + OperationApply,
					Required:    true,
					Description: "Apply a positional patch to the projection of a document",
				},
				{
					Name:        PortDiff,
					Type:        "nats",
					Subject:     prefix + "." + OperationDiff,
					Required:    true,
					Description: "Compute the patch between the projections of two documents",
				},
				{
					Name:        PortProject,
					Type:        "nats",
					Subject:     prefix + "." + OperationProject,
					Required:    true,
					Description: "Project a document into its framed shape",
				},
			},
		},
		TimeoutSecs: defaultTimeoutSecs,
	}
}

func portName(operation string) string {
	switch operation {
	case OperationApply:
		return PortApply
	case OperationDiff:
		return PortDiff
	case OperationProject:
		return PortProject
	}
	return operation + "_requests"
}
