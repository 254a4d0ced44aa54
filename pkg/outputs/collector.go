package outputs

import (
	"context"

	"github.com/stackrelay/stackrelay/pkg/callback"
	"github.com/stackrelay/stackrelay/pkg/cloud"
	"github.com/stackrelay/stackrelay/pkg/telemetry"
)

// Collector reads the outputs of the provisioned stack after a successful
// build so they can be surfaced to the requester.
type Collector struct {
	stacks      cloud.StackQuery
	stackName   string
	frontendKey string
	log         *telemetry.Logger
}

// NewCollector creates a collector for the named stack. frontendKey names
// the stack output that carries the frontend URL; empty falls back to the
// callback data key itself.
func NewCollector(stacks cloud.StackQuery, stackName, frontendKey string, log *telemetry.Logger) *Collector {
	if frontendKey == "" {
		frontendKey = callback.DataKeyFrontendURL
	}
	return &Collector{
		stacks:      stacks,
		stackName:   stackName,
		frontendKey: frontendKey,
		log:         log.NewComponentLogger("outputs"),
	}
}

// Collect returns the provisioned stack's outputs keyed by output name.
// Any failure yields an empty map, never an error: outputs are advisory and
// must not fail an otherwise successful execution.
func (c *Collector) Collect(ctx context.Context) map[string]string {
	desc, err := c.stacks.Describe(ctx, c.stackName)
	if err != nil {
		c.log.WithStack(c.stackName).WithError(err).Warn("Could not read stack outputs")
		return map[string]string{}
	}

	collected := make(map[string]string, len(desc.Outputs)+1)
	for name, value := range desc.Outputs {
		collected[name] = value
	}
	if url, ok := collected[c.frontendKey]; ok {
		collected[callback.DataKeyFrontendURL] = url
	}
	return collected
}
