package assistants

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// SweepResult lists what a sweep removed, or would remove on a dry run
type SweepResult struct {
	Agents []string
	Files  []string
}

// Sweep deletes leftover agents and uploaded files whose names carry the
// given prefixes. Every candidate is attempted; failures are aggregated.
func (c *Client) Sweep(ctx context.Context, agentPrefix, filePrefix string, dryRun bool) (SweepResult, error) {
	var (
		result SweepResult
		errs   *multierror.Error
	)

	agents, err := c.ListAgents(ctx)
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("list agents: %w", err))
	}
	for _, a := range agents {
		if !strings.HasPrefix(a.Name, agentPrefix) {
			continue
		}
		if !dryRun {
			if err := c.DeleteAgent(ctx, a.ID); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("delete agent %s: %w", a.ID, err))
				continue
			}
		}
		c.logger.Info("Swept agent", zap.String("agent_id", a.ID), zap.String("agent_name", a.Name), zap.Bool("dry_run", dryRun))
		result.Agents = append(result.Agents, a.ID)
	}

	files, err := c.ListFiles(ctx)
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("list files: %w", err))
	}
	for _, f := range files {
		if !strings.HasPrefix(f.Filename, filePrefix) {
			continue
		}
		if !dryRun {
			if err := c.DeleteFile(ctx, f.ID); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("delete file %s: %w", f.ID, err))
				continue
			}
		}
		c.logger.Info("Swept file", zap.String("file_id", f.ID), zap.String("filename", f.Filename), zap.Bool("dry_run", dryRun))
		result.Files = append(result.Files, f.ID)
	}

	return result, errs.ErrorOrNil()
}
