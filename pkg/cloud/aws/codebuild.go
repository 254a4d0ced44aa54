package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codebuild"
	cbtypes "github.com/aws/aws-sdk-go-v2/service/codebuild/types"

	"github.com/stackrelay/stackrelay/pkg/cloud"
)

// codeBuildAPI is the subset of the CodeBuild client used by the executor.
type codeBuildAPI interface {
	StartBuild(ctx context.Context, params *codebuild.StartBuildInput, optFns ...func(*codebuild.Options)) (*codebuild.StartBuildOutput, error)
	BatchGetBuilds(ctx context.Context, params *codebuild.BatchGetBuildsInput, optFns ...func(*codebuild.Options)) (*codebuild.BatchGetBuildsOutput, error)
}

// CodeBuildExecutor implements cloud.BuildExecutor on top of AWS CodeBuild.
// The project name is fixed at construction; each Start call runs one build
// of that project with per-request environment overrides.
type CodeBuildExecutor struct {
	client  codeBuildAPI
	project string
}

// NewCodeBuildExecutor creates an executor bound to the given CodeBuild project.
func NewCodeBuildExecutor(cfg aws.Config, project string) *CodeBuildExecutor {
	return &CodeBuildExecutor{
		client:  codebuild.NewFromConfig(cfg),
		project: project,
	}
}

// Start begins a new build of the configured project.
func (e *CodeBuildExecutor) Start(ctx context.Context, env map[string]string) (string, error) {
	overrides := make([]cbtypes.EnvironmentVariable, 0, len(env))
	for name, value := range env {
		overrides = append(overrides, cbtypes.EnvironmentVariable{
			Name:  aws.String(name),
			Value: aws.String(value),
			Type:  cbtypes.EnvironmentVariableTypePlaintext,
		})
	}

	out, err := e.client.StartBuild(ctx, &codebuild.StartBuildInput{
		ProjectName:                  aws.String(e.project),
		EnvironmentVariablesOverride: overrides,
	})
	if err != nil {
		return "", fmt.Errorf("failed to start build of project %q: %w", e.project, err)
	}
	if out.Build == nil || out.Build.Id == nil {
		return "", fmt.Errorf("start build of project %q returned no build id", e.project)
	}

	return *out.Build.Id, nil
}

// Status reports the current phase of a build.
func (e *CodeBuildExecutor) Status(ctx context.Context, handle string) (cloud.BuildPhase, error) {
	out, err := e.client.BatchGetBuilds(ctx, &codebuild.BatchGetBuildsInput{
		Ids: []string{handle},
	})
	if err != nil {
		return "", fmt.Errorf("failed to get status of build %q: %w", handle, err)
	}
	if len(out.Builds) == 0 {
		return "", fmt.Errorf("build %q not found", handle)
	}

	return mapBuildStatus(out.Builds[0].BuildStatus), nil
}

// mapBuildStatus folds the CodeBuild status set onto the executor phases.
// Anything that is neither in progress nor succeeded (FAILED, FAULT, STOPPED,
// TIMED_OUT) is reported as failed.
func mapBuildStatus(status cbtypes.StatusType) cloud.BuildPhase {
	switch status {
	case cbtypes.StatusTypeInProgress:
		return cloud.BuildInProgress
	case cbtypes.StatusTypeSucceeded:
		return cloud.BuildSucceeded
	default:
		return cloud.BuildFailed
	}
}
