package aws

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/smithy-go"

	"github.com/stackrelay/stackrelay/pkg/cloud"
)

// cloudFormationAPI is the subset of the CloudFormation client used by the query.
type cloudFormationAPI interface {
	DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
	DeleteStack(ctx context.Context, params *cloudformation.DeleteStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DeleteStackOutput, error)
}

// CloudFormationQuery implements cloud.StackQuery on top of AWS CloudFormation.
type CloudFormationQuery struct {
	client cloudFormationAPI
}

// NewCloudFormationQuery creates a stack query backed by CloudFormation.
func NewCloudFormationQuery(cfg aws.Config) *CloudFormationQuery {
	return &CloudFormationQuery{
		client: cloudformation.NewFromConfig(cfg),
	}
}

// Describe returns the current status and outputs of a stack.
func (q *CloudFormationQuery) Describe(ctx context.Context, stackName string) (*cloud.StackDescription, error) {
	out, err := q.client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		if isStackMissing(err) {
			return nil, fmt.Errorf("describe stack %q: %w", stackName, cloud.ErrStackNotFound)
		}
		return nil, fmt.Errorf("failed to describe stack %q: %w", stackName, err)
	}
	if len(out.Stacks) == 0 {
		return nil, fmt.Errorf("describe stack %q: %w", stackName, cloud.ErrStackNotFound)
	}

	stack := out.Stacks[0]
	outputs := make(map[string]string, len(stack.Outputs))
	for _, o := range stack.Outputs {
		if o.OutputKey != nil && o.OutputValue != nil {
			outputs[*o.OutputKey] = *o.OutputValue
		}
	}

	return &cloud.StackDescription{
		Name:    stackName,
		Status:  string(stack.StackStatus),
		Outputs: outputs,
	}, nil
}

// Delete requests teardown of a stack.
func (q *CloudFormationQuery) Delete(ctx context.Context, stackName string) error {
	_, err := q.client.DeleteStack(ctx, &cloudformation.DeleteStackInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		if isStackMissing(err) {
			return fmt.Errorf("delete stack %q: %w", stackName, cloud.ErrStackNotFound)
		}
		return fmt.Errorf("failed to delete stack %q: %w", stackName, err)
	}

	return nil
}

// isStackMissing detects the CloudFormation "stack does not exist" error,
// which the API surfaces as a ValidationError rather than a dedicated code.
func isStackMissing(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.ErrorCode() == "ValidationError" &&
		strings.Contains(apiErr.ErrorMessage(), "does not exist")
}
