package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/smithy-go"

	"github.com/stackrelay/stackrelay/pkg/cloud"
)

type fakeCloudFormation struct {
	describeOut *cloudformation.DescribeStacksOutput
	describeErr error
	deleteErr   error
	deleted     []string
}

func (f *fakeCloudFormation) DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error) {
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	return f.describeOut, nil
}

func (f *fakeCloudFormation) DeleteStack(ctx context.Context, params *cloudformation.DeleteStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DeleteStackOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(params.StackName))
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	return &cloudformation.DeleteStackOutput{}, nil
}

func notExistErr() error {
	return &smithy.GenericAPIError{
		Code:    "ValidationError",
		Message: "Stack with id workforce-app does not exist",
	}
}

func TestDescribeMapsOutputs(t *testing.T) {
	fake := &fakeCloudFormation{
		describeOut: &cloudformation.DescribeStacksOutput{
			Stacks: []cftypes.Stack{{
				StackName:   aws.String("workforce-app"),
				StackStatus: cftypes.StackStatusUpdateCompleteCleanupInProgress,
				Outputs: []cftypes.Output{
					{OutputKey: aws.String("CloudfrontUrl"), OutputValue: aws.String("https://d1234.cloudfront.net")},
					{OutputKey: aws.String("Orphan"), OutputValue: nil},
				},
			}},
		},
	}
	q := &CloudFormationQuery{client: fake}

	desc, err := q.Describe(context.Background(), "workforce-app")
	if err != nil {
		t.Fatalf("Describe() error: %v", err)
	}
	if desc.Status != "UPDATE_COMPLETE_CLEANUP_IN_PROGRESS" {
		t.Errorf("status = %q", desc.Status)
	}
	if desc.Outputs["CloudfrontUrl"] != "https://d1234.cloudfront.net" {
		t.Errorf("outputs = %v", desc.Outputs)
	}
	if _, ok := desc.Outputs["Orphan"]; ok {
		t.Error("outputs without values should be dropped")
	}
}

func TestDescribeMissingStack(t *testing.T) {
	q := &CloudFormationQuery{client: &fakeCloudFormation{describeErr: notExistErr()}}
	_, err := q.Describe(context.Background(), "gone")
	if !errors.Is(err, cloud.ErrStackNotFound) {
		t.Errorf("expected ErrStackNotFound, got %v", err)
	}

	q = &CloudFormationQuery{client: &fakeCloudFormation{describeOut: &cloudformation.DescribeStacksOutput{}}}
	_, err = q.Describe(context.Background(), "empty")
	if !errors.Is(err, cloud.ErrStackNotFound) {
		t.Errorf("empty describe result should map to ErrStackNotFound, got %v", err)
	}
}

func TestDescribeOtherError(t *testing.T) {
	q := &CloudFormationQuery{client: &fakeCloudFormation{describeErr: errors.New("throttled")}}
	_, err := q.Describe(context.Background(), "workforce-app")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, cloud.ErrStackNotFound) {
		t.Error("unrelated errors must not map to ErrStackNotFound")
	}
}

func TestDeleteStack(t *testing.T) {
	fake := &fakeCloudFormation{}
	q := &CloudFormationQuery{client: fake}

	if err := q.Delete(context.Background(), "workforce-app"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if len(fake.deleted) != 1 || fake.deleted[0] != "workforce-app" {
		t.Errorf("deleted = %v", fake.deleted)
	}
}

func TestDeleteMissingStack(t *testing.T) {
	q := &CloudFormationQuery{client: &fakeCloudFormation{deleteErr: notExistErr()}}
	err := q.Delete(context.Background(), "gone")
	if !errors.Is(err, cloud.ErrStackNotFound) {
		t.Errorf("expected ErrStackNotFound, got %v", err)
	}
}
