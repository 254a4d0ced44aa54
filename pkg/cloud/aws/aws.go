// Package aws provides AWS-backed implementations of the cloud collaborator
// interfaces: CodeBuild as the build executor and CloudFormation as the stack
// query.
package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
)

// LoadConfig builds an aws.Config from the default credential chain.
// An empty region keeps the chain's resolved region.
func LoadConfig(ctx context.Context, region string) (aws.Config, error) {
	opts := []func(*awscfg.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awscfg.WithRegion(region))
	}

	cfg, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return cfg, nil
}
