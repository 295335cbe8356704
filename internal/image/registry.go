package image

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	ecrtypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"
	"github.com/aws/smithy-go"
	"github.com/docker/docker/client"

	"github.com/descry-io/descry/internal/logging"
)

// ecrAPI is the slice of the ECR client the checker uses.
type ecrAPI interface {
	DescribeImages(ctx context.Context, params *ecr.DescribeImagesInput, optFns ...func(*ecr.Options)) (*ecr.DescribeImagesOutput, error)
}

// Checker verifies that a {repository, tag} pair exists before it is baked
// into the descriptor. The check is advisory: every failure degrades to a
// warning, never an aborted build.
type Checker struct {
	ecr ecrAPI
	// newDockerClient is swappable for tests; nil disables the local
	// daemon fallback.
	newDockerClient func() (client.APIClient, error)
}

// NewChecker builds a checker against the live ECR API using the default
// credential chain, with the local Docker daemon as fallback for images
// that have not been pushed yet.
func NewChecker(ctx context.Context, region string) (*Checker, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &Checker{
		ecr: ecr.NewFromConfig(cfg),
		newDockerClient: func() (client.APIClient, error) {
			return client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		},
	}, nil
}

// NewCheckerWith builds a checker from explicit collaborators (tests).
func NewCheckerWith(api ecrAPI, docker func() (client.APIClient, error)) *Checker {
	return &Checker{ecr: api, newDockerClient: docker}
}

// Exists reports whether repository:tag is present in ECR, falling back to
// the local Docker daemon when the registry says no or cannot be reached.
func (c *Checker) Exists(ctx context.Context, repository, tag string) bool {
	out, err := c.ecr.DescribeImages(ctx, &ecr.DescribeImagesInput{
		RepositoryName: aws.String(repository),
		ImageIds: []ecrtypes.ImageIdentifier{
			{ImageTag: aws.String(tag)},
		},
	})
	if err == nil && len(out.ImageDetails) > 0 {
		return true
	}

	if err != nil && !isNotFound(err) {
		logging.Warn("registry check failed, trying local daemon",
			"repository", repository, "tag", tag, "error", err)
	}

	return c.existsLocally(ctx, repository, tag)
}

// existsLocally checks the local Docker daemon for the image.
func (c *Checker) existsLocally(ctx context.Context, repository, tag string) bool {
	if c.newDockerClient == nil {
		return false
	}
	cli, err := c.newDockerClient()
	if err != nil {
		logging.Warn("failed to create Docker client", "error", err)
		return false
	}
	defer cli.Close()

	_, _, err = cli.ImageInspectWithRaw(ctx, repository+":"+tag)
	if err != nil {
		if !client.IsErrNotFound(err) {
			logging.Warn("local image inspection failed",
				"image", repository+":"+tag, "error", err)
		}
		return false
	}
	return true
}

// isNotFound classifies ECR "missing image or repository" API errors.
func isNotFound(err error) bool {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "ImageNotFoundException", "RepositoryNotFoundException":
			return true
		}
	}
	return false
}
