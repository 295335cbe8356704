package image

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ecr"
	ecrtypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
)

type fakeECR struct {
	out *ecr.DescribeImagesOutput
	err error
}

func (f *fakeECR) DescribeImages(ctx context.Context, params *ecr.DescribeImagesInput, optFns ...func(*ecr.Options)) (*ecr.DescribeImagesOutput, error) {
	return f.out, f.err
}

func TestExists_FoundInRegistry(t *testing.T) {
	c := NewCheckerWith(&fakeECR{
		out: &ecr.DescribeImagesOutput{
			ImageDetails: []ecrtypes.ImageDetail{{}},
		},
	}, nil)

	assert.True(t, c.Exists(context.Background(), "acme/app", "abc1234"))
}

func TestExists_ImageNotFound(t *testing.T) {
	c := NewCheckerWith(&fakeECR{
		err: &smithy.GenericAPIError{Code: "ImageNotFoundException", Message: "no such image"},
	}, nil)

	assert.False(t, c.Exists(context.Background(), "acme/app", "abc1234"))
}

func TestExists_RepositoryNotFound(t *testing.T) {
	c := NewCheckerWith(&fakeECR{
		err: &smithy.GenericAPIError{Code: "RepositoryNotFoundException", Message: "no such repository"},
	}, nil)

	assert.False(t, c.Exists(context.Background(), "acme/app", "abc1234"))
}

func TestExists_RegistryUnreachable(t *testing.T) {
	// A transport-level failure is recovered, not propagated.
	c := NewCheckerWith(&fakeECR{err: errors.New("dial tcp: connection refused")}, nil)

	assert.False(t, c.Exists(context.Background(), "acme/app", "abc1234"))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(&smithy.GenericAPIError{Code: "ImageNotFoundException"}))
	assert.True(t, isNotFound(&smithy.GenericAPIError{Code: "RepositoryNotFoundException"}))
	assert.False(t, isNotFound(&smithy.GenericAPIError{Code: "AccessDeniedException"}))
	assert.False(t, isNotFound(errors.New("plain error")))
}
