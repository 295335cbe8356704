// Package awsmeta resolves account-level values the descriptor build needs
// but does not own: the caller's account id, the current Amazon Linux AMI
// and the region's availability zones. Each lookup is a lazy cell resolved
// at most once per build; failures are recovered by the callers with
// configured fallbacks.
package awsmeta

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/descry-io/descry/internal/future"
)

// amiParameter is the SSM public parameter publishing the latest Amazon
// Linux 2023 AMI for the current region.
const amiParameter = "/aws/service/ami-amazon-linux-latest/al2023-ami-kernel-default-x86_64"

// Lookups bundles the deferred account-level values.
type Lookups struct {
	Region    string
	AccountID *future.Cell[string]
	AmiID     *future.Cell[string]
	Zones     *future.Cell[[]string]
}

// New builds lookups backed by live AWS clients using the default
// credential chain. No call is made until a cell is first resolved.
func New(ctx context.Context, region string) (*Lookups, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	stsClient := sts.NewFromConfig(cfg)
	ssmClient := ssm.NewFromConfig(cfg)
	ec2Client := ec2.NewFromConfig(cfg)

	return &Lookups{
		Region: region,
		AccountID: future.New(func(ctx context.Context) (string, error) {
			out, err := stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
			if err != nil {
				return "", fmt.Errorf("failed to get caller identity: %w", err)
			}
			return aws.ToString(out.Account), nil
		}),
		AmiID: future.New(func(ctx context.Context) (string, error) {
			out, err := ssmClient.GetParameter(ctx, &ssm.GetParameterInput{
				Name: aws.String(amiParameter),
			})
			if err != nil {
				return "", fmt.Errorf("failed to look up AMI parameter: %w", err)
			}
			return aws.ToString(out.Parameter.Value), nil
		}),
		Zones: future.New(func(ctx context.Context) ([]string, error) {
			out, err := ec2Client.DescribeAvailabilityZones(ctx, &ec2.DescribeAvailabilityZonesInput{
				Filters: []ec2types.Filter{
					{Name: aws.String("state"), Values: []string{"available"}},
				},
			})
			if err != nil {
				return nil, fmt.Errorf("failed to describe availability zones: %w", err)
			}
			zones := make([]string, 0, len(out.AvailabilityZones))
			for _, z := range out.AvailabilityZones {
				zones = append(zones, aws.ToString(z.ZoneName))
			}
			return zones, nil
		}),
	}, nil
}

// Static builds pre-resolved lookups for offline builds and tests.
// Empty values resolve to the callers' fallbacks.
func Static(region, accountID, amiID string, zones []string) *Lookups {
	if len(zones) == 0 {
		zones = []string{region + "a", region + "b"}
	}
	return &Lookups{
		Region:    region,
		AccountID: staticCell(accountID, "account id"),
		AmiID:     staticCell(amiID, "AMI id"),
		Zones:     future.Of(zones),
	}
}

// staticCell wraps a fixed value, or a failing cell when the value is empty
// so GetOr falls through to the caller's fallback.
func staticCell(v, what string) *future.Cell[string] {
	if v == "" {
		return future.New(func(context.Context) (string, error) {
			return "", fmt.Errorf("no static %s configured", what)
		})
	}
	return future.Of(v)
}

// RegistryURL derives the account's ECR registry hostname from the account
// id cell.
func (l *Lookups) RegistryURL() *future.Cell[string] {
	region := l.Region
	return future.Map(l.AccountID, func(account string) (string, error) {
		if account == "" {
			return "", fmt.Errorf("account id unavailable")
		}
		return fmt.Sprintf("%s.dkr.ecr.%s.amazonaws.com", account, region), nil
	})
}
