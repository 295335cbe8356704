// Package verify runs read-only preflight checks against Cloudflare and AWS
// so misconfiguration surfaces before a descriptor is handed to the engine.
// Every check is advisory; a failed check never blocks the build.
package verify

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/acm"
	acmtypes "github.com/aws/aws-sdk-go-v2/service/acm/types"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	cf "github.com/cloudflare/cloudflare-go"

	"github.com/descry-io/descry/internal/config"
	"github.com/descry-io/descry/internal/logging"
)

// tokenEnvVar names the Cloudflare API token variable; the token itself is
// never logged.
const tokenEnvVar = "CLOUDFLARE_API_TOKEN"

// Result is the outcome of a single preflight check.
type Result struct {
	Name   string
	OK     bool
	Detail string
}

// Verifier holds the clients for the preflight checks. Clients that could
// not be constructed are left nil and their checks are skipped.
type Verifier struct {
	cfg *config.Config
	api *cf.API
	acm *acm.Client
	ecr *ecr.Client
}

// New builds a verifier for the given configuration. Missing credentials
// degrade to skipped checks rather than an error.
func New(ctx context.Context, cfg *config.Config) (*Verifier, error) {
	v := &Verifier{cfg: cfg}

	if token := os.Getenv(tokenEnvVar); token != "" {
		api, err := cf.NewWithAPIToken(token)
		if err != nil {
			return nil, fmt.Errorf("failed to create cloudflare client: %w", err)
		}
		v.api = api
	} else {
		logging.Warn("cloudflare checks skipped", "reason", tokenEnvVar+" not set")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		logging.Warn("aws checks skipped", "error", err)
	} else {
		v.acm = acm.NewFromConfig(awsCfg)
		v.ecr = ecr.NewFromConfig(awsCfg)
	}

	return v, nil
}

// Run executes every applicable check and returns the results in a fixed
// order.
func (v *Verifier) Run(ctx context.Context) []Result {
	var results []Result

	results = append(results, v.checkCloudflareToken(ctx))
	results = append(results, v.checkZone(ctx))
	if v.cfg.Topology == config.TopologyFargateALB {
		results = append(results, v.checkCertificate(ctx))
	}
	results = append(results, v.checkRepository(ctx))

	return results
}

func skipped(name, reason string) Result {
	return Result{Name: name, OK: true, Detail: "skipped: " + reason}
}

func (v *Verifier) checkCloudflareToken(ctx context.Context) Result {
	const name = "cloudflare token"
	if v.api == nil {
		return skipped(name, tokenEnvVar+" not set")
	}

	body, err := v.api.VerifyAPIToken(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("verification failed: %v", err)}
	}
	if body.Status != "active" {
		return Result{Name: name, Detail: "token status is " + body.Status}
	}
	return Result{Name: name, OK: true, Detail: "active"}
}

func (v *Verifier) checkZone(ctx context.Context) Result {
	const name = "cloudflare zone"
	if v.api == nil {
		return skipped(name, tokenEnvVar+" not set")
	}

	zone, err := v.api.ZoneDetails(ctx, v.cfg.Cloudflare.ZoneID)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("lookup failed: %v", err)}
	}
	if zone.Name != v.cfg.Domain {
		return Result{Name: name, Detail: fmt.Sprintf("zone %s is %q, config domain is %q", v.cfg.Cloudflare.ZoneID, zone.Name, v.cfg.Domain)}
	}
	return Result{Name: name, OK: true, Detail: zone.Name}
}

func (v *Verifier) checkCertificate(ctx context.Context) Result {
	const name = "acm certificate"
	if v.acm == nil {
		return skipped(name, "no aws credentials")
	}

	out, err := v.acm.DescribeCertificate(ctx, &acm.DescribeCertificateInput{
		CertificateArn: aws.String(v.cfg.CertificateArn),
	})
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("lookup failed: %v", err)}
	}
	status := out.Certificate.Status
	if status != acmtypes.CertificateStatusIssued {
		return Result{Name: name, Detail: "certificate status is " + string(status)}
	}
	return Result{Name: name, OK: true, Detail: "issued"}
}

func (v *Verifier) checkRepository(ctx context.Context) Result {
	const name = "ecr repository"
	if v.ecr == nil {
		return skipped(name, "no aws credentials")
	}

	repo := v.cfg.Image.Repository
	_, err := v.ecr.DescribeRepositories(ctx, &ecr.DescribeRepositoriesInput{
		RepositoryNames: []string{repo},
	})
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("repository %s not found: %v", repo, err)}
	}
	return Result{Name: name, OK: true, Detail: repo}
}
