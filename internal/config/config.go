// Package config defines the immutable build configuration. All knobs live
// in one struct passed into the builder; nothing is read from globals after
// load time.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Topology names a supported deployment variant.
const (
	TopologyEC2Tunnel  = "ec2-tunnel"
	TopologyFargateALB = "fargate-alb"
	TopologyHybrid     = "hybrid"
)

// Config is the complete input to a descriptor build.
type Config struct {
	Project     string `pkl:"project" json:"project"`
	Environment string `pkl:"environment" json:"environment"`
	Topology    string `pkl:"topology" json:"topology"`
	Region      string `pkl:"region" json:"region"`

	// Domain is the apex zone managed in Cloudflare; Hostname the record
	// under it that fronts the application ("app" -> app.example.com).
	Domain   string `pkl:"domain" json:"domain"`
	Hostname string `pkl:"hostname" json:"hostname"`

	Cloudflare Cloudflare `pkl:"cloudflare" json:"cloudflare"`
	Network    Network    `pkl:"network" json:"network"`
	Instance   Instance   `pkl:"instance" json:"instance"`
	Database   Database   `pkl:"database" json:"database"`
	Service    Service    `pkl:"service" json:"service"`
	Image      Image      `pkl:"image" json:"image"`

	// CertificateArn is the ACM certificate for the ALB HTTPS listener.
	// Required for the fargate-alb topology only.
	CertificateArn string `pkl:"certificateArn" json:"certificateArn"`

	// Secrets holds optional secret values by recognized name. Values are
	// excluded from the config hash and never logged or emitted outside the
	// SSM parameter declarations themselves.
	Secrets map[string]string `pkl:"secrets" json:"-"`
}

type Cloudflare struct {
	AccountID string `pkl:"accountId" json:"accountId"`
	ZoneID    string `pkl:"zoneId" json:"zoneId"`
}

type Network struct {
	VpcCidr     string   `pkl:"vpcCidr" json:"vpcCidr"`
	SubnetCidrs []string `pkl:"subnetCidrs" json:"subnetCidrs"`
}

type Instance struct {
	Type string `pkl:"type" json:"type"`
	// AmiID pins the machine image used when the live AMI lookup fails.
	AmiID        string `pkl:"amiId" json:"amiId"`
	KeyName      string `pkl:"keyName" json:"keyName"`
	RootVolumeGb int    `pkl:"rootVolumeGb" json:"rootVolumeGb"`
}

type Database struct {
	Engine           string `pkl:"engine" json:"engine"`
	EngineVersion    string `pkl:"engineVersion" json:"engineVersion"`
	InstanceClass    string `pkl:"instanceClass" json:"instanceClass"`
	AllocatedStorage int    `pkl:"allocatedStorage" json:"allocatedStorage"`
	Name             string `pkl:"name" json:"name"`
	Username         string `pkl:"username" json:"username"`
}

type Service struct {
	ContainerPort int      `pkl:"containerPort" json:"containerPort"`
	Cpu           int      `pkl:"cpu" json:"cpu"`
	Memory        int      `pkl:"memory" json:"memory"`
	DesiredCount  int      `pkl:"desiredCount" json:"desiredCount"`
	WorkerCommand []string `pkl:"workerCommand" json:"workerCommand,omitempty"`
}

type Image struct {
	Repository string `pkl:"repository" json:"repository"`
	// TagOverride pins the deployed tag explicitly; it wins over git
	// resolution when set.
	TagOverride string `pkl:"tagOverride" json:"tagOverride"`
	DefaultTag  string `pkl:"defaultTag" json:"defaultTag"`
	// ProjectPath is the application checkout the commit hash is read from;
	// FallbackPath is tried when ProjectPath has no git history.
	ProjectPath  string `pkl:"projectPath" json:"projectPath"`
	FallbackPath string `pkl:"fallbackPath" json:"fallbackPath"`
}

// Validate checks required fields and topology-specific requirements.
func (c *Config) Validate() error {
	required := map[string]string{
		"project":           c.Project,
		"environment":       c.Environment,
		"region":            c.Region,
		"domain":            c.Domain,
		"cloudflare.zoneId": c.Cloudflare.ZoneID,
		"image.repository":  c.Image.Repository,
	}
	for field, val := range required {
		if val == "" {
			return fmt.Errorf("missing required config field %s", field)
		}
	}

	switch c.Topology {
	case TopologyEC2Tunnel, TopologyHybrid:
		if c.Instance.Type == "" {
			return fmt.Errorf("topology %s requires instance.type", c.Topology)
		}
	case TopologyFargateALB:
		if c.CertificateArn == "" {
			return fmt.Errorf("topology %s requires certificateArn for the HTTPS listener", c.Topology)
		}
	default:
		return fmt.Errorf("unknown topology %q (want %s, %s or %s)",
			c.Topology, TopologyEC2Tunnel, TopologyFargateALB, TopologyHybrid)
	}

	return nil
}

// FQDN returns the fully qualified application hostname.
func (c *Config) FQDN() string {
	if c.Hostname == "" {
		return c.Domain
	}
	return c.Hostname + "." + c.Domain
}

// Prefix returns the "<project>-<environment>" resource name prefix.
func (c *Config) Prefix() string {
	return c.Project + "-" + c.Environment
}

// Hash returns a hex sha256 over the canonical JSON form of the config.
// Secret values are excluded, so rotating a secret does not change the hash.
func (c *Config) Hash() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to hash config: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
