package stack

import (
	"context"
	"fmt"

	"github.com/descry-io/descry/internal/ir"
	"github.com/descry-io/descry/internal/secrets"
)

// baseResources is the topology-independent slice of the platform:
// networking, registry, storage, logs, database and the conditional secret
// parameters. Named fields let topology builders wire references without
// scanning the list.
type baseResources struct {
	vpc        *ir.Resource
	igw        *ir.Resource
	routeTable *ir.Resource
	subnets    []*ir.Resource
	appSG      *ir.Resource
	repo       *ir.Resource
	assets     *ir.Resource
	logGroup   *ir.Resource
	dbSubnets  *ir.Resource
	db         *ir.Resource
	r2         *ir.Resource
	params     []*ir.Resource

	list []*ir.Resource
}

func (b *baseResources) all() []*ir.Resource {
	return append([]*ir.Resource(nil), b.list...)
}

// secretParam returns the materialized parameter for a secret, or nil.
func (b *baseResources) secretParam(prefix, name string) *ir.Resource {
	return secrets.Parameter(b.params, prefix, name)
}

func (b *Builder) buildBase(ctx context.Context) *baseResources {
	cfg := b.cfg
	prefix := cfg.Prefix()
	// GetOr only falls back on error; an empty success still needs the
	// static suffixes.
	zones := b.lookups.Zones.GetOr(ctx, nil)
	if len(zones) == 0 {
		zones = []string{cfg.Region + "a", cfg.Region + "b"}
	}

	base := &baseResources{}
	add := func(res *ir.Resource) *ir.Resource {
		base.list = append(base.list, res)
		return res
	}

	base.vpc = add(&ir.Resource{
		Type:     "aws:EC2.Vpc",
		Name:     "main",
		Provider: "aws",
		Properties: map[string]any{
			"cidrBlock":          cfg.Network.VpcCidr,
			"enableDnsSupport":   true,
			"enableDnsHostnames": true,
			"tags":               b.tags("vpc"),
		},
	})

	base.igw = add(&ir.Resource{
		Type:     "aws:EC2.InternetGateway",
		Name:     "main",
		Provider: "aws",
		Properties: map[string]any{
			"vpcId": base.vpc.Ref("id"),
			"tags":  b.tags("igw"),
		},
	})

	base.routeTable = add(&ir.Resource{
		Type:     "aws:EC2.RouteTable",
		Name:     "public",
		Provider: "aws",
		Properties: map[string]any{
			"vpcId": base.vpc.Ref("id"),
			"routes": []any{
				map[string]any{
					"destinationCidrBlock": "0.0.0.0/0",
					"gatewayId":            base.igw.Ref("id"),
				},
			},
			"tags": b.tags("public-rt"),
		},
	})

	for i, cidr := range cfg.Network.SubnetCidrs {
		name := fmt.Sprintf("public-%c", 'a'+i)
		subnet := add(&ir.Resource{
			Type:     "aws:EC2.Subnet",
			Name:     name,
			Provider: "aws",
			Properties: map[string]any{
				"vpcId":               base.vpc.Ref("id"),
				"cidrBlock":           cidr,
				"availabilityZone":    zones[i%len(zones)],
				"mapPublicIpOnLaunch": true,
				"routeTableId":        base.routeTable.Ref("id"),
				"tags":                b.tags(name),
			},
		})
		base.subnets = append(base.subnets, subnet)
	}

	// Ingress rules are topology-specific; builders fill them in.
	base.appSG = add(&ir.Resource{
		Type:     "aws:EC2.SecurityGroup",
		Name:     "app",
		Provider: "aws",
		Properties: map[string]any{
			"groupName":   prefix + "-app",
			"description": "application traffic",
			"vpcId":       base.vpc.Ref("id"),
			"egress": []any{
				map[string]any{
					"fromPort":   0,
					"toPort":     0,
					"protocol":   "-1",
					"cidrBlocks": []any{"0.0.0.0/0"},
				},
			},
			"tags": b.tags("app-sg"),
		},
	})

	base.repo = add(&ir.Resource{
		Type:     "aws:ECR.Repository",
		Name:     "app",
		Provider: "aws",
		Properties: map[string]any{
			"repositoryName":     cfg.Image.Repository,
			"imageTagMutability": "IMMUTABLE",
		},
	})

	base.assets = add(&ir.Resource{
		Type:     "aws:S3.Bucket",
		Name:     "assets",
		Provider: "aws",
		Properties: map[string]any{
			"bucketName": prefix + "-assets",
			"versioning": true,
			"tags":       b.tags("assets"),
		},
	})

	base.logGroup = add(&ir.Resource{
		Type:     "aws:CloudWatch.LogGroup",
		Name:     "app",
		Provider: "aws",
		Properties: map[string]any{
			"logGroupName":    fmt.Sprintf("/%s/%s/app", cfg.Project, cfg.Environment),
			"retentionInDays": 30,
		},
	})

	base.params = secrets.Materialize(cfg.Project, cfg.Environment, cfg.Secrets)
	for _, p := range base.params {
		add(p)
	}

	subnetRefs := make([]any, len(base.subnets))
	for i, s := range base.subnets {
		subnetRefs[i] = s.Ref("id")
	}

	base.dbSubnets = add(&ir.Resource{
		Type:     "aws:RDS.DBSubnetGroup",
		Name:     "main",
		Provider: "aws",
		Properties: map[string]any{
			"name":      prefix + "-db",
			"subnetIds": subnetRefs,
		},
	})

	dbProps := map[string]any{
		"identifier":       prefix + "-db",
		"engine":           cfg.Database.Engine,
		"engineVersion":    cfg.Database.EngineVersion,
		"instanceClass":    cfg.Database.InstanceClass,
		"allocatedStorage": cfg.Database.AllocatedStorage,
		"dbName":           cfg.Database.Name,
		"masterUsername":   cfg.Database.Username,
		"dbSubnetGroup":    base.dbSubnets.Ref("name"),
		"securityGroupIds": []any{base.appSG.Ref("id")},
	}
	// The password reaches the database through its write-only parameter;
	// without one, credential management is delegated to AWS.
	if param := base.secretParam(prefix, "databasePassword"); param != nil {
		dbProps["masterUserPassword"] = param.Ref("value")
	} else {
		dbProps["manageMasterUserPassword"] = true
	}
	base.db = add(&ir.Resource{
		Type:       "aws:RDS.Instance",
		Name:       "main",
		Provider:   "aws",
		Properties: dbProps,
	})

	base.r2 = add(&ir.Resource{
		Type:     "cloudflare:R2.Bucket",
		Name:     "media",
		Provider: "cloudflare",
		Properties: map[string]any{
			"accountId": cfg.Cloudflare.AccountID,
			"name":      prefix + "-media",
		},
	})

	return base
}

// tags is the common tag set stamped on taggable AWS resources.
func (b *Builder) tags(role string) map[string]any {
	return map[string]any{
		"Name":        b.cfg.Prefix() + "-" + role,
		"Project":     b.cfg.Project,
		"Environment": b.cfg.Environment,
	}
}
