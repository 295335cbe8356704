package stack

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/descry-io/descry/internal/awsmeta"
	"github.com/descry-io/descry/internal/config"
	"github.com/descry-io/descry/internal/future"
	"github.com/descry-io/descry/internal/image"
	"github.com/descry-io/descry/internal/ir"
)

func testConfig(topology string) *config.Config {
	cfg := &config.Config{
		Project:     "demo",
		Environment: "prod",
		Topology:    topology,
		Region:      "us-east-1",
		Domain:      "example.com",
		Hostname:    "app",
		Cloudflare:  config.Cloudflare{AccountID: "cf-acct", ZoneID: "cf-zone"},
		Instance:    config.Instance{Type: "t3.small", AmiID: "ami-pinned"},
		Image:       config.Image{Repository: "demo"},
	}
	if topology == config.TopologyFargateALB {
		cfg.CertificateArn = "arn:aws:acm:us-east-1:123456789012:certificate/abc"
	}
	config.ApplyDefaults(cfg)
	return cfg
}

func testLookups() *awsmeta.Lookups {
	return awsmeta.Static("us-east-1", "123456789012", "ami-resolved", nil)
}

func gitTag() image.Resolution {
	return image.Resolution{Tag: "abc1234", Source: image.SourceGit}
}

func build(t *testing.T, cfg *config.Config) *ir.Descriptor {
	t.Helper()
	d, err := New(cfg, testLookups(), gitTag()).Build(context.Background())
	require.NoError(t, err)
	return d
}

func TestBuildEC2TunnelWithoutSecrets(t *testing.T) {
	cfg := testConfig(config.TopologyEC2Tunnel)
	d := build(t, cfg)

	// No secret value supplied, no parameter declared.
	for _, res := range d.Resources {
		assert.NotEqual(t, "aws:SSM.Parameter", res.Type, "unexpected parameter %s", res.Addr())
	}

	instance := d.Resource("aws:EC2.Instance.app")
	require.NotNil(t, instance)
	script, ok := instance.Properties["userData"].(string)
	require.True(t, ok)
	assert.NotContains(t, script, "cloudflared")
	assert.NotContains(t, script, "SESSION_SECRET")
	assert.Contains(t, script, "${ptr://aws:RDS.Instance/main/endpoint}")
	assert.Equal(t, "base64", instance.Properties["userDataEncoding"])

	db := d.Resource("aws:RDS.Instance.main")
	require.NotNil(t, db)
	assert.Equal(t, true, db.Properties["manageMasterUserPassword"])
	assert.NotContains(t, db.Properties, "masterUserPassword")

	require.NotNil(t, d.Resource("cloudflare:Tunnel.app"))
	require.NotNil(t, d.Resource("cloudflare:DNS.Record.app"))

	assert.Equal(t, "abc1234", d.Metadata.Image.Tag)
	assert.Equal(t, "git", d.Metadata.Image.TagSource)
	assert.Equal(t, "123456789012.dkr.ecr.us-east-1.amazonaws.com", d.Metadata.Image.Registry)

	for _, key := range []string{"vpcId", "databaseEndpoint", "instanceId", "tunnelId", "publicUrl"} {
		assert.Contains(t, d.Outputs, key)
	}
	assert.Equal(t, "https://app.example.com", d.Outputs["publicUrl"])
}

func TestBuildEC2TunnelWithSecrets(t *testing.T) {
	cfg := testConfig(config.TopologyEC2Tunnel)
	cfg.Secrets = map[string]string{
		"databasePassword": "hunter2",
		"tunnelToken":      "tok-123",
	}
	d := build(t, cfg)

	dbParam := d.Resource("aws:SSM.Parameter.demo-prod-databasePassword")
	require.NotNil(t, dbParam)
	assert.Equal(t, "/demo/prod/databasePassword", dbParam.Properties["parameterName"])
	assert.Equal(t, "SecureString", dbParam.Properties["parameterType"])

	tunnelParam := d.Resource("aws:SSM.Parameter.demo-prod-tunnelToken")
	require.NotNil(t, tunnelParam)

	// The database takes its password through the parameter reference.
	db := d.Resource("aws:RDS.Instance.main")
	require.NotNil(t, db)
	assert.Equal(t, dbParam.Ref("value"), db.Properties["masterUserPassword"])
	assert.NotContains(t, db.Properties, "manageMasterUserPassword")

	instance := d.Resource("aws:EC2.Instance.app")
	require.NotNil(t, instance)
	assert.Contains(t, instance.DependsOn, dbParam.Addr())
	assert.Contains(t, instance.DependsOn, tunnelParam.Addr())

	script := instance.Properties["userData"].(string)
	assert.Contains(t, script, "cloudflared")
	assert.Contains(t, script, "/demo/prod/tunnelToken")
	assert.Contains(t, script, "/demo/prod/databasePassword")
}

// Secret values must reach the descriptor only inside their own parameter
// declarations, never inline anywhere else.
func TestSecretValuesStayInParameters(t *testing.T) {
	cfg := testConfig(config.TopologyEC2Tunnel)
	cfg.Secrets = map[string]string{
		"databasePassword": "plaintext-db-pw",
		"sessionSecret":    "plaintext-session",
		"tunnelToken":      "plaintext-token",
	}
	d := build(t, cfg)

	for _, res := range d.Resources {
		if res.Type == "aws:SSM.Parameter" {
			continue
		}
		data, err := json.Marshal(res)
		require.NoError(t, err)
		for _, val := range cfg.Secrets {
			assert.NotContains(t, string(data), val, "secret leaked into %s", res.Addr())
		}
	}
	data, err := json.Marshal(d.Outputs)
	require.NoError(t, err)
	for _, val := range cfg.Secrets {
		assert.NotContains(t, string(data), val)
	}
}

func TestBuildFargateALB(t *testing.T) {
	cfg := testConfig(config.TopologyFargateALB)
	cfg.Secrets = map[string]string{"databasePassword": "hunter2"}
	d := build(t, cfg)

	alb := d.Resource("aws:ELBv2.LoadBalancer.main")
	require.NotNil(t, alb)

	listener := d.Resource("aws:ELBv2.Listener.https")
	require.NotNil(t, listener)
	assert.Equal(t, cfg.CertificateArn, listener.Properties["certificateArn"])

	service := d.Resource("aws:ECS.Service.app")
	require.NotNil(t, service)
	assert.Contains(t, service.DependsOn, listener.Addr())

	// Tasks only accept traffic from the ALB security group.
	appSG := d.Resource("aws:EC2.SecurityGroup.app")
	require.NotNil(t, appSG)
	ingress := appSG.Properties["ingress"].([]any)
	require.Len(t, ingress, 1)
	rule := ingress[0].(map[string]any)
	assert.Equal(t, cfg.Service.ContainerPort, rule["fromPort"])

	taskDef := d.Resource("aws:ECS.TaskDefinition.app")
	require.NotNil(t, taskDef)
	container := taskDef.Properties["containerDefinitions"].([]any)[0].(map[string]any)
	secretRefs := container["secrets"].([]any)
	require.Len(t, secretRefs, 1)
	ref := secretRefs[0].(map[string]any)
	assert.Equal(t, "DATABASE_PASSWORD", ref["name"])
	assert.Equal(t, "ptr://aws:SSM.Parameter/demo-prod-databasePassword/arn", ref["valueFrom"])

	record := d.Resource("cloudflare:DNS.Record.app")
	require.NotNil(t, record)
	assert.Equal(t, alb.Ref("dnsName"), record.Properties["content"])

	assert.Nil(t, d.Resource("aws:EC2.Instance.app"))
	assert.Contains(t, d.Outputs, "loadBalancerDnsName")
	assert.Contains(t, d.Outputs, "clusterArn")
}

func TestBuildHybrid(t *testing.T) {
	cfg := testConfig(config.TopologyHybrid)
	d := build(t, cfg)

	require.NotNil(t, d.Resource("aws:EC2.Instance.app"))
	require.NotNil(t, d.Resource("cloudflare:Tunnel.app"))
	require.NotNil(t, d.Resource("aws:ECS.Cluster.main"))

	worker := d.Resource("aws:ECS.Service.worker")
	require.NotNil(t, worker)
	assert.NotContains(t, worker.Properties, "loadBalancers")

	workerDef := d.Resource("aws:ECS.TaskDefinition.worker")
	require.NotNil(t, workerDef)
	container := workerDef.Properties["containerDefinitions"].([]any)[0].(map[string]any)
	assert.Equal(t, []any{"worker"}, container["command"])
	assert.NotContains(t, container, "portMappings")

	assert.Nil(t, d.Resource("aws:ELBv2.LoadBalancer.main"))

	for _, key := range []string{"instanceId", "tunnelId", "clusterArn"} {
		assert.Contains(t, d.Outputs, key)
	}
}

// A ref inside a larger string (a policy document, a startup script) is
// only interpolated when wrapped as ${ptr://...}; a whole-string property
// may be a bare ref. Anything else ships to the provider as literal text.
func assertRefsInterpolable(t *testing.T, addr string, v any) {
	t.Helper()
	switch val := v.(type) {
	case string:
		if strings.HasPrefix(val, "ptr://") && !strings.ContainsAny(val, " \t\n\"{}") {
			return
		}
		for off := 0; ; {
			i := strings.Index(val[off:], "ptr://")
			if i < 0 {
				break
			}
			pos := off + i
			assert.True(t, pos >= 2 && val[pos-2:pos] == "${",
				"bare ptr:// ref inside string property of %s: %q", addr, val)
			off = pos + len("ptr://")
		}
	case map[string]any:
		for _, v := range val {
			assertRefsInterpolable(t, addr, v)
		}
	case []any:
		for _, v := range val {
			assertRefsInterpolable(t, addr, v)
		}
	}
}

func TestBuildRefsInsideStringsAreWrapped(t *testing.T) {
	for _, topology := range []string{
		config.TopologyEC2Tunnel, config.TopologyFargateALB, config.TopologyHybrid,
	} {
		t.Run(topology, func(t *testing.T) {
			cfg := testConfig(topology)
			cfg.Secrets = map[string]string{
				"databasePassword": "hunter2",
				"sessionSecret":    "s3cret",
				"tunnelToken":      "tok-123",
			}
			d := build(t, cfg)
			for _, res := range d.Resources {
				for _, v := range res.Properties {
					assertRefsInterpolable(t, res.Addr(), v)
				}
			}
		})
	}
}

func TestBuildPolicyDocumentsEmbedRefs(t *testing.T) {
	d := build(t, testConfig(config.TopologyEC2Tunnel))

	role := d.Resource("aws:IAM.Role.app")
	require.NotNil(t, role)
	policy, ok := role.Properties["inlinePolicy"].(string)
	require.True(t, ok)

	assert.Contains(t, policy, "${ptr://aws:CloudWatch.LogGroup/app/arn}")
	assert.Contains(t, policy, "${ptr://aws:S3.Bucket/assets/arn}")
	assert.NotContains(t, policy, `"ptr://`)
}

func TestBuildWithEmptyZoneList(t *testing.T) {
	cfg := testConfig(config.TopologyEC2Tunnel)
	lookups := testLookups()
	lookups.Zones = future.Of([]string{})

	d, err := New(cfg, lookups, gitTag()).Build(context.Background())
	require.NoError(t, err)

	subnet := d.Resource("aws:EC2.Subnet.public-a")
	require.NotNil(t, subnet)
	assert.Equal(t, "us-east-1a", subnet.Properties["availabilityZone"])
}

func TestBuildResourcesAreOrdered(t *testing.T) {
	d := build(t, testConfig(config.TopologyHybrid))

	index := make(map[string]int, len(d.Resources))
	for i, res := range d.Resources {
		index[res.Addr()] = i
	}

	assert.Less(t, index["aws:EC2.Vpc.main"], index["aws:EC2.Subnet.public-a"])
	assert.Less(t, index["aws:EC2.Subnet.public-a"], index["aws:EC2.Instance.app"])
	assert.Less(t, index["aws:RDS.DBSubnetGroup.main"], index["aws:RDS.Instance.main"])
	assert.Less(t, index["cloudflare:Tunnel.app"], index["cloudflare:DNS.Record.app"])
	assert.Less(t, index["aws:ECS.TaskDefinition.worker"], index["aws:ECS.Service.worker"])
}

func TestBuildDeterministic(t *testing.T) {
	cfg := testConfig(config.TopologyFargateALB)
	cfg.Secrets = map[string]string{"databasePassword": "hunter2", "sessionSecret": "s3cret"}

	first := build(t, cfg)
	second := build(t, cfg)

	assert.Equal(t, first, second)
}

func TestBuildUnknownTopology(t *testing.T) {
	cfg := testConfig(config.TopologyEC2Tunnel)
	cfg.Topology = "bare-metal"

	_, err := New(cfg, testLookups(), gitTag()).Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown topology")
}

func TestBuildWithoutAccountDefersRegistry(t *testing.T) {
	cfg := testConfig(config.TopologyEC2Tunnel)
	lookups := awsmeta.Static("us-east-1", "", "", nil)

	d, err := New(cfg, lookups, gitTag()).Build(context.Background())
	require.NoError(t, err)

	assert.Empty(t, d.Metadata.Image.Registry)

	instance := d.Resource("aws:EC2.Instance.app")
	require.NotNil(t, instance)
	script := instance.Properties["userData"].(string)
	assert.True(t, strings.Contains(script, "${ptr://aws:ECR.Repository/app/repositoryUrl}:abc1234"),
		"user data should defer the registry host to the engine")
}

func TestBuildUsesResolvedAmi(t *testing.T) {
	d := build(t, testConfig(config.TopologyEC2Tunnel))

	instance := d.Resource("aws:EC2.Instance.app")
	require.NotNil(t, instance)
	assert.Equal(t, "ami-resolved", instance.Properties["ami"])
}

func TestBuildFallsBackToPinnedAmi(t *testing.T) {
	cfg := testConfig(config.TopologyEC2Tunnel)
	lookups := awsmeta.Static("us-east-1", "123456789012", "", nil)

	d, err := New(cfg, lookups, gitTag()).Build(context.Background())
	require.NoError(t, err)

	instance := d.Resource("aws:EC2.Instance.app")
	require.NotNil(t, instance)
	assert.Equal(t, "ami-pinned", instance.Properties["ami"])
}
