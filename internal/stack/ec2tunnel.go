package stack

import (
	"context"

	"github.com/descry-io/descry/internal/ir"
	"github.com/descry-io/descry/internal/logging"
)

// buildEC2Tunnel declares the single-instance topology: the app container
// runs on one EC2 instance with no public ingress, fronted by a Cloudflare
// Tunnel. The instance is reachable for operators through SSM only.
func (b *Builder) buildEC2Tunnel(ctx context.Context, base *baseResources, fullImage string) ([]*ir.Resource, map[string]any, error) {
	resources, instance, err := b.buildInstance(ctx, base, fullImage)
	if err != nil {
		return nil, nil, err
	}

	tunnel, record := b.buildTunnelIngress()
	resources = append(resources, tunnel, record)

	outputs := map[string]any{
		"instanceId":       instance.Ref("id"),
		"instancePublicIp": instance.Ref("publicIp"),
		"tunnelId":         tunnel.Ref("id"),
	}
	return resources, outputs, nil
}

// buildInstance declares the IAM surface and the EC2 instance shared by the
// ec2-tunnel and hybrid topologies.
func (b *Builder) buildInstance(ctx context.Context, base *baseResources, fullImage string) ([]*ir.Resource, *ir.Resource, error) {
	cfg := b.cfg
	prefix := cfg.Prefix()

	role := newRole("app", prefix+"-app",
		assumeRolePolicy("ec2.amazonaws.com"),
		b.appAccessPolicy(base),
		[]any{"arn:aws:iam::aws:policy/AmazonSSMManagedInstanceCore"},
		b.tags("app-role"))

	profile := &ir.Resource{
		Type:     "aws:IAM.InstanceProfile",
		Name:     "app",
		Provider: "aws",
		Properties: map[string]any{
			"instanceProfileName": prefix + "-app",
			"role":                role.Ref("name"),
		},
	}

	ami := b.lookups.AmiID.GetOr(ctx, cfg.Instance.AmiID)
	if ami == "" {
		logging.Warn("no AMI id available from lookup or config; apply will fail until instance.amiId is set")
	}

	script, err := b.renderUserData(base, fullImage)
	if err != nil {
		return nil, nil, err
	}

	// The script reads secret parameters by path at boot, which leaves no
	// ptr edge; depend on them explicitly so they exist before first boot.
	var paramDeps []string
	for _, name := range []string{"databasePassword", "sessionSecret", "tunnelToken"} {
		if param := base.secretParam(prefix, name); param != nil {
			paramDeps = append(paramDeps, param.Addr())
		}
	}

	instance := &ir.Resource{
		Type:      "aws:EC2.Instance",
		Name:      "app",
		Provider:  "aws",
		DependsOn: paramDeps,
		Properties: map[string]any{
			"ami":              ami,
			"instanceType":     cfg.Instance.Type,
			"subnetId":         base.subnets[0].Ref("id"),
			"securityGroupIds": []any{base.appSG.Ref("id")},
			"instanceProfile":  profile.Ref("name"),
			"rootVolumeGb":     cfg.Instance.RootVolumeGb,
			// The engine interpolates the embedded ptr refs, then
			// base64-encodes the result into instance user data.
			"userData":         script,
			"userDataEncoding": "base64",
			"tags":             b.tags("app"),
		},
	}
	if cfg.Instance.KeyName != "" {
		instance.Properties["keyName"] = cfg.Instance.KeyName
	}

	return []*ir.Resource{role, profile, instance}, instance, nil
}

// buildTunnelIngress declares the Cloudflare tunnel and the proxied CNAME
// pointing the public hostname at it. The tunnel is declared even when no
// token secret was supplied; the instance simply does not join it until a
// token is provided.
func (b *Builder) buildTunnelIngress() (*ir.Resource, *ir.Resource) {
	cfg := b.cfg

	tunnel := &ir.Resource{
		Type:     "cloudflare:Tunnel",
		Name:     "app",
		Provider: "cloudflare",
		Properties: map[string]any{
			"accountId": cfg.Cloudflare.AccountID,
			"name":      cfg.Prefix(),
		},
	}

	record := &ir.Resource{
		Type:     "cloudflare:DNS.Record",
		Name:     "app",
		Provider: "cloudflare",
		Properties: map[string]any{
			"zoneId":  cfg.Cloudflare.ZoneID,
			"type":    "CNAME",
			"name":    cfg.Hostname,
			"content": tunnel.Ref("hostname"),
			"proxied": true,
		},
	}

	return tunnel, record
}
