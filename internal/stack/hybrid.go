package stack

import (
	"context"

	"github.com/descry-io/descry/internal/ir"
)

// buildHybrid declares the mixed topology: the web app runs on an EC2
// instance behind a Cloudflare Tunnel, while background work runs as a
// Fargate service on a shared cluster. There is no load balancer.
func (b *Builder) buildHybrid(ctx context.Context, base *baseResources, fullImage string) ([]*ir.Resource, map[string]any, error) {
	resources, instance, err := b.buildInstance(ctx, base, fullImage)
	if err != nil {
		return nil, nil, err
	}

	tunnel, record := b.buildTunnelIngress()
	resources = append(resources, tunnel, record)

	cluster, execRole, taskRole := b.buildClusterAndRoles(base)

	workerCmd := b.cfg.Service.WorkerCommand
	if len(workerCmd) == 0 {
		workerCmd = []string{"worker"}
	}
	workerDef := b.buildTaskDefinition(base, execRole, taskRole, taskDefParams{
		name:    "worker",
		image:   fullImage,
		command: workerCmd,
	})

	subnetRefs := make([]any, len(base.subnets))
	for i, s := range base.subnets {
		subnetRefs[i] = s.Ref("id")
	}

	workerService := &ir.Resource{
		Type:     "aws:ECS.Service",
		Name:     "worker",
		Provider: "aws",
		Properties: map[string]any{
			"serviceName":    b.cfg.Prefix() + "-worker",
			"cluster":        cluster.Ref("arn"),
			"taskDefinition": workerDef.Ref("arn"),
			"desiredCount":   b.cfg.Service.DesiredCount,
			"launchType":     "FARGATE",
			"networkConfiguration": map[string]any{
				"subnetIds":        subnetRefs,
				"securityGroupIds": []any{base.appSG.Ref("id")},
				"assignPublicIp":   true,
			},
		},
	}

	resources = append(resources, cluster, execRole, taskRole, workerDef, workerService)

	outputs := map[string]any{
		"instanceId":       instance.Ref("id"),
		"instancePublicIp": instance.Ref("publicIp"),
		"tunnelId":         tunnel.Ref("id"),
		"clusterArn":       cluster.Ref("arn"),
	}
	return resources, outputs, nil
}
