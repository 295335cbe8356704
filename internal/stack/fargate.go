package stack

import (
	"github.com/descry-io/descry/internal/ir"
)

// buildFargateALB declares the load-balanced topology: an ECS Fargate
// service behind an ALB with an ACM certificate, and a Cloudflare CNAME at
// the ALB's DNS name.
func (b *Builder) buildFargateALB(base *baseResources, fullImage string) ([]*ir.Resource, map[string]any, error) {
	cfg := b.cfg
	prefix := cfg.Prefix()

	albSG := &ir.Resource{
		Type:     "aws:EC2.SecurityGroup",
		Name:     "alb",
		Provider: "aws",
		Properties: map[string]any{
			"groupName":   prefix + "-alb",
			"description": "public HTTPS ingress",
			"vpcId":       base.vpc.Ref("id"),
			"ingress": []any{
				map[string]any{
					"fromPort":   443,
					"toPort":     443,
					"protocol":   "tcp",
					"cidrBlocks": []any{"0.0.0.0/0"},
				},
			},
			"egress": []any{
				map[string]any{
					"fromPort":   0,
					"toPort":     0,
					"protocol":   "-1",
					"cidrBlocks": []any{"0.0.0.0/0"},
				},
			},
			"tags": b.tags("alb-sg"),
		},
	}

	// Tasks accept traffic from the ALB only.
	base.appSG.Properties["ingress"] = []any{
		map[string]any{
			"fromPort":       cfg.Service.ContainerPort,
			"toPort":         cfg.Service.ContainerPort,
			"protocol":       "tcp",
			"securityGroups": []any{albSG.Ref("id")},
		},
	}

	cluster, execRole, taskRole := b.buildClusterAndRoles(base)

	taskDef := b.buildTaskDefinition(base, execRole, taskRole, taskDefParams{
		name:    "app",
		image:   fullImage,
		command: nil,
		port:    cfg.Service.ContainerPort,
	})

	subnetRefs := make([]any, len(base.subnets))
	for i, s := range base.subnets {
		subnetRefs[i] = s.Ref("id")
	}

	alb := &ir.Resource{
		Type:     "aws:ELBv2.LoadBalancer",
		Name:     "main",
		Provider: "aws",
		Properties: map[string]any{
			"name":             prefix,
			"type":             "application",
			"securityGroupIds": []any{albSG.Ref("id")},
			"subnetIds":        subnetRefs,
			"tags":             b.tags("alb"),
		},
	}

	targetGroup := &ir.Resource{
		Type:     "aws:ELBv2.TargetGroup",
		Name:     "app",
		Provider: "aws",
		Properties: map[string]any{
			"name":            prefix + "-app",
			"port":            cfg.Service.ContainerPort,
			"protocol":        "HTTP",
			"targetType":      "ip",
			"vpcId":           base.vpc.Ref("id"),
			"healthCheckPath": "/healthz",
		},
	}

	listener := &ir.Resource{
		Type:     "aws:ELBv2.Listener",
		Name:     "https",
		Provider: "aws",
		Properties: map[string]any{
			"loadBalancerArn": alb.Ref("arn"),
			"port":            443,
			"protocol":        "HTTPS",
			"certificateArn":  cfg.CertificateArn,
			"defaultActions": []any{
				map[string]any{
					"type":           "forward",
					"targetGroupArn": targetGroup.Ref("arn"),
				},
			},
		},
	}

	service := &ir.Resource{
		Type:     "aws:ECS.Service",
		Name:     "app",
		Provider: "aws",
		// The service registers against the target group, so the listener
		// must exist first even though no property references it.
		DependsOn: []string{listener.Addr()},
		Properties: map[string]any{
			"serviceName":    prefix + "-app",
			"cluster":        cluster.Ref("arn"),
			"taskDefinition": taskDef.Ref("arn"),
			"desiredCount":   cfg.Service.DesiredCount,
			"launchType":     "FARGATE",
			"networkConfiguration": map[string]any{
				"subnetIds":        subnetRefs,
				"securityGroupIds": []any{base.appSG.Ref("id")},
				"assignPublicIp":   true,
			},
			"loadBalancers": []any{
				map[string]any{
					"targetGroupArn": targetGroup.Ref("arn"),
					"containerName":  "app",
					"containerPort":  cfg.Service.ContainerPort,
				},
			},
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
			"content": alb.Ref("dnsName"),
			"proxied": true,
		},
	}

	resources := []*ir.Resource{
		albSG, cluster, execRole, taskRole, taskDef,
		alb, targetGroup, listener, service, record,
	}
	outputs := map[string]any{
		"clusterArn":          cluster.Ref("arn"),
		"loadBalancerDnsName": alb.Ref("dnsName"),
	}
	return resources, outputs, nil
}

// buildClusterAndRoles declares the ECS cluster plus the execution and task
// roles shared by the Fargate-backed topologies.
func (b *Builder) buildClusterAndRoles(base *baseResources) (cluster, execRole, taskRole *ir.Resource) {
	prefix := b.cfg.Prefix()

	cluster = &ir.Resource{
		Type:     "aws:ECS.Cluster",
		Name:     "main",
		Provider: "aws",
		Properties: map[string]any{
			"clusterName": prefix,
			"tags":        b.tags("cluster"),
		},
	}

	execRole = newRole("task-exec", prefix+"-task-exec",
		assumeRolePolicy("ecs-tasks.amazonaws.com"),
		b.executionRolePolicy(base),
		[]any{"arn:aws:iam::aws:policy/service-role/AmazonECSTaskExecutionRolePolicy"},
		b.tags("task-exec-role"))

	taskRole = newRole("task", prefix+"-task",
		assumeRolePolicy("ecs-tasks.amazonaws.com"),
		b.appAccessPolicy(base),
		nil,
		b.tags("task-role"))

	return cluster, execRole, taskRole
}

type taskDefParams struct {
	name    string
	image   string
	command []string
	// port of 0 declares a portless worker container.
	port int
}

// buildTaskDefinition declares a Fargate task definition whose container
// environment is wired through ptr refs and whose secrets arrive as SSM
// parameter references, never as plaintext values.
func (b *Builder) buildTaskDefinition(base *baseResources, execRole, taskRole *ir.Resource, p taskDefParams) *ir.Resource {
	cfg := b.cfg
	prefix := cfg.Prefix()

	env := []any{
		map[string]any{"name": "AWS_REGION", "value": cfg.Region},
		map[string]any{"name": "DATABASE_HOST", "value": base.db.Ref("endpoint")},
		map[string]any{"name": "DATABASE_NAME", "value": cfg.Database.Name},
		map[string]any{"name": "DATABASE_USER", "value": cfg.Database.Username},
		map[string]any{"name": "S3_BUCKET", "value": base.assets.Properties["bucketName"]},
	}
	if p.port > 0 {
		env = append(env, map[string]any{"name": "PORT", "value": p.port})
	}

	var secretRefs []any
	if param := base.secretParam(prefix, "databasePassword"); param != nil {
		secretRefs = append(secretRefs, map[string]any{
			"name":      "DATABASE_PASSWORD",
			"valueFrom": param.Ref("arn"),
		})
	}
	if param := base.secretParam(prefix, "sessionSecret"); param != nil {
		secretRefs = append(secretRefs, map[string]any{
			"name":      "SESSION_SECRET",
			"valueFrom": param.Ref("arn"),
		})
	}

	container := map[string]any{
		"name":        p.name,
		"image":       p.image,
		"essential":   true,
		"environment": env,
		"logConfiguration": map[string]any{
			"logDriver": "awslogs",
			"options": map[string]any{
				"awslogs-group":         base.logGroup.Ref("name"),
				"awslogs-region":        cfg.Region,
				"awslogs-stream-prefix": p.name,
			},
		},
	}
	if len(p.command) > 0 {
		cmd := make([]any, len(p.command))
		for i, c := range p.command {
			cmd[i] = c
		}
		container["command"] = cmd
	}
	if p.port > 0 {
		container["portMappings"] = []any{
			map[string]any{"containerPort": p.port, "protocol": "tcp"},
		}
	}
	if len(secretRefs) > 0 {
		container["secrets"] = secretRefs
	}

	return &ir.Resource{
		Type:     "aws:ECS.TaskDefinition",
		Name:     p.name,
		Provider: "aws",
		Properties: map[string]any{
			"family":                  prefix + "-" + p.name,
			"cpu":                     cfg.Service.Cpu,
			"memory":                  cfg.Service.Memory,
			"networkMode":             "awsvpc",
			"requiresCompatibilities": []any{"FARGATE"},
			"executionRoleArn":        execRole.Ref("arn"),
			"taskRoleArn":             taskRole.Ref("arn"),
			"containerDefinitions":    []any{container},
		},
	}
}
