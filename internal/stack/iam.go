package stack

import (
	"encoding/json"
	"fmt"

	"github.com/descry-io/descry/internal/ir"
	"github.com/descry-io/descry/internal/secrets"
)

// assumeRolePolicy returns the trust policy document for a service
// principal. json.Marshal sorts map keys, so the document is stable.
func assumeRolePolicy(service string) string {
	doc, _ := json.Marshal(map[string]any{
		"Version": "2012-10-17",
		"Statement": []any{
			map[string]any{
				"Effect": "Allow",
				"Action": "sts:AssumeRole",
				"Principal": map[string]any{
					"Service": service,
				},
			},
		},
	})
	return string(doc)
}

// appAccessPolicy grants the running application what the startup script
// and runtime need: pulling from ECR, reading this deployment's secret
// parameters, writing logs and using the assets bucket.
func (b *Builder) appAccessPolicy(base *baseResources) string {
	statements := []any{
		map[string]any{
			"Effect": "Allow",
			"Action": []any{
				"ecr:GetAuthorizationToken",
				"ecr:BatchGetImage",
				"ecr:GetDownloadUrlForLayer",
			},
			"Resource": "*",
		},
		map[string]any{
			"Effect": "Allow",
			"Action": []any{
				"logs:CreateLogStream",
				"logs:PutLogEvents",
			},
			"Resource": base.logGroup.EmbedRef("arn"),
		},
		map[string]any{
			"Effect": "Allow",
			"Action": []any{"ssm:GetParameter", "ssm:GetParameters"},
			"Resource": fmt.Sprintf("arn:aws:ssm:%s:*:parameter%s",
				b.cfg.Region, secrets.ParameterName(b.cfg.Project, b.cfg.Environment, "*")),
		},
		map[string]any{
			"Effect":   "Allow",
			"Action":   []any{"s3:GetObject", "s3:PutObject", "s3:ListBucket", "s3:DeleteObject"},
			"Resource": []any{base.assets.EmbedRef("arn"), base.assets.EmbedRef("arn") + "/*"},
		},
	}

	doc, _ := json.Marshal(map[string]any{
		"Version":   "2012-10-17",
		"Statement": statements,
	})
	return string(doc)
}

// executionRolePolicy lets the ECS agent pull the image, ship logs and
// inject secret parameters into containers.
func (b *Builder) executionRolePolicy(base *baseResources) string {
	doc, _ := json.Marshal(map[string]any{
		"Version": "2012-10-17",
		"Statement": []any{
			map[string]any{
				"Effect": "Allow",
				"Action": []any{"ssm:GetParameter", "ssm:GetParameters"},
				"Resource": fmt.Sprintf("arn:aws:ssm:%s:*:parameter%s",
					b.cfg.Region, secrets.ParameterName(b.cfg.Project, b.cfg.Environment, "*")),
			},
		},
	})
	return string(doc)
}

// newRole declares an IAM role with a trust policy and an optional inline
// policy document.
func newRole(name, roleName, trustPolicy, inlinePolicy string, managedArns []any, tags map[string]any) *ir.Resource {
	props := map[string]any{
		"roleName":         roleName,
		"assumeRolePolicy": trustPolicy,
		"tags":             tags,
	}
	if inlinePolicy != "" {
		props["inlinePolicy"] = inlinePolicy
	}
	if len(managedArns) > 0 {
		props["managedPolicyArns"] = managedArns
	}
	return &ir.Resource{
		Type:       "aws:IAM.Role",
		Name:       name,
		Provider:   "aws",
		Properties: props,
	}
}
