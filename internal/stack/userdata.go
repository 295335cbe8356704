package stack

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/descry-io/descry/internal/secrets"
)

// userDataParams feeds the instance startup script template. Engine-owned
// values (the database endpoint) arrive as ${ptr://...} placeholders that
// the engine interpolates before encoding the script.
type userDataParams struct {
	Image        string
	Region       string
	Port         int
	AssetsBucket any
	LogGroup     string
	DatabaseHost string
	DatabaseName string
	DatabaseUser string
	// SSM parameter paths; empty means the secret was not materialized and
	// its block is omitted from the script.
	PasswordParam string
	SessionParam  string
	TunnelParam   string
}

const userDataTemplate = `#!/bin/bash
set -euo pipefail

dnf install -y docker
systemctl enable --now docker

IMAGE="{{.Image}}"
REGISTRY="${IMAGE%%/*}"
aws ecr get-login-password --region {{.Region}} | docker login --username AWS --password-stdin "${REGISTRY}"

DB_HOST="{{.DatabaseHost}}"
{{- if .PasswordParam}}
DB_PASSWORD="$(aws ssm get-parameter --region {{.Region}} --name {{.PasswordParam}} --with-decryption --query Parameter.Value --output text)"
DATABASE_URL="postgres://{{.DatabaseUser}}:${DB_PASSWORD}@${DB_HOST}:5432/{{.DatabaseName}}"
{{- else}}
DATABASE_URL="postgres://{{.DatabaseUser}}@${DB_HOST}:5432/{{.DatabaseName}}"
{{- end}}
{{- if .SessionParam}}
SESSION_SECRET="$(aws ssm get-parameter --region {{.Region}} --name {{.SessionParam}} --with-decryption --query Parameter.Value --output text)"
{{- end}}

docker rm -f app 2>/dev/null || true
docker run -d --name app --restart always \
  -p {{.Port}}:{{.Port}} \
  -e PORT={{.Port}} \
  -e AWS_REGION={{.Region}} \
  -e DATABASE_URL="${DATABASE_URL}" \
{{- if .SessionParam}}
  -e SESSION_SECRET="${SESSION_SECRET}" \
{{- end}}
  -e S3_BUCKET={{.AssetsBucket}} \
  --log-driver awslogs \
  --log-opt awslogs-region={{.Region}} \
  --log-opt awslogs-group={{.LogGroup}} \
  --log-opt awslogs-stream=app \
  "${IMAGE}"
{{- if .TunnelParam}}

TUNNEL_TOKEN="$(aws ssm get-parameter --region {{.Region}} --name {{.TunnelParam}} --with-decryption --query Parameter.Value --output text)"
docker rm -f cloudflared 2>/dev/null || true
docker run -d --name cloudflared --restart always \
  cloudflare/cloudflared:latest tunnel --no-autoupdate run --token "${TUNNEL_TOKEN}"
{{- end}}
`

var userDataTmpl = template.Must(template.New("userdata").Parse(userDataTemplate))

// renderUserData produces the instance startup script for the resolved
// image and the secrets that were actually materialized.
func (b *Builder) renderUserData(base *baseResources, fullImage string) (string, error) {
	cfg := b.cfg
	prefix := cfg.Prefix()

	paramPath := func(name string) string {
		if base.secretParam(prefix, name) == nil {
			return ""
		}
		return secrets.ParameterName(cfg.Project, cfg.Environment, name)
	}

	p := userDataParams{
		Image:         fullImage,
		Region:        cfg.Region,
		Port:          cfg.Service.ContainerPort,
		AssetsBucket:  base.assets.Properties["bucketName"],
		LogGroup:      fmt.Sprintf("/%s/%s/app", cfg.Project, cfg.Environment),
		DatabaseHost:  base.db.EmbedRef("endpoint"),
		DatabaseName:  cfg.Database.Name,
		DatabaseUser:  cfg.Database.Username,
		PasswordParam: paramPath("databasePassword"),
		SessionParam:  paramPath("sessionSecret"),
		TunnelParam:   paramPath("tunnelToken"),
	}

	var sb strings.Builder
	if err := userDataTmpl.Execute(&sb, p); err != nil {
		return "", fmt.Errorf("failed to render user data: %w", err)
	}
	return sb.String(), nil
}
