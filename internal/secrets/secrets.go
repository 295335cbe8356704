// Package secrets materializes write-only SSM parameter declarations for
// the recognized platform secrets. A secret with no supplied value produces
// no resource at all, and builders must not reference it.
package secrets

import (
	"fmt"

	"github.com/descry-io/descry/internal/ir"
)

// Recognized is the fixed set of secret names the platform understands.
// Order is significant: parameters are declared in this order so builds are
// deterministic.
var Recognized = []string{
	"databasePassword",
	"sessionSecret",
	"tunnelToken",
	"r2AccessKeyId",
	"r2SecretAccessKey",
}

// ParameterName returns the SSM parameter path for a secret.
func ParameterName(project, environment, name string) string {
	return fmt.Sprintf("/%s/%s/%s", project, environment, name)
}

// ResourceName returns the declaration name for a secret's parameter.
func ResourceName(prefix, name string) string {
	return prefix + "-" + name
}

// Materialize returns one aws:SSM.Parameter declaration per recognized
// secret that has a value. Unrecognized keys in values are ignored.
func Materialize(project, environment string, values map[string]string) []*ir.Resource {
	prefix := project + "-" + environment
	var out []*ir.Resource
	for _, name := range Recognized {
		val, ok := values[name]
		if !ok || val == "" {
			continue
		}
		out = append(out, &ir.Resource{
			Type:     "aws:SSM.Parameter",
			Name:     ResourceName(prefix, name),
			Provider: "aws",
			Properties: map[string]any{
				"parameterName": ParameterName(project, environment, name),
				"parameterType": "SecureString",
				"value":         val,
				"description":   fmt.Sprintf("%s secret for %s/%s", name, project, environment),
			},
		})
	}
	return out
}

// Has reports whether a recognized secret has a value.
func Has(values map[string]string, name string) bool {
	return values[name] != ""
}

// Parameter returns the declaration for a materialized secret out of a
// resource set, or nil if the secret was not materialized.
func Parameter(resources []*ir.Resource, prefix, name string) *ir.Resource {
	want := ResourceName(prefix, name)
	for _, res := range resources {
		if res.Type == "aws:SSM.Parameter" && res.Name == want {
			return res
		}
	}
	return nil
}
