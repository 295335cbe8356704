// Package emit serializes descriptors for the external provisioning engine.
// Serialization is deterministic: map keys are sorted and no timestamps are
// written, so identical inputs produce byte-identical files.
package emit

import (
	"fmt"
	"sort"
	"strings"

	"github.com/descry-io/descry/internal/ir"
)

// Pkl renders the descriptor as pkl text.
func Pkl(d *ir.Descriptor) string {
	var b strings.Builder

	fmt.Fprintf(&b, "// descry deployment descriptor\n\n")

	meta := d.Metadata
	fmt.Fprintf(&b, "project = %q\n", meta.Project)
	fmt.Fprintf(&b, "environment = %q\n", meta.Environment)
	fmt.Fprintf(&b, "topology = %q\n", meta.Topology)
	fmt.Fprintf(&b, "configHash = %q\n\n", meta.ConfigHash)

	fmt.Fprintf(&b, "image {\n")
	if meta.Image.Registry != "" {
		fmt.Fprintf(&b, "  registry = %q\n", meta.Image.Registry)
	}
	fmt.Fprintf(&b, "  repository = %q\n", meta.Image.Repository)
	fmt.Fprintf(&b, "  tag = %q\n", meta.Image.Tag)
	fmt.Fprintf(&b, "  tagSource = %q\n", meta.Image.TagSource)
	fmt.Fprintf(&b, "}\n\n")

	fmt.Fprintf(&b, "resources {\n")
	for _, res := range d.Resources {
		fmt.Fprintf(&b, "  new {\n")
		fmt.Fprintf(&b, "    type = %q\n", res.Type)
		fmt.Fprintf(&b, "    name = %q\n", res.Name)
		fmt.Fprintf(&b, "    provider = %q\n", res.Provider)

		if len(res.DependsOn) > 0 {
			deps := append([]string(nil), res.DependsOn...)
			sort.Strings(deps)
			fmt.Fprintf(&b, "    dependsOn {\n")
			for _, dep := range deps {
				fmt.Fprintf(&b, "      %q\n", dep)
			}
			fmt.Fprintf(&b, "    }\n")
		}

		if len(res.Properties) > 0 {
			fmt.Fprintf(&b, "    properties {\n")
			for _, k := range sortedKeys(res.Properties) {
				fmt.Fprintf(&b, "      [%q] = %s\n", k, pklValue(res.Properties[k], 3))
			}
			fmt.Fprintf(&b, "    }\n")
		} else {
			fmt.Fprintf(&b, "    properties = new {}\n")
		}

		fmt.Fprintf(&b, "  }\n")
	}
	fmt.Fprintf(&b, "}\n\n")

	if len(d.Outputs) > 0 {
		fmt.Fprintf(&b, "outputs {\n")
		for _, k := range sortedKeys(d.Outputs) {
			fmt.Fprintf(&b, "  [%q] = %s\n", k, pklValue(d.Outputs[k], 1))
		}
		fmt.Fprintf(&b, "}\n")
	} else {
		fmt.Fprintf(&b, "outputs = new {}\n")
	}

	return b.String()
}

// pklValue recursively serializes a Go value to pkl syntax with sorted map
// keys.
func pklValue(v any, indentLevel int) string {
	indent := strings.Repeat("  ", indentLevel)

	switch val := v.(type) {
	case string:
		return fmt.Sprintf("%q", val)
	case bool:
		return fmt.Sprintf("%t", val)
	case int:
		return fmt.Sprintf("%d", val)
	case int64:
		return fmt.Sprintf("%d", val)
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	case nil:
		return "null"
	case map[string]any:
		if len(val) == 0 {
			return "new {}"
		}
		var b strings.Builder
		b.WriteString("new {\n")
		for _, k := range sortedKeys(val) {
			b.WriteString(fmt.Sprintf("%s  [%q] = %s\n", indent, k, pklValue(val[k], indentLevel+1)))
		}
		b.WriteString(indent + "}")
		return b.String()
	case []any:
		if len(val) == 0 {
			return "new Listing {}"
		}
		var b strings.Builder
		b.WriteString("new Listing {\n")
		for _, v := range val {
			b.WriteString(fmt.Sprintf("%s  %s\n", indent, pklValue(v, indentLevel+1)))
		}
		b.WriteString(indent + "}")
		return b.String()
	default:
		return fmt.Sprintf("%q", fmt.Sprintf("%v", val))
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
