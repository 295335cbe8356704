package ir

import "fmt"

// Resource is a single declared infrastructure resource.
type Resource struct {
	Type       string         `pkl:"type" json:"type"` // e.g., "aws:EC2.Vpc"
	Name       string         `pkl:"name" json:"name"`
	Provider   string         `pkl:"provider" json:"provider"`
	DependsOn  []string       `pkl:"dependsOn" json:"dependsOn,omitempty"`
	Properties map[string]any `pkl:"properties" json:"properties"`
}

// Addr returns the resource address (type.name).
func (r *Resource) Addr() string {
	return fmt.Sprintf("%s.%s", r.Type, r.Name)
}

// Ref returns a ptr:// reference to an attribute of this resource.
// The provisioning engine substitutes the resolved attribute value at
// apply time; references may also appear embedded inside larger strings
// as ${ptr://...} placeholders.
func (r *Resource) Ref(attr string) string {
	return fmt.Sprintf("ptr://%s/%s/%s", r.Type, r.Name, attr)
}

// EmbedRef returns a ${ptr://...} placeholder for interpolation inside a
// larger string value, such as a rendered startup script.
func (r *Resource) EmbedRef(attr string) string {
	return fmt.Sprintf("${%s}", r.Ref(attr))
}
