package ir

// Descriptor is the complete deployment descriptor handed to the external
// provisioning engine: the ordered declaration graph plus build metadata and
// the outputs downstream tooling reads back after apply.
//
// A descriptor is constructed once per invocation and never mutated. The
// engine owns create/update/destroy against live cloud state.
type Descriptor struct {
	Metadata  *Metadata      `pkl:"metadata" json:"metadata"`
	Resources []*Resource    `pkl:"resources" json:"resources"`
	Outputs   map[string]any `pkl:"outputs" json:"outputs"`
}

// Metadata records build provenance. It deliberately carries no timestamp:
// identical inputs must produce byte-identical descriptors.
type Metadata struct {
	Project     string    `pkl:"project" json:"project"`
	Environment string    `pkl:"environment" json:"environment"`
	Topology    string    `pkl:"topology" json:"topology"`
	Image       *ImageRef `pkl:"image" json:"image"`
	ConfigHash  string    `pkl:"configHash" json:"configHash"`
}

// ImageRef identifies the application artifact to deploy.
type ImageRef struct {
	Registry   string `pkl:"registry" json:"registry,omitempty"`
	Repository string `pkl:"repository" json:"repository"`
	Tag        string `pkl:"tag" json:"tag"`
	// TagSource records how the tag was resolved: "override", "git" or
	// "fallback". Tooling may refuse to deploy fallback-sourced tags.
	TagSource string `pkl:"tagSource" json:"tagSource"`
}

// String returns the full image reference, e.g. "123.dkr.ecr.../app:abc1234".
// When the registry is unknown at build time it is a ${ptr://...} placeholder
// resolved by the engine.
func (r *ImageRef) String() string {
	if r.Registry == "" {
		return r.Repository + ":" + r.Tag
	}
	return r.Registry + "/" + r.Repository + ":" + r.Tag
}

// Resource looks up a declared resource by address, or nil.
func (d *Descriptor) Resource(addr string) *Resource {
	for _, res := range d.Resources {
		if res.Addr() == addr {
			return res
		}
	}
	return nil
}
