// Package stack assembles the deployment descriptor for the platform's
// three topologies. The build is a single synchronous pass: declarations
// are constructed in dependency order and validated as an acyclic graph
// before emission. No cloud resource is mutated here.
package stack

import (
	"context"
	"fmt"

	"github.com/descry-io/descry/internal/awsmeta"
	"github.com/descry-io/descry/internal/config"
	"github.com/descry-io/descry/internal/graph"
	"github.com/descry-io/descry/internal/image"
	"github.com/descry-io/descry/internal/ir"
	"github.com/descry-io/descry/internal/logging"
)

// Builder constructs descriptors from an immutable config plus deferred
// account-level lookups.
type Builder struct {
	cfg     *config.Config
	lookups *awsmeta.Lookups
	tag     image.Resolution
}

// New returns a builder. The lookups may be live or static; nothing is
// resolved until Build runs.
func New(cfg *config.Config, lookups *awsmeta.Lookups, tag image.Resolution) *Builder {
	return &Builder{cfg: cfg, lookups: lookups, tag: tag}
}

// Build assembles, validates and orders the declaration graph.
func (b *Builder) Build(ctx context.Context) (*ir.Descriptor, error) {
	base := b.buildBase(ctx)
	imageRef, fullImage := b.imageRef(ctx, base)

	resources := base.all()
	outputs := map[string]any{
		"vpcId":            base.vpc.Ref("id"),
		"repositoryUrl":    base.repo.Ref("repositoryUrl"),
		"assetsBucket":     base.assets.Properties["bucketName"],
		"databaseEndpoint": base.db.Ref("endpoint"),
		"r2Bucket":         base.r2.Properties["name"],
		"publicUrl":        "https://" + b.cfg.FQDN(),
	}

	var (
		extra []*ir.Resource
		outs  map[string]any
		err   error
	)
	switch b.cfg.Topology {
	case config.TopologyEC2Tunnel:
		extra, outs, err = b.buildEC2Tunnel(ctx, base, fullImage)
	case config.TopologyFargateALB:
		extra, outs, err = b.buildFargateALB(base, fullImage)
	case config.TopologyHybrid:
		extra, outs, err = b.buildHybrid(ctx, base, fullImage)
	default:
		return nil, fmt.Errorf("unknown topology %q", b.cfg.Topology)
	}
	if err != nil {
		return nil, err
	}
	resources = append(resources, extra...)
	for k, v := range outs {
		outputs[k] = v
	}

	dag, err := graph.Build(resources)
	if err != nil {
		return nil, fmt.Errorf("invalid resource graph: %w", err)
	}

	hash, err := b.cfg.Hash()
	if err != nil {
		return nil, err
	}

	return &ir.Descriptor{
		Metadata: &ir.Metadata{
			Project:     b.cfg.Project,
			Environment: b.cfg.Environment,
			Topology:    b.cfg.Topology,
			Image:       imageRef,
			ConfigHash:  hash,
		},
		Resources: dag.Sort(resources),
		Outputs:   outputs,
	}, nil
}

// imageRef derives the deployable image reference. When the account id
// cannot be resolved, the registry host degrades to a ptr reference on the
// repository declaration, resolved by the engine instead of at build time.
func (b *Builder) imageRef(ctx context.Context, base *baseResources) (*ir.ImageRef, string) {
	ref := &ir.ImageRef{
		Repository: b.cfg.Image.Repository,
		Tag:        b.tag.Tag,
		TagSource:  string(b.tag.Source),
	}

	registry, err := b.lookups.RegistryURL().Get(ctx)
	if err != nil {
		logging.Warn("account identity unavailable, deferring registry URL to the engine",
			"error", err)
		return ref, fmt.Sprintf("%s:%s", base.repo.EmbedRef("repositoryUrl"), ref.Tag)
	}

	ref.Registry = registry
	return ref, ref.String()
}
