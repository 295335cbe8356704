package graph

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/descry-io/descry/internal/ir"
)

// DAG is the directed acyclic dependency graph over a set of declarations.
// Edges follow both explicit DependsOn entries and ptr:// references found
// anywhere in a resource's property bag, including ${ptr://...} placeholders
// embedded in strings such as rendered startup scripts.
type DAG struct {
	nodes map[string]*node
	order []string // topological order (creation order)
}

type node struct {
	addr     string
	edges    []string // resources this node depends on
	revEdges []string // resources that depend on this node
}

var ptrRefPattern = regexp.MustCompile(`ptr://[^"\s${}]+`)

// Build constructs the dependency graph and returns an error if the
// reference graph contains a cycle.
func Build(resources []*ir.Resource) (*DAG, error) {
	d := &DAG{nodes: make(map[string]*node)}

	for _, res := range resources {
		addr := res.Addr()
		if _, ok := d.nodes[addr]; ok {
			return nil, fmt.Errorf("duplicate resource address %s", addr)
		}
		d.nodes[addr] = &node{addr: addr}
	}

	for _, res := range resources {
		n := d.nodes[res.Addr()]

		for _, dep := range res.DependsOn {
			if _, ok := d.nodes[dep]; !ok {
				return nil, fmt.Errorf("%s depends on undeclared resource %s", res.Addr(), dep)
			}
			n.edges = append(n.edges, dep)
		}

		for _, ref := range ExtractRefs(res.Properties) {
			depAddr := RefAddr(ref)
			if depAddr == "" || depAddr == res.Addr() {
				continue
			}
			if _, ok := d.nodes[depAddr]; !ok {
				return nil, fmt.Errorf("%s references undeclared resource %s", res.Addr(), depAddr)
			}
			n.edges = append(n.edges, depAddr)
		}

		n.edges = dedupe(n.edges)
	}

	for addr, n := range d.nodes {
		for _, dep := range n.edges {
			d.nodes[dep].revEdges = append(d.nodes[dep].revEdges, addr)
		}
	}

	order, err := d.topoSort()
	if err != nil {
		return nil, err
	}
	d.order = order

	return d, nil
}

// CreationOrder returns addresses in dependency-respecting creation order.
func (d *DAG) CreationOrder() []string {
	return d.order
}

// Dependencies returns the direct dependencies of the given address.
func (d *DAG) Dependencies(addr string) []string {
	if n, ok := d.nodes[addr]; ok {
		return n.edges
	}
	return nil
}

// Sort returns the resources reordered into creation order. The input slice
// is not modified.
func (d *DAG) Sort(resources []*ir.Resource) []*ir.Resource {
	byAddr := make(map[string]*ir.Resource, len(resources))
	for _, res := range resources {
		byAddr[res.Addr()] = res
	}
	sorted := make([]*ir.Resource, 0, len(resources))
	for _, addr := range d.order {
		if res, ok := byAddr[addr]; ok {
			sorted = append(sorted, res)
		}
	}
	return sorted
}

// topoSort runs Kahn's algorithm. Ties are broken lexicographically so the
// resulting order is stable across runs with identical inputs.
func (d *DAG) topoSort() ([]string, error) {
	inDegree := make(map[string]int, len(d.nodes))
	for addr, n := range d.nodes {
		inDegree[addr] = len(n.edges)
	}

	var queue []string
	for addr, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, addr)
		}
	}
	sort.Strings(queue)

	var sorted []string
	for len(queue) > 0 {
		addr := queue[0]
		queue = queue[1:]
		sorted = append(sorted, addr)

		ready := make([]string, 0, len(d.nodes[addr].revEdges))
		for _, dependent := range d.nodes[addr].revEdges {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
		sort.Strings(ready)
		queue = append(queue, ready...)
	}

	if len(sorted) != len(d.nodes) {
		return nil, fmt.Errorf("dependency cycle detected in resource graph")
	}

	return sorted, nil
}

// ExtractRefs collects every ptr:// reference in a property value,
// whole-string or embedded. The result is sorted and deduplicated.
func ExtractRefs(v any) []string {
	refs := extractRefs(v, nil)
	refs = dedupe(refs)
	sort.Strings(refs)
	return refs
}

func extractRefs(v any, refs []string) []string {
	switch val := v.(type) {
	case string:
		refs = append(refs, ptrRefPattern.FindAllString(val, -1)...)
	case map[string]any:
		for _, v := range val {
			refs = extractRefs(v, refs)
		}
	case []any:
		for _, v := range val {
			refs = extractRefs(v, refs)
		}
	}
	return refs
}

// RefAddr converts a ptr:// reference to the address of the resource it
// points at: ptr://aws:EC2.Vpc/my-vpc/id -> aws:EC2.Vpc.my-vpc.
func RefAddr(ref string) string {
	if !strings.HasPrefix(ref, "ptr://") {
		return ""
	}
	path := strings.TrimPrefix(ref, "ptr://")
	// Format: provider:Type/name/attribute
	parts := strings.SplitN(path, "/", 3)
	if len(parts) < 2 {
		return ""
	}
	return fmt.Sprintf("%s.%s", parts[0], parts[1])
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
