package tsmodel

import (
	"errors"
	"sort"

	"github.com/dominikbraun/graph"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/mesdx/xref/internal/symbols"
)

const (
	relationExtends    = "extends"
	relationImplements = "implements"
)

// hierarchy is the project's class/interface inheritance graph. Edges point
// from a declaration to the type it extends or implements.
type hierarchy struct {
	g   graph.Graph[string, *declInfo]
	adj map[string]map[string]graph.Edge[string]
}

func (m *Model) buildHierarchy() error {
	g := graph.New(func(d *declInfo) string { return d.key() }, graph.Directed(), graph.PreventCycles())

	var decls []*declInfo
	for _, path := range m.files {
		u := m.units[path]
		if u.err != nil {
			continue
		}
		for _, d := range u.decls {
			if d.kind() != symbols.KindClass && d.kind() != symbols.KindInterface {
				continue
			}
			if err := g.AddVertex(d); err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
				return err
			}
			decls = append(decls, d)
		}
	}

	link := func(d *declInfo, nodes []*tree_sitter.Node, relation string) {
		for _, n := range nodes {
			base := m.resolveHeritage(d.unit, n)
			if base == nil || base == d {
				continue
			}
			err := g.AddEdge(d.key(), base.key(), graph.EdgeAttribute("relation", relation))
			switch {
			case err == nil, errors.Is(err, graph.ErrEdgeAlreadyExists):
			case errors.Is(err, graph.ErrEdgeCreatesCycle):
				m.logger.Warn("inheritance cycle ignored", "path", d.unit.path, "symbol", d.name(), "base", base.name())
			default:
				m.logger.Debug("heritage edge skipped", "path", d.unit.path, "symbol", d.name(), "error", err)
			}
		}
	}
	for _, d := range decls {
		link(d, d.extendsNodes, relationExtends)
		link(d, d.implementsNodes, relationImplements)
	}

	adj, err := g.AdjacencyMap()
	if err != nil {
		return err
	}
	m.hier = &hierarchy{g: g, adj: adj}
	return nil
}

// related returns the declarations d points to with the given relation,
// ordered by key.
func (h *hierarchy) related(d *declInfo, relation string) []*declInfo {
	if h == nil {
		return nil
	}
	edges := h.adj[d.key()]
	keys := make([]string, 0, len(edges))
	for target, e := range edges {
		if e.Properties.Attributes["relation"] == relation {
			keys = append(keys, target)
		}
	}
	sort.Strings(keys)
	out := make([]*declInfo, 0, len(keys))
	for _, k := range keys {
		if v, err := h.g.Vertex(k); err == nil {
			out = append(out, v)
		}
	}
	return out
}

// bases returns the classes or interfaces d extends.
func (h *hierarchy) bases(d *declInfo) []*declInfo {
	return h.related(d, relationExtends)
}

// lookupMember finds a member by name on d or, failing that, on the types it
// extends. Constructors are not inherited through member access.
func (m *Model) lookupMember(d *declInfo, name string) *memberInfo {
	if d == nil || name == "constructor" {
		return nil
	}
	visited := map[string]bool{}
	var find func(*declInfo) *memberInfo
	find = func(cur *declInfo) *memberInfo {
		if visited[cur.key()] {
			return nil
		}
		visited[cur.key()] = true
		if mi, ok := cur.members[name]; ok && mi.decl.Kind != symbols.KindConstructor {
			return mi
		}
		for _, b := range m.hier.bases(cur) {
			if mi := find(b); mi != nil {
				return mi
			}
		}
		return nil
	}
	return find(d)
}
