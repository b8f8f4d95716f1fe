package graph

// Scope is the boundary of a query: either the union of all graphs, or a
// single named graph.
type Scope struct {
	// Union is true if the query spans every graph.
	Union bool
	// Graph is the source name of a named scope. Ignored if Union.
	Graph string
}

// UnionScope spans all graphs.
var UnionScope = Scope{Union: true}

// Named returns a Scope restricted to |graph|.
func Named(graph string) Scope { return Scope{Graph: graph} }

// Reserved graph names which resolve to the UnionScope.
const (
	DefaultGraphName = "default"
	AllGraphName     = "all"
)

// ResolveScope maps a requested graph name to its Scope. "default" and
// "all" are the union of all graphs, and any other name is a named scope.
func ResolveScope(name string) Scope {
	switch name {
	case DefaultGraphName, AllGraphName:
		return UnionScope
	default:
		return Named(name)
	}
}

func (s Scope) String() string {
	if s.Union {
		return "union"
	}
	return "graph:" + s.Graph
}
