// Package dataflow is the vertex/edge contract between connectors and the
// execution engine. Connectors only build graphs; Executor is a local,
// in-process runner used by the query service and tests.
package dataflow

import (
	"context"
	"fmt"
	"log/slog"
)

// Row is one tuple flowing along an edge.
type Row = []any

// Context describes the processor instance being created.
type Context struct {
	JobID  string
	Vertex string
	Index  int // instance index, 0 <= Index < Count
	Count  int
	// Member is the index of the node running the job among Members nodes
	// that each run the same DAG.
	Member  int
	Members int
	Logger  *slog.Logger
}

// GlobalIndex returns the instance's position among the instances of every
// member, and their total.
func (c Context) GlobalIndex() (index, count int) {
	if c.Members < 1 {
		return c.Index, c.Count
	}
	return c.Member*c.Count + c.Index, c.Members * c.Count
}

// Processor consumes rows from in and emits rows downstream. Source
// processors receive a nil in. Process must return once in is closed.
type Processor interface {
	Process(ctx context.Context, in <-chan Row, emit func(Row) error) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, in <-chan Row, emit func(Row) error) error

// Process calls f.
func (f ProcessorFunc) Process(ctx context.Context, in <-chan Row, emit func(Row) error) error {
	return f(ctx, in, emit)
}

// Supplier creates one processor per instance. It is called on the worker
// that runs the instance, so processors never share mutable state.
type Supplier func(pctx Context) (Processor, error)

// Vertex is a named processing stage.
type Vertex struct {
	name        string
	supplier    Supplier
	parallelism int
}

// Name returns the vertex name.
func (v *Vertex) Name() string { return v.name }

// Parallelism returns the number of instances the vertex runs with.
func (v *Vertex) Parallelism() int { return v.parallelism }

// LocalParallelism sets the number of processor instances.
func (v *Vertex) LocalParallelism(n int) *Vertex {
	if n < 1 {
		n = 1
	}
	v.parallelism = n
	return v
}

func (v *Vertex) String() string { return v.name }

// Edge connects the output of From to the input of To.
type Edge struct {
	From *Vertex
	To   *Vertex
}

// DAG is a directed acyclic graph of vertices.
type DAG struct {
	vertices []*Vertex
	edges    []Edge
}

// New returns an empty DAG.
func New() *DAG { return &DAG{} }

// NewVertex adds a vertex with parallelism 1.
func (d *DAG) NewVertex(name string, supplier Supplier) *Vertex {
	v := &Vertex{name: name, supplier: supplier, parallelism: 1}
	d.vertices = append(d.vertices, v)
	return v
}

// Edge connects from to to and returns the DAG for chaining.
func (d *DAG) Edge(from, to *Vertex) *DAG {
	d.edges = append(d.edges, Edge{From: from, To: to})
	return d
}

// Vertices returns the vertices in insertion order.
func (d *DAG) Vertices() []*Vertex { return d.vertices }

// Edges returns the edges in insertion order.
func (d *DAG) Edges() []Edge { return d.edges }

// Inbound returns the edges ending at v.
func (d *DAG) Inbound(v *Vertex) []Edge {
	var out []Edge
	for _, e := range d.edges {
		if e.To == v {
			out = append(out, e)
		}
	}
	return out
}

// Outbound returns the edges starting at v.
func (d *DAG) Outbound(v *Vertex) []Edge {
	var out []Edge
	for _, e := range d.edges {
		if e.From == v {
			out = append(out, e)
		}
	}
	return out
}

// Validate checks vertex names are unique, every edge joins vertices of
// this DAG and the graph has no cycle.
func (d *DAG) Validate() error {
	if len(d.vertices) == 0 {
		return fmt.Errorf("dag has no vertices")
	}
	names := make(map[string]bool, len(d.vertices))
	member := make(map[*Vertex]bool, len(d.vertices))
	for _, v := range d.vertices {
		if names[v.name] {
			return fmt.Errorf("duplicate vertex name %q", v.name)
		}
		if v.supplier == nil {
			return fmt.Errorf("vertex %q has no processor supplier", v.name)
		}
		names[v.name] = true
		member[v] = true
	}
	for _, e := range d.edges {
		if !member[e.From] || !member[e.To] {
			return fmt.Errorf("edge %s -> %s references a vertex outside the dag", e.From, e.To)
		}
		if e.From == e.To {
			return fmt.Errorf("edge %s -> %s is a self loop", e.From, e.To)
		}
	}
	if _, err := d.topological(); err != nil {
		return err
	}
	return nil
}

func (d *DAG) topological() ([]*Vertex, error) {
	indeg := make(map[*Vertex]int, len(d.vertices))
	for _, e := range d.edges {
		indeg[e.To]++
	}
	var queue, order []*Vertex
	for _, v := range d.vertices {
		if indeg[v] == 0 {
			queue = append(queue, v)
		}
	}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		order = append(order, v)
		for _, e := range d.Outbound(v) {
			indeg[e.To]--
			if indeg[e.To] == 0 {
				queue = append(queue, e.To)
			}
		}
	}
	if len(order) != len(d.vertices) {
		return nil, fmt.Errorf("dag contains a cycle")
	}
	return order, nil
}
