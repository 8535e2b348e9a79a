package scheduler

import (
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/matzehuels/boxrender/pkg/dag"
	"github.com/matzehuels/boxrender/pkg/task"
)

// TraceNode is one submitted task.
type TraceNode struct {
	ID    uuid.UUID
	Owner uuid.UUID
	Label string
	Frame int
	Seq   uint64
	Deps  []uuid.UUID
	State task.State
}

// Trace records submitted tasks and their dependency edges.
type Trace struct {
	mu    sync.Mutex
	nodes []TraceNode
	index map[uuid.UUID]int
}

func (tr *Trace) add(t *task.Task, label string, deps []uuid.UUID) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.index == nil {
		tr.index = make(map[uuid.UUID]int)
	}
	n := TraceNode{
		ID:    t.ID(),
		Owner: t.Owner().ID,
		Label: label,
		Frame: t.Frame(),
		Seq:   t.Seq(),
		Deps:  deps,
		State: t.State(),
	}
	if i, ok := tr.index[n.ID]; ok {
		tr.nodes[i] = n
		return
	}
	tr.index[n.ID] = len(tr.nodes)
	tr.nodes = append(tr.nodes, n)
}

// finish updates the final state of a node. Nodes that finished before they
// were recorded are added when add runs.
func (tr *Trace) finish(id uuid.UUID, st task.State) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if i, ok := tr.index[id]; ok {
		tr.nodes[i].State = st
	}
}

// Nodes returns the recorded nodes ordered by queue sequence.
func (tr *Trace) Nodes() []TraceNode {
	tr.mu.Lock()
	nodes := slices.Clone(tr.nodes)
	tr.mu.Unlock()
	slices.SortFunc(nodes, func(a, b TraceNode) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})
	return nodes
}

// DAG converts the trace into a task graph with rows assigned. Edges point
// from a task to its dependencies; dependencies that were never submitted
// through this scheduler are left out.
func (tr *Trace) DAG() (*dag.DAG, error) {
	nodes := tr.Nodes()
	g := dag.New(dag.Metadata{"tasks": len(nodes)})
	for _, n := range nodes {
		err := g.AddNode(dag.Node{
			ID:    n.ID.String(),
			Label: fmt.Sprintf("%s @%d", n.Label, n.Frame),
			Meta: dag.Metadata{
				"frame": n.Frame,
				"seq":   n.Seq,
				"state": n.State.String(),
			},
		})
		if err != nil {
			return nil, fmt.Errorf("add %s: %w", n.ID, err)
		}
	}
	for _, n := range nodes {
		for _, d := range n.Deps {
			if _, ok := g.Node(d.String()); !ok {
				continue
			}
			if err := g.AddEdge(dag.Edge{From: n.ID.String(), To: d.String()}); err != nil {
				return nil, err
			}
		}
	}
	if err := g.AssignRows(); err != nil {
		return nil, err
	}
	return g, nil
}
