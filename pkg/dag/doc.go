// Package dag provides a small directed acyclic graph used to inspect the
// dependency structure of render tasks.
//
// # Overview
//
// Every submitted task becomes a [Node]; every dependency becomes an [Edge]
// pointing from the waiting task to the task it waits for. A group's task
// therefore points at its children's tasks, a motion-blurred box points at
// its sample tasks, and an image box points at the loader task of its
// source.
//
// # Basic Usage
//
//	g := dag.New(nil)
//	g.AddNode(dag.Node{ID: "group"})
//	g.AddNode(dag.Node{ID: "child"})
//	g.AddEdge(dag.Edge{From: "group", To: "child"})
//	g.AssignRows()
//
// [DAG.AssignRows] layers the graph so that dependencies sit below their
// dependents, which is how [github.com/matzehuels/boxrender/pkg/render/nodelink]
// draws it. [DAG.CriticalPath] reports the longest chain of waits.
//
// # Metadata
//
// Both nodes and the graph itself support arbitrary metadata via [Metadata]
// maps. Traces store the frame, final state and queue sequence of each task
// there. Metadata maps are never nil after creation.
//
// # Concurrency
//
// DAG instances are not safe for concurrent use. Callers must synchronize
// access if multiple goroutines read or modify the same graph.
package dag
