// Package tree implements the async decision tree: a directed graph of LLM
// prompts where edges transition based on the previous node's reply.
// Traversal starts at a designated root and ends at a leaf node (one with
// no outgoing edges), whose reply is the tree's final output.
package tree

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrMissingCondition is raised when a node has more than one outgoing edge
// and none of them carries a condition — the graph gives the traversal no
// way to pick a transition.
var ErrMissingCondition = errors.New("tree: at least one outgoing edge must have a condition")

// ErrNoEdgeSatisfied is raised when every outgoing edge has a condition and
// none of them is satisfied by the node's reply.
var ErrNoEdgeSatisfied = errors.New("tree: no outgoing edge condition was satisfied")

// ErrAmbiguousGraph is raised when a node has more than one unconditioned
// "else" edge, leaving no unique fallback to take.
var ErrAmbiguousGraph = errors.New("tree: node has more than one unconditioned edge")

// Condition decides whether an edge should be followed, given the previous
// node's raw LLM reply text.
type Condition func(reply string) bool

// Edge is a transition from one node to another, optionally guarded by a
// Condition. An edge with a nil Condition is the implicit "else" — it is
// taken when present and no conditioned edge matches.
type Edge struct {
	To        string
	Condition Condition
}

// Node is one prompt in the graph.
type Node struct {
	Prompt string
	Edges  []Edge
}

// Chat is the minimal transcript interface a DecisionTree drives. It is
// satisfied by *llmcall.ChatCaller.
type Chat interface {
	Send(ctx context.Context, userMessage string) (string, error)
}

// Graph is a named collection of nodes forming a decision tree.
type Graph struct {
	Nodes map[string]Node
	Root  string
}

// DecisionTree traverses a Graph by sending each node's prompt to Chat and
// using the reply to pick the next node, until it reaches a leaf (a node
// with zero edges), whose reply is returned.
type DecisionTree struct {
	Graph Graph
	Chat  Chat

	history []string
}

// History returns the node names visited during the most recent Run, in
// traversal order.
func (t *DecisionTree) History() []string {
	out := make([]string, len(t.history))
	copy(out, t.history)
	return out
}

// Run traverses the tree starting at Graph.Root, calling each node in turn
// and following the edge whose condition the reply satisfies, until it
// reaches a leaf node. It returns the leaf's reply.
func (t *DecisionTree) Run(ctx context.Context) (string, error) {
	t.history = nil
	node := t.Graph.Root
	for {
		n, ok := t.Graph.Nodes[node]
		if !ok {
			return "", fmt.Errorf("tree: node %q not found in graph", node)
		}
		t.history = append(t.history, node)
		reply, err := t.Chat.Send(ctx, n.Prompt)
		if err != nil {
			return "", fmt.Errorf("tree: node %q: %w", node, err)
		}
		if len(n.Edges) == 0 {
			return reply, nil
		}
		next, err := resolveEdge(node, n, reply)
		if err != nil {
			return "", err
		}
		node = next
	}
}

// resolveEdge picks the next node from a node's reply, in the original's
// precedence: a callable condition wins first, checked in edge-declaration
// order; the single unconditioned edge (the "else" branch) is taken only
// when no condition matched.
func resolveEdge(nodeName string, n Node, reply string) (string, error) {
	unconditioned := -1
	unconditionedCount := 0
	hasCondition := false
	for i, e := range n.Edges {
		if e.Condition == nil {
			if unconditioned == -1 {
				unconditioned = i
			}
			unconditionedCount++
			continue
		}
		hasCondition = true
		if e.Condition(reply) {
			return e.To, nil
		}
	}
	if len(n.Edges) > 1 && !hasCondition {
		return "", fmt.Errorf("%w: node %q has %d edges, none conditioned", ErrMissingCondition, nodeName, len(n.Edges))
	}
	if unconditionedCount > 1 {
		return "", fmt.Errorf("%w: node %q has %d unconditioned edges", ErrAmbiguousGraph, nodeName, unconditionedCount)
	}
	if unconditioned != -1 {
		return n.Edges[unconditioned].To, nil
	}
	return "", fmt.Errorf("%w: node %q", ErrNoEdgeSatisfied, nodeName)
}

// FormatPrompt resolves "{key}" placeholders in a prompt template against a
// string-keyed attribute map, mirroring the graph-level attribute
// substitution the original performs with Python's str.format.
func FormatPrompt(template string, attrs map[string]string) string {
	out := template
	for k, v := range attrs {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}
