// Package workflow submits Argo Workflows and tracks their execution state.
package workflow

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Phase is the lifecycle state of an instance or node.
type Phase string

const (
	// PhasePending means the controller accepted the run but nothing started yet.
	PhasePending Phase = "Pending"
	// PhaseRunning means at least one step is executing.
	PhaseRunning Phase = "Running"
	// PhaseSucceeded means every step finished successfully.
	PhaseSucceeded Phase = "Succeeded"
	// PhaseFailed means a step failed after exhausting its retries.
	PhaseFailed Phase = "Failed"
	// PhaseError means the controller could not run the workflow.
	PhaseError Phase = "Error"
	// PhaseSkipped marks a node whose when predicate was false. Nodes only.
	PhaseSkipped Phase = "Skipped"
	// PhaseOmitted marks a node that was never scheduled, for example after
	// a failed predecessor. Nodes only.
	PhaseOmitted Phase = "Omitted"
	// PhaseUnknown is used for a missing or unrecognized phase. It is not terminal.
	PhaseUnknown Phase = "Unknown"
)

// IsTerminal reports whether no further transitions can happen.
func (p Phase) IsTerminal() bool {
	switch p {
	case PhaseSucceeded, PhaseFailed, PhaseError, PhaseSkipped, PhaseOmitted:
		return true
	}
	return false
}

// ParsePhase maps a remote phase string to a Phase.
func ParsePhase(s string) (Phase, bool) {
	switch p := Phase(s); p {
	case PhasePending, PhaseRunning, PhaseSucceeded, PhaseFailed, PhaseError:
		return p, true
	}
	return PhaseUnknown, false
}

// ParseNodePhase is ParsePhase extended with the node-only phases Skipped
// and Omitted.
func ParseNodePhase(s string) (Phase, bool) {
	switch p := Phase(s); p {
	case PhaseSkipped, PhaseOmitted:
		return p, true
	}
	return ParsePhase(s)
}

// NodeType is the execution-unit kind of a node.
type NodeType string

const (
	// NodePod ran a step in its own pod and has logs.
	NodePod NodeType = "Pod"
	// NodeSteps is the root of a steps template.
	NodeSteps NodeType = "Steps"
	// NodeStepGroup is one parallel group within a steps template.
	NodeStepGroup NodeType = "StepGroup"
	// NodeDAG is the root of a dag template.
	NodeDAG NodeType = "DAG"
	// NodeRetry wraps the attempts of a retried step.
	NodeRetry NodeType = "Retry"
	// NodeSkipped stands in for a step that did not run.
	NodeSkipped NodeType = "Skipped"
)

// Node is one observed execution record within an instance.
type Node struct {
	// ID is unique within the instance; several nodes may share a DisplayName.
	ID          string
	Name        string
	DisplayName string
	// TemplateName is the step template the node executed.
	TemplateName string
	Type         NodeType
	Phase        Phase
	Message      string
	StartedAt    *time.Time
	FinishedAt   *time.Time
}

// IsPod reports whether the node ran in its own pod.
func (n Node) IsPod() bool {
	return n.Type == NodePod
}

// Duration is finish (or now, while running) minus start; zero if not started.
func (n Node) Duration(now time.Time) time.Duration {
	return span(n.StartedAt, n.FinishedAt, now)
}

// Progress is the "done/total" counter reported by the controller.
type Progress struct {
	Done  int
	Total int
}

// ParseProgress parses "x/y". It reports false for anything else.
func ParseProgress(s string) (Progress, bool) {
	done, total, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Progress{}, false
	}
	d, err1 := strconv.Atoi(done)
	t, err2 := strconv.Atoi(total)
	if err1 != nil || err2 != nil || d < 0 || t < 0 {
		return Progress{}, false
	}
	return Progress{Done: d, Total: t}, true
}

func (p Progress) String() string {
	return strconv.Itoa(p.Done) + "/" + strconv.Itoa(p.Total)
}

// Instance is a snapshot of one workflow run.
type Instance struct {
	Name      string
	Namespace string
	Template  string
	Labels    map[string]string
	// PodNameFormat is the controller's pod naming scheme ("v1" or "v2").
	PodNameFormat string

	Phase      Phase
	Progress   Progress
	Message    string
	StartedAt  *time.Time
	FinishedAt *time.Time
	// Nodes is keyed by node ID.
	Nodes map[string]Node
}

// Duration is finish (or now, while running) minus start; zero if not started.
func (i *Instance) Duration(now time.Time) time.Duration {
	return span(i.StartedAt, i.FinishedAt, now)
}

// PodName returns the name of the pod that ran node. Under the v2 scheme
// pods are named <workflow>-<template>-<hash> while node IDs are
// <workflow>-<hash>; otherwise the pod is named after the node ID.
func (i *Instance) PodName(n Node) string {
	if i.PodNameFormat != "v2" || n.TemplateName == "" {
		return n.ID
	}
	hash, ok := strings.CutPrefix(n.ID, i.Name+"-")
	if !ok || hash == "" {
		return n.ID
	}
	return i.Name + "-" + n.TemplateName + "-" + hash
}

// SortedNodes returns the nodes ordered by start time, unstarted last, then by ID.
func (i *Instance) SortedNodes() []Node {
	out := make([]Node, 0, len(i.Nodes))
	for _, n := range i.Nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(a, b int) bool {
		sa, sb := out[a].StartedAt, out[b].StartedAt
		switch {
		case sa != nil && sb != nil && !sa.Equal(*sb):
			return sa.Before(*sb)
		case sa != nil && sb == nil:
			return true
		case sa == nil && sb != nil:
			return false
		}
		return out[a].ID < out[b].ID
	})
	return out
}

func span(start, finish *time.Time, now time.Time) time.Duration {
	if start == nil {
		return 0
	}
	end := now
	if finish != nil {
		end = *finish
	}
	if end.Before(*start) {
		return 0
	}
	return end.Sub(*start)
}
