package workflow

import (
	"time"

	"github.com/codex-k8s/wfctl/internal/kube"
)

const podNameFormatAnnotation = "workflows.argoproj.io/pod-name-format"

// Degraded names a field that was present but could not be decoded.
type Degraded struct {
	Field string
	Value string
}

// Decode builds an Instance from a Workflow object. Optional fields are
// decoded one by one; a malformed value leaves that field empty and is
// reported in the returned list instead of failing the whole object.
func Decode(obj kube.Object) (*Instance, []Degraded) {
	var degraded []Degraded
	inst := &Instance{
		Name:          obj.String("metadata", "name"),
		Namespace:     obj.String("metadata", "namespace"),
		Template:      obj.String("spec", "workflowTemplateRef", "name"),
		Labels:        stringMap(obj.Map("metadata", "labels")),
		PodNameFormat: obj.Map("metadata", "annotations").String(podNameFormatAnnotation),
		Message:       obj.String("status", "message"),
		Nodes:         map[string]Node{},
	}

	rawPhase := obj.String("status", "phase")
	phase, ok := ParsePhase(rawPhase)
	if !ok && rawPhase != "" {
		degraded = append(degraded, Degraded{Field: "status.phase", Value: rawPhase})
	}
	inst.Phase = phase

	if raw := obj.String("status", "progress"); raw != "" {
		if p, ok := ParseProgress(raw); ok {
			inst.Progress = p
		} else {
			degraded = append(degraded, Degraded{Field: "status.progress", Value: raw})
		}
	}

	var bad bool
	if inst.StartedAt, bad = timeAt(obj, "status", "startedAt"); bad {
		degraded = append(degraded, Degraded{Field: "status.startedAt", Value: obj.String("status", "startedAt")})
	}
	if inst.FinishedAt, bad = timeAt(obj, "status", "finishedAt"); bad {
		degraded = append(degraded, Degraded{Field: "status.finishedAt", Value: obj.String("status", "finishedAt")})
	}

	for id, raw := range obj.Map("status", "nodes") {
		m, isMap := raw.(map[string]any)
		if !isMap {
			degraded = append(degraded, Degraded{Field: "status.nodes." + id})
			continue
		}
		node, nodeDegraded := decodeNode(id, m)
		inst.Nodes[id] = node
		degraded = append(degraded, nodeDegraded...)
	}
	return inst, degraded
}

func decodeNode(id string, m kube.Object) (Node, []Degraded) {
	var degraded []Degraded
	prefix := "status.nodes." + id + "."

	n := Node{
		ID:           id,
		Name:         m.String("name"),
		DisplayName:  m.String("displayName"),
		TemplateName: m.String("templateName"),
		Type:         NodeType(m.String("type")),
		Message:      m.String("message"),
	}
	if n.DisplayName == "" {
		n.DisplayName = n.Name
	}
	rawPhase := m.String("phase")
	phase, ok := ParseNodePhase(rawPhase)
	if !ok && rawPhase != "" {
		degraded = append(degraded, Degraded{Field: prefix + "phase", Value: rawPhase})
	}
	n.Phase = phase

	var bad bool
	if n.StartedAt, bad = timeAt(m, "startedAt"); bad {
		degraded = append(degraded, Degraded{Field: prefix + "startedAt", Value: m.String("startedAt")})
	}
	if n.FinishedAt, bad = timeAt(m, "finishedAt"); bad {
		degraded = append(degraded, Degraded{Field: prefix + "finishedAt", Value: m.String("finishedAt")})
	}
	return n, degraded
}

func timeAt(o kube.Object, path ...string) (t *time.Time, malformed bool) {
	t, ok := o.Time(path...)
	return t, !ok
}

func stringMap(o kube.Object) map[string]string {
	if len(o) == 0 {
		return nil
	}
	out := make(map[string]string, len(o))
	for k, v := range o {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
