package params

import (
	"strconv"

	"github.com/codex-k8s/wfctl/internal/fault"
)

// Parameter names shared with the built-in templates.
const (
	SyncAutomated = "sync_policy_automated"
	SyncPrune     = "sync_policy_prune"
	SyncSelfHeal  = "sync_policy_self_heal"
)

// SyncPolicy selects how Argo CD synchronizes a generated application.
type SyncPolicy string

const (
	SyncManual    SyncPolicy = "manual"
	SyncAuto      SyncPolicy = "auto"
	SyncAutoPrune SyncPolicy = "auto-prune"
	SyncAutoHeal  SyncPolicy = "auto-heal"
)

// ParseSyncPolicy accepts manual, auto, auto-prune and auto-heal. Empty means manual.
func ParseSyncPolicy(s string) (SyncPolicy, error) {
	switch p := SyncPolicy(s); p {
	case "":
		return SyncManual, nil
	case SyncManual, SyncAuto, SyncAutoPrune, SyncAutoHeal:
		return p, nil
	}
	return "", fault.Invalid("Invalid sync policy '" + s + "': must be one of manual, auto, auto-prune, auto-heal")
}

// Apply writes the three boolean sync parameters into set.
func (p SyncPolicy) Apply(set *Set) {
	automated := p == SyncAuto || p == SyncAutoPrune || p == SyncAutoHeal
	set.Put(SyncAutomated, strconv.FormatBool(automated))
	set.Put(SyncPrune, strconv.FormatBool(p == SyncAutoPrune))
	set.Put(SyncSelfHeal, strconv.FormatBool(p == SyncAutoHeal))
}
