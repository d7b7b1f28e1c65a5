// Package history implements the warmup/cooldown engine of spec.md §4.D
// (component D): the rolling-epoch-history walk that turns a Delegation
// into (effective, activating, deactivating) stake at a target epoch.
package history

import (
	"math"

	"nhbstake/stake/state"
	"nhbstake/stake/sysvar"
)

// Status is the (effective, activating, deactivating) triple spec.md §4.D
// computes.
type Status struct {
	Effective    uint64
	Activating   uint64
	Deactivating uint64
}

// WarmupRate selects the per-epoch warmup/cooldown rate: 0.09 before
// cutoff, 0.25 at or after it. warmup_cooldown_rate is persisted on the
// Delegation but, per spec.md's Open Questions, the effective rate always
// comes from this selector, not the stored field.
func WarmupRate(epoch, cutoff uint64) float64 {
	if epoch >= cutoff {
		return 0.25
	}
	return 0.09
}

// StakeActivatingAndDeactivating computes the activation/cooldown status of
// d at targetEpoch given the cluster-wide history h and the rate cutoff
// epoch.
func StakeActivatingAndDeactivating(d state.Delegation, targetEpoch uint64, h sysvar.History, cutoffEpoch uint64) Status {
	if d.IsBootstrap() {
		return Status{Effective: d.Stake}
	}
	if d.ActivationEpoch == d.DeactivationEpoch {
		return Status{}
	}
	if targetEpoch < d.ActivationEpoch {
		return Status{}
	}
	if targetEpoch == d.ActivationEpoch {
		return Status{Activating: d.Stake}
	}

	activationLimit := d.DeactivationEpoch
	if targetEpoch < activationLimit {
		activationLimit = targetEpoch
	}
	effective := activationWalk(d.Stake, d.ActivationEpoch, activationLimit, h, cutoffEpoch)

	if targetEpoch < d.DeactivationEpoch {
		activating := uint64(0)
		if effective < d.Stake {
			activating = d.Stake - effective
		}
		return Status{Effective: effective, Activating: activating}
	}
	if targetEpoch == d.DeactivationEpoch {
		return Status{Effective: effective, Deactivating: effective}
	}

	remaining := cooldownWalk(effective, d.DeactivationEpoch, targetEpoch, h, cutoffEpoch)
	return Status{Effective: remaining, Deactivating: remaining}
}

// activationWalk advances current effective stake from 0 toward total,
// one epoch at a time from startEpoch+1 through limitEpoch, weighting
// each epoch's movement by the cluster's activating pool that epoch.
func activationWalk(total, startEpoch, limitEpoch uint64, h sysvar.History, cutoffEpoch uint64) uint64 {
	cluster, ok := h.Get(startEpoch)
	if !ok {
		return 0
	}
	current := uint64(0)
	for epoch := startEpoch + 1; epoch <= limitEpoch; epoch++ {
		if cluster.Activating == 0 {
			break
		}
		capacity := total - current
		if capacity == 0 {
			break
		}
		delta := clusterWeightedMove(capacity, cluster.Activating, cluster.Effective, epoch, cutoffEpoch)
		current += delta

		cluster, ok = h.Get(epoch)
		if !ok {
			break
		}
	}
	return current
}

// cooldownWalk is activationWalk's mirror: it reduces current effective
// stake from total toward zero, weighting each epoch's movement by the
// cluster's deactivating pool that epoch.
func cooldownWalk(total, startEpoch, limitEpoch uint64, h sysvar.History, cutoffEpoch uint64) uint64 {
	cluster, ok := h.Get(startEpoch)
	if !ok {
		return total
	}
	current := total
	for epoch := startEpoch + 1; epoch <= limitEpoch; epoch++ {
		if cluster.Deactivating == 0 || current == 0 {
			break
		}
		delta := clusterWeightedMove(current, cluster.Deactivating, cluster.Effective, epoch, cutoffEpoch)
		current -= delta

		cluster, ok = h.Get(epoch)
		if !ok {
			break
		}
	}
	return current
}

// clusterWeightedMove computes one epoch's warmup/cooldown increment:
// this delegation's share of the cluster-wide activating/deactivating pool,
// scaled by the cluster's effective stake and the epoch's rate, floored and
// bounded to at least 1 and at most the remaining capacity.
func clusterWeightedMove(capacity, clusterPool, clusterEffective, epoch, cutoffEpoch uint64) uint64 {
	weight := float64(capacity) / float64(clusterPool)
	rate := WarmupRate(epoch, cutoffEpoch)
	delta := uint64(math.Floor(weight * float64(clusterEffective) * rate))
	if delta < 1 {
		delta = 1
	}
	if delta > capacity {
		delta = capacity
	}
	return delta
}
