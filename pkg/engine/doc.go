// Package engine drives the lifecycle of feature environments: the
// ordered multi-system provisioning of a compute instance, source
// branch, and database branches, and their best-effort teardown.
//
// Provisioning is fail-fast: any failed step aborts the remaining
// steps and no environment record is persisted. Teardown is the
// opposite: per-resource failures are recovered and aggregated, and
// the local record is removed unconditionally once deletion has been
// attempted, so the store never presents a ghost environment.
package engine
