// Package runner starts job runs and keeps job status in step with them.
//
// A Runner holds the active-task map from in-flight request identities to the
// jobs they belong to. It refuses to start a second run of a job that is
// already mapped, marks a job running when its run is submitted, and, from the
// pool's release hook, records the run's outcome as ready or failed before
// clearing the mapping.
package runner
