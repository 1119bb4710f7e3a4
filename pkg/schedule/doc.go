// Package schedule describes how often a job is meant to recur.
//
// The runner never triggers jobs on its own. Intervals are carried on the job
// record so that an external scheduler, or a person looking at the job list,
// can tell when a job is next due.
package schedule
