// Package domain holds workflow declarations and their compiled plans.
//
// Declarations are plain values: building a Workflow performs no I/O and the
// external orchestration platform owns scheduling, caching and execution.
package domain
