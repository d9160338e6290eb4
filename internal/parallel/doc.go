// Package parallel provides the work-stealing pool used to build pipelines
// ahead of time.
package parallel
