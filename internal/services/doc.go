// Package services holds cross-cutting pipeline plumbing: context
// annotations shared by the workflow and logging layers, and the error
// taxonomy stage handlers use to classify failures.
package services
