// Package workflow drives the pipeline: a video lane that acquires and
// extracts renditions, and a session lane that builds timelines and scores
// them. Each lane polls the store for the oldest item whose status it owns,
// transitions it to the matching processing status, runs the stage handler,
// and persists the outcome. Submission paths can nudge the lanes through
// Kick instead of waiting for the next poll tick.
//
// The session lane is where the cross-entity gating lives: a waiting session
// only starts building once its video's features are extracted and the
// store-wide CPU gate is claimed. The gate is held through building and
// scoring and released by the scoring stage (or by the failure path, so a
// failed build cannot deadlock the pipeline).
package workflow
