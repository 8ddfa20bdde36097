package main

import (
	"log/slog"

	"qoed/internal/acquire"
	"qoed/internal/config"
	"qoed/internal/extract"
	"qoed/internal/scoring"
	"qoed/internal/store"
	"qoed/internal/timeline"
	"qoed/internal/workflow"
)

func newStageSet(cfg *config.Config, st *store.Store, logger *slog.Logger) workflow.StageSet {
	return workflow.StageSet{
		Acquirer:  acquire.NewAcquirer(cfg, st, logger),
		Extractor: extract.NewExtractor(cfg, st, logger),
		Builder:   timeline.NewBuilder(cfg, st, logger),
		Scorer:    scoring.NewScorer(cfg, st, logger),
	}
}
