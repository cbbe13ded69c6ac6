package extract

import (
	"context"
	"fmt"

	"github.com/dkritz/sql-server-extractor/internal/catalog"
	"go.uber.org/zap"
)

// RunStats is an informational tally of one run. The extraction report is
// built from the filesystem afterwards, not from these counters.
type RunStats struct {
	Databases     int
	Objects       int
	Unavailable   int
	WriteFailures int
}

// Orchestrator sequences catalog discovery and per-object resolution and
// writing across all databases. The run is strictly sequential over a single
// session; failures are isolated at the smallest enclosing loop.
type Orchestrator struct {
	catalog  *catalog.Reader
	resolver *Resolver
	writer   *Writer
	log      *zap.Logger
}

func NewOrchestrator(reader *catalog.Reader, resolver *Resolver, writer *Writer, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		catalog:  reader,
		resolver: resolver,
		writer:   writer,
		log:      logger,
	}
}

// Run extracts every object of every user database. It returns an error only
// for the fatal class: database enumeration failure or context cancellation.
// A run completes even if every individual object failed.
func (o *Orchestrator) Run(ctx context.Context) (RunStats, error) {
	var stats RunStats

	databases, err := o.catalog.ListDatabases(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list databases: %w", err)
	}
	o.log.Info("found user databases", zap.Int("count", len(databases)))

	for _, dbName := range databases {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		o.log.Info("processing database", zap.String("database", dbName))
		if err := o.extractDatabase(ctx, dbName, &stats); err != nil {
			if ctx.Err() != nil {
				return stats, err
			}
			// Database-scoped failure: skip this database, keep the run alive.
			o.log.Warn("skipping database",
				zap.String("database", dbName),
				zap.Error(err))
			continue
		}
		stats.Databases++
		o.log.Info("completed extraction for database", zap.String("database", dbName))
	}
	return stats, nil
}

// extractDatabase walks one database kind by kind: tables, then views, then
// stored procedures. An enumeration failure aborts only this database.
func (o *Orchestrator) extractDatabase(ctx context.Context, dbName string, stats *RunStats) error {
	for _, kind := range catalog.Kinds {
		refs, err := o.catalog.List(ctx, dbName, kind)
		if err != nil {
			return err
		}
		o.log.Info(fmt.Sprintf("found %d %ss", len(refs), kind), zap.String("database", dbName))

		for _, ref := range refs {
			if err := ctx.Err(); err != nil {
				return err
			}
			o.extractObject(ctx, dbName, ref, stats)
		}
	}
	return nil
}

// extractObject resolves and writes a single object. No failure here is ever
// fatal to the run; write failures are logged and the object is skipped.
func (o *Orchestrator) extractObject(ctx context.Context, dbName string, ref catalog.ObjectRef, stats *RunStats) {
	res := o.resolver.Resolve(ctx, dbName, ref)
	if res.Source == SourceUnavailable {
		stats.Unavailable++
	}

	path, err := o.writer.Write(dbName, res)
	if err != nil {
		stats.WriteFailures++
		o.log.Warn("failed to write artifact",
			zap.String("database", dbName),
			zap.String("object", ref.FullName()),
			zap.Error(err))
		return
	}

	stats.Objects++
	o.log.Debug("saved object",
		zap.String("object", ref.FullName()),
		zap.Stringer("source", res.Source),
		zap.String("path", path))
}
