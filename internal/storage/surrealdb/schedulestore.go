package surrealdb

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/bobmcallan/portwatch/internal/common"
	"github.com/bobmcallan/portwatch/internal/interfaces"
	"github.com/bobmcallan/portwatch/internal/models"
)

// ScheduleStore persists the last run of each schedule, keyed by name.
type ScheduleStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewScheduleStore creates a new ScheduleStore.
func NewScheduleStore(db *surrealdb.DB, logger *common.Logger) *ScheduleStore {
	return &ScheduleStore{db: db, logger: logger}
}

func (s *ScheduleStore) LastRun(ctx context.Context, name string) (*models.ScheduleRun, error) {
	sql := "SELECT * OMIT id FROM $rid"
	vars := map[string]any{"rid": surrealmodels.NewRecordID(tableScheduleRun, name)}

	results, err := surrealdb.Query[[]models.ScheduleRun](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule run %s: %w", name, err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	run := (*results)[0].Result[0]
	return &run, nil
}

func (s *ScheduleStore) RecordRun(ctx context.Context, run *models.ScheduleRun) error {
	if run == nil || run.Name == "" {
		return fmt.Errorf("record run: schedule name is required")
	}

	sql := "UPSERT $rid CONTENT $data"
	vars := map[string]any{"rid": surrealmodels.NewRecordID(tableScheduleRun, run.Name), "data": run}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[any](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("failed to record schedule run after retries: %w", lastErr)
}

// Compile-time check
var _ interfaces.ScheduleStore = (*ScheduleStore)(nil)
