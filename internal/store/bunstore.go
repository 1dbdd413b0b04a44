// Package store persists verification runs and their decision logs via
// bun/PostgreSQL, modeled on the same model-per-concern, upsert-on-conflict
// idiom used elsewhere for relational persistence.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/smilemakc/avtrace/internal/domain"
)

// BunStore persists runs and decision logs to PostgreSQL via bun.
type BunStore struct {
	db *bun.DB
}

// NewBunStore opens a bun.DB over dsn using pgdriver/pgdialect.
func NewBunStore(dsn string) *BunStore {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	return &BunStore{db: db}
}

// InitSchema creates the run and decision_log tables if they don't exist.
func (s *BunStore) InitSchema(ctx context.Context) error {
	models := []interface{}{
		(*RunModel)(nil),
		(*DecisionLogModel)(nil),
	}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Ping checks connectivity to the database.
func (s *BunStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the underlying connection pool.
func (s *BunStore) Close() error {
	return s.db.Close()
}

// RunModel is the persisted record of one verification run.
type RunModel struct {
	bun.BaseModel `bun:"table:runs,alias:r"`

	ID                 uuid.UUID `bun:"id,pk"`
	TaskName           string    `bun:"task_name"`
	OK                 bool      `bun:"ok"`
	Reason             string    `bun:"reason"`
	TotalScore         int       `bun:"total_score"`
	ManualReviewNeeded bool      `bun:"manual_review_needed"`
	Matched            []byte    `bun:"matched,type:jsonb"`
	CreatedAt          time.Time `bun:"created_at"`
}

// NewRunModel builds a RunModel from a completed VerifyResult.
func NewRunModel(id uuid.UUID, taskName string, result *domain.VerifyResult, matchedJSON []byte, createdAt time.Time) *RunModel {
	return &RunModel{
		ID:                 id,
		TaskName:           taskName,
		OK:                 result.OK,
		Reason:             result.Reason,
		TotalScore:         result.TotalScore,
		ManualReviewNeeded: result.ManualReviewNeeded,
		Matched:            matchedJSON,
		CreatedAt:          createdAt,
	}
}

// DecisionLogModel is one persisted DecisionLog entry, scoped to the run it
// was produced during.
type DecisionLogModel struct {
	bun.BaseModel `bun:"table:decision_logs,alias:dl"`

	ID                int64     `bun:"id,pk,autoincrement"`
	RunID             uuid.UUID `bun:"run_id"`
	FrameIndex        int       `bun:"frame_index"`
	NodeID            string    `bun:"node_id"`
	Strategy          string    `bun:"strategy"`
	Decision          bool      `bun:"decision"`
	Details           string    `bun:"details"`
	CheckerType       string    `bun:"checker_type"`
	CheckerResult     bool      `bun:"checker_result"`
	MatchedKeywords   []string  `bun:"matched_keywords,array"`
	UnmatchedKeywords []string  `bun:"unmatched_keywords,array"`
}

// NewDecisionLogModel builds a DecisionLogModel from a domain.DecisionLog.
func NewDecisionLogModel(runID uuid.UUID, l domain.DecisionLog) *DecisionLogModel {
	return &DecisionLogModel{
		RunID:             runID,
		FrameIndex:        l.FrameIndex,
		NodeID:            l.NodeID,
		Strategy:          l.Strategy,
		Decision:          l.Decision,
		Details:           l.Details,
		CheckerType:       l.CheckerType,
		CheckerResult:     l.CheckerResult,
		MatchedKeywords:   l.MatchedKeywords,
		UnmatchedKeywords: l.UnmatchedKeywords,
	}
}

// SaveRun upserts the run record and inserts its decision logs in one
// transaction, mirroring the save-aggregate-plus-children idiom used for
// every other aggregate in this codebase.
func (s *BunStore) SaveRun(ctx context.Context, id uuid.UUID, taskName string, result *domain.VerifyResult, matchedJSON []byte) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		model := NewRunModel(id, taskName, result, matchedJSON, time.Now())
		if _, err := tx.NewInsert().Model(model).On("CONFLICT (id) DO UPDATE").Exec(ctx); err != nil {
			return err
		}

		if _, err := tx.NewDelete().Model((*DecisionLogModel)(nil)).Where("run_id = ?", id).Exec(ctx); err != nil {
			return err
		}

		if len(result.Logs) == 0 {
			return nil
		}

		logModels := make([]*DecisionLogModel, len(result.Logs))
		for i, l := range result.Logs {
			logModels[i] = NewDecisionLogModel(id, l)
		}
		_, err := tx.NewInsert().Model(&logModels).Exec(ctx)
		return err
	})
}

// GetRun fetches a run's top-level record by ID.
func (s *BunStore) GetRun(ctx context.Context, id uuid.UUID) (*RunModel, error) {
	model := new(RunModel)
	err := s.db.NewSelect().Model(model).Where("id = ?", id).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return model, nil
}

// ListDecisionLogs fetches every decision log entry for a run, ordered by
// frame index.
func (s *BunStore) ListDecisionLogs(ctx context.Context, runID uuid.UUID) ([]*DecisionLogModel, error) {
	var logs []*DecisionLogModel
	err := s.db.NewSelect().Model(&logs).Where("run_id = ?", runID).Order("frame_index ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}
	return logs, nil
}
