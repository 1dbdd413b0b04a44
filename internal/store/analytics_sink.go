package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/smilemakc/avtrace/internal/domain"
)

// AnalyticsSink batches DecisionLog entries and writes them to a SQL
// warehouse (ClickHouse or similar column store reached via database/sql)
// for offline analysis of a task's condition-checker hit rate across runs —
// the same batched-buffer-plus-background-flusher shape used for
// high-volume structured logging elsewhere in this codebase, repointed at
// decision logs instead of workflow-execution events. It implements
// verify.Sink.
type AnalyticsSink struct {
	db            *sql.DB
	tableName     string
	batchSize     int
	flushInterval time.Duration

	buffer []analyticsRow
	mu     sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

type analyticsRow struct {
	timestamp time.Time
	runID     string
	entry     domain.DecisionLog
}

// AnalyticsSinkConfig configures an AnalyticsSink.
type AnalyticsSinkConfig struct {
	DB            *sql.DB
	TableName     string        // defaults to "decision_log_events"
	BatchSize     int           // defaults to 100
	FlushInterval time.Duration // defaults to 5s
	CreateTable   bool
}

// NewAnalyticsSink builds an AnalyticsSink and starts its background
// flusher.
func NewAnalyticsSink(cfg AnalyticsSinkConfig) (*AnalyticsSink, error) {
	if cfg.DB == nil {
		return nil, fmt.Errorf("analytics sink requires a database connection")
	}

	tableName := cfg.TableName
	if tableName == "" {
		tableName = "decision_log_events"
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &AnalyticsSink{
		db:            cfg.DB,
		tableName:     tableName,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		buffer:        make([]analyticsRow, 0, batchSize),
		ctx:           ctx,
		cancel:        cancel,
	}

	if cfg.CreateTable {
		if err := s.createTable(); err != nil {
			cancel()
			return nil, fmt.Errorf("creating analytics table: %w", err)
		}
	}

	s.wg.Add(1)
	go s.backgroundFlusher()

	return s, nil
}

func (s *AnalyticsSink) createTable() error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			timestamp DateTime64(3),
			run_id String,
			frame_index Int32,
			node_id String,
			strategy String,
			checker_type String,
			decision UInt8,
			details String,
			metadata String
		) ENGINE = MergeTree()
		ORDER BY (run_id, node_id, timestamp)
		PARTITION BY toYYYYMM(timestamp)
	`, s.tableName)

	_, err := s.db.ExecContext(s.ctx, query)
	return err
}

func (s *AnalyticsSink) backgroundFlusher() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.flush()
			return
		case <-ticker.C:
			s.flush()
		}
	}
}

// Publish implements verify.Sink.
func (s *AnalyticsSink) Publish(runID string, entry domain.DecisionLog) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.buffer = append(s.buffer, analyticsRow{timestamp: time.Now(), runID: runID, entry: entry})
	if len(s.buffer) >= s.batchSize {
		go s.flush()
	}
}

func (s *AnalyticsSink) flush() {
	s.mu.Lock()
	if len(s.buffer) == 0 {
		s.mu.Unlock()
		return
	}
	rows := s.buffer
	s.buffer = make([]analyticsRow, 0, s.batchSize)
	s.mu.Unlock()

	if err := s.writeRows(rows); err != nil {
		log.Error().Err(err).Str("table", s.tableName).Msg("analytics sink failed to flush decision log batch")
	}
}

func (s *AnalyticsSink) writeRows(rows []analyticsRow) error {
	if len(rows) == 0 {
		return nil
	}

	// The final flushes run after Close has cancelled s.ctx, so the write
	// keeps s.ctx's values but not its cancellation.
	ctx := context.WithoutCancel(s.ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (
			timestamp, run_id, frame_index, node_id, strategy, checker_type,
			decision, details, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.tableName))
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		var decisionInt int
		if row.entry.Decision {
			decisionInt = 1
		}

		metadataJSON := "{}"
		if len(row.entry.MatchedKeywords) > 0 || len(row.entry.UnmatchedKeywords) > 0 {
			metadataBytes, err := json.Marshal(map[string]any{
				"matched_keywords":   row.entry.MatchedKeywords,
				"unmatched_keywords": row.entry.UnmatchedKeywords,
			})
			if err == nil {
				metadataJSON = string(metadataBytes)
			}
		}

		if _, err := stmt.ExecContext(ctx,
			row.timestamp,
			row.runID,
			row.entry.FrameIndex,
			row.entry.NodeID,
			row.entry.Strategy,
			row.entry.CheckerType,
			decisionInt,
			row.entry.Details,
			metadataJSON,
		); err != nil {
			return fmt.Errorf("inserting decision log row: %w", err)
		}
	}

	return tx.Commit()
}

// Close flushes any buffered rows and stops the background flusher.
func (s *AnalyticsSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.flush()
	return nil
}
