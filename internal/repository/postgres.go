package repository

import (
	"context"
	"time"

	"github.com/deppfellow/agent-chat-backend/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// PostgresStore keeps threads, runs and checkpoints in PostgreSQL. Each row
// carries the full resource as a JSONB document next to the columns used
// for lookups and ordering.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore returns a store using pool. The schema is created by
// database.Migrate.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (p *PostgresStore) Driver() string { return "postgres" }

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// noRows rewrites pgx.ErrNoRows into ErrNotFound and attaches a stack to
// anything else.
func noRows(err error, table, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound(table, id)
	}
	return errors.WithStack(err)
}

func (p *PostgresStore) CreateThread(ctx context.Context, thread model.Thread, initial model.Checkpoint) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO threads (thread_id, created_at, updated_at, status, document)
			VALUES ($1, $2, $3, $4, $5)`,
			thread.ThreadID, thread.CreatedAt, thread.UpdatedAt, thread.Status, thread)
		if err != nil {
			return errors.Wrap(err, "insert thread")
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO checkpoints (thread_id, checkpoint_id, document)
			VALUES ($1, $2, $3)`,
			thread.ThreadID, initial.Checkpoint.CheckpointID, initial)
		if err != nil {
			return errors.Wrap(err, "insert initial checkpoint")
		}
		return nil
	})
}

func (p *PostgresStore) GetThread(ctx context.Context, threadID string) (model.Thread, error) {
	var thread model.Thread
	err := p.pool.QueryRow(ctx, `SELECT document FROM threads WHERE thread_id = $1`, threadID).Scan(&thread)
	if err != nil {
		return model.Thread{}, noRows(err, "threads", threadID)
	}
	return thread, nil
}

func (p *PostgresStore) UpdateThread(ctx context.Context, thread model.Thread) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE threads SET updated_at = $2, status = $3, document = $4
		WHERE thread_id = $1`,
		thread.ThreadID, thread.UpdatedAt, thread.Status, thread)
	if err != nil {
		return errors.Wrap(err, "update thread")
	}
	if tag.RowsAffected() == 0 {
		return notFound("threads", thread.ThreadID)
	}
	return nil
}

func (p *PostgresStore) DeleteThread(ctx context.Context, threadID string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM threads WHERE thread_id = $1`, threadID)
	if err != nil {
		return errors.Wrap(err, "delete thread")
	}
	if tag.RowsAffected() == 0 {
		return notFound("threads", threadID)
	}
	return nil
}

func (p *PostgresStore) SearchThreads(ctx context.Context, offset, limit int) ([]model.Thread, int, error) {
	var total int
	if err := p.pool.QueryRow(ctx, `SELECT count(*) FROM threads`).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count threads")
	}

	rows, err := p.pool.Query(ctx, `
		SELECT document FROM threads
		ORDER BY updated_at DESC, thread_id
		OFFSET $1 LIMIT $2`, offset, limit)
	if err != nil {
		return nil, 0, errors.Wrap(err, "search threads")
	}

	threads, err := pgx.CollectRows(rows, pgx.RowTo[model.Thread])
	if err != nil {
		return nil, 0, errors.Wrap(err, "scan threads")
	}
	return threads, total, nil
}

func (p *PostgresStore) PruneThreads(ctx context.Context, idleBefore time.Time) (int, error) {
	tag, err := p.pool.Exec(ctx, `
		DELETE FROM threads WHERE updated_at < $1 AND status <> $2`,
		idleBefore, model.ThreadBusy)
	if err != nil {
		return 0, errors.Wrap(err, "prune threads")
	}
	return int(tag.RowsAffected()), nil
}

func (p *PostgresStore) SaveRun(ctx context.Context, run model.Run) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO runs (run_id, thread_id, created_at, document)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (run_id) DO UPDATE SET document = EXCLUDED.document`,
		run.RunID, run.ThreadID, run.CreatedAt, run)
	if err != nil {
		return errors.Wrap(err, "save run")
	}
	return nil
}

func (p *PostgresStore) GetRun(ctx context.Context, threadID, runID string) (model.Run, error) {
	var run model.Run
	err := p.pool.QueryRow(ctx, `
		SELECT document FROM runs WHERE thread_id = $1 AND run_id = $2`,
		threadID, runID).Scan(&run)
	if err != nil {
		return model.Run{}, noRows(err, "runs", runID)
	}
	return run, nil
}

func (p *PostgresStore) ListRuns(ctx context.Context, threadID string, offset, limit int) ([]model.Run, int, error) {
	if _, err := p.GetThread(ctx, threadID); err != nil {
		return nil, 0, err
	}

	var total int
	if err := p.pool.QueryRow(ctx, `SELECT count(*) FROM runs WHERE thread_id = $1`, threadID).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count runs")
	}

	rows, err := p.pool.Query(ctx, `
		SELECT document FROM runs WHERE thread_id = $1
		ORDER BY created_at DESC, run_id
		OFFSET $2 LIMIT $3`, threadID, offset, limit)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list runs")
	}

	runs, err := pgx.CollectRows(rows, pgx.RowTo[model.Run])
	if err != nil {
		return nil, 0, errors.Wrap(err, "scan runs")
	}
	return runs, total, nil
}

func (p *PostgresStore) AddCheckpoint(ctx context.Context, threadID string, cp model.Checkpoint) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO checkpoints (thread_id, checkpoint_id, document)
		VALUES ($1, $2, $3)`,
		threadID, cp.Checkpoint.CheckpointID, cp)
	if err != nil {
		return errors.Wrap(err, "add checkpoint")
	}
	return nil
}

func (p *PostgresStore) ReplaceLatestCheckpoint(ctx context.Context, threadID string, cp model.Checkpoint) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE checkpoints SET checkpoint_id = $2, document = $3
		WHERE seq = (SELECT max(seq) FROM checkpoints WHERE thread_id = $1)`,
		threadID, cp.Checkpoint.CheckpointID, cp)
	if err != nil {
		return errors.Wrap(err, "replace checkpoint")
	}
	if tag.RowsAffected() == 0 {
		return notFound("checkpoints", threadID)
	}
	return nil
}

func (p *PostgresStore) LatestCheckpoint(ctx context.Context, threadID string) (model.Checkpoint, error) {
	var cp model.Checkpoint
	err := p.pool.QueryRow(ctx, `
		SELECT document FROM checkpoints WHERE thread_id = $1
		ORDER BY seq DESC LIMIT 1`, threadID).Scan(&cp)
	if err != nil {
		return model.Checkpoint{}, noRows(err, "checkpoints", threadID)
	}
	return cp, nil
}

func (p *PostgresStore) ListCheckpoints(ctx context.Context, threadID string, offset, limit int) ([]model.Checkpoint, int, error) {
	var total int
	if err := p.pool.QueryRow(ctx, `SELECT count(*) FROM checkpoints WHERE thread_id = $1`, threadID).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count checkpoints")
	}
	if total == 0 {
		return nil, 0, notFound("threads", threadID)
	}

	rows, err := p.pool.Query(ctx, `
		SELECT document FROM checkpoints WHERE thread_id = $1
		ORDER BY seq DESC
		OFFSET $2 LIMIT $3`, threadID, offset, limit)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list checkpoints")
	}

	checkpoints, err := pgx.CollectRows(rows, pgx.RowTo[model.Checkpoint])
	if err != nil {
		return nil, 0, errors.Wrap(err, "scan checkpoints")
	}
	return checkpoints, total, nil
}
