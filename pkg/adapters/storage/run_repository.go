package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/renjie/prism-co2/pkg/core/domain"
	"github.com/renjie/prism-co2/pkg/core/ports"
)

// 分页默认值
const (
	DefaultPageSize = 100
	MaxPageSize     = 1000
)

// SQLiteRunRepository ports.RunRepository 的 sqlite 实现
type SQLiteRunRepository struct {
	db     *sql.DB
	logger logrus.FieldLogger
}

var _ ports.RunRepository = (*SQLiteRunRepository)(nil)

// NewSQLiteRunRepository 创建仓储; 调用方负责 InitDB 和关闭 db
func NewSQLiteRunRepository(db *sql.DB, logger logrus.FieldLogger) *SQLiteRunRepository {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SQLiteRunRepository{db: db, logger: logger}
}

// Open 打开数据库文件并完成建表
func Open(ctx context.Context, fileName string, logger logrus.FieldLogger) (*SQLiteRunRepository, error) {
	db, err := NewDB(fileName)
	if err != nil {
		return nil, err
	}
	repo := NewSQLiteRunRepository(db, logger)
	if err := repo.InitDB(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// Close 关闭底层数据库
func (r *SQLiteRunRepository) Close() error { return r.db.Close() }

// SaveRun 新增或更新运行摘要
func (r *SQLiteRunRepository) SaveRun(ctx context.Context, run domain.Run) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO runs (id, run_trigger, operator, prefix, status, data_start_unix_ms, data_end_unix_ms,
            row_count, calibrated, error, started_at_unix_ms, finished_at_unix_ms)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            status = excluded.status,
            row_count = excluded.row_count,
            calibrated = excluded.calibrated,
            error = excluded.error,
            finished_at_unix_ms = excluded.finished_at_unix_ms`,
		run.ID, string(run.Trigger), run.Operator, run.Prefix, string(run.Status),
		run.DataStart.UnixMilli(), run.DataEnd.UnixMilli(),
		run.Rows, run.Calibrated, run.Error,
		run.StartedAt.UnixMilli(), nullableMillis(run.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

// SaveReports 在单个事务中保存检查审计记录
func (r *SQLiteRunRepository) SaveReports(ctx context.Context, runID string, reports []domain.CheckReport) error {
	if len(reports) == 0 {
		return nil
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
            INSERT INTO check_reports (id, run_id, seq, check_name, channel, selection,
                evaluated, flagged, detail, created_at_unix_ms)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i, rep := range reports {
			if _, err := stmt.ExecContext(ctx,
				rep.ID, runID, i, rep.Check, string(rep.Channel), string(rep.Selection),
				rep.Evaluated, rep.Flagged, rep.Detail, rep.CreatedAt.UnixMilli(),
			); err != nil {
				return fmt.Errorf("insert report %d: %w", i, err)
			}
		}
		return nil
	})
}

// SaveRecords 在单个事务中保存结果表, 每行一个 JSON 文档
func (r *SQLiteRunRepository) SaveRecords(ctx context.Context, runID string, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
            INSERT INTO records (run_id, seq, timestamp_unix_ms, payload) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i, rec := range records {
			payload, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encode record %d: %w", i, err)
			}
			if _, err := stmt.ExecContext(ctx, runID, i, rec.Timestamp.UnixMilli(), string(payload)); err != nil {
				return fmt.Errorf("insert record %d: %w", i, err)
			}
		}
		return nil
	})
	if err == nil {
		r.logger.WithFields(logrus.Fields{"run_id": runID, "records": len(records)}).Debug("records stored")
	}
	return err
}

// GetRun 获取指定运行
func (r *SQLiteRunRepository) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	row := r.db.QueryRowContext(ctx, selectRun+` WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return &run, nil
}

// ListRuns 按开始时间倒序列出最近的运行
func (r *SQLiteRunRepository) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	limit = clampLimit(limit)
	rows, err := r.db.QueryContext(ctx, selectRun+` ORDER BY started_at_unix_ms DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	out := []domain.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListReports 获取运行的检查审计记录 (按执行顺序)
func (r *SQLiteRunRepository) ListReports(ctx context.Context, runID string) ([]domain.CheckReport, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, run_id, check_name, channel, selection, evaluated, flagged, detail, created_at_unix_ms
        FROM check_reports WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	out := []domain.CheckReport{}
	for rows.Next() {
		var (
			rep                domain.CheckReport
			channel, selection string
			detail             sql.NullString
			createdAt          int64
		)
		if err := rows.Scan(&rep.ID, &rep.RunID, &rep.Check, &channel, &selection,
			&rep.Evaluated, &rep.Flagged, &detail, &createdAt); err != nil {
			return nil, err
		}
		rep.Channel = domain.Channel(channel)
		rep.Selection = domain.Mode(selection)
		rep.Detail = detail.String
		rep.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListRecords 分页获取运行的结果行 (按时间顺序)
func (r *SQLiteRunRepository) ListRecords(ctx context.Context, runID string, offset, limit int) ([]domain.Record, error) {
	limit = clampLimit(limit)
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.QueryContext(ctx, `
        SELECT payload FROM records WHERE run_id = ? ORDER BY seq LIMIT ? OFFSET ?`, runID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	out := []domain.Record{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var rec domain.Record
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

const selectRun = `
    SELECT id, run_trigger, operator, prefix, status, data_start_unix_ms, data_end_unix_ms,
        row_count, calibrated, error, started_at_unix_ms, finished_at_unix_ms
    FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (domain.Run, error) {
	var (
		run                       domain.Run
		trigger, status           string
		operator, prefix, errText sql.NullString
		dataStart, dataEnd, start int64
		finished                  sql.NullInt64
	)
	if err := s.Scan(&run.ID, &trigger, &operator, &prefix, &status, &dataStart, &dataEnd,
		&run.Rows, &run.Calibrated, &errText, &start, &finished); err != nil {
		return domain.Run{}, err
	}
	run.Trigger = domain.RunTrigger(trigger)
	run.Status = domain.RunStatus(status)
	run.Operator = operator.String
	run.Prefix = prefix.String
	run.Error = errText.String
	run.DataStart = time.UnixMilli(dataStart).UTC()
	run.DataEnd = time.UnixMilli(dataEnd).UTC()
	run.StartedAt = time.UnixMilli(start).UTC()
	if finished.Valid {
		run.FinishedAt = time.UnixMilli(finished.Int64).UTC()
	}
	return run, nil
}

func (r *SQLiteRunRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

func nullableMillis(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}
