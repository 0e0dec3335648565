package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

const createKVTable = `
CREATE TABLE IF NOT EXISTS ypf_kv (
    k TEXT PRIMARY KEY,
    v BLOB NOT NULL
)`

const upsertKV = `INSERT INTO ypf_kv (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v`

// SQLiteDriver 单机多进程共享同一个数据库文件; 写事务使用 BEGIN IMMEDIATE,
// 进程间由 SQLite 文件锁串行化
type SQLiteDriver struct {
	db *sql.DB
}

var _ Driver = (*SQLiteDriver)(nil)

// OpenSQLite 打开 (必要时创建) 数据库并建表
func OpenSQLite(path string) (*SQLiteDriver, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// 单连接: PRAGMA 只需设置一次, 手动 BEGIN/COMMIT 也总落在同一个连接上
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		createKVTable,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init sqlite (%s): %w", stmt, err)
		}
	}
	return &SQLiteDriver{db: db}, nil
}

func (s *SQLiteDriver) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, `SELECT v FROM ypf_kv WHERE k = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite get %s: %w", key, err)
	}
	return v, nil
}

func (s *SQLiteDriver) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.ExecContext(ctx, upsertKV, key, value); err != nil {
		return fmt.Errorf("sqlite set %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteDriver) Del(ctx context.Context, keys ...string) error {
	return s.immediate(ctx, func(conn *sql.Conn) error {
		for _, k := range keys {
			if _, err := conn.ExecContext(ctx, `DELETE FROM ypf_kv WHERE k = ?`, k); err != nil {
				return fmt.Errorf("sqlite del %s: %w", k, err)
			}
		}
		return nil
	})
}

func (s *SQLiteDriver) SetMulti(ctx context.Context, values map[string][]byte) error {
	return s.immediate(ctx, func(conn *sql.Conn) error {
		for k, v := range values {
			if _, err := conn.ExecContext(ctx, upsertKV, k, v); err != nil {
				return fmt.Errorf("sqlite set %s: %w", k, err)
			}
		}
		return nil
	})
}

func (s *SQLiteDriver) ApplyJoin(ctx context.Context, key, subtaskID string, result []byte) (int, error) {
	var remaining int
	err := s.immediate(ctx, func(conn *sql.Conn) error {
		var raw []byte
		err := conn.QueryRowContext(ctx, `SELECT v FROM ypf_kv WHERE k = ?`, key).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("sqlite get %s: %w", key, err)
		}
		out, n, err := mergeJoin(raw, subtaskID, result)
		if err != nil {
			return err
		}
		if _, err := conn.ExecContext(ctx, upsertKV, key, out); err != nil {
			return fmt.Errorf("sqlite set %s: %w", key, err)
		}
		remaining = n
		return nil
	})
	return remaining, err
}

// immediate 在 BEGIN IMMEDIATE 事务中执行 fn, 出错回滚
func (s *SQLiteDriver) immediate(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("sqlite conn: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	if err := fn(conn); err != nil {
		// ctx 可能已取消, 回滚不能依赖它
		_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		return err
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		return fmt.Errorf("sqlite commit: %w", err)
	}
	return nil
}

func (s *SQLiteDriver) Close() error {
	return s.db.Close()
}
