// 包 store 提供抓取台账的存储实现（SQLite），包含表迁移/写入/查询/重置等操作。
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"go-tistory-archive/internal/model"
)

// SQLite 封装 *sql.DB，基于 modernc.org/sqlite（纯 Go 实现）。
type SQLite struct {
	db *sql.DB
}

// OpenSQLite 打开 SQLite 数据库并执行自动迁移。
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

// Reset 清空台账（不删除数据库文件）。
func (s *SQLite) Reset(ctx context.Context) error {
	for _, table := range []string{"posts", "failures"} {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	return nil
}

// migrate 执行建表语句，保持幂等。
func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS posts (
            entry INTEGER,
            cursor INTEGER UNIQUE,
            title TEXT,
            categories TEXT,
            date TIMESTAMP,
            path TEXT,
            images INTEGER,
            archived_at TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS failures (
            cursor INTEGER UNIQUE,
            kind TEXT,
            reason TEXT,
            created_at TIMESTAMP
        );`,
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("exec migrate: %w", err)
		}
	}
	return nil
}

// UpsertPost 记录一篇已归档文章（cursor 唯一），并清除该游标之前的失败记录。
func (s *SQLite) UpsertPost(ctx context.Context, r model.Record) error {
	if r.Cursor <= 0 {
		return errors.New("record.cursor required")
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO posts(entry, cursor, title, categories, date, path, images, archived_at)
        VALUES(?,?,?,?,?,?,?,?)
        ON CONFLICT(cursor) DO UPDATE SET entry=excluded.entry, title=excluded.title, categories=excluded.categories,
            date=excluded.date, path=excluded.path, images=excluded.images, archived_at=excluded.archived_at`,
		r.Entry, r.Cursor, r.Title, strings.Join(r.Categories, "/"), r.Date, r.Path, r.Images, nowOr(r.ArchivedAt))
	if err != nil {
		return fmt.Errorf("upsert post %d: %w", r.Cursor, err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM failures WHERE cursor = ?`, r.Cursor); err != nil {
		return fmt.Errorf("clear failure %d: %w", r.Cursor, err)
	}
	return nil
}

// AddFailure 记录一个被放弃的游标。
func (s *SQLite) AddFailure(ctx context.Context, f model.Failure) error {
	if f.Cursor <= 0 {
		return errors.New("failure.cursor required")
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO failures(cursor, kind, reason, created_at)
        VALUES(?,?,?,?)
        ON CONFLICT(cursor) DO UPDATE SET kind=excluded.kind, reason=excluded.reason, created_at=excluded.created_at`,
		f.Cursor, f.Kind, f.Reason, nowOr(f.CreatedAt))
	if err != nil {
		return fmt.Errorf("add failure %d: %w", f.Cursor, err)
	}
	return nil
}

// ListPosts 返回全部已归档文章，按游标升序。
func (s *SQLite) ListPosts(ctx context.Context) ([]model.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT entry, cursor, title, COALESCE(categories,''), date, path, images, archived_at
        FROM posts ORDER BY cursor`)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()
	var out []model.Record
	for rows.Next() {
		var r model.Record
		var cats string
		var date, archivedAt sql.NullTime
		if err := rows.Scan(&r.Entry, &r.Cursor, &r.Title, &cats, &date, &r.Path, &r.Images, &archivedAt); err != nil {
			return nil, fmt.Errorf("scan posts: %w", err)
		}
		if cats != "" {
			r.Categories = strings.Split(cats, "/")
		}
		if date.Valid {
			r.Date = date.Time
		}
		if archivedAt.Valid {
			r.ArchivedAt = archivedAt.Time
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return out, nil
}

// ListFailures 返回全部失败记录，按游标升序。
func (s *SQLite) ListFailures(ctx context.Context) ([]model.Failure, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT cursor, kind, COALESCE(reason,''), created_at FROM failures ORDER BY cursor`)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()
	var out []model.Failure
	for rows.Next() {
		var f model.Failure
		var createdAt sql.NullTime
		if err := rows.Scan(&f.Cursor, &f.Kind, &f.Reason, &createdAt); err != nil {
			return nil, fmt.Errorf("scan failures: %w", err)
		}
		if createdAt.Valid {
			f.CreatedAt = createdAt.Time
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate failures: %w", err)
	}
	return out, nil
}

// Stats 统计汇总：文章数、失败数、图片总数、最大游标、更新时间。
func (s *SQLite) Stats(ctx context.Context) (model.Stats, error) {
	var st model.Stats
	var lastPost, lastFail int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1), COALESCE(SUM(images),0), COALESCE(MAX(cursor),0) FROM posts`).
		Scan(&st.PostsTotal, &st.ImagesTotal, &lastPost); err != nil {
		return st, fmt.Errorf("count posts: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1), COALESCE(MAX(cursor),0) FROM failures`).
		Scan(&st.FailuresTotal, &lastFail); err != nil {
		return st, fmt.Errorf("count failures: %w", err)
	}
	st.LastEntry = max(lastPost, lastFail)
	st.UpdatedAt = time.Now()
	return st, nil
}

func nowOr(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
