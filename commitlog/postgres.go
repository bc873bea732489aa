package commitlog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	sop "github.com/SharedCode/sop"
)

// postgresHandle is the cid a record was written under.
type postgresHandle sop.UUID

// PostgresCommitLog is a CommitLog backend over a PostgreSQL table,
// grounded on the pgxpool usage in postgres-postgres's
// oltp_clients/storage/postgres.go. It assumes a table already exists
// with schema (cid uuid PRIMARY KEY, payload bytea, written_at serial).
type PostgresCommitLog struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresCommitLog connects to connString (a postgres:// URL) and
// targets the named table.
func NewPostgresCommitLog(ctx context.Context, connString, table string) (*PostgresCommitLog, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("commitlog(postgres): parsing config: %w", err)
	}
	pool, err := pgxpool.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("commitlog(postgres): connecting: %w", err)
	}
	return &PostgresCommitLog{pool: pool, table: table}, nil
}

func (p *PostgresCommitLog) Append(ctx context.Context, cid sop.UUID, payload []byte) (Handle, error) {
	sql := fmt.Sprintf("INSERT INTO %s (cid, payload) VALUES ($1, $2)", p.table)
	err := sop.Retry(ctx, func(ctx context.Context) error {
		_, err := p.pool.Exec(ctx, sql, cid.String(), payload)
		if err != nil {
			if sop.ShouldRetry(err) {
				return sop.RetryableError(err)
			}
			return err
		}
		return nil
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("commitlog(postgres): insert cid=%s: %w", cid, err)
	}
	return postgresHandle(cid), nil
}

func (p *PostgresCommitLog) Flush(ctx context.Context, handle Handle) error {
	// PostgreSQL's write-ahead log already makes a committed INSERT
	// durable; there is no separate client-side fsync step to issue.
	return nil
}

func (p *PostgresCommitLog) Replay(ctx context.Context, callback func(cid sop.UUID, payload []byte) error) (int, int, error) {
	sql := fmt.Sprintf("SELECT cid, payload FROM %s ORDER BY written_at", p.table)
	rows, err := p.pool.Query(ctx, sql)
	if err != nil {
		return 0, 0, fmt.Errorf("commitlog(postgres): replay query: %w", err)
	}
	defer rows.Close()

	read, applied := 0, 0
	for rows.Next() {
		var cidStr string
		var payload []byte
		if err := rows.Scan(&cidStr, &payload); err != nil {
			return read, applied, fmt.Errorf("commitlog(postgres): scan: %w", err)
		}
		read++
		cid, err := sop.ParseUUID(cidStr)
		if err != nil {
			return read, applied, fmt.Errorf("commitlog(postgres): bad cid %q: %w", cidStr, err)
		}
		if err := callback(cid, payload); err == nil {
			applied++
		}
	}
	return read, applied, rows.Err()
}

func (p *PostgresCommitLog) Close() error {
	p.pool.Close()
	return nil
}
