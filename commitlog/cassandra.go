package commitlog

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	sop "github.com/SharedCode/sop"
)

func secondsToDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}

// cassandraHandle is the cid the record was written under; Cassandra
// writes are durable once the query returns (per configured consistency),
// so Flush is a no-op that simply validates the handle shape.
type cassandraHandle sop.UUID

// CassandraConfig mirrors the teacher's cassandra.Config shape (cluster
// hosts, keyspace, consistency, connection timeout).
type CassandraConfig struct {
	ClusterHosts      []string
	Keyspace          string
	Consistency       gocql.Consistency
	ConnectionTimeout int // seconds
}

// CassandraCommitLog is a CommitLog backend over a Cassandra table keyed
// by cid, grounded on the session/query pattern in the teacher's (removed)
// cassandra/connection.go. Replay reads the table with an unordered SELECT,
// so records come back in Cassandra's partition-token order of their cid,
// not in append order.
type CassandraCommitLog struct {
	session *gocql.Session
	table   string
}

// NewCassandraCommitLog opens a session against cfg and assumes `table`
// already exists with schema (cid uuid PRIMARY KEY, payload blob).
func NewCassandraCommitLog(cfg CassandraConfig, table string) (*CassandraCommitLog, error) {
	cluster := gocql.NewCluster(cfg.ClusterHosts...)
	cluster.Keyspace = cfg.Keyspace
	if cfg.Consistency != 0 {
		cluster.Consistency = cfg.Consistency
	}
	if cfg.ConnectionTimeout > 0 {
		cluster.Timeout = secondsToDuration(cfg.ConnectionTimeout)
	}
	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("commitlog(cassandra): creating session: %w", err)
	}
	return &CassandraCommitLog{session: session, table: table}, nil
}

func (c *CassandraCommitLog) Append(ctx context.Context, cid sop.UUID, payload []byte) (Handle, error) {
	q := fmt.Sprintf("INSERT INTO %s (cid, payload) VALUES (?, ?)", c.table)
	err := sop.Retry(ctx, func(ctx context.Context) error {
		err := c.session.Query(q, gocql.UUID(cid), payload).WithContext(ctx).Exec()
		if err != nil {
			if sop.ShouldRetry(err) {
				return sop.RetryableError(err)
			}
			return err
		}
		return nil
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("commitlog(cassandra): insert cid=%s: %w", cid, err)
	}
	return cassandraHandle(cid), nil
}

func (c *CassandraCommitLog) Flush(ctx context.Context, handle Handle) error {
	if _, ok := handle.(cassandraHandle); !ok {
		return fmt.Errorf("commitlog(cassandra): flush: unexpected handle type %T", handle)
	}
	return nil
}

func (c *CassandraCommitLog) Replay(ctx context.Context, callback func(cid sop.UUID, payload []byte) error) (int, int, error) {
	q := fmt.Sprintf("SELECT cid, payload FROM %s", c.table)
	iter := c.session.Query(q).WithContext(ctx).Iter()

	var gcid gocql.UUID
	var payload []byte
	read, applied := 0, 0
	for iter.Scan(&gcid, &payload) {
		read++
		if err := callback(sop.UUID(gcid), payload); err == nil {
			applied++
		}
	}
	if err := iter.Close(); err != nil {
		return read, applied, fmt.Errorf("commitlog(cassandra): replay iter: %w", err)
	}
	return read, applied, nil
}

func (c *CassandraCommitLog) Close() error {
	c.session.Close()
	return nil
}
