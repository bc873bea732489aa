package api

import (
	"context"
	"testing"

	"github.com/graphql-go/graphql"

	sop "github.com/SharedCode/sop"
	"github.com/SharedCode/sop/commitlog"
	"github.com/SharedCode/sop/idgen"
	"github.com/SharedCode/sop/manager"
)

type noopCommitLog struct{}

func (noopCommitLog) Append(ctx context.Context, cid sop.UUID, payload []byte) (commitlog.Handle, error) {
	return nil, nil
}
func (noopCommitLog) Flush(ctx context.Context, handle commitlog.Handle) error { return nil }
func (noopCommitLog) Replay(ctx context.Context, callback func(cid sop.UUID, payload []byte) error) (int, int, error) {
	return 0, 0, nil
}
func (noopCommitLog) Close() error { return nil }

var _ commitlog.CommitLog = noopCommitLog{}

func TestGraphQLCountersQuery(t *testing.T) {
	mgr := manager.New(idgen.New(), noopCommitLog{})
	mgr.SetSourceLimit("orders", 10)

	s := &Server{mgr: mgr}
	schema, err := s.buildSchema()
	if err != nil {
		t.Fatalf("buildSchema: %v", err)
	}

	result := graphql.Do(graphql.Params{
		Schema:        schema,
		RequestString: "{ counters { producedTotal consumedTotal } fatalTransactions }",
	})
	if result.HasErrors() {
		t.Fatalf("graphql errors: %v", result.Errors)
	}
}
