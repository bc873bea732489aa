package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/graphql-go/graphql"
)

var transactionType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Transaction",
	Fields: graphql.Fields{
		"tid":    &graphql.Field{Type: graphql.String},
		"source": &graphql.Field{Type: graphql.String},
		"status": &graphql.Field{Type: graphql.String},
	},
})

var countersType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Counters",
	Fields: graphql.Fields{
		"prepareProduced": &graphql.Field{Type: graphql.Int},
		"prepareConsumed": &graphql.Field{Type: graphql.Int},
		"commitProduced":  &graphql.Field{Type: graphql.Int},
		"commitConsumed":  &graphql.Field{Type: graphql.Int},
		"producedTotal":   &graphql.Field{Type: graphql.Int},
		"consumedTotal":   &graphql.Field{Type: graphql.Int},
	},
})

// buildSchema wires a read-only query root over s's registry: the
// transaction list, global counters, and the fatal ledger.
func (s *Server) buildSchema() (graphql.Schema, error) {
	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"transactions": &graphql.Field{
				Type: graphql.NewList(transactionType),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					reg := s.mgr.Registry()
					tids := reg.Transactions()
					out := make([]map[string]any, 0, len(tids))
					for _, tid := range tids {
						n, ok := reg.Get(tid)
						if !ok {
							continue
						}
						out = append(out, map[string]any{
							"tid":    tid.String(),
							"source": string(n.Source()),
							"status": n.Status().String(),
						})
					}
					return out, nil
				},
			},
			"counters": &graphql.Field{
				Type: countersType,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					snap := s.mgr.Registry().Snapshot()
					return map[string]any{
						"prepareProduced": snap.PrepareProduced,
						"prepareConsumed": snap.PrepareConsumed,
						"commitProduced":  snap.CommitProduced,
						"commitConsumed":  snap.CommitConsumed,
						"producedTotal":   snap.ProducedTotal,
						"consumedTotal":   snap.ConsumedTotal,
					}, nil
				},
			},
			"fatalTransactions": &graphql.Field{
				Type: graphql.NewList(graphql.String),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					tids := s.mgr.Registry().FatalTransactions()
					out := make([]string, 0, len(tids))
					for _, tid := range tids {
						out = append(out, tid.String())
					}
					return out, nil
				},
			},
		},
	})
	return graphql.NewSchema(graphql.SchemaConfig{Query: query})
}

type graphQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

// serveGraphQL implements the read-only /graphql endpoint described in
// SPEC_FULL.md section 6.
func (s *Server) serveGraphQL(c *gin.Context) {
	var req graphQLRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		c.String(http.StatusBadRequest, "invalid graphql request: %v", err)
		return
	}

	schema, err := s.buildSchema()
	if err != nil {
		c.String(http.StatusInternalServerError, "schema build error: %v", err)
		return
	}

	result := graphql.Do(graphql.Params{
		Schema:         schema,
		RequestString:  req.Query,
		OperationName:  req.OperationName,
		VariableValues: req.Variables,
		Context:        c.Request.Context(),
	})
	c.JSON(http.StatusOK, result)
}
