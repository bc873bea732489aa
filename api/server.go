// Package api is the coordinator's optional admin/REST front door: a gin
// router exposing read-only visibility into the manager's registry, an
// okta-gated replay endpoint that answers 501 Not Implemented (it does not
// replay anything), a swagger UI, a websocket counter stream and
// a read-only GraphQL query surface, grounded on the teacher's rest_api
// package.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	ginSwagger "github.com/swaggo/gin-swagger"
	swaggerfiles "github.com/swaggo/files"

	sop "github.com/SharedCode/sop"
	"github.com/SharedCode/sop/manager"
)

// Server is the coordinator's admin HTTP surface over a Manager.
type Server struct {
	mgr    *manager.Manager
	router *gin.Engine
}

// New constructs a Server wired to mgr's registry. It registers every
// route eagerly; call Run (or use Router for a custom listener) to serve.
func New(mgr *manager.Manager) *Server {
	s := &Server{mgr: mgr, router: gin.Default()}
	s.registerRoutes()
	return s
}

// Router exposes the underlying gin engine, e.g. for httptest or a
// custom http.Server.
func (s *Server) Router() *gin.Engine { return s.router }

// Run blocks serving the admin API on addr.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

func (s *Server) registerRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/transactions", requireBearerToken(s.listTransactions))
		v1.GET("/transactions/:tid", requireBearerToken(s.getTransaction))
		v1.GET("/counters", requireBearerToken(s.getCounters))
		v1.GET("/sources/:source/counters", requireBearerToken(s.getSourceCounters))
		v1.GET("/fatal", requireBearerToken(s.listFatal))
		v1.POST("/replay", requireBearerToken(s.triggerReplay))
	}

	s.router.GET("/ws/status", s.serveStatusStream)
	s.router.POST("/graphql", s.serveGraphQL)
	s.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))
}

// transactionView is the wire shape of a single live transaction.
type transactionView struct {
	Tid    string `json:"tid"`
	Source string `json:"source"`
	Status string `json:"status"`
}

// listTransactions godoc
// @Summary List live transactions
// @Produce json
// @Success 200 {array} transactionView
// @Router /api/v1/transactions [get]
func (s *Server) listTransactions(c *gin.Context) {
	reg := s.mgr.Registry()
	tids := reg.Transactions()
	views := make([]transactionView, 0, len(tids))
	for _, tid := range tids {
		n, ok := reg.Get(tid)
		if !ok {
			continue
		}
		views = append(views, transactionView{Tid: tid.String(), Source: string(n.Source()), Status: n.Status().String()})
	}
	c.JSON(http.StatusOK, views)
}

// getTransaction godoc
// @Summary Get one live transaction by tid
// @Produce json
// @Success 200 {object} transactionView
// @Failure 404 {string} string "not found"
// @Router /api/v1/transactions/{tid} [get]
func (s *Server) getTransaction(c *gin.Context) {
	tid, err := sop.ParseUUID(c.Param("tid"))
	if err != nil {
		c.String(http.StatusBadRequest, "invalid tid: %v", err)
		return
	}
	n, ok := s.mgr.Registry().Get(tid)
	if !ok {
		c.String(http.StatusNotFound, "transaction %s not found", tid)
		return
	}
	c.JSON(http.StatusOK, transactionView{Tid: tid.String(), Source: string(n.Source()), Status: n.Status().String()})
}

// getCounters godoc
// @Summary Global produced/consumed counters
// @Produce json
// @Success 200 {object} manager.Counters
// @Router /api/v1/counters [get]
func (s *Server) getCounters(c *gin.Context) {
	c.JSON(http.StatusOK, s.mgr.Registry().Snapshot())
}

type sourceCountersView struct {
	Source  string `json:"source"`
	Started int64  `json:"started"`
	Ended   int64  `json:"ended"`
	Live    int64  `json:"live"`
	Limit   int64  `json:"limit"`
}

// getSourceCounters godoc
// @Summary Per-source admission counters
// @Produce json
// @Success 200 {object} sourceCountersView
// @Router /api/v1/sources/{source}/counters [get]
func (s *Server) getSourceCounters(c *gin.Context) {
	source := sop.Source(c.Param("source"))
	started, ended, limit := s.mgr.Registry().SourceCounts(source)
	c.JSON(http.StatusOK, sourceCountersView{
		Source: string(source), Started: started, Ended: ended, Live: started - ended, Limit: limit,
	})
}

// listFatal godoc
// @Summary List transactions in the fatal ledger (CommitFailed/RollbackFailed)
// @Produce json
// @Success 200 {array} string
// @Router /api/v1/fatal [get]
func (s *Server) listFatal(c *gin.Context) {
	tids := s.mgr.Registry().FatalTransactions()
	out := make([]string, 0, len(tids))
	for _, tid := range tids {
		out = append(out, tid.String())
	}
	c.JSON(http.StatusOK, out)
}

// triggerReplay godoc
// @Summary Acknowledge a replay request; performs no replay itself
// @Produce json
// @Success 501 {string} string "not implemented"
// @Router /api/v1/replay [post]
func (s *Server) triggerReplay(c *gin.Context) {
	// The reconstructor is domain-specific (it must rebuild a node.Node
	// tree from raw payload bytes), so this endpoint cannot drive
	// ReplayCommitLog itself; replay runs only where an embedding
	// application calls ReplayCommitLog with its own reconstructor
	// (cmd/coordinator does not). This is acknowledgement-only.
	c.JSON(http.StatusNotImplemented, gin.H{"status": "not implemented: replay requires a process-local reconstructor"})
}
