// Command coordinator wires configuration, a commit log backend, an
// optional CEL admission policy, the timing wheel scheduler and the
// optional admin API surface into a running 2PC manager.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	sop "github.com/SharedCode/sop"
	"github.com/SharedCode/sop/admission"
	"github.com/SharedCode/sop/api"
	"github.com/SharedCode/sop/commitlog"
	"github.com/SharedCode/sop/idgen"
	"github.com/SharedCode/sop/manager"
	"github.com/SharedCode/sop/node"
	"github.com/SharedCode/sop/wheel"
)

func main() {
	configPath := flag.String("config", "coordinator.properties", "path to the coordinator's properties configuration file")
	flag.Parse()

	sop.ConfigureLogging()

	cfg, err := sop.LoadConfiguration(*configPath)
	if err != nil {
		slog.Error("loading configuration", "err", err)
		os.Exit(1)
	}

	log, err := openCommitLog(cfg)
	if err != nil {
		slog.Error("opening commit log", "backend", cfg.CommitLog, "err", err)
		os.Exit(1)
	}
	defer log.Close()

	var opts []manager.Option
	if cfg.AdmissionPolicy != "" {
		policy, err := admission.NewPolicy("coordinator", cfg.AdmissionPolicy)
		if err != nil {
			slog.Error("compiling admission policy", "err", err)
			os.Exit(1)
		}
		opts = append(opts, manager.WithAdmissionPolicy(policy))
	}

	mgr := manager.New(idgen.New(), log, opts...)
	for source, limit := range cfg.SourceLimits {
		mgr.SetSourceLimit(source, limit)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sched := wheel.NewScheduler[timeoutEntry](cfg.Wheel.N0, cfg.Wheel.N, cfg.Wheel.L, cfg.Wheel.Tick,
		func(f wheel.Fire[timeoutEntry]) { onTimeout(mgr, f.El) })
	go sched.Run(ctx)

	if cfg.API.Enabled {
		server := api.New(mgr)
		go func() {
			if err := server.Run(cfg.API.Addr); err != nil {
				slog.Error("api server exited", "err", err)
			}
		}()
		slog.Info("coordinator admin API listening", "addr", cfg.API.Addr)
	}

	slog.Info("coordinator started", "commitlog", cfg.CommitLog)
	<-ctx.Done()
	slog.Info("coordinator shutting down")
}

// timeoutEntry identifies the node whose deadline the wheel scheduler is
// tracking.
type timeoutEntry struct {
	Tid sop.UUID
	N   node.Node
}

// onTimeout implements SPEC_FULL.md section 5's cancellation path: a fired
// deadline injects a *Failed status and drives Rollback.
func onTimeout(mgr *manager.Manager, entry timeoutEntry) {
	switch entry.N.Status() {
	case sop.Prepareing:
		entry.N.SetStatus(sop.PrepareFailed)
	case sop.Actioning:
		entry.N.SetStatus(sop.ActionFailed)
	default:
		return
	}
	if _, err := mgr.Rollback(context.Background(), entry.N); err != nil {
		slog.Error("timeout-driven rollback failed", "tid", entry.Tid, "err", err)
	}
}

func openCommitLog(cfg sop.Configuration) (commitlog.CommitLog, error) {
	switch cfg.CommitLog {
	case sop.FileBackend:
		return commitlog.NewFileCommitLog(cfg.CommitLogPath)
	case sop.RedisBackend:
		return commitlog.NewRedisCommitLog(commitlog.RedisCommitLogOptions{Addr: cfg.CommitLogAddr}), nil
	case sop.CassandraBackend:
		return commitlog.NewCassandraCommitLog(commitlog.CassandraConfig{ClusterHosts: []string{cfg.CommitLogAddr}, Keyspace: cfg.CommitLogDB}, "commit_log")
	case sop.PostgresBackend:
		return commitlog.NewPostgresCommitLog(context.Background(), cfg.CommitLogAddr, "commit_log")
	case sop.KafkaBackend:
		return commitlog.NewKafkaCommitLog([]string{cfg.CommitLogAddr}, cfg.CommitLogDB)
	default:
		return commitlog.NewFileCommitLog(cfg.CommitLogPath)
	}
}
