// File: internal/harness/runner.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Runner spawns workers under one supervisor and collects their reports.
// Both the acceptor and the initiator drive their workers through it.

package harness

import (
	"github.com/gologme/log"
	"github.com/momentics/copybench/api"
	"github.com/momentics/copybench/control"
	"github.com/momentics/copybench/internal/concurrency"
	"github.com/momentics/copybench/internal/logging"
	"github.com/momentics/copybench/stats"
)

// Report is the outcome of one side of a run.
type Report struct {
	Role      api.Role
	Threads   []stats.ThreadStats
	Aggregate stats.Aggregate
}

// Runner owns the shared state of a run.
type Runner struct {
	cfg      *Config
	role     api.Role
	log      *log.Logger
	stop     *concurrency.StopToken
	progress *control.Progress
	exporter *control.Exporter

	sup     concurrency.Supervisor
	agg     *stats.Aggregator
	spawned int
	done    chan struct{}

	// OnState is copied into every spawned worker.
	OnState func(id int, s State)
}

// NewRunner prepares a runner. A nil stop token gets a private one.
func NewRunner(cfg *Config, role api.Role, logger *log.Logger, stop *concurrency.StopToken) *Runner {
	if stop == nil {
		stop = concurrency.NewStopToken()
	}
	logger = logging.OrDiscard(logger)
	label := "server"
	if role == api.Receiver {
		label = "client"
	}
	r := &Runner{
		cfg:      cfg,
		role:     role,
		log:      logger,
		stop:     stop,
		progress: control.NewProgress(label, logger),
		agg:      stats.NewAggregator(cfg.Conns),
		done:     make(chan struct{}),
	}
	if cfg.PromFile != "" {
		r.exporter = control.NewExporter(cfg.Strategy.String(), role.String())
	}
	go r.progress.Run(r.done, cfg.ProgressInterval)
	return r
}

// Stop returns the run-control token.
func (r *Runner) Stop() *concurrency.StopToken { return r.stop }

// Progress returns the live counters of the run.
func (r *Runner) Progress() *control.Progress { return r.progress }

// Spawned returns the number of workers started so far.
func (r *Runner) Spawned() int { return r.spawned }

// Spawn starts worker id on its own OS thread. duration bounds the
// worker's active phase; zero runs until stop or peer shutdown.
func (r *Runner) Spawn(id int, connect ConnectFunc) {
	r.spawned++
	w := &Worker{
		ID:       id,
		Role:     r.role,
		Kind:     r.cfg.Strategy,
		Options:  r.cfg.StrategyOptions(r.log),
		Connect:  connect,
		Stop:     r.stop,
		Counters: r.progress.Register(id),
		PinCPU:   r.cfg.PinCPUs,
		Log:      r.log,
		OnState:  r.OnState,
	}
	if r.role == api.Receiver {
		w.Duration = r.cfg.Duration
	}
	r.sup.Go(func() error {
		st := w.Run()
		r.progress.Unregister(id)
		r.agg.Add(st)
		if r.exporter != nil {
			r.exporter.Observe(st)
		}
		return nil
	})
}

// Wait joins every worker and reduces their reports. Writing the
// Prometheus file is the only step that can fail here.
func (r *Runner) Wait() (Report, error) {
	_ = r.sup.Wait()
	close(r.done)
	r.progress.Stop()

	rep := Report{Role: r.role, Threads: r.agg.Threads()}
	rep.Aggregate = stats.Reduce(rep.Threads)
	if r.exporter != nil {
		r.exporter.SetAggregate(rep.Aggregate)
		if err := r.exporter.WriteFile(r.cfg.PromFile); err != nil {
			return rep, err
		}
	}
	return rep, nil
}
