package cmd

import (
	"expvar"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/CraigKelly/tvtrend/sampler"
)

// expvar names are process global, so the map is published once and every
// monitor after that reuses it.
var (
	publishOnce sync.Once
	progressMap = new(expvar.Map).Init()
)

type monitor struct {
	info    *expvar.Map
	stopped chan struct{}
	server  *http.Server
	log     *slog.Logger

	Model      *expvar.String
	Iterations *expvar.Int
	BurnIn     *expvar.Int
	MaxRestart *expvar.Int
	RunTime    *expvar.Float
	Iteration  *expvar.Int
	Restarts   *expvar.Int

	LastSigma2  *expvar.Float
	LastLambda2 *expvar.Float
}

func newMonitor(log *slog.Logger) *monitor {
	m := &monitor{
		log:         log,
		Model:       new(expvar.String),
		Iterations:  new(expvar.Int),
		BurnIn:      new(expvar.Int),
		MaxRestart:  new(expvar.Int),
		RunTime:     new(expvar.Float),
		Iteration:   new(expvar.Int),
		Restarts:    new(expvar.Int),
		LastSigma2:  new(expvar.Float),
		LastLambda2: new(expvar.Float),
	}
	return m
}

// Start begins serving /debug/vars on addr
func (m *monitor) Start(addr string) error {
	if m.info != nil {
		return errors.Errorf("BUG: You may only start the process monitor once")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "Could not start monitor on %s", addr)
	}

	publishOnce.Do(func() {
		expvar.Publish("tvtrend-progress", progressMap)
	})
	m.info = progressMap
	m.info.Set("Model", m.Model)
	m.info.Set("Max-Iterations", m.Iterations)
	m.info.Set("Burn-In", m.BurnIn)
	m.info.Set("Max-Restart", m.MaxRestart)
	m.info.Set("Run-Time", m.RunTime)
	m.info.Set("Iteration", m.Iteration)
	m.info.Set("Restarts", m.Restarts)
	m.info.Set("Last-Sigma2", m.LastSigma2)
	m.info.Set("Last-Lambda2", m.LastLambda2)

	// Help the user and redirect to the only thing currently available:
	// the handler from the expvar package
	mux := http.NewServeMux()
	mux.Handle("/debug/vars", expvar.Handler())
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/debug/vars", http.StatusTemporaryRedirect)
	})

	m.stopped = make(chan struct{})
	m.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		defer close(m.stopped)
		m.server.Serve(ln)
	}()

	m.log.Info("HTTP monitor available", "addr", ln.Addr().String(), "path", "/debug/vars")
	return nil
}

// Observe records the state after a completed sweep
func (m *monitor) Observe(info sampler.SweepInfo, elapsed time.Duration) {
	m.Iteration.Set(int64(info.Iteration + 1))
	m.Restarts.Set(int64(info.Restarts))
	m.RunTime.Set(elapsed.Seconds())
	if v, ok := info.Scalars[sampler.ParamSigma2]; ok {
		m.LastSigma2.Set(v)
	}
	if v, ok := info.Scalars[sampler.ParamLambda2]; ok {
		m.LastLambda2.Set(v)
	}
}

func (m *monitor) Stop() {
	if m.info == nil {
		return
	}

	m.server.Close()

	select {
	case <-m.stopped:
		m.log.Info("HTTP monitor stopped")
	case <-time.After(2 * time.Second):
		m.log.Warn("HTTP monitor would NOT stop: just continuing on")
	}
}
