package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wealthbuilder-ke/wealthbuilder/internal/platform/database"
	"github.com/wealthbuilder-ke/wealthbuilder/internal/realtime"
)

// connState reports whether the realtime connection is up.
type connState interface {
	Connected() bool
}

// eventSource lists the monitor's retained events, newest first.
type eventSource interface {
	Events() []realtime.Event
}

func runMonitor(ctx context.Context, a *app, args []string) error {
	fs := newFlags("monitor")
	port := fs.Int("port", a.cfg.Monitor.Port, "HTTP port for health, metrics and events")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sink, closeSink, err := openSink(ctx, a)
	if err != nil {
		return err
	}
	defer closeSink()

	rt, err := realtime.NewClient(a.cfg.Socket.URL, realtime.WithTokenSource(a.session))
	if err != nil {
		return err
	}
	mon := realtime.NewMonitor(a.cfg.Monitor.History, sink)
	defer mon.Close()
	defer mon.Attach(rt)()
	defer rt.Subscribe(func(e realtime.Event) {
		fmt.Fprintln(a.out, e.Line(time.Local))
	})()
	registerMonitorMetrics(a.registry, rt, mon)

	if err := rt.Start(ctx); err != nil {
		return fmt.Errorf("connecting realtime: %w", err)
	}
	defer rt.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      newMux(rt, mon, a.registry),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("monitor starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		select {
		case <-rt.Done():
			slog.Warn("realtime connection closed")
		case <-ctx.Done():
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("monitor server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	return nil
}

// openSink journals to PostgreSQL when a database is configured.
func openSink(ctx context.Context, a *app) (realtime.Sink, func(), error) {
	if !a.cfg.JournalEnabled() {
		return realtime.NopSink{}, func() {}, nil
	}
	db, err := database.New(ctx, a.cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting journal database: %w", err)
	}
	sink := realtime.NewPostgresSink(db)
	if err := sink.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return sink, db.Close, nil
}

func registerMonitorMetrics(reg prometheus.Registerer, conn connState, events eventSource) {
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "wealthbuilder",
			Subsystem: "realtime",
			Name:      "connected",
			Help:      "1 while the realtime connection is up.",
		}, func() float64 {
			if conn.Connected() {
				return 1
			}
			return 0
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "wealthbuilder",
			Subsystem: "monitor",
			Name:      "events_retained",
			Help:      "Events currently held in the monitor history.",
		}, func() float64 {
			return float64(len(events.Events()))
		}),
	)
}

// newMux creates the monitor's HTTP router.
func newMux(conn connState, events eventSource, gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", handleReadyz(conn))
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /events", handleEvents(events))
	return mux
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func handleReadyz(conn connState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !conn.Connected() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"disconnected"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}
}

type eventView struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func handleEvents(events eventSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list := events.Events()
		views := make([]eventView, 0, len(list))
		for _, e := range list {
			views = append(views, eventView{ID: e.ID.String(), Type: e.Type, Message: e.Message, Timestamp: e.Timestamp})
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(views); err != nil {
			slog.Warn("encoding events failed", "error", err)
		}
	}
}
