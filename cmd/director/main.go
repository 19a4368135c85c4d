package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"paranoia.ai/internal/persistence/indexdb"
	ticklog "paranoia.ai/internal/persistence/log"
	"paranoia.ai/internal/persistence/snapshot"
	"paranoia.ai/internal/platform/logging"
	"paranoia.ai/internal/sim/catalogs"
	"paranoia.ai/internal/sim/director"
	"paranoia.ai/internal/sim/station/stationsim"
	"paranoia.ai/internal/sim/tuning"
	"paranoia.ai/internal/transport/ws"
)

func main() {
	var (
		addr        = flag.String("addr", "127.0.0.1:8080", "http listen address for the headline feed (empty to disable)")
		allowRemote = flag.Bool("allow_remote", false, "accept feed clients from non-loopback addresses")
		configDir   = flag.String("configs", "./configs", "config directory")
		tuningPath  = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir     = flag.String("data", "./data", "runtime data directory")
		runID       = flag.String("run", "", "run id (default: new uuid, or the snapshot's run)")
		seed        = flag.Int64("seed", 0, "override tuning seed (fresh runs only)")
		ticks       = flag.Uint64("ticks", 0, "stop after this many ticks (0 = run until signalled)")
		tickMS      = flag.Int("tick_ms", 100, "wall-clock milliseconds per tick (0 = as fast as possible)")
		disableDB   = flag.Bool("disable_db", false, "disable the sqlite read model")
		debug       = flag.Bool("debug", false, "debug logging")

		snapPath   = flag.String("snapshot", "", "path to snapshot to resume from (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "resume from the run's latest snapshot if -run is set and -snapshot is empty")
	)
	flag.Parse()

	logger, err := logging.New(logging.Options{Debug: *debug})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(runOptions{
		Addr:        strings.TrimSpace(*addr),
		AllowRemote: *allowRemote,
		ConfigDir:   *configDir,
		TuningPath:  strings.TrimSpace(*tuningPath),
		DataDir:     *dataDir,
		RunID:       strings.TrimSpace(*runID),
		Seed:        *seed,
		Ticks:       *ticks,
		TickEvery:   time.Duration(*tickMS) * time.Millisecond,
		DisableDB:   *disableDB,
		Snapshot:    strings.TrimSpace(*snapPath),
		LoadLatest:  *loadLatest,
	}, logger); err != nil {
		logger.Fatal("director stopped", zap.Error(err))
	}
}

type runOptions struct {
	Addr        string
	AllowRemote bool
	ConfigDir   string
	TuningPath  string
	DataDir     string
	RunID       string
	Seed        int64
	Ticks       uint64
	TickEvery   time.Duration
	DisableDB   bool
	Snapshot    string
	LoadLatest  bool
}

func run(opts runOptions, logger *zap.Logger) error {
	cat, err := catalogs.Load(opts.ConfigDir)
	if err != nil {
		return fmt.Errorf("load catalogs: %w", err)
	}
	if err := cat.RequireNonEmpty(); err != nil {
		return err
	}

	tp := opts.TuningPath
	if tp == "" {
		tp = filepath.Join(opts.ConfigDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("load tuning: %w", err)
		}
		logger.Info("tuning not found; using defaults", zap.String("path", tp))
		tune = tuning.Defaults()
	}
	if opts.Seed != 0 {
		tune.Seed = opts.Seed
	}

	// Resolve the snapshot to resume from, if any.
	snapToLoad := opts.Snapshot
	if snapToLoad == "" && opts.LoadLatest && opts.RunID != "" {
		snapToLoad, err = snapshot.Latest(filepath.Join(opts.DataDir, "runs", opts.RunID))
		if err != nil {
			return err
		}
	}

	var (
		dir       *director.Director
		startTick uint64 = 1
		runID            = opts.RunID
	)
	if snapToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapToLoad)
		if err != nil {
			return fmt.Errorf("read snapshot: %w", err)
		}
		if runID != "" && snap.Header.RunID != runID {
			return fmt.Errorf("snapshot run id mismatch: flag=%s snap=%s", runID, snap.Header.RunID)
		}
		if snap.CatalogDigest != cat.Digest {
			return fmt.Errorf("snapshot catalog digest %s does not match loaded catalog %s", snap.CatalogDigest, cat.Digest)
		}
		runID = snap.Header.RunID
		dir, err = director.New(snap.Config, cat.Defs, director.WithLogger(logger.Named("director")))
		if err != nil {
			return err
		}
		if err := dir.ImportState(snap.State); err != nil {
			return err
		}
		startTick = snap.Header.Tick + 1
		logger.Info("resumed from snapshot", zap.String("snapshot", filepath.Base(snapToLoad)), zap.Uint64("tick", snap.Header.Tick))
	} else {
		if runID == "" {
			runID = indexdb.NewRunID()
		}
		dir, err = director.New(tune.DirectorConfig(), cat.Defs, director.WithLogger(logger.Named("director")))
		if err != nil {
			return err
		}
	}

	runDir := filepath.Join(opts.DataDir, "runs", runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	logger = logger.With(zap.String("run", runID))

	var idx *indexdb.SQLiteIndex
	if !opts.DisableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(runDir, "index.sqlite"), runID, logger.Named("index"))
		if err != nil {
			return fmt.Errorf("open index: %w", err)
		}
		defer idx.Close()
		if err := idx.RecordRun(cat, tune); err != nil {
			logger.Warn("index: record run", zap.Error(err))
		}
	}

	tickLog := ticklog.NewTickLogger(runDir, runID)
	defer tickLog.Close()

	rt := &stationRuntime{
		runID:         runID,
		runDir:        runDir,
		catalogDigest: cat.Digest,
		snapEvery:     uint64(tune.SnapshotEveryTicks),
		dir:           dir,
		sim:           stationsim.New(stationsim.DefaultLayout(), dir.Config().Seed),
		ticks:         tickLog,
		idx:           idx,
		log:           logger,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if opts.Addr != "" {
		rt.hub = ws.NewHub(ws.Config{RunID: runID, AllowRemote: opts.AllowRemote}, logger.Named("feed"))
		defer rt.hub.Close()
		srv := &http.Server{Addr: opts.Addr, Handler: rt.mux(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server", zap.Error(err))
				cancel()
			}
		}()
		defer func() {
			shutdownCtx, c := context.WithTimeout(context.Background(), 2*time.Second)
			defer c()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("feed listening", zap.String("addr", opts.Addr))
	}

	logger.Info("director running",
		zap.Int64("seed", dir.Config().Seed),
		zap.Strings("threats", dir.DefinitionIDs()),
		zap.Uint64("start_tick", startTick))
	last, err := rt.loop(ctx, startTick, opts.Ticks, opts.TickEvery)
	if err != nil {
		return err
	}
	if last >= startTick {
		if err := rt.writeSnapshot(last); err != nil {
			logger.Warn("final snapshot", zap.Error(err))
		}
	}
	logger.Info("director stopped", zap.Uint64("tick", last), zap.Uint64("headlines", rt.headlines.Load()))
	return nil
}

// loop runs ticks from start until ctx ends or limit ticks have run. It
// returns the last completed tick (start-1 if none ran).
func (r *stationRuntime) loop(ctx context.Context, start, limit uint64, every time.Duration) (uint64, error) {
	var tickC <-chan time.Time
	if every > 0 {
		t := time.NewTicker(every)
		defer t.Stop()
		tickC = t.C
	}
	last := start - 1
	for tick := start; limit == 0 || tick < start+limit; tick++ {
		if tickC != nil {
			select {
			case <-ctx.Done():
				return last, nil
			case <-tickC:
			}
		} else if ctx.Err() != nil {
			return last, nil
		}
		if err := r.step(tick); err != nil {
			return last, err
		}
		last = tick
	}
	return last, nil
}

func (r *stationRuntime) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, _ *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		st := r.idx.Stats()
		fmt.Fprintf(rw, "paranoia_tick %d\n", r.lastTick.Load())
		fmt.Fprintf(rw, "paranoia_suspicion %d\n", r.lastSuspicion.Load())
		fmt.Fprintf(rw, "paranoia_active_threats %d\n", r.activeThreats.Load())
		fmt.Fprintf(rw, "paranoia_headlines_total %d\n", r.headlines.Load())
		fmt.Fprintf(rw, "paranoia_feed_clients %d\n", r.hub.Clients())
		fmt.Fprintf(rw, "paranoia_feed_dropped_total %d\n", r.hub.Dropped())
		fmt.Fprintf(rw, "paranoia_index_queue_depth %d\n", st.QueueDepth)
		fmt.Fprintf(rw, "paranoia_index_dropped_total %d\n", st.DropTickTotal+st.DropSnapshotTotal)
	})
	mux.Handle("/v1/feed", r.hub.Handler())
	return mux
}
