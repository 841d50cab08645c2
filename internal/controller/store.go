// Package controller owns the set of configured datasets.
package controller

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/coffersTech/photon/internal/config"
	"github.com/coffersTech/photon/internal/engine"
)

// ConfigExt is the extension of dataset descriptor files.
const ConfigExt = ".toml"

// Entry is one dataset of a snapshot. Exactly one of Dataset and Err is set.
type Entry struct {
	Name    string
	Path    string
	Dataset *engine.Dataset
	Err     error
}

// Snapshot is an immutable view of the configured datasets.
type Snapshot struct {
	Version  uint64
	LoadedAt time.Time

	entries map[string]*Entry
	names   []string
}

// Get returns the dataset called name.
func (s *Snapshot) Get(name string) (*Entry, bool) {
	e, ok := s.entries[name]
	return e, ok
}

// Names returns the dataset names in lexical order.
func (s *Snapshot) Names() []string { return s.names }

// Entries returns the datasets in lexical order.
func (s *Snapshot) Entries() []*Entry {
	out := make([]*Entry, len(s.names))
	for i, name := range s.names {
		out[i] = s.entries[name]
	}
	return out
}

// Store loads the config directory into snapshots. Readers take the current
// snapshot without locking; reloads build a new one and swap it in.
type Store struct {
	dir    string
	logger log.Logger

	queryMetrics *engine.Metrics
	reloads      *prometheus.CounterVec
	datasets     *prometheus.GaugeVec

	mu      sync.Mutex // serializes reloads
	version uint64
	current atomic.Pointer[Snapshot]
}

// NewStore creates a store over dir. The store is empty until Load is called.
// reg may be nil.
func NewStore(dir string, logger log.Logger, reg prometheus.Registerer) *Store {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	f := promauto.With(reg)
	s := &Store{
		dir:          dir,
		logger:       logger,
		queryMetrics: engine.NewMetrics(reg),
		reloads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "photon",
			Name:      "config_reloads_total",
			Help:      "Config directory loads, by result.",
		}, []string{"result"}),
		datasets: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "photon",
			Name:      "datasets",
			Help:      "Datasets in the active configuration, by state.",
		}, []string{"state"}),
	}
	s.current.Store(&Snapshot{entries: map[string]*Entry{}})
	return s
}

// Dir returns the config directory.
func (s *Store) Dir() string { return s.dir }

// Snapshot returns the active snapshot.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Load reads every dataset file of the config directory and makes the result
// the active snapshot. A dataset whose file is broken is kept in the snapshot
// with its error. If the directory itself cannot be read the active snapshot
// is left unchanged.
func (s *Store) Load() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths, err := configFiles(s.dir)
	if err != nil {
		s.reloads.WithLabelValues("failure").Inc()
		return nil, errors.Wrapf(err, "read config dir %s", s.dir)
	}

	snap := &Snapshot{
		Version:  s.version + 1,
		LoadedAt: time.Now(),
		entries:  make(map[string]*Entry, len(paths)),
	}
	failed := 0
	for _, path := range paths {
		e := s.loadEntry(path)
		if e.Err != nil {
			failed++
			level.Warn(s.logger).Log("msg", "dataset unavailable", "dataset", e.Name, "path", path, "err", e.Err)
		}
		snap.entries[e.Name] = e
		snap.names = append(snap.names, e.Name)
	}
	sort.Strings(snap.names)

	s.version = snap.Version
	s.current.Store(snap)

	s.reloads.WithLabelValues("success").Inc()
	s.datasets.WithLabelValues("ok").Set(float64(len(paths) - failed))
	s.datasets.WithLabelValues("error").Set(float64(failed))
	level.Info(s.logger).Log("msg", "loaded datasets", "version", snap.Version, "datasets", len(paths), "failed", failed)
	return snap, nil
}

func (s *Store) loadEntry(path string) *Entry {
	e := &Entry{Name: config.DatasetName(path), Path: path}
	cfg, err := config.LoadFile(path)
	if err != nil {
		e.Err = err
		return e
	}
	e.Dataset, e.Err = Build(cfg, s.logger, s.queryMetrics)
	return e
}

// configFiles lists the dataset files of dir.
func configFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ConfigExt {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	return paths, nil
}
