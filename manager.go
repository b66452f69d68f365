// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package cohort loads registry extracts, joins them on the person
// identifier and caches both the raw batches and the joined results.
package cohort

import (
	"context"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/featurebasedb/cohort/adapt"
	"github.com/featurebasedb/cohort/catalog"
	"github.com/featurebasedb/cohort/errors"
	"github.com/featurebasedb/cohort/hash"
	"github.com/featurebasedb/cohort/join"
	"github.com/featurebasedb/cohort/logger"
	"github.com/featurebasedb/cohort/schema"
	"github.com/featurebasedb/cohort/source"
	"github.com/featurebasedb/cohort/task"
	"golang.org/x/sync/singleflight"
)

type registration struct {
	loader   Loader
	location string
	order    int
	// gen changes every time the name is registered.
	gen uint64
}

// Manager owns a set of registered registries and the caches in front of
// them. Batches and results it returns are shared with its caches: callers
// must treat them as read-only and must not release them.
type Manager struct {
	mu            sync.RWMutex
	registrations map[string]registration
	joins         []join.Join
	gen           uint64

	raw      *rawCache
	filtered *filteredCache
	flight   singleflight.Group

	workers    int
	controller *task.Controller
	executor   *join.Executor
	fs         *source.FileSystem
	adapter    *adapt.Adapter
	slowLoad   time.Duration

	// From a Config, applied once every option has run.
	configured  bool
	s3          source.S3Config
	dateFormats []string
	registries  []RegistryConfig
	dataDir     string
	verbose     bool

	log    logger.Logger
	logSet bool
	logOut io.Writer
}

// ManagerOption is a functional option type for cohort.Manager.
type ManagerOption func(m *Manager) error

// OptManagerLogger sets the manager's logger. It takes precedence over
// the logger a Config asks for.
func OptManagerLogger(log logger.Logger) ManagerOption {
	return func(m *Manager) error {
		m.log = log
		m.logSet = true
		return nil
	}
}

// OptManagerLogOutput sets where the logger built from a Config writes.
// It defaults to stderr.
func OptManagerLogOutput(w io.Writer) ManagerOption {
	return func(m *Manager) error {
		m.logOut = w
		return nil
	}
}

// OptManagerCacheSize bounds each of the manager's caches.
func OptManagerCacheSize(n int) ManagerOption {
	return func(m *Manager) error {
		if n < 1 {
			return errors.Newf(errors.ErrValidation, "cache size must be positive, got %d", n)
		}
		m.raw = newRawCache(n)
		m.filtered = newFilteredCache(n)
		return nil
	}
}

// OptManagerWorkers bounds the loads LoadMultiple runs in parallel.
func OptManagerWorkers(n int) ManagerOption {
	return func(m *Manager) error {
		m.workers = n
		return nil
	}
}

// OptManagerController sets the controller asynchronous loads run under.
func OptManagerController(c *task.Controller) ManagerOption {
	return func(m *Manager) error {
		m.controller = c
		return nil
	}
}

// OptManagerFileSystem sets the file system catalog registries are read
// through.
func OptManagerFileSystem(fs *source.FileSystem) ManagerOption {
	return func(m *Manager) error {
		m.fs = fs
		return nil
	}
}

// OptManagerAdapter sets the adapter catalog registries are converted with.
func OptManagerAdapter(a *adapt.Adapter) ManagerOption {
	return func(m *Manager) error {
		m.adapter = a
		return nil
	}
}

// OptManagerSlowLoad sets how long a load may take before it is logged.
// Zero disables the warning.
func OptManagerSlowLoad(d time.Duration) ManagerOption {
	return func(m *Manager) error {
		m.slowLoad = d
		return nil
	}
}

// OptManagerConfig applies cfg. Its registries are registered from the
// standard catalog once all options are applied. Unless a logger is given
// with OptManagerLogger, the manager logs to stderr, with debug output when
// cfg.Verbose is set.
func OptManagerConfig(cfg *Config) ManagerOption {
	return func(m *Manager) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		m.raw = newRawCache(cfg.CacheSize)
		m.filtered = newFilteredCache(cfg.CacheSize)
		m.workers = cfg.Workers
		m.controller = task.NewController(cfg.AsyncConcurrency, cfg.LoadRate)
		m.s3 = cfg.S3
		m.dateFormats = cfg.DateFormats
		m.slowLoad = time.Duration(cfg.SlowLoadThreshold)
		m.registries = append(m.registries, cfg.Registries...)
		m.dataDir = cfg.DataDir
		m.joins = append(m.joins, cfg.Joins...)
		m.verbose = cfg.Verbose
		m.configured = true
		return nil
	}
}

// NewManager returns a new instance of Manager.
func NewManager(opts ...ManagerOption) (*Manager, error) {
	m := &Manager{
		registrations: make(map[string]registration),
		raw:           newRawCache(DefaultCacheSize),
		filtered:      newFilteredCache(DefaultCacheSize),
		controller:    task.NewController(0, 0),
		slowLoad:      30 * time.Second,
		log:           logger.NopLogger,
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, errors.Wrap(err, "applying option")
		}
	}
	if m.configured && !m.logSet {
		out := m.logOut
		if out == nil {
			out = os.Stderr
		}
		m.log = logger.New(out, m.verbose)
	}
	if m.fs == nil {
		m.fs = source.NewFileSystem(m.s3, m.log)
	}
	if m.adapter == nil {
		m.adapter = adapt.New(adapt.WithDateFormats(m.dateFormats...), adapt.WithLogger(m.log))
	}
	m.executor = join.NewExecutor(join.OptExecutorLogger(m.log.WithPrefix("join: ")))

	if len(m.registries) > 0 {
		std := catalog.Standard()
		for _, r := range m.registries {
			s, ok := std.Schema(r.Name)
			if !ok {
				return nil, errors.Newf(errors.ErrNotRegistered, "registry %s is not in the catalog", r.Name)
			}
			loc := r.Location
			if loc == "" {
				loc = source.Join(m.dataDir, catalog.Dir(s.Name()))
			}
			m.Register(s.Name(), m.catalogLoader(s), loc)
		}
	}
	return m, nil
}

func (m *Manager) catalogLoader(s *schema.RegistrySchema) Loader {
	src := source.NewAuto(m.fs, source.WithLogger(m.log), source.WithWorkers(m.workers))
	return NewRegistryLoader(s, src, OptLoaderAdapter(m.adapter), OptLoaderLogger(m.log))
}

// Register associates name with a loader and the location it reads.
// Registering a name again replaces it and drops what was cached for it.
func (m *Manager) Register(name string, l Loader, location string) {
	m.mu.Lock()
	order := len(m.registrations)
	if old, ok := m.registrations[name]; ok {
		order = old.order
	}
	m.gen++
	m.registrations[name] = registration{loader: l, location: location, order: order, gen: m.gen}
	m.mu.Unlock()

	m.raw.mu.Lock()
	m.raw.c.remove(name)
	m.raw.mu.Unlock()
	m.clearFiltered()
	m.log.Debugf("registered %s at %s", name, location)
}

// RegisterJoin declares how a registry keyed by a secondary key resolves
// through its parent. Cached join results are dropped.
func (m *Manager) RegisterJoin(j join.Join) {
	m.mu.Lock()
	m.joins = append(m.joins, j)
	m.mu.Unlock()
	m.clearFiltered()
}

// RegisterCatalog registers every registry of c whose directory exists
// below dir, together with the catalog's joins. It returns the names
// registered.
func (m *Manager) RegisterCatalog(ctx context.Context, dir string, c *catalog.Catalog) []string {
	var names []string
	for _, s := range c.Schemas {
		loc := source.Join(dir, catalog.Dir(s.Name()))
		if !m.fs.Exists(ctx, loc) {
			m.log.Debugf("no %s below %s", s.Name(), dir)
			continue
		}
		m.Register(s.Name(), m.catalogLoader(s), loc)
		names = append(names, s.Name())
	}
	for _, j := range c.Joins {
		m.RegisterJoin(j)
	}
	m.log.Infof("registered %d of %d catalog registries from %s", len(names), len(c.Schemas), dir)
	return names
}

// HasRegistry reports whether name is registered.
func (m *Manager) HasRegistry(name string) bool {
	_, ok := m.registration(name)
	return ok
}

// Schema returns the schema of a registered registry.
func (m *Manager) Schema(name string) (*schema.RegistrySchema, bool) {
	r, ok := m.registration(name)
	if !ok {
		return nil, false
	}
	return r.loader.Schema(), true
}

// Names returns the registered names in registration order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.registrations))
	for n := range m.registrations {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		return m.registrations[out[i]].order < m.registrations[out[j]].order
	})
	return out
}

func (m *Manager) registration(name string) (registration, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.registrations[name]
	return r, ok
}

// Load returns the batches of name, reading them on the first call only.
// Concurrent first calls share one read.
func (m *Manager) Load(ctx context.Context, name string) ([]arrow.Record, error) {
	reg, ok := m.registration(name)
	if !ok {
		return nil, errors.Newf(errors.ErrNotRegistered, "registry %s is not registered", name)
	}
	if recs, ok := m.raw.get(name); ok {
		return recs, nil
	}
	key := name + "@" + strconv.FormatUint(reg.gen, 10)
	ch := m.flight.DoChan(key, func() (interface{}, error) {
		m.raw.mu.RLock()
		recs, ok := m.raw.c.get(name)
		m.raw.mu.RUnlock()
		if ok {
			return recs, nil
		}

		// Shared by every caller waiting on key, so no caller's
		// cancellation may end it.
		start := time.Now()
		recs, err := reg.loader.Load(context.Background(), reg.location)
		counterLoads.WithLabelValues(name).Inc()
		if err != nil {
			return nil, errors.Wrapf(err, "loading %s", name)
		}
		took := time.Since(start)
		histogramLoadDuration.Observe(took.Seconds())
		if m.slowLoad > 0 && took > m.slowLoad {
			m.log.Warnf("loading %s from %s took %v", name, reg.location, took)
		}
		if !m.raw.putIf(name, recs, func() bool { return m.current(name, reg.gen) }) {
			m.log.Debugf("%s was registered again while loading, not caching", name)
		}
		return recs, nil
	})
	select {
	case <-ctx.Done():
		return nil, errors.Wrapf(ctx.Err(), "loading %s", name)
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]arrow.Record), nil
	}
}

// current reports whether gen is the generation name is registered under.
func (m *Manager) current(name string, gen uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.registrations[name]
	return ok && r.gen == gen
}

// LoadResult is the outcome of an asynchronous load.
type LoadResult struct {
	Name    string
	Batches []arrow.Record
	Err     error
}

// LoadAsync loads name on its own goroutine once the manager's controller
// grants a slot. The channel receives exactly one result. Failing to get a
// slot before ctx ends is an ErrLock error.
func (m *Manager) LoadAsync(ctx context.Context, name string) <-chan LoadResult {
	ch := make(chan LoadResult, 1)
	go func() {
		res := LoadResult{Name: name}
		res.Err = m.controller.Do(ctx, func(ctx context.Context) error {
			var err error
			res.Batches, err = m.Load(ctx, name)
			return err
		})
		ch <- res
	}()
	return ch
}

// LoadMultiple loads names in parallel. Any failure fails the call.
func (m *Manager) LoadMultiple(ctx context.Context, names []string) (map[string][]arrow.Record, error) {
	loaded, err := task.Map(ctx, m.workers, names, func(ctx context.Context, name string) ([]arrow.Record, error) {
		return m.Load(ctx, name)
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string][]arrow.Record, len(names))
	for i, n := range names {
		out[n] = loaded[i]
	}
	return out, nil
}

// LoadMultipleAsync loads names concurrently through LoadAsync. It waits
// for every load and fails with the first error in names order.
func (m *Manager) LoadMultipleAsync(ctx context.Context, names []string) (map[string][]arrow.Record, error) {
	chans := make([]<-chan LoadResult, len(names))
	for i, n := range names {
		chans[i] = m.LoadAsync(ctx, n)
	}
	out := make(map[string][]arrow.Record, len(names))
	var firstErr error
	for _, ch := range chans {
		res := <-ch
		if res.Err != nil {
			if firstErr == nil {
				firstErr = res.Err
			}
			continue
		}
		out[res.Name] = res.Batches
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// FilterByIdentifier returns the rows of names belonging to the persons in
// filter, with dependent registries resolved through their parents, and
// the entities merged from them. Results are cached by a fingerprint of
// names and filter.
func (m *Manager) FilterByIdentifier(ctx context.Context, names []string, filter *join.KeyFilter) (*join.Result, error) {
	if filter == nil {
		filter = join.NewKeyFilter()
	}
	names, err := m.ordered(names)
	if err != nil {
		return nil, err
	}
	key := hash.FilterKey(names, filter.Sorted())
	if res, ok := m.filtered.get(key, filter); ok {
		return res, nil
	}

	m.mu.RLock()
	joins := append([]join.Join(nil), m.joins...)
	m.mu.RUnlock()
	plan, err := join.BuildPlan(names, m.Schema, joins, nil)
	if err != nil {
		return nil, err
	}
	steps := make([]string, len(plan.Steps))
	for i, s := range plan.Steps {
		steps[i] = s.Name
	}
	batches, err := m.LoadMultiple(ctx, steps)
	if err != nil {
		return nil, err
	}
	res, err := m.executor.Apply(plan, batches, filter)
	if err != nil {
		return nil, err
	}
	for name, st := range res.Stats {
		if st.Orphans > 0 {
			counterJoinOrphans.WithLabelValues(name).Add(float64(st.Orphans))
		}
	}
	m.log.Debugf("filtered %s to %d entities", strings.Join(names, ", "), res.Store.Len())
	m.filtered.put(key, filter, res)
	return res, nil
}

// ordered returns names deduplicated and in registration order. An
// unregistered name fails with ErrNotRegistered.
func (m *Manager) ordered(names []string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := m.registrations[n]; !ok {
			return nil, errors.Newf(errors.ErrNotRegistered, "registry %s is not registered", n)
		}
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return m.registrations[out[i]].order < m.registrations[out[j]].order
	})
	return out, nil
}

// SetCacheSize changes the capacity of both caches, evicting the oldest
// entries when they hold more.
func (m *Manager) SetCacheSize(n int) error {
	if n < 1 {
		return errors.Newf(errors.ErrValidation, "cache size must be positive, got %d", n)
	}
	m.raw.mu.Lock()
	evicted := m.raw.c.resize(n)
	m.raw.mu.Unlock()
	m.raw.evicted(evicted)

	m.filtered.mu.Lock()
	evicted = m.filtered.c.resize(n)
	m.filtered.mu.Unlock()
	m.filtered.evicted(evicted)
	return nil
}

// ClearCaches drops every cached batch and result.
func (m *Manager) ClearCaches() {
	m.raw.mu.Lock()
	m.raw.c.clear()
	m.raw.mu.Unlock()
	m.clearFiltered()
}

func (m *Manager) clearFiltered() {
	m.filtered.mu.Lock()
	m.filtered.c.clear()
	m.filtered.mu.Unlock()
}

// CacheStats returns the current sizes and counters of the caches.
func (m *Manager) CacheStats() CacheStats {
	var st CacheStats
	m.raw.mu.RLock()
	st.RawEntries, st.RawCapacity = m.raw.c.len(), m.raw.c.capacity
	m.raw.mu.RUnlock()
	st.RawHits, st.RawMisses, st.RawEvictions = m.raw.load()

	m.filtered.mu.Lock()
	st.FilteredEntries, st.FilteredCapacity = m.filtered.c.len(), m.filtered.c.capacity
	m.filtered.mu.Unlock()
	st.FilteredHits, st.FilteredMisses, st.FilteredEvictions = m.filtered.load()
	return st
}
