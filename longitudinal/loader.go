// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package longitudinal

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/featurebasedb/cohort/batch"
	"github.com/featurebasedb/cohort/entity"
	"github.com/featurebasedb/cohort/errors"
	"github.com/featurebasedb/cohort/join"
	"github.com/featurebasedb/cohort/logger"
	"github.com/featurebasedb/cohort/period"
	"github.com/featurebasedb/cohort/schema"
	"github.com/featurebasedb/cohort/source"
	"github.com/featurebasedb/cohort/task"
)

// Lister lists the files and subdirectories of a directory.
type Lister interface {
	period.Lister
	Dirs(ctx context.Context, dir string) ([]string, error)
}

// Reader loads one extract of a registry into batches adapted to the
// registry's schema.
type Reader interface {
	Schema() *schema.RegistrySchema
	Load(ctx context.Context, location string) ([]arrow.Record, error)
}

// DetectPeriods maps every subdirectory of dir that holds period-tagged
// extracts to those extracts, oldest first. Keys are lowercased directory
// names.
func DetectPeriods(ctx context.Context, l Lister, dir string) (map[string][]period.File, error) {
	dirs, err := l.Dirs(ctx, dir)
	if err != nil {
		return nil, errors.Wrapf(err, "detecting registries in %s", dir)
	}
	out := make(map[string][]period.File)
	for _, d := range dirs {
		files, err := period.FindFiles(ctx, l, d)
		if err != nil {
			return nil, err
		}
		if len(files) > 0 {
			out[strings.ToLower(source.Base(d))] = files
		}
	}
	return out, nil
}

// Config selects what Loader.Load reads.
type Config struct {
	// DataDir holds one subdirectory per registry.
	DataDir string
	// Registries maps registry names to their directory below DataDir. An
	// empty directory defaults to the lowercased registry name.
	Registries map[string]string
	// From and To bound the periods read, inclusive. A zero bound is open.
	From, To time.Time
	// IDFilter, when set, keeps only these identifiers.
	IDFilter *join.KeyFilter
}

// Loader reads every period of a set of registries and merges them into a
// longitudinal store.
type Loader struct {
	lister  Lister
	readers map[string]Reader
	workers int
	log     logger.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// OptLoaderWorkers bounds the number of files read at once.
func OptLoaderWorkers(n int) LoaderOption {
	return func(l *Loader) { l.workers = n }
}

// OptLoaderLogger sets the loader's logger.
func OptLoaderLogger(log logger.Logger) LoaderOption {
	return func(l *Loader) { l.log = log }
}

// NewLoader returns a loader listing directories through lister.
func NewLoader(lister Lister, opts ...LoaderOption) *Loader {
	l := &Loader{lister: lister, readers: make(map[string]Reader), log: logger.NopLogger}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Register makes a registry available under name. Only registries whose
// rows carry the person identifier can be loaded longitudinally.
func (l *Loader) Register(name string, r Reader) error {
	if k := r.Schema().JoinKeyKind(); k != schema.PrimaryIdentifier {
		return errors.Newf(errors.ErrValidation, "registry %s is keyed by %s and cannot be loaded by period", name, k)
	}
	l.readers[name] = r
	return nil
}

type job struct {
	registry string
	reader   Reader
	file     period.File
}

// LoadPeriods reads every period file of the configured registries that
// overlaps the date range. The entities of each period are ordered by
// registry name, then file, then row.
func (l *Loader) LoadPeriods(ctx context.Context, cfg Config) (map[period.Period][]*entity.Entity, error) {
	names := make([]string, 0, len(cfg.Registries))
	for n := range cfg.Registries {
		names = append(names, n)
	}
	sort.Strings(names)

	var jobs []job
	for _, name := range names {
		r, ok := l.readers[name]
		if !ok {
			return nil, errors.Newf(errors.ErrNotRegistered, "registry %s is not registered", name)
		}
		dir := cfg.Registries[name]
		if dir == "" {
			dir = strings.ToLower(name)
		}
		files, err := period.FindFiles(ctx, l.lister, source.Join(cfg.DataDir, dir))
		if err != nil {
			return nil, err
		}
		files = period.InRange(files, cfg.From, cfg.To)
		if len(files) == 0 {
			l.log.Infof("no period files for registry %s", name)
		}
		for _, f := range files {
			jobs = append(jobs, job{registry: name, reader: r, file: f})
		}
	}

	results, err := task.Map(ctx, l.workers, jobs, func(ctx context.Context, j job) ([]*entity.Entity, error) {
		return l.read(ctx, j, cfg.IDFilter)
	})
	if err != nil {
		return nil, err
	}
	out := make(map[period.Period][]*entity.Entity)
	for i, es := range results {
		p := jobs[i].file.Period
		out[p] = append(out[p], es...)
	}
	return out, nil
}

// Load reads like LoadPeriods and merges the periods oldest first.
func (l *Loader) Load(ctx context.Context, cfg Config) (*entity.Store, error) {
	byPeriod, err := l.LoadPeriods(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return MergeAcrossPeriods(byPeriod)
}

func (l *Loader) read(ctx context.Context, j job, filter *join.KeyFilter) ([]*entity.Entity, error) {
	recs, err := j.reader.Load(ctx, j.file.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s period %s", j.registry, j.file.Period)
	}
	defer batch.Release(recs)

	d := schema.NewDeserializer(j.reader.Schema(), l.log)
	per := j.file.Period.String()
	var out []*entity.Entity
	for _, rec := range recs {
		src := entity.Provenance{
			Registry:   j.registry,
			Period:     per,
			DataSource: fmt.Sprintf("%s_%s_%d", j.registry, per, rec.NumRows()),
		}
		for _, e := range d.DeserializeBatch(rec) {
			if filter != nil && !filter.Contains(e.ID()) {
				continue
			}
			e.AddProvenance(src)
			out = append(out, e)
		}
	}
	l.log.Debugf("read %d entities from %s period %s", len(out), j.registry, per)
	return out, nil
}
