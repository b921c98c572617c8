// Package nedb implements an embedded, single-process, schemaless JSON
// document store: append-only log persistence, in-memory ordered
// indexes, a MongoDB-style query/update/projection engine and a FIFO
// single-concurrency executor serializing every operation against one
// collection (§4.8).
package nedb

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/SReject/nedb/internal/config"
	nedberrors "github.com/SReject/nedb/internal/errors"
	"github.com/SReject/nedb/internal/executor"
	"github.com/SReject/nedb/internal/index"
	"github.com/SReject/nedb/internal/logger"
	"github.com/SReject/nedb/internal/metrics"
	"github.com/SReject/nedb/internal/persistence"
	"github.com/SReject/nedb/internal/serialize"
	"github.com/SReject/nedb/internal/value"
)

// Config re-exports internal/config.Config so callers never import an
// internal package directly.
type Config = config.Config

// Default returns a Config for an in-memory-only datastore.
func Default() *Config { return config.Default() }

// Datastore is one collection: its documents, its indexes and the single
// worker that serializes every operation against them.
type Datastore struct {
	cfg     config.Config
	persist *persistence.Persistence
	exec    *executor.Executor
	log     *logger.Logger
	metrics *metrics.Metrics

	indexes    map[string]*index.Index
	indexOrder []string

	mu        sync.Mutex
	listeners map[string][]func()

	stopAutocompact chan struct{}
}

// New constructs a Datastore per cfg. If cfg.Autoload is set, Load runs
// synchronously before New returns. Otherwise an in-memory-only datastore
// is ready immediately, while a persisted one queues operations until the
// caller calls Load explicitly (§4.7).
func New(cfg config.Config) (*Datastore, error) {
	cfg.Normalize()

	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}
	met := metrics.New()

	persist, err := persistence.New(persistence.Options{
		Filename:              cfg.Filename,
		InMemoryOnly:          cfg.InMemoryOnly,
		AfterSerialization:    cfg.Hooks.AfterSerialization,
		BeforeDeserialization: cfg.Hooks.BeforeDeserialization,
		CorruptAlertThreshold: cfg.Corruption.AlertThreshold,
		Logger:                log,
		Metrics:               met,
	})
	if err != nil {
		return nil, err
	}

	ds := &Datastore{
		cfg:       cfg,
		persist:   persist,
		log:       log,
		metrics:   met,
		indexes:   map[string]*index.Index{"_id": index.New(index.Options{FieldName: "_id", Unique: true, StrCmp: cfg.CompareStrings})},
		listeners: make(map[string][]func()),
	}
	ds.exec = executor.New(persist.InMemoryOnly())
	ds.exec.SetLogger(log)

	if cfg.Autoload {
		if err := ds.Load(); err != nil {
			ds.exec.Close()
			return nil, err
		}
	}

	ds.startAutocompaction()
	return ds, nil
}

func (ds *Datastore) now() int64 { return time.Now().UnixMilli() }

// newDocID mints a fresh 16-character _id, retrying on the
// astronomically unlikely collision against the existing _id index.
func (ds *Datastore) newDocID() (string, error) {
	for i := 0; i < 100; i++ {
		var raw [16]byte
		if _, err := rand.Read(raw[:]); err != nil {
			return "", fmt.Errorf("%w: %v", nedberrors.ErrIO, err)
		}
		id := newDocID(raw)
		if len(ds.indexes["_id"].GetMatching(value.Str(id))) == 0 {
			return id, nil
		}
	}
	return "", errors.New("nedb: could not generate a unique _id after 100 attempts")
}

func (ds *Datastore) removeFromOrder(name string) {
	for i, n := range ds.indexOrder {
		if n == name {
			ds.indexOrder = append(ds.indexOrder[:i], ds.indexOrder[i+1:]...)
			return
		}
	}
}

func (ds *Datastore) allDocs() []value.Value {
	return ds.indexes["_id"].GetAll()
}

func translateIndexErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, index.ErrUniqueViolation) {
		return fmt.Errorf("%w: %v", nedberrors.ErrUniqueViolation, err)
	}
	return err
}

// EnsureIndexOptions mirrors index.Options for the public EnsureIndex
// call.
type EnsureIndexOptions struct {
	FieldName          string
	Unique             bool
	Sparse             bool
	ExpireAfterSeconds *int64
}

// EnsureIndex builds (or, if fieldName already has one, leaves
// untouched) a secondary index, recording the definition to the log.
func (ds *Datastore) EnsureIndex(opts EnsureIndexOptions) error {
	res := <-ds.exec.Push(false, func() (interface{}, error) {
		return nil, ds.ensureIndexSync(opts)
	})
	return res.Err
}

func (ds *Datastore) ensureIndexSync(opts EnsureIndexOptions) error {
	if opts.FieldName == "" {
		return nedberrors.ErrMissingFieldName
	}
	if err := value.ValidateFieldPath(opts.FieldName); err != nil {
		return err
	}
	if _, exists := ds.indexes[opts.FieldName]; exists {
		return nil
	}

	idx := index.New(index.Options{
		FieldName:          opts.FieldName,
		Unique:             opts.Unique,
		Sparse:             opts.Sparse,
		ExpireAfterSeconds: opts.ExpireAfterSeconds,
		StrCmp:             ds.cfg.CompareStrings,
	})
	if err := idx.Insert(ds.allDocs()...); err != nil {
		return translateIndexErr(err)
	}
	ds.indexes[opts.FieldName] = idx
	ds.indexOrder = append(ds.indexOrder, opts.FieldName)

	rec := serialize.NewIndexCreated(opts.FieldName, opts.Unique, opts.Sparse, opts.ExpireAfterSeconds)
	if err := ds.persist.PersistNewState([]value.Value{rec}); err != nil {
		delete(ds.indexes, opts.FieldName)
		ds.removeFromOrder(opts.FieldName)
		return err
	}
	ds.metrics.IndexCount.Set(float64(len(ds.indexes)))
	return nil
}

// RemoveIndex drops a previously-created secondary index. Removing the
// mandatory _id index is refused.
func (ds *Datastore) RemoveIndex(fieldName string) error {
	res := <-ds.exec.Push(false, func() (interface{}, error) {
		return nil, ds.removeIndexSync(fieldName)
	})
	return res.Err
}

func (ds *Datastore) removeIndexSync(fieldName string) error {
	if fieldName == "_id" {
		return nedberrors.ErrIndexNotFound
	}
	if _, exists := ds.indexes[fieldName]; !exists {
		return nedberrors.ErrIndexNotFound
	}
	delete(ds.indexes, fieldName)
	ds.removeFromOrder(fieldName)

	if err := ds.persist.PersistNewState([]value.Value{serialize.NewIndexRemoved(fieldName)}); err != nil {
		return err
	}
	ds.metrics.IndexCount.Set(float64(len(ds.indexes)))
	return nil
}

// Load resets every index, recovers the datafile from any interrupted
// crash-safe write, folds it into documents and index operations,
// rebuilds the indexes, runs one immediate compaction, and opens the
// executor's buffered gate (§4.7/§4.8).
func (ds *Datastore) Load() error {
	res := <-ds.exec.Push(true, func() (interface{}, error) {
		return nil, ds.loadSync()
	})
	if ds.cfg.OnLoad != nil {
		ds.cfg.OnLoad(res.Err)
	}
	return res.Err
}

func (ds *Datastore) loadSync() error {
	ds.indexes = map[string]*index.Index{"_id": index.New(index.Options{FieldName: "_id", Unique: true, StrCmp: ds.cfg.CompareStrings})}
	ds.indexOrder = nil

	result, err := ds.persist.LoadDatabase()
	if err != nil {
		return err
	}

	for _, op := range result.IndexOps {
		switch op.Kind {
		case persistence.IndexCreated:
			if _, exists := ds.indexes[op.Def.FieldName]; !exists {
				ds.indexes[op.Def.FieldName] = index.New(index.Options{
					FieldName:          op.Def.FieldName,
					Unique:             op.Def.Unique,
					Sparse:             op.Def.Sparse,
					ExpireAfterSeconds: op.Def.ExpireAfterSeconds,
					StrCmp:             ds.cfg.CompareStrings,
				})
				ds.indexOrder = append(ds.indexOrder, op.Def.FieldName)
			}
		case persistence.IndexRemoved:
			delete(ds.indexes, op.FieldName)
			ds.removeFromOrder(op.FieldName)
		}
	}

	docs := make([]value.Value, 0, len(result.Docs))
	for _, d := range result.Docs {
		docs = append(docs, d)
	}
	if err := ds.indexes["_id"].Insert(docs...); err != nil {
		return translateIndexErr(err)
	}
	for _, name := range ds.indexOrder {
		if err := ds.indexes[name].Insert(docs...); err != nil {
			return translateIndexErr(err)
		}
	}

	if err := ds.compactSync(); err != nil {
		return err
	}

	ds.exec.MarkReady()
	ds.metrics.DocumentCount.Set(float64(len(docs)))
	ds.metrics.IndexCount.Set(float64(len(ds.indexes)))
	if ds.log != nil {
		ds.log.Info("load complete: %d documents, %d indexes", len(docs), len(ds.indexes))
	}
	return nil
}

func (ds *Datastore) compactSync() error {
	docs := ds.indexes["_id"].GetAll()
	defs := make([]persistence.IndexDef, 0, len(ds.indexOrder))
	for _, name := range ds.indexOrder {
		idx := ds.indexes[name]
		defs = append(defs, persistence.IndexDef{
			FieldName:          idx.FieldName(),
			Unique:             idx.Unique(),
			Sparse:             idx.Sparse(),
			ExpireAfterSeconds: idx.ExpireAfterSeconds(),
		})
	}
	if err := ds.persist.PersistCachedDatabase(docs, defs); err != nil {
		return err
	}
	ds.emit("compaction.done")
	return nil
}

// Compact runs an on-demand full-rewrite compaction, serialized through
// the executor like every other operation.
func (ds *Datastore) Compact() error {
	res := <-ds.exec.Push(false, func() (interface{}, error) {
		return nil, ds.compactSync()
	})
	return res.Err
}

func (ds *Datastore) startAutocompaction() {
	if ds.cfg.Compaction.Interval <= 0 {
		return
	}
	ds.stopAutocompact = make(chan struct{})
	go func() {
		ticker := time.NewTicker(ds.cfg.Compaction.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := ds.Compact(); err != nil && ds.log != nil {
					ds.log.Error("autocompaction failed: %v", err)
				}
			case <-ds.stopAutocompact:
				return
			}
		}
	}()
}

// On registers fn to run whenever event fires. The only event emitted
// today is "compaction.done".
func (ds *Datastore) On(event string, fn func()) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.listeners[event] = append(ds.listeners[event], fn)
}

func (ds *Datastore) emit(event string) {
	ds.mu.Lock()
	fns := append([]func(){}, ds.listeners[event]...)
	ds.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Stats is a snapshot of a Datastore's size.
type Stats struct {
	Documents     int
	Indexes       int
	DatafileBytes int64
}

// Stats reports the current document/index counts and, for a persisted
// datastore, the on-disk datafile size.
func (ds *Datastore) Stats() Stats {
	res := <-ds.exec.Push(false, func() (interface{}, error) {
		s := Stats{Documents: ds.indexes["_id"].Len(), Indexes: len(ds.indexes)}
		if !ds.persist.InMemoryOnly() {
			if info, err := os.Stat(ds.persist.Filename()); err == nil {
				s.DatafileBytes = info.Size()
			}
		}
		return s, nil
	})
	s, _ := res.Value.(Stats)
	return s
}

// Close stops autocompaction and drains the executor's worker.
func (ds *Datastore) Close() error {
	if ds.stopAutocompact != nil {
		close(ds.stopAutocompact)
	}
	ds.exec.Close()
	return nil
}

