// Package persistence implements §4.6: hook bijectivity validation,
// the append-only write path, the fold-based loader, and full-rewrite
// compaction. It is built directly on internal/storage's crash-safe
// primitives and internal/serialize's line codec, in the same layering
// the reference corpus uses to separate its data file from its
// compactor.
package persistence

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	nedberrors "github.com/SReject/nedb/internal/errors"
	"github.com/SReject/nedb/internal/logger"
	"github.com/SReject/nedb/internal/metrics"
	"github.com/SReject/nedb/internal/serialize"
	"github.com/SReject/nedb/internal/storage"
	"github.com/SReject/nedb/internal/value"
)

// hookValidationSamples is the number of random round-trips §8 requires
// to validate a hook pair is bijective before Persistence accepts it.
const hookValidationSamples = 300

// IndexDef mirrors one ensureIndex call, as folded from a $$indexCreated
// record or handed in by the caller when persisting a compaction.
type IndexDef struct {
	FieldName          string
	Unique             bool
	Sparse             bool
	ExpireAfterSeconds *int64
}

// Persistence owns the on-disk datafile (or nothing, in in-memory-only
// mode) for one Datastore.
type Persistence struct {
	filename     string
	inMemoryOnly bool
	codec        *serialize.Codec
	threshold    float64
	log          *logger.Logger
	metrics      *metrics.Metrics
}

// Options configures a Persistence.
type Options struct {
	Filename              string
	InMemoryOnly          bool
	AfterSerialization    func(string) string
	BeforeDeserialization func(string) string
	CorruptAlertThreshold float64
	Logger                *logger.Logger
	Metrics               *metrics.Metrics
}

// New validates opts and constructs a Persistence. Lopsided hooks, a
// non-bijective hook pair, or a filename ending in '~' are all
// configuration refusals (§7 kind 1): synchronous, unrecoverable errors.
func New(opts Options) (*Persistence, error) {
	if (opts.AfterSerialization == nil) != (opts.BeforeDeserialization == nil) {
		return nil, nedberrors.ErrLopsidedHooks
	}
	if strings.HasSuffix(opts.Filename, "~") {
		return nil, nedberrors.ErrReservedFilename
	}
	if opts.AfterSerialization != nil {
		if err := validateHooksAreInverse(opts.AfterSerialization, opts.BeforeDeserialization); err != nil {
			return nil, err
		}
	}

	codec := serialize.New(serialize.Hooks{
		AfterSerialization:    opts.AfterSerialization,
		BeforeDeserialization: opts.BeforeDeserialization,
	})

	threshold := opts.CorruptAlertThreshold
	if threshold == 0 {
		threshold = 0.1
	}

	return &Persistence{
		filename:     opts.Filename,
		inMemoryOnly: opts.InMemoryOnly || opts.Filename == "",
		codec:        codec,
		threshold:    threshold,
		log:          opts.Logger,
		metrics:      opts.Metrics,
	}, nil
}

// validateHooksAreInverse runs hookValidationSamples random strings
// through after then before and checks for the identity; a probabilistic
// guard, not a proof, preserved as the source specifies it.
func validateHooksAreInverse(after, before func(string) string) error {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < hookValidationSamples; i++ {
		s := randomString(rng, rng.Intn(64))
		if before(after(s)) != s {
			return nedberrors.ErrHooksNotInverse
		}
	}
	return nil
}

func randomString(rng *rand.Rand, n int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 \t\n!@#$%^&*()"
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rng.Intn(len(alphabet))]
	}
	return string(b)
}

// InMemoryOnly reports whether this Persistence performs no I/O.
func (p *Persistence) InMemoryOnly() bool { return p.inMemoryOnly }

// Filename returns the configured datafile path.
func (p *Persistence) Filename() string { return p.filename }

// PersistNewState appends one line per record to the datafile in a
// single write call. A no-op in in-memory-only mode.
func (p *Persistence) PersistNewState(records []value.Value) error {
	if p.inMemoryOnly || len(records) == 0 {
		return nil
	}

	lines := make([]string, len(records))
	for i, r := range records {
		line, err := p.codec.Encode(r)
		if err != nil {
			return fmt.Errorf("%w: %v", nedberrors.ErrIO, err)
		}
		lines[i] = line
	}

	f, err := os.OpenFile(p.filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("%w: %v", nedberrors.ErrIO, err)
	}
	defer f.Close()

	payload := serialize.JoinLines(lines) + "\n"
	if _, err := f.WriteString(payload); err != nil {
		return fmt.Errorf("%w: %v", nedberrors.ErrIO, err)
	}
	return nil
}

// LoadResult is the folded state of a datafile: the surviving documents
// keyed by _id, and the sequence of index-definition operations recorded
// alongside them.
type LoadResult struct {
	Docs     map[string]value.Value
	IndexOps []IndexOp
}

// IndexOpKind discriminates IndexOp.
type IndexOpKind int

const (
	IndexCreated IndexOpKind = iota
	IndexRemoved
)

// IndexOp is one $$indexCreated/$$indexRemoved record, in file order.
type IndexOp struct {
	Kind      IndexOpKind
	Def       IndexDef
	FieldName string // valid when Kind == IndexRemoved
}

// LoadDatabase ensures the parent directory and datafile exist, recovers
// from any interrupted crash-safe write, reads the whole file, and folds
// it per §4.6/§3: documents accumulate into a _id->doc map, tombstones
// delete from it, and index-definition records accumulate into IndexOps
// in file order. Lines that fail to parse increment a corruption
// counter; if the corrupt fraction exceeds the configured threshold,
// load refuses with ErrCorruptionThresholdExceeded (suspect a wrong
// deserialization hook).
//
// In-memory-only mode returns an empty result immediately.
func (p *Persistence) LoadDatabase() (*LoadResult, error) {
	result := &LoadResult{Docs: make(map[string]value.Value)}
	if p.inMemoryOnly {
		return result, nil
	}

	if err := os.MkdirAll(filepath.Dir(p.filename), 0755); err != nil {
		return nil, fmt.Errorf("%w: %v", nedberrors.ErrIO, err)
	}
	if err := storage.EnsureDatafileIntegrity(p.filename); err != nil {
		return nil, fmt.Errorf("%w: %v", nedberrors.ErrIO, err)
	}

	f, err := os.Open(p.filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", nedberrors.ErrIO, err)
	}
	defer f.Close()

	var total, corrupt int
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		total++

		rec, err := p.codec.Decode(line)
		if err != nil {
			corrupt++
			if p.log != nil {
				p.log.Warn("discarding corrupt datafile line: %v", err)
			}
			continue
		}
		p.foldRecord(rec, result)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", nedberrors.ErrIO, err)
	}

	if total > 0 && float64(corrupt)/float64(total) > p.threshold {
		if p.metrics != nil {
			p.metrics.CorruptRecords.Add(float64(corrupt))
		}
		return nil, nedberrors.ErrCorruptionThresholdExceeded
	}
	if p.metrics != nil && corrupt > 0 {
		p.metrics.CorruptRecords.Add(float64(corrupt))
	}
	return result, nil
}

func (p *Persistence) foldRecord(rec value.Value, result *LoadResult) {
	if payload, ok := serialize.IsIndexCreated(rec); ok {
		result.IndexOps = append(result.IndexOps, IndexOp{
			Kind: IndexCreated,
			Def: IndexDef{
				FieldName:          payload.Obj().Get("fieldName").Text(),
				Unique:             payload.Obj().Get("unique").Bool(),
				Sparse:             payload.Obj().Get("sparse").Bool(),
				ExpireAfterSeconds: optionalInt64(payload.Obj().Get("expireAfterSeconds")),
			},
		})
		return
	}
	if field, ok := serialize.IsIndexRemoved(rec); ok {
		result.IndexOps = append(result.IndexOps, IndexOp{Kind: IndexRemoved, FieldName: field})
		return
	}
	if serialize.IsTombstone(rec) {
		if id, ok := serialize.DocID(rec); ok {
			delete(result.Docs, id)
		}
		return
	}
	if serialize.IsDocument(rec) {
		if id, ok := serialize.DocID(rec); ok {
			result.Docs[id] = rec
		}
	}
}

func optionalInt64(v value.Value) *int64 {
	if v.Kind() != value.Number {
		return nil
	}
	n := int64(v.Float())
	return &n
}

// PersistCachedDatabase performs the full-rewrite compaction of §4.6:
// every live document plus every non-_id index definition, written via
// CrashSafeWriteFile. A no-op in in-memory-only mode.
func (p *Persistence) PersistCachedDatabase(docs []value.Value, indexDefs []IndexDef) error {
	if p.inMemoryOnly {
		return nil
	}
	var log *logger.Logger
	if p.log != nil {
		log = p.log.WithCorrID(uuid.New().String())
		log.Debug("compaction starting: %d documents, %d indexes", len(docs), len(indexDefs))
	}

	lines := make([]string, 0, len(docs)+len(indexDefs))
	for _, def := range indexDefs {
		rec := serialize.NewIndexCreated(def.FieldName, def.Unique, def.Sparse, def.ExpireAfterSeconds)
		line, err := p.codec.Encode(rec)
		if err != nil {
			return fmt.Errorf("%w: %v", nedberrors.ErrIO, err)
		}
		lines = append(lines, line)
	}
	for _, doc := range docs {
		line, err := p.codec.Encode(doc)
		if err != nil {
			return fmt.Errorf("%w: %v", nedberrors.ErrIO, err)
		}
		lines = append(lines, line)
	}

	payload := serialize.JoinLines(lines)
	if len(lines) > 0 {
		payload += "\n"
	}
	if err := storage.CrashSafeWriteFile(p.filename, []byte(payload)); err != nil {
		return fmt.Errorf("%w: %v", nedberrors.ErrIO, err)
	}

	if p.metrics != nil {
		p.metrics.CompactionsTotal.Inc()
		if info, err := os.Stat(p.filename); err == nil {
			p.metrics.DatafileBytes.Set(float64(info.Size()))
		}
	}
	if log != nil {
		log.Info("compaction complete: %d documents, %d indexes", len(docs), len(indexDefs))
	}
	return nil
}
