package config

import (
	"time"

	"github.com/SReject/nedb/internal/logger"
)

// Config configures one Datastore (§4.8 and the ambient options around
// it). Filename == "" means in-memory-only.
type Config struct {
	Filename string

	// InMemoryOnly forces in-memory-only mode even when Filename is set;
	// implied automatically when Filename == "".
	InMemoryOnly bool

	// Autoload runs Load synchronously during construction when true.
	Autoload bool

	// TimestampData enables createdAt/updatedAt bookkeeping (§4.8).
	TimestampData bool

	// CompareStrings overrides the default byte-wise ordering used
	// whenever two string values are compared: sorts, range-indexed
	// bounds, and $lt/$lte/$gt/$gte matching. nil means byte-wise.
	CompareStrings func(a, b string) int

	// OnLoad, if set, is invoked once with the result of the datastore's
	// load (nil on success) — whether that load ran synchronously during
	// New because Autoload was set, or later via an explicit Load call.
	OnLoad func(error)

	// Logger overrides the logger every layer (persistence, executor,
	// datastore) writes progress lines through. Nil means logger.Default().
	Logger *logger.Logger

	Hooks      HooksConfig
	Corruption CorruptionConfig
	Compaction CompactionConfig
}

// HooksConfig carries the optional bijective serialization hooks (§4.6),
// e.g. for encryption. Either both or neither must be set.
type HooksConfig struct {
	AfterSerialization    func(string) string
	BeforeDeserialization func(string) string
}

// CorruptionConfig configures load-time corruption tolerance.
type CorruptionConfig struct {
	// AlertThreshold is the fraction of unparsable lines (corruptItems /
	// totalLines) above which Load refuses to start. Zero means use
	// DefaultCorruptAlertThreshold.
	AlertThreshold float64
}

// CompactionConfig configures the autocompaction timer.
type CompactionConfig struct {
	// Interval is clamped up to MinAutocompactionInterval. Zero disables
	// autocompaction; compaction is still available on demand.
	Interval time.Duration
}

// MinAutocompactionInterval is the floor any requested autocompaction
// interval is clamped to (§4.6).
const MinAutocompactionInterval = 5 * time.Second

// DefaultCorruptAlertThreshold is the default load-time corruption
// tolerance when CorruptionConfig.AlertThreshold is left at zero.
const DefaultCorruptAlertThreshold = 0.1

// Default returns a Config for an in-memory-only datastore with
// timestamping enabled.
func Default() *Config {
	return &Config{
		InMemoryOnly:  true,
		TimestampData: true,
		Corruption: CorruptionConfig{
			AlertThreshold: DefaultCorruptAlertThreshold,
		},
	}
}

// Normalize fills in defaults and derives InMemoryOnly from Filename; the
// Datastore constructor calls it exactly once.
func (c *Config) Normalize() {
	if c.Filename == "" {
		c.InMemoryOnly = true
	}
	if c.Corruption.AlertThreshold == 0 {
		c.Corruption.AlertThreshold = DefaultCorruptAlertThreshold
	}
	if c.Compaction.Interval != 0 && c.Compaction.Interval < MinAutocompactionInterval {
		c.Compaction.Interval = MinAutocompactionInterval
	}
}
