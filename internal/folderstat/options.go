package folderstat

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/idelchi/folderstat/internal/aggregate"
	"github.com/idelchi/folderstat/internal/cache"
	"github.com/idelchi/folderstat/internal/prune"
)

// Option defaults.
const (
	DefaultMaxFiles  = 500_000
	DefaultMaxDepth  = 50
	DefaultBatchSize = 1000
)

//nolint:gochecknoglobals // Validators are safe for concurrent use
var validate = validator.New()

// Options configures a single analysis.
type Options struct {
	// CalculateDurations enables media duration estimation.
	CalculateDurations bool
	// MaxFiles caps the number of files counted (0 = unlimited).
	MaxFiles int64 `validate:"gte=0"`
	// MaxDepth bounds directory depth (0 = unlimited).
	MaxDepth int `validate:"gte=0,lte=4096"`
	// MaxWorkers is the worker pool size.
	MaxWorkers int `validate:"gte=1,lte=256"`
	// BatchSize is the number of files per size/stat unit.
	BatchSize int `validate:"gte=1,lte=1000000"`
	// SkipSystemDirs prunes deny-listed and hidden-and-system directories.
	SkipSystemDirs bool
	// SkipHidden also prunes dot-prefixed directories.
	SkipHidden bool
	// DenyList replaces the default deny-list when non-empty.
	DenyList []string
	// ExtraDeny extends the deny-list.
	ExtraDeny []string
	// Extensions adds or overrides extension to category mappings.
	Extensions map[string]string
	// CacheTTL bounds the age of cached results.
	CacheTTL time.Duration `validate:"gte=0"`
	// NoCache bypasses the result cache.
	NoCache bool
	// Parallel distributes root subdirectories over the pool.
	Parallel bool
	// SampleFiles is the number of example paths kept per category.
	SampleFiles int `validate:"gte=0,lte=10000"`
}

// DefaultWorkers returns min(32, NumCPU+4).
func DefaultWorkers() int {
	return min(32, runtime.NumCPU()+4)
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		CalculateDurations: true,
		MaxFiles:           DefaultMaxFiles,
		MaxDepth:           DefaultMaxDepth,
		MaxWorkers:         DefaultWorkers(),
		BatchSize:          DefaultBatchSize,
		SkipSystemDirs:     true,
		CacheTTL:           cache.DefaultTTL,
		Parallel:           true,
		SampleFiles:        aggregate.DefaultSampleCap,
	}
}

// Validate checks numeric bounds.
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			fields := make([]string, 0, len(fieldErrs))
			for _, fieldErr := range fieldErrs {
				fields = append(fields, fmt.Sprintf("%s must be %s %s", fieldErr.Field(), fieldErr.Tag(), fieldErr.Param()))
			}

			return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(fields, ", "))
		}

		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	return nil
}

// Policy builds the pruning policy for these options.
func (o Options) Policy() prune.Policy {
	deny := prune.DefaultDenyList
	if len(o.DenyList) > 0 {
		deny = o.DenyList
	}

	deny = append(append([]string(nil), deny...), o.ExtraDeny...)

	return prune.New(deny, o.SkipSystemDirs, o.SkipHidden, o.MaxDepth)
}
