package graphd

import (
	"time"

	"github.com/hupe1980/graphd/codec"
	"github.com/hupe1980/graphd/idstore"
	"github.com/hupe1980/graphd/internal/fs"
	"github.com/hupe1980/graphd/internal/resource"
	"github.com/hupe1980/graphd/iterator"
)

type options struct {
	codec            codec.Codec
	compression      idstore.Compression
	metricsCollector MetricsCollector
	logger           *Logger
	policy           iterator.BudgetPolicy
	resourceConfig   resource.Config
	fs               fs.FileSystem
	thawTimeout      time.Duration
}

// Option configures DB constructor/load behavior.
type Option func(*options)

// WithCodec configures the codec used for snapshot manifests.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithCompression configures the payload compression used when flushing
// source files. The default is CompressionNone, which keeps flushed files
// servable straight from the page cache via mmap.
func WithCompression(comp idstore.Compression) Option {
	return func(o *options) {
		o.compression = comp
	}
}

// WithMetricsCollector configures operational metrics collection.
//
// If nil is passed, NoopMetricsCollector is used.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging.
//
// If nil is passed, NoopLogger() is used.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithBudgetPolicy installs a budget exhaustion policy applied to budgets
// created through DB.NewBudget. Use it to schedule how much work each
// engine call may do before suspending.
func WithBudgetPolicy(p iterator.BudgetPolicy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithResourceConfig configures the resource controller that gates
// background snapshot workers and throttles snapshot IO.
func WithResourceConfig(cfg resource.Config) Option {
	return func(o *options) {
		o.resourceConfig = cfg
	}
}

// WithFileSystem swaps the file system used for persistence. Tests
// inject fs.FaultyFS here.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		if fsys == nil {
			fsys = fs.Default
		}
		o.fs = fsys
	}
}

// WithThawTimeout bounds how long a single Thaw may run. Zero means no
// deadline.
func WithThawTimeout(d time.Duration) Option {
	return func(o *options) {
		o.thawTimeout = d
	}
}

func defaultOptions() options {
	return options{
		codec:            codec.Default,
		compression:      idstore.CompressionNone,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		fs:               fs.Default,
	}
}
