package graphd

import (
	"errors"
	"time"

	"github.com/hupe1980/graphd/cursor"
	"github.com/hupe1980/graphd/iterator"
	"github.com/hupe1980/graphd/model"
)

// meteredIterator decorates an iterator with per-operation metrics.
// Done and ErrMore are normal control flow, not errors, so they are not
// counted as failures.
type meteredIterator struct {
	inner iterator.Iterator
	m     MetricsCollector
}

func metricErr(err error) error {
	if err == nil || errors.Is(err, iterator.Done) || errors.Is(err, iterator.ErrMore) {
		return nil
	}
	return err
}

func (mi *meteredIterator) Next(b *iterator.Budget) (model.ID, error) {
	start := time.Now()
	id, err := mi.inner.Next(b)
	mi.m.RecordNext(time.Since(start), metricErr(err))
	return id, err
}

func (mi *meteredIterator) Find(id model.ID, b *iterator.Budget) (model.ID, error) {
	start := time.Now()
	found, err := mi.inner.Find(id, b)
	mi.m.RecordFind(time.Since(start), metricErr(err))
	return found, err
}

func (mi *meteredIterator) Check(id model.ID, b *iterator.Budget) (bool, error) {
	start := time.Now()
	ok, err := mi.inner.Check(id, b)
	mi.m.RecordCheck(time.Since(start), metricErr(err))
	return ok, err
}

func (mi *meteredIterator) Statistics(b *iterator.Budget) (iterator.Statistics, error) {
	return mi.inner.Statistics(b)
}

func (mi *meteredIterator) Stats() iterator.Statistics {
	return mi.inner.Stats()
}

func (mi *meteredIterator) Clone() (iterator.Iterator, error) {
	c, err := mi.inner.Clone()
	if err != nil {
		return nil, err
	}
	return &meteredIterator{inner: c, m: mi.m}, nil
}

func (mi *meteredIterator) Reset() error {
	return mi.inner.Reset()
}

func (mi *meteredIterator) Freeze(buf *cursor.Buffer, parts iterator.Parts) error {
	return mi.inner.Freeze(buf, parts)
}

func (mi *meteredIterator) PrimitiveSummary() (model.Summary, bool) {
	return mi.inner.PrimitiveSummary()
}

func (mi *meteredIterator) RangeEstimate() (model.RangeEstimate, error) {
	return mi.inner.RangeEstimate()
}

func (mi *meteredIterator) Restrict(sum *model.Summary) (iterator.Iterator, error) {
	r, err := mi.inner.Restrict(sum)
	if err != nil {
		return nil, err
	}
	return &meteredIterator{inner: r, m: mi.m}, nil
}

func (mi *meteredIterator) Range() (model.ID, model.ID) {
	return mi.inner.Range()
}

func (mi *meteredIterator) Forward() bool {
	return mi.inner.Forward()
}

func (mi *meteredIterator) String() string {
	return mi.inner.String()
}

func (mi *meteredIterator) Close() error {
	return mi.inner.Close()
}
