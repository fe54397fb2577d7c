// Package storage persists the links discovered on useful pages.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Record is the set of links extracted from one useful page.
type Record struct {
	SourceURL    string
	Links        []string
	DiscoveredAt time.Time
}

// LinkSink receives one Record per useful page.
type LinkSink interface {
	Append(ctx context.Context, rec Record) error
	Close() error
}

// Pipeline fans records out to every configured sink.
type Pipeline struct {
	sinks []LinkSink
}

// NewPipeline constructs a pipeline, skipping nil sinks. It returns nil when
// no sink remains; a nil Pipeline accepts and drops records.
func NewPipeline(sinks ...LinkSink) *Pipeline {
	p := &Pipeline{}
	for _, s := range sinks {
		if s != nil {
			p.sinks = append(p.sinks, s)
		}
	}
	if len(p.sinks) == 0 {
		return nil
	}
	return p
}

// Append writes rec to every sink. A failing sink does not stop the others.
func (p *Pipeline) Append(ctx context.Context, rec Record) error {
	if p == nil {
		return nil
	}
	if rec.DiscoveredAt.IsZero() {
		rec.DiscoveredAt = time.Now().UTC()
	}
	var errs []error
	for _, s := range p.sinks {
		if err := s.Append(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", s, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (p *Pipeline) Close() error {
	if p == nil {
		return nil
	}
	var errs []error
	for _, s := range p.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
