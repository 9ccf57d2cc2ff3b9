package filter

import (
	"fmt"

	"github.com/robert-malhotra/imslink/internal/message"
)

// Pipeline is the filter chain of one chunked dataset.
type Pipeline struct {
	stages []Filter
}

// NewPipeline builds the chain of fp, which may be nil.
func NewPipeline(fp *message.FilterPipeline) (*Pipeline, error) {
	var p Pipeline
	if fp == nil {
		return &p, nil
	}
	for i, info := range fp.Filters {
		f, err := New(info)
		if err != nil {
			return nil, fmt.Errorf("filter %d of pipeline: %w", i, err)
		}
		if f != nil {
			p.stages = append(p.stages, f)
		}
	}
	return &p, nil
}

// Encode runs the stages first to last.
func (p *Pipeline) Encode(chunk []byte) ([]byte, error) {
	var err error
	for _, f := range p.stages {
		if chunk, err = f.Encode(chunk); err != nil {
			return nil, fmt.Errorf("encoding with filter %d: %w", f.ID(), err)
		}
	}
	return chunk, nil
}

// Decode runs the stages last to first, skipping stage i when bit i of
// mask is set.
func (p *Pipeline) Decode(stored []byte, mask uint32) ([]byte, error) {
	var err error
	for i := len(p.stages) - 1; i >= 0; i-- {
		if mask>>uint(i)&1 == 1 {
			continue
		}
		f := p.stages[i]
		if stored, err = f.Decode(stored); err != nil {
			return nil, fmt.Errorf("decoding with filter %d: %w", f.ID(), err)
		}
	}
	return stored, nil
}

func (p *Pipeline) Empty() bool { return len(p.stages) == 0 }
func (p *Pipeline) Len() int    { return len(p.stages) }
