package detect

import (
	"context"
	"errors"
	"io"
	"sync"
)

// ErrPoolClosed is returned by Detect after Close.
var ErrPoolClosed = errors.New("detector pool closed")

type job struct {
	ctx       context.Context
	imagePath string
	reply     chan jobResult
}

type jobResult struct {
	result *Result
	err    error
}

// Pool fans Detect calls out to a fixed set of workers. Each worker owns one
// Detector exclusively, so backends holding a single inference session never
// see concurrent calls.
type Pool struct {
	jobs      chan job
	quit      chan struct{}
	wg        sync.WaitGroup
	detectors []Detector
	closeOnce sync.Once
}

func NewPool(detectors ...Detector) *Pool {
	p := &Pool{
		jobs:      make(chan job),
		quit:      make(chan struct{}),
		detectors: detectors,
	}
	for _, d := range detectors {
		p.wg.Add(1)
		go p.work(d)
	}
	return p
}

// Size reports the number of workers.
func (p *Pool) Size() int {
	return len(p.detectors)
}

func (p *Pool) work(d Detector) {
	defer p.wg.Done()
	for {
		select {
		case <-p.quit:
			return
		case j := <-p.jobs:
			if err := j.ctx.Err(); err != nil {
				j.reply <- jobResult{err: err}
				continue
			}
			res, err := d.Detect(j.ctx, j.imagePath)
			j.reply <- jobResult{result: res, err: err}
		}
	}
}

// Detect blocks until a worker is free, the context is done, or the pool is
// closed.
func (p *Pool) Detect(ctx context.Context, imagePath string) (*Result, error) {
	j := job{ctx: ctx, imagePath: imagePath, reply: make(chan jobResult, 1)}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.quit:
		return nil, ErrPoolClosed
	case p.jobs <- j:
	}
	// A worker always answers an accepted job.
	r := <-j.reply
	return r.result, r.err
}

// Close stops the workers and closes any detector that implements io.Closer.
func (p *Pool) Close() error {
	var errs []error
	p.closeOnce.Do(func() {
		close(p.quit)
		p.wg.Wait()
		for _, d := range p.detectors {
			if c, ok := d.(io.Closer); ok {
				if err := c.Close(); err != nil {
					errs = append(errs, err)
				}
			}
		}
	})
	return errors.Join(errs...)
}
