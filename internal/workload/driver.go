package workload

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	concpool "github.com/sourcegraph/conc/pool"
	"golang.org/x/time/rate"

	"github.com/coachpo/poolkit/internal/observability"
	"github.com/coachpo/poolkit/internal/pool"
)

// Plan binds a pool to an optional mid-run resize.
type Plan struct {
	Pool     *pool.ObjectPool[*Entity]
	ResizeTo int
	Resize   bool
}

// Options controls pacing and mix of a run.
type Options struct {
	OpsPerSecond float64
	Burst        int
	ReleaseRatio float64
	Seed         int64
	// Duration bounds a timed run. Ignored when Steps is positive.
	Duration time.Duration
	// Steps runs exactly this many operations per pool.
	Steps int
}

// Result summarizes one pool's run.
type Result struct {
	Pool      string     `json:"pool"`
	Acquired  int        `json:"acquired"`
	Released  int        `json:"released"`
	Exhausted int        `json:"exhausted"`
	Resized   bool       `json:"resized"`
	Stats     pool.Stats `json:"stats"`
}

// Run drives every plan concurrently, one goroutine per pool, and returns
// results ordered by pool name. Every instance acquired during the run is
// released before Run returns.
func Run(ctx context.Context, plans []Plan, opts Options) ([]Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Steps <= 0 && opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	workers := concpool.NewWithResults[Result]().WithContext(ctx).WithCollectErrored()
	for i, plan := range plans {
		seed := opts.Seed + int64(i)
		workers.Go(func(ctx context.Context) (Result, error) {
			return drive(ctx, plan, opts, seed)
		})
	}
	results, err := workers.Wait()
	sort.Slice(results, func(i, j int) bool { return results[i].Pool < results[j].Pool })
	return results, err
}

type driver struct {
	plan    Plan
	opts    Options
	rng     *rand.Rand
	limiter *rate.Limiter
	held    []*Entity
	result  Result
}

func drive(ctx context.Context, plan Plan, opts Options, seed int64) (Result, error) {
	if plan.Pool == nil {
		return Result{}, errors.New("workload: plan without pool")
	}
	limit := rate.Inf
	if opts.OpsPerSecond > 0 {
		limit = rate.Limit(opts.OpsPerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	d := &driver{
		plan:    plan,
		opts:    opts,
		rng:     rand.New(rand.NewSource(seed)), // #nosec G404 -- workload mix, not security sensitive.
		limiter: rate.NewLimiter(limit, burst),
		result:  Result{Pool: plan.Pool.Name()},
	}
	err := d.loop(ctx)
	if drainErr := d.drain(); drainErr != nil && err == nil {
		err = drainErr
	}
	d.result.Stats = plan.Pool.Stats()
	observability.Log().Info("workload finished",
		observability.F("pool", d.result.Pool),
		observability.F("acquired", d.result.Acquired),
		observability.F("released", d.result.Released),
		observability.F("exhausted", d.result.Exhausted))
	return d.result, err
}

func (d *driver) loop(ctx context.Context) error {
	start := time.Now()
	for step := 0; d.opts.Steps <= 0 || step < d.opts.Steps; step++ {
		if err := d.limiter.Wait(ctx); err != nil {
			if d.opts.Steps > 0 {
				return fmt.Errorf("workload %s: %w", d.result.Pool, err)
			}
			// A timed run ends when its deadline passes.
			return nil
		}
		if d.shouldResize(step, start) {
			if err := d.plan.Pool.Resize(d.plan.ResizeTo); err != nil {
				return err
			}
			d.result.Resized = true
		}
		if err := d.step(); err != nil {
			return err
		}
	}
	return nil
}

func (d *driver) shouldResize(step int, start time.Time) bool {
	if !d.plan.Resize || d.result.Resized {
		return false
	}
	if d.opts.Steps > 0 {
		return step >= d.opts.Steps/2
	}
	return time.Since(start) >= d.opts.Duration/2
}

func (d *driver) step() error {
	if len(d.held) > 0 && d.rng.Float64() < d.opts.ReleaseRatio {
		return d.releaseOne()
	}
	e, err := d.plan.Pool.Acquire()
	if errors.Is(err, pool.ErrPoolExhausted) {
		d.result.Exhausted++
		if len(d.held) > 0 {
			return d.releaseOne()
		}
		return nil
	}
	if err != nil {
		return err
	}
	d.held = append(d.held, e)
	d.result.Acquired++
	return nil
}

func (d *driver) releaseOne() error {
	idx := d.rng.Intn(len(d.held))
	e := d.held[idx]
	last := len(d.held) - 1
	d.held[idx] = d.held[last]
	d.held[last] = nil
	d.held = d.held[:last]
	if err := d.plan.Pool.Release(e); err != nil {
		return err
	}
	d.result.Released++
	return nil
}

func (d *driver) drain() error {
	var errs []error
	for len(d.held) > 0 {
		if err := d.releaseOne(); err != nil {
			errs = append(errs, err)
			// releaseOne already dropped the entity from held.
		}
	}
	return errors.Join(errs...)
}
