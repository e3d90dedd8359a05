// Package collector runs the fingerprint sensors and merges their results
// into a single record.
//
// The network sensor runs first and is not guarded: an error from it aborts
// the collection before anything else runs. Five synchronous sensors follow
// in a fixed order, then four asynchronous sensors run concurrently behind a
// join barrier. Failures of critical categories are reported together once
// every sensor has settled.
package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"argus/internal/types"
)

// Sensor is a synchronous, self-guarded sensor.
type Sensor interface {
	Collect() types.Result
}

// AsyncSensor is a self-guarded sensor that may block on host work.
type AsyncSensor interface {
	Collect(ctx context.Context) types.Result
}

// NetworkSensor resolves the network origin. A non-nil error is a transport
// fault and aborts the whole collection.
type NetworkSensor interface {
	Collect(ctx context.Context) (types.Result, error)
}

type SensorFunc func() types.Result

func (f SensorFunc) Collect() types.Result { return f() }

type AsyncSensorFunc func(ctx context.Context) types.Result

func (f AsyncSensorFunc) Collect(ctx context.Context) types.Result { return f(ctx) }

type NetworkSensorFunc func(ctx context.Context) (types.Result, error)

func (f NetworkSensorFunc) Collect(ctx context.Context) (types.Result, error) { return f(ctx) }

// Suite is the set of sensors for one collection. Empty slots are recorded
// as failures.
type Suite struct {
	Network NetworkSensor

	Environment Sensor
	Display     Sensor
	Timezone    Sensor
	Storage     Sensor
	Automation  Sensor

	Canvas   AsyncSensor
	Graphics AsyncSensor
	Audio    AsyncSensor
	Fonts    AsyncSensor
}

// Reporter observes progress. It is called with the step index and category
// before each sensor runs; panics inside it are discarded.
type Reporter func(step int, category types.Category)

// Consumer receives the outcome of Run. Exactly one method is called.
type Consumer interface {
	OnRecord(rec *types.Record)
	OnError(err error)
}

// ConsumerFuncs adapts two functions to Consumer.
type ConsumerFuncs struct {
	Record func(rec *types.Record)
	Error  func(err error)
}

func (c ConsumerFuncs) OnRecord(rec *types.Record) {
	if c.Record != nil {
		c.Record(rec)
	}
}

func (c ConsumerFuncs) OnError(err error) {
	if c.Error != nil {
		c.Error(err)
	}
}

// DefaultCritical is the set of categories whose failure fails the collection.
var DefaultCritical = []types.Category{types.Network, types.CanvasRender, types.GraphicsRender}

type Collector struct {
	critical []types.Category
	reporter Reporter
	now      func() time.Time
	newID    func() string
	obs      Observer
	log      *zap.Logger
}

type Option func(*Collector)

func WithCritical(categories ...types.Category) Option {
	return func(c *Collector) {
		c.critical = append([]types.Category(nil), categories...)
	}
}

func WithReporter(r Reporter) Option {
	return func(c *Collector) { c.reporter = r }
}

func WithClock(now func() time.Time) Option {
	return func(c *Collector) {
		if now != nil {
			c.now = now
		}
	}
}

func WithIDGenerator(gen func() string) Option {
	return func(c *Collector) {
		if gen != nil {
			c.newID = gen
		}
	}
}

func WithObserver(obs Observer) Option {
	return func(c *Collector) {
		if obs != nil {
			c.obs = obs
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Collector) {
		if l != nil {
			c.log = l
		}
	}
}

func New(opts ...Option) *Collector {
	c := &Collector{
		critical: DefaultCritical,
		now:      time.Now,
		newID:    uuid.NewString,
		obs:      NopObserver{},
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type syncStep struct {
	category types.Category
	sensor   Sensor
}

type asyncStep struct {
	category types.Category
	sensor   AsyncSensor
}

// Collect runs the suite and returns the merged record, a *TransportFault
// when the network sensor errors, or a *CriticalCollectionFailure when a
// critical category failed.
func (c *Collector) Collect(ctx context.Context, suite Suite, origin types.Origin) (*types.Record, error) {
	start := c.now()
	results := make(map[types.Category]types.Result, len(types.AllCategories))
	step := 0

	c.progress(step, types.Network)
	step++
	netRes, err := c.runNetwork(ctx, suite.Network)
	if err != nil {
		c.log.Warn("network sensor aborted collection", zap.Error(err))
		c.obs.CollectionFinished(OutcomeTransportFault, c.now().Sub(start))
		return nil, &TransportFault{Err: err}
	}
	c.record(results, types.Network, netRes)

	syncSteps := []syncStep{
		{types.Environment, suite.Environment},
		{types.Display, suite.Display},
		{types.Timezone, suite.Timezone},
		{types.Storage, suite.Storage},
		{types.AutomationSignals, suite.Automation},
	}
	for _, s := range syncSteps {
		c.progress(step, s.category)
		step++
		c.record(results, s.category, runSync(s.sensor))
	}

	asyncSteps := []asyncStep{
		{types.CanvasRender, suite.Canvas},
		{types.GraphicsRender, suite.Graphics},
		{types.AudioRender, suite.Audio},
		{types.Fonts, suite.Fonts},
	}
	asyncResults := make([]types.Result, len(asyncSteps))
	gate := make(chan struct{})
	var wg conc.WaitGroup
	for i, s := range asyncSteps {
		c.progress(step, s.category)
		step++
		wg.Go(func() {
			<-gate
			asyncResults[i] = runAsync(ctx, s.sensor)
		})
	}
	close(gate)
	wg.Wait()
	for i, s := range asyncSteps {
		c.record(results, s.category, asyncResults[i])
	}

	pairDigests(results)

	if reasons := c.criticalFailures(results); len(reasons) > 0 {
		c.log.Warn("critical categories failed", zap.Strings("reasons", reasons))
		c.obs.CollectionFinished(OutcomeCriticalFailure, c.now().Sub(start))
		return nil, &CriticalCollectionFailure{Reasons: reasons}
	}

	rec := &types.Record{
		Results: results,
		Meta: types.Meta{
			CollectionID:  c.newID(),
			CollectedAt:   c.now().UTC(),
			EnvironmentID: origin.EnvironmentID,
			URL:           origin.URL,
			Referrer:      optional(origin.Referrer),
		},
	}
	c.log.Debug("collection finished", zap.String("collection_id", rec.Meta.CollectionID))
	c.obs.CollectionFinished(OutcomeSuccess, c.now().Sub(start))
	return rec, nil
}

// Run collects and hands the outcome to consumer.
func (c *Collector) Run(ctx context.Context, suite Suite, origin types.Origin, consumer Consumer) {
	rec, err := c.Collect(ctx, suite, origin)
	if err != nil {
		consumer.OnError(err)
		return
	}
	consumer.OnRecord(rec)
}

func (c *Collector) record(results map[types.Category]types.Result, category types.Category, res types.Result) {
	results[category] = res
	c.obs.SensorFinished(category, res)
	if f, ok := res.(types.Failure); ok {
		c.log.Debug("sensor failed", zap.String("category", string(category)), zap.String("error", f.Err))
	}
}

func (c *Collector) progress(step int, category types.Category) {
	if c.reporter == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.log.Debug("progress reporter panicked", zap.Int("step", step), zap.Any("panic", r))
		}
	}()
	c.reporter(step, category)
}

func (c *Collector) runNetwork(ctx context.Context, s NetworkSensor) (res types.Result, err error) {
	if s == nil {
		return types.Fail(ErrSensorNotConfigured), nil
	}
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("network sensor panic: %v", r)
		}
	}()
	res, err = s.Collect(ctx)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return types.Failure{Err: "network sensor returned no result"}, nil
	}
	return res, nil
}

func (c *Collector) criticalFailures(results map[types.Category]types.Result) []string {
	var reasons []string
	for _, category := range c.critical {
		if f, ok := results[category].(types.Failure); ok {
			reasons = append(reasons, fmt.Sprintf("%s: %s", category, f.Err))
		}
	}
	return reasons
}

// pairDigests copies the graphics digest onto the canvas result when both
// renders succeeded.
func pairDigests(results map[types.Category]types.Result) {
	canvas, ok := types.AsSuccess(results[types.CanvasRender])
	if !ok {
		return
	}
	graphics, ok := types.AsSuccess(results[types.GraphicsRender])
	if !ok {
		return
	}
	results[types.CanvasRender] = canvas.With(types.FieldPairedDigest, graphics.Fields[types.FieldDigest])
}

func runSync(s Sensor) (res types.Result) {
	if s == nil {
		return types.Fail(ErrSensorNotConfigured)
	}
	defer func() {
		if r := recover(); r != nil {
			res = types.Failure{Err: fmt.Sprint(r)}
		}
	}()
	return orFailure(s.Collect())
}

func runAsync(ctx context.Context, s AsyncSensor) (res types.Result) {
	if s == nil {
		return types.Fail(ErrSensorNotConfigured)
	}
	defer func() {
		if r := recover(); r != nil {
			res = types.Failure{Err: fmt.Sprint(r)}
		}
	}()
	return orFailure(s.Collect(ctx))
}

func orFailure(res types.Result) types.Result {
	if res == nil {
		return types.Failure{Err: "sensor returned no result"}
	}
	return res
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
