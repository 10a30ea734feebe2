package coordinator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/berry-13/bticino-gateway-ha/observability"
	"github.com/berry-13/bticino-gateway-ha/smarther"
)

// Poll interval bounds. Intervals outside the range are clamped.
const (
	DefaultUpdateInterval = 60 * time.Second
	MinUpdateInterval     = 30 * time.Second
	MaxUpdateInterval     = 300 * time.Second
)

// ErrorInfo describes the classified error behind the current availability
// state. It is cleared on the next successful cycle.
type ErrorInfo struct {
	Code    int
	Message string
}

// Snapshot is the cached view of one device produced by a successful poll
// cycle. It is replaced wholesale on each successful cycle and never mutated
// in place.
type Snapshot struct {
	Status    smarther.ChronothermostatStatus
	Measures  smarther.Measures
	PlantID   string
	ModuleID  string
	FetchedAt time.Time
}

// Temperature returns the latest temperature reading, preferring the
// measures payload over the reading embedded in the status.
func (s *Snapshot) Temperature() (float64, bool) {
	return latestValue(s.Measures.Thermometer, s.Status.Thermometer)
}

// Humidity returns the latest humidity reading, preferring the measures
// payload over the reading embedded in the status.
func (s *Snapshot) Humidity() (float64, bool) {
	return latestValue(s.Measures.Hygrometer, s.Status.Hygrometer)
}

// TargetTemperature returns the setpoint value, if known.
func (s *Snapshot) TargetTemperature() (float64, bool) {
	if s.Status.SetPoint == nil {
		return 0, false
	}
	f, err := s.Status.SetPoint.Value.Float64()
	if err != nil {
		return 0, false
	}
	return f, true
}

// HeatingActive reports whether the device is currently driving its load.
func (s *Snapshot) HeatingActive() bool {
	return s.Status.LoadActive()
}

func latestValue(instruments ...*smarther.Instrument) (float64, bool) {
	for _, instrument := range instruments {
		measure, ok := instrument.Latest()
		if !ok {
			continue
		}
		f, err := measure.Value.Float64()
		if err != nil {
			continue
		}
		return f, true
	}
	return 0, false
}

// Config holds the construction parameters of a Coordinator.
type Config struct {
	// API is the Smarther client (required).
	API smarther.API

	// PlantID and ModuleID identify the device (required).
	PlantID  string
	ModuleID string

	// ModuleName is the device display name used in logs.
	ModuleName string

	// UpdateInterval is the automatic poll interval, clamped to
	// [MinUpdateInterval, MaxUpdateInterval]. Zero means the default.
	UpdateInterval time.Duration

	// Logger for observability (optional, uses noop logger if nil).
	Logger observability.Logger

	// OnAuthError is called when a cycle or write fails with an
	// authentication error, so the process can trigger re-authorization.
	// Optional; called from the polling goroutine.
	OnAuthError func(error)
}

// Coordinator owns the polling lifecycle of exactly one device: it refreshes
// on a fixed interval, classifies remote failures into availability state,
// and exposes the last successful snapshot to consumers.
//
// Cycles are serialized: a tick never starts while a previous cycle is still
// in flight, and an immediate refresh requested while one is running
// coalesces into the pending one.
type Coordinator struct {
	api         smarther.API
	plantID     string
	moduleID    string
	moduleName  string
	logger      observability.Logger
	onAuthError func(error)

	mu          sync.RWMutex
	interval    time.Duration
	snapshot    *Snapshot
	available   bool
	lastSuccess bool
	errorInfo   *ErrorInfo

	refreshCh chan struct{}
	started   atomic.Bool
	cancel    context.CancelFunc
	done      chan struct{}

	warnedDefaultFunction atomic.Bool

	now func() time.Time
}

// New creates a coordinator for one device. It does not poll until Start is
// called.
func New(cfg Config) (*Coordinator, error) {
	if cfg.API == nil {
		return nil, errors.New("API client is required")
	}
	if cfg.PlantID == "" || cfg.ModuleID == "" {
		return nil, errors.New("plant ID and module ID are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NoopLogger()
	}
	logger = logger.With(
		observability.Field{Key: "plant_id", Value: cfg.PlantID},
		observability.Field{Key: "module_id", Value: cfg.ModuleID},
		observability.Field{Key: "module_name", Value: cfg.ModuleName},
	)

	return &Coordinator{
		api:         cfg.API,
		plantID:     cfg.PlantID,
		moduleID:    cfg.ModuleID,
		moduleName:  cfg.ModuleName,
		logger:      logger,
		onAuthError: cfg.OnAuthError,
		interval:    ClampInterval(cfg.UpdateInterval),
		available:   true,
		lastSuccess: true,
		refreshCh:   make(chan struct{}, 1),
		done:        make(chan struct{}),
		now:         time.Now,
	}, nil
}

// ClampInterval normalizes a poll interval into the supported range.
// Zero yields the default.
func ClampInterval(interval time.Duration) time.Duration {
	switch {
	case interval == 0:
		return DefaultUpdateInterval
	case interval < MinUpdateInterval:
		return MinUpdateInterval
	case interval > MaxUpdateInterval:
		return MaxUpdateInterval
	default:
		return interval
	}
}

// PlantID returns the device's plant ID.
func (c *Coordinator) PlantID() string { return c.plantID }

// ModuleID returns the device's module ID.
func (c *Coordinator) ModuleID() string { return c.moduleID }

// ModuleName returns the device display name.
func (c *Coordinator) ModuleName() string { return c.moduleName }

// Snapshot returns the last successful snapshot, or nil before the first
// successful cycle. The returned snapshot is immutable.
func (c *Coordinator) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Available reports whether the device is currently reachable.
func (c *Coordinator) Available() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.available
}

// LastUpdateSuccess reports whether the most recent cycle completed.
func (c *Coordinator) LastUpdateSuccess() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSuccess
}

// ErrorInfo returns the error behind the current availability state, or nil
// after a successful cycle.
func (c *Coordinator) ErrorInfo() *ErrorInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.errorInfo == nil {
		return nil
	}
	info := *c.errorInfo
	return &info
}

// UpdateInterval returns the current automatic poll interval.
func (c *Coordinator) UpdateInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.interval
}

// SetUpdateInterval changes the automatic poll interval, clamped to the
// supported range. The new interval takes effect after the next cycle.
func (c *Coordinator) SetUpdateInterval(interval time.Duration) {
	clamped := ClampInterval(interval)
	c.mu.Lock()
	c.interval = clamped
	c.mu.Unlock()
	c.logger.Debug("update interval changed",
		observability.Field{Key: "interval", Value: clamped},
	)
}

// Start launches the polling loop: an immediate first cycle, then one cycle
// per interval tick. It is a no-op if the coordinator is already running.
func (c *Coordinator) Start(ctx context.Context) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	go c.run(runCtx)
}

// Stop cancels the polling loop and waits for any in-flight cycle to
// finish. The last snapshot remains readable after Stop.
func (c *Coordinator) Stop() {
	if !c.started.Load() {
		return
	}
	c.cancel()
	<-c.done
}

// RequestRefresh asks for an immediate out-of-band cycle without disturbing
// the schedule's next automatic tick. Requests made while a cycle is in
// flight coalesce into a single pending refresh.
func (c *Coordinator) RequestRefresh() {
	select {
	case c.refreshCh <- struct{}{}:
	default:
	}
}

func (c *Coordinator) run(ctx context.Context) {
	defer close(c.done)

	c.refresh(ctx)

	ticker := time.NewTicker(c.UpdateInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.refresh(ctx)
		case <-c.refreshCh:
			c.refresh(ctx)
		}
		// Pick up interval changes made while the cycle ran.
		ticker.Reset(c.UpdateInterval())
	}
}

// refresh runs one cycle and routes its failure, keeping the loop alive for
// everything except context cancellation.
func (c *Coordinator) refresh(ctx context.Context) {
	err := c.runCycle(ctx)
	if err == nil {
		return
	}
	if smarther.IsAuth(err) {
		c.logger.Error("authentication failed",
			observability.Field{Key: "error", Value: err.Error()},
		)
		if c.onAuthError != nil {
			c.onAuthError(err)
		}
		return
	}
	c.logger.Warn("update cycle failed",
		observability.Field{Key: "error", Value: err.Error()},
	)
}

// runCycle fetches status and measures concurrently, waits for both
// outcomes, and applies the availability transition rules.
func (c *Coordinator) runCycle(ctx context.Context) error {
	var (
		wg          sync.WaitGroup
		status      *smarther.ChronothermostatStatus
		statusErr   error
		measures    *smarther.Measures
		measuresErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		status, statusErr = c.api.GetChronothermostatStatus(ctx, c.plantID, c.moduleID)
	}()
	go func() {
		defer wg.Done()
		measures, measuresErr = c.api.GetChronothermostatMeasures(ctx, c.plantID, c.moduleID)
	}()
	wg.Wait()

	if statusErr != nil {
		return c.handleStatusError(statusErr)
	}

	if measuresErr != nil {
		if smarther.IsAuth(measuresErr) {
			c.markCycleFailed()
			return measuresErr
		}
		// Measures failures never abort the cycle: continue on status alone.
		c.logger.Warn("measures unavailable, using status data only",
			observability.Field{Key: "error", Value: measuresErr.Error()},
		)
		measures = &smarther.Measures{}
	}
	if measures == nil {
		measures = &smarther.Measures{}
	}

	snapshot := &Snapshot{
		Status:    *status,
		Measures:  *measures,
		PlantID:   c.plantID,
		ModuleID:  c.moduleID,
		FetchedAt: c.now().UTC(),
	}

	c.mu.Lock()
	c.snapshot = snapshot
	c.available = true
	c.errorInfo = nil
	c.lastSuccess = true
	c.mu.Unlock()

	c.logger.Debug("device data updated")
	return nil
}

// handleStatusError applies the transition rules for a failed status fetch.
func (c *Coordinator) handleStatusError(err error) error {
	apiErr, ok := smarther.AsError(err)
	if !ok {
		// Rule of last resort: wrap anything unclassified as a recoverable
		// cycle failure rather than crashing the loop.
		c.markCycleFailed()
		return errors.Wrap(err, "unexpected error fetching status")
	}

	switch apiErr.Kind {
	case smarther.KindAuth:
		c.markCycleFailed()
		return err

	case smarther.KindNotFound:
		// Device offline: degrade without failing the cycle and keep any
		// previous snapshot.
		c.logger.Warn("module not found, marking as unavailable")
		c.mu.Lock()
		c.available = false
		c.errorInfo = &ErrorInfo{Code: apiErr.StatusCode, Message: apiErr.Message}
		c.lastSuccess = true
		c.mu.Unlock()
		return nil

	case smarther.KindVendor:
		// Account-level precondition expired: degraded until the user acts
		// in the official app. Not a cycle failure.
		c.logger.Warn("vendor precondition failed, marking as unavailable",
			observability.Field{Key: "error", Value: apiErr.Message},
		)
		c.mu.Lock()
		c.available = false
		c.errorInfo = &ErrorInfo{Code: apiErr.StatusCode, Message: apiErr.Message}
		c.lastSuccess = true
		c.mu.Unlock()
		return nil

	case smarther.KindTimeout, smarther.KindServer, smarther.KindConnection:
		c.markCycleFailed()
		return errors.Wrap(err, "temporary error fetching status")

	default:
		c.mu.Lock()
		c.errorInfo = &ErrorInfo{Code: apiErr.StatusCode, Message: apiErr.Message}
		c.lastSuccess = false
		c.mu.Unlock()
		return errors.Wrap(err, "error fetching status")
	}
}

func (c *Coordinator) markCycleFailed() {
	c.mu.Lock()
	c.lastSuccess = false
	c.mu.Unlock()
}

// currentFunction returns the device function from the last known status,
// falling back to heating when no status has been fetched yet. The fallback
// can be wrong for cooling-only installations, so its first use is logged.
func (c *Coordinator) currentFunction() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snapshot != nil && c.snapshot.Status.Function != "" {
		return c.snapshot.Status.Function
	}
	if c.warnedDefaultFunction.CompareAndSwap(false, true) {
		c.logger.Warn("no known thermostat function, defaulting to heating")
	}
	return smarther.FunctionHeating
}

// SetTargetTemperature switches the device to manual mode at the given
// setpoint, preserving the current function, then requests an immediate
// refresh. Write errors propagate to the caller untouched.
func (c *Coordinator) SetTargetTemperature(ctx context.Context, temperature float64) error {
	opts := &smarther.SetStatusOptions{
		SetPoint: &smarther.SetPoint{
			Value: smarther.FloatValue(temperature),
			Unit:  smarther.TempUnitCelsius,
		},
	}

	err := c.api.SetChronothermostatStatus(ctx, c.plantID, c.moduleID, c.currentFunction(), smarther.ModeManual, opts)
	if err != nil {
		c.logger.Error("failed to set target temperature",
			observability.Field{Key: "temperature", Value: temperature},
			observability.Field{Key: "error", Value: err.Error()},
		)
		return err
	}

	c.RequestRefresh()
	return nil
}

// SetHvacMode changes the operating mode. Switching to manual mode carries
// the previously known setpoint so the device does not fall back to a stale
// target. The snapshot is not updated until the follow-up refresh confirms
// the new state.
func (c *Coordinator) SetHvacMode(ctx context.Context, mode string) error {
	var opts *smarther.SetStatusOptions
	if mode == smarther.ModeManual {
		c.mu.RLock()
		if c.snapshot != nil && c.snapshot.Status.SetPoint != nil {
			setPoint := *c.snapshot.Status.SetPoint
			opts = &smarther.SetStatusOptions{SetPoint: &setPoint}
		}
		c.mu.RUnlock()
	}

	err := c.api.SetChronothermostatStatus(ctx, c.plantID, c.moduleID, c.currentFunction(), mode, opts)
	if err != nil {
		c.logger.Error("failed to set HVAC mode",
			observability.Field{Key: "mode", Value: mode},
			observability.Field{Key: "error", Value: err.Error()},
		)
		return err
	}

	c.RequestRefresh()
	return nil
}

// SetPresetMode selects a preset. The automatic preset with a program
// number activates that program; any other preset maps directly to a mode.
func (c *Coordinator) SetPresetMode(ctx context.Context, presetMode string, programNumber *int) error {
	var opts *smarther.SetStatusOptions
	if presetMode == smarther.ModeAutomatic && programNumber != nil {
		opts = &smarther.SetStatusOptions{ProgramNumber: programNumber}
	}

	err := c.api.SetChronothermostatStatus(ctx, c.plantID, c.moduleID, c.currentFunction(), presetMode, opts)
	if err != nil {
		c.logger.Error("failed to set preset mode",
			observability.Field{Key: "preset_mode", Value: presetMode},
			observability.Field{Key: "error", Value: err.Error()},
		)
		return err
	}

	c.RequestRefresh()
	return nil
}
