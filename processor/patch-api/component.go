// Package patchapi provides a NATS request/reply processor that exposes
// patch application, patch computation and projection of linked-data documents.
package patchapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360studio/ldpatch/ldpatch"
	"github.com/c360studio/ldpatch/patch"
	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/google/uuid"
)

// Operation names, also used as subject suffixes and metric labels.
const (
	OperationApply   = "apply"
	OperationDiff    = "diff"
	OperationProject = "project"
)

var operations = []string{OperationApply, OperationDiff, OperationProject}

const (
	componentName        = "patch-api"
	componentDescription = "Request/reply service for applying and computing patches over linked-data documents"
)

// errHandlerPanic marks a request whose handler panicked.
var errHandlerPanic = errors.New("request handler panicked")

// requestHandler serves one decoded operation.
type requestHandler func(ctx context.Context, data []byte) (any, error)

// Component implements the patch-api processor.
type Component struct {
	name       string
	config     Config
	natsClient *natsclient.Client
	patcher    *ldpatch.Patcher
	metrics    *Metrics
	logger     *slog.Logger

	// Lifecycle
	running        bool
	startTime      time.Time
	mu             sync.RWMutex
	cancel         context.CancelFunc
	cancelRequests context.CancelFunc
	subscriptions  []*natsclient.Subscription
	inFlight       atomic.Int64

	// Metrics
	requestsProcessed atomic.Int64
	requestErrors     atomic.Int64
	lastActivityMu    sync.RWMutex
	lastActivity      time.Time
}

// Option configures a Component.
type Option func(*Component)

// WithPatcher sets the patcher that serves requests.
func WithPatcher(p *ldpatch.Patcher) Option {
	return func(c *Component) {
		if p != nil {
			c.patcher = p
		}
	}
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(c *Component) {
		if m != nil {
			c.metrics = m
		}
	}
}

// NewComponent creates a patch-api processor from its raw JSON config.
func NewComponent(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	var config Config
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &config); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}
	return New(config, deps)
}

// New creates a patch-api processor. A nil Ports or zero TimeoutSecs takes
// its default.
func New(config Config, deps component.Dependencies, opts ...Option) (*Component, error) {
	defaults := DefaultConfig()
	if config.Ports == nil {
		config.Ports = defaults.Ports
	}
	if config.TimeoutSecs == 0 {
		config.TimeoutSecs = defaults.TimeoutSecs
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Component{
		name:       componentName,
		config:     config,
		natsClient: deps.NATSClient,
		logger:     deps.GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.patcher == nil {
		c.patcher = ldpatch.New(ldpatch.WithLogger(c.logger))
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(nil)
	}
	return c, nil
}

// Initialize prepares the component.
func (c *Component) Initialize() error {
	c.logger.Debug("Initialized patch-api",
		"apply_subject", c.config.Subject(OperationApply),
		"diff_subject", c.config.Subject(OperationDiff),
		"project_subject", c.config.Subject(OperationProject))
	return nil
}

// Start subscribes to the request subjects.
func (c *Component) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("component already running")
	}
	if c.natsClient == nil {
		c.mu.Unlock()
		return fmt.Errorf("NATS client required")
	}

	c.running = true
	c.startTime = time.Now()

	// Subscriptions end when Stop begins; requests run until Stop has
	// waited for them.
	reqCtx, cancelRequests := context.WithCancel(ctx)
	subCtx, cancel := context.WithCancel(reqCtx)
	c.cancel = cancel
	c.cancelRequests = cancelRequests
	c.mu.Unlock()

	handlers := map[string]requestHandler{
		OperationApply:   c.handleApply,
		OperationDiff:    c.handleDiff,
		OperationProject: c.handleProject,
	}

	subs := make([]*natsclient.Subscription, 0, len(operations))
	for _, operation := range operations {
		subject := c.config.Subject(operation)
		sub, err := c.natsClient.SubscribeForRequests(subCtx, subject, c.handler(reqCtx, operation, handlers[operation]))
		if err != nil {
			c.mu.Lock()
			c.running = false
			c.cancel = nil
			c.cancelRequests = nil
			c.mu.Unlock()
			cancel()
			cancelRequests()
			return fmt.Errorf("subscribe to %s: %w", subject, err)
		}
		subs = append(subs, sub)
	}

	c.mu.Lock()
	c.subscriptions = subs
	c.mu.Unlock()

	c.logger.Info("patch-api started",
		"apply_subject", c.config.Subject(OperationApply),
		"diff_subject", c.config.Subject(OperationDiff),
		"project_subject", c.config.Subject(OperationProject))
	return nil
}

// Stop ends the subscriptions and waits up to timeout for in-flight
// requests before cancelling them. The lock is not held while waiting.
func (c *Component) Stop(timeout time.Duration) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	cancel, cancelRequests := c.cancel, c.cancelRequests
	c.cancel = nil
	c.cancelRequests = nil
	c.subscriptions = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	deadline := time.Now().Add(timeout)
	for c.inFlight.Load() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := c.inFlight.Load(); n > 0 {
		c.logger.Warn("Cancelling in-flight requests", "count", n)
	}
	if cancelRequests != nil {
		cancelRequests()
	}

	c.logger.Info("patch-api stopped",
		"requests_processed", c.requestsProcessed.Load(),
		"request_errors", c.requestErrors.Load())
	return nil
}

// Meta returns component metadata.
func (c *Component) Meta() component.Metadata {
	return component.Metadata{
		Name:        componentName,
		Type:        "processor",
		Description: componentDescription,
		Version:     "1.0.0",
	}
}

// InputPorts returns the request ports.
func (c *Component) InputPorts() []component.Port {
	if c.config.Ports == nil {
		return []component.Port{}
	}

	ports := make([]component.Port, len(c.config.Ports.Inputs))
	for i, portDef := range c.config.Ports.Inputs {
		ports[i] = component.Port{
			Name:        portDef.Name,
			Direction:   component.DirectionInput,
			Required:    portDef.Required,
			Description: portDef.Description,
			Config: component.NATSPort{
				Subject: portDef.Subject,
			},
		}
	}
	return ports
}

// OutputPorts returns no ports: every result is sent as a reply.
func (c *Component) OutputPorts() []component.Port {
	return []component.Port{}
}

// ConfigSchema returns the configuration schema.
func (c *Component) ConfigSchema() component.ConfigSchema {
	return patchAPISchema
}

// Health returns the current health status.
func (c *Component) Health() component.HealthStatus {
	c.mu.RLock()
	running := c.running
	startTime := c.startTime
	c.mu.RUnlock()

	status := "stopped"
	var uptime time.Duration
	if running {
		status = "running"
		uptime = time.Since(startTime)
	}

	return component.HealthStatus{
		Healthy:    running,
		LastCheck:  time.Now(),
		ErrorCount: int(c.requestErrors.Load()),
		Uptime:     uptime,
		Status:     status,
	}
}

// DataFlow returns current data flow metrics.
func (c *Component) DataFlow() component.FlowMetrics {
	return component.FlowMetrics{
		LastActivity: c.getLastActivity(),
	}
}

// handler adapts handle to a request/reply subscription. Every request gets
// a Response; a panicking handler is reported as an internal error.
func (c *Component) handler(reqCtx context.Context, operation string, handle requestHandler) func(context.Context, []byte) ([]byte, error) {
	return func(_ context.Context, data []byte) ([]byte, error) {
		c.inFlight.Add(1)
		defer c.inFlight.Add(-1)

		resp := c.serve(reqCtx, operation, handle, data)
		out, err := json.Marshal(resp)
		if err != nil {
			c.logger.Warn("Failed to marshal response",
				"operation", operation,
				"request_id", resp.RequestID,
				"error", err)
			return json.Marshal(Response{
				RequestID: resp.RequestID,
				Error:     &ErrorInfo{Kind: kindInternal, Message: "encode response: " + err.Error()},
			})
		}
		return out, nil
	}
}

func (c *Component) serve(ctx context.Context, operation string, handle requestHandler, data []byte) Response {
	start := time.Now()
	requestID := uuid.New().String()
	c.updateLastActivity()

	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout())
	defer cancel()

	resp := Response{RequestID: requestID}
	result, err := c.invoke(ctx, handle, data)
	status := "ok"
	if err != nil {
		status = "error"
		resp.Error = errorInfo(err)
		c.requestErrors.Add(1)
		c.logger.Warn("Patch request failed",
			"operation", operation,
			"request_id", requestID,
			"kind", resp.Error.Kind,
			"error", err)
	} else {
		resp.Result = result
	}
	c.requestsProcessed.Add(1)
	c.metrics.observe(operation, status, time.Since(start).Seconds())
	return resp
}

// invoke runs handle, turning a panic into an error.
func (c *Component) invoke(ctx context.Context, handle requestHandler, data []byte) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Patch request handler panicked",
				"panic", r,
				"stack", string(debug.Stack()))
			result = nil
			err = fmt.Errorf("%w: %v", errHandlerPanic, r)
		}
	}()
	return handle(ctx, data)
}

func (c *Component) handleApply(ctx context.Context, data []byte) (any, error) {
	var req ApplyRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, &decodeError{err: err}
	}
	return c.patcher.ApplyPatch(ctx, ldpatch.ApplyRequest{
		Document:     req.Document,
		Patch:        req.Patch,
		ShapeOptions: req.shapeOptions(c.config.Defaults),
	})
}

func (c *Component) handleDiff(ctx context.Context, data []byte) (any, error) {
	var req DiffRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, &decodeError{err: err}
	}
	p, err := c.patcher.Diff(ctx, req.DocumentA, req.DocumentB, req.shapeOptions(c.config.Defaults))
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = patch.Patch{}
	}
	return p, nil
}

func (c *Component) handleProject(ctx context.Context, data []byte) (any, error) {
	var req ProjectRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, &decodeError{err: err}
	}
	return c.patcher.Project(ctx, req.Document, req.shapeOptions(c.config.Defaults))
}

func (c *Component) updateLastActivity() {
	c.lastActivityMu.Lock()
	c.lastActivity = time.Now()
	c.lastActivityMu.Unlock()
}

func (c *Component) getLastActivity() time.Time {
	c.lastActivityMu.RLock()
	defer c.lastActivityMu.RUnlock()
	return c.lastActivity
}
