package toolserver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"verity/internal/logging"

	"golang.org/x/sync/errgroup"
)

// Registry owns the named tool-server fleet: configs, at most one live
// connection per name, and the per-server invoke limiters. Fleet-wide
// operations run concurrently and settle: every sub-operation finishes
// regardless of its siblings' failures.
type Registry struct {
	logger  *slog.Logger
	factory TransportFactory
	limiter *invokeLimiter

	mu      sync.RWMutex
	configs map[string]Config
	conns   map[string]*Connection
	locks   map[string]*sync.Mutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  logging.New("registry"),
		factory: commandTransport,
		limiter: newInvokeLimiter(),
		configs: make(map[string]Config),
		conns:   make(map[string]*Connection),
		locks:   make(map[string]*sync.Mutex),
	}
}

// SetTransportFactory overrides subprocess spawning for every connection the
// registry creates. Tests use it to run servers over in-memory transports.
func (r *Registry) SetTransportFactory(f TransportFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factory = f
}

// AddServerConfig registers or replaces a server config by name. It does not
// connect; an existing live connection for the name keeps running until the
// next ConnectOne/Reconnect.
func (r *Registry) AddServerConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.Name] = cfg
	r.limiter.drop(cfg.Name)
	return nil
}

// nameLock returns the per-name mutex serializing connect/close cycles.
func (r *Registry) nameLock(name string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[name]
	if !ok {
		l = &sync.Mutex{}
		r.locks[name] = l
	}
	return l
}

// ConnectAll connects every registered config concurrently. Each failure is
// logged per name and never aborts the others; the returned counts expose
// how much of the fleet came up. Callers must tolerate a partial fleet.
func (r *Registry) ConnectAll(ctx context.Context) (connected, total int) {
	names := r.ListConfigured()
	total = len(names)
	if total == 0 {
		return 0, 0
	}

	results := make([]bool, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			if err := r.ConnectOne(gctx, name); err != nil {
				r.logger.Error("connect failed", "server", name, "error", err)
				return nil
			}
			results[i] = true
			return nil
		})
	}
	_ = g.Wait() // failures captured per name

	for _, ok := range results {
		if ok {
			connected++
		}
	}
	r.logger.Info("fleet connected", "connected", connected, "total", total)
	return connected, total
}

// ConnectOne closes any existing connection for the name and connects fresh.
func (r *Registry) ConnectOne(ctx context.Context, name string) error {
	lock := r.nameLock(name)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	cfg, ok := r.configs[name]
	existing := r.conns[name]
	delete(r.conns, name)
	factory := r.factory
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownServer, name)
	}
	if existing != nil {
		if err := existing.Close(); err != nil {
			r.logger.Warn("close before connect", "server", name, "error", err)
		}
	}

	conn := NewConnection(cfg)
	conn.factory = factory
	if err := conn.Connect(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	r.conns[name] = conn
	r.mu.Unlock()
	return nil
}

// Reconnect is ConnectOne after a close-and-cooldown cycle on the existing
// connection; with no live connection it degenerates to ConnectOne.
func (r *Registry) Reconnect(ctx context.Context, name string) error {
	return r.ConnectOne(ctx, name)
}

// Invoke routes a tool call to the named server's live connection, passing
// the per-server rate gate first.
func (r *Registry) Invoke(ctx context.Context, name, tool string, args map[string]any) (*Result, error) {
	r.mu.RLock()
	cfg, configured := r.configs[name]
	conn := r.conns[name]
	r.mu.RUnlock()

	if !configured {
		return nil, fmt.Errorf("%w: %s", ErrUnknownServer, name)
	}
	if conn == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotConnected, name)
	}
	if err := r.limiter.wait(ctx, cfg); err != nil {
		return nil, fmt.Errorf("rate gate %s: %w", name, err)
	}
	return conn.Invoke(ctx, tool, args)
}

// HealthCheckAll pings every live connection concurrently and reports a
// liveness boolean for every configured server; names without a live
// connection report false. Individual ping failures never error.
func (r *Registry) HealthCheckAll(ctx context.Context) map[string]bool {
	r.mu.RLock()
	conns := make(map[string]*Connection, len(r.conns))
	names := make([]string, 0, len(r.configs))
	for name := range r.configs {
		names = append(names, name)
		if conn := r.conns[name]; conn != nil {
			conns[name] = conn
		}
	}
	r.mu.RUnlock()

	health := make(map[string]bool, len(names))
	var healthMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		conn := conns[name]
		g.Go(func() error {
			alive := conn != nil && conn.Ping(gctx)
			healthMu.Lock()
			health[name] = alive
			healthMu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // ping failures captured in the map

	return health
}

// CloseAll closes every live connection concurrently, best-effort. Close
// errors are logged, never propagated.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[string]*Connection)
	r.mu.Unlock()

	var g errgroup.Group
	for name, conn := range conns {
		g.Go(func() error {
			if err := conn.Close(); err != nil {
				r.logger.Warn("close failed", "server", name, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait() // close errors logged above
}

// ListConnected returns the names with a connection currently in the
// Connected state, sorted.
func (r *Registry) ListConnected() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.conns))
	for name, conn := range r.conns {
		if conn.Connected() {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// ListConfigured returns every registered server name, sorted.
func (r *Registry) ListConfigured() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.configs))
	for name := range r.configs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ToolCatalogs returns the cached catalog of every live connection.
func (r *Registry) ToolCatalogs() map[string][]ToolInfo {
	r.mu.RLock()
	conns := make(map[string]*Connection, len(r.conns))
	for name, conn := range r.conns {
		conns[name] = conn
	}
	r.mu.RUnlock()

	out := make(map[string][]ToolInfo, len(conns))
	for name, conn := range conns {
		out[name] = conn.Catalog()
	}
	return out
}
