package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	configpkg "github.com/drblury/actionflow/internal/runtime/config"
	"github.com/drblury/actionflow/internal/runtime/content"
	s3storage "github.com/drblury/actionflow/internal/runtime/content/s3"
	errspkg "github.com/drblury/actionflow/internal/runtime/errors"
	"github.com/drblury/actionflow/internal/runtime/logging"
	"github.com/drblury/actionflow/internal/runtime/queue"
	"github.com/drblury/actionflow/internal/runtime/queue/brokerqueue"
	"github.com/drblury/actionflow/internal/runtime/queue/redisqueue"
	"github.com/drblury/actionflow/transport"
	_ "github.com/drblury/actionflow/transport/transports"
)

const httpShutdownTimeout = 5 * time.Second

// ServiceDependencies holds optional collaborators. Leave fields nil to let
// the Service build them from Config.
type ServiceDependencies struct {
	// Queue replaces the queue selected by Config.QueueSystem.
	Queue queue.Client
	// Storage replaces the content storage selected by Config.
	Storage content.Storage
	// Transports resolves non-Redis queue systems. Defaults to
	// transport.DefaultRegistry.
	Transports *transport.Registry

	Middlewares               []MiddlewareRegistration // Appended after the default chain.
	DisableDefaultMiddlewares bool                     // Skips the default chain when true.
	Hooks                     JobHooks
	ErrorClassifier           ErrorClassifier
	// Metrics holds the Prometheus collectors. Defaults to collectors on the
	// default registerer.
	Metrics *ActionMetrics

	// ErrorBackOff returns the pause policy a worker applies after a failed
	// iteration. Defaults to a constant Config.ErrorBackoff.
	ErrorBackOff func() backoff.BackOff
	// Registrar replaces the HTTP registration with the orchestrator core.
	Registrar *Registrar
}

// Service hosts a plugin's actions: one worker per action, a heartbeat
// monitor and the optional metrics and web UI endpoints.
//
// A response is lost when it cannot be encoded or published: the failure is
// logged, the worker backs off and the work item is not retried.
type Service struct {
	Conf   *configpkg.Config
	Logger logging.ServiceLogger

	queue   queue.Client
	storage content.Storage
	actions *Registry
	active  *ActiveExecutions

	middlewares   []Middleware
	middlewaresMu sync.Mutex

	infos   []*ActionInfo
	infosMu sync.RWMutex

	httpServers   map[int]*http.ServeMux
	httpServersMu sync.Mutex
	servers       []*http.Server

	registrar       *Registrar
	errorBackOff    func() backoff.BackOff
	errorClassifier ErrorClassifier
	resourceTracker *resourceTracker
	actionMetrics   *ActionMetrics

	lifecycleMu sync.Mutex
	started     bool
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewService builds a Service from conf. Register actions on the returned
// Service before calling Start.
func NewService(conf *configpkg.Config, log logging.ServiceLogger, ctx context.Context, deps ServiceDependencies) (*Service, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	conf.ApplyDefaults()
	if err := configpkg.ValidateConfig(conf); err != nil {
		return nil, errspkg.NewConfigValidationError(err)
	}

	log.Info("Creating action service", logging.LogFields{
		"queue_system": conf.QueueSystem,
		"config":       conf,
	})

	s := &Service{
		Conf:            conf,
		Logger:          log,
		actions:         NewRegistry(),
		active:          NewActiveExecutions(),
		resourceTracker: newResourceTracker(),
		errorClassifier: deps.ErrorClassifier,
		actionMetrics:   deps.Metrics,
		errorBackOff:    deps.ErrorBackOff,
		registrar:       deps.Registrar,
	}
	if s.errorClassifier == nil {
		s.errorClassifier = defaultErrorClassifier
	}
	if s.errorBackOff == nil {
		interval := conf.ErrorBackoff
		s.errorBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(interval) }
	}
	if s.registrar == nil && conf.CoreURL != "" {
		s.registrar = &Registrar{
			CoreURL: conf.CoreURL,
			Client:  &http.Client{Timeout: conf.RegistrationTimeout},
			Logger:  log,
		}
	}

	storage, err := newStorage(ctx, conf, log, deps.Storage)
	if err != nil {
		return nil, err
	}
	s.storage = storage

	q, err := newQueue(ctx, conf, log, deps)
	if err != nil {
		return nil, err
	}
	s.queue = q

	if err := s.registerConfiguredMiddlewares(deps); err != nil {
		_ = q.Close()
		return nil, err
	}
	return s, nil
}

func newStorage(ctx context.Context, conf *configpkg.Config, log logging.ServiceLogger, provided content.Storage) (content.Storage, error) {
	if provided != nil {
		return provided, nil
	}
	if conf.StorageBucket == "" {
		log.Info("No storage bucket configured, keeping content in memory", nil)
		return content.NewMemoryStorage(), nil
	}
	st, err := s3storage.New(ctx, s3storage.Config{
		Bucket:    conf.StorageBucket,
		Region:    conf.StorageRegion,
		Endpoint:  conf.StorageURL,
		AccessKey: conf.StorageAccessKey,
		SecretKey: conf.StorageSecretKey,
	})
	if err != nil {
		return nil, fmt.Errorf("content storage: %w", err)
	}
	return st, nil
}

func newQueue(ctx context.Context, conf *configpkg.Config, log logging.ServiceLogger, deps ServiceDependencies) (queue.Client, error) {
	if deps.Queue != nil {
		return deps.Queue, nil
	}
	if conf.QueueSystem == configpkg.QueueSystemRedis {
		return redisqueue.New(redisqueue.Options{
			URL:         conf.RedisURL,
			Password:    conf.RedisPassword,
			DB:          conf.RedisDB,
			PollTimeout: conf.QueuePollTimeout,
		})
	}

	registry := deps.Transports
	if registry == nil {
		registry = transport.DefaultRegistry
	}
	tr, err := registry.Build(ctx, conf, logging.NewWatermillAdapter(log))
	if err != nil {
		return nil, err
	}
	caps := registry.GetCapabilities(conf.QueueSystem)
	if provider, ok := tr.Publisher.(transport.CapabilitiesProvider); ok {
		caps = provider.Capabilities()
	}
	q, err := brokerqueue.New(tr, caps, log)
	if err != nil {
		_ = tr.Close()
		return nil, err
	}
	return q, nil
}

func (s *Service) registerConfiguredMiddlewares(deps ServiceDependencies) error {
	var defaults []MiddlewareRegistration
	if !deps.DisableDefaultMiddlewares {
		defaults = DefaultMiddlewares()
	}
	registrations := make([]MiddlewareRegistration, 0, len(defaults)+len(deps.Middlewares)+1)
	registrations = append(registrations, defaults...)
	if !deps.Hooks.empty() {
		registrations = append(registrations, JobHooksMiddleware(deps.Hooks))
	}
	registrations = append(registrations, deps.Middlewares...)

	for _, reg := range registrations {
		if err := s.RegisterMiddleware(reg); err != nil {
			name := reg.Name
			if name == "" {
				name = "anonymous_middleware"
			}
			return fmt.Errorf("register middleware %s: %w", name, err)
		}
	}
	return nil
}

// Start registers the plugin with the orchestrator, starts the HTTP endpoints,
// the monitor and one worker per action, and blocks until ctx is cancelled or
// Stop is called. In-flight actions finish before Start returns.
func (s *Service) Start(ctx context.Context) error {
	s.lifecycleMu.Lock()
	if s.started {
		s.lifecycleMu.Unlock()
		return errspkg.ErrAlreadyStarted
	}
	if s.actions.Len() == 0 {
		s.lifecycleMu.Unlock()
		return errspkg.ErrActionRequired
	}
	s.started = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.lifecycleMu.Unlock()
	defer close(s.done)
	defer cancel()

	if err := s.register(runCtx); err != nil {
		_ = s.queue.Close()
		return err
	}

	s.StartWebUIServer()
	s.startHTTPServers()

	executor := s.newExecutor()
	var wg sync.WaitGroup
	actions := s.actions.Actions()
	topics := make([]string, 0, len(actions))
	for _, a := range actions {
		topic := a.Descriptor().Name
		topics = append(topics, topic)
		w := &worker{
			action:   a,
			topic:    topic,
			queue:    s.queue,
			executor: executor,
			storage:  s.storage,
			hostname: s.Conf.Hostname,
			version:  s.Conf.PluginVersion,
			backoff:  s.errorBackOff(),
			logger:   s.Logger.With(logging.LogFields{"action": topic}),
			now:      time.Now,
		}
		wg.Go(func() { w.run(runCtx) })
	}

	m := &monitor{
		queue:     s.queue,
		active:    s.active,
		topics:    topics,
		interval:  s.Conf.HeartbeatInterval,
		threshold: s.Conf.LongRunningThreshold,
		logger:    s.Logger.With(logging.LogFields{"component": "monitor"}),
		now:       time.Now,
	}
	wg.Go(func() { m.run(runCtx) })

	s.Logger.Info("Action service started", logging.LogFields{"actions": topics})
	<-runCtx.Done()
	wg.Wait()

	s.stopHTTPServers()
	if err := s.queue.Close(); err != nil {
		s.Logger.Error("Closing queue failed", err, nil)
	}
	s.Logger.Info("Action service stopped", nil)
	return nil
}

// Stop cancels the workers and waits for in-flight actions to finish. It is a
// no-op before Start.
func (s *Service) Stop() {
	s.lifecycleMu.Lock()
	cancel, done := s.cancel, s.done
	s.lifecycleMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Service) register(ctx context.Context) error {
	if s.registrar == nil {
		s.Logger.Info("No core URL configured, skipping plugin registration", nil)
		return nil
	}
	manifest, err := BuildManifest(s.Conf, s.actions.Descriptors(), s.Logger)
	if err != nil {
		return err
	}
	return s.registrar.Register(ctx, manifest)
}

func (s *Service) newExecutor() *Executor {
	s.middlewaresMu.Lock()
	mws := append([]Middleware(nil), s.middlewares...)
	s.middlewaresMu.Unlock()
	return NewExecutor(ExecutorOptions{Middlewares: mws, Active: s.active})
}

// Actions returns the registered action registry.
func (s *Service) Actions() *Registry { return s.actions }

// Active returns the table of running executions.
func (s *Service) Active() *ActiveExecutions { return s.active }

// Storage returns the content storage actions read and write through.
func (s *Service) Storage() content.Storage { return s.storage }

func (s *Service) getErrorClassifier() ErrorClassifier {
	if s.errorClassifier == nil {
		return defaultErrorClassifier
	}
	return s.errorClassifier
}

func (s *Service) getResourceTracker() *resourceTracker {
	if s.resourceTracker == nil {
		s.resourceTracker = newResourceTracker()
	}
	return s.resourceTracker
}

func (s *Service) getActionMetrics() *ActionMetrics {
	if s.actionMetrics == nil {
		s.actionMetrics = NewActionMetrics(nil)
	}
	return s.actionMetrics
}

// RegisterHTTPHandler mounts handler on the server listening on port. Servers
// start with Start.
func (s *Service) RegisterHTTPHandler(port int, pattern string, handler http.Handler) {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	if s.httpServers == nil {
		s.httpServers = make(map[int]*http.ServeMux)
	}

	mux, ok := s.httpServers[port]
	if !ok {
		mux = http.NewServeMux()
		s.httpServers[port] = mux
	}

	mux.Handle(pattern, handler)
}

func (s *Service) startHTTPServers() {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	for port, mux := range s.httpServers {
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		s.servers = append(s.servers, srv)
		s.Logger.Info("Starting HTTP server", logging.LogFields{"address": srv.Addr})
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.Logger.Error("HTTP server failed", err, logging.LogFields{"address": srv.Addr})
			}
		}()
	}
}

func (s *Service) stopHTTPServers() {
	s.httpServersMu.Lock()
	servers := s.servers
	s.servers = nil
	s.httpServersMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			s.Logger.Error("HTTP server shutdown failed", err, logging.LogFields{"address": srv.Addr})
		}
	}
}
