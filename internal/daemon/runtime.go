package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/leefowlercu/flapboard/internal/automation"
	"github.com/leefowlercu/flapboard/internal/board"
	"github.com/leefowlercu/flapboard/internal/breaker"
	"github.com/leefowlercu/flapboard/internal/config"
	"github.com/leefowlercu/flapboard/internal/datasource"
	"github.com/leefowlercu/flapboard/internal/events"
	"github.com/leefowlercu/flapboard/internal/feeds"
	"github.com/leefowlercu/flapboard/internal/frame"
	"github.com/leefowlercu/flapboard/internal/generators"
	"github.com/leefowlercu/flapboard/internal/logging"
	"github.com/leefowlercu/flapboard/internal/orchestrator"
	"github.com/leefowlercu/flapboard/internal/prompts"
	"github.com/leefowlercu/flapboard/internal/providers"
	"github.com/leefowlercu/flapboard/internal/scheduler"
	"github.com/leefowlercu/flapboard/internal/storage"
	"github.com/leefowlercu/flapboard/internal/transport"
	"github.com/leefowlercu/flapboard/internal/triggers"
)

// Runtime assembles and runs every pipeline component from configuration.
type Runtime struct {
	cfg  *config.Config
	log  *slog.Logger
	tlog *logging.ThrottledLogger

	daemon    *Daemon
	bus       *events.EventBus
	store     *storage.Storage
	breakers  *breaker.Service
	orch      *orchestrator.Orchestrator
	sched     *scheduler.Scheduler
	loader    *triggers.Loader
	busClient *automation.Client
	handler   *automation.Handler
}

// NewRuntime creates a runtime for the given configuration.
func NewRuntime(cfg *config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg: cfg,
		log: logger,
		tlog: logging.NewThrottledLogger(logger,
			logging.WithWindow(cfg.Throttle.Window()),
			logging.WithMaxEntries(cfg.Throttle.MaxEntries)),
	}
}

// Run builds the component graph, starts everything, and blocks until the
// context is cancelled. All components are torn down before it returns.
func (r *Runtime) Run(ctx context.Context) error {
	r.daemon = New(Config{
		HTTPPort:        r.cfg.Daemon.HTTPPort,
		HTTPBind:        r.cfg.Daemon.HTTPBind,
		ShutdownTimeout: r.cfg.Daemon.ShutdownTimeout(),
		PIDFile:         config.ExpandPath(r.cfg.Daemon.PIDFile),
	}, r.log)

	if err := r.build(ctx); err != nil {
		return err
	}
	defer r.teardown()

	r.sched.Start(ctx)
	defer r.sched.Stop()

	if r.loader != nil {
		if err := r.loader.StartWatching(ctx); err != nil {
			r.log.Warn("trigger config watch unavailable", "error", err)
			r.daemon.Health().SetDegraded("triggers", err)
		}
		defer r.loader.StopWatching()
	}

	if r.busClient != nil {
		go r.connectAutomation(ctx)
		defer r.busClient.Disconnect()
		defer r.handler.Stop()
	}

	return r.daemon.Start(ctx)
}

// build constructs the component graph bottom-up. Construction failures are
// fatal; the daemon refuses to start half-wired.
func (r *Runtime) build(ctx context.Context) error {
	health := r.daemon.Health()

	r.bus = events.NewBus(
		events.WithBufferSize(r.cfg.Daemon.EventBusBufferSize),
		events.WithLogger(r.log))

	store, err := storage.Open(ctx, config.ExpandPath(r.cfg.Storage.Path))
	if err != nil {
		return fmt.Errorf("failed to open storage; %w", err)
	}
	r.store = store
	health.SetHealthy("storage")

	r.breakers = breaker.NewService(store,
		breaker.WithLogger(r.log),
		breaker.WithThrottledLogger(r.tlog))
	r.initCircuits(ctx)

	registry := providers.NewRegistry()
	httpClient := &http.Client{Timeout: time.Duration(r.cfg.Providers.TimeoutSeconds) * time.Second}
	rpm := r.cfg.Providers.RateLimitPerMinute
	for _, name := range r.cfg.Providers.Available {
		// ValidateConnection probes with the cheapest model the operator
		// actually routes to.
		lightModel := r.cfg.Providers.Tiers[name].Light
		switch name {
		case "anthropic":
			registry.Register(providers.NewAnthropicProvider(
				providers.WithAnthropicHTTPClient(httpClient),
				providers.WithAnthropicRateLimit(rpm),
				providers.WithAnthropicValidateModel(lightModel)))
		case "openai":
			registry.Register(providers.NewOpenAIProvider(
				providers.WithOpenAIHTTPClient(httpClient),
				providers.WithOpenAIRateLimit(rpm),
				providers.WithOpenAIValidateModel(lightModel)))
		case "gemini":
			registry.Register(providers.NewGeminiProvider(
				providers.WithGeminiHTTPClient(httpClient),
				providers.WithGeminiRateLimit(rpm),
				providers.WithGeminiValidateModel(lightModel)))
		default:
			return fmt.Errorf("unknown provider %q in providers.available", name)
		}
	}

	tiers, err := providers.NewTierSelector(r.cfg.Providers)
	if err != nil {
		return fmt.Errorf("invalid provider tier configuration; %w", err)
	}
	invoker := providers.NewInvoker(registry, tiers, r.breakers,
		providers.WithInvokerLogger(r.log))

	promptLoader := prompts.NewLoader(config.ExpandPath(r.cfg.Content.PromptsDir))

	variant := board.Variant(r.cfg.Display.Variant)
	decorator := frame.NewDecorator(variant)

	display := transport.NewHTTPDisplay(r.cfg.Display.BaseURL,
		transport.WithDisplayAPIKeyEnv(r.cfg.Display.APIKeyEnv),
		transport.WithDisplayTimeout(time.Duration(r.cfg.Display.TimeoutSeconds)*time.Second))
	if err := display.ValidateConnection(ctx); err != nil {
		r.log.Warn("display not reachable at startup", "error", err)
		health.SetDegraded("display", err)
	} else {
		health.SetHealthy("display")
	}

	genRegistry, err := r.registerGenerators(invoker, promptLoader)
	if err != nil {
		return err
	}

	history := generators.NewHistory()
	selector := generators.NewSelector(genRegistry, history, r.breakers,
		generators.WithSelectorLogger(r.log))

	weather := datasource.NewOpenMeteoService(
		r.cfg.Weather.Latitude, r.cfg.Weather.Longitude,
		datasource.WithWeatherUnits(r.cfg.Weather.Units),
		datasource.WithWeatherHTTPClient(&http.Client{
			Timeout: time.Duration(r.cfg.Weather.TimeoutSeconds) * time.Second,
		}))
	data := datasource.NewProvider(weather, datasource.NewPaletteService(),
		datasource.WithProviderLogger(r.log))

	retry := orchestrator.NewRetryEngine(r.cfg.Retry.MaxAttempts, r.log)
	r.orch = orchestrator.New(r.breakers, data, selector, retry, decorator, display,
		genRegistry, history,
		orchestrator.WithAuditStore(store),
		orchestrator.WithEventBus(r.bus),
		orchestrator.WithLogger(r.log),
		orchestrator.WithThrottledLogger(r.tlog))

	r.daemon.Server().SetRefreshFunc(func(ctx context.Context) error {
		return r.orch.GenerateAndSend(ctx, generators.GenerationContext{
			UpdateType:  generators.UpdateMajor,
			Timestamp:   time.Now(),
			Personality: r.cfg.Content.Personality,
		})
	})

	r.sched = scheduler.New(func(ctx context.Context, at time.Time) error {
		return r.orch.GenerateAndSend(ctx, generators.GenerationContext{
			UpdateType:  generators.UpdateMinor,
			Timestamp:   at,
			Personality: r.cfg.Content.Personality,
		})
	}, scheduler.WithLogger(r.log), scheduler.WithThrottledLogger(r.tlog))

	triggersPath := config.ExpandPath(r.cfg.Triggers.Path)
	if _, statErr := os.Stat(triggersPath); statErr == nil {
		loader, err := triggers.NewLoader(triggersPath,
			triggers.WithLoaderLogger(r.log),
			triggers.WithLoaderBus(r.bus))
		if err != nil {
			return fmt.Errorf("failed to load trigger config; %w", err)
		}
		r.loader = loader
		health.SetHealthy("triggers")
	} else {
		r.log.Info("no trigger config found, entity triggers disabled", "path", triggersPath)
	}

	if r.cfg.Automation.URL != "" {
		r.busClient = automation.NewClient(r.cfg.Automation,
			automation.WithClientLogger(r.log),
			automation.WithClientEventBus(r.bus))
		r.handler = automation.NewHandler(r.busClient, r.orch, r.breakers, r.triggerSource(),
			automation.WithHandlerLogger(r.log),
			automation.WithHandlerThrottledLogger(r.tlog),
			automation.WithHandlerEventBus(r.bus),
			automation.WithHandlerPersonality(r.cfg.Content.Personality))
		r.watchBusHealth()
	} else {
		r.log.Info("no automation bus configured, event triggers disabled")
	}

	return nil
}

// initCircuits seeds the persistent breakers. Existing rows keep their state.
func (r *Runtime) initCircuits(ctx context.Context) {
	r.breakers.InitializeCircuit(ctx, breaker.CircuitDef{
		CircuitID:    breaker.CircuitMaster,
		CircuitType:  breaker.TypeManual,
		DefaultState: breaker.StateOn,
	})
	r.breakers.InitializeCircuit(ctx, breaker.CircuitDef{
		CircuitID:    breaker.CircuitSleepMode,
		CircuitType:  breaker.TypeManual,
		DefaultState: breaker.StateOn,
	})
	for _, name := range r.cfg.Providers.Available {
		r.breakers.InitializeCircuit(ctx, breaker.CircuitDef{
			CircuitID:    breaker.ProviderCircuitID(name),
			CircuitType:  breaker.TypeProvider,
			DefaultState: breaker.StateOn,
		})
	}
}

// registerGenerators builds the generator lineup. Generators whose
// dependencies are not configured are skipped with a log line rather than
// failing startup; the static fallback is mandatory.
func (r *Runtime) registerGenerators(invoker *providers.Invoker, promptLoader *prompts.Loader) (*generators.Registry, error) {
	registry := generators.NewRegistry()

	register := func(reg generators.Registration) error {
		if err := registry.Register(reg); err != nil {
			r.log.Warn("generator not registered", "generator", reg.ID, "error", err)
			return err
		}
		return nil
	}

	_ = register(generators.Registration{
		ID:           "doorbell",
		Name:         "Doorbell Banner",
		Priority:     generators.P0,
		EventPattern: "doorbell*",
		Generator:    generators.NewDoorbellGenerator(),
	})

	_ = register(generators.Registration{
		ID:          "bedtime",
		Name:        "Bedtime Wind-Down",
		Priority:    generators.P1,
		Tier:        providers.TierLight,
		ApplyFrame:  true,
		GateCircuit: breaker.CircuitSleepMode,
		Window:      &generators.TimeWindow{StartHour: 21, EndHour: 23},
		Generator:   generators.NewBedtimeGenerator(invoker, promptLoader),
	})

	_ = register(generators.Registration{
		ID:         "hottake",
		Name:       "Hot Take",
		Priority:   generators.P2,
		Tier:       providers.TierMedium,
		ApplyFrame: true,
		Generator:  generators.NewHotTakeGenerator(invoker, promptLoader),
	})

	if len(r.cfg.Feeds.URLs) > 0 {
		rss := feeds.NewRSSClient(feeds.WithRSSTimeout(
			time.Duration(r.cfg.Feeds.TimeoutSeconds) * time.Second))
		_ = register(generators.Registration{
			ID:         "headlines",
			Name:       "Headline Digest",
			Priority:   generators.P2,
			Tier:       providers.TierMedium,
			ApplyFrame: true,
			Generator:  generators.NewHeadlinesGenerator(invoker, promptLoader, rss, r.cfg.Feeds.URLs, r.cfg.Feeds.Limit),
		})
	}

	wiki := feeds.NewWikipediaClient()
	_ = register(generators.Registration{
		ID:         "wikifact",
		Name:       "Wiki Fact",
		Priority:   generators.P2,
		Tier:       providers.TierLight,
		ApplyFrame: true,
		Generator:  generators.NewWikiFactGenerator(invoker, promptLoader, wiki),
	})

	if err := register(generators.Registration{
		ID:         "static",
		Name:       "Static Fallback",
		Priority:   generators.P3,
		ApplyFrame: true,
		Generator:  generators.NewStaticGenerator(config.ExpandPath(r.cfg.Content.FallbackDir)),
	}); err != nil {
		return nil, fmt.Errorf("static fallback generator is required; %w", err)
	}

	return registry, nil
}

// triggerSource adapts the optional loader into the handler's snapshot
// surface. Without a trigger config the handler sees an empty set.
func (r *Runtime) triggerSource() automation.TriggerSource {
	if r.loader != nil {
		return r.loader
	}
	return emptyTriggers{}
}

type emptyTriggers struct{}

func (emptyTriggers) Snapshot() *triggers.Config { return &triggers.Config{} }

// connectAutomation connects the bus client, retrying until it succeeds or
// the daemon stops. The handler attaches once connected; the client's own
// reconnect loop takes over from there.
func (r *Runtime) connectAutomation(ctx context.Context) {
	health := r.daemon.Health()
	backoff := time.Second

	for {
		err := r.busClient.Connect(ctx)
		if err == nil {
			break
		}
		health.SetFailed("automation", err)
		r.tlog.Warn("automation.connect", "automation bus connect failed, will retry",
			"backoff", backoff, "error", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if max := time.Duration(r.cfg.Automation.ReconnectMaxSeconds) * time.Second; max > 0 && backoff > max {
			backoff = max
		}
	}

	if err := r.handler.Start(ctx); err != nil {
		r.log.Error("failed to start automation event handler", "error", err)
		health.SetFailed("automation", err)
		return
	}
	health.SetHealthy("automation")
}

// watchBusHealth mirrors bus connectivity events into component health.
func (r *Runtime) watchBusHealth() {
	health := r.daemon.Health()
	r.bus.Subscribe(events.BusDisconnected, func(events.Event) {
		health.SetDegraded("automation", fmt.Errorf("bus disconnected"))
	})
	r.bus.Subscribe(events.BusReconnected, func(events.Event) {
		health.SetHealthy("automation")
	})
}

// teardown closes long-lived resources in reverse dependency order.
func (r *Runtime) teardown() {
	if r.bus != nil {
		_ = r.bus.Close()
	}
	if r.store != nil {
		_ = r.store.Close()
	}
}

// Orchestrator exposes the wired orchestrator. Used by tests.
func (r *Runtime) Orchestrator() *orchestrator.Orchestrator {
	return r.orch
}
