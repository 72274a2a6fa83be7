package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/qdrant/go-client/qdrant"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"manifold/internal/cogcore/actions"
	"manifold/internal/cogcore/airouter"
	"manifold/internal/cogcore/channel"
	"manifold/internal/cogcore/config"
	"manifold/internal/cogcore/contextsearch"
	"manifold/internal/cogcore/event"
	"manifold/internal/cogcore/learn"
	"manifold/internal/cogcore/memory"
	"manifold/internal/cogcore/normalize"
	"manifold/internal/cogcore/orchestrate"
	"manifold/internal/cogcore/plan"
	"manifold/internal/cogcore/prefilter"
	"manifold/internal/cogcore/reason"
	"manifold/internal/cogcore/store"
	internalconfig "manifold/internal/config"
	"manifold/internal/llm"
	"manifold/internal/llm/anthropic"
	"manifold/internal/llm/google"
	openaillm "manifold/internal/llm/openai"
	"manifold/internal/observability"
)

func main() {
	// Load .env (or fallback to example.env) before the logger so
	// COGCORE_LOG_LEVEL is respected, same ordering cmd/agentd uses.
	if err := godotenv.Load(".env"); err != nil {
		_ = godotenv.Load("example.env")
	}

	observability.InitLogger("cogcored.log", os.Getenv("COGCORE_LOG_LEVEL"))

	cfg, err := config.Load(os.Getenv("COGCORE_CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	shutdown, err := initOTel(context.Background())
	if err != nil {
		log.Warn().Err(err).Msg("otel init failed, continuing without observability")
	} else if shutdown != nil {
		defer func() { _ = shutdown(context.Background()) }()
	}

	httpClient := observability.NewHTTPClient(nil)

	router, err := buildRouter(cfg, httpClient)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build AI router")
	}

	searcher := buildContextSearcher(cfg)

	reasoner := reason.New(reason.Config{
		MaxPasses:            cfg.Reason.MaxPasses,
		ConvergenceThreshold: cfg.Reason.ConvergenceThreshold,
		PassTimeout:          time.Duration(cfg.Reason.PassTimeoutSeconds) * time.Second,
	}, router, searcher, log.Logger)

	planner := plan.New(plan.Config{
		AutoApproveThreshold: cfg.Plan.AutoApproveThreshold,
		RiskTolerance:        actions.RiskLevel(cfg.Plan.RiskTolerance),
	})

	orchestrator := orchestrate.New(true, log.Logger)

	prefilterer := prefilter.New(prefilter.Config{StrictMode: cfg.Prefilter.StrictMode})

	dataDir := cfg.Store.DataDir
	_ = os.MkdirAll(dataDir, 0o755)
	patternStore := learn.NewPatternStore(dataDir+"/patterns.json", time.Now)
	calibrator := learn.NewConfidenceCalibrator(dataDir + "/calibration.json")
	providerTracker := learn.NewProviderTracker()
	if sink, err := learn.NewClickHouseSink(context.Background(), cfg.ClickHouse.DSN, cfg.ClickHouse.Database, cfg.ClickHouse.Table, log.Logger); err != nil {
		log.Warn().Err(err).Msg("clickhouse sink init failed, provider calls will not be persisted longitudinally")
	} else if sink != nil {
		providerTracker.Sink = sink
	}
	draftStore, queueStore := buildStores(cfg, dataDir)

	accountFactories := make(map[string]*actions.Factory, len(cfg.Accounts))
	for _, a := range cfg.Accounts {
		accountFactories[a.AccountID] = actions.New(actions.AccountConfig{
			AccountID:       a.AccountID,
			ArchiveFolder:   a.ArchiveFolder,
			TrashFolder:     a.TrashFolder,
			ReferenceFolder: a.ReferenceFolder,
			DefaultProject:  a.DefaultProject,
			PermanentDelete: a.PermanentDelete,
		}, actions.Clients{})
	}

	learnEngine := learn.New(patternStore, providerTracker, calibrator, nil, log.Logger)

	redisClient := buildRedisClient(cfg)

	chanManager := channel.New(log.Logger)
	limiter := buildRateLimiter(cfg, redisClient)
	auth := buildAuthenticator(cfg)
	chanServer := channel.NewServer(chanManager, auth, limiter, log.Logger)

	var bestProviderCache *learn.BestProviderCache
	if redisClient != nil {
		bestProviderCache = learn.NewBestProviderCache(redisClient, 0)
	}

	pipeline := &ingestPipeline{
		prefilter:    prefilterer,
		reasoner:     reasoner,
		planner:      planner,
		orchestrator: orchestrator,
		factories:    accountFactories,
		learn:        learnEngine,
		queue:        queueStore,
		drafts:       draftStore,
		channels:     chanManager,
		pending:      make(map[string]*pendingEvent),
	}

	providers := &providerStatusHandler{tracker: providerTracker, cache: bestProviderCache}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ok")
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ready")
	})
	mux.HandleFunc("/events/mail", pipeline.handleMail)
	mux.HandleFunc("/events/calendar", pipeline.handleCalendar)
	mux.HandleFunc("/events/chat", pipeline.handleChat)
	mux.HandleFunc("/feedback", pipeline.handleFeedback)
	mux.HandleFunc("/admin/providers/best", providers.handleBest)
	mux.Handle("/ws", chanServer)

	log.Info().Str("addr", cfg.Channel.ListenAddr).Msg("cogcored listening")
	if err := http.ListenAndServe(cfg.Channel.ListenAddr, mux); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

// buildRouter constructs one airouter.Router per configured AI provider and
// assembles them into a TieredRouter, so the reasoner's cheap triage passes
// and its final arbitration pass can hit different backends (e.g. a fast
// OpenAI-compatible model for early passes, Anthropic or Google for the
// pass that actually produces the decision). Providers are dispatched on
// name the same way internal/llm/providers.Build does.
func buildRouter(cfg config.Config, httpClient *http.Client) (reason.AIRouter, error) {
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("no AI providers configured")
	}
	costs := make(airouter.CostTable, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		costs[pc.Name+":"+pc.Tier] = pc.CostPerCall
	}

	byTier := make(map[string]*airouter.Router, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		provider, err := buildProvider(pc, httpClient)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", pc.Name, err)
		}
		byTier[pc.Tier] = &airouter.Router{
			Provider: provider,
			Name:     pc.Name,
			Tier:     pc.Tier,
			Model:    pc.Model,
			Costs:    costs,
		}
	}

	return &airouter.TieredRouter{ByTier: byTier, Default: cfg.Providers[0].Tier}, nil
}

// buildProvider constructs the concrete llm.Provider named by pc.Name.
func buildProvider(pc config.AIProviderConfig, httpClient *http.Client) (llm.Provider, error) {
	switch pc.Name {
	case "", "openai", "local":
		return openaillm.New(internalconfig.OpenAIConfig{
			APIKey: os.Getenv("OPENAI_API_KEY"),
			Model:  pc.Model,
		}, httpClient), nil
	case "anthropic":
		return anthropic.New(internalconfig.AnthropicConfig{
			APIKey: os.Getenv("ANTHROPIC_API_KEY"),
			Model:  pc.Model,
		}, httpClient), nil
	case "google":
		return google.New(internalconfig.GoogleConfig{
			APIKey: os.Getenv("GOOGLE_API_KEY"),
			Model:  pc.Model,
		}, httpClient)
	default:
		return nil, fmt.Errorf("unsupported provider %q", pc.Name)
	}
}

// buildContextSearcher wires Qdrant when a collection is configured,
// falling back to the in-process InMemory searcher otherwise (single
// instance / local development).
func buildContextSearcher(cfg config.Config) reason.ContextSearcher {
	if cfg.Qdrant.Addr == "" || cfg.Qdrant.Collection == "" {
		return contextsearch.NewInMemory()
	}
	qc, err := newQdrantClient(cfg.Qdrant.Addr)
	if err != nil {
		log.Warn().Err(err).Msg("qdrant client init failed, falling back to in-memory context search")
		return contextsearch.NewInMemory()
	}
	embedder := &contextsearch.HTTPEmbedder{
		Host:   os.Getenv("COGCORE_EMBEDDINGS_HOST"),
		APIKey: os.Getenv("COGCORE_EMBEDDINGS_API_KEY"),
	}
	return contextsearch.NewQdrant(qc, cfg.Qdrant.Collection, embedder)
}

// newQdrantClient parses addr as host[:port] (or a qdrant:// DSN) and opens
// a gRPC client, the same host/port-splitting pattern the persistence
// layer's NewQdrantVector uses.
func newQdrantClient(addr string) (*qdrant.Client, error) {
	parsed, err := url.Parse(addr)
	host := addr
	port := 6334
	if err == nil && parsed.Hostname() != "" {
		host = parsed.Hostname()
		if p := parsed.Port(); p != "" {
			if n, err := strconv.Atoi(p); err == nil {
				port = n
			}
		}
	}
	return qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
}

// buildRedisClient opens the shared Redis client backing both the channel
// rate limiter and the best-provider cache, so cogcored keeps a single
// connection pool to Redis instead of one per consumer. Returns nil when no
// Redis address is configured.
func buildRedisClient(cfg config.Config) *redis.Client {
	if cfg.Channel.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: cfg.Channel.RedisAddr})
}

func buildRateLimiter(cfg config.Config, client *redis.Client) *channel.RateLimiter {
	if client == nil {
		return channel.NewInMemoryRateLimiter()
	}
	return channel.NewRedisRateLimiter(client)
}

// buildStores picks the draft/queue review backend: Postgres when
// cfg.Store.PostgresDSN is set (shared across cogcored instances), the
// atomic-JSON-file backend under dataDir otherwise.
func buildStores(cfg config.Config, dataDir string) (store.DraftBackend, store.QueueBackend) {
	dsn := cfg.Store.PostgresDSN
	if dsn == "" {
		return store.NewDraftStore(dataDir + "/drafts.json"), store.NewQueueStore(dataDir + "/queue.json")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Warn().Err(err).Msg("postgres pool init failed, falling back to file-backed stores")
		return store.NewDraftStore(dataDir + "/drafts.json"), store.NewQueueStore(dataDir + "/queue.json")
	}
	drafts, err := store.NewPostgresDraftStore(ctx, pool)
	if err != nil {
		log.Warn().Err(err).Msg("postgres draft store init failed, falling back to file-backed stores")
		return store.NewDraftStore(dataDir + "/drafts.json"), store.NewQueueStore(dataDir + "/queue.json")
	}
	queue, err := store.NewPostgresQueueStore(ctx, pool)
	if err != nil {
		log.Warn().Err(err).Msg("postgres queue store init failed, falling back to file-backed stores")
		return store.NewDraftStore(dataDir + "/drafts.json"), store.NewQueueStore(dataDir + "/queue.json")
	}
	return drafts, queue
}

func buildAuthenticator(cfg config.Config) channel.Authenticator {
	if cfg.Channel.OIDCIssuerURL == "" {
		log.Warn().Msg("no OIDC issuer configured, using static dev authenticator")
		return &channel.StaticAuthenticator{Tokens: map[string]string{
			os.Getenv("COGCORE_DEV_TOKEN"): "dev-user",
		}}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	auth, _, err := channel.NewOIDCAuthenticator(ctx, cfg.Channel.OIDCIssuerURL, cfg.Channel.OIDCClientID, os.Getenv("COGCORE_OIDC_CLIENT_SECRET"), os.Getenv("COGCORE_OIDC_REDIRECT_URL"))
	if err != nil {
		log.Warn().Err(err).Msg("oidc discovery failed, falling back to static dev authenticator")
		return &channel.StaticAuthenticator{Tokens: map[string]string{
			os.Getenv("COGCORE_DEV_TOKEN"): "dev-user",
		}}
	}
	return auth
}

// ingestPipeline wires C2-C11 into three HTTP entrypoints, one per
// normalize source. Each request runs perception through planning and,
// for auto-mode plans, execution, then broadcasts the outcome on the
// decisions channel.
type ingestPipeline struct {
	prefilter    *prefilter.Filter
	reasoner     *reason.Reasoner
	planner      *plan.Planner
	orchestrator *orchestrate.Orchestrator
	factories    map[string]*actions.Factory
	learn        *learn.Engine
	queue        store.QueueBackend
	drafts       store.DraftBackend // reserved for a future reply-suggestion endpoint
	channels     *channel.Manager

	// reasonMu serializes reasoner.Run calls so the single shared
	// Reasoner.Observe hook can be pointed at this request's observation
	// slice without a race; cogcored is a single-instance service, so
	// this trades reasoning concurrency for a simple, correct collector.
	reasonMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]*pendingEvent
}

// pendingEvent holds everything Learn needs once feedback for this event
// arrives: the event itself, its resolved working memory, the predicted
// confidence reported at decision time, and the AI calls made reasoning
// about it.
type pendingEvent struct {
	event               *event.PerceivedEvent
	memory              *memory.WorkingMemory
	predictedConfidence float64
	observations        []reason.CallObservation
}

func (p *ingestPipeline) handleMail(w http.ResponseWriter, r *http.Request) {
	var m normalize.MailMessage
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	ev, err := normalize.NormalizeMail(m, time.Now().UTC())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p.process(r.Context(), w, ev, m.AccountID, m.From, m.Subject)
}

func (p *ingestPipeline) handleCalendar(w http.ResponseWriter, r *http.Request) {
	var c normalize.CalendarEvent
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	ev, err := normalize.NormalizeCalendar(c, time.Now().UTC())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p.process(r.Context(), w, ev, "", "", "")
}

func (p *ingestPipeline) handleChat(w http.ResponseWriter, r *http.Request) {
	var c normalize.ChatMessage
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	ev, err := normalize.NormalizeChat(c, time.Now().UTC())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p.process(r.Context(), w, ev, "", "", "")
}

func (p *ingestPipeline) process(ctx context.Context, w http.ResponseWriter, ev *event.PerceivedEvent, accountID, sender, subject string) {
	if accountID != "" {
		res := p.prefilter.ShouldProcess(sender, subject)
		if res.Verdict == prefilter.VerdictSkip {
			_, _ = p.queue.Enqueue(ev.EventID(), "prefiltered: "+res.Reason)
			writeJSON(w, map[string]any{"event_id": ev.EventID(), "verdict": "skipped", "reason": res.Reason})
			return
		}
	}

	wm := memory.New(ev, time.Now)
	observations, err := p.runReasoner(ctx, wm)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	verdict := verdictFromHypothesis(wm)
	factory := p.factories[accountID]
	var candidates []actions.Action
	if factory != nil {
		candidates = factory.Build(verdict, ev, 0)
	}

	ap, err := p.planner.Build(wm, candidates)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	result := map[string]any{
		"event_id":       ev.EventID(),
		"verdict":        verdict,
		"execution_mode": ap.ExecutionMode,
		"confidence":     ap.Confidence,
	}

	switch ap.ExecutionMode {
	case actions.ModeAuto:
		execResult := p.orchestrator.ExecutePlan(ap)
		result["executed"] = execResult.Success
	case actions.ModeReview:
		_, _ = p.queue.Enqueue(ev.EventID(), "planner selected review mode")
	case actions.ModeManual:
		_, _ = p.queue.Enqueue(ev.EventID(), "planner selected manual mode")
	}

	p.channels.BroadcastToChannel(channel.Message{
		Channel:   channel.TypeDecisions,
		Event:     "event_processed",
		Payload:   result,
		Timestamp: time.Now().UTC(),
	})

	p.pendingMu.Lock()
	p.pending[ev.EventID()] = &pendingEvent{
		event:               ev,
		memory:              wm,
		predictedConfidence: wm.OverallConfidence(),
		observations:        observations,
	}
	p.pendingMu.Unlock()

	writeJSON(w, result)
}

// runReasoner drives the reasoner and collects every AI router call it
// makes. The shared Reasoner.Observe hook is set for the duration of this
// call under reasonMu so concurrent requests don't interleave their
// observations.
func (p *ingestPipeline) runReasoner(ctx context.Context, wm *memory.WorkingMemory) ([]reason.CallObservation, error) {
	p.reasonMu.Lock()
	defer p.reasonMu.Unlock()

	var observations []reason.CallObservation
	p.reasoner.Observe = func(o reason.CallObservation) { observations = append(observations, o) }
	defer func() { p.reasoner.Observe = nil }()

	if err := p.reasoner.Run(ctx, wm); err != nil {
		return nil, err
	}
	return observations, nil
}

// feedbackRequest is the wire shape for POST /feedback.
type feedbackRequest struct {
	EventID              string  `json:"event_id"`
	Approval             bool    `json:"approval"`
	Rating               *int    `json:"rating,omitempty"`
	Comment              string  `json:"comment,omitempty"`
	Correction           string  `json:"correction,omitempty"`
	ActionExecuted       bool    `json:"action_executed"`
	TimeToActionSeconds  float64 `json:"time_to_action_seconds"`
}

func (p *ingestPipeline) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	p.pendingMu.Lock()
	pe, ok := p.pending[req.EventID]
	if ok {
		delete(p.pending, req.EventID)
	}
	p.pendingMu.Unlock()
	if !ok {
		http.Error(w, "unknown event_id", http.StatusNotFound)
		return
	}

	fb, err := learn.NewUserFeedback(learn.UserFeedback{
		Approval:       req.Approval,
		Rating:         req.Rating,
		Comment:        req.Comment,
		Correction:     req.Correction,
		ActionExecuted: req.ActionExecuted,
		TimeToAction:   time.Duration(req.TimeToActionSeconds * float64(time.Second)),
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := p.learn.Learn(r.Context(), pe.event, pe.memory, fb, pe.predictedConfidence, pe.observations)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	p.channels.BroadcastToChannel(channel.Message{
		Channel:   channel.TypeLearning,
		Event:     "feedback_processed",
		Payload:   map[string]any{"event_id": req.EventID, "updates_applied": result.UpdatesApplied},
		Timestamp: time.Now().UTC(),
	})

	writeJSON(w, result)
}

func verdictFromHypothesis(wm *memory.WorkingMemory) actions.AnalysisAction {
	best := wm.BestHypothesis()
	if best == nil {
		return actions.AnalysisReview
	}
	if v, ok := best.Metadata["suggested_action"].(string); ok {
		switch actions.AnalysisAction(v) {
		case actions.AnalysisArchive, actions.AnalysisDelete, actions.AnalysisReference,
			actions.AnalysisTask, actions.AnalysisReview, actions.AnalysisSnooze:
			return actions.AnalysisAction(v)
		}
	}
	return actions.AnalysisReview
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// providerStatusHandler exposes the AI router's current best-provider
// ranking for operators. When a Redis-backed cache is available it fronts
// the tracker's (more expensive) percentile walk; otherwise it hits the
// tracker directly.
type providerStatusHandler struct {
	tracker *learn.ProviderTracker
	cache   *learn.BestProviderCache
}

func (h *providerStatusHandler) handleBest(w http.ResponseWriter, r *http.Request) {
	optimizeFor := r.URL.Query().Get("optimize_for")
	if optimizeFor == "" {
		optimizeFor = "balanced"
	}

	var key string
	var score *learn.ProviderScore
	if h.cache != nil {
		key, score = h.cache.GetBestProvider(r.Context(), h.tracker, optimizeFor)
	} else {
		key, score = h.tracker.GetBestProvider(optimizeFor)
	}

	writeJSON(w, map[string]any{
		"optimize_for": optimizeFor,
		"provider_key": key,
		"score":        score,
		"providers":    h.tracker.Providers(),
	})
}
