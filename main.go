package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"

	"engame/api"
	"engame/clients/gcp"
	"engame/clients/readyplayerme"
	"engame/clients/supabase"
	"engame/envvars"
	"engame/services/gate"
	"engame/services/onboarding"
	"engame/services/profile"
	"engame/services/record"
	"engame/services/session"
	"engame/validator"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := envvars.GetEnv()
	if err != nil {
		slog.With("error", err.Error()).Error("invalid configuration")
		os.Exit(1)
	}
	setupLogging(cfg)

	ctx := context.Background()
	backend, records, closeBackends, err := buildBackends(ctx, cfg)
	if err != nil {
		slog.With("error", err.Error()).Error("failed to set up backends")
		os.Exit(1)
	}
	defer closeBackends()

	avatars := readyplayerme.NewClient(readyplayerme.Config{
		Subdomain: cfg.RPMSubdomain,
		APIURL:    cfg.RPMAPIURL,
		Timeout:   cfg.HTTPTimeout,
	})

	sessions := session.NewService(backend, session.NewBus())
	g := gate.New(records, sessions.Events(), cfg.HTTPTimeout)
	flow := onboarding.NewFlow(avatars, records, g, onboarding.Config{
		AppID:          cfg.RPMAppID,
		StepTimeout:    cfg.HTTPTimeout,
		DiscardOrphans: cfg.DiscardOrphanedDrafts,
	})
	profiles := profile.NewService(avatars, records, cfg.RPMAppID, cfg.HTTPTimeout)
	server := NewServer(sessions, g, flow, profiles, ServerConfig{MountTTL: cfg.ScreenMountTTL})

	// Load OpenAPI spec file
	swagger, err := api.GetSwagger()
	if err != nil {
		slog.With("error", err.Error()).Error("failed to load swagger spec file")
		return
	}

	r := NewRouter(server, swagger, validator.Authenticator{Sessions: sessions})

	s := &http.Server{
		Handler: r,
		Addr:    fmt.Sprintf("0.0.0.0:%d", cfg.Port),
	}

	slog.Info("Starting HTTP server", "port", cfg.Port, "auth", cfg.AuthBackend, "records", cfg.RecordStore)
	log.Fatal(s.ListenAndServe())
}

func setupLogging(cfg envvars.Env) {
	if envvars.IsProd(cfg) {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		gin.SetMode(gin.ReleaseMode)
		return
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})))
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// buildBackends picks the auth backend and the record store from config.
// The returned func releases whatever was opened.
func buildBackends(ctx context.Context, cfg envvars.Env) (session.Backend, record.Store, func(), error) {
	closer := func() {}

	var sb *supabase.Client
	if cfg.AuthBackend == envvars.BackendSupabase || cfg.RecordStore == envvars.BackendSupabase {
		sb = supabase.NewClient(supabase.NewRestyClient(cfg.SupabaseURL, cfg.HTTPTimeout), supabase.Config{
			AnonKey:    cfg.SupabaseAnonKey,
			ServiceKey: cfg.SupabaseServiceKey,
			JWTSecret:  cfg.SupabaseJWTSecret,
		})
	}

	var backend session.Backend
	switch cfg.AuthBackend {
	case envvars.BackendSupabase:
		backend = sb
	case envvars.BackendMemory:
		slog.Warn("using in-memory auth backend")
		backend = session.NewMemoryBackend(session.NewTokens(cfg.MemoryBackendJWTSecret))
	default:
		return nil, nil, closer, fmt.Errorf("unknown auth backend %q", cfg.AuthBackend)
	}

	var records record.Store
	switch cfg.RecordStore {
	case envvars.BackendSupabase:
		records = sb
	case envvars.BackendFirestore:
		db, err := gcp.CreateFirestore(ctx, cfg.GCPProjectID)
		if err != nil {
			return nil, nil, closer, err
		}
		closer = func() {
			if err := db.Close(); err != nil {
				slog.With("error", err.Error()).Warn("failed to close firestore client")
			}
		}
		records = gcp.NewRecordStore(db)
	case envvars.BackendMemory:
		records = record.NewMemoryStore()
	default:
		return nil, nil, closer, fmt.Errorf("unknown record store %q", cfg.RecordStore)
	}
	return backend, records, closer, nil
}
