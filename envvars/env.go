package envvars

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	Environment        = "ENVIRONMENT"
	AuthBackend        = "AUTH_BACKEND"
	RecordStore        = "RECORD_STORE"
	SupabaseURL        = "SUPABASE_URL"
	SupabaseAnonKey    = "SUPABASE_ANON_KEY"
	SupabaseServiceKey = "SUPABASE_SERVICE_KEY"
	SupabaseJWTSecret  = "SUPABASE_JWT_SECRET"
	GCPProjectID       = "GCP_PROJECT_ID"
	RPMSubdomain       = "RPM_SUBDOMAIN"
	RPMAppID           = "RPM_APP_ID"
)

const (
	ProductionEnv = "production"
	DevEnv        = "dev"
)

// Backend names accepted by AUTH_BACKEND and RECORD_STORE.
const (
	BackendSupabase  = "supabase"
	BackendFirestore = "firestore"
	BackendMemory    = "memory"
)

type Env struct {
	Environment string `env:"ENVIRONMENT" envDefault:"dev"`
	Port        int    `env:"PORT" envDefault:"8080"`

	AuthBackend string `env:"AUTH_BACKEND" envDefault:"supabase"`
	RecordStore string `env:"RECORD_STORE" envDefault:"supabase"`

	SupabaseURL        string `env:"SUPABASE_URL"`
	SupabaseAnonKey    string `env:"SUPABASE_ANON_KEY"`
	SupabaseServiceKey string `env:"SUPABASE_SERVICE_KEY"`
	SupabaseJWTSecret  string `env:"SUPABASE_JWT_SECRET"`

	GCPProjectID string `env:"GCP_PROJECT_ID"`

	RPMSubdomain string `env:"RPM_SUBDOMAIN" envDefault:"engame"`
	RPMAppID     string `env:"RPM_APP_ID"`
	RPMAPIURL    string `env:"RPM_API_URL" envDefault:"https://api.readyplayer.me"`

	HTTPTimeout            time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`
	ScreenMountTTL         time.Duration `env:"SCREEN_MOUNT_TTL" envDefault:"15m"`
	DiscardOrphanedDrafts  bool          `env:"ONBOARDING_DISCARD_ORPHANS" envDefault:"true"`
	MemoryBackendJWTSecret string        `env:"MEMORY_JWT_SECRET" envDefault:"engame-local-secret"`
}

// GetEnv parses the process environment and checks that every value the
// selected backends need is present.
func GetEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	if err := e.Validate(); err != nil {
		return Env{}, err
	}
	return e, nil
}

func (e Env) Validate() error {
	if e.Environment != ProductionEnv && e.Environment != DevEnv {
		return fmt.Errorf("%s must be %q or %q, got %q", Environment, DevEnv, ProductionEnv, e.Environment)
	}
	switch e.AuthBackend {
	case BackendSupabase, BackendMemory:
	default:
		return fmt.Errorf("unknown %s %q", AuthBackend, e.AuthBackend)
	}
	switch e.RecordStore {
	case BackendSupabase, BackendFirestore, BackendMemory:
	default:
		return fmt.Errorf("unknown %s %q", RecordStore, e.RecordStore)
	}
	if e.AuthBackend == BackendMemory && IsProd(e) {
		return fmt.Errorf("%s=%s is not allowed in production", AuthBackend, BackendMemory)
	}
	if e.AuthBackend == BackendSupabase || e.RecordStore == BackendSupabase {
		if e.SupabaseURL == "" {
			return fmt.Errorf("%s required", SupabaseURL)
		}
		if e.SupabaseAnonKey == "" {
			return fmt.Errorf("%s required", SupabaseAnonKey)
		}
	}
	if e.RecordStore == BackendFirestore && e.GCPProjectID == "" {
		return fmt.Errorf("%s required", GCPProjectID)
	}
	if e.RPMAppID == "" {
		return fmt.Errorf("%s required", RPMAppID)
	}
	if e.RPMSubdomain == "" {
		return fmt.Errorf("%s required", RPMSubdomain)
	}
	if e.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	return nil
}

func IsProd(e Env) bool {
	return e.Environment == ProductionEnv
}

func IsDev(e Env) bool {
	return e.Environment == DevEnv
}
