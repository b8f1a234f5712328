package config

import (
	"os"
	"reflect"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.Env != "local" {
		t.Errorf("Env = %q, want %q", cfg.Env, "local")
	}
	if cfg.HTTPAddr != ":3000" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":3000")
	}
	if cfg.GRPCAddr != ":8080" {
		t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, ":8080")
	}
	if cfg.SessionStore != StorePostgres {
		t.Errorf("SessionStore = %q, want %q", cfg.SessionStore, StorePostgres)
	}
	if cfg.SessionCookieName != "session_token" {
		t.Errorf("SessionCookieName = %q, want %q", cfg.SessionCookieName, "session_token")
	}
	if !cfg.ClearCacheOnLogout {
		t.Error("ClearCacheOnLogout should default to true")
	}
	if cfg.ServiceName != "studyassist-sessions" {
		t.Errorf("ServiceName = %q, want default", cfg.ServiceName)
	}
	if cfg.SessionEventsTopic != "studyassist-session-events" {
		t.Errorf("SessionEventsTopic = %q, want default", cfg.SessionEventsTopic)
	}
	if cfg.RenewalWindow() != 5*time.Minute {
		t.Errorf("RenewalWindow = %v, want 5m", cfg.RenewalWindow())
	}
	if cfg.FlushInterval() != 60*time.Second {
		t.Errorf("FlushInterval = %v, want 60s", cfg.FlushInterval())
	}
	if cfg.LookupTimeout() != 2*time.Second {
		t.Errorf("LookupTimeout = %v, want 2s", cfg.LookupTimeout())
	}
	if cfg.FlushTimeout() != 5*time.Second {
		t.Errorf("FlushTimeout = %v, want 5s", cfg.FlushTimeout())
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":9000")
	os.Setenv("SESSION_STORE", "Redis")
	os.Setenv("REDIS_ADDR", "cache:6379")
	os.Setenv("REDIS_DB", "3")
	os.Setenv("SESSION_RENEWAL_WINDOW", "10m")
	os.Setenv("SESSION_CLEAR_CACHE_ON_LOGOUT", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9000" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9000")
	}
	if cfg.SessionStore != StoreRedis {
		t.Errorf("SessionStore = %q, want %q", cfg.SessionStore, StoreRedis)
	}
	if cfg.RedisAddr != "cache:6379" {
		t.Errorf("RedisAddr = %q, want %q", cfg.RedisAddr, "cache:6379")
	}
	if cfg.RedisDB != 3 {
		t.Errorf("RedisDB = %d, want 3", cfg.RedisDB)
	}
	if cfg.RenewalWindow() != 10*time.Minute {
		t.Errorf("RenewalWindow = %v, want 10m", cfg.RenewalWindow())
	}
	if cfg.ClearCacheOnLogout {
		t.Error("ClearCacheOnLogout should be false")
	}
}

func TestLoad_InvalidSessionStore(t *testing.T) {
	os.Clearenv()
	os.Setenv("SESSION_STORE", "memcached")

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load should reject unknown SESSION_STORE")
	}
	if cfg != nil {
		t.Error("Load should return nil config on error")
	}
}

func TestLoad_ProductionRequiresSecureCookie(t *testing.T) {
	os.Clearenv()
	os.Setenv("APP_ENV", "production")

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load should return error when COOKIE_SECURE=false and APP_ENV=production")
	}
	if cfg != nil {
		t.Error("Load should return nil config on error")
	}
	if err.Error() != "config: COOKIE_SECURE must be true when APP_ENV=production" {
		t.Errorf("error = %q, want secure cookie message", err.Error())
	}

	os.Setenv("COOKIE_SECURE", "true")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.CookieSecure {
		t.Error("CookieSecure should be true")
	}
}

func TestDurations_InvalidFallBackToDefaults(t *testing.T) {
	testCases := []struct {
		name string
		key  string
		get  func(*Config) time.Duration
		want time.Duration
	}{
		{"renewal window", "SESSION_RENEWAL_WINDOW", (*Config).RenewalWindow, 5 * time.Minute},
		{"flush interval", "SESSION_FLUSH_INTERVAL", (*Config).FlushInterval, 60 * time.Second},
		{"lookup timeout", "SESSION_LOOKUP_TIMEOUT", (*Config).LookupTimeout, 2 * time.Second},
		{"flush timeout", "SESSION_FLUSH_TIMEOUT", (*Config).FlushTimeout, 5 * time.Second},
	}

	for _, tc := range testCases {
		for _, value := range []string{"invalid", "-1s", "0"} {
			t.Run(tc.name+"/"+value, func(t *testing.T) {
				os.Clearenv()
				os.Setenv(tc.key, value)

				cfg, err := Load()
				if err != nil {
					t.Fatalf("Load: %v", err)
				}
				if got := tc.get(cfg); got != tc.want {
					t.Errorf("%s = %v, want %v", tc.key, got, tc.want)
				}
			})
		}
	}
}

func TestKafkaBrokersList(t *testing.T) {
	testCases := []struct {
		name  string
		value string
		want  []string
	}{
		{"empty", "", nil},
		{"single", "localhost:9092", []string{"localhost:9092"}},
		{"multiple with spaces", " a:9092 , b:9092 ,", []string{"a:9092", "b:9092"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{KafkaBrokers: tc.value}
			got := cfg.KafkaBrokersList()
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("KafkaBrokersList() = %v, want %v", got, tc.want)
			}
		})
	}

	var nilCfg *Config
	if got := nilCfg.KafkaBrokersList(); got != nil {
		t.Errorf("nil config KafkaBrokersList() = %v, want nil", got)
	}
}
