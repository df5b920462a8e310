package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "KAFKA_BOOTSTRAP_SERVERS", "S3_PREFIX", "VOICE_TIMEOUT_SECONDS", "RUN_RETENTION_MINUTES"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if len(cfg.KafkaBrokers) != 0 {
		t.Fatalf("expected no brokers, got %v", cfg.KafkaBrokers)
	}
	if cfg.S3Prefix != "" {
		t.Fatalf("expected empty prefix, got %q", cfg.S3Prefix)
	}
	if cfg.VoiceTimeout != DefaultVoiceTimeout {
		t.Fatalf("expected default voice timeout, got %v", cfg.VoiceTimeout)
	}
	if cfg.RunRetention != DefaultRunRetention {
		t.Fatalf("expected default retention, got %v", cfg.RunRetention)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("KAFKA_BOOTSTRAP_SERVERS", "a:9092, b:9092,,")
	t.Setenv("S3_PREFIX", "/media/reels/")
	t.Setenv("VOICE_TIMEOUT_SECONDS", "15")
	t.Setenv("S3_USE_PATH_STYLE", "TRUE")

	cfg := Load()
	if cfg.Port != "9000" {
		t.Fatalf("expected port 9000, got %q", cfg.Port)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "b:9092" {
		t.Fatalf("unexpected brokers: %v", cfg.KafkaBrokers)
	}
	if cfg.S3Prefix != "media/reels/" {
		t.Fatalf("unexpected prefix: %q", cfg.S3Prefix)
	}
	if cfg.VoiceTimeout != 15*time.Second {
		t.Fatalf("unexpected voice timeout: %v", cfg.VoiceTimeout)
	}
	if !cfg.S3UsePathStyle {
		t.Fatal("expected path style to be enabled")
	}
}

func TestGetEnvSecondsRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"unset", "", time.Minute},
		{"garbage", "soon", time.Minute},
		{"zero", "0", time.Minute},
		{"negative", "-4", time.Minute},
		{"valid", "90", 90 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("REELGEN_TEST_SECONDS", tt.value)
			if got := GetEnvSeconds("REELGEN_TEST_SECONDS", time.Minute); got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}
