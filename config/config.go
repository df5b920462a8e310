package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings read from the environment.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	// ElevenLabs narration
	ElevenLabsAPIKey  string
	ElevenLabsVoiceID string
	ElevenLabsModelID string
	ElevenLabsBaseURL string
	VoiceTimeout      time.Duration

	// Media engine
	FFmpegPath    string
	EncodeTimeout time.Duration

	// Background catalogs
	BackgroundsDir      string
	BackgroundsManifest string

	// S3 (optional; archive and remote backgrounds)
	S3Bucket            string
	S3Region            string
	S3Profile           string
	S3Prefix            string
	S3UsePathStyle      bool
	S3BackgroundsPrefix string

	// Redis (optional; shared rotation state)
	RedisAddr   string
	RedisPass   string
	RedisDB     int
	RotationTTL time.Duration

	// Kafka (optional; queue intake)
	KafkaBrokers        []string
	KafkaRequestTopic   string
	KafkaCompletedTopic string
	KafkaGroupID        string

	// YouTube (optional; publishing)
	YouTubeServiceAccount string

	RunRetention time.Duration
}

// Load reads .env if present (non-fatal if missing) and then the environment.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:      GetEnv("PORT", "8080"),
		LogLevel:  GetEnv("LOG_LEVEL", "info"),
		LogFormat: GetEnv("LOG_FORMAT", "console"),

		ElevenLabsAPIKey:  strings.TrimSpace(os.Getenv("ELEVENLABS_API_KEY")),
		ElevenLabsVoiceID: GetEnv("ELEVENLABS_VOICE_ID", "21m00Tcm4TlvDq8ikWAM"),
		ElevenLabsModelID: strings.TrimSpace(os.Getenv("ELEVENLABS_MODEL_ID")),
		ElevenLabsBaseURL: GetEnv("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),
		VoiceTimeout:      GetEnvSeconds("VOICE_TIMEOUT_SECONDS", DefaultVoiceTimeout),

		FFmpegPath:    GetEnv("FFMPEG_PATH", "ffmpeg"),
		EncodeTimeout: GetEnvSeconds("ENCODE_TIMEOUT_SECONDS", DefaultEncodeTimeout),

		BackgroundsDir:      GetEnv("BACKGROUNDS_DIR", "backgrounds"),
		BackgroundsManifest: strings.TrimSpace(os.Getenv("BACKGROUNDS_MANIFEST")),

		S3Bucket:            strings.TrimSpace(os.Getenv("S3_BUCKET")),
		S3Region:            strings.TrimSpace(os.Getenv("S3_REGION")),
		S3Profile:           strings.TrimSpace(os.Getenv("S3_PROFILE")),
		S3Prefix:            normalizePrefix(os.Getenv("S3_PREFIX")),
		S3UsePathStyle:      strings.EqualFold(strings.TrimSpace(os.Getenv("S3_USE_PATH_STYLE")), "true"),
		S3BackgroundsPrefix: normalizePrefix(os.Getenv("S3_BACKGROUNDS_PREFIX")),

		RedisAddr:   strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPass:   os.Getenv("REDIS_PASS"),
		RedisDB:     GetEnvInt("REDIS_DB", 0),
		RotationTTL: GetEnvSeconds("ROTATION_TTL_SECONDS", 24*time.Hour),

		KafkaBrokers:        splitList(os.Getenv("KAFKA_BOOTSTRAP_SERVERS")),
		KafkaRequestTopic:   GetEnv("KAFKA_REQUEST_TOPIC", "reel-requests"),
		KafkaCompletedTopic: GetEnv("KAFKA_COMPLETED_TOPIC", "reel-completed"),
		KafkaGroupID:        GetEnv("KAFKA_GROUP_ID", "reelgen"),

		YouTubeServiceAccount: strings.TrimSpace(os.Getenv("YOUTUBE_SERVICE_ACCOUNT")),

		RunRetention: time.Duration(GetEnvInt("RUN_RETENTION_MINUTES", int(DefaultRunRetention/time.Minute))) * time.Minute,
	}
}

// GetEnv returns the trimmed value of key, or fallback when unset or blank.
func GetEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// GetEnvInt parses key as an int, returning fallback when unset or invalid.
func GetEnvInt(key string, fallback int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvSeconds reads a positive number of seconds from key.
func GetEnvSeconds(key string, fallback time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return fallback
}

func normalizePrefix(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	return strings.Trim(p, "/") + "/"
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
