package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// WAVEPIPE_SERVER_ADDR for server.addr
const EnvPrefix = "WAVEPIPE"

// DotEnvFile is loaded from the working directory when present
const DotEnvFile = ".env"

// Settings keys
const (
	KeyServerAddr      = "server.addr"
	KeyShutdownTimeout = "server.shutdown_timeout"
	KeyYtdlpPath       = "ytdlp.path"
	KeyYtdlpSearchDirs = "ytdlp.search_dirs"
	KeyYtdlpUserAgent  = "ytdlp.user_agent"
	KeyFFprobePath     = "ffprobe.path"
	KeyTempDir         = "download.temp_dir"
	KeyTitleTimeout    = "download.title_timeout"
	KeyDownloadTimeout = "download.timeout"
	KeyInfoTimeout     = "download.info_timeout"
	KeyMaxParallel     = "download.max_parallel"
	KeyRetries         = "download.retries"
	KeyVerifyOutput    = "download.verify_output"
	KeySweepAge        = "download.sweep_age"
	KeyAllowedHosts    = "http.allowed_hosts"
	KeyRateLimit       = "http.rate_limit"
	KeyRateBurst       = "http.rate_burst"
	KeyTrustProxy      = "http.trust_proxy"
	KeyCacheTTL        = "cache.ttl"
	KeyRedisAddr       = "cache.redis_addr"
	KeyRedisPassword   = "cache.redis_password"
	KeyRedisDB         = "cache.redis_db"
	KeyLogLevel        = "log.level"
	KeyLogFile         = "log.file"
	KeyLogFormat       = "log.format"
)

// Default values
const (
	DefaultServerAddr      = ":3000"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultYtdlpSearchDir  = "/usr/local/bin"
	DefaultUserAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"
	DefaultTitleTimeout    = 10 * time.Second
	DefaultDownloadTimeout = 5 * time.Minute
	DefaultInfoTimeout     = 20 * time.Second
	DefaultMaxParallel     = 2
	DefaultRetries         = 0
	DefaultSweepAge        = time.Hour
	DefaultRateLimit       = 5.0
	DefaultRateBurst       = 10
	DefaultCacheTTL        = 10 * time.Minute
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "auto"
)

// Limits
const (
	MinMaxParallel = 1
	MaxMaxParallel = 10
	MinRetries     = 0
	MaxRetries     = 3
)

// Settings manages application configuration backed by viper
type Settings struct {
	v *viper.Viper
}

// NewSettings wraps v and registers defaults and environment overrides
func NewSettings(v *viper.Viper) *Settings {
	if v == nil {
		v = viper.New()
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyServerAddr, DefaultServerAddr)
	v.SetDefault(KeyShutdownTimeout, DefaultShutdownTimeout)
	v.SetDefault(KeyYtdlpSearchDirs, []string{DefaultYtdlpSearchDir})
	v.SetDefault(KeyYtdlpUserAgent, DefaultUserAgent)
	v.SetDefault(KeyTempDir, "")
	v.SetDefault(KeyTitleTimeout, DefaultTitleTimeout)
	v.SetDefault(KeyDownloadTimeout, DefaultDownloadTimeout)
	v.SetDefault(KeyInfoTimeout, DefaultInfoTimeout)
	v.SetDefault(KeyMaxParallel, DefaultMaxParallel)
	v.SetDefault(KeyRetries, DefaultRetries)
	v.SetDefault(KeyVerifyOutput, false)
	v.SetDefault(KeySweepAge, DefaultSweepAge)
	v.SetDefault(KeyAllowedHosts, []string{})
	v.SetDefault(KeyRateLimit, DefaultRateLimit)
	v.SetDefault(KeyRateBurst, DefaultRateBurst)
	v.SetDefault(KeyTrustProxy, false)
	v.SetDefault(KeyCacheTTL, DefaultCacheTTL)
	v.SetDefault(KeyRedisDB, 0)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyLogFormat, DefaultLogFormat)

	return &Settings{v: v}
}

// Load reads the .env file (if any) and an optional config file. A missing
// .env is not an error; a missing explicit config file is.
func Load(v *viper.Viper, configFile string) (*Settings, error) {
	if err := godotenv.Load(DotEnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", DotEnvFile, err)
	}

	settings := NewSettings(v)
	if configFile != "" {
		settings.v.SetConfigFile(configFile)
		if err := settings.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	}
	return settings, nil
}

// Viper exposes the underlying store for flag binding
func (s *Settings) Viper() *viper.Viper {
	return s.v
}

// GetServerAddr returns the HTTP listen address
func (s *Settings) GetServerAddr() string {
	addr := s.v.GetString(KeyServerAddr)
	if addr == "" {
		return DefaultServerAddr
	}
	return addr
}

// GetShutdownTimeout returns how long in-flight requests get on shutdown
func (s *Settings) GetShutdownTimeout() time.Duration {
	return s.positiveDuration(KeyShutdownTimeout, DefaultShutdownTimeout)
}

// GetYtdlpPath returns an explicit yt-dlp executable, empty for lookup
func (s *Settings) GetYtdlpPath() string {
	return s.v.GetString(KeyYtdlpPath)
}

// GetYtdlpSearchDirs returns extra directories searched for yt-dlp and
// appended to PATH for ffmpeg
func (s *Settings) GetYtdlpSearchDirs() []string {
	return s.stringList(KeyYtdlpSearchDirs)
}

// GetUserAgent returns the user agent sent by metadata requests
func (s *Settings) GetUserAgent() string {
	ua := s.v.GetString(KeyYtdlpUserAgent)
	if ua == "" {
		return DefaultUserAgent
	}
	return ua
}

// GetFFprobePath returns an explicit ffprobe executable, empty for lookup
func (s *Settings) GetFFprobePath() string {
	return s.v.GetString(KeyFFprobePath)
}

// GetTempDir returns the directory for temporary downloads
func (s *Settings) GetTempDir() string {
	dir := s.v.GetString(KeyTempDir)
	if dir == "" {
		return os.TempDir()
	}
	return dir
}

// GetTitleTimeout returns the bound on the title lookup
func (s *Settings) GetTitleTimeout() time.Duration {
	return s.positiveDuration(KeyTitleTimeout, DefaultTitleTimeout)
}

// GetDownloadTimeout returns the bound on a single download attempt
func (s *Settings) GetDownloadTimeout() time.Duration {
	return s.positiveDuration(KeyDownloadTimeout, DefaultDownloadTimeout)
}

// GetInfoTimeout returns the bound on metadata lookups
func (s *Settings) GetInfoTimeout() time.Duration {
	return s.positiveDuration(KeyInfoTimeout, DefaultInfoTimeout)
}

// GetMaxParallelDownloads returns the maximum number of parallel downloads
func (s *Settings) GetMaxParallelDownloads() int {
	value := s.v.GetInt(KeyMaxParallel)
	if value <= 0 {
		return DefaultMaxParallel
	}
	return clamp(value, MinMaxParallel, MaxMaxParallel)
}

// SetMaxParallelDownloads sets the maximum number of parallel downloads
func (s *Settings) SetMaxParallelDownloads(count int) {
	s.v.Set(KeyMaxParallel, clamp(count, MinMaxParallel, MaxMaxParallel))
}

// GetRetries returns how many times a failed download is retried
func (s *Settings) GetRetries() int {
	return clamp(s.v.GetInt(KeyRetries), MinRetries, MaxRetries)
}

// SetRetries sets how many times a failed download is retried
func (s *Settings) SetRetries(count int) {
	s.v.Set(KeyRetries, clamp(count, MinRetries, MaxRetries))
}

// GetVerifyOutput reports whether downloads are checked with ffprobe
func (s *Settings) GetVerifyOutput() bool {
	return s.v.GetBool(KeyVerifyOutput)
}

// GetSweepAge returns the age after which orphaned temp files are removed.
// Zero disables the sweeper.
func (s *Settings) GetSweepAge() time.Duration {
	age := s.v.GetDuration(KeySweepAge)
	if age < 0 {
		return 0
	}
	return age
}

// GetAllowedHosts returns the host allow-list, empty allows any host
func (s *Settings) GetAllowedHosts() []string {
	return s.stringList(KeyAllowedHosts)
}

// GetRateLimit returns requests per second per client on /api
func (s *Settings) GetRateLimit() float64 {
	value := s.v.GetFloat64(KeyRateLimit)
	if value < 0 {
		return 0
	}
	return value
}

// GetRateBurst returns the burst allowed above the rate limit
func (s *Settings) GetRateBurst() int {
	value := s.v.GetInt(KeyRateBurst)
	if value < 1 {
		return 1
	}
	return value
}

// GetTrustProxy reports whether X-Forwarded-For and X-Real-IP identify the
// client. Only enable it behind a proxy that sets them.
func (s *Settings) GetTrustProxy() bool {
	return s.v.GetBool(KeyTrustProxy)
}

// GetCacheTTL returns how long metadata is cached. Zero disables caching.
func (s *Settings) GetCacheTTL() time.Duration {
	ttl := s.v.GetDuration(KeyCacheTTL)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// GetRedisAddr returns the Redis address, empty for the in-memory cache
func (s *Settings) GetRedisAddr() string {
	return s.v.GetString(KeyRedisAddr)
}

// GetRedisPassword returns the Redis password
func (s *Settings) GetRedisPassword() string {
	return s.v.GetString(KeyRedisPassword)
}

// GetRedisDB returns the Redis database index
func (s *Settings) GetRedisDB() int {
	return s.v.GetInt(KeyRedisDB)
}

// GetLogLevel returns the configured log level
func (s *Settings) GetLogLevel() string {
	return s.v.GetString(KeyLogLevel)
}

// GetLogFile returns the rotating log file path, empty for stdout only
func (s *Settings) GetLogFile() string {
	return s.v.GetString(KeyLogFile)
}

// GetLogFormat returns auto, json or console
func (s *Settings) GetLogFormat() string {
	return s.v.GetString(KeyLogFormat)
}

func (s *Settings) positiveDuration(key string, fallback time.Duration) time.Duration {
	d := s.v.GetDuration(key)
	if d <= 0 {
		return fallback
	}
	return d
}

// stringList accepts YAML lists as well as comma separated env values
func (s *Settings) stringList(key string) []string {
	var out []string
	for _, item := range s.v.GetStringSlice(key) {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func clamp(value, lo, hi int) int {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
