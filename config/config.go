package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type Service struct {
	URL string `yaml:"url" mapstructure:"url"`
}

type Server struct {
	Addr           string        `yaml:"addr" mapstructure:"addr"`
	StaticDir      string        `yaml:"static_dir" mapstructure:"static_dir"`
	AllowedOrigins []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	ReadTimeout    time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	MaxFrameBytes  int64         `yaml:"max_frame_bytes" mapstructure:"max_frame_bytes"`
}

type Sampler struct {
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

type LocalBackend struct {
	URL          string   `yaml:"url" mapstructure:"url"`
	ModelSources []string `yaml:"model_sources" mapstructure:"model_sources"`
}

// RemoteBackend holds the Face++ credentials. They are read from the server
// config or env and never leave the server.
type RemoteBackend struct {
	URL       string `yaml:"url" mapstructure:"url"`
	APIKey    string `yaml:"api_key" mapstructure:"api_key"`
	APISecret string `yaml:"api_secret" mapstructure:"api_secret"`
}

type Extractor struct {
	Backends       []string      `yaml:"backends" mapstructure:"backends"`
	SmileThreshold float64       `yaml:"smile_threshold" mapstructure:"smile_threshold"`
	Timeout        time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Local          LocalBackend  `yaml:"local" mapstructure:"local"`
	Remote         RemoteBackend `yaml:"remote" mapstructure:"remote"`
}

type Keywords struct {
	Positive []string `yaml:"positive" mapstructure:"positive"`
	Negative []string `yaml:"negative" mapstructure:"negative"`
}

type Speech struct {
	ASR      Service  `yaml:"asr" mapstructure:"asr"`
	Keywords Keywords `yaml:"keywords" mapstructure:"keywords"`
}

type Results struct {
	Backend string `yaml:"backend" mapstructure:"backend"` // memory | file | sqlite
	Dir     string `yaml:"dir" mapstructure:"dir"`
	DSN     string `yaml:"dsn" mapstructure:"dsn"`
}

type Root struct {
	Pipeline struct {
		Name      string `yaml:"name" mapstructure:"name"`
		Version   string `yaml:"version" mapstructure:"version"`
		LogLvl    string `yaml:"log_level" mapstructure:"log_level"`
		LogFormat string `yaml:"log_format" mapstructure:"log_format"`
	} `yaml:"pipeline" mapstructure:"pipeline"`
	Server    Server    `yaml:"server" mapstructure:"server"`
	Sampler   Sampler   `yaml:"sampler" mapstructure:"sampler"`
	Extractor Extractor `yaml:"extractor" mapstructure:"extractor"`
	Speech    Speech    `yaml:"speech" mapstructure:"speech"`
	Results   Results   `yaml:"results" mapstructure:"results"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pipeline.name", "interview-pipeline")
	v.SetDefault("pipeline.version", "0.1.0")
	v.SetDefault("pipeline.log_level", "info")
	v.SetDefault("pipeline.log_format", "text")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.static_dir", "")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.max_frame_bytes", 4<<20)

	v.SetDefault("sampler.interval", 500*time.Millisecond)

	v.SetDefault("extractor.backends", []string{"local", "remote"})
	v.SetDefault("extractor.smile_threshold", 0.7)
	v.SetDefault("extractor.timeout", 10*time.Second)
	v.SetDefault("extractor.local.url", "http://localhost:8091")
	v.SetDefault("extractor.local.model_sources", []string{
		"https://justadudewhohacks.github.io/face-api.js/models",
		"https://cdn.jsdelivr.net/gh/justadudewhohacks/face-api.js@master/weights",
		"/models",
	})
	v.SetDefault("extractor.remote.url", "https://api-us.faceplusplus.com/facepp/v3/detect")
	v.SetDefault("extractor.remote.api_key", "")
	v.SetDefault("extractor.remote.api_secret", "")

	v.SetDefault("speech.asr.url", "")
	v.SetDefault("speech.keywords.positive", []string{})
	v.SetDefault("speech.keywords.negative", []string{})

	v.SetDefault("results.backend", "memory")
	v.SetDefault("results.dir", "outputs")
	v.SetDefault("results.dsn", "results.db")
}

// guess lists the config files tried when no explicit path is given.
func guess() []string {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return []string{
		filepath.Join("config", env, "config.yaml"),
		"config.yaml",
	}
}

// Load reads path, or the first existing guessed file, over the defaults.
// INTERVIEW_* env vars override any key; FACEPP_API_KEY and FACEPP_API_SECRET
// feed the remote credentials. No file at all is fine.
func Load(path string) (*Root, *viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("INTERVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("extractor.remote.api_key", "INTERVIEW_EXTRACTOR_REMOTE_API_KEY", "FACEPP_API_KEY"); err != nil {
		return nil, nil, err
	}
	if err := v.BindEnv("extractor.remote.api_secret", "INTERVIEW_EXTRACTOR_REMOTE_API_SECRET", "FACEPP_API_SECRET"); err != nil {
		return nil, nil, err
	}

	if path == "" {
		for _, p := range guess() {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("config %s: %w", path, err)
		}
	}

	c, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	return c, v, nil
}

func decode(v *viper.Viper) (*Root, error) {
	var c Root
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}
	if c.Sampler.Interval <= 0 {
		return nil, fmt.Errorf("config: sampler.interval must be positive, got %s", c.Sampler.Interval)
	}
	if c.Extractor.SmileThreshold <= 0 || c.Extractor.SmileThreshold >= 1 {
		return nil, fmt.Errorf("config: extractor.smile_threshold must be in (0,1), got %v", c.Extractor.SmileThreshold)
	}
	return &c, nil
}

// Watch re-decodes the config whenever the file changes and hands the result
// to fn. A broken edit is passed as an error and the old config stays live.
func Watch(v *viper.Viper, fn func(*Root, error)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		fn(decode(v))
	})
	v.WatchConfig()
}

// Redacted returns a copy safe to print.
func (c Root) Redacted() Root {
	if c.Extractor.Remote.APIKey != "" {
		c.Extractor.Remote.APIKey = "***"
	}
	if c.Extractor.Remote.APISecret != "" {
		c.Extractor.Remote.APISecret = "***"
	}
	return c
}
