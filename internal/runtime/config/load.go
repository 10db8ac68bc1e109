package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const unknownHostname = "UNKNOWN"

var lookupEnv = os.LookupEnv

// FromEnv builds a Config from the process environment and applies defaults.
func FromEnv() (*Config, error) {
	return fromLookup(lookupEnv)
}

// LoadFile reads a YAML file and overlays the environment on top of it.
// Environment variables win over file values.
func LoadFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return parse(raw, lookupEnv)
}

func parse(raw []byte, lookup func(string) (string, bool)) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := overlayEnv(cfg, lookup); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

func fromLookup(lookup func(string) (string, bool)) (*Config, error) {
	cfg := &Config{}
	if err := overlayEnv(cfg, lookup); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

func overlayEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"ACTIONFLOW_QUEUE_SYSTEM": &cfg.QueueSystem,
		"REDIS_URL":               &cfg.RedisURL,
		"REDIS_PASSWORD":          &cfg.RedisPassword,
		"KAFKA_CONSUMER_GROUP":    &cfg.KafkaConsumerGroup,
		"RABBITMQ_URL":            &cfg.RabbitMQURL,
		"NATS_URL":                &cfg.NATSURL,
		"NATS_STREAM":             &cfg.NATSStream,
		"HTTP_SERVER_ADDRESS":     &cfg.HTTPServerAddress,
		"HTTP_PUBLISHER_URL":      &cfg.HTTPPublisherURL,
		"AWS_REGION":              &cfg.AWSRegion,
		"AWS_ACCOUNT_ID":          &cfg.AWSAccountID,
		"AWS_ACCESS_KEY_ID":       &cfg.AWSAccessKeyID,
		"AWS_SECRET_ACCESS_KEY":   &cfg.AWSSecretAccessKey,
		"AWS_ENDPOINT":            &cfg.AWSEndpoint,
		"STORAGE_URL":             &cfg.StorageURL,
		"STORAGE_REGION":          &cfg.StorageRegion,
		"STORAGE_BUCKET":          &cfg.StorageBucket,
		"STORAGE_ACCESS_KEY":      &cfg.StorageAccessKey,
		"STORAGE_SECRET_KEY":      &cfg.StorageSecretKey,
		"CORE_URL":                &cfg.CoreURL,
		"FLOWS_DIR":               &cfg.FlowsDir,
		"PROJECT_GROUP":           &cfg.PluginGroup,
		"PROJECT_NAME":            &cfg.PluginArtifact,
		"PROJECT_VERSION":         &cfg.PluginVersion,
		"PROJECT_DESCRIPTION":     &cfg.PluginDescription,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		cfg.KafkaBrokers = splitList(v)
	}
	if v, ok := lookup("WEBUI_CORS_ALLOWED_ORIGINS"); ok && v != "" {
		cfg.WebUICORSAllowedOrigins = splitList(v)
	}

	durations := map[string]*time.Duration{
		"QUEUE_POLL_TIMEOUT":     &cfg.QueuePollTimeout,
		"REGISTRATION_TIMEOUT":   &cfg.RegistrationTimeout,
		"HEARTBEAT_INTERVAL":     &cfg.HeartbeatInterval,
		"LONG_RUNNING_THRESHOLD": &cfg.LongRunningThreshold,
		"ERROR_BACKOFF":          &cfg.ErrorBackoff,
	}
	for key, dst := range durations {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		*dst = d
	}

	ints := map[string]*int{
		"REDIS_DB":     &cfg.RedisDB,
		"METRICS_PORT": &cfg.MetricsPort,
		"WEBUI_PORT":   &cfg.WebUIPort,
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		*dst = n
	}

	bools := map[string]*bool{
		"METRICS_ENABLED": &cfg.MetricsEnabled,
		"WEBUI_ENABLED":   &cfg.WebUIEnabled,
	}
	for key, dst := range bools {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		*dst = b
	}

	if v, ok := lookup("ACTIONS_HOSTNAME"); ok && v != "" {
		cfg.Hostname = v
	} else if cfg.Hostname == "" {
		cfg.Hostname = resolveHostname(lookup)
	}
	return nil
}

// resolveHostname follows ACTIONS_HOSTNAME, HOSTNAME, COMPUTERNAME, then UNKNOWN.
func resolveHostname(lookup func(string) (string, bool)) string {
	for _, key := range []string{"ACTIONS_HOSTNAME", "HOSTNAME", "COMPUTERNAME"} {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
	}
	return unknownHostname
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
