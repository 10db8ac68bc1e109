package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	configpkg "github.com/drblury/actionflow/internal/runtime/config"
	"github.com/drblury/actionflow/internal/runtime/jsoncodec"
	"github.com/drblury/actionflow/internal/runtime/logging"
)

// ActionKitVersion is reported to the orchestrator in the plugin manifest.
const ActionKitVersion = "1.0.0"

const (
	pluginsPath       = "/plugins"
	variablesFile     = "variables.json"
	registrationTries = 3
)

// PluginCoordinates identify a plugin build.
type PluginCoordinates struct {
	GroupID    string `json:"groupId"`
	ArtifactID string `json:"artifactId"`
	Version    string `json:"version"`
}

func (c PluginCoordinates) String() string {
	return c.GroupID + ":" + c.ArtifactID + ":" + c.Version
}

// ActionManifest describes one action to the orchestrator.
type ActionManifest struct {
	Name                string          `json:"name"`
	Description         string          `json:"description"`
	Type                Kind            `json:"type"`
	RequiresDomains     []string        `json:"requiresDomains"`
	RequiresEnrichments []string        `json:"requiresEnrichments"`
	Schema              json.RawMessage `json:"schema,omitempty"`
}

// PluginManifest is the registration document POSTed to the orchestrator.
type PluginManifest struct {
	PluginCoordinates PluginCoordinates   `json:"pluginCoordinates"`
	DisplayName       string              `json:"displayName"`
	Description       string              `json:"description"`
	ActionKitVersion  string              `json:"actionKitVersion"`
	Dependencies      []PluginCoordinates `json:"dependencies"`
	Actions           []ActionManifest    `json:"actions"`
	Variables         json.RawMessage     `json:"variables,omitempty"`
	FlowPlans         []json.RawMessage   `json:"flowPlans,omitempty"`
}

// BuildManifest describes the plugin and its actions. Flow plans and variables
// are read from conf.FlowsDir when it exists.
func BuildManifest(conf *configpkg.Config, descs []Descriptor, logger logging.ServiceLogger) (PluginManifest, error) {
	if conf == nil {
		return PluginManifest{}, errors.New("actionflow: configuration is required to build the manifest")
	}
	m := PluginManifest{
		PluginCoordinates: PluginCoordinates{
			GroupID:    conf.PluginGroup,
			ArtifactID: conf.PluginArtifact,
			Version:    conf.PluginVersion,
		},
		DisplayName:      conf.PluginArtifact,
		Description:      conf.PluginDescription,
		ActionKitVersion: ActionKitVersion,
		Dependencies:     []PluginCoordinates{},
		Actions:          make([]ActionManifest, 0, len(descs)),
	}
	for _, d := range descs {
		m.Actions = append(m.Actions, ActionManifest{
			Name:                d.Name,
			Description:         d.Description,
			Type:                d.Kind,
			RequiresDomains:     nonNil(d.RequiresDomains),
			RequiresEnrichments: nonNil(d.RequiresEnrichments),
			Schema:              d.Schema,
		})
	}

	if conf.FlowsDir == "" {
		return m, nil
	}
	if _, err := os.Stat(conf.FlowsDir); errors.Is(err, fs.ErrNotExist) {
		logger.Info("No flows directory exists to load variables or flows", logging.LogFields{"dir": conf.FlowsDir})
		return m, nil
	}
	vars, plans, err := loadFlows(conf.FlowsDir, logger)
	if err != nil {
		return PluginManifest{}, err
	}
	m.Variables = vars
	m.FlowPlans = plans
	return m, nil
}

// loadFlows reads variables.json and every other *.json file as a flow plan.
// Files that are not valid JSON are skipped.
func loadFlows(dir string, logger logging.ServiceLogger) (json.RawMessage, []json.RawMessage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read flows directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var (
		vars  json.RawMessage
		plans = []json.RawMessage{}
	)
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", name, err)
		}
		if !jsoncodec.Valid(raw) {
			logger.Info("Skipping flow file that is not valid JSON", logging.LogFields{"file": name})
			continue
		}
		if name == variablesFile {
			vars = raw
			continue
		}
		plans = append(plans, raw)
	}
	return vars, plans, nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

// Registrar posts the plugin manifest to the orchestrator core.
type Registrar struct {
	CoreURL string
	Client  *http.Client
	Logger  logging.ServiceLogger
	// NewBackOff returns the retry policy for one registration. Defaults to
	// exponential backoff between 500ms and 2s.
	NewBackOff func() backoff.BackOff
}

// Register POSTs m to {CoreURL}/plugins, retrying transport failures and 5xx
// responses.
func (r *Registrar) Register(ctx context.Context, m PluginManifest) error {
	if r.CoreURL == "" {
		return errors.New("actionflow: core URL is required for registration")
	}
	body, err := jsoncodec.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode plugin manifest: %w", err)
	}
	url := strings.TrimRight(r.CoreURL, "/") + pluginsPath

	r.logger().Info("Registering plugin with core", logging.LogFields{
		"plugin":  m.PluginCoordinates.String(),
		"url":     url,
		"actions": len(m.Actions),
	})

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, r.post(ctx, url, body)
	},
		backoff.WithBackOff(r.backOff()),
		backoff.WithMaxTries(registrationTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			r.logger().Error("Plugin registration attempt failed", err, logging.LogFields{"retry_in": next.String()})
		}),
	)
	if err != nil {
		return fmt.Errorf("register plugin %s: %w", m.PluginCoordinates, err)
	}
	return nil
}

func (r *Registrar) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	err = fmt.Errorf("core responded %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	if resp.StatusCode < 500 {
		return backoff.Permanent(err)
	}
	return err
}

func (r *Registrar) backOff() backoff.BackOff {
	if r.NewBackOff != nil {
		return r.NewBackOff()
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return b
}

func (r *Registrar) logger() logging.ServiceLogger {
	if r.Logger == nil {
		return logging.NewNopServiceLogger()
	}
	return r.Logger
}
