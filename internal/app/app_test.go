package app

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/chefboot-go/internal/config"
	"github.com/John-Robertt/chefboot-go/internal/credential"
	"github.com/John-Robertt/chefboot-go/internal/fetch"
	"github.com/John-Robertt/chefboot-go/internal/resolve"
	"github.com/John-Robertt/chefboot-go/internal/statement"
)

func writeKey(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	text, err := credential.PEM(key)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "key.pem")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o600))
	return path
}

func baseConfig(t *testing.T) *config.Config {
	return &config.Config{
		Chef: config.ChefConfig{
			ServerURL: "https://chef.example.com",
			Validator: config.KeyConfig{Name: "validator1", KeyPath: writeKey(t)},
			Install:   config.InstallConfig{Script: "echo installing"},
		},
		Groups: config.GroupsConfig{
			Source: config.SourceStatic,
			Static: map[string]any{
				"web": map[string]any{"run_list": []any{"recipe[nginx]"}, "environment": "prod"},
			},
			CacheTTL: time.Minute,
		},
	}
}

func TestNew_StaticEndToEnd(t *testing.T) {
	a, err := New(context.Background(), baseConfig(t))
	require.NoError(t, err)
	require.NotNil(t, a.Cache)
	assert.Nil(t, a.Chef)

	st, err := a.Synth.Synthesize(context.Background(), "web")
	require.NoError(t, err)
	script, err := statement.Script(st, statement.Unix)
	require.NoError(t, err)
	assert.Contains(t, script, "set -eo pipefail\necho installing\n)\nchefboot_install\n[ \"$?\" -eq 0 ] || exit 1\n")
	assert.Contains(t, script, `chef_server_url "https://chef.example.com"`)
	assert.Contains(t, script, "chef-client -j /etc/chef/first-boot.json -E prod\n")
}

func TestReload_SwapsEndpoint(t *testing.T) {
	cfg := baseConfig(t)
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)

	cfg.Chef.ServerURL = "https://chef2.example.com"
	require.NoError(t, a.Reload(cfg))

	st, err := a.Synth.Synthesize(context.Background(), "web")
	require.NoError(t, err)
	out, err := st.Render(statement.Unix)
	require.NoError(t, err)
	assert.Contains(t, out, `chef_server_url "https://chef2.example.com"`)

	cfg.Chef.ServerURL = "not a url"
	assert.Error(t, a.Reload(cfg))
}

func TestNew_WithClient(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Chef.Client = config.KeyConfig{Name: "ops", KeyPath: writeKey(t)}
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, a.Chef)
}

func TestNew_MissingValidatorKey(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Chef.Validator.KeyPath = filepath.Join(t.TempDir(), "missing.pem")
	_, err := New(context.Background(), cfg)
	require.Error(t, err)
}

func TestNewResolver_HTTPSendsHeaders(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Token") != "t0k" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte(`{"run_list":[]}`))
	}))
	defer ts.Close()

	cfg := baseConfig(t)
	cfg.Groups = config.GroupsConfig{Source: config.SourceHTTP, URL: ts.URL, Headers: map[string]string{"X-Token": "t0k"}}
	cfg.Fetch = config.FetchConfig{RatePerSecond: 100, Burst: 1}

	r, err := NewResolver(cfg, fetch.Options{})
	require.NoError(t, err)
	raw, err := r.Resolve(context.Background(), "web")
	require.NoError(t, err)
	assert.JSONEq(t, `{"run_list":[]}`, string(raw))
}

func TestNewResolver_Kinds(t *testing.T) {
	cfg := baseConfig(t)

	cfg.Groups = config.GroupsConfig{Source: config.SourceDir, Dir: t.TempDir()}
	r, err := NewResolver(cfg, fetch.Options{})
	require.NoError(t, err)
	assert.IsType(t, resolve.Dir{}, r)

	cfg.Groups = config.GroupsConfig{Source: config.SourceS3, S3: config.S3Config{Bucket: "boot", Region: "eu-central-1"}}
	r, err = NewResolver(cfg, fetch.Options{})
	require.NoError(t, err)
	assert.IsType(t, resolve.S3{}, r)

	cfg.Groups = config.GroupsConfig{Source: "ldap"}
	_, err = NewResolver(cfg, fetch.Options{})
	assert.Error(t, err)
}
