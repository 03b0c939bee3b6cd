// Package bootscript turns a group name into the statement that provisions a
// node to join that group: install the agent, write its config, credential
// and first-boot payload, then run it.
package bootscript

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/John-Robertt/chefboot-go/internal/credential"
	"github.com/John-Robertt/chefboot-go/internal/endpoint"
	"github.com/John-Robertt/chefboot-go/internal/jsonball"
	"github.com/John-Robertt/chefboot-go/internal/model"
	"github.com/John-Robertt/chefboot-go/internal/resolve"
	"github.com/John-Robertt/chefboot-go/internal/statement"
)

// Templated target paths; tokens resolve when the statement is rendered.
const (
	ConfigDir     = "{root}etc{fs}chef"
	ClientRB      = ConfigDir + "{fs}client.rb"
	ValidationPEM = ConfigDir + "{fs}validation.pem"
	FirstBootJSON = ConfigDir + "{fs}first-boot.json"
)

// EnvironmentKey is the reserved group config key passed to the agent as -E.
const EnvironmentKey = "environment"

var environmentPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Synthesizer holds the collaborators. It keeps no per-call state and is safe
// for concurrent use.
type Synthesizer struct {
	Resolver  resolve.Resolver
	Codec     jsonball.Codec // nil means jsonball.JSON
	Endpoint  endpoint.Source
	Validator *credential.ValidatorIdentity
	Install   statement.Statement
}

// Synthesize returns, unexecuted, a List of six statements: the install
// prelude, create-dir, client.rb, validation.pem, first-boot.json and the
// agent run.
func (s *Synthesizer) Synthesize(ctx context.Context, group string) (statement.List, error) {
	if strings.TrimSpace(group) == "" {
		return statement.List{}, newError(model.CodeInvalidArgument, group, "group must not be empty", nil)
	}
	if !s.Validator.Complete() {
		return statement.List{}, newError(model.CodeConfigError, group, "validator identity requires both a name and a private key", nil)
	}
	if s.Resolver == nil || s.Endpoint == nil || s.Install == nil {
		return statement.List{}, newError(model.CodeConfigError, group, "synthesizer is missing a resolver, endpoint or install statement", nil)
	}
	codec := s.Codec
	if codec == nil {
		codec = jsonball.JSON{}
	}

	raw, err := s.Resolver.Resolve(ctx, group)
	if err != nil {
		return statement.List{}, newError(model.CodeResolveFailed, group, "failed to resolve group configuration", err)
	}
	cfg, err := codec.Decode(string(raw))
	if err != nil {
		return statement.List{}, newError(model.CodeMalformedConfig, group, "group configuration is not a JSON object", err)
	}
	env, hasEnv, err := environment(cfg)
	if err != nil {
		return statement.List{}, newError(model.CodeMalformedConfig, group, "invalid environment value", err)
	}
	firstBoot, err := codec.Encode(raw)
	if err != nil {
		return statement.List{}, newError(model.CodeMalformedConfig, group, "group configuration cannot be re-encoded", err)
	}

	chefServer := s.Endpoint.Endpoint()
	if chefServer == nil {
		return statement.List{}, newError(model.CodeConfigError, group, "no coordination service endpoint configured", nil)
	}
	pemText, err := credential.PEM(s.Validator.Key)
	if err != nil {
		return statement.List{}, newError(model.CodeConfigError, group, "validator key cannot be PEM encoded", err)
	}

	clientRB := []string{
		"require 'rubygems'",
		"require 'ohai'",
		"o = Ohai::System.new",
		"o.all_plugins",
		"node_name " + rubyString(group+"-") + " + o[:ipaddress]",
		"log_level :info",
		"log_location STDOUT",
		"validation_client_name " + rubyString(s.Validator.Name),
		"chef_server_url " + rubyString(chefServer.String()),
	}

	options := []string{"-j", FirstBootJSON}
	if hasEnv {
		options = append(options, "-E", env)
	}

	return statement.NewList(
		statement.NewExitOnFailure(s.Install),
		statement.NewExec("{md} "+ConfigDir),
		statement.NewAppendFile(ClientRB, clientRB),
		statement.NewAppendFile(ValidationPEM, credential.Lines(pemText)),
		statement.NewAppendFile(FirstBootJSON, []string{firstBoot}),
		statement.NewExec("chef-client "+strings.Join(options, " ")),
	), nil
}

// environment extracts the reserved key as a plain option value. Values are
// restricted to what the agent accepts as an environment name, so the option
// never needs shell quoting.
func environment(cfg jsonball.Config) (string, bool, error) {
	raw, ok := cfg[EnvironmentKey]
	if !ok {
		return "", false, nil
	}
	v, err := jsonball.OptionValue(raw)
	if err != nil {
		return "", false, err
	}
	if !environmentPattern.MatchString(v) {
		return "", false, fmt.Errorf("environment %q must match %s", v, environmentPattern)
	}
	return v, true, nil
}

var rubyEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, `#{`, `\#{`)

func rubyString(s string) string { return `"` + rubyEscaper.Replace(s) + `"` }
