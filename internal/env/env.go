// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package env contains definitions for the environments in which an app can
// be built, and computes the environment the app sees at runtime.
package env

import (
	"encoding/json"
	"errors"
	"strings"
)

// Mode is the way the app is bundled.
type Mode string

// Available modes.
const (
	Build = Mode("build")
	Serve = Mode("serve")
)

// NodeEnv is the value of NODE_ENV exposed to the app.
type NodeEnv string

// Available NODE_ENV values.
const (
	Production  = NodeEnv("production")
	Development = NodeEnv("development")
	Test        = NodeEnv("test")
)

// DefaultNodeEnv returns NODE_ENV used when none or an invalid one is set.
func (m Mode) DefaultNodeEnv() NodeEnv {
	if m == Serve {
		return Development
	}
	return Production
}

// ParseNodeEnv returns s as a NodeEnv, falling back to the default of mode
// if s is empty or unknown. The second result reports whether s was used.
func ParseNodeEnv(s string, mode Mode) (NodeEnv, bool) {
	switch v := NodeEnv(s); v {
	case Production, Development, Test:
		return v, true
	}
	return mode.DefaultNodeEnv(), false
}

// DeployStage is the value of DEPLOY_STAGE, a finer-grained NODE_ENV.
type DeployStage string

// Available deploy stages.
const (
	StageDevelopment = DeployStage("development")
	StageStorybook   = DeployStage("storybook")
	StageTest        = DeployStage("test")
	StageStaging     = DeployStage("staging")
	StageProduction  = DeployStage("production")
)

// ParseDeployStage returns s as a DeployStage, falling back to nodeEnv if s
// is empty or unknown. The second result reports whether s was used.
func ParseDeployStage(s string, nodeEnv NodeEnv) (DeployStage, bool) {
	switch v := DeployStage(s); v {
	case StageDevelopment, StageStorybook, StageTest, StageStaging, StageProduction:
		return v, true
	}
	return DeployStage(nodeEnv), false
}

// Resolve reads NODE_ENV and DEPLOY_STAGE with getenv and applies the
// fallbacks for mode.
func Resolve(mode Mode, getenv func(string) string) (NodeEnv, DeployStage) {
	nodeEnv, _ := ParseNodeEnv(getenv("NODE_ENV"), mode)
	stage, _ := ParseDeployStage(getenv("DEPLOY_STAGE"), nodeEnv)
	return nodeEnv, stage
}

// DefaultPrefix is the default prefix of variables exposed to the app.
const DefaultPrefix = "REACT_APP"

var errNoPrefix = errors.New("env: prefix is not defined")

// Pick returns the variables from environ, in "key=value" form, whose keys
// start with prefix. Later duplicates win.
func Pick(prefix string, environ []string) (map[string]string, error) {
	if prefix == "" {
		return nil, errNoPrefix
	}
	picked := make(map[string]string)
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, prefix) {
			continue
		}
		picked[k] = v
	}
	return picked, nil
}

// Process returns the JSON object that replaces the global "process" in the
// app: {"env": {...picked variables, "NODE_ENV": nodeEnv}}.
func Process(prefix string, nodeEnv NodeEnv, environ []string) (string, error) {
	vars, err := Pick(prefix, environ)
	if err != nil {
		return "", err
	}
	vars["NODE_ENV"] = string(nodeEnv)

	b, err := json.Marshal(struct {
		Env map[string]string `json:"env"`
	}{vars})
	if err != nil {
		return "", err
	}
	return string(b), nil
}
