// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package env

import (
	"testing"

	"go.astrophena.name/base/testutil"
)

func TestParseNodeEnv(t *testing.T) {
	cases := map[string]struct {
		in     string
		mode   Mode
		want   NodeEnv
		wantOK bool
	}{
		"empty in serve mode": {"", Serve, Development, false},
		"empty in build mode": {"", Build, Production, false},
		"invalid":             {"prod", Build, Production, false},
		"test":                {"test", Serve, Test, true},
		"production in serve": {"production", Serve, Production, true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, ok := ParseNodeEnv(tc.in, tc.mode)
			testutil.AssertEqual(t, got, tc.want)
			testutil.AssertEqual(t, ok, tc.wantOK)
		})
	}
}

func TestParseDeployStage(t *testing.T) {
	cases := map[string]struct {
		in      string
		nodeEnv NodeEnv
		want    DeployStage
		wantOK  bool
	}{
		"empty":     {"", Development, StageDevelopment, false},
		"invalid":   {"qa", Production, StageProduction, false},
		"storybook": {"storybook", Development, StageStorybook, true},
		"staging":   {"staging", Production, StageStaging, true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, ok := ParseDeployStage(tc.in, tc.nodeEnv)
			testutil.AssertEqual(t, got, tc.want)
			testutil.AssertEqual(t, ok, tc.wantOK)
		})
	}
}

func TestProcess(t *testing.T) {
	environ := []string{
		"HOME=/home/user",
		"REACT_APP_API=https://example.com/api?a=b",
		"REACT_APP_EMPTY=",
		"NODE_ENV=ignored",
		"REACT_APP_API=https://example.org",
		"malformed",
	}

	got, err := Process(DefaultPrefix, Development, environ)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"env":{"NODE_ENV":"development","REACT_APP_API":"https://example.org","REACT_APP_EMPTY":""}}`
	testutil.AssertEqual(t, got, want)

	got, err = Process("VITE_", Production, environ)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, got, `{"env":{"NODE_ENV":"production"}}`)
}

func TestProcessNoPrefix(t *testing.T) {
	if _, err := Process("", Development, nil); err == nil {
		t.Fatal("Process: want error for an empty prefix, got nil")
	}
}

func TestResolve(t *testing.T) {
	cases := map[string]struct {
		mode      Mode
		vars      map[string]string
		wantNode  NodeEnv
		wantStage DeployStage
	}{
		"nothing set when serving":  {Serve, nil, Development, StageDevelopment},
		"nothing set when building": {Build, nil, Production, StageProduction},
		"stage follows node env":    {Build, map[string]string{"NODE_ENV": "test"}, Test, StageTest},
		"explicit stage":            {Build, map[string]string{"DEPLOY_STAGE": "staging"}, Production, StageStaging},
		"invalid values":            {Serve, map[string]string{"NODE_ENV": "dev", "DEPLOY_STAGE": "qa"}, Development, StageDevelopment},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			nodeEnv, stage := Resolve(tc.mode, func(k string) string { return tc.vars[k] })
			testutil.AssertEqual(t, nodeEnv, tc.wantNode)
			testutil.AssertEqual(t, stage, tc.wantStage)
		})
	}
}
