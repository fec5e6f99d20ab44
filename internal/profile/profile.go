// Package profile loads target environment profiles from an HCL file. A
// profile names one target instance and the application to deploy into:
//
//	instance "jdx3" {
//	  base_url        = "https://jdx3.example.com/jw"
//	  api_id          = "fc_api"
//	  api_key         = "..."
//	  timeout_seconds = 30
//	  verify_ssl      = true
//
//	  app {
//	    id      = "farmersPortal"
//	    version = "1"
//	  }
//	}
//
// The API key may be omitted from the file and supplied via the
// FORMDEPLOY_API_KEY environment variable instead.
package profile

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/aarelaponin/joget-deployment-toolkit/internal/ctxlog"
	"github.com/aarelaponin/joget-deployment-toolkit/internal/target"
)

// apiKeyEnvVar overrides the api_key attribute when set.
const apiKeyEnvVar = "FORMDEPLOY_API_KEY"

type fileRoot struct {
	Instances []*instanceBlock `hcl:"instance,block"`
}

type instanceBlock struct {
	Name           string    `hcl:"name,label"`
	BaseURL        string    `hcl:"base_url"`
	APIID          string    `hcl:"api_id"`
	APIKey         string    `hcl:"api_key,optional"`
	TimeoutSeconds int       `hcl:"timeout_seconds,optional"`
	VerifySSL      *bool     `hcl:"verify_ssl,optional"`
	App            *appBlock `hcl:"app,block"`
}

type appBlock struct {
	ID      string `hcl:"id"`
	Version string `hcl:"version,optional"`
}

// Profile is one resolved target environment.
type Profile struct {
	Name   string
	Target target.Config
}

// Load parses the profiles file and returns the named instance profile.
func Load(ctx context.Context, path, name string) (*Profile, error) {
	logger := ctxlog.FromContext(ctx)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing profiles file %s: %s", path, diags.Error())
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("decoding profiles file %s: %s", path, diags.Error())
	}
	logger.Debug("profiles loaded", "path", path, "instances", len(root.Instances))

	for _, inst := range root.Instances {
		if inst.Name != name {
			continue
		}
		return resolve(inst)
	}

	names := make([]string, 0, len(root.Instances))
	for _, inst := range root.Instances {
		names = append(names, inst.Name)
	}
	return nil, fmt.Errorf("no instance %q in %s (have: %s)", name, path, strings.Join(names, ", "))
}

func resolve(inst *instanceBlock) (*Profile, error) {
	if !strings.HasPrefix(inst.BaseURL, "http://") && !strings.HasPrefix(inst.BaseURL, "https://") {
		return nil, fmt.Errorf("instance %q: base_url must start with http:// or https://", inst.Name)
	}
	if inst.App == nil || inst.App.ID == "" {
		return nil, fmt.Errorf("instance %q: app block with id is required", inst.Name)
	}

	apiKey := inst.APIKey
	if env := os.Getenv(apiKeyEnvVar); env != "" {
		apiKey = env
	}
	if apiKey == "" {
		return nil, fmt.Errorf("instance %q: api_key not set and %s is empty", inst.Name, apiKeyEnvVar)
	}

	timeout := 30 * time.Second
	if inst.TimeoutSeconds > 0 {
		timeout = time.Duration(inst.TimeoutSeconds) * time.Second
	}
	verify := true
	if inst.VerifySSL != nil {
		verify = *inst.VerifySSL
	}
	version := inst.App.Version
	if version == "" {
		version = "1"
	}

	return &Profile{
		Name: inst.Name,
		Target: target.Config{
			BaseURL:    strings.TrimRight(inst.BaseURL, "/"),
			APIID:      inst.APIID,
			APIKey:     apiKey,
			AppID:      inst.App.ID,
			AppVersion: version,
			Timeout:    timeout,
			VerifySSL:  verify,
		},
	}, nil
}
