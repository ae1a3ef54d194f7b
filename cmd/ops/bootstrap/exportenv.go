package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// envExport maps one SSM parameter to the environment variable the services
// read it from.
type envExport struct {
	EnvVar      string
	CategoryKey string
	Secret      bool
	Optional    bool
}

// exportTable lists every parameter the bootstrap protocol writes, in the
// order it appears in the .env file.
var exportTable = []envExport{
	{EnvVar: "DATABASE_URL", CategoryKey: "database/url", Secret: true},
	{EnvVar: "SCHEDULE_API_KEY", CategoryKey: "providers/schedule_api_key", Secret: true},
	{EnvVar: "STATUS_API_KEY", CategoryKey: "providers/status_api_key", Secret: true, Optional: true},
	{EnvVar: "HOME_AIRPORT", CategoryKey: "airport/home"},
	{EnvVar: "TARGET_ROUTES", CategoryKey: "airport/routes", Optional: true},
	{EnvVar: "RUNWAY_HEADINGS_JSON", CategoryKey: "airport/runway_headings"},
	{EnvVar: "AIRPORT_LOCATIONS_JSON", CategoryKey: "airport/locations"},
	{EnvVar: "SQS_RESCORE_QUEUE", CategoryKey: "aws/rescore_queue"},
}

// ExportEnvConfig parameterizes ExportEnvFile.
type ExportEnvConfig struct {
	OutputPath  string
	Environment string
	Region      string
	SSM         *SSMManager
	Stderr      io.Writer
}

// ExportEnvFile reads the bootstrap parameters back from SSM and writes a
// .env file for local development. Secrets are decrypted into the file, so
// it is written with owner-only permissions. Optional parameters that were
// skipped during bootstrap are omitted.
func ExportEnvFile(ctx context.Context, cfg ExportEnvConfig) error {
	if cfg.SSM == nil {
		return fmt.Errorf("export-env: SSM manager is required")
	}

	var b strings.Builder
	b.WriteString("# Generated by cmd/ops/bootstrap --export-env. Do not commit.\n")
	fmt.Fprintf(&b, "# Source environment: %s\n\n", cfg.Environment)

	b.WriteString("APP_ENV=local\n")
	b.WriteString("LOG_LEVEL=debug\n")
	fmt.Fprintf(&b, "AWS_REGION=%s\n\n", cfg.Region)

	for _, entry := range exportTable {
		path := cfg.SSM.Path(entry.CategoryKey)

		exists, err := cfg.SSM.ParameterExists(ctx, path)
		if err != nil {
			return fmt.Errorf("export-env: probing %s: %w", path, err)
		}
		if !exists {
			if entry.Optional {
				fmt.Fprintf(cfg.Stderr, "  %s not set in SSM, omitting %s\n", path, entry.EnvVar)
				continue
			}
			return fmt.Errorf("export-env: required parameter %s is missing", path)
		}

		value, err := cfg.SSM.GetParameterValue(ctx, path, entry.Secret)
		if err != nil {
			return fmt.Errorf("export-env: reading %s: %w", path, err)
		}
		fmt.Fprintf(&b, "%s=%s\n", entry.EnvVar, value)
	}

	if err := os.WriteFile(cfg.OutputPath, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("export-env: writing %s: %w", cfg.OutputPath, err)
	}
	return nil
}
