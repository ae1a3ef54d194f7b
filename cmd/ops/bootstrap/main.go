// Package main implements the bootstrap CLI for a flightrisk deployment.
//
// The tool walks an operator through seeding AWS SSM Parameter Store with
// everything the services read at startup: provider credentials, the
// database URL, and the airport geography. It probes for existing values
// first so re-running it is safe.
//
// Usage:
//
//	go run ./cmd/ops/bootstrap --env=dev
//	go run ./cmd/ops/bootstrap --env=dev --export-env
//	go run ./cmd/ops/bootstrap --env=prod --profile=flightrisk-prod --region=us-west-2
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

var validEnvironments = map[string]bool{
	"dev":     true,
	"staging": true,
	"prod":    true,
}

// Session holds the AWS identity and configuration resolved during startup,
// threaded through the later bootstrap phases.
type Session struct {
	Environment string
	AWSRegion   string
	AccountID   string
	CallerARN   string
	AWSConfig   aws.Config
	Logger      *slog.Logger
}

func main() {
	envFlag := flag.String("env", "", "Target environment (dev/staging/prod) [required]")
	profileFlag := flag.String("profile", "", "AWS CLI profile (default: default credential chain)")
	regionFlag := flag.String("region", "us-west-2", "AWS region")
	exportEnvFlag := flag.Bool("export-env", false, "After bootstrap, write SSM values to a .env file for local development")
	exportEnvPath := flag.String("export-env-path", ".env", "Path for the exported .env file")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "FlightRisk Bootstrap\n\n")
		fmt.Fprintf(os.Stderr, "Seeds AWS SSM Parameter Store with the configuration the\n")
		fmt.Fprintf(os.Stderr, "API, poller, and rescore worker read at startup.\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  bootstrap --env=dev [--profile=NAME] [--region=REGION] [--export-env]\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if *envFlag == "" {
		fmt.Fprintf(os.Stderr, "error: --env is required\n\n")
		flag.Usage()
		os.Exit(1)
	}
	if !validEnvironments[*envFlag] {
		fmt.Fprintf(os.Stderr, "error: invalid environment %q (must be dev, staging, or prod)\n", *envFlag)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sess, err := initializeSession(ctx, *envFlag, *profileFlag, *regionFlag, logger)
	if err != nil {
		logger.Error("initialization failed", "error", err)
		os.Exit(1)
	}

	if sess.Environment == "prod" && !confirmProduction(sess) {
		fmt.Fprintln(os.Stderr, "Aborted. No changes were made.")
		os.Exit(0)
	}

	printBanner(sess)

	runner := NewRunner(sess)
	if err := runner.Run(ctx); err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}

	logger.Info("bootstrap completed",
		"env", sess.Environment,
		"account", sess.AccountID,
		"region", sess.AWSRegion,
	)

	if *exportEnvFlag {
		if err := ExportEnvFile(ctx, ExportEnvConfig{
			OutputPath:  *exportEnvPath,
			Environment: sess.Environment,
			Region:      sess.AWSRegion,
			SSM:         runner.SSM,
			Stderr:      os.Stderr,
		}); err != nil {
			logger.Error("failed to export .env file", "error", err)
			os.Exit(1)
		}
		logger.Info(".env file exported", "path", *exportEnvPath)
	}
}

// initializeSession loads the AWS SDK configuration and verifies the active
// identity with STS before anything is written.
func initializeSession(ctx context.Context, env, profile, region string, logger *slog.Logger) (*Session, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	identityCtx, identityCancel := context.WithTimeout(ctx, 10*time.Second)
	defer identityCancel()

	identity, err := sts.NewFromConfig(cfg).GetCallerIdentity(identityCtx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("verifying AWS identity: %w (profile %q, region %q)", err, profile, region)
	}

	sess := &Session{
		Environment: env,
		AWSRegion:   region,
		AccountID:   aws.ToString(identity.Account),
		CallerARN:   aws.ToString(identity.Arn),
		AWSConfig:   cfg,
		Logger:      logger,
	}

	logger.Info("AWS identity verified",
		"account_id", sess.AccountID,
		"arn", sess.CallerARN,
		"region", region,
	)
	return sess, nil
}

// confirmProduction requires the operator to type "yes" before touching
// production parameters.
func confirmProduction(sess *Session) bool {
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "============================================================")
	fmt.Fprintln(os.Stderr, "  WARNING: You are targeting the PRODUCTION environment")
	fmt.Fprintln(os.Stderr, "============================================================")
	fmt.Fprintf(os.Stderr, "  Account: %s\n", sess.AccountID)
	fmt.Fprintf(os.Stderr, "  Region:  %s\n", sess.AWSRegion)
	fmt.Fprintf(os.Stderr, "  ARN:     %s\n", sess.CallerARN)
	fmt.Fprintln(os.Stderr, "============================================================")
	fmt.Fprint(os.Stderr, "\nType 'yes' to continue: ")

	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(scanner.Text()), "yes")
}

func printBanner(sess *Session) {
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "------------------------------------------------------------")
	fmt.Fprintln(os.Stderr, "  FlightRisk Bootstrap")
	fmt.Fprintln(os.Stderr, "------------------------------------------------------------")
	fmt.Fprintf(os.Stderr, "  Environment:  %s\n", sess.Environment)
	fmt.Fprintf(os.Stderr, "  AWS Account:  %s\n", sess.AccountID)
	fmt.Fprintf(os.Stderr, "  AWS Region:   %s\n", sess.AWSRegion)
	fmt.Fprintf(os.Stderr, "  Identity:     %s\n", sess.CallerARN)
	fmt.Fprintf(os.Stderr, "  SSM Prefix:   /%s/flightrisk/\n", sess.Environment)
	fmt.Fprintln(os.Stderr, "------------------------------------------------------------")
	fmt.Fprintln(os.Stderr)
}
