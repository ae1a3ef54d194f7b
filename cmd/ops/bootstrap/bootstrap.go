package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ParameterType selects the SSM storage type for a step.
type ParameterType int

const (
	// ParamSecureString is encrypted at rest with the account KMS key.
	ParamSecureString ParameterType = iota
	// ParamString is stored in plaintext.
	ParamString
)

// Step is one parameter the bootstrap protocol populates. CategoryKey is the
// path under the environment prefix, so "database/url" becomes
// "/{env}/flightrisk/database/url".
type Step struct {
	Label       string
	CategoryKey string
	ParamType   ParameterType
	Prompt      string

	// ValidateFn checks operator input before it is written. Nil accepts
	// the value as-is.
	ValidateFn func(ctx context.Context, input string) ValidationResult

	// IsSecret masks the input while the operator types it.
	IsSecret bool

	// Optional steps may be skipped with empty input and a confirmation.
	Optional bool

	Phase string
}

// maxRetries caps how often the operator can re-enter a rejected value.
const maxRetries = 5

// errSkipped signals that the operator declined to provide an optional value.
var errSkipped = errors.New("parameter skipped by operator")

// BuildInventory returns the ordered parameter list for a flightrisk
// deployment: provider credentials first, then the airport geography the
// engine and weather clients need, then AWS resources.
func BuildInventory(v *Validator) []Step {
	return []Step{
		{
			Label:       "Database URL",
			CategoryKey: "database/url",
			ParamType:   ParamSecureString,
			Prompt: `1. Provision a PostgreSQL instance and apply the schema.
   2. Paste the full postgres://... connection string here:`,
			ValidateFn: v.ValidateDatabaseURL,
			IsSecret:   true,
			Phase:      "External Accounts",
		},
		{
			Label:       "Schedule API Key",
			CategoryKey: "providers/schedule_api_key",
			ParamType:   ParamSecureString,
			Prompt: `1. Subscribe to the flight schedule API (RapidAPI).
   2. Copy your application key from the dashboard.
   3. Paste it here:`,
			ValidateFn: v.ValidateAPIKey,
			IsSecret:   true,
			Phase:      "External Accounts",
		},
		{
			Label:       "Status API Key (backup provider)",
			CategoryKey: "providers/status_api_key",
			ParamType:   ParamSecureString,
			Prompt: `Optional. A second flight-status provider is used to verify final
   statuses when the primary feed is stale. Paste the key, or press
   Enter to skip:`,
			ValidateFn: v.ValidateAPIKey,
			IsSecret:   true,
			Optional:   true,
			Phase:      "External Accounts",
		},
		{
			Label:       "Home Airport",
			CategoryKey: "airport/home",
			ParamType:   ParamString,
			Prompt:      `ICAO code of the airport this deployment serves (e.g. KPUW):`,
			ValidateFn:  v.ValidateICAO,
			Phase:       "Airport Geography",
		},
		{
			Label:       "Target Routes",
			CategoryKey: "airport/routes",
			ParamType:   ParamString,
			Prompt: `Comma-separated ICAO codes of the remote airports to track
   (e.g. KSEA,KDEN). Press Enter to track everything:`,
			ValidateFn: v.ValidateRouteList,
			Optional:   true,
			Phase:      "Airport Geography",
		},
		{
			Label:       "Runway Headings",
			CategoryKey: "airport/runway_headings",
			ParamType:   ParamString,
			Prompt: `JSON map of airport code to runway magnetic headings in degrees,
   used for crosswind calculation. Example:
   {"KPUW": [50, 230], "KSEA": [160, 340]}`,
			ValidateFn: v.ValidateRunwayJSON,
			Phase:      "Airport Geography",
		},
		{
			Label:       "Airport Locations",
			CategoryKey: "airport/locations",
			ParamType:   ParamString,
			Prompt: `JSON map of airport code to coordinates for the forecast provider.
   Example: {"KPUW": {"lat": 46.7439, "lon": -117.1095}}`,
			ValidateFn: v.ValidateLocationsJSON,
			Phase:      "Airport Geography",
		},
		{
			Label:       "Rescore Queue URL",
			CategoryKey: "aws/rescore_queue",
			ParamType:   ParamString,
			Prompt:      `URL of the SQS queue the poller and rescore worker share:`,
			ValidateFn:  v.ValidateQueueURL,
			Phase:       "AWS Resources",
		},
	}
}

// Runner drives the bootstrap protocol. Separated from main() so tests can
// inject the SSM manager and IO streams.
type Runner struct {
	SSM       *SSMManager
	Validator *Validator
	Stdin     io.Reader
	Stderr    io.Writer

	// A single shared scanner; multiple bufio.Scanner instances over the
	// same reader would consume ahead and lose input.
	scanner *bufio.Scanner

	// inventoryOverride lets tests run a reduced step list.
	inventoryOverride []Step
}

// NewRunner creates a Runner with production dependencies.
func NewRunner(sess *Session) *Runner {
	return &Runner{
		SSM:       NewSSMManager(sess),
		Validator: NewValidator(),
		Stdin:     os.Stdin,
		Stderr:    os.Stderr,
	}
}

// Run walks the inventory: probe SSM, prompt, validate, write. It prints a
// summary of every action taken at the end.
func (r *Runner) Run(ctx context.Context) error {
	inventory := r.inventoryOverride
	if inventory == nil {
		inventory = BuildInventory(r.Validator)
	}

	var currentPhase string
	var results []stepResult

	for i, step := range inventory {
		if step.Phase != currentPhase {
			currentPhase = step.Phase
			fmt.Fprintf(r.Stderr, "\n=== %s ===\n", currentPhase)
		}

		fmt.Fprintf(r.Stderr, "\n[%d/%d] %s\n", i+1, len(inventory), step.Label)

		result, err := r.processStep(ctx, step)
		if err != nil {
			return fmt.Errorf("step %q failed: %w", step.Label, err)
		}
		results = append(results, result)
	}

	r.printSummary(results)
	return nil
}

type stepResult struct {
	Label  string
	Action string // "written", "skipped", "overwritten"
	Path   string
}

func (r *Runner) processStep(ctx context.Context, step Step) (stepResult, error) {
	path := r.SSM.Path(step.CategoryKey)
	result := stepResult{Label: step.Label, Path: path}

	exists, err := r.SSM.ParameterExists(ctx, path)
	if err != nil {
		return result, fmt.Errorf("checking existence of %s: %w", path, err)
	}

	if exists {
		fmt.Fprintf(r.Stderr, "  Parameter already exists: %s\n", path)
		choice, err := r.promptSkipOrOverwrite()
		if err != nil {
			return result, fmt.Errorf("reading skip/overwrite choice: %w", err)
		}
		if choice == "skip" {
			fmt.Fprintf(r.Stderr, "  Skipped.\n")
			result.Action = "skipped"
			return result, nil
		}
	}

	value, err := r.promptAndValidate(ctx, step)
	if errors.Is(err, errSkipped) {
		fmt.Fprintf(r.Stderr, "  Skipped.\n")
		result.Action = "skipped"
		return result, nil
	}
	if err != nil {
		return result, err
	}

	if step.ParamType == ParamSecureString {
		err = r.SSM.PutSecret(ctx, path, value, exists)
	} else {
		err = r.SSM.PutString(ctx, path, value)
	}
	if err != nil {
		return result, fmt.Errorf("writing SSM parameter %s: %w", path, err)
	}

	if exists {
		result.Action = "overwritten"
	} else {
		result.Action = "written"
	}
	fmt.Fprintf(r.Stderr, "  Stored: %s\n", path)
	return result, nil
}

// promptAndValidate shows the step prompt and reads input until it
// validates, the operator skips an optional step, or retries run out.
func (r *Runner) promptAndValidate(ctx context.Context, step Step) (string, error) {
	fmt.Fprintf(r.Stderr, "  %s\n", step.Prompt)

	for attempt := 1; attempt <= maxRetries; attempt++ {
		fmt.Fprint(r.Stderr, "  > ")

		input, err := r.readInput(step.IsSecret)
		if err != nil {
			return "", fmt.Errorf("reading input: %w", err)
		}
		input = strings.TrimSpace(input)

		if input == "" {
			if !step.Optional {
				fmt.Fprintf(r.Stderr, "  A value is required.\n")
				continue
			}
			confirmed, err := r.confirmSkip()
			if err != nil {
				return "", err
			}
			if confirmed {
				return "", errSkipped
			}
			continue
		}

		if step.ValidateFn != nil {
			res := step.ValidateFn(ctx, input)
			if !res.Valid {
				fmt.Fprintf(r.Stderr, "  Invalid: %s (attempt %d/%d)\n", res.Message, attempt, maxRetries)
				continue
			}
			fmt.Fprintf(r.Stderr, "  OK: %s\n", res.Message)
		}
		return input, nil
	}

	return "", fmt.Errorf("no valid value after %d attempts", maxRetries)
}

// readInput reads one line, masking the echo for secrets when stdin is a
// real terminal.
func (r *Runner) readInput(secret bool) (string, error) {
	if secret {
		if f, ok := r.Stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			raw, err := term.ReadPassword(int(f.Fd()))
			fmt.Fprintln(r.Stderr)
			if err != nil {
				return "", err
			}
			return string(raw), nil
		}
	}
	return r.readLine()
}

func (r *Runner) readLine() (string, error) {
	if r.scanner == nil {
		r.scanner = bufio.NewScanner(r.Stdin)
	}
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

func (r *Runner) confirmSkip() (bool, error) {
	fmt.Fprint(r.Stderr, "  Skip this parameter? [y/N]: ")
	line, err := r.readLine()
	if err != nil {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func (r *Runner) promptSkipOrOverwrite() (string, error) {
	for {
		fmt.Fprint(r.Stderr, "  [s]kip or [o]verwrite? ")
		line, err := r.readLine()
		if err != nil {
			return "", err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "s", "skip":
			return "skip", nil
		case "o", "overwrite":
			return "overwrite", nil
		}
		fmt.Fprintf(r.Stderr, "  Please answer 's' or 'o'.\n")
	}
}

func (r *Runner) printSummary(results []stepResult) {
	fmt.Fprintln(r.Stderr)
	fmt.Fprintln(r.Stderr, "------------------------------------------------------------")
	fmt.Fprintln(r.Stderr, "  Summary")
	fmt.Fprintln(r.Stderr, "------------------------------------------------------------")
	for _, res := range results {
		fmt.Fprintf(r.Stderr, "  %-12s %s (%s)\n", res.Action, res.Label, res.Path)
	}
	fmt.Fprintln(r.Stderr, "------------------------------------------------------------")
}
