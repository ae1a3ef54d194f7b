package main

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSSM simulates Parameter Store with an in-memory map.
type mockSSM struct {
	params   map[string]string
	putCalls []ssm.PutParameterInput
	getErr   error
	putErr   error
}

func (m *mockSSM) GetParameter(_ context.Context, params *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	value, ok := m.params[aws.ToString(params.Name)]
	if !ok {
		return nil, &ssmtypes.ParameterNotFound{}
	}
	return &ssm.GetParameterOutput{
		Parameter: &ssmtypes.Parameter{Value: aws.String(value)},
	}, nil
}

func (m *mockSSM) PutParameter(_ context.Context, params *ssm.PutParameterInput, _ ...func(*ssm.Options)) (*ssm.PutParameterOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.putCalls = append(m.putCalls, *params)
	if m.params == nil {
		m.params = make(map[string]string)
	}
	m.params[aws.ToString(params.Name)] = aws.ToString(params.Value)
	return &ssm.PutParameterOutput{}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestRunner wires a Runner around the mock with scripted stdin lines.
func newTestRunner(client *mockSSM, stdin string, steps []Step) *Runner {
	return &Runner{
		SSM:               NewSSMManagerWithClient(client, "dev", testLogger()),
		Validator:         NewValidatorWithDeps(&stubConnector{}),
		Stdin:             strings.NewReader(stdin),
		Stderr:            io.Discard,
		inventoryOverride: steps,
	}
}

func alwaysValid(context.Context, string) ValidationResult {
	return ValidationResult{Valid: true, Message: "ok"}
}

func TestRunner_Run_WritesAllSteps(t *testing.T) {
	client := &mockSSM{}
	steps := []Step{
		{
			Label:       "API Key",
			CategoryKey: "providers/schedule_api_key",
			ParamType:   ParamSecureString,
			ValidateFn:  alwaysValid,
			IsSecret:    true,
			Phase:       "External Accounts",
		},
		{
			Label:       "Home Airport",
			CategoryKey: "airport/home",
			ParamType:   ParamString,
			ValidateFn:  alwaysValid,
			Phase:       "Airport Geography",
		},
	}

	r := newTestRunner(client, "super-secret-key\nKPUW\n", steps)
	require.NoError(t, r.Run(context.Background()))

	require.Len(t, client.putCalls, 2)

	secret := client.putCalls[0]
	assert.Equal(t, "/dev/flightrisk/providers/schedule_api_key", aws.ToString(secret.Name))
	assert.Equal(t, ssmtypes.ParameterTypeSecureString, secret.Type)
	assert.Equal(t, "super-secret-key", aws.ToString(secret.Value))
	assert.False(t, aws.ToBool(secret.Overwrite), "fresh parameter is not an overwrite")

	plain := client.putCalls[1]
	assert.Equal(t, "/dev/flightrisk/airport/home", aws.ToString(plain.Name))
	assert.Equal(t, ssmtypes.ParameterTypeString, plain.Type)
	assert.Equal(t, "KPUW", aws.ToString(plain.Value))
}

func TestRunner_ProcessStep_SkipsExisting(t *testing.T) {
	client := &mockSSM{params: map[string]string{
		"/dev/flightrisk/airport/home": "KPUW",
	}}
	step := Step{Label: "Home Airport", CategoryKey: "airport/home", ParamType: ParamString}

	r := newTestRunner(client, "s\n", []Step{step})
	result, err := r.processStep(context.Background(), step)

	require.NoError(t, err)
	assert.Equal(t, "skipped", result.Action)
	assert.Empty(t, client.putCalls)
}

func TestRunner_ProcessStep_OverwritesExisting(t *testing.T) {
	client := &mockSSM{params: map[string]string{
		"/dev/flightrisk/database/url": "postgres://old",
	}}
	step := Step{
		Label:       "Database URL",
		CategoryKey: "database/url",
		ParamType:   ParamSecureString,
		ValidateFn:  alwaysValid,
	}

	r := newTestRunner(client, "o\npostgres://new\n", []Step{step})
	result, err := r.processStep(context.Background(), step)

	require.NoError(t, err)
	assert.Equal(t, "overwritten", result.Action)
	require.Len(t, client.putCalls, 1)
	assert.True(t, aws.ToBool(client.putCalls[0].Overwrite))
	assert.Equal(t, "postgres://new", aws.ToString(client.putCalls[0].Value))
}

func TestRunner_ProcessStep_OptionalSkipOnEmptyInput(t *testing.T) {
	client := &mockSSM{}
	step := Step{
		Label:       "Status API Key",
		CategoryKey: "providers/status_api_key",
		ParamType:   ParamSecureString,
		ValidateFn:  alwaysValid,
		Optional:    true,
	}

	// Empty input, then confirm the skip.
	r := newTestRunner(client, "\ny\n", []Step{step})
	result, err := r.processStep(context.Background(), step)

	require.NoError(t, err)
	assert.Equal(t, "skipped", result.Action)
	assert.Empty(t, client.putCalls)
}

func TestRunner_PromptAndValidate_RetriesUntilValid(t *testing.T) {
	client := &mockSSM{}
	calls := 0
	step := Step{
		Label:       "Home Airport",
		CategoryKey: "airport/home",
		ParamType:   ParamString,
		ValidateFn: func(context.Context, string) ValidationResult {
			calls++
			if calls < 3 {
				return ValidationResult{Valid: false, Message: "nope"}
			}
			return ValidationResult{Valid: true, Message: "ok"}
		},
	}

	r := newTestRunner(client, "bad\nworse\nKPUW\n", []Step{step})
	value, err := r.promptAndValidate(context.Background(), step)

	require.NoError(t, err)
	assert.Equal(t, "KPUW", value)
	assert.Equal(t, 3, calls)
}

func TestRunner_PromptAndValidate_GivesUpAfterMaxRetries(t *testing.T) {
	step := Step{
		Label:       "Home Airport",
		CategoryKey: "airport/home",
		ParamType:   ParamString,
		ValidateFn: func(context.Context, string) ValidationResult {
			return ValidationResult{Valid: false, Message: "never"}
		},
	}

	r := newTestRunner(&mockSSM{}, strings.Repeat("bad\n", maxRetries+1), []Step{step})
	_, err := r.promptAndValidate(context.Background(), step)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no valid value")
}

func TestBuildInventory_CoversServiceConfiguration(t *testing.T) {
	inventory := BuildInventory(NewValidatorWithDeps(&stubConnector{}))

	keys := make([]string, 0, len(inventory))
	for _, step := range inventory {
		keys = append(keys, step.CategoryKey)
	}

	assert.Contains(t, keys, "database/url")
	assert.Contains(t, keys, "providers/schedule_api_key")
	assert.Contains(t, keys, "airport/home")
	assert.Contains(t, keys, "airport/runway_headings")
	assert.Contains(t, keys, "aws/rescore_queue")

	for _, step := range inventory {
		if step.ParamType == ParamSecureString {
			assert.True(t, step.IsSecret, "%s: SecureString input should be masked", step.Label)
		}
	}
}
