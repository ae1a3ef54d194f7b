package types

const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString is a string type that keeps sensitive values out of logs and
// serialized output. String() and MarshalJSON() return a redacted placeholder;
// call Unmask() at the point where the raw value is genuinely needed (an
// Authorization header, a database connection string).
type SecretString string

// String returns the redacted placeholder. Invoked by fmt and by slog when a
// secret is logged by accident.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON returns the redacted placeholder so config dumps and API
// responses never carry the raw value.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw plaintext value.
func (s SecretString) Unmask() string {
	return string(s)
}
