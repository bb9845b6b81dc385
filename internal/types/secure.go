package types

const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString holds a sensitive value that must not appear in logs or
// serialized output. fmt verbs and JSON marshalling both yield a redacted
// placeholder; only Unmask exposes the plaintext, and its callers should be
// few (the database connection string is the one in this service).
type SecretString string

func (s SecretString) String() string {
	return redactedPlaceholder
}

func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw secret value.
func (s SecretString) Unmask() string {
	return string(s)
}
