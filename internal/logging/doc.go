// Package logging provides the slog construction and attribute helpers
// used across qoed. It supports a human-oriented console format and a
// machine-oriented JSON format, both configured from the application config.
package logging
