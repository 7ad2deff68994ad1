// Package config loads InsuraTask configuration.
//
// Values are resolved in increasing order of precedence: built-in defaults,
// an optional YAML file, INSURATASK_* environment variables, and finally the
// command-line flags applied by the cmd package. Nested keys map to
// environment variables with dots replaced by underscores, so
// google.client_id becomes INSURATASK_GOOGLE_CLIENT_ID.
package config
