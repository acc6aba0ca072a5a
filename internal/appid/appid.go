// Package appid holds the application identity used for config discovery,
// environment prefixes and telemetry namespaces.
package appid

const (
	// BinaryName is the executable and service name.
	BinaryName = "draftsmith"
	// ConfigName names the XDG config and data directories.
	ConfigName = "draftsmith"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "DRAFTSMITH_"
	// Description is shown in CLI help.
	Description = "Secure gateway for AI-assisted email and slide drafting"
)
