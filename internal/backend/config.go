package backend

import (
	"fmt"

	"budget/internal/config"
	gstore "budget/internal/docstore/google"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type: backendType,

		SQLiteDBPath: appConfig.SQLiteDBPath,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		Google: GoogleFromAppConfig(appConfig),

		SeedFile:   appConfig.MemorySeedFile,
		Collection: appConfig.ExpensesCollection,
	}, nil
}

// GoogleFromAppConfig extracts the Sheets settings, shared by the sheets
// backend and the mirror worker.
func GoogleFromAppConfig(appConfig *config.Config) GoogleConfig {
	return GoogleConfig{
		SpreadsheetID:      appConfig.GoogleSpreadsheetID,
		ServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		ServiceAccountFile: appConfig.GoogleServiceAccountFile,
		OAuthClientFile:    appConfig.GoogleOAuthClientFile,
		OAuthTokenFile:     appConfig.GoogleOAuthTokenFile,
		OAuthClientJSON:    appConfig.GoogleOAuthClientJSON,
		OAuthTokenJSON:     appConfig.GoogleOAuthTokenJSON,
	}
}

// Options maps the settings onto the Sheets client options.
func (g GoogleConfig) Options() gstore.Options {
	return gstore.Options{
		SpreadsheetID:      g.SpreadsheetID,
		ServiceAccountJSON: g.ServiceAccountJSON,
		ServiceAccountFile: g.ServiceAccountFile,
		OAuthClientJSON:    g.OAuthClientJSON,
		OAuthClientFile:    g.OAuthClientFile,
		OAuthTokenJSON:     g.OAuthTokenJSON,
		OAuthTokenFile:     g.OAuthTokenFile,
	}
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case SheetsBackend:
		if c.Google.SpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets backend")
		}
	case MemoryBackend:
		// Seed file is optional
	}

	if c.AMQPURL != "" && (c.AMQPExchange == "" || c.AMQPQueue == "") {
		return fmt.Errorf("AMQP exchange and queue are required when AMQP URL is set")
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, SheetsBackend, MemoryBackend}
}
