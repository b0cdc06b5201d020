package client

// Config is the configuration document served by ConfigRelay.
type Config struct {
	AWS      AWSConfig       `json:"aws"`
	API      APIConfig       `json:"api"`
	Bot      BotConfig       `json:"bot"`
	Features map[string]bool `json:"features"`
	Version  string          `json:"version"`
	Metadata Metadata        `json:"_metadata"`
}

// AWSConfig groups AWS-side identifiers.
type AWSConfig struct {
	Cognito CognitoConfig `json:"cognito"`
}

// CognitoConfig identifies the Cognito user pool.
type CognitoConfig struct {
	UserPoolID  string `json:"userPoolId"`
	AppClientID string `json:"appClientId"`
}

// APIConfig holds service endpoints.
type APIConfig struct {
	WebSocketEndpoint string `json:"websocketEndpoint"`
}

// BotConfig identifies the chat bot.
type BotConfig struct {
	BotID           string `json:"botId"`
	FoundationModel string `json:"foundationModel"`
}

// Metadata is the per-response context the server attaches.
type Metadata struct {
	Timestamp     string `json:"timestamp"`
	RequestID     string `json:"requestId"`
	ServerVersion string `json:"serverVersion"`
	Environment   string `json:"environment"`
	APIVersion    string `json:"apiVersion,omitempty"`
}

// Feature reports a flag value; unknown flags are false.
func (c Config) Feature(name string) bool {
	return c.Features[name]
}

// VersionInfo is the body of the config version endpoint.
type VersionInfo struct {
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
	Checksum  string `json:"checksum"`
}
