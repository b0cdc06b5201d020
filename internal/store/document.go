package store

// Document is the application-configuration aggregate served to clients.
// One immutable instance exists per (version, environment) pair; the sole
// exception is the default document's Features map, which the admin
// feature-flag endpoint may merge into at runtime.
type Document struct {
	AWS      AWSConfig       `json:"aws"`
	API      APIConfig       `json:"api"`
	Bot      BotConfig       `json:"bot"`
	Features map[string]bool `json:"features"`
	Version  string          `json:"version"`
}

// AWSConfig groups the AWS-side identifiers.
type AWSConfig struct {
	Cognito CognitoConfig `json:"cognito"`
}

// CognitoConfig identifies the Cognito user pool clients authenticate against.
type CognitoConfig struct {
	UserPoolID  string `json:"userPoolId" validate:"required"`
	AppClientID string `json:"appClientId" validate:"required"`
}

// APIConfig holds service endpoints pushed to clients.
type APIConfig struct {
	WebSocketEndpoint string `json:"websocketEndpoint" validate:"required"`
}

// BotConfig identifies the chat bot and its foundation model.
type BotConfig struct {
	BotID           string `json:"botId" validate:"required"`
	FoundationModel string `json:"foundationModel" validate:"required"`
}

// Known feature-flag names. The admin endpoint may introduce others.
const (
	FeatureDarkMode    = "darkMode"
	FeatureAnalytics   = "analytics"
	FeatureNewCheckout = "newCheckout"
)

// Clone returns a deep copy so callers can serialize or mutate the result
// without aliasing the store's live document.
func (d Document) Clone() Document {
	out := d
	out.Features = make(map[string]bool, len(d.Features))
	for k, v := range d.Features {
		out.Features[k] = v
	}
	return out
}

func defaultFeatures() map[string]bool {
	return map[string]bool{
		FeatureDarkMode:    false,
		FeatureAnalytics:   true,
		FeatureNewCheckout: false,
	}
}
