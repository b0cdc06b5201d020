package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// envConfigBase is the environment variable holding the default document as a
// JSON blob. Version and environment variants append suffixes, e.g.
// APP_CONFIG_2_TEST for version 2 in the test environment.
const envConfigBase = "APP_CONFIG"

// Versions the store resolves eagerly at startup. Requests for anything else
// degrade to the unversioned default.
var declaredVersions = []string{"", "2", "3", "4", "5"}

var declaredEnvironments = []string{"", "test"}

// Key addresses one resolved document.
type Key struct {
	Version     string
	Environment string
}

// Store owns the resolved configuration table. It is immutable after New
// except for the default document's feature map, which UpdateFeatures merges
// into under the write lock. Handlers receive the Store by reference; nothing
// else may mutate it.
type Store struct {
	mu     sync.RWMutex
	docs   map[Key]Document
	logger *slog.Logger
}

// New resolves every declared (version, environment) pair once and returns
// the populated store. It never fails: a pair whose source is absent or
// malformed simply has no entry and resolves through the fallback chain.
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		docs:   make(map[Key]Document),
		logger: logger,
	}

	validate := validator.New()

	for _, v := range declaredVersions {
		for _, e := range declaredEnvironments {
			key := Key{Version: v, Environment: e}
			doc, ok := s.load(key)
			if !ok {
				continue
			}
			if err := validate.Struct(doc); err != nil {
				// Incomplete documents are served as-is; the gap is a
				// deployment problem, not a request-time error.
				logger.Warn("configuration document has missing fields",
					slog.String("version", v),
					slog.String("environment", e),
					slog.Any("err", err))
			}
			s.docs[key] = doc
		}
	}

	// The unversioned default must always exist; assemble it from the
	// individually-keyed legacy fields when no blob was found.
	base := Key{}
	if _, ok := s.docs[base]; !ok {
		s.docs[base] = legacyDocument()
	}

	return s
}

// load parses the JSON blob for key, falling back to the legacy per-field
// document for the unversioned default. The bool result reports whether the
// key has a source at all.
func (s *Store) load(key Key) (Document, bool) {
	name := envVarName(key)
	raw := os.Getenv(name)
	if raw == "" {
		return Document{}, false
	}

	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		s.logger.Warn("configuration blob failed to parse, falling back",
			slog.String("var", name),
			slog.Any("err", err))
		if key == (Key{}) {
			return legacyDocument(), true
		}
		return Document{}, false
	}

	if doc.Features == nil {
		doc.Features = defaultFeatures()
	}
	if doc.Version == "" {
		doc.Version = versionLabel(key.Version)
	}
	return doc, true
}

// Resolve returns the document for the requested version and environment,
// walking the most-specific-wins fallback chain:
// (v,e) -> (v,"") -> ("","") -> built-in default. It never errors.
func (s *Store) Resolve(version, environment string) Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, key := range []Key{
		{Version: version, Environment: environment},
		{Version: version},
		{},
	} {
		if doc, ok := s.docs[key]; ok {
			return doc.Clone()
		}
	}

	// Unreachable in practice; New always seeds the default entry.
	doc := legacyDocument()
	return doc
}

// UpdateFeatures shallow-merges flags into the default document's feature map
// and returns the resulting full map. New keys are added, existing keys
// overwritten, absent keys untouched. The change is process-local and lost on
// restart.
func (s *Store) UpdateFeatures(flags map[string]bool) map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.docs[Key{}]
	if doc.Features == nil {
		doc.Features = make(map[string]bool)
	}
	for k, v := range flags {
		doc.Features[k] = v
	}
	s.docs[Key{}] = doc

	out := make(map[string]bool, len(doc.Features))
	for k, v := range doc.Features {
		out[k] = v
	}
	return out
}

// DefaultVersion reports the default document's version string.
func (s *Store) DefaultVersion() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.docs[Key{}].Version
}

// Checksum is a hex SHA-256 over the default document's canonical JSON form,
// so clients can cheaply detect configuration drift.
func (s *Store) Checksum() string {
	s.mu.RLock()
	doc := s.docs[Key{}].Clone()
	s.mu.RUnlock()

	raw, err := json.Marshal(doc)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// legacyDocument assembles the default document from individually-named
// environment variables, with hard-coded defaults where a source is absent.
func legacyDocument() Document {
	doc := Document{
		AWS: AWSConfig{
			Cognito: CognitoConfig{
				UserPoolID:  os.Getenv("COGNITO_USER_POOL_ID"),
				AppClientID: os.Getenv("COGNITO_APP_CLIENT_ID"),
			},
		},
		API: APIConfig{
			WebSocketEndpoint: os.Getenv("WEBSOCKET_ENDPOINT"),
		},
		Bot: BotConfig{
			BotID:           os.Getenv("BOT_ID"),
			FoundationModel: os.Getenv("FOUNDATION_MODEL"),
		},
		Features: map[string]bool{
			FeatureDarkMode:    boolEnv("FEATURE_DARK_MODE", false),
			FeatureAnalytics:   boolEnv("FEATURE_ANALYTICS", true),
			FeatureNewCheckout: boolEnv("FEATURE_NEW_CHECKOUT", false),
		},
		Version: "1",
	}
	if doc.Bot.FoundationModel == "" {
		doc.Bot.FoundationModel = "anthropic.claude-3-sonnet-20240229-v1:0"
	}
	return doc
}

func envVarName(key Key) string {
	name := envConfigBase
	if key.Version != "" {
		name += "_" + key.Version
	}
	if key.Environment != "" {
		name += "_" + strings.ToUpper(key.Environment)
	}
	return name
}

func versionLabel(v string) string {
	if v == "" {
		return "1"
	}
	return v
}

func boolEnv(name string, fallback bool) bool {
	switch strings.ToLower(os.Getenv(name)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return fallback
	}
}
