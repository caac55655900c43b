package types

import "errors"

// Config holds backend selection and parameters for opening a Store.
type Config struct {
	Backend string       `json:"backend" yaml:"backend"`
	DataDir string       `json:"data_dir" yaml:"data_dir"`
	Mongo   *MongoConfig `json:"mongo,omitempty" yaml:"mongo,omitempty"`
}

// MongoConfig holds connection parameters for the MongoDB backend.
type MongoConfig struct {
	URI        string `json:"uri" yaml:"uri"`
	Database   string `json:"database" yaml:"database"`
	Collection string `json:"collection" yaml:"collection"`
}

// Supported backend names.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
	BackendMongo  = "mongo"
)

// MongoDB defaults, used when the corresponding MongoConfig field is empty.
const (
	DefaultMongoDatabase   = "taski"
	DefaultMongoCollection = "todos"
)

// Config validation errors.
var (
	ErrBackendEmpty   = errors.New("backend must not be empty")
	ErrBackendUnknown = errors.New("unknown backend")
	ErrMongoURIEmpty  = errors.New("mongo backend requires a connection URI")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite: true,
	BackendMemory: true,
	BackendMongo:  true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if c.Backend == BackendMongo && (c.Mongo == nil || c.Mongo.URI == "") {
		return ErrMongoURIEmpty
	}
	return nil
}

// GetDatabase returns the configured database name or the default.
func (m *MongoConfig) GetDatabase() string {
	if m == nil || m.Database == "" {
		return DefaultMongoDatabase
	}
	return m.Database
}

// GetCollection returns the configured collection name or the default.
func (m *MongoConfig) GetCollection() string {
	if m == nil || m.Collection == "" {
		return DefaultMongoCollection
	}
	return m.Collection
}
