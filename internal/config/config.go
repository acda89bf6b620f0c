package config

import (
	"path/filepath"
	"time"

	"emperror.dev/errors"
	"github.com/adrg/xdg"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// Backend names accepted by Storage.Backend.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
	BackendMemory = "memory"
)

type Storage struct {
	// Backend is one of json, sqlite, bolt or memory.
	Backend string
	// Path of the database file. If empty, a file in the user's XDG data
	// directory is used.
	Path string
}

type Objects struct {
	// Path of the git repository whose object database is used for
	// fast-forward checks. The repository is searched for in parent
	// directories as well.
	Path string
}

type Transaction struct {
	// LockTimeout is how long an update waits to lock its references.
	LockTimeout time.Duration
	// SequentialDuplicates allows a batch to update the same reference more
	// than once.
	SequentialDuplicates bool
}

type Ancestry struct {
	// CacheSize is the number of fast-forward results to cache.
	CacheSize int
}

type Refdb struct {
	Storage     Storage
	Objects     Objects
	Transaction Transaction
	Ancestry    Ancestry
	// Editor is the command used to edit batches. If empty, $VISUAL or
	// $EDITOR is used.
	Editor string
}

var Current = Default()

// Default returns the configuration used when nothing is configured.
func Default() Refdb {
	return Refdb{
		Storage:     Storage{Backend: BackendJSON},
		Objects:     Objects{Path: "."},
		Transaction: Transaction{LockTimeout: 10 * time.Second},
		Ancestry:    Ancestry{CacheSize: 4096},
	}
}

// Load reads the config file (named config.yaml, config.json, etc.) from the
// default directories and dirs, then applies environment overrides such as
// REFDB_STORAGE_BACKEND. It reports whether a config file was found.
func Load(dirs []string) (bool, error) {
	loaded, err := readConfigFile(dirs)
	if err != nil {
		return loaded, err
	}
	if err := envconfig.Process("refdb", &Current); err != nil {
		return loaded, errors.Wrap(err, "failed to read refdb configs from the environment")
	}
	return loaded, nil
}

func readConfigFile(dirs []string) (bool, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(filepath.Join(xdg.ConfigHome, "refdb"))
	v.AddConfigPath("$HOME/.refdb")
	v.AddConfigPath("$REFDB_HOME")
	for _, dir := range dirs {
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, errors.Wrap(err, "failed to read config file")
	}

	if err := v.Unmarshal(&Current); err != nil {
		return true, errors.Wrap(err, "failed to read refdb configs")
	}

	return true, nil
}

// StoragePath returns the path of the database file, creating its parent
// directory if needed.
func StoragePath() (string, error) {
	if Current.Storage.Path != "" {
		return Current.Storage.Path, nil
	}
	var name string
	switch Current.Storage.Backend {
	case BackendJSON:
		name = "refs.json"
	case BackendSQLite:
		name = "refs.db"
	case BackendBolt:
		name = "refs.bolt"
	case BackendMemory:
		return "", nil
	default:
		return "", errors.Errorf("unknown storage backend %q", Current.Storage.Backend)
	}
	path, err := xdg.DataFile(filepath.Join("refdb", name))
	if err != nil {
		return "", errors.WrapIf(err, "failed to determine the database path")
	}
	return path, nil
}
