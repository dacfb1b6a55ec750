/*
File Name:  Config.go

Configuration loading, grounded on the teacher's Config.go/Settings.go
go:embed default-file pattern.
*/

package mesh

import (
	_ "embed" // required for embedding the default config file
	"os"

	"gopkg.in/yaml.v3"
)

// Version is the current meshcore library version.
const Version = "0.1"

// Config holds the settings needed to run a single mesh node. Unlike the
// teacher's Config, there is no private key, blockchain, or search index
// section: identity and key distribution are out of scope (see spec
// Non-goals) and are expected to be supplied by the caller.
type Config struct {
	LogFile string `yaml:"LogFile"` // Log file; empty disables file logging.

	// ListenAddress is a host:port for the caller to pass to
	// transport.ListenTCP. Node does not read it: the accept loop runs
	// whenever a Transport is supplied through WithTransport.
	ListenAddress string `yaml:"ListenAddress"`

	// DeviceUUID is the 6-byte device identifier, hex encoded (12 chars).
	// A random one is generated if empty.
	DeviceUUID string `yaml:"DeviceUUID"`

	// NetworkKey is the shared symmetric network key. It is normalized to
	// 16 bytes by meshcrypto.NormalizeKey; truncated or zero-padded as
	// needed. Out-of-band distribution of this key is out of scope.
	NetworkKey string `yaml:"NetworkKey"`

	// SeedPeers is an initial set of addresses to dial at startup, in the
	// form the configured Transport understands (host:port for TCP).
	SeedPeers []string `yaml:"SeedPeers"`
}

//go:embed config_default.yaml
var defaultConfig []byte

// LoadConfig reads the YAML configuration file into cfg. If the file does
// not exist or is empty, the embedded default is used instead.
// The returned status is one of the ExitX codes; ExitSuccess indicates the
// config is ready to use.
func LoadConfig(filename string, cfg *Config) (status int, err error) {
	var configData []byte

	stats, statErr := os.Stat(filename)
	switch {
	case statErr != nil && os.IsNotExist(statErr):
		configData = defaultConfig
	case statErr != nil:
		return ExitErrorConfigAccess, statErr
	case stats.Size() == 0:
		configData = defaultConfig
	default:
		if configData, err = os.ReadFile(filename); err != nil {
			return ExitErrorConfigAccess, err
		}
	}

	if err = yaml.Unmarshal(configData, cfg); err != nil {
		return ExitErrorConfigParse, err
	}

	return ExitSuccess, nil
}
