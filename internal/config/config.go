// Package config loads and validates the configuration files of a
// Polaris installation:
//
//	<prefix>/etc/polaris-health.yaml    base options, health process
//	<prefix>/etc/polaris-pdns.yaml      base options, distribution process
//	<prefix>/etc/polaris-lb.yaml        pools and globalnames
//	<prefix>/etc/polaris-topology.yaml  region -> CIDR lists
//
// The installation prefix comes from the POLARIS_INSTALL_PREFIX
// environment variable. Base options are layered with viper: hardcoded
// defaults, then the YAML file, then POLARIS_* environment variables.
// Unknown options in a base file are a load error.
//
// Base options, the topology map and the presence of the LB sections
// are validated by the Load* functions; the structural validation of
// pools, members and globalnames happens when the state is built
// (state.New). Both run before any worker is spawned, so a misconfigured
// process exits early.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jroosing/polaris-gslb/internal/topology"
)

// InstallPrefixEnv points at the root of the Polaris installation.
const InstallPrefixEnv = "POLARIS_INSTALL_PREFIX"

// Shared KV key names, fixed for interoperability.
const (
	DefaultPPDNSStateKey     = "polaris_health:ppdns_state"
	DefaultGenericStateKey   = "polaris_health:generic_state"
	DefaultStateTimestampKey = "polaris_health:state_timestamp"
	DefaultHeartbeatKey      = "polaris_health:heartbeat"
)

// Base holds the process-level options shared by the health and
// distribution processes. Field names mirror the configuration keys.
type Base struct {
	SharedMemHostname             string
	SharedMemPPDNSStateKey        string
	SharedMemGenericStateKey      string
	SharedMemStateTimestampKey    string
	SharedMemHeartbeatKey         string
	SharedMemSocketTimeout        float64
	SharedMemServerMaxValueLength int

	NumProbers int

	LogLevel    string
	LogHandler  string
	LogHostname string
	LogPort     int

	// SOA synthesis options, used by the distribution process.
	SOAMName   string
	SOARName   string
	SOASerial  string
	SOARefresh int
	SOARetry   int
	SOAExpire  int
	SOAMinimum int
	SOATTL     int

	// Log controls whether remote-backend responses carry a "log"
	// array back to PowerDNS.
	Log bool

	// Optional read-only status API on the health process.
	APIEnabled bool
	APIHost    string
	APIPort    int

	// Derived from the install prefix, not configurable directly.
	InstallPrefix     string
	PIDFile           string
	ControlSocketFile string
}

// Config is the fully loaded and validated configuration of a process.
type Config struct {
	Base        Base
	LB          LB
	TopologyMap *topology.Map

	// raw region -> CIDR lists, kept for the generic state dump
	TopologyConfig map[string][]string
}

func newBaseViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("shared_mem_hostname", "127.0.0.1")
	v.SetDefault("shared_mem_ppdns_state_key", DefaultPPDNSStateKey)
	v.SetDefault("shared_mem_generic_state_key", DefaultGenericStateKey)
	v.SetDefault("shared_mem_state_timestamp_key", DefaultStateTimestampKey)
	v.SetDefault("shared_mem_heartbeat_key", DefaultHeartbeatKey)
	v.SetDefault("shared_mem_socket_timeout", 0.5)
	v.SetDefault("shared_mem_server_max_value_length", 1024*1024)

	v.SetDefault("num_probers", 2)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_handler", "stderr")
	v.SetDefault("log_hostname", "127.0.0.1")
	v.SetDefault("log_port", 2222)

	v.SetDefault("soa_mname", "polaris.example.com")
	v.SetDefault("soa_rname", "hostmaster.polaris.example.com")
	v.SetDefault("soa_serial", "auto")
	v.SetDefault("soa_refresh", 3600)
	v.SetDefault("soa_retry", 600)
	v.SetDefault("soa_expire", 86400)
	v.SetDefault("soa_minimum", 1)
	v.SetDefault("soa_ttl", 86400)

	v.SetDefault("log", true)

	v.SetDefault("api_enabled", false)
	v.SetDefault("api_host", "127.0.0.1")
	v.SetDefault("api_port", 8080)

	v.SetEnvPrefix("POLARIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// loadBase layers defaults, the given YAML file (optional) and
// POLARIS_* environment variables into a Base.
func loadBase(path string) (Base, error) {
	var base Base

	v := newBaseViper()
	if _, err := os.Stat(path); err == nil {
		if err := rejectUnknownOptions(v, path); err != nil {
			return base, err
		}
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return base, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	// read per key rather than Unmarshal so environment overrides
	// bound by AutomaticEnv are honoured
	readBase(v, &base)

	if err := validateBase(&base); err != nil {
		return base, fmt.Errorf("%s: %w", path, err)
	}
	return base, nil
}

func readBase(v *viper.Viper, base *Base) {
	base.SharedMemHostname = v.GetString("shared_mem_hostname")
	base.SharedMemPPDNSStateKey = v.GetString("shared_mem_ppdns_state_key")
	base.SharedMemGenericStateKey = v.GetString("shared_mem_generic_state_key")
	base.SharedMemStateTimestampKey = v.GetString("shared_mem_state_timestamp_key")
	base.SharedMemHeartbeatKey = v.GetString("shared_mem_heartbeat_key")
	base.SharedMemSocketTimeout = v.GetFloat64("shared_mem_socket_timeout")
	base.SharedMemServerMaxValueLength = v.GetInt("shared_mem_server_max_value_length")

	base.NumProbers = v.GetInt("num_probers")

	base.LogLevel = v.GetString("log_level")
	base.LogHandler = v.GetString("log_handler")
	base.LogHostname = v.GetString("log_hostname")
	base.LogPort = v.GetInt("log_port")

	base.SOAMName = v.GetString("soa_mname")
	base.SOARName = v.GetString("soa_rname")
	base.SOASerial = v.GetString("soa_serial")
	base.SOARefresh = v.GetInt("soa_refresh")
	base.SOARetry = v.GetInt("soa_retry")
	base.SOAExpire = v.GetInt("soa_expire")
	base.SOAMinimum = v.GetInt("soa_minimum")
	base.SOATTL = v.GetInt("soa_ttl")

	base.Log = v.GetBool("log")

	base.APIEnabled = v.GetBool("api_enabled")
	base.APIHost = v.GetString("api_host")
	base.APIPort = v.GetInt("api_port")
}

// rejectUnknownOptions fails when the file carries keys the process
// does not recognise; a typo in an option name must not be silent.
func rejectUnknownOptions(v *viper.Viper, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	known := make(map[string]bool)
	for _, k := range v.AllKeys() {
		known[k] = true
	}
	for k := range doc {
		if !known[strings.ToLower(k)] {
			return fmt.Errorf("%s: unknown configuration option %q", path, k)
		}
	}
	return nil
}

func validateBase(base *Base) error {
	if base.NumProbers < 1 {
		return fmt.Errorf("num_probers %d must be at least 1", base.NumProbers)
	}
	if base.SharedMemSocketTimeout <= 0 {
		return fmt.Errorf("shared_mem_socket_timeout %v must be positive",
			base.SharedMemSocketTimeout)
	}
	if base.SharedMemServerMaxValueLength < 1 {
		return fmt.Errorf("shared_mem_server_max_value_length %d must be positive",
			base.SharedMemServerMaxValueLength)
	}
	if base.SOASerial != "auto" {
		if _, err := strconv.ParseInt(base.SOASerial, 10, 64); err != nil {
			return fmt.Errorf(`soa_serial %q must be a number or "auto"`, base.SOASerial)
		}
	}
	if base.APIEnabled && (base.APIPort < 1 || base.APIPort > 65535) {
		return fmt.Errorf("api_port %d must be between 1 and 65535", base.APIPort)
	}
	return nil
}

// SOASerialValue resolves the configured serial against the state
// timestamp: the literal "auto" uses the integer part of the timestamp.
func (b *Base) SOASerialValue(stateTimestamp float64) int64 {
	if b.SOASerial == "auto" {
		return int64(stateTimestamp)
	}
	n, _ := strconv.ParseInt(b.SOASerial, 10, 64)
	return n
}

func installPrefix() (string, error) {
	prefix := os.Getenv(InstallPrefixEnv)
	if prefix == "" {
		return "", fmt.Errorf("%s env is not set", InstallPrefixEnv)
	}
	return prefix, nil
}

func derivePaths(base *Base, prefix string) {
	base.InstallPrefix = prefix
	base.PIDFile = filepath.Join(prefix, "run", "polaris-health.pid")
	base.ControlSocketFile = filepath.Join(prefix, "run", "polaris-health.controlsocket")
}

// LoadHealth loads the full health process configuration: base options,
// the LB config (mandatory) and the topology map (optional).
func LoadHealth() (*Config, error) {
	prefix, err := installPrefix()
	if err != nil {
		return nil, err
	}

	base, err := loadBase(filepath.Join(prefix, "etc", "polaris-health.yaml"))
	if err != nil {
		return nil, err
	}
	derivePaths(&base, prefix)

	topoCfg, topoMap, err := loadTopology(filepath.Join(prefix, "etc", "polaris-topology.yaml"))
	if err != nil {
		return nil, err
	}

	lb, err := loadLB(filepath.Join(prefix, "etc", "polaris-lb.yaml"))
	if err != nil {
		return nil, err
	}

	return &Config{
		Base:           base,
		LB:             lb,
		TopologyMap:    topoMap,
		TopologyConfig: topoCfg,
	}, nil
}

// LoadHealthBase loads only the health process base options, without
// requiring the LB configuration; used by admin tooling that talks to
// the control socket and the KV store.
func LoadHealthBase() (*Base, error) {
	prefix, err := installPrefix()
	if err != nil {
		return nil, err
	}

	base, err := loadBase(filepath.Join(prefix, "etc", "polaris-health.yaml"))
	if err != nil {
		return nil, err
	}
	derivePaths(&base, prefix)
	return &base, nil
}

// LoadPDNS loads the distribution process configuration: base options
// and the topology map (used for regional table selection).
func LoadPDNS() (*Config, error) {
	prefix, err := installPrefix()
	if err != nil {
		return nil, err
	}

	base, err := loadBase(filepath.Join(prefix, "etc", "polaris-pdns.yaml"))
	if err != nil {
		return nil, err
	}
	derivePaths(&base, prefix)

	topoCfg, topoMap, err := loadTopology(filepath.Join(prefix, "etc", "polaris-topology.yaml"))
	if err != nil {
		return nil, err
	}

	return &Config{
		Base:           base,
		TopologyMap:    topoMap,
		TopologyConfig: topoCfg,
	}, nil
}

func loadTopology(path string) (map[string][]string, *topology.Map, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			m, _ := topology.FromConfig(nil)
			return nil, m, nil
		}
		return nil, nil, fmt.Errorf("failed to read topology config %s: %w", path, err)
	}

	var cfg map[string][]string
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse topology config %s: %w", path, err)
	}

	m, err := topology.FromConfig(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("topology config %s: %w", path, err)
	}
	return cfg, m, nil
}
