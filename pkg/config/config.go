package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every operating parameter named by spec §6. Zero values
// are replaced by Defaults() before use.
type Config struct {
	// LeaseStoreHosts is the consensus-service connection string
	// (comma-separated host:port pairs), LEASE_STORE_HOSTS.
	LeaseStoreHosts []string `yaml:"leaseStoreHosts"`
	// LeaseStoreRoot is the znode root under which job leases live,
	// LEASE_STORE_ROOT.
	LeaseStoreRoot string `yaml:"leaseStoreRoot"`

	// DFSNamenode is the HDFS namenode address used to construct the
	// job store's DFS client.
	DFSNamenode string `yaml:"dfsNamenode"`
	// DFSShredRoot is the job-store root on the DFS, DFS_SHRED_ROOT.
	DFSShredRoot string `yaml:"dfsShredRoot"`

	// LocalShredSubdir is the per-mount preserved-blocks directory
	// name, LOCAL_SHRED_SUBDIR.
	LocalShredSubdir string `yaml:"localShredSubdir"`
	// BlockSearchRoot is the local filesystem root under which data
	// blocks are searched, BLOCK_SEARCH_ROOT.
	BlockSearchRoot string `yaml:"blockSearchRoot"`

	// WorkerSleep is the scheduling cadence; it derives the lease
	// duration and the stall threshold (2x), WORKER_SLEEP.
	WorkerSleep time.Duration `yaml:"workerSleep"`
	// ShredPasses is the overwrite-pass count handed to the shred
	// primitive, SHRED_PASSES.
	ShredPasses int `yaml:"shredPasses"`

	// WorkerIdentity overrides the data node identity used to name
	// worklists and match oracle output; defaults to the primary IP
	// when empty (spec §4.1 "Worker identity").
	WorkerIdentity string `yaml:"workerIdentity"`
}

// Defaults returns a Config populated with the values the original
// deployment shipped with.
func Defaults() Config {
	return Config{
		LeaseStoreRoot:   "/shred/leases",
		DFSShredRoot:     "/shred/jobs",
		LocalShredSubdir: ".shred",
		BlockSearchRoot:  "/data",
		WorkerSleep:      5 * time.Minute,
		ShredPasses:      3,
	}
}

// Load reads path (if non-empty) as YAML into Defaults(), then applies
// environment variable overrides, then fills WorkerIdentity from the
// host's primary IP when still unset.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if cfg.WorkerIdentity == "" {
		ip, err := primaryIP()
		if err != nil {
			return Config{}, fmt.Errorf("config: resolve worker identity: %w", err)
		}
		cfg.WorkerIdentity = ip
	}

	return cfg, cfg.validate()
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("LEASE_STORE_HOSTS"); v != "" {
		cfg.LeaseStoreHosts = splitCSV(v)
	}
	if v := os.Getenv("LEASE_STORE_ROOT"); v != "" {
		cfg.LeaseStoreRoot = v
	}
	if v := os.Getenv("DFS_NAMENODE"); v != "" {
		cfg.DFSNamenode = v
	}
	if v := os.Getenv("DFS_SHRED_ROOT"); v != "" {
		cfg.DFSShredRoot = v
	}
	if v := os.Getenv("LOCAL_SHRED_SUBDIR"); v != "" {
		cfg.LocalShredSubdir = v
	}
	if v := os.Getenv("BLOCK_SEARCH_ROOT"); v != "" {
		cfg.BlockSearchRoot = v
	}
	if v := os.Getenv("WORKER_SLEEP"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.WorkerSleep = d
		}
	}
	if v := os.Getenv("SHRED_PASSES"); v != "" {
		if passes, err := strconv.Atoi(v); err == nil {
			cfg.ShredPasses = passes
		}
	}
	if v := os.Getenv("WORKER_IDENTITY"); v != "" {
		cfg.WorkerIdentity = v
	}
}

func (c Config) validate() error {
	if len(c.LeaseStoreHosts) == 0 {
		return fmt.Errorf("config: LEASE_STORE_HOSTS is required")
	}
	if c.DFSNamenode == "" {
		return fmt.Errorf("config: DFS_NAMENODE is required")
	}
	if c.WorkerSleep <= 0 {
		return fmt.Errorf("config: WORKER_SLEEP must be positive")
	}
	if c.ShredPasses <= 0 {
		return fmt.Errorf("config: SHRED_PASSES must be positive")
	}
	return nil
}

// StallThreshold is the duration after which completion considers a
// participating worker stalled (spec §4.4: "2 x WORKER_SLEEP").
func (c Config) StallThreshold() time.Duration {
	return 2 * c.WorkerSleep
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

// primaryIP returns the first non-loopback IPv4 address bound to the
// local host, the default worker identity (spec §4.1).
func primaryIP() (string, error) {
	hostname, err := os.Hostname()
	if err == nil {
		if addrs, err := net.LookupHost(hostname); err == nil {
			for _, a := range addrs {
				if ip := net.ParseIP(a); ip != nil && ip.To4() != nil && !ip.IsLoopback() {
					return ip.String(), nil
				}
			}
		}
	}

	ifaceAddrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	for _, addr := range ifaceAddrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			return ip4.String(), nil
		}
	}
	return "", fmt.Errorf("no non-loopback IPv4 address found")
}
