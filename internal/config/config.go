// Package config loads the small JSON document that tells the store
// how to reach each backend host alias and how to size its caches and
// timeouts. Parsing stops at data: no flag.FlagSet, no environment
// variables — command-line and configuration parsing proper belongs
// to callers, not to this module.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cfadata/cfa/internal/cfaerr"
)

// Credentials holds the access/secret key pair used to sign requests
// against an object-store alias.
type Credentials struct {
	AccessKey string `json:"accessKey"`
	SecretKey string `json:"secretKey"`
}

// Host describes one backend alias: its kind (local or object store),
// its base URL and, for object stores, its credentials.
type Host struct {
	Backend string `json:"backend"` // "local" or "objectstore"
	URL string `json:"url"`
	Credentials Credentials `json:"credentials"`
}

// Config is the document the store loads at startup: a map of host aliases
// plus a handful of global fields.
type Config struct {
	Hosts map[string]Host `json:"hosts"`

	CacheLocation string `json:"cache_location"`
	FreeMemoryLimit Size `json:"free_memory_limit"`
	MaxObjectSize Size `json:"max_object_size"`
	MaxFileSizeForMemory Size `json:"max_file_size_for_memory"`
	ReadTimeout Dur `json:"read_timeout"`
	ConnectTimeout Dur `json:"connect_timeout"`
}

// Default returns a Config with the defaults named throughout the design
// (30s timeouts, no configured hosts, no cache directory).
func Default() Config {
	return Config{
		Hosts: map[string]Host{},
		ReadTimeout: Dur(30 * time.Second),
		ConnectTimeout: Dur(30 * time.Second),
	}
}

// Load reads and parses a config document from r.
func Load(r io.Reader) (Config, error) {
	cfg := Default()
	dec := json.NewDecoder(r)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, cfaerr.Config("<config>", "parsing configuration document", err)
	}
	return cfg, nil
}

// LoadFile is a convenience wrapper around Load for a path on the
// local filesystem.
func LoadFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, cfaerr.Config(path, "opening configuration file", err)
	}
	defer f.Close()
	return Load(f)
}

// HostFor resolves an alias name to its Host entry.
func (c Config) HostFor(alias string) (Host, bool) {
	h, ok := c.Hosts[alias]
	return h, ok
}

// Size is a byte count that unmarshals from strings carrying the
// decimal-power suffixes named in (B, kB, MB, GB, TB, PB, EB,
// ZB, YB), in addition to plain integers.
type Size int64

func pow10(exp int) int64 {
	n := int64(1)
	for i := 0; i < exp; i++ {
		n *= 10
	}
	return n
}

// sizeSuffixes is ordered longest-suffix-first so the bare "B" is only
// tried after every two-character suffix (all of which end in "B").
var sizeSuffixes = []struct {
	suffix string
	factor int64
}{
	{"YB", pow10(24)},
	{"ZB", pow10(21)},
	{"EB", pow10(18)},
	{"PB", pow10(15)},
	{"TB", pow10(12)},
	{"GB", pow10(9)},
	{"MB", pow10(6)},
	{"kB", pow10(3)},
	{"B", 1},
}

func (s Size) String() string {
	return strconv.FormatInt(int64(s), 10) + "B"
}

// MarshalJSON renders the size as a plain byte count; ParseSize
// accepts both forms on read.
func (s Size) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(s))
}

func (s *Size) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*s = Size(n)
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("size must be a number or a suffixed string: %s", data)
	}
	v, err := ParseSize(str)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSize parses a string like "50MB" or "4096" into a byte count.
// Suffixes are decimal powers of ten, not binary (kiB).
func ParseSize(s string) (Size, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}
	for _, suf := range sizeSuffixes {
		if strings.HasSuffix(s, suf.suffix) {
			numPart := strings.TrimSuffix(s, suf.suffix)
			numPart = strings.TrimSpace(numPart)
			n, err := strconv.ParseFloat(numPart, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid size %q: %v", s, err)
			}
			return Size(int64(n * float64(suf.factor))), nil
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %v", s, err)
	}
	return Size(n), nil
}

// Dur is a duration that unmarshals from Go duration strings
// ("30s") as well as from plain seconds.
type Dur time.Duration

func (d Dur) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Dur) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		parsed, err := time.ParseDuration(str)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %v", str, err)
		}
		*d = Dur(parsed)
		return nil
	}
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("duration must be a string or a number of seconds: %s", data)
	}
	*d = Dur(time.Duration(secs * float64(time.Second)))
	return nil
}
