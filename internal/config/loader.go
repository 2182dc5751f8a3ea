package config

import (
	"io"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/avelsk/routegate/internal/util"
)

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// Load reads, expands, and parses the configuration file at path.
func Load(path string) (*GatewayConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, util.NewConfigErrorWithCause("file", "cannot read config file", err)
	}
	return parse(data)
}

// LoadFromReader reads, expands, and parses configuration from r.
func LoadFromReader(r io.Reader) (*GatewayConfig, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, util.NewConfigErrorWithCause("file", "cannot read config", err)
	}
	return parse(data)
}

func parse(data []byte) (*GatewayConfig, error) {
	content := substituteEnvVars(string(data))

	var cfg GatewayConfig
	if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		return nil, util.NewConfigErrorWithCause("yaml", "cannot parse config", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// substituteEnvVars expands ${VAR} and ${VAR:-default} references from
// the environment. "$$" escapes a literal dollar sign.
func substituteEnvVars(content string) string {
	const escaped = "\x00dollar\x00"
	content = strings.ReplaceAll(content, "$$", escaped)

	result := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value, ok := os.LookupEnv(parts[1]); ok {
			return value
		}
		if len(parts) >= 3 {
			return parts[2]
		}
		return ""
	})

	return strings.ReplaceAll(result, escaped, "$")
}
