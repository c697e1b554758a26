package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Profile names a group of scenarios sharing one login and one saved session.
type Profile string

const (
	ProfileMDA        Profile = "mda"
	ProfilePortal     Profile = "portal"
	ProfilePublicFile Profile = "public-file"
)

// Profiles lists every known profile.
var Profiles = []Profile{ProfileMDA, ProfilePortal, ProfilePublicFile}

// ParseProfile validates a profile name.
func ParseProfile(s string) (Profile, error) {
	for _, p := range Profiles {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown profile %q (want one of mda, portal, public-file)", s)
}

// Config holds everything the suite reads from the environment
type Config struct {
	// D365 model-driven app
	AppURL  string `mapstructure:"app_url"`
	AppName string `mapstructure:"app_name"`

	// Power Pages portal
	PortalURL string `mapstructure:"portal_url"`

	// Public file app
	AzureAppURL   string `mapstructure:"azure_app_url"`
	AzurePassword string `mapstructure:"azure_password"`

	// Authentication
	Username    string `mapstructure:"o365_username"`
	Password    string `mapstructure:"o365_password"`
	TenantID    string `mapstructure:"o365_tenant_id"`
	B2CUsername string `mapstructure:"b2c_username"`
	B2CPassword string `mapstructure:"b2c_password"`

	TestOrg OrganizationData

	Browser    BrowserConfig
	AuthDir    string `mapstructure:"auth_dir"`
	ResultsDir string `mapstructure:"results_dir"`
}

// OrganizationData is the organisation used by registration scenarios.
type OrganizationData struct {
	Name     string
	Address  string
	City     string
	Postcode string
	Country  string
}

type BrowserConfig struct {
	Headless      bool
	SlowMo        time.Duration
	Screenshots   bool
	Videos        bool
	Traces        bool
	Timeout       time.Duration
	ActionTimeout time.Duration
}

var defaults = map[string]any{
	"app_url":            "",
	"app_name":           "",
	"portal_url":         "",
	"azure_app_url":      "",
	"azure_password":     "",
	"o365_username":      "",
	"o365_password":      "",
	"o365_tenant_id":     "",
	"b2c_username":       "",
	"b2c_password":       "",
	"test_org_name":      "Playwright Test Organization",
	"test_org_address":   "1 Playwright Lane",
	"test_org_city":      "Playwright Town",
	"test_org_postcode":  "PL1 2LP",
	"test_org_country":   "England",
	"headless":           true,
	"slow_mo":            "0s",
	"screenshots":        true,
	"videos":             false,
	"traces":             false,
	"e2e_timeout":        "60s",
	"e2e_action_timeout": "15s",
	"auth_dir":           "auth",
	"results_dir":        "test-results",
}

// Options control where configuration is read from.
type Options struct {
	// EnvFile is an optional dotenv file. Values already in the environment
	// take precedence over it.
	EnvFile string
}

// Load reads configuration from the environment and an optional .env file.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
		}
	} else if opts.EnvFile != "" {
		return nil, fmt.Errorf("env file %s: %w", envFile, err)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.TestOrg = OrganizationData{
		Name:     v.GetString("test_org_name"),
		Address:  v.GetString("test_org_address"),
		City:     v.GetString("test_org_city"),
		Postcode: v.GetString("test_org_postcode"),
		Country:  v.GetString("test_org_country"),
	}
	cfg.Browser = BrowserConfig{
		Headless:      v.GetBool("headless"),
		Screenshots:   v.GetBool("screenshots"),
		Videos:        v.GetBool("videos"),
		Traces:        v.GetBool("traces"),
		SlowMo:        v.GetDuration("slow_mo"),
		Timeout:       v.GetDuration("e2e_timeout"),
		ActionTimeout: v.GetDuration("e2e_action_timeout"),
	}
	// SLOW_MO=1 style values carry no unit and parse as nanoseconds; treat
	// them as the debugging default.
	if d := cfg.Browser.SlowMo; d > 0 && d < time.Millisecond {
		cfg.Browser.SlowMo = 100 * time.Millisecond
	}
	return cfg, nil
}

// StartURL returns the address a profile's login begins at.
func (c *Config) StartURL(p Profile) string {
	switch p {
	case ProfilePortal:
		return c.PortalURL
	case ProfilePublicFile:
		return c.AzureAppURL
	default:
		return c.AppURL
	}
}

// ErrConfigurationMissing is matched by every ConfigurationMissingError.
var ErrConfigurationMissing = errors.New("configuration missing")

// ConfigurationMissingError lists the required environment variables that are
// unset for a profile.
type ConfigurationMissingError struct {
	Profile Profile
	Missing []string
}

func (e *ConfigurationMissingError) Error() string {
	return fmt.Sprintf("missing required %s environment variables: %s", e.Profile, strings.Join(e.Missing, ", "))
}

func (e *ConfigurationMissingError) Is(target error) bool { return target == ErrConfigurationMissing }
