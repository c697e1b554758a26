package config

import (
	"fmt"
	"net/url"
	"strings"
)

// required maps each profile to its mandatory variables, in report order.
var required = map[Profile][]string{
	ProfileMDA:        {"APP_URL", "O365_USERNAME", "O365_PASSWORD"},
	ProfilePortal:     {"O365_USERNAME", "O365_PASSWORD", "APP_URL", "PORTAL_URL"},
	ProfilePublicFile: {"AZURE_APP_URL", "AZURE_PASSWORD", "O365_USERNAME"},
}

// Validator checks a config for one profile, collecting every problem rather
// than stopping at the first.
type Validator struct {
	config   *Config
	profile  Profile
	missing  []string
	warnings []string
}

func NewValidator(cfg *Config, profile Profile) *Validator {
	return &Validator{config: cfg, profile: profile}
}

// Validate returns a ConfigurationMissingError when a required variable is
// unset. Malformed URLs are reported as warnings.
func (v *Validator) Validate() error {
	for _, key := range required[v.profile] {
		value := v.config.lookup(key)
		if value == "" {
			v.missing = append(v.missing, key)
			continue
		}
		if strings.HasSuffix(key, "_URL") {
			v.validateURL(key, value)
		}
	}
	if len(v.missing) > 0 {
		return &ConfigurationMissingError{Profile: v.profile, Missing: v.missing}
	}
	return nil
}

// Warnings returns the non-fatal problems found by Validate.
func (v *Validator) Warnings() []string { return v.warnings }

func (v *Validator) validateURL(key, value string) {
	u, err := url.Parse(value)
	if err != nil || u.Host == "" {
		v.warnings = append(v.warnings, fmt.Sprintf("%s is not an absolute URL: %q", key, value))
		return
	}
	if u.Scheme != "https" && u.Hostname() != "localhost" && u.Hostname() != "127.0.0.1" {
		v.warnings = append(v.warnings, fmt.Sprintf("%s does not use https: %q", key, value))
	}
}

func (c *Config) lookup(key string) string {
	switch key {
	case "APP_URL":
		return c.AppURL
	case "PORTAL_URL":
		return c.PortalURL
	case "AZURE_APP_URL":
		return c.AzureAppURL
	case "AZURE_PASSWORD":
		return c.AzurePassword
	case "O365_USERNAME":
		return c.Username
	case "O365_PASSWORD":
		return c.Password
	}
	return ""
}

// Validate checks the configuration for a profile before any browser work.
func (c *Config) Validate(p Profile) error {
	return NewValidator(c, p).Validate()
}
