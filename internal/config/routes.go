package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Routes names the path prefixes that make up each page area.
type Routes struct {
	Contribution     string `yaml:"contribution"`
	ContributionChat string `yaml:"contribution_chat"`
	Hub              string `yaml:"hub"`
}

// DefaultRoutes returns the built-in area prefixes.
func DefaultRoutes() Routes {
	return Routes{
		Contribution:     "/contribution",
		ContributionChat: "/contribution/chat",
		Hub:              "/hub",
	}
}

// LoadRoutes reads area prefixes from a YAML file. Missing keys keep their
// defaults; an empty path returns the defaults.
func LoadRoutes(path string) (Routes, error) {
	routes := DefaultRoutes()
	if path == "" {
		return routes, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return routes, fmt.Errorf("read routes file: %w", err)
	}

	var file struct {
		Areas Routes `yaml:"areas"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return routes, fmt.Errorf("parse routes file: %w", err)
	}

	if file.Areas.Contribution != "" {
		routes.Contribution = file.Areas.Contribution
	}
	if file.Areas.ContributionChat != "" {
		routes.ContributionChat = file.Areas.ContributionChat
	}
	if file.Areas.Hub != "" {
		routes.Hub = file.Areas.Hub
	}

	if err := routes.Validate(); err != nil {
		return DefaultRoutes(), err
	}
	return routes, nil
}

// Validate checks that every prefix is an absolute path and that the chat
// subpage lives inside the contribution area.
func (r Routes) Validate() error {
	for name, prefix := range map[string]string{
		"contribution":      r.Contribution,
		"contribution_chat": r.ContributionChat,
		"hub":               r.Hub,
	} {
		if !strings.HasPrefix(prefix, "/") {
			return fmt.Errorf("route %s must start with '/': %q", name, prefix)
		}
	}
	if !strings.HasPrefix(r.ContributionChat, r.Contribution) {
		return fmt.Errorf("contribution_chat %q must be under contribution %q", r.ContributionChat, r.Contribution)
	}
	return nil
}
