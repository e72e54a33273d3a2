// Copyright (C) 2026 CodeLibs Project (dev@codelibs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/codelibs/intaste-go/pkg/assist"
)

// CLIConfig is the resolved client configuration.
type CLIConfig struct {
	BaseURL  string `yaml:"base_url"`
	Token    string `yaml:"token"`
	Language string `yaml:"language"`
}

var (
	flagBaseURL  string
	flagToken    string
	flagLanguage string
)

var rootCmd = &cobra.Command{
	Use:   "intaste",
	Short: "Terminal client for the Intaste assist API",
	Long: "intaste streams conversational answers over Fess search results.\n" +
		"Configure via flags, ASSIST_API_URL/ASSIST_API_TOKEN, or ~/.intaste/config.yaml.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagBaseURL, "base-url", "", "assist API root URL")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "assist API bearer token")
	rootCmd.PersistentFlags().StringVar(&flagLanguage, "language", "", "display language (e.g. en, ja)")
}

// loadConfig resolves configuration: flags > environment > config file.
//
// A missing config file is not an error; a malformed one is, so typos
// fail loudly instead of silently falling back to defaults.
func loadConfig() (*CLIConfig, error) {
	cfg := &CLIConfig{Language: "en"}

	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, ".intaste", "config.yaml")
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	if v := os.Getenv("ASSIST_API_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("ASSIST_API_TOKEN"); v != "" {
		cfg.Token = v
	}
	if v := os.Getenv("INTASTE_LANGUAGE"); v != "" {
		cfg.Language = v
	}

	if flagBaseURL != "" {
		cfg.BaseURL = flagBaseURL
	}
	if flagToken != "" {
		cfg.Token = flagToken
	}
	if flagLanguage != "" {
		cfg.Language = flagLanguage
	}
	return cfg, nil
}

// newClient builds an assist client from resolved config.
func newClient() (*assist.Client, *CLIConfig, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	return assist.NewClient(assist.Config{BaseURL: cfg.BaseURL, Token: cfg.Token}), cfg, nil
}
