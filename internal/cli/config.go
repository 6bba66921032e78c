package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default name of the config file
const DefaultConfigFile = "config.yaml"

// Config is the configuration of the Vetrina CLI.
type Config struct {
	// Version of the configuration file format
	Version string `yaml:"version"`
	// ServerURL is the base URL of the Vetrina server
	ServerURL string `yaml:"server_url"`
	// Session is the numeric user id sent as the session cookie
	Session string `yaml:"session"`
	// DraftFile is the sqlite file holding unsaved order edits
	DraftFile string `yaml:"draft_file,omitempty"`
}

var config *Config

// GetDefaultConfigPath returns the default path for the config file, e.g. ~/.config/vetrina/config.yaml on Linux.
func GetDefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "vetrina", DefaultConfigFile), nil
}

// LoadConfig loads and validates the configuration in file.
func LoadConfig(file string) error {
	yamlStr, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("unable to read config file: %w", err)
	}

	var c Config
	if err = yaml.Unmarshal(yamlStr, &c); err != nil {
		return fmt.Errorf("unable to parse config file: %w", err)
	}
	c.ServerURL = MorphServer(c.ServerURL)
	if err := c.ValidateConfig(); err != nil {
		return err
	}
	if c.DraftFile == "" {
		c.DraftFile = filepath.Join(filepath.Dir(file), "drafts.db")
	}

	config = &c
	return nil
}

// GetConfig returns the current configuration
func GetConfig() *Config {
	return config
}

// WriteConfig writes the configuration to file, creating its directory.
func (cfg *Config) WriteConfig(file string) error {
	if file == "" {
		return errors.New("file path cannot be empty")
	}

	err := os.MkdirAll(filepath.Dir(file), os.ModePerm)
	if err != nil {
		return fmt.Errorf("unable to create config directory: %w", err)
	}

	yamlStr, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("unable to generate configuration: %w", err)
	}

	err = os.WriteFile(file, yamlStr, os.FileMode(0600))
	if err != nil {
		return fmt.Errorf("unable to write config file: %w", err)
	}

	return nil
}

func (cfg *Config) ValidateConfig() error {
	if cfg.ServerURL == "" {
		return errors.New("server_url is required")
	}
	if !strings.HasPrefix(cfg.ServerURL, "http://") && !strings.HasPrefix(cfg.ServerURL, "https://") {
		return errors.New("server_url must start with http:// or https://")
	}
	if cfg.Session == "" {
		return errors.New("session is required")
	}
	if _, err := strconv.ParseInt(cfg.Session, 10, 64); err != nil {
		return errors.New("session must be a numeric user id")
	}
	return nil
}

// MorphServer adds an http:// prefix when no scheme is given and removes trailing slashes.
func MorphServer(server string) string {
	if server == "" {
		return server
	}
	server = strings.TrimRight(server, "/")
	if !strings.HasPrefix(server, "http://") && !strings.HasPrefix(server, "https://") {
		server = "http://" + server
	}
	return server
}

func (cfg *Config) GetServerURL() string {
	return MorphServer(cfg.ServerURL)
}

func (cfg *Config) GetSession() string {
	return cfg.Session
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create or show the CLI configuration",
}

var (
	configServer  string
	configSession string
)

var configCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Write a configuration file",
	Long: `Write a configuration file with the server URL and the session user id.

Example:
  vetrina config create --server localhost:8195 --session 2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := &Config{
			Version:   "1",
			ServerURL: MorphServer(configServer),
			Session:   configSession,
		}
		if err := c.ValidateConfig(); err != nil {
			return err
		}
		if err := c.WriteConfig(configFile); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", configFile)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := LoadConfig(configFile); err != nil {
			return err
		}
		c := GetConfig()
		if jsonOutput {
			return printJSON(cmd, c)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Server:  %s\nSession: %s\nDrafts:  %s\n", c.ServerURL, c.Session, c.DraftFile)
		return nil
	},
}

func init() {
	configCreateCmd.Flags().StringVar(&configServer, "server", "localhost:8195", "Server address")
	configCreateCmd.Flags().StringVar(&configSession, "session", "", "Numeric user id")
	configCmd.AddCommand(configCreateCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}
