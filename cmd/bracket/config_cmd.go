package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-bracket/infrastructure/llm"
	"github.com/ahrav/go-bracket/internal/application"
)

func newConfigCommand(deps dependencies) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration a run would use, after layering defaults, the
YAML file and the environment, as YAML. The API key is redacted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, configPath, deps)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			out, err := application.MarshalYAML(cfg.Redacted())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	return cmd
}

// loadConfig layers defaults, the file at path and the environment, then
// fills a missing API key from the provider's own variable.
func loadConfig(cmd *cobra.Command, path string, deps dependencies) (application.Config, error) {
	loader := application.NewConfigLoader()
	if deps.env != nil {
		loader = application.NewConfigLoaderWithEnv(deps.env)
	}
	cfg, err := loader.Load(cmd.Context(), path)
	if err != nil {
		return application.Config{}, err
	}
	fillAPIKey(&cfg, deps.providerConfigs(), deps.getenv())
	return cfg, nil
}

// fillAPIKey reads the selected provider's key variable (for example
// ANTHROPIC_API_KEY) when no key was configured.
func fillAPIKey(cfg *application.Config, providers map[string]llm.ProviderConfig, getenv func(string) string) {
	if cfg.Provider.APIKey != "" {
		return
	}
	if pc, ok := providers[cfg.Provider.Type]; ok && pc.EnvVar != "" {
		cfg.Provider.APIKey = getenv(pc.EnvVar)
	}
}

func (d dependencies) providerConfigs() map[string]llm.ProviderConfig {
	if d.providers != nil {
		return d.providers
	}
	return llm.DefaultProviders
}

func (d dependencies) getenv() func(string) string {
	if d.env != nil {
		return func(k string) string { return d.env[k] }
	}
	return os.Getenv
}

func (d dependencies) tokenEstimator() llm.TokenEstimator {
	if d.estimator != nil {
		return d.estimator
	}
	return llm.DefaultTokenEstimator()
}

// usageErrorf wraps a formatted message so exitCode maps it to ExitConfig.
func usageErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}
