package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sigscope/sigscope/configs"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Long: `Show prints the merged configuration after defaults, the config file,
environment variables and flags have been applied.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := yaml.Marshal(viper.AllSettings())
		if err != nil {
			return fmt.Errorf("failed to render configuration: %w", err)
		}

		if used := viper.ConfigFileUsed(); used != "" {
			fmt.Fprintf(os.Stderr, "# config file: %s\n", used)
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configs.LoadConfig()
		if err != nil {
			return err
		}
		if err := configs.ValidateConfig(cfg); err != nil {
			return fmt.Errorf("configuration is invalid: %w", err)
		}

		fmt.Println("Configuration is valid.")
		fmt.Printf("  - Sample rate: %d Hz, FFT size: %d (%d bins)\n",
			cfg.Audio.SampleRate, cfg.Audio.FFTSize, cfg.Audio.FFTSize/2+1)
		fmt.Printf("  - Capture: %s rolling buffer, %d history frames\n",
			cfg.Capture.Duration, cfg.Capture.HistoryFrames)
		fmt.Printf("  - Matching: threshold %.2f every %s\n",
			cfg.Matching.IdentificationThreshold, cfg.Matching.EvalInterval)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}
