package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sigscope/sigscope/configs"
	"github.com/sigscope/sigscope/pkg/profile"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Manage the signal profile library",
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved signal profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, err := openLibrary()
		if err != nil {
			return err
		}

		profiles := lib.List()
		if len(profiles) == 0 {
			fmt.Println("No signal profiles saved.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tFRAMES\tBINS\tCREATED\tNOTES")
		for _, p := range profiles {
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n",
				p.Name, p.Frames(), p.Bins(),
				p.CreatedAt.Format("2006-01-02 15:04:05"), p.Notes)
		}
		return w.Flush()
	},
}

var profilesShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show details of a saved profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, err := openLibrary()
		if err != nil {
			return err
		}

		p, err := lib.Get(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Name:    %s\n", p.Name)
		fmt.Printf("Created: %s\n", p.CreatedAt.Format("2006-01-02 15:04:05 MST"))
		fmt.Printf("Size:    %d frames x %d bins\n", p.Frames(), p.Bins())
		if p.Notes != "" {
			fmt.Printf("Notes:   %s\n", p.Notes)
		}
		return nil
	},
}

var profilesDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a saved profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, err := openLibrary()
		if err != nil {
			return err
		}

		if err := lib.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted profile %q.\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profilesCmd)
	profilesCmd.AddCommand(profilesListCmd)
	profilesCmd.AddCommand(profilesShowCmd)
	profilesCmd.AddCommand(profilesDeleteCmd)
}

// openLibrary loads the persisted profile library without starting an
// engine.
func openLibrary() (*profile.Library, error) {
	cfg, err := configs.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	dir := cfg.Profiles.Dir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(cfg.DataDir, dir)
	}
	store, err := profile.NewStore(dir)
	if err != nil {
		return nil, err
	}

	lib, failures := profile.NewLibrary(store, profile.Limits{
		MaxFrames: cfg.Matching.MaxTemplateFrames,
		MaxBins:   cfg.Matching.MaxTemplateBins,
	})
	for _, ferr := range failures {
		logrus.WithFields(logrus.Fields{"error": ferr.Error()}).Warn("Skipped corrupt profile record")
	}
	return lib, nil
}
