package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/milli-core/pkg/indexcore"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage an index's lifecycle",
}

var indexCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create (or open) the index directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ix, err := openIndex(cfg, false)
		if err != nil {
			return err
		}
		defer ix.Close()
		fmt.Printf("index ready at %s\n", ix.Path())
		return nil
	},
}

var indexStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print index statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ix, err := openIndex(cfg, true)
		if err != nil {
			return err
		}
		defer ix.Close()

		count, err := ix.DocumentCount()
		if err != nil {
			return err
		}
		size, err := ix.FileSizeBytes()
		if err != nil {
			return err
		}
		fmt.Printf("Documents: %d\n", count)
		fmt.Printf("File size: %d bytes\n", size)
		fmt.Printf("%s\n", ix.Stats())
		return nil
	},
}

var indexCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the index's data-model invariants",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ix, err := openIndex(cfg, true)
		if err != nil {
			return err
		}
		defer ix.Close()

		if err := ix.CheckConsistency(); err != nil {
			return err
		}
		fmt.Println("consistent")
		return nil
	},
}

func init() {
	indexCmd.AddCommand(indexCreateCmd)
	indexCmd.AddCommand(indexStatsCmd)
	indexCmd.AddCommand(indexCheckCmd)
}

// openIndex opens the index named by cfg, creating it on first use
// unless readOnly asks for a read-only handle over an index that must
// already exist.
func openIndex(cfg fileConfig, readOnly bool) (*indexcore.Index, error) {
	return indexcore.Open(indexcore.Config{
		Dir:             cfg.Dir,
		MapSizeBytes:    cfg.MapSizeBytes,
		ReadOnly:        readOnly,
		SkipOrphanSweep: readOnly,
	})
}
