package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/milli-core/pkg/apperr"
	"github.com/cuemby/milli-core/pkg/pipeline"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Index or remove documents",
}

var documentAddCmd = &cobra.Command{
	Use:   "add FILE",
	Short: "Upsert documents from a newline-delimited JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		replace, _ := cmd.Flags().GetBool("replace")

		batch, err := readJSONLinesBatch(args[0], replace)
		if err != nil {
			return err
		}

		ix, err := openIndex(cfg, false)
		if err != nil {
			return err
		}
		defer ix.Close()

		result, err := ix.ApplyDocuments(batch)
		if err != nil {
			return err
		}
		fmt.Printf("upserted %d, deleted %d\n", result.DocumentsUpserted, result.DocumentsDeleted)
		return nil
	},
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete ID [ID...]",
	Short: "Delete documents by external id",
	Args:  cobra.MinimumNArgs(1),
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

		result, err := ix.DeleteDocuments(args)
		if err != nil {
			return err
		}
		fmt.Printf("deleted %d\n", result.DocumentsDeleted)
		return nil
	},
}

func init() {
	documentAddCmd.Flags().Bool("replace", false, "Replace each document entirely instead of merging fields into the existing one")
	documentCmd.AddCommand(documentAddCmd)
	documentCmd.AddCommand(documentDeleteCmd)
}

func readJSONLinesBatch(path string, replace bool) (pipeline.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperr.Internal(err, "core: open document file %q", path)
	}
	defer f.Close()

	kind := pipeline.OpUpsert
	if replace {
		kind = pipeline.OpReplace
	}

	var batch pipeline.Batch
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var doc pipeline.Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, apperr.Validation("core: %s:%d: invalid JSON document: %v", path, line, err)
		}
		batch = append(batch, pipeline.Operation{Kind: kind, Doc: doc})
	}
	if err := scanner.Err(); err != nil {
		return nil, apperr.Internal(err, "core: read document file %q", path)
	}
	return batch, nil
}
