package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/milli-core/pkg/apperr"
	"github.com/cuemby/milli-core/pkg/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Inspect or update index settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current settings as JSON",
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

		s, err := ix.Settings()
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set FILE",
	Short: "Apply a settings patch from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		patch, err := readPatchFile(args[0])
		if err != nil {
			return err
		}

		ix, err := openIndex(cfg, false)
		if err != nil {
			return err
		}
		defer ix.Close()

		next, err := ix.UpdateSettings(patch)
		if err != nil {
			return err
		}
		fmt.Println("settings updated")
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(next)
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
}

// patchFile is the on-disk shape of a settings patch: every field is a
// pointer, present-and-non-nil meaning "set to this value", absent
// meaning "leave unchanged". There is no JSON spelling for ResetValue;
// resetting a field means writing it back to its zero/default value
// explicitly.
type patchFile struct {
	SearchableFields   *[]string                `json:"searchable_fields"`
	DisplayedFields    *[]string                `json:"displayed_fields"`
	FilterableFields   *[]string                `json:"filterable_fields"`
	SortableFields     *[]string                `json:"sortable_fields"`
	RankingRules       *[]string                `json:"ranking_rules"`
	StopWords          *map[string][]string     `json:"stop_words"`
	Synonyms           *map[string][][]string   `json:"synonyms"`
	MinWordLenOneTypo  *int                     `json:"min_word_len_one_typo"`
	MinWordLenTwoTypos *int                     `json:"min_word_len_two_typos"`
	ExactWords         *[]string                `json:"exact_words"`
	DistinctAttribute  *string                  `json:"distinct_attribute"`
	PrimaryKey         *string                  `json:"primary_key"`
	LocaleRules        *map[string][]string     `json:"locale_rules"`
}

func readPatchFile(path string) (settings.Patch, error) {
	var pf patchFile
	data, err := os.ReadFile(path)
	if err != nil {
		return settings.Patch{}, apperr.Internal(err, "core: read settings file %q", path)
	}
	if err := json.Unmarshal(data, &pf); err != nil {
		return settings.Patch{}, apperr.Validation("core: parse settings file %q: %v", path, err)
	}

	var patch settings.Patch
	if pf.SearchableFields != nil {
		patch.SearchableFields = settings.StringSliceField{State: settings.SetValue, Value: *pf.SearchableFields}
	}
	if pf.DisplayedFields != nil {
		patch.DisplayedFields = settings.StringSliceField{State: settings.SetValue, Value: *pf.DisplayedFields}
	}
	if pf.FilterableFields != nil {
		patch.FilterableFields = settings.StringSliceField{State: settings.SetValue, Value: *pf.FilterableFields}
	}
	if pf.SortableFields != nil {
		patch.SortableFields = settings.StringSliceField{State: settings.SetValue, Value: *pf.SortableFields}
	}
	if pf.RankingRules != nil {
		patch.RankingRules = settings.StringSliceField{State: settings.SetValue, Value: *pf.RankingRules}
	}
	if pf.ExactWords != nil {
		patch.ExactWords = settings.StringSliceField{State: settings.SetValue, Value: *pf.ExactWords}
	}
	if pf.StopWords != nil {
		patch.StopWords = settings.StringMapField{State: settings.SetValue, Value: *pf.StopWords}
	}
	if pf.Synonyms != nil {
		patch.Synonyms = settings.SynonymMapField{State: settings.SetValue, Value: *pf.Synonyms}
	}
	if pf.LocaleRules != nil {
		patch.LocaleRules = settings.StringMapField{State: settings.SetValue, Value: *pf.LocaleRules}
	}
	if pf.MinWordLenOneTypo != nil {
		patch.MinWordLenOneTypo = settings.IntField{State: settings.SetValue, Value: *pf.MinWordLenOneTypo}
	}
	if pf.MinWordLenTwoTypos != nil {
		patch.MinWordLenTwoTypos = settings.IntField{State: settings.SetValue, Value: *pf.MinWordLenTwoTypos}
	}
	if pf.DistinctAttribute != nil {
		patch.DistinctAttribute = settings.StringField{State: settings.SetValue, Value: *pf.DistinctAttribute}
	}
	if pf.PrimaryKey != nil {
		patch.PrimaryKey = settings.StringField{State: settings.SetValue, Value: *pf.PrimaryKey}
	}
	return patch, nil
}
