package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"fitchallenge/realtime"
	"fitchallenge/services"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

const defaultSeedCreator = "system"

// SeedEntry is one challenge in a seed file. CreatedBy defaults to --creator.
type SeedEntry struct {
	services.CreateChallengeInput
	CreatedBy string `json:"createdBy"`
}

type seedProblem struct {
	Index int
	Title string
	Err   error
}

func (p seedProblem) String() string {
	return fmt.Sprintf("entry %d (%q): %s", p.Index+1, p.Title, services.MessageOf(p.Err))
}

// loadSeedFile reads a JSON array of SeedEntry
func loadSeedFile(path string) ([]SeedEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read seed file")
	}

	var entries []SeedEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return entries, nil
}

// lintSeed reports every entry Create would reject
func lintSeed(entries []SeedEntry) []seedProblem {
	var problems []seedProblem
	for i, e := range entries {
		if err := services.ValidateChallengeInput(e.CreateChallengeInput); err != nil {
			problems = append(problems, seedProblem{Index: i, Title: e.Title, Err: err})
		}
	}
	return problems
}

// importSeed creates every valid entry and returns how many were stored
// along with the entries that were skipped
func importSeed(ctx context.Context, db *gorm.DB, entries []SeedEntry, creator string) (int, []seedProblem) {
	broker := realtime.NewMemoryBroker(realtime.DefaultBufferSize)
	defer broker.Close()
	svc := services.NewChallengeService(db, broker)

	imported := 0
	var problems []seedProblem
	for i, e := range entries {
		owner := e.CreatedBy
		if owner == "" {
			owner = creator
		}
		if _, err := svc.Create(ctx, owner, e.CreateChallengeInput); err != nil {
			problems = append(problems, seedProblem{Index: i, Title: e.Title, Err: err})
			continue
		}
		imported++
	}
	return imported, problems
}

func printProblems(w io.Writer, problems []seedProblem) {
	for _, p := range problems {
		fmt.Fprintln(w, p.String())
	}
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	creator := defaultSeedCreator
	cmd := &cobra.Command{
		Use:   "seed <file.json>",
		Short: "import challenges from a JSON file, skipping invalid entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := loadSeedFile(args[0])
			if err != nil {
				return err
			}

			db, closeDB, err := opts.openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Found %d challenges\n", len(entries))
			imported, problems := importSeed(cmd.Context(), db, entries, creator)
			printProblems(out, problems)
			fmt.Fprintf(out, "✓ Imported %d, skipped %d\n", imported, len(problems))
			return nil
		},
	}
	cmd.Flags().StringVar(&creator, "creator", creator, "owner id for entries without createdBy")
	return cmd
}

func newLintSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint-seed <file.json>",
		Short: "validate a seed file without writing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := loadSeedFile(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			problems := lintSeed(entries)
			printProblems(out, problems)
			if len(problems) > 0 {
				return fmt.Errorf("%s: %d of %d entries are invalid", args[0], len(problems), len(entries))
			}
			fmt.Fprintf(out, "%s: OK (%d entries)\n", args[0], len(entries))
			return nil
		},
	}
}
