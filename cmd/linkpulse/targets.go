package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/user/linkpulse/internal/daemon"
	"github.com/user/linkpulse/internal/model"
	"github.com/user/linkpulse/internal/storage"
	"github.com/user/linkpulse/internal/targets"
)

var targetsLabel string

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "Manage stored targets",
	Long: `Manage the target list stored in the data directory. A running daemon
picks up changes on its next restart.`,
}

var targetsAddCmd = &cobra.Command{
	Use:   "add <input>...",
	Short: "Add targets from addresses, ranges, CIDR blocks or hostnames",
	Example: `  linkpulse targets add 8.8.8.8 example.com
  linkpulse targets add "10.0.0.1-5, 192.168.1.0/28"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTargetsAdd,
}

var targetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored targets",
	Args:  cobra.NoArgs,
	RunE:  runTargetsList,
}

var targetsRmCmd = &cobra.Command{
	Use:   "rm <id-prefix|address>...",
	Short: "Remove stored targets",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTargetsRm,
}

func init() {
	targetsAddCmd.Flags().StringVar(&targetsLabel, "label", "", "Label for the added targets")

	targetsCmd.AddCommand(targetsAddCmd)
	targetsCmd.AddCommand(targetsListCmd)
	targetsCmd.AddCommand(targetsRmCmd)
}

func openTargetStorage() (*storage.DB, *storage.TargetStorage, error) {
	db, err := storage.Open(cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, storage.NewTargetStorage(db), nil
}

func runTargetsAdd(cmd *cobra.Command, args []string) error {
	addresses := targets.Parse(strings.Join(args, " "))
	if len(addresses) == 0 {
		return fmt.Errorf("no valid targets in input")
	}

	db, ts, err := openTargetStorage()
	if err != nil {
		return err
	}
	defer db.Close()

	now := time.Now()
	for _, addr := range addresses {
		def := model.TargetDef{
			ID:        model.TargetID(uuid.NewString()),
			Address:   addr,
			Label:     model.NewLabel(targetsLabel),
			Active:    true,
			CreatedAt: now,
		}
		if err := ts.Save(def); err != nil {
			return err
		}
	}

	fmt.Printf("Added %d target(s)\n", len(addresses))
	restartHint()
	return nil
}

func runTargetsList(cmd *cobra.Command, args []string) error {
	db, ts, err := openTargetStorage()
	if err != nil {
		return err
	}
	defer db.Close()

	defs, err := ts.List()
	if err != nil {
		return err
	}
	if len(defs) == 0 {
		fmt.Printf("No targets stored in %s\n", db.Path())
		return nil
	}

	fmt.Println(labelStyle.Render(fmt.Sprintf("%-8s  %-6s  %-30s  %s", "ID", "STATE", "ADDRESS", "LABEL")))
	for _, d := range defs {
		state := "active"
		if !d.Active {
			state = "paused"
		}
		fmt.Printf("%-8s  %-6s  %-30s  %s\n", shortID(d.ID), state, d.Address, d.Label.Value)
	}
	return nil
}

func runTargetsRm(cmd *cobra.Command, args []string) error {
	db, ts, err := openTargetStorage()
	if err != nil {
		return err
	}
	defer db.Close()

	defs, err := ts.List()
	if err != nil {
		return err
	}

	removed := 0
	for _, ref := range args {
		matches := matchTargets(defs, ref)
		if len(matches) == 0 {
			fmt.Printf("no target matches %q\n", ref)
			continue
		}
		for _, id := range matches {
			if err := ts.Delete(id); err != nil {
				return err
			}
			removed++
		}
	}

	fmt.Printf("Removed %d target(s)\n", removed)
	if removed > 0 {
		restartHint()
	}
	return nil
}

// matchTargets returns the ids whose address equals ref, or whose id starts
// with ref. An id prefix must be unambiguous.
func matchTargets(defs []model.TargetDef, ref string) []model.TargetID {
	var byAddr, byID []model.TargetID
	for _, d := range defs {
		if d.Address == ref {
			byAddr = append(byAddr, d.ID)
		}
		if strings.HasPrefix(string(d.ID), ref) {
			byID = append(byID, d.ID)
		}
	}
	if len(byAddr) > 0 {
		return byAddr
	}
	if len(byID) == 1 {
		return byID
	}
	return nil
}

func shortID(id model.TargetID) string {
	s := string(id)
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

func restartHint() {
	if running, _ := daemon.CheckRunning(cfg.DataDir); running {
		fmt.Println("The daemon is running; restart it to apply changes.")
	}
}
