package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-id/internal/identity"
)

var identitiesCmd = &cobra.Command{
	Use:   "identities",
	Short: "List and remove enrolled identities",
}

var identitiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled identities",
	Args:  cobra.NoArgs,
	RunE:  runIdentitiesList,
}

var identitiesDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete identities by id",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIdentitiesDelete,
}

func init() {
	rootCmd.AddCommand(identitiesCmd)
	identitiesCmd.AddCommand(identitiesListCmd)
	identitiesCmd.AddCommand(identitiesDeleteCmd)

	identitiesListCmd.Flags().Bool("json", false, "Output as JSON")
}

func runIdentitiesList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, _, _, err := openStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	records := store.All()
	if mustGetBool(cmd, "json") {
		if records == nil {
			records = []identity.Record{}
		}
		return outputJSON(records)
	}

	if len(records) == 0 {
		fmt.Println("No identities enrolled.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tUID\tCREATED")
	for _, rec := range records {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", rec.ID, rec.Name, rec.UID, rec.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	w.Flush()
	fmt.Printf("\n%d identities\n", len(records))
	return nil
}

func runIdentitiesDelete(cmd *cobra.Command, args []string) error {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id < 1 {
			return fmt.Errorf("invalid identity id %q", arg)
		}
		ids = append(ids, id)
	}

	ctx := context.Background()
	store, _, _, err := openStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	for _, id := range ids {
		rec, err := store.Get(id)
		if err != nil {
			return fmt.Errorf("identity %d: %w", id, err)
		}
		if err := store.Delete(ctx, id); err != nil {
			return fmt.Errorf("deleting identity %d: %w", id, err)
		}
		fmt.Printf("Deleted %s (ID: %d)\n", rec.Name, id)
	}
	return nil
}
