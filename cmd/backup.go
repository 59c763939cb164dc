package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-id/internal/backup"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create, list and restore identity store backups",
	Long: `Back up the identity store to a compressed snapshot.

The destination is chosen by BACKUP_TARGET:
  local  files in BACKUP_DIR (default)
  s3     BACKUP_BUCKET under BACKUP_PREFIX, using the default AWS credentials
  minio  BACKUP_BUCKET on MINIO_ENDPOINT with MINIO_ACCESS_KEY/MINIO_SECRET_KEY`,
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Write a snapshot of the identity store",
	Args:  cobra.NoArgs,
	RunE:  runBackupCreate,
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available snapshots",
	Args:  cobra.NoArgs,
	RunE:  runBackupList,
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore [name]",
	Short: "Restore a snapshot into an empty identity store",
	Long: `Restore a snapshot into an empty identity store, keeping the original ids.
Without a name the most recent snapshot is restored.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBackupRestore,
}

func init() {
	rootCmd.AddCommand(backupCmd)
	backupCmd.AddCommand(backupCreateCmd)
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupRestoreCmd)
}

func runBackupCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, cfg, _, err := openStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	sink, err := backup.NewSink(ctx, cfg.Backup)
	if err != nil {
		return err
	}
	name, n, err := backup.Create(ctx, store, sink, time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("Saved %d identities to %s (%s)\n", n, name, cfg.Backup.Target)
	return nil
}

func runBackupList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	sink, err := backup.NewSink(ctx, cfg.Backup)
	if err != nil {
		return err
	}
	names, err := sink.List(ctx)
	if err != nil {
		return fmt.Errorf("listing backups: %w", err)
	}
	if len(names) == 0 {
		fmt.Println("No backups found.")
		return nil
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func runBackupRestore(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, cfg, _, err := openStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	sink, err := backup.NewSink(ctx, cfg.Backup)
	if err != nil {
		return err
	}
	var name string
	if len(args) == 1 {
		name = args[0]
	}
	restored, n, err := backup.Restore(ctx, store, sink, name)
	if err != nil {
		return err
	}
	fmt.Printf("Restored %d identities from %s\n", n, restored)
	return nil
}
