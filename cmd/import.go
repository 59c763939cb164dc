package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kozaktomas/face-id/internal/constants"
	"github.com/kozaktomas/face-id/internal/recognition"
)

var importCmd = &cobra.Command{
	Use:   "import <dir>",
	Short: "Enroll every photo in a directory",
	Long: `Walk a directory and enroll every photo found.

The person's name comes from the first subdirectory under <dir>, or from the
file name when the photo sits directly in <dir>:

  people/Alice/beach.jpg   -> Alice
  people/Jan_Novak.jpg     -> Jan Novak

Photos where no face is found are reported and skipped.

Examples:
  face-id import people/
  face-id import people/ --concurrency 8 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().Int("concurrency", constants.WorkerPoolSize, "Number of photos processed in parallel")
	importCmd.Flags().Bool("dry-run", false, "List the photos and names without enrolling")
	importCmd.Flags().Bool("json", false, "Output as JSON")
}

// ImportResult summarizes a bulk enrollment.
type ImportResult struct {
	Total    int               `json:"total"`
	Enrolled int               `json:"enrolled"`
	Skipped  int               `json:"skipped"`
	Failed   int               `json:"failed"`
	Outcomes map[string]int    `json:"outcomes"`
	Errors   map[string]string `json:"errors,omitempty"`
	DryRun   bool              `json:"dry_run"`
}

// importJob is one photo to enroll.
type importJob struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// collectImportJobs walks root for photos.
func collectImportJobs(root string) ([]importJob, error) {
	var jobs []importJob
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isImageFile(path) {
			return nil
		}
		jobs = append(jobs, importJob{Path: path, Name: nameForFile(root, path)})
		return nil
	})
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Path < jobs[j].Path })
	return jobs, err
}

func runImport(cmd *cobra.Command, args []string) error {
	root := args[0]
	concurrency := mustGetInt(cmd, "concurrency")
	dryRun := mustGetBool(cmd, "dry-run")
	jsonOutput := mustGetBool(cmd, "json")
	if concurrency < 1 {
		return fmt.Errorf("--concurrency must be at least 1")
	}

	jobs, err := collectImportJobs(root)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", root, err)
	}
	if len(jobs) == 0 {
		return fmt.Errorf("no photos found in %s", root)
	}

	if dryRun {
		if jsonOutput {
			return outputJSON(jobs)
		}
		for _, job := range jobs {
			fmt.Printf("  %s -> %s\n", job.Path, job.Name)
		}
		fmt.Printf("\n%d photos would be enrolled\n", len(jobs))
		return nil
	}

	ctx := context.Background()
	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	result := ImportResult{
		Total:    len(jobs),
		Outcomes: make(map[string]int),
		Errors:   make(map[string]string),
	}

	var bar *progressbar.ProgressBar
	if !jsonOutput {
		bar = progressbar.NewOptions(len(jobs),
			progressbar.OptionSetDescription("Enrolling faces"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("photos"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, job := range jobs {
		job := job
		g.Go(func() error {
			out, err := enrollFile(gctx, a.service, job)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Failed++
				result.Errors[job.Path] = err.Error()
				a.logger.Debug("import failed", zap.String("path", job.Path), zap.Error(err))
			case out.Kind == recognition.KindEnrolled:
				result.Enrolled++
				result.Outcomes[out.Kind.String()]++
			default:
				result.Skipped++
				result.Outcomes[out.Kind.String()]++
				result.Errors[job.Path] = out.Message()
			}
			if bar != nil {
				bar.Add(1)
			}
			// Keep going on per-file failures; the summary reports them.
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if jsonOutput {
		return outputJSON(result)
	}

	fmt.Printf("\n\nEnrolled %d of %d photos", result.Enrolled, result.Total)
	if result.Skipped > 0 || result.Failed > 0 {
		fmt.Printf(" (%d skipped, %d failed)", result.Skipped, result.Failed)
	}
	fmt.Println()
	paths := make([]string, 0, len(result.Errors))
	for path := range result.Errors {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		fmt.Printf("  %s: %s\n", path, result.Errors[path])
	}
	fmt.Printf("Store now holds %d identities\n", a.store.Count())
	return nil
}

// enrollFile reads one photo and enrolls it.
func enrollFile(ctx context.Context, svc *recognition.Service, job importJob) (recognition.Outcome, error) {
	image, err := os.ReadFile(job.Path)
	if err != nil {
		return recognition.Outcome{}, fmt.Errorf("reading image: %w", err)
	}
	return svc.Enroll(ctx, job.Name, image)
}
