package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-id/internal/recognition"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <name> <image>",
	Short: "Add a person from a photo",
	Long: `Extract the face from a photo and store it under the given name.

Examples:
  face-id enroll "Alice" photos/alice.jpg
  face-id enroll "Bob" bob.png --json`,
	Args: cobra.ExactArgs(2),
	RunE: runEnroll,
}

var recognizeCmd = &cobra.Command{
	Use:   "recognize <image>",
	Short: "Recognize the person in a photo",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecognize,
}

func init() {
	rootCmd.AddCommand(enrollCmd)
	rootCmd.AddCommand(recognizeCmd)

	enrollCmd.Flags().Bool("json", false, "Output as JSON")
	recognizeCmd.Flags().Bool("json", false, "Output as JSON")
}

// OutcomeResult is the JSON form of an enroll or recognize outcome.
type OutcomeResult struct {
	Outcome    string  `json:"outcome"`
	Message    string  `json:"message"`
	FaceID     int64   `json:"face_id,omitempty"`
	Name       string  `json:"name,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Distance   float64 `json:"distance,omitempty"`
}

func outcomeResult(out recognition.Outcome) OutcomeResult {
	return OutcomeResult{
		Outcome:    out.Kind.String(),
		Message:    out.Message(),
		FaceID:     out.FaceID,
		Name:       out.Name,
		Confidence: out.Confidence,
		Distance:   out.Distance,
	}
}

// printOutcome prints the outcome and turns client errors into a command error.
func printOutcome(out recognition.Outcome, jsonOutput bool) error {
	if jsonOutput {
		if err := outputJSON(outcomeResult(out)); err != nil {
			return err
		}
	} else {
		switch out.Kind {
		case recognition.KindEnrolled:
			fmt.Printf("%s (ID: %d)\n", out.Message(), out.FaceID)
		case recognition.KindMatched:
			fmt.Printf("%s (confidence: %.2f%%, distance: %.4f)\n", out.Message(), out.Confidence*100, out.Distance)
		default:
			fmt.Println(out.Message())
		}
	}
	if out.Kind.IsClientError() {
		return fmt.Errorf("%s", out.Kind)
	}
	return nil
}

func runEnroll(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	image, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := a.service.Enroll(ctx, args[0], image)
	if err != nil {
		return fmt.Errorf("enrolling %s: %w", args[1], err)
	}
	return printOutcome(out, mustGetBool(cmd, "json"))
}

func runRecognize(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	image, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := a.service.Recognize(ctx, image)
	if err != nil {
		return fmt.Errorf("recognizing %s: %w", args[0], err)
	}
	return printOutcome(out, mustGetBool(cmd, "json"))
}
