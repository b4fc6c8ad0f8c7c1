package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/credent-works/certverify-cli/internal/model"
	"github.com/credent-works/certverify-cli/internal/pipeline"
)

var verifySource string

var verifyCmd = &cobra.Command{
	Use:   "verify <submission.json>",
	Short: "Verify one submission of extracted certificates",
	Long:  "Reads a submission JSON file (a certificates array as produced by the extraction stage), scores every certificate, and prints the annotated result.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		sub, err := readSubmission(args[0])
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		source := verifySource
		if source == "" {
			source = args[0]
		}

		result, err := env.Pipeline.Run(ctx, sub, source)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("verification complete",
			zap.String("source", source),
			zap.String("summary", pipeline.Describe(result)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

// readSubmission accepts either a Submission object or a bare certificate
// array.
func readSubmission(path string) (model.Submission, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Submission{}, eris.Wrapf(err, "read submission %s", path)
	}

	var sub model.Submission
	if err := json.Unmarshal(data, &sub); err == nil && len(sub.Certificates) > 0 {
		return sub, nil
	}

	var certs []*model.ExtractedCertificate
	if err := json.Unmarshal(data, &certs); err != nil {
		return model.Submission{}, eris.Wrapf(err, "parse submission %s", path)
	}
	return model.Submission{Certificates: certs}, nil
}

func init() {
	verifyCmd.Flags().StringVar(&verifySource, "source", "", "submission source label (default: file name)")
	rootCmd.AddCommand(verifyCmd)
}
