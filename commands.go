package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kartoza/exo-inference/internal/features"
	"github.com/kartoza/exo-inference/internal/inference"
	"github.com/kartoza/exo-inference/internal/models"
	"github.com/kartoza/exo-inference/internal/survey"
	"github.com/kartoza/exo-inference/internal/table"
)

var (
	predictModel    string
	predictOfficial bool
	predictLimit    int
	peekRows        int
)

var predictCmd = &cobra.Command{
	Use:   "predict FILE",
	Short: "Classify the rows of a catalog export and print JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		registry, err := loadRegistry(cmd.Context())
		if err != nil {
			return err
		}
		spec, err := registry.Lookup(predictModel)
		if err != nil {
			return err
		}
		runner := inference.NewRunner(logger)

		if predictOfficial {
			res, err := spec.PreprocessArchive(content, "")
			if err != nil {
				return err
			}
			pred, err := runner.Predict(spec, res.Frame)
			if err != nil {
				return err
			}
			limit := predictLimit
			if limit <= 0 {
				limit = cfg.PredictionLimit
			}
			n := min(len(pred.Labels), limit)
			out := models.OfficialPredictResponse{
				Model:               spec.Slug,
				RowsReceived:        res.Frame.Rows(),
				RowsReturned:        n,
				MissingFeatureCount: len(res.Missing),
				MissingFeatures:     res.Missing,
				DerivationNotes:     features.NoteStrings(res.Notes),
				Retried:             pred.Retried,
				Predictions:         make([]models.ScoredPrediction, n),
				CountsByClass:       pred.Counts,
			}
			for i := range out.Predictions {
				out.Predictions[i] = models.ScoredPrediction{Row: i, Label: pred.Labels[i], Score: pred.Scores[i]}
			}
			return printJSON(out)
		}

		res, err := spec.Preprocess(content, survey.Options{Strict: true})
		if err != nil {
			return err
		}
		pred, err := runner.Predict(spec, res.Frame)
		if err != nil {
			return err
		}
		logger.Debug("Predicted", zap.String("model", spec.Slug), zap.Int("rows", res.Frame.Rows()),
			zap.Strings("missing", res.Missing))
		return printJSON(models.PredictResponse{
			Model:           spec.Slug,
			Rows:            res.Frame.Rows(),
			PredLabels:      pred.Labels,
			ClassNames:      spec.Classes(),
			CountsByClass:   pred.Counts,
			MissingFeatures: res.Missing,
			DerivedFeatures: res.Derived,
		})
	},
}

var peekCmd = &cobra.Command{
	Use:   "peek FILE",
	Short: "Show how a CSV file is parsed: header row, delimiter, columns and sample rows",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		t, err := table.ReadTolerant(content, table.ReadOptions{})
		if err != nil {
			return err
		}
		t = t.Normalize()

		fmt.Printf("header row: %d\ndelimiter:  %q\nrows:       %d\ncolumns:    %d\n\n",
			t.HeaderRow, t.Delimiter, t.Len(), len(t.Columns))
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for i, c := range t.Columns {
			fmt.Fprintf(tw, "%s", c)
			for r := 0; r < peekRows && r < t.Len(); r++ {
				fmt.Fprintf(tw, "\t%s", t.Rows[r][i])
			}
			fmt.Fprintln(tw)
		}
		return tw.Flush()
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models found in the artifacts directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := loadRegistry(cmd.Context())
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "MODEL\tDEFAULT\tFEATURES\tCLASSES\tDIR")
		for _, s := range registry.All() {
			def := ""
			if s.Slug == registry.Default() {
				def = "*"
			}
			feats := "numeric"
			if s.ExpectedFeatures != nil {
				feats = fmt.Sprint(len(s.ExpectedFeatures))
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%v\t%s\n", s.Slug, def, feats, s.Classes(), s.ArtifactDir)
		}
		return tw.Flush()
	},
}

func init() {
	predictCmd.Flags().StringVarP(&predictModel, "model", "m", "", "Model slug (koi, k2, tess); default from config")
	predictCmd.Flags().BoolVar(&predictOfficial, "official", false, "Treat FILE as an unedited archive export")
	predictCmd.Flags().IntVar(&predictLimit, "limit", 0, "Maximum predictions printed with --official")

	peekCmd.Flags().IntVarP(&peekRows, "nrows", "n", 3, "Sample rows to show")
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
