// Package pkrun's root.go wires the Cobra command tree, mirroring the
// teacher's cmd/root.go: package-level flag variables bound in init,
// logrus for level-controlled logging, one subcommand per trait.
package pkrun

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tucuxi-go/pkengine/core"

	// Blank imports register each subsystem's implementation with core's
	// factory hooks, per the import-cycle-breaking registration pattern.
	_ "github.com/tucuxi-go/pkengine/adjustment"
	_ "github.com/tucuxi-go/pkengine/bayes"
	_ "github.com/tucuxi-go/pkengine/calculators"
	_ "github.com/tucuxi-go/pkengine/covariates"
	_ "github.com/tucuxi-go/pkengine/percentile"
)

var (
	modelPath     string
	treatmentPath string
	logLevel      string
	startFlag     string
	endFlag       string
	pointsPerHour float64
	halfLifeHours float64
	paramSetFlag  string
	resultUnitFlag string
)

var rootCmd = &cobra.Command{
	Use:   "pkrun",
	Short: "Pharmacokinetic prediction and dosage adjustment engine",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&modelPath, "model", "", "Path to the drug model JSON file (required)")
	rootCmd.PersistentFlags().StringVar(&treatmentPath, "treatment", "", "Path to the patient treatment JSON file (required)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (debug, info, warn, error)")
	rootCmd.MarkPersistentFlagRequired("model")
	rootCmd.MarkPersistentFlagRequired("treatment")

	concentrationCmd.Flags().StringVar(&startFlag, "start", "", "Prediction window start, RFC3339 (required)")
	concentrationCmd.Flags().StringVar(&endFlag, "end", "", "Prediction window end, RFC3339 (required)")
	concentrationCmd.Flags().Float64Var(&pointsPerHour, "pph", 20, "Sample points per hour")
	concentrationCmd.Flags().Float64Var(&halfLifeHours, "half-life", 0, "Elimination half-life in hours; accepted but not read by the concentration computation")
	concentrationCmd.Flags().StringVar(&paramSetFlag, "param-set", "population", "Parameter set: population, apriori, aposteriori")
	concentrationCmd.Flags().StringVar(&resultUnitFlag, "result-unit", "model", "Result unit: model, ug-per-l")

	percentilesCmd.Flags().StringVar(&startFlag, "start", "", "Prediction window start, RFC3339 (required)")
	percentilesCmd.Flags().StringVar(&endFlag, "end", "", "Prediction window end, RFC3339 (required)")
	percentilesCmd.Flags().Float64Var(&pointsPerHour, "pph", 20, "Sample points per hour")
	percentilesCmd.Flags().Float64SliceVar(&ranksFlag, "ranks", []float64{5, 25, 50, 75, 95}, "Percentile ranks in (0,100)")
	percentilesCmd.Flags().IntVar(&numSamplesFlag, "samples", 0, "Monte-Carlo sample count (0 selects the engine default)")

	adjustmentCmd.Flags().StringVar(&startFlag, "start", "", "Evaluation window start, RFC3339 (required)")
	adjustmentCmd.Flags().StringVar(&endFlag, "end", "", "Evaluation window end, RFC3339 (required)")
	adjustmentCmd.Flags().StringVar(&adjustmentTimeFlag, "at", "", "Adjustment time, RFC3339 (defaults to --start)")
	adjustmentCmd.Flags().Float64Var(&pointsPerHour, "pph", 20, "Sample points per hour")
	adjustmentCmd.Flags().StringVar(&candidatesFlag, "candidates", "best", "best, all, best-per-interval")
	adjustmentCmd.Flags().BoolVar(&loadingFlag, "loading", false, "Allow a loading dose")
	adjustmentCmd.Flags().BoolVar(&restFlag, "rest", false, "Allow a rest period before the new regimen")
	adjustmentCmd.Flags().BoolVar(&steadyStateFlag, "steady-state", true, "Evaluate at steady state rather than over the treatment window")
	adjustmentCmd.Flags().StringVar(&targetExtractionFlag, "target-extraction", "population", "population, apriori, individual-only")
	adjustmentCmd.Flags().StringVar(&farSelectionFlag, "formulation-selection", "default", "last, default, all")

	rootCmd.AddCommand(concentrationCmd, percentilesCmd, adjustmentCmd)
}

func parseParameterSet(s string) (core.ParameterSetKind, error) {
	switch s {
	case "", "population":
		return core.ParameterSetPopulation, nil
	case "apriori":
		return core.ParameterSetApriori, nil
	case "aposteriori":
		return core.ParameterSetAposteriori, nil
	default:
		return 0, fmt.Errorf("unrecognized parameter set %q", s)
	}
}

func parseResultUnit(s string) (core.ResultUnitOption, error) {
	switch s {
	case "", "model":
		return core.RespectDrugModelUnit, nil
	case "ug-per-l":
		return core.ForceMicrogramPerLiter, nil
	default:
		return 0, fmt.Errorf("unrecognized result unit %q", s)
	}
}

func loadModelAndTreatment() (core.DrugModel, core.DrugTreatment, error) {
	model, err := loadDrugModel(modelPath)
	if err != nil {
		return core.DrugModel{}, core.DrugTreatment{}, err
	}
	treatment, err := loadDrugTreatment(treatmentPath)
	if err != nil {
		return core.DrugModel{}, core.DrugTreatment{}, err
	}
	return model, treatment, nil
}

func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

func printResponse(resp *core.ComputingResponse) error {
	encoded, err := json.MarshalIndent(responseOutOf(*resp), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	fmt.Println(string(encoded))
	return nil
}

var concentrationCmd = &cobra.Command{
	Use:   "concentration",
	Short: "Predict compartment concentrations over a time window",
	RunE: func(cmd *cobra.Command, args []string) error {
		setLogLevel()
		model, treatment, err := loadModelAndTreatment()
		if err != nil {
			return err
		}
		start, err := parseInstant(startFlag)
		if err != nil {
			return err
		}
		end, err := parseInstant(endFlag)
		if err != nil {
			return err
		}
		paramSet, err := parseParameterSet(paramSetFlag)
		if err != nil {
			return err
		}
		resultUnit, err := parseResultUnit(resultUnitFlag)
		if err != nil {
			return err
		}

		req := core.NewComputingRequest(uuid.NewString(), model, treatment, core.TraitConcentrationData{
			Start:         start,
			End:           end,
			PointsPerHour: pointsPerHour,
			Options:       core.ComputingOptions{ResultUnit: resultUnit, Compartments: core.CompartmentsAll},
			ParameterSet:  paramSet,
		})
		logrus.WithFields(logrus.Fields{"drug": model.DrugID, "model": model.ModelID}).Info("running concentration prediction")
		return printResponse(core.Dispatch(req))
	},
}

var (
	ranksFlag      []float64
	numSamplesFlag int
)

var percentilesCmd = &cobra.Command{
	Use:   "percentiles",
	Short: "Compute percentile concentration bands over a time window",
	RunE: func(cmd *cobra.Command, args []string) error {
		setLogLevel()
		model, treatment, err := loadModelAndTreatment()
		if err != nil {
			return err
		}
		start, err := parseInstant(startFlag)
		if err != nil {
			return err
		}
		end, err := parseInstant(endFlag)
		if err != nil {
			return err
		}

		req := core.NewComputingRequest(uuid.NewString(), model, treatment, core.TraitPercentilesData{
			Start:         start,
			End:           end,
			PointsPerHour: pointsPerHour,
			Options:       core.ComputingOptions{Compartments: core.CompartmentsAll},
			Ranks:         ranksFlag,
			NumSamples:    numSamplesFlag,
		})
		logrus.WithFields(logrus.Fields{"drug": model.DrugID, "ranks": ranksFlag}).Info("running percentile computation")
		return printResponse(core.Dispatch(req))
	},
}

var (
	adjustmentTimeFlag  string
	candidatesFlag      string
	loadingFlag         bool
	restFlag            bool
	steadyStateFlag     bool
	targetExtractionFlag string
	farSelectionFlag    string
)

func parseCandidatesOption(s string) (core.CandidatesOption, error) {
	switch s {
	case "", "best":
		return core.BestDosage, nil
	case "all":
		return core.AllDosages, nil
	case "best-per-interval":
		return core.BestDosagePerInterval, nil
	default:
		return 0, fmt.Errorf("unrecognized candidates option %q", s)
	}
}

func parseTargetExtraction(s string) (core.TargetExtractionOption, error) {
	switch s {
	case "", "population":
		return core.TargetExtractionPopulationValues, nil
	case "apriori":
		return core.TargetExtractionAprioriValues, nil
	case "individual-only":
		return core.TargetExtractionIndividualTargetsOnly, nil
	default:
		return 0, fmt.Errorf("unrecognized target extraction option %q", s)
	}
}

func parseFormulationSelection(s string) (core.FormulationAndRouteSelectionOption, error) {
	switch s {
	case "last":
		return core.LastFormulationAndRoute, nil
	case "", "default":
		return core.DefaultFormulationAndRoute, nil
	case "all":
		return core.AllFormulationAndRoutes, nil
	default:
		return 0, fmt.Errorf("unrecognized formulation selection option %q", s)
	}
}

var adjustmentCmd = &cobra.Command{
	Use:   "adjustment",
	Short: "Search for a dosage adjustment meeting the drug model's targets",
	RunE: func(cmd *cobra.Command, args []string) error {
		setLogLevel()
		model, treatment, err := loadModelAndTreatment()
		if err != nil {
			return err
		}
		start, err := parseInstant(startFlag)
		if err != nil {
			return err
		}
		end, err := parseInstant(endFlag)
		if err != nil {
			return err
		}
		adjustmentTime := start
		if adjustmentTimeFlag != "" {
			adjustmentTime, err = parseInstant(adjustmentTimeFlag)
			if err != nil {
				return err
			}
		}
		candidatesOpt, err := parseCandidatesOption(candidatesFlag)
		if err != nil {
			return err
		}
		targetExtractionOpt, err := parseTargetExtraction(targetExtractionFlag)
		if err != nil {
			return err
		}
		farSelectionOpt, err := parseFormulationSelection(farSelectionFlag)
		if err != nil {
			return err
		}

		loading := core.NoLoadingDose
		if loadingFlag {
			loading = core.LoadingDoseAllowed
		}
		rest := core.NoRestPeriod
		if restFlag {
			rest = core.RestPeriodAllowed
		}
		steadyState := core.WithinTreatmentTimeRange
		if steadyStateFlag {
			steadyState = core.AtSteadyState
		}

		req := core.NewComputingRequest(uuid.NewString(), model, treatment, core.TraitAdjustmentData{
			Start:                              start,
			End:                                end,
			PointsPerHour:                      pointsPerHour,
			Options:                            core.ComputingOptions{Compartments: core.CompartmentsAll},
			AdjustmentTime:                     adjustmentTime,
			CandidatesOption:                   candidatesOpt,
			LoadingOption:                      loading,
			RestPeriodOption:                   rest,
			SteadyStateTargetOption:            steadyState,
			TargetExtractionOption:             targetExtractionOpt,
			FormulationAndRouteSelectionOption: farSelectionOpt,
		})
		logrus.WithFields(logrus.Fields{"drug": model.DrugID, "at": adjustmentTime.Time().Format(time.RFC3339)}).
			Info("running dosage adjustment search")
		return printResponse(core.Dispatch(req))
	},
}
