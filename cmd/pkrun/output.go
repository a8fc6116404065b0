package pkrun

import "github.com/tucuxi-go/pkengine/core"

type compartmentDescriptorOut struct {
	AnalyteID string `json:"analyteId"`
	Index     int    `json:"index"`
}

func compartmentsOut(descs []core.CompartmentDescriptor) []compartmentDescriptorOut {
	out := make([]compartmentDescriptorOut, len(descs))
	for i, d := range descs {
		out[i] = compartmentDescriptorOut{AnalyteID: d.AnalyteID, Index: d.Index}
	}
	return out
}

type cycleStatisticsOut struct {
	AUC    float64 `json:"auc"`
	Peak   float64 `json:"peak"`
	Trough float64 `json:"trough"`
	Mean   float64 `json:"mean"`
}

type cycleDataOut struct {
	Start            string                 `json:"start"`
	End              string                 `json:"end"`
	Concentrations   [][]float64            `json:"concentrations"`
	SampleTimesHours []float64              `json:"sampleTimesHours"`
	Parameters       map[string]float64     `json:"parameters"`
	Covariates       map[string]float64     `json:"covariates,omitempty"`
	Statistics       []cycleStatisticsOut   `json:"statistics,omitempty"`
}

func cycleDataOutOf(c core.CycleData) cycleDataOut {
	out := cycleDataOut{
		Start:            c.Start.String(),
		End:              c.End.String(),
		SampleTimesHours: c.SampleTimesHours,
		Parameters:       c.Parameters.Values,
		Covariates:       c.Covariates,
	}
	out.Concentrations = make([][]float64, len(c.Concentrations))
	for i, cc := range c.Concentrations {
		out.Concentrations[i] = []float64(cc)
	}
	if c.Statistics != nil {
		out.Statistics = make([]cycleStatisticsOut, len(c.Statistics))
		for i, s := range c.Statistics {
			out.Statistics[i] = cycleStatisticsOut{AUC: s.AUC, Peak: s.Peak, Trough: s.Trough, Mean: s.Mean}
		}
	}
	return out
}

func cyclesOut(cycles []core.CycleData) []cycleDataOut {
	out := make([]cycleDataOut, len(cycles))
	for i, c := range cycles {
		out[i] = cycleDataOutOf(c)
	}
	return out
}

type targetScoreOut struct {
	TargetType string  `json:"targetType"`
	AnalyteID  string  `json:"analyteId"`
	Observed   float64 `json:"observed"`
	Score      float64 `json:"score"`
}

type timeRangeOut struct {
	Start  string `json:"start"`
	End    string `json:"end,omitempty"`
	HasEnd bool   `json:"hasEnd"`
	Dose   float64 `json:"dose,omitempty"`
	PeriodHours float64 `json:"periodHours,omitempty"`
}

func regimenHistoryOut(h core.DoseHistory) []timeRangeOut {
	out := make([]timeRangeOut, len(h.Ranges))
	for i, r := range h.Ranges {
		to := timeRangeOut{Start: r.Start.String(), HasEnd: r.HasEnd}
		if r.HasEnd {
			to.End = r.End.String()
		}
		if ld, ok := r.Dosage.(core.LastingDose); ok {
			to.Dose = ld.Value
			to.PeriodHours = ld.Period.Hours()
		}
		out[i] = to
	}
	return out
}

type adjustmentCandidateOut struct {
	RegimenHistory []timeRangeOut   `json:"regimenHistory"`
	TargetScores   []targetScoreOut `json:"targetScores"`
	GlobalScore    float64          `json:"globalScore"`
}

type responseOut struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`

	Cycles       []cycleDataOut              `json:"cycles,omitempty"`
	Ranks        []float64                   `json:"ranks,omitempty"`
	PerRankCycles [][]cycleDataOut           `json:"perRankCycles,omitempty"`
	Instants     []string                    `json:"instants,omitempty"`
	PerCompartment [][]float64               `json:"perCompartment,omitempty"`
	Compartments []compartmentDescriptorOut  `json:"compartments,omitempty"`

	CurrentRegimenScore float64                  `json:"currentRegimenScore,omitempty"`
	Candidates          []adjustmentCandidateOut `json:"candidates,omitempty"`
}

// responseOutOf converts a core.ComputingResponse into a JSON-friendly
// struct, dispatching on the payload's concrete type since ResponsePayload
// carries no exported fields of its own to marshal generically.
func responseOutOf(resp core.ComputingResponse) responseOut {
	out := responseOut{ID: resp.ID, Status: resp.Status.String()}
	if resp.Err != nil {
		out.Error = resp.Err.Error()
	}
	switch payload := resp.Payload.(type) {
	case core.SinglePredictionPayload:
		out.Cycles = cyclesOut(payload.Cycles)
		out.Compartments = compartmentsOut(payload.Compartments)
	case core.PercentilesPayload:
		out.Ranks = payload.Ranks
		out.PerRankCycles = make([][]cycleDataOut, len(payload.PerRankCycles))
		for i, cycles := range payload.PerRankCycles {
			out.PerRankCycles[i] = cyclesOut(cycles)
		}
		out.Compartments = compartmentsOut(payload.Compartments)
	case core.SinglePointsPayload:
		out.Instants = make([]string, len(payload.Instants))
		for i, at := range payload.Instants {
			out.Instants[i] = at.String()
		}
		out.PerCompartment = make([][]float64, len(payload.PerCompartment))
		for i, c := range payload.PerCompartment {
			out.PerCompartment[i] = []float64(c)
		}
		out.Compartments = compartmentsOut(payload.Compartments)
	case core.AdjustmentPayload:
		out.CurrentRegimenScore = payload.CurrentRegimenScore
		out.Candidates = make([]adjustmentCandidateOut, len(payload.Candidates))
		for i, c := range payload.Candidates {
			scores := make([]targetScoreOut, len(c.TargetScores))
			for j, s := range c.TargetScores {
				scores[j] = targetScoreOut{TargetType: string(s.TargetType), AnalyteID: s.AnalyteID, Observed: s.Observed, Score: s.Score}
			}
			out.Candidates[i] = adjustmentCandidateOut{
				RegimenHistory: regimenHistoryOut(c.RegimenHistory),
				TargetScores:   scores,
				GlobalScore:    c.GlobalScore,
			}
		}
	}
	return out
}
