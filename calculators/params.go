package calculators

// Standard disposition and absorption parameter names every calculator in
// this package reads via core.PKParameters.Get/MustGet, matching the
// conventional PK nomenclature used across tucucore-derived drug models.
const (
	ParamCL = "CL" // clearance, volume/time
	ParamV  = "V"  // central volume, one-compartment models
	ParamV1 = "V1" // central volume, multi-compartment models
	ParamV2 = "V2" // peripheral volume 2
	ParamV3 = "V3" // peripheral volume 3
	ParamQ  = "Q"  // inter-compartmental clearance, two-compartment macro
	ParamQ2 = "Q2" // inter-compartmental clearance, three-compartment
	ParamQ3 = "Q3" // inter-compartmental clearance, three-compartment

	ParamK10 = "K10" // micro-constant elimination rate
	ParamK12 = "K12" // micro-constant central->peripheral 1
	ParamK21 = "K21" // micro-constant peripheral 1->central

	ParamKa = "Ka" // absorption rate constant, extravascular routes
	ParamF  = "F"  // bioavailability fraction, extravascular routes
	ParamTlag = "Tlag" // absorption lag time, extravascular-with-lag routes

	ParamVmax = "Vmax" // maximum elimination rate, Michaelis-Menten
	ParamKm   = "Km"   // Michaelis constant, Michaelis-Menten
)

// bioavailability returns F if declared, defaulting to 1 (full
// bioavailability) when the drug model's parameter set omits it.
func bioavailability(values map[string]float64) float64 {
	if f, ok := values[ParamF]; ok {
		return f
	}
	return 1
}
