package calculators

import "github.com/tucuxi-go/pkengine/core"

// init wires every (structural model, absorption model) pair this package
// implements into core.NewCalculatorFunc, mirroring sim/kv/register.go's
// wiring of multiple behaviors from one sub-package into the interface
// owner's registration variable.
func init() {
	linearModels := []core.StructuralModel{
		core.ModelLinear1CompMacro,
		core.ModelLinear2CompMacro,
		core.ModelLinear2CompMicro,
		core.ModelLinear3CompMacro,
	}
	absorptions := []core.AbsorptionModel{
		core.AbsorptionBolus,
		core.AbsorptionInfusion,
		core.AbsorptionExtravascular,
		core.AbsorptionExtravascularLag,
	}
	for _, structural := range linearModels {
		for _, absorption := range absorptions {
			s, a := structural, absorption
			core.NewCalculatorFunc[core.CalculatorKey{Structural: s, Absorption: a}] = func() core.Calculator {
				return linearCalculator{structural: s, absorption: a}
			}
		}
	}

	mmModels := []core.StructuralModel{
		core.ModelMichaelisMenten1Comp,
		core.ModelMichaelisMenten2CompMicro,
		core.ModelMichaelisMenten2CompMacro,
		core.ModelMichaelisMenten2CompVmaxAmtMacro,
	}
	for _, structural := range mmModels {
		for _, absorption := range absorptions {
			s, a := structural, absorption
			core.NewCalculatorFunc[core.CalculatorKey{Structural: s, Absorption: a}] = func() core.Calculator {
				return michaelisMentenCalculator{structural: s, absorption: a}
			}
		}
	}
}
