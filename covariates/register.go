package covariates

import "github.com/tucuxi-go/pkengine/core"

// init wires Engine into core.NewCovariateEngineFunc, mirroring
// sim/latency/register.go's one-line registration.
func init() {
	core.NewCovariateEngineFunc = func() core.CovariateEngine { return NewEngine() }
}
