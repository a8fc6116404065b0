package percentile

import "github.com/tucuxi-go/pkengine/core"

// init wires Engine and Cache into their registration points, mirroring
// sim/latency/register.go's one-line registration.
func init() {
	core.NewPercentileEngineFunc = func() core.PercentileEngine { return NewEngine() }
	core.NewPercentileCacheFunc = func() core.PercentileCache { return NewCache() }
}
