package adjustment

import "github.com/tucuxi-go/pkengine/core"

// init wires Search into its registration point, mirroring
// sim/latency/register.go's one-line registration.
func init() {
	core.NewAdjustmentSearchFunc = func() core.AdjustmentSearch { return NewSearch() }
}
