// Entrypoint for the pkrun CLI; delegates to the Cobra root command in
// cmd/pkrun/root.go.

package main

import (
	"github.com/tucuxi-go/pkengine/cmd/pkrun"
)

func main() {
	pkrun.Execute()
}
