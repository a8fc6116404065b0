package covariates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormula_EvaluatesArithmeticExpressions(t *testing.T) {
	cases := []struct {
		name   string
		expr   string
		inputs map[string]float64
		want   float64
	}{
		{"addition", "BW + AGE", map[string]float64{"BW": 70, "AGE": 30}, 100},
		{"precedence", "BW + AGE * 2", map[string]float64{"BW": 70, "AGE": 30}, 130},
		{"parentheses", "(BW + AGE) * 2", map[string]float64{"BW": 70, "AGE": 30}, 200},
		{"division", "BW / (72 - AGE*0.2)", map[string]float64{"BW": 72, "AGE": 10}, 72.0 / 70},
		{"unary minus", "-BW", map[string]float64{"BW": 70}, -70},
		{"power", "BW ^ 2", map[string]float64{"BW": 3}, 9},
		{"sqrt", "sqrt(BW)", map[string]float64{"BW": 81}, 9},
		{"exp", "exp(0)", nil, 1},
		{"log", "log(1)", nil, 0},
		{"min", "min(BW, AGE)", map[string]float64{"BW": 70, "AGE": 30}, 30},
		{"max", "max(BW, AGE)", map[string]float64{"BW": 70, "AGE": 30}, 70},
		{"literal", "42", nil, 42},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inputs := make([]string, 0, len(tc.inputs))
			for id := range tc.inputs {
				inputs = append(inputs, id)
			}
			formula, err := ParseFormula(tc.expr, inputs)
			require.NoError(t, err)

			got, err := formula.Eval(tc.inputs)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestParseFormula_RejectsUnbalancedParentheses(t *testing.T) {
	_, err := ParseFormula("(BW + AGE", nil)
	assert.Error(t, err)
}

func TestParseFormula_RejectsTrailingGarbage(t *testing.T) {
	_, err := ParseFormula("BW + AGE )", nil)
	assert.Error(t, err)
}

func TestParseFormula_Eval_UnknownFunction_Errors(t *testing.T) {
	formula, err := ParseFormula("bogus(BW)", []string{"BW"})
	require.NoError(t, err)

	_, err = formula.Eval(map[string]float64{"BW": 70})
	assert.Error(t, err)
}

func TestParseFormula_Eval_MissingIdentifier_Errors(t *testing.T) {
	formula, err := ParseFormula("BW + AGE", []string{"BW", "AGE"})
	require.NoError(t, err)

	_, err = formula.Eval(map[string]float64{"BW": 70})
	assert.Error(t, err)
}
