package scenario

import (
	"fmt"
	"math"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// linspaceFunc exposes Linspace to HCL scenarios.
var linspaceFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "start", Type: cty.Number},
		{Name: "stop", Type: cty.Number},
		{Name: "n", Type: cty.Number},
	},
	Type: function.StaticReturnType(cty.List(cty.Number)),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		start, _ := args[0].AsBigFloat().Float64()
		stop, _ := args[1].AsBigFloat().Float64()
		n, acc := args[2].AsBigFloat().Int64()
		if acc != 0 || n < 1 {
			return cty.NilVal, function.NewArgErrorf(2, "n must be a positive whole number")
		}

		vals := Linspace(start, stop, int(n))
		out := make([]cty.Value, len(vals))
		for i, v := range vals {
			out[i] = cty.NumberFloatVal(v)
		}
		return cty.ListVal(out), nil
	},
})

// evalContext is the expression scope of HCL scenarios.
func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"pi": cty.NumberFloatVal(math.Pi),
			"c0": cty.NumberFloatVal(299792458),
		},
		Functions: map[string]function.Function{
			"linspace": linspaceFunc,
			"concat":   stdlib.ConcatFunc,
			"range":    stdlib.RangeFunc,
		},
	}
}

func decodeHCL(path string) (*Scenario, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}
	return decodeHCLBody(file.Body, path)
}

func parseHCL(src []byte, filename string) (*Scenario, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	return decodeHCLBody(file.Body, filename)
}

func decodeHCLBody(body hcl.Body, filename string) (*Scenario, error) {
	var s Scenario
	if diags := gohcl.DecodeBody(body, evalContext(), &s); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}
	return &s, nil
}
