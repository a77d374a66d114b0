package core

import "testing"

func sampleTool() *Tool {
	return &Tool{
		Name:     "get_forecast",
		ServerID: "weather",
		Schema: ToolSchema{
			Properties: map[string]ToolParameter{
				"city":  {Type: "string"},
				"days":  {Type: "integer", Default: float64(3)},
				"metric": {Type: "boolean", Default: true},
			},
			Required: []string{"city"},
		},
	}
}

func TestValidateArgsMissingRequired(t *testing.T) {
	tool := sampleTool()
	err := tool.ValidateArgs(map[string]interface{}{})
	if err == nil {
		t.Fatal("expected error for missing required argument")
	}
}

func TestValidateArgsTypeMismatch(t *testing.T) {
	tool := sampleTool()
	err := tool.ValidateArgs(map[string]interface{}{"city": 123})
	if err == nil {
		t.Fatal("expected type mismatch error")
	}
}

func TestNormalizeArgsAppliesDefaultsAndCoercesTypes(t *testing.T) {
	tool := sampleTool()
	args := map[string]interface{}{"city": "NYC", "days": "5"}
	out := tool.NormalizeArgs(args)

	if out["city"] != "NYC" {
		t.Errorf("city = %v, want NYC", out["city"])
	}
	if out["days"] != float64(5) {
		t.Errorf("days = %v, want 5", out["days"])
	}
	if out["metric"] != true {
		t.Errorf("metric default not applied: %v", out["metric"])
	}
}

func TestNormalizeArgsIsIdempotent(t *testing.T) {
	tool := sampleTool()
	args := map[string]interface{}{"city": "NYC", "days": "5"}
	once := tool.NormalizeArgs(args)
	twice := tool.NormalizeArgs(once)

	for k, v := range once {
		if twice[k] != v {
			t.Errorf("normalize not idempotent for %q: %v != %v", k, v, twice[k])
		}
	}
}

func TestMissingRequiredPreservesSchemaOrder(t *testing.T) {
	tool := &Tool{
		Schema: ToolSchema{
			Properties: map[string]ToolParameter{
				"a": {Type: "string"},
				"b": {Type: "string"},
			},
			Required: []string{"a", "b"},
		},
	}
	missing := tool.MissingRequired(map[string]interface{}{})
	if len(missing) != 2 || missing[0] != "a" || missing[1] != "b" {
		t.Errorf("missing = %v, want [a b]", missing)
	}
}
