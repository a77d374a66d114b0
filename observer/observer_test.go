package observer

import "testing"

func TestNilObserverEmitsAreNoops(t *testing.T) {
	var o *Observer
	o.EmitInferenceStart("q", "direct")
	o.EmitThought("thinking")
	o.EmitToolDiscovery([]string{"a"})
	o.EmitToolSelection("a", nil)
	o.EmitToolExecution("a", "ok", true)
	o.EmitPartialResponse("partial")
	o.EmitInferenceComplete("done")
	o.EmitError("bad", nil)
}

func TestObserverDispatchesSetFields(t *testing.T) {
	var got string
	o := &Observer{Thought: func(text string) { got = text }}
	o.EmitThought("considering options")
	if got != "considering options" {
		t.Errorf("got = %q", got)
	}
	o.EmitInferenceStart("q", "direct") // unset field, must not panic
}
