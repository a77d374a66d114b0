// Package observer defines the optional lifecycle callback bundle a host
// may supply to watch a query's progress (spec §6.4). A nil Observer, or a
// nil individual field, is always safe to call through — every dispatch
// method checks before invoking.
package observer

// Observer is a struct of optional function fields rather than an
// interface, per spec §9's design note: the core checks "observer != nil"
// once per event rather than requiring a host to implement every method.
type Observer struct {
	InferenceStart    func(query, strategy string)
	Thought           func(text string)
	ToolDiscovery     func(names []string)
	ToolSelection     func(name string, args map[string]interface{})
	ToolExecution     func(name string, result string, ok bool)
	PartialResponse   func(text string)
	InferenceComplete func(text string)
	Error             func(message string, cause error)
}

// EmitInferenceStart is a nil-safe dispatch of InferenceStart.
func (o *Observer) EmitInferenceStart(query, strategy string) {
	if o != nil && o.InferenceStart != nil {
		o.InferenceStart(query, strategy)
	}
}

// EmitThought is a nil-safe dispatch of Thought.
func (o *Observer) EmitThought(text string) {
	if o != nil && o.Thought != nil {
		o.Thought(text)
	}
}

// EmitToolDiscovery is a nil-safe dispatch of ToolDiscovery.
func (o *Observer) EmitToolDiscovery(names []string) {
	if o != nil && o.ToolDiscovery != nil {
		o.ToolDiscovery(names)
	}
}

// EmitToolSelection is a nil-safe dispatch of ToolSelection.
func (o *Observer) EmitToolSelection(name string, args map[string]interface{}) {
	if o != nil && o.ToolSelection != nil {
		o.ToolSelection(name, args)
	}
}

// EmitToolExecution is a nil-safe dispatch of ToolExecution.
func (o *Observer) EmitToolExecution(name, result string, ok bool) {
	if o != nil && o.ToolExecution != nil {
		o.ToolExecution(name, result, ok)
	}
}

// EmitPartialResponse is a nil-safe dispatch of PartialResponse.
func (o *Observer) EmitPartialResponse(text string) {
	if o != nil && o.PartialResponse != nil {
		o.PartialResponse(text)
	}
}

// EmitInferenceComplete is a nil-safe dispatch of InferenceComplete.
func (o *Observer) EmitInferenceComplete(text string) {
	if o != nil && o.InferenceComplete != nil {
		o.InferenceComplete(text)
	}
}

// EmitError is a nil-safe dispatch of Error.
func (o *Observer) EmitError(message string, cause error) {
	if o != nil && o.Error != nil {
		o.Error(message, cause)
	}
}
