package metrics

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordError(string)               {}
func (Nop) RecordLatency(string, float64)    {}
func (Nop) RecordLastPrice(string, float64)  {}
func (Nop) RecordStreamState(string, string) {}
func (Nop) RecordReconnect(string)           {}
func (Nop) RecordFrame(string, string)       {}
func (Nop) RecordDecision(string, string)    {}
func (Nop) RecordAnalyzerFailure(string)     {}
func (Nop) RecordDropped(string)             {}
func (Nop) RecordQueueDepth(string, int)     {}
func (Nop) RecordExecution(string)           {}
func (Nop) RecordOrder(string)               {}
func (Nop) RecordDrawdown(float64)           {}
