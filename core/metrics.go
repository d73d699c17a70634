package core

// Metrics records domain events.
type Metrics interface {
	SubmissionCreated()
	StatusChanged(from, to string)
	ReviewCompleted()
	Deposited(outcome string)
}

// NopMetrics records nothing.
type NopMetrics struct{}

var _ Metrics = NopMetrics{}

func (NopMetrics) SubmissionCreated()           {}
func (NopMetrics) StatusChanged(string, string) {}
func (NopMetrics) ReviewCompleted()             {}
func (NopMetrics) Deposited(string)             {}
