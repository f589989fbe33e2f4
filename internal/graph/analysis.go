package graph

// AnalysisReport bundles the structural reports over one graph
type AnalysisReport struct {
	Topology *TopologyReport `json:"topology"`
	Dormancy *DormancyReport `json:"dormancy"`
}

// AnalyzerConfig holds analysis parameters
type AnalyzerConfig struct {
	HubThreshold int
	TopN         int
	StaleDays    int64
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *AnalyzerConfig {
	return &AnalyzerConfig{
		HubThreshold: 10,
		TopN:         20,
		StaleDays:    90,
	}
}

// Analyze runs all structural analyses
func Analyze(g *DiscussionGraph, config *AnalyzerConfig) *AnalysisReport {
	if config == nil {
		config = DefaultConfig()
	}
	return &AnalysisReport{
		Topology: ComputeTopology(g, config.HubThreshold, config.TopN),
		Dormancy: ComputeDormancy(g, config.StaleDays, config.TopN),
	}
}
