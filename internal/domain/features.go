package domain

// GraphFeatures holds the per-account structural and behavioral features
// derived from the transaction graph. One record per account, recomputed
// from scratch on every batch run.
type GraphFeatures struct {
	AccountID string `json:"accountId"`

	// Structural
	Degree    int `json:"degree"`    // distinct counter-parties
	InDegree  int `json:"inDegree"`  // incoming transaction count
	OutDegree int `json:"outDegree"` // outgoing transaction count

	// ClusteringCoefficient is the fraction of neighbor pairs that are
	// themselves directly connected, in [0,1].
	ClusteringCoefficient float64 `json:"clusteringCoefficient"`

	// Centrality is a single-iteration PageRank approximation, in (0,1].
	Centrality float64 `json:"centrality"`

	// Behavioral
	TotalVolume    float64 `json:"totalVolume"`
	AvgTransaction float64 `json:"avgTransaction"`

	// Velocity is transactions per day over the account's observed span.
	Velocity float64 `json:"velocity"`
}
