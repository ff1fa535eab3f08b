package domain

// NetworkStat is one row of the uploaded performance table.
type NetworkStat struct {
	Date           string  `json:"date"`
	Platform       string  `json:"platform"`
	Impressions    int64   `json:"impressions"`
	Engagement     float64 `json:"engagement"`
	SentimentScore float64 `json:"sentiment_score"`
	TopTopic       string  `json:"top_topic"`
	// Estimated lists the numeric columns that were filled with placeholders.
	Estimated []string `json:"estimated,omitempty"`
}

type NetworkAgentAnalysis struct {
	Summary         string   `json:"summary"`
	Trends          []string `json:"trends"`
	Recommendations []string `json:"recommendations"`
	BestPlatform    string   `json:"best_platform"`
}

// DecodeNetworkAnalysis parses the agent output. Summary is required; list
// fields default to empty.
func DecodeNetworkAnalysis(payload []byte) (NetworkAgentAnalysis, error) {
	fields, err := decodeObject(payload)
	if err != nil {
		return NetworkAgentAnalysis{}, err
	}
	analysis := NetworkAgentAnalysis{
		Summary:         stringField(fields, "summary"),
		Trends:          stringListField(fields, "trends"),
		Recommendations: stringListField(fields, "recommendations"),
		BestPlatform:    stringField(fields, "best_platform"),
	}
	if analysis.Summary == "" {
		return NetworkAgentAnalysis{}, errMissingField("summary")
	}
	return analysis, nil
}
