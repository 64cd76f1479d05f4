// internal/workers/ai-conversation/parse-user-intent/models.go
package parseuserintent

type Input struct {
	Question string `json:"question"`
}

type Output struct {
	IntentAnalysis IntentAnalysis `json:"intentAnalysis"`
	DataSources    []string       `json:"dataSources"`
	Entities       []Entity       `json:"entities"`
}

type IntentAnalysis struct {
	PrimaryIntent string  `json:"primaryIntent"`
	Confidence    float64 `json:"confidence"`
}

type Entity struct {
	Type  string `json:"type"` // "car_make", "car_model"
	Value string `json:"value"`
}
