package domain

// QueryType is the routing class of a customer query
type QueryType string

const (
	QueryTypeSimple    QueryType = "simple"
	QueryTypeComplex   QueryType = "complex"
	QueryTypeSensitive QueryType = "sensitive"
)

// Route names the path a query took through the pipeline
type Route string

const (
	RouteLocal    Route = "local"
	RouteRemote   Route = "remote"
	RouteFallback Route = "fallback"
)

// Reasoning labels attached to responses
const (
	ReasonLocalGeneration       = "local_generation"
	ReasonRemoteGeneration      = "remote_generation"
	ReasonNoRelevantKnowledge   = "no_relevant_knowledge"
	ReasonInsufficientKnowledge = "insufficient_knowledge_confidence"
	ReasonGroundingRejected     = "grounding_rejected"
	ReasonTechnicalError        = "technical_error"

	// The selected backend was not configured and the other one answered.
	ReasonLocalSubstitute  = "local_generation_remote_unavailable"
	ReasonRemoteSubstitute = "remote_generation_local_unavailable"
)

// TokenUsage is the token count reported by a generation backend
type TokenUsage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
}

// GroundedResponse is the pipeline's answer for a single query. It is built
// once and handed to the caller for persistence and telemetry.
type GroundedResponse struct {
	Text       string            `json:"response"`
	Confidence float64           `json:"confidence"`
	Sources    []KnowledgeSource `json:"sources"`
	NeedsHuman bool              `json:"needsHuman"`
	Reasoning  string            `json:"reasoning"`
	Cost       float64           `json:"cost"`
	QueryType  QueryType         `json:"queryType"`
	Route      Route             `json:"route"`
}
