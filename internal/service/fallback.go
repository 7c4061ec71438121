package service

import "github.com/cloo-solutions/bokai/internal/domain"

const (
	fallbackNoInfo   = "Nie mam wystarczających informacji, aby odpowiedzieć na to pytanie. "
	fallbackPartial  = "Znalazłem podobne informacje, ale wolę przekierować Cię do naszego konsultanta, który udzieli dokładnej odpowiedzi. "
	fallbackHandoff  = "Czy mogę Cię z nim połączyć?"
	technicalFailure = "Przepraszam, wystąpił problem techniczny. Proszę spróbować ponownie lub skontaktować się z obsługą."
)

// Fallback builds the handoff response used whenever the pipeline will not
// answer from knowledge. Retrieved sources are kept for the human agent.
// An empty reason is derived from the retrieval.
func Fallback(queryType domain.QueryType, retrieval domain.RetrievalResult, reason string) *domain.GroundedResponse {
	partial := !retrieval.Empty()
	if reason == "" {
		reason = domain.ReasonNoRelevantKnowledge
		if partial {
			reason = domain.ReasonInsufficientKnowledge
		}
	}

	text := fallbackNoInfo
	if partial {
		text += fallbackPartial
	}
	text += fallbackHandoff

	return &domain.GroundedResponse{
		Text:       text,
		Confidence: 0,
		Sources:    retrieval.Sources,
		NeedsHuman: true,
		Reasoning:  reason,
		Cost:       0,
		QueryType:  queryType,
		Route:      domain.RouteFallback,
	}
}

// TechnicalError is returned to the customer alongside a generation failure.
func TechnicalError(queryType domain.QueryType) *domain.GroundedResponse {
	return &domain.GroundedResponse{
		Text:       technicalFailure,
		NeedsHuman: true,
		Reasoning:  domain.ReasonTechnicalError,
		QueryType:  queryType,
		Route:      domain.RouteFallback,
	}
}
