package service

import (
	"fmt"
	"strings"

	"github.com/cloo-solutions/bokai/internal/domain"
)

// RefusalPhrase is what the model is told to say when the knowledge does not
// cover the question.
const RefusalPhrase = "Nie mam tej informacji. Przekieruj to pytanie do naszego konsultanta"

// RemoteSystemMessage is sent as the system turn to remote backends.
const RemoteSystemMessage = "Jesteś profesjonalnym asystentem sprzedażowym. Odpowiadaj TYLKO na podstawie podanej wiedzy. Jeśli nie masz informacji, powiedz że nie wiesz i przekieruj do człowieka."

// StopSequences keep the model from opening new question or knowledge
// sections of its own.
var StopSequences = []string{"PYTANIE:", "WIEDZA:", "KONIEC"}

const instructionBlock = `WAŻNE INSTRUKCJE:
- Odpowiadaj WYŁĄCZNIE na podstawie podanej WIEDZY FIRMY
- Jeśli nie masz dokładnej informacji, powiedz "` + RefusalPhrase + `"
- NIE WYMYŚLAJ żadnych szczegółów, cen, terminów, procedur
- Bądź pomocny, ale tylko w ramach dostępnej wiedzy
- Odpowiadaj po polsku, w przyjaznym tonie`

// BuildPrompt renders the grounded prompt. Both backends receive the same
// shape; only the remote path passes history.
func BuildPrompt(query string, sources []domain.KnowledgeSource, history []domain.ConversationTurn, historyTurns int) string {
	var b strings.Builder
	b.WriteString(instructionBlock)
	b.WriteString("\n\nWIEDZA FIRMY:\n")

	for i, s := range sources {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s]: %s", s.Title, s.Content)
	}
	b.WriteString("\n")

	if recent := lastTurns(history, historyTurns); len(recent) > 0 {
		b.WriteString("\nKONTEKST ROZMOWY:\n")
		for i, turn := range recent {
			if i > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "%s: %s", turn.Role, turn.Content)
		}
	}

	fmt.Fprintf(&b, "\n\nPYTANIE KLIENTA: %s\n\nODPOWIEDŹ (tylko na podstawie wiedzy powyżej):", query)
	return b.String()
}

func lastTurns(history []domain.ConversationTurn, n int) []domain.ConversationTurn {
	if n <= 0 || len(history) == 0 {
		return nil
	}
	if len(history) > n {
		return history[len(history)-n:]
	}
	return history
}
