// Package intent assigns one coarse category to each user turn using ordered
// keyword rules.
package intent

import "github.com/kalambet/tutordesk/internal/textnorm"

// Intent is the category assigned to a single user turn.
type Intent string

const (
	Payments  Intent = "payments"
	Schedule  Intent = "schedule"
	Ticket    Intent = "ticket"
	Knowledge Intent = "knowledge"
	General   Intent = "general"
)

// rule pairs an intent with the folded keywords that select it.
type rule struct {
	intent   Intent
	keywords []string
}

// rules are evaluated in order; the first rule with a matching keyword wins.
var rules = []rule{
	{Payments, []string{
		"pagar", "pagamento", "mbway", "mb way", "multibanco", "propina",
		"mensalidade", "prestac", "saldo", "fatura", "recibo", "divida", "transferencia",
	}},
	{Schedule, []string{
		"marcar", "marcacao", "agendar", "agenda", "horario", "disponibilidade",
		"vaga", "explicacao", "explicacoes", "aula", "sessao", "reagendar",
	}},
	{Ticket, []string{
		"erro", "problema", "nao consigo", "nao funciona", "avaria", "bug",
		"falha", "bloquead", "acesso", "ticket", "reclamacao", "suporte",
	}},
	{Knowledge, []string{
		"como ", "o que", "onde", "quando", "qual", "quais", "porque", "por que",
		"regra", "politica", "informac", "duvida", "material",
	}},
}

// Classify maps text to exactly one Intent. It is pure and case- and
// accent-insensitive, and keywords only match at the start of a word; text
// matching no rule is General.
func Classify(text string) Intent {
	folded := textnorm.Fold(text)
	for _, r := range rules {
		if textnorm.FirstMatch(folded, r.keywords) != "" {
			return r.intent
		}
	}
	return General
}

// IsWorkflow reports whether i has a human workflow behind it.
func (i Intent) IsWorkflow() bool {
	return i == Schedule || i == Ticket
}

var (
	explicitTicket = []string{
		"abrir ticket", "abrir um ticket", "criar ticket", "criar um ticket",
		"abrir pedido de suporte", "falar com um humano", "falar com humano",
		"falar com alguem", "falar com o suporte", "quero reclamar",
	}
	explicitSchedule = []string{
		"quero marcar", "queria marcar", "marcar uma explicacao", "marcar explicacao",
		"marcar uma aula", "marcar aula", "agendar uma", "agendar explicacao", "agendar aula",
	}
)

// RequestedEscalation reports whether text explicitly asks for a human
// workflow, returning Ticket or Schedule. Ticket phrasing is checked first.
func RequestedEscalation(text string) (Intent, bool) {
	folded := textnorm.Fold(text)
	if textnorm.FirstMatch(folded, explicitTicket) != "" {
		return Ticket, true
	}
	if textnorm.FirstMatch(folded, explicitSchedule) != "" {
		return Schedule, true
	}
	return "", false
}
