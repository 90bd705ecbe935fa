// Package escalation decides whether a generated answer stands alone or the
// turn is handed to a human workflow.
package escalation

import (
	"regexp"
	"unicode/utf8"

	"github.com/kalambet/tutordesk/internal/intent"
	"github.com/kalambet/tutordesk/internal/textnorm"
)

// Target is the workflow a turn escalates to. The zero value means none.
type Target string

const (
	None     Target = ""
	Ticket   Target = "ticket"
	Schedule Target = "schedule"
)

// LowInfoRunes is the answer length under which an answer counts as low information.
const LowInfoRunes = 120

var (
	brokenSignals = []string{
		"erro", "falha", "nao consigo aceder", "nao consigo entrar", "sem acesso",
		"bloquead", "expirad", "indisponivel",
	}
	billingSignals = []string{
		"fatura", "recibo", "saldo", "nif", "cobranca", "reembolso", "pagamento", "divida",
	}
	liveHelpSignals = []string{
		"falar com", "explicador", "professor", "ao vivo", "presencial",
		"videochamada", "chamada", "reuniao", "atendimento",
	}
)

// docRef matches the "Doc N" labels the composer puts on knowledge blocks.
var docRef = regexp.MustCompile(`\bDoc\s*\d+`)

// Decide applies the escalation rules in fixed precedence:
//  1. broken-something signals in question or answer → Ticket
//  2. thin or unreferenced answer to a billing question → Ticket
//  3. request for live help, unless the intent is payments → Schedule
//  4. schedule/ticket intent with a thin or unreferenced answer → that intent
//  5. otherwise None
func Decide(question, answer string, in intent.Intent) Target {
	q := textnorm.Fold(question)
	a := textnorm.Fold(answer)
	weak := IsLowInfo(answer) || !HasReferences(answer)

	switch {
	case textnorm.FirstMatch(q, brokenSignals) != "" || textnorm.FirstMatch(a, brokenSignals) != "":
		return Ticket
	case weak && textnorm.FirstMatch(q, billingSignals) != "":
		return Ticket
	case textnorm.FirstMatch(q, liveHelpSignals) != "" && in != intent.Payments:
		return Schedule
	case weak && in == intent.Schedule:
		return Schedule
	case weak && in == intent.Ticket:
		return Ticket
	}
	return None
}

// IsLowInfo reports whether answer is shorter than LowInfoRunes.
func IsLowInfo(answer string) bool {
	return utf8.RuneCountInString(answer) < LowInfoRunes
}

// HasReferences reports whether answer cites at least one knowledge block.
func HasReferences(answer string) bool {
	return docRef.MatchString(answer)
}
