package conversation

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"
)

// Modality is how a session is delivered.
type Modality string

const (
	InPerson    Modality = "in-person"
	Online      Modality = "online"
	Indifferent Modality = "indifferent"
)

// Durations lists the session lengths, in minutes, a student can request.
var Durations = []int{30, 60, 90}

const (
	defaultDuration  = 60
	subjectSeedRunes = 80
)

// TriageSchedule is the draft behind a scheduling form.
type TriageSchedule struct {
	Subject         string   `json:"subject"`
	DurationMinutes int      `json:"duration_minutes"`
	Modality        Modality `json:"modality"`
	TeacherName     string   `json:"teacher_name,omitempty"`
	Availability    string   `json:"availability,omitempty"`
	Details         string   `json:"details,omitempty"`
}

// DefaultSchedule returns a draft seeded from the utterance that opened the form.
func DefaultSchedule(seed string) TriageSchedule {
	return TriageSchedule{
		Subject:         seedSubject(seed),
		DurationMinutes: defaultDuration,
		Modality:        Indifferent,
	}
}

// Normalize replaces out-of-range fields with their defaults. Nothing else is
// required before submission.
func (t TriageSchedule) Normalize() TriageSchedule {
	if !slices.Contains(Durations, t.DurationMinutes) {
		t.DurationMinutes = defaultDuration
	}
	switch t.Modality {
	case InPerson, Online, Indifferent:
	default:
		t.Modality = Indifferent
	}
	t.Subject = strings.TrimSpace(t.Subject)
	t.TeacherName = strings.TrimSpace(t.TeacherName)
	t.Availability = strings.TrimSpace(t.Availability)
	t.Details = strings.TrimSpace(t.Details)
	return t
}

// Summary renders the draft as the text echoed back after submission.
func (t TriageSchedule) Summary() string {
	var sb strings.Builder
	sb.WriteString("Pedido de marcação")
	if t.Subject != "" {
		fmt.Fprintf(&sb, ": %s", t.Subject)
	}
	fmt.Fprintf(&sb, "\nDuração: %d min\nModalidade: %s", t.DurationMinutes, t.Modality.Label())
	if t.TeacherName != "" {
		fmt.Fprintf(&sb, "\nExplicador: %s", t.TeacherName)
	}
	if t.Availability != "" {
		fmt.Fprintf(&sb, "\nDisponibilidade: %s", t.Availability)
	}
	if t.Details != "" {
		fmt.Fprintf(&sb, "\nDetalhes: %s", t.Details)
	}
	return sb.String()
}

// Query is the free-text request sent to the availability service.
func (t TriageSchedule) Query() string {
	parts := []string{t.Subject, t.Availability, t.Details}
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

func (m Modality) Label() string {
	switch m {
	case InPerson:
		return "presencial"
	case Online:
		return "online"
	default:
		return "indiferente"
	}
}

// Category classifies a support ticket.
type Category string

const (
	Technical   Category = "technical"
	Access      Category = "access"
	Payment     Category = "payment"
	Pedagogical Category = "pedagogical"
	Other       Category = "other"
)

// Urgency ranks a support ticket.
type Urgency string

const (
	Low    Urgency = "low"
	Medium Urgency = "medium"
	High   Urgency = "high"
)

// TriageTicket is the draft behind a ticket form.
type TriageTicket struct {
	Category    Category `json:"category"`
	Urgency     Urgency  `json:"urgency"`
	Subject     string   `json:"subject"`
	Description string   `json:"description"`
}

// DefaultTicket returns a draft seeded from the utterance that opened the form.
func DefaultTicket(seed string) TriageTicket {
	return TriageTicket{
		Category:    Technical,
		Urgency:     Low,
		Subject:     seedSubject(seed),
		Description: strings.TrimSpace(seed),
	}
}

// Validate reports whether the ticket can be filed. Forms never block on it;
// it is checked where the ticket is actually created.
func (t TriageTicket) Validate() error {
	switch t.Category {
	case Technical, Access, Payment, Pedagogical, Other:
	default:
		return fmt.Errorf("%w: category %q", ErrInvalidTicket, t.Category)
	}
	switch t.Urgency {
	case Low, Medium, High:
	default:
		return fmt.Errorf("%w: urgency %q", ErrInvalidTicket, t.Urgency)
	}
	if strings.TrimSpace(t.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidTicket)
	}
	return nil
}

// Summary renders the draft as the text echoed back after submission.
func (t TriageTicket) Summary() string {
	var sb strings.Builder
	sb.WriteString("Pedido de suporte")
	if s := strings.TrimSpace(t.Subject); s != "" {
		fmt.Fprintf(&sb, ": %s", s)
	}
	fmt.Fprintf(&sb, "\nCategoria: %s\nUrgência: %s", t.Category.Label(), t.Urgency.Label())
	if d := strings.TrimSpace(t.Description); d != "" {
		fmt.Fprintf(&sb, "\nDescrição: %s", d)
	}
	return sb.String()
}

// Query is the text used for the last resolution attempt before filing.
func (t TriageTicket) Query() string {
	return strings.TrimSpace(strings.TrimSpace(t.Subject) + " " + strings.TrimSpace(t.Description))
}

func (c Category) Label() string {
	switch c {
	case Technical:
		return "técnico"
	case Access:
		return "acesso"
	case Payment:
		return "pagamento"
	case Pedagogical:
		return "pedagógico"
	default:
		return "outro"
	}
}

func (u Urgency) Label() string {
	switch u {
	case Medium:
		return "média"
	case High:
		return "alta"
	default:
		return "baixa"
	}
}

func seedSubject(seed string) string {
	seed = strings.Join(strings.Fields(seed), " ")
	if utf8.RuneCountInString(seed) <= subjectSeedRunes {
		return seed
	}
	return strings.TrimSpace(string([]rune(seed)[:subjectSeedRunes])) + "…"
}
