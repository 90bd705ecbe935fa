package composer

import (
	"fmt"
	"strings"

	"github.com/kalambet/tutordesk/internal/knowledge"
	"github.com/kalambet/tutordesk/internal/proxy"
)

const (
	defaultLocale = "pt-PT"
	// MaxBlocks is the number of sources embedded in the user turn.
	MaxBlocks = 4
)

const systemTemplate = `És o assistente de apoio de um centro de explicações.
Regras:
- Responde sempre em %s. Não uses gerúndio nem formas do português do Brasil.
- Sê conciso e diretivo: diz ao aluno exatamente o que fazer.
- Quando receberes blocos de conhecimento ("Doc N"), responde com base neles e indica o bloco usado (por exemplo "Doc 1").
- Não inventes valores, datas ou regras que não estejam nos blocos.
- Não sugiras abrir um pedido de suporte nem falar com a equipa, a menos que seja estritamente necessário.`

const noKnowledgeNote = "Não foi encontrado conhecimento correspondente na base. Dá a melhor resposta possível com o que sabes sobre o centro."

// Prompt is the two-part instruction set sent to the answer service.
type Prompt struct {
	System string
	User   string
}

// Messages returns the prompt as an ordered system + user message list.
func (p Prompt) Messages() []proxy.Message {
	return []proxy.Message{
		{Role: "system", Content: p.System},
		{Role: "user", Content: p.User},
	}
}

// Composer builds knowledge-first prompts. It performs no I/O.
type Composer struct {
	Locale string
}

// New creates a Composer answering in locale. An empty locale means pt-PT.
func New(locale string) *Composer {
	if strings.TrimSpace(locale) == "" {
		locale = defaultLocale
	}
	return &Composer{Locale: locale}
}

// Compose builds the system framing and the user turn for question. Up to
// MaxBlocks sources are embedded as "Doc N" blocks ahead of the verbatim
// question; with no sources the user turn says so and asks for the best
// available answer.
func (c *Composer) Compose(question string, sources []knowledge.Source) Prompt {
	return Prompt{
		System: fmt.Sprintf(systemTemplate, c.Locale),
		User:   buildUserTurn(question, sources),
	}
}

func buildUserTurn(question string, sources []knowledge.Source) string {
	var sb strings.Builder
	if len(sources) == 0 {
		sb.WriteString(noKnowledgeNote)
	} else {
		sb.WriteString("Conhecimento disponível:\n\n")
		for i, s := range sources {
			if i == MaxBlocks {
				break
			}
			sb.WriteString(formatBlock(i+1, s))
		}
	}
	sb.WriteString("\n\nPergunta do aluno:\n")
	sb.WriteString(question)
	return sb.String()
}

func formatBlock(n int, s knowledge.Source) string {
	block := fmt.Sprintf("Doc %d: %s\n%s\n", n, s.Title, s.Snippet)
	if s.URL != "" {
		block += "Ligação: " + s.URL + "\n"
	}
	return block + "\n"
}
