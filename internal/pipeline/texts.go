package pipeline

// Fixed assistant texts.
const (
	textAnswerFailed       = "Desculpe, não foi possível obter uma resposta neste momento. Tente novamente dentro de instantes."
	textAvailabilityFailed = "Não foi possível consultar a disponibilidade neste momento. Tente novamente mais tarde."
	textNoSlotsPrefix      = "Não encontrei horários disponíveis para esse pedido."
	textSlotsTitle         = "Horários disponíveis"
	textSourcesOnly        = "Encontrei estes conteúdos que podem ajudar:"
	textConfirming         = "A confirmar a marcação…"
	textBookingFailed      = "Não foi possível confirmar este horário. Por favor, escolha outro."
	textBookedTitle        = "Marcação confirmada"
	textTicketFailed       = "Não foi possível criar o pedido de suporte. Tente novamente."
	textTicketInvalid      = "Para criar o pedido indique a categoria, a urgência e o assunto."
	textCancelled          = "Combinado. Se precisar de mais alguma coisa, é só dizer."

	textOfferScheduleTitle = "Quer marcar uma explicação?"
	textOfferScheduleDesc  = "Posso abrir o formulário de marcação para procurar horários."
	textOfferTicketTitle   = "Quer abrir um pedido de suporte?"
	textOfferTicketDesc    = "Se a resposta não resolveu, a equipa pode analisar o seu caso."
	textFileTicketTitle    = "Abrir pedido de suporte?"
	textFileTicketDesc     = "Se a resposta acima não resolveu, crio o pedido com os dados indicados."

	labelOpenForm   = "Sim, abrir formulário"
	labelOpenTicket = "Abrir pedido"
	labelNo         = "Não é preciso"
	labelOK         = "OK"
)
