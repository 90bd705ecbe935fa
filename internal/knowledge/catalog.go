package knowledge

var defaultCatalog = NewCatalog([]Document{
	{
		Title: "Pagamentos — Prestações",
		Body: "As propinas podem ser pagas numa única prestação no início do período ou em prestações mensais. " +
			"As prestações mensais vencem no dia 8 de cada mês. Pagamentos em atraso mais de 15 dias suspendem a marcação de novas explicações até regularização.",
		Tags: []string{"pagamentos", "propinas", "prestações", "mensalidade"},
		URL:  "/pagamentos",
	},
	{
		Title: "Pagamentos — MB WAY e Multibanco",
		Body: "Aceitamos MB WAY, referência Multibanco e transferência bancária. " +
			"As referências Multibanco são geradas na área de pagamentos e são válidas durante 3 dias. O MB WAY é confirmado no telemóvel em 4 minutos.",
		Tags: []string{"pagamentos", "mbway", "multibanco", "referência"},
		URL:  "/pagamentos",
	},
	{
		Title: "Faturas, recibos e NIF",
		Body: "A fatura-recibo é emitida automaticamente após cada pagamento e fica disponível na área de pagamentos. " +
			"Para alterar o NIF de faturação, atualize o perfil antes do pagamento; faturas já emitidas não podem ser alteradas.",
		Tags: []string{"fatura", "recibo", "nif", "faturação"},
		URL:  "/pagamentos/faturas",
	},
	{
		Title: "Marcação de explicações",
		Body: "As explicações são marcadas em blocos de 30, 60 ou 90 minutos, presenciais ou online. " +
			"Escolha a disciplina, a duração e, se quiser, o explicador preferido; o sistema mostra as vagas disponíveis nas próximas duas semanas.",
		Tags: []string{"marcação", "explicações", "agenda", "horários"},
		URL:  "/agenda",
	},
	{
		Title: "Cancelamento e reagendamento",
		Body: "Pode cancelar ou reagendar uma explicação sem custos até 24 horas antes do início. " +
			"Cancelamentos com menos de 24 horas contam como sessão realizada, salvo justificação médica.",
		Tags: []string{"cancelar", "reagendar", "faltas"},
		URL:  "/agenda",
	},
	{
		Title: "Acesso à plataforma",
		Body: "O acesso à plataforma faz-se com o email de inscrição. Se a conta estiver bloqueada após várias tentativas, aguarde 15 minutos. " +
			"Contas de alunos com a inscrição expirada ficam em modo de leitura.",
		Tags: []string{"acesso", "login", "conta", "plataforma"},
		URL:  "/ajuda/acesso",
	},
	{
		Title: "Recuperar palavra-passe",
		Body: "Na página de entrada, escolha \"Esqueci-me da palavra-passe\" e siga o link enviado por email. " +
			"O link é válido durante 1 hora. Verifique a pasta de spam se não receber o email.",
		Tags: []string{"palavra-passe", "password", "acesso"},
		URL:  "/ajuda/acesso",
	},
	{
		Title: "Explicações online",
		Body: "As explicações online decorrem na sala virtual indicada na marcação. " +
			"Recomendamos auscultadores e uma ligação estável; o link fica ativo 10 minutos antes da hora marcada.",
		Tags: []string{"online", "sala virtual", "explicações"},
		URL:  "/ajuda/online",
	},
	{
		Title: "Horário da secretaria",
		Body: "A secretaria funciona de segunda a sexta das 9h às 20h e ao sábado das 9h às 13h. " +
			"Fora deste horário, os pedidos ficam registados e são tratados no dia útil seguinte.",
		Tags: []string{"secretaria", "horário", "contactos"},
	},
	{
		Title: "Material de estudo",
		Body: "Fichas, resumos e exames resolvidos estão na biblioteca digital, organizados por ano e disciplina. " +
			"O material novo é publicado às segundas-feiras.",
		Tags: []string{"material", "fichas", "exames", "biblioteca"},
		URL:  "/biblioteca",
	},
})

// Default returns the built-in catalog loaded at process start.
func Default() *Catalog { return defaultCatalog }
