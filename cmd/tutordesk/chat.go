package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/tutordesk/internal/conversation"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the support assistant",
	Long: `Talk to the support assistant.

Plain lines are sent as messages. Commands:
  /submit           fill in and submit the open form
  /cancel           cancel the open form
  /action <name>    pick an action on the latest card
  /book <n>         book the n-th slot of the latest list
  /balance          show the account balance
  /history          show the whole conversation
  /quit             leave`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return runChat(cmd.Context(), client, sessionID, os.Stdin, cmd.OutOrStdout())
	},
}

func init() {
	chatCmd.Flags().String("session", "", "resume an existing session")
}

type sessionView struct {
	SessionID   string                 `json:"session_id"`
	CreatedAt   time.Time              `json:"created_at"`
	PendingText string                 `json:"pending_text"`
	Messages    []conversation.Message `json:"messages"`
}

var errQuit = errors.New("quit")

type chatREPL struct {
	client *apiClient
	in     *bufio.Scanner
	out    io.Writer
	view   sessionView
	seen   map[string]bool
}

func runChat(ctx context.Context, client *apiClient, sessionID string, in io.Reader, out io.Writer) error {
	c := &chatREPL{
		client: client,
		in:     bufio.NewScanner(in),
		out:    out,
		seen:   make(map[string]bool),
	}

	var err error
	if sessionID == "" {
		err = c.client.call(ctx, http.MethodPost, "/sessions", struct{}{}, &c.view)
	} else {
		c.view.SessionID = sessionID
		err = c.client.call(ctx, http.MethodGet, c.path("messages"), nil, &c.view)
	}
	if err != nil {
		return err
	}
	printStep(out, "session %s", c.view.SessionID)
	c.renderNew()

	for {
		fmt.Fprint(out, colorize(colorBold, "> "))
		if !c.in.Scan() {
			return c.in.Err()
		}
		line := strings.TrimSpace(c.in.Text())
		if line == "" {
			continue
		}
		switch err := c.dispatch(ctx, line); {
		case errors.Is(err, errQuit):
			return nil
		case err != nil:
			printError("%v", err)
		}
	}
}

func (c *chatREPL) path(sub string) string {
	return "/sessions/" + url.PathEscape(c.view.SessionID) + "/" + sub
}

func (c *chatREPL) dispatch(ctx context.Context, line string) error {
	if !strings.HasPrefix(line, "/") {
		return c.update(ctx, "turns", map[string]string{"text": line})
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/quit", "/exit":
		return errQuit
	case "/history":
		for _, m := range c.view.Messages {
			renderMessage(c.out, m)
		}
		return nil
	case "/balance":
		var res struct {
			Balance *float64 `json:"balance"`
		}
		if err := c.client.call(ctx, http.MethodGet, c.path("balance"), nil, &res); err != nil {
			return err
		}
		if res.Balance == nil {
			fmt.Fprintln(c.out, "Saldo indisponível.")
		} else {
			fmt.Fprintf(c.out, "Saldo: %.2f €\n", *res.Balance)
		}
		return nil
	case "/cancel":
		form, ok := c.latest(conversation.KindForm)
		if !ok {
			return errors.New("no open form")
		}
		return c.update(ctx, "forms/"+url.PathEscape(form.ID)+"/cancel", struct{}{})
	case "/submit":
		form, ok := c.latest(conversation.KindForm)
		if !ok {
			return errors.New("no open form")
		}
		return c.update(ctx, "forms/"+url.PathEscape(form.ID)+"/submit", c.fillForm(form.Form))
	case "/action":
		card, ok := c.latest(conversation.KindConfirm)
		if !ok {
			return errors.New("no card to act on")
		}
		if arg == "" {
			return errors.New("usage: /action <name>")
		}
		return c.update(ctx, "confirms/"+url.PathEscape(card.ID)+"/actions/"+url.PathEscape(arg), struct{}{})
	case "/book":
		list, ok := c.latest(conversation.KindSlots)
		if !ok {
			return errors.New("no slots to book")
		}
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 || n > len(list.Slots.Slots) {
			return fmt.Errorf("usage: /book <1-%d>", len(list.Slots.Slots))
		}
		body := map[string]string{"slot_id": list.Slots.Slots[n-1].ID}
		return c.update(ctx, "slots/"+url.PathEscape(list.ID)+"/book", body)
	default:
		return fmt.Errorf("unknown command %s", cmd)
	}
}

// update posts body to the session sub-resource and renders what it added.
func (c *chatREPL) update(ctx context.Context, sub string, body any) error {
	var view sessionView
	if err := c.client.call(ctx, http.MethodPost, c.path(sub), body, &view); err != nil {
		return err
	}
	c.view = view
	c.renderNew()
	return nil
}

func (c *chatREPL) renderNew() {
	for _, m := range c.view.Messages {
		if c.seen[m.ID] {
			continue
		}
		c.seen[m.ID] = true
		renderMessage(c.out, m)
	}
}

func (c *chatREPL) latest(kind conversation.Kind) (conversation.Message, bool) {
	for i := len(c.view.Messages) - 1; i >= 0; i-- {
		if m := c.view.Messages[i]; m.Kind == kind {
			return m, true
		}
	}
	return conversation.Message{}, false
}

func (c *chatREPL) prompt(label, def string) string {
	if def != "" {
		fmt.Fprintf(c.out, "  %s [%s]: ", label, def)
	} else {
		fmt.Fprintf(c.out, "  %s: ", label)
	}
	if !c.in.Scan() {
		return def
	}
	if v := strings.TrimSpace(c.in.Text()); v != "" {
		return v
	}
	return def
}

func (c *chatREPL) fillForm(form *conversation.FormBody) map[string]any {
	switch form.Form {
	case conversation.FormSchedule:
		d := *form.Schedule
		d.Subject = c.prompt("Disciplina", d.Subject)
		if n, err := strconv.Atoi(c.prompt("Duração (30/60/90)", strconv.Itoa(d.DurationMinutes))); err == nil {
			d.DurationMinutes = n
		}
		d.Modality = conversation.Modality(c.prompt("Modalidade (in-person/online/indifferent)", string(d.Modality)))
		d.TeacherName = c.prompt("Explicador", d.TeacherName)
		d.Availability = c.prompt("Disponibilidade", d.Availability)
		d.Details = c.prompt("Detalhes", d.Details)
		return map[string]any{"schedule": d}
	default:
		d := *form.Ticket
		d.Category = conversation.Category(c.prompt("Categoria (technical/access/payment/pedagogical/other)", string(d.Category)))
		d.Urgency = conversation.Urgency(c.prompt("Urgência (low/medium/high)", string(d.Urgency)))
		d.Subject = c.prompt("Assunto", d.Subject)
		d.Description = c.prompt("Descrição", d.Description)
		return map[string]any{"ticket": d}
	}
}

func renderMessage(w io.Writer, m conversation.Message) {
	who := colorize(colorBlue, "assistente")
	if m.Role == conversation.User {
		who = colorize(colorGreen, "você")
	}

	switch m.Kind {
	case conversation.KindText:
		fmt.Fprintf(w, "%s: %s\n", who, m.Text.Body)
		for i, s := range m.Text.Sources {
			fmt.Fprintf(w, "    %s\n", colorize(colorDim, fmt.Sprintf("[%d] %s", i+1, s.Title)))
		}
	case conversation.KindSlots:
		fmt.Fprintf(w, "%s: %s\n", who, colorize(colorBold, m.Slots.Title))
		if m.Slots.Reason != "" {
			fmt.Fprintf(w, "    %s\n", m.Slots.Reason)
		}
		for i, s := range m.Slots.Slots {
			fmt.Fprintf(w, "    %d) %s–%s  %s", i+1, s.StartsAt.Local().Format("02/01 15:04"), s.EndsAt.Local().Format("15:04"), s.TeacherName)
			if s.Modality != "" {
				fmt.Fprintf(w, " (%s)", s.Modality.Label())
			}
			fmt.Fprintln(w)
		}
		if len(m.Slots.Slots) > 0 {
			fmt.Fprintln(w, colorize(colorDim, "    /book <n> para marcar"))
		}
	case conversation.KindTicket:
		fmt.Fprintf(w, "%s: %s\n", who, colorize(colorBold, m.Preview()))
		if m.Ticket.Link != "" {
			fmt.Fprintf(w, "    %s\n", m.Ticket.Link)
		}
	case conversation.KindPayments:
		fmt.Fprintf(w, "%s: %s\n", who, colorize(colorBold, "Pagamentos"))
		fmt.Fprintln(w, colorize(colorDim, "    /balance para ver o saldo"))
	case conversation.KindForm:
		fmt.Fprintf(w, "%s: %s\n", who, colorize(colorBold, m.Preview()))
		fmt.Fprintln(w, colorize(colorDim, "    /submit para preencher, /cancel para fechar"))
	case conversation.KindConfirm:
		fmt.Fprintf(w, "%s: %s\n", who, colorize(colorBold, m.Confirm.Title))
		if m.Confirm.Description != "" {
			fmt.Fprintf(w, "    %s\n", m.Confirm.Description)
		}
		for _, a := range m.Confirm.Actions {
			fmt.Fprintf(w, "    /action %s  %s\n", a.Name, colorize(colorDim, a.Label))
		}
	default:
		fmt.Fprintf(w, "%s: %s\n", who, m.Preview())
	}
}
