// Package backoffice talks to the education center's back office: slot
// availability, bookings, support tickets, and account balances.
package backoffice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kalambet/tutordesk/internal/conversation"
)

const defaultTimeout = 10 * time.Second

// ErrBookingRejected is returned when the back office declines a booking.
var ErrBookingRejected = errors.New("booking rejected")

// Client is an HTTP client for the back-office API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for baseURL. A zero timeout selects the default.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Availability is the answer to a slot search.
type Availability struct {
	Slots  []conversation.Slot `json:"slots"`
	Reason string              `json:"reason,omitempty"`
}

type availabilityRequest struct {
	Query  string                      `json:"query"`
	Triage conversation.TriageSchedule `json:"triage"`
}

// FetchAvailableSlots asks for slots matching query and the scheduling draft.
func (c *Client) FetchAvailableSlots(ctx context.Context, query string, triage conversation.TriageSchedule) (Availability, error) {
	var out Availability
	if err := c.post(ctx, "/availability/search", availabilityRequest{Query: query, Triage: triage}, &out); err != nil {
		return Availability{}, fmt.Errorf("fetching available slots: %w", err)
	}
	return out, nil
}

type bookingRequest struct {
	SlotID string `json:"slot_id"`
	Reason string `json:"reason,omitempty"`
}

type bookingResponse struct {
	OK        bool   `json:"ok"`
	BookingID string `json:"booking_id,omitempty"`
}

// BookSlot reserves slotID and returns the booking id. A refusal from the
// back office is reported as ErrBookingRejected.
func (c *Client) BookSlot(ctx context.Context, slotID, reason string) (string, error) {
	var out bookingResponse
	if err := c.post(ctx, "/bookings", bookingRequest{SlotID: slotID, Reason: reason}, &out); err != nil {
		return "", fmt.Errorf("booking slot %s: %w", slotID, err)
	}
	if !out.OK {
		return "", fmt.Errorf("booking slot %s: %w", slotID, ErrBookingRejected)
	}
	return out.BookingID, nil
}

type ticketRequest struct {
	Category     conversation.Category `json:"category"`
	Urgency      conversation.Urgency  `json:"urgency"`
	Subject      string                `json:"subject"`
	Description  string                `json:"description"`
	OriginalText string                `json:"original_text,omitempty"`
}

// Ticket is a created support ticket.
type Ticket struct {
	ID   string `json:"id"`
	Link string `json:"link,omitempty"`
}

// CreateTicket files ticket on behalf of the student.
func (c *Client) CreateTicket(ctx context.Context, ticket conversation.TriageTicket, originalText string) (Ticket, error) {
	req := ticketRequest{
		Category:     ticket.Category,
		Urgency:      ticket.Urgency,
		Subject:      strings.TrimSpace(ticket.Subject),
		Description:  strings.TrimSpace(ticket.Description),
		OriginalText: originalText,
	}
	var out Ticket
	if err := c.post(ctx, "/tickets", req, &out); err != nil {
		return Ticket{}, fmt.Errorf("creating ticket: %w", err)
	}
	if out.ID == "" {
		return Ticket{}, errors.New("creating ticket: response without id")
	}
	return out, nil
}

// GetAccountBalance returns the student's current balance.
func (c *Client) GetAccountBalance(ctx context.Context) (float64, error) {
	var out struct {
		Balance *float64 `json:"balance"`
	}
	if err := c.do(ctx, http.MethodGet, "/account/balance", nil, &out); err != nil {
		return 0, fmt.Errorf("fetching balance: %w", err)
	}
	if out.Balance == nil {
		return 0, errors.New("fetching balance: response without balance")
	}
	return *out.Balance, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
