package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/backend-tour/internal/common"
	"github.com/noah-isme/backend-tour/internal/events"
)

// BookingNotification is the payload carried by booking events and delivered
// to the back-office address.
type BookingNotification struct {
	Reference     string `json:"reference"`
	CustomerName  string `json:"customerName"`
	CustomerEmail string `json:"customerEmail"`
	TourName      string `json:"tourName"`
	TourDate      string `json:"tourDate"`
	TotalAmount   int64  `json:"totalAmount"`
	Passengers    int    `json:"passengers"`
	Status        string `json:"status"`
}

// EmailNotifier sends a transactional email to the admin address for booking
// topics. Delivery is best-effort; the caller logs and swallows errors.
type EmailNotifier struct {
	Mail         common.EmailSender
	AdminAddress string
	Enabled      bool
}

// Notify implements the events.Notifier interface.
func (n EmailNotifier) Notify(_ context.Context, event events.DomainEvent) error {
	if !n.Enabled || n.Mail == nil {
		return nil
	}
	to := strings.TrimSpace(n.AdminAddress)
	if to == "" {
		return nil
	}
	switch event.Topic {
	case events.TopicBookingCreated, events.TopicBookingUpdated:
	default:
		return nil
	}
	var payload BookingNotification
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return fmt.Errorf("email notify: decode payload: %w", err)
		}
	}
	return n.Mail.Send(to, subjectFor(event.Topic, payload), bodyFor(payload, event.OccurredAt))
}

func subjectFor(topic string, p BookingNotification) string {
	switch topic {
	case events.TopicBookingCreated:
		return fmt.Sprintf("New booking %s", p.Reference)
	case events.TopicBookingUpdated:
		return fmt.Sprintf("Booking %s updated", p.Reference)
	default:
		return fmt.Sprintf("Booking notification %s", topic)
	}
}

func bodyFor(p BookingNotification, occurred time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Booking %s (%s) recorded at %s.\n", p.Reference, p.Status, occurred.Format(time.RFC3339))
	fmt.Fprintf(&b, "Customer: %s <%s>\n", p.CustomerName, p.CustomerEmail)
	if p.TourName != "" {
		fmt.Fprintf(&b, "Tour: %s on %s\n", p.TourName, p.TourDate)
	}
	fmt.Fprintf(&b, "Passengers: %d\n", p.Passengers)
	fmt.Fprintf(&b, "Total: %d EUR\n", p.TotalAmount)
	return b.String()
}
