// Package email renders and sends the booking, payment, verification and contact emails.
package email

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"time"

	"github.com/consultation-booking/internal/config"
	"github.com/consultation-booking/internal/domain/booking"
	"github.com/consultation-booking/internal/logger"
	"github.com/shopspring/decimal"
)

const timestampLayout = "02 Jan 2006 15:04 MST"

var urgencyColors = map[string]string{
	"low":    "#10b981",
	"normal": "#3b82f6",
	"high":   "#f59e0b",
	"urgent": "#ef4444",
}

// Dispatcher sends the application's emails. It does not deduplicate; callers track what was sent.
type Dispatcher struct {
	sender Sender
	owner  string
	logger *slog.Logger
	now    func() time.Time
}

func NewDispatcher(cfg *config.EmailConfig, sender Sender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sender: sender,
		owner:  cfg.OwnerAddress,
		logger: logger.With("component", "email"),
		now:    time.Now,
	}
}

type bookingData struct {
	Customer        *booking.Customer
	Service         *booking.Service
	ReplyTo         string
	Urgency         string
	UrgencyColor    template.CSS
	DiscountPercent int64
	At              string
}

// SendConfirmation sends the customer's booking confirmation
func (d *Dispatcher) SendConfirmation(ctx context.Context, customer *booking.Customer, service *booking.Service) error {
	if customer == nil || service == nil {
		return fmt.Errorf("booking details are required")
	}

	body, err := render("confirmation", d.bookingData(customer, service))
	if err != nil {
		return err
	}
	if err := d.send(ctx, customer.Email, "Booking Confirmation - "+service.Title, body); err != nil {
		return fmt.Errorf("failed to send customer confirmation: %w", err)
	}
	return nil
}

// SendBookingAlert tells the owner about a new paid booking
func (d *Dispatcher) SendBookingAlert(ctx context.Context, customer *booking.Customer, service *booking.Service) error {
	if customer == nil || service == nil {
		return fmt.Errorf("booking details are required")
	}

	body, err := render("booking_alert", d.bookingData(customer, service))
	if err != nil {
		return err
	}
	if err := d.send(ctx, d.owner, fmt.Sprintf("New Booking: %s - %s", service.Title, customer.FullName), body); err != nil {
		return fmt.Errorf("failed to send booking alert: %w", err)
	}
	return nil
}

type failureData struct {
	Customer      *booking.Customer
	Service       *booking.Service
	Reason        string
	TransactionID string
	At            string
}

// SendFailure alerts the owner that a booking's payment failed or timed out
func (d *Dispatcher) SendFailure(ctx context.Context, customer *booking.Customer, service *booking.Service, reason, transactionID string) error {
	if customer == nil || service == nil {
		return fmt.Errorf("booking details are required")
	}

	body, err := render("payment_failure", failureData{
		Customer:      customer,
		Service:       service,
		Reason:        reason,
		TransactionID: transactionID,
		At:            d.now().Format(timestampLayout),
	})
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("⚠️ Payment Failed: %s - %s", service.Title, customer.FullName)
	if err := d.send(ctx, d.owner, subject, body); err != nil {
		return fmt.Errorf("failed to send payment failure alert: %w", err)
	}
	return nil
}

// SendOTP sends a verification code to address
func (d *Dispatcher) SendOTP(ctx context.Context, address, code string, expiry time.Duration) error {
	body, err := render("otp", struct {
		Code          string
		ExpiryMinutes int
	}{Code: code, ExpiryMinutes: int(expiry.Minutes())})
	if err != nil {
		return err
	}

	if err := d.send(ctx, address, "Verify Your Email - OTP Code", body); err != nil {
		return fmt.Errorf("failed to send verification code: %w", err)
	}
	return nil
}

// SendContactMessage forwards a contact form submission to the owner
func (d *Dispatcher) SendContactMessage(ctx context.Context, msg booking.ContactMessage) error {
	body, err := render("contact", struct {
		Contact booking.ContactMessage
		At      string
	}{Contact: msg, At: d.now().Format(timestampLayout)})
	if err != nil {
		return err
	}

	if err := d.send(ctx, d.owner, "New Contact Message from "+msg.Name, body); err != nil {
		return fmt.Errorf("failed to send contact message: %w", err)
	}
	return nil
}

func (d *Dispatcher) send(ctx context.Context, to, subject, body string) error {
	if err := d.sender.Send(ctx, Message{To: []string{to}, Subject: subject, HTML: body}); err != nil {
		d.logger.Error("Email delivery failed", "to", logger.MaskEmail(to), "subject", subject, "error", err)
		return err
	}
	d.logger.Debug("Email sent", "to", logger.MaskEmail(to), "subject", subject)
	return nil
}

func (d *Dispatcher) bookingData(customer *booking.Customer, service *booking.Service) bookingData {
	urgency := strings.ToLower(customer.Urgency)
	color, ok := urgencyColors[urgency]
	if !ok {
		urgency, color = "normal", urgencyColors["normal"]
	}

	var discount int64
	if service.Discounted() && service.OriginalPrice.IsPositive() {
		discount = decimal.NewFromInt(1).
			Sub(service.Price.Div(*service.OriginalPrice)).
			Mul(decimal.NewFromInt(100)).
			Round(0).
			IntPart()
	}

	return bookingData{
		Customer:        customer,
		Service:         service,
		ReplyTo:         d.owner,
		Urgency:         strings.ToUpper(urgency),
		UrgencyColor:    template.CSS(color),
		DiscountPercent: discount,
		At:              d.now().Format(timestampLayout),
	}
}
