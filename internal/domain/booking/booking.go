package booking

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Common errors
var (
	ErrMissingFullName = errors.New("customerData.fullName is required")
	ErrMissingEmail    = errors.New("customerData.email is required")
	ErrInvalidEmail    = errors.New("customerData.email is not a valid email address")
	ErrMissingService  = errors.New("serviceData.id and serviceData.title are required")
)

// Customer is the booking form submitted by the person requesting a consultation
type Customer struct {
	FullName                string `json:"fullName"`
	Email                   string `json:"email"`
	Phone                   string `json:"phone,omitempty"`
	Company                 string `json:"company,omitempty"`
	Role                    string `json:"role,omitempty"`
	ProjectTitle            string `json:"projectTitle,omitempty"`
	ProjectDescription      string `json:"projectDescription,omitempty"`
	Timeline                string `json:"timeline,omitempty"`
	Urgency                 string `json:"urgency,omitempty"` // low, normal, high or urgent
	Expectations            string `json:"expectations,omitempty"`
	SpecificRequirements    string `json:"specificRequirements,omitempty"`
	PreferredDay            string `json:"preferredDay,omitempty"`
	PreferredMeetingTime    string `json:"preferredMeetingTime,omitempty"`
	CommunicationPreference string `json:"communicationPreference,omitempty"`
}

// Validate checks the fields the email templates cannot do without
func (c *Customer) Validate() error {
	if strings.TrimSpace(c.FullName) == "" {
		return ErrMissingFullName
	}
	if strings.TrimSpace(c.Email) == "" {
		return ErrMissingEmail
	}
	if !ValidEmail(c.Email) {
		return ErrInvalidEmail
	}
	return nil
}

// Service is the consultation package being booked
type Service struct {
	ID            string           `json:"id"`
	Title         string           `json:"title"`
	Duration      string           `json:"duration,omitempty"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice,omitempty"`
}

func (s *Service) Validate() error {
	if strings.TrimSpace(s.ID) == "" || strings.TrimSpace(s.Title) == "" {
		return ErrMissingService
	}
	return nil
}

// Discounted reports whether the service is offered below its original price
func (s *Service) Discounted() bool {
	return s.OriginalPrice != nil && s.OriginalPrice.GreaterThan(s.Price)
}

// ContactMessage is a message sent through the portfolio contact form
type ContactMessage struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject,omitempty"`
	Message string `json:"message"`
}

// ValidEmail performs the same shape check the booking form does
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}
