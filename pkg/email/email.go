package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"time"

	"bryllupstorget_backend/internal/model"
)

type EmailService struct {
	apiKey    string
	from      string
	templates *template.Template
}

type EmailData struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Html    string `json:"html"`
}

type SubscriptionActivatedData struct {
	CompanyName string
	TierName    string
	PriceNOK    string
	PeriodEnd   time.Time
}

type SubscriptionExpiryWarningData struct {
	CompanyName string
	TierName    string
	DaysLeft    int
	ExpiryDate  time.Time
}

func NewEmailService(apiKey, from string) (*EmailService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend API key is required")
	}

	templates, err := loadTemplates()
	if err != nil {
		return nil, fmt.Errorf("error loading email templates: %v", err)
	}

	return &EmailService{
		apiKey:    apiKey,
		from:      from,
		templates: templates,
	}, nil
}

func (s *EmailService) sendTemplateEmail(to, subject, templateName string, data interface{}) error {
	var body bytes.Buffer
	if err := s.templates.ExecuteTemplate(&body, templateName, data); err != nil {
		return fmt.Errorf("template execution error: %v", err)
	}

	emailData := EmailData{
		From:    s.from,
		To:      to,
		Subject: subject,
		Html:    body.String(),
	}

	jsonData, err := json.Marshal(emailData)
	if err != nil {
		return fmt.Errorf("error marshaling email data: %v", err)
	}

	req, err := http.NewRequest("POST", "https://api.resend.com/emails", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("error creating request: %v", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("error sending email: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %v", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("resend API error: %s", string(respBody))
	}

	log.Printf("Sent %q email to %s", subject, to)
	return nil
}

// SubscriptionActivated sends the activation receipt. Satisfies the
// billing service's notifier interface.
func (s *EmailService) SubscriptionActivated(vendor *model.Vendor, tier *model.SubscriptionTier, periodEnd time.Time) error {
	data := SubscriptionActivatedData{
		CompanyName: vendor.CompanyName,
		TierName:    tier.DisplayName,
		PriceNOK:    fmt.Sprintf("%d,%02d", tier.PriceMinor/100, tier.PriceMinor%100),
		PeriodEnd:   periodEnd,
	}
	return s.sendTemplateEmail(vendor.Email, "Abonnementet ditt er aktivert", "subscription_activated.html", data)
}

// SendSubscriptionExpiryWarning warns a vendor before the period ends.
func (s *EmailService) SendSubscriptionExpiryWarning(email, companyName, tierName string, expiresAt time.Time, daysLeft int) error {
	data := SubscriptionExpiryWarningData{
		CompanyName: companyName,
		TierName:    tierName,
		DaysLeft:    daysLeft,
		ExpiryDate:  expiresAt,
	}
	return s.sendTemplateEmail(email, "Abonnementet ditt utløper snart", "subscription_expiry_warning.html", data)
}
