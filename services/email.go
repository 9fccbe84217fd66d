package services

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"github.com/wize-works/helpNINJA-sub004/internal/config"
	"github.com/wize-works/helpNINJA-sub004/models"
)

type EmailSender interface {
	SendEscalation(recipients []string, tenant *models.Tenant, escalation *models.Escalation) error
	SendTokenAlert(tenant *models.Tenant, alertLevel string, data TokenAlertData) error
}

type SMTPEmailSender struct {
	config *config.Config
}

type TokenAlertData struct {
	TenantName      string
	UsedTokens      int
	TotalTokens     int
	RemainingTokens int
	PercentUsed     float64
}

func NewSMTPEmailSender(cfg *config.Config) *SMTPEmailSender {
	return &SMTPEmailSender{config: cfg}
}

type escalationEmailData struct {
	TenantName   string
	RuleName     string
	UserMessage  string
	UserEmail    string
	Confidence   float64
	Trace        []models.EscalationStep
	Conversation string
}

// SendEscalation notifies the tenant's operators that a rule fired.
func (s *SMTPEmailSender) SendEscalation(recipients []string, tenant *models.Tenant, escalation *models.Escalation) error {
	if len(recipients) == 0 {
		return fmt.Errorf("no recipients configured for tenant %s", tenant.Name)
	}

	data := escalationEmailData{
		TenantName:   tenant.Name,
		RuleName:     escalation.RuleName,
		UserMessage:  escalation.UserMessage,
		UserEmail:    escalation.UserEmail,
		Confidence:   escalation.Confidence,
		Trace:        escalation.Trace,
		Conversation: escalation.ConversationID,
	}

	subject := fmt.Sprintf("Escalation: %s - %s", escalation.RuleName, tenant.Name)
	htmlBody, textBody, err := renderTemplates(escalationHTMLTemplate, escalationTextTemplate, data)
	if err != nil {
		return fmt.Errorf("failed to render escalation email: %w", err)
	}

	return s.sendEmail(recipients, subject, htmlBody, textBody)
}

// SendTokenAlert warns a tenant approaching its token quota.
func (s *SMTPEmailSender) SendTokenAlert(tenant *models.Tenant, alertLevel string, data TokenAlertData) error {
	recipients := []string{}
	if tenant.ContactEmail != "" {
		recipients = append(recipients, tenant.ContactEmail)
	}
	for _, email := range tenant.EscalationEmails {
		if strings.TrimSpace(email) != "" {
			recipients = append(recipients, strings.TrimSpace(email))
		}
	}
	if len(recipients) == 0 {
		return fmt.Errorf("no recipients configured for tenant %s", tenant.Name)
	}

	var subject string
	switch alertLevel {
	case "warn":
		subject = fmt.Sprintf("Token Usage Warning - %s (%.0f%% used)", data.TenantName, data.PercentUsed)
	case "critical":
		subject = fmt.Sprintf("CRITICAL: Token Usage Alert - %s (%.0f%% used)", data.TenantName, data.PercentUsed)
	case "exhausted":
		subject = fmt.Sprintf("URGENT: Tokens Exhausted - %s", data.TenantName)
	default:
		return fmt.Errorf("unknown alert level: %s", alertLevel)
	}

	htmlBody, textBody, err := renderTemplates(tokenAlertHTMLTemplate, tokenAlertTextTemplate, data)
	if err != nil {
		return fmt.Errorf("failed to render token alert email: %w", err)
	}

	return s.sendEmail(recipients, subject, htmlBody, textBody)
}

func renderTemplates(htmlTpl, textTpl string, data interface{}) (string, string, error) {
	htmlT, err := template.New("html").Parse(htmlTpl)
	if err != nil {
		return "", "", err
	}
	textT, err := template.New("text").Parse(textTpl)
	if err != nil {
		return "", "", err
	}

	var htmlBuf, textBuf bytes.Buffer
	if err := htmlT.Execute(&htmlBuf, data); err != nil {
		return "", "", err
	}
	if err := textT.Execute(&textBuf, data); err != nil {
		return "", "", err
	}
	return htmlBuf.String(), textBuf.String(), nil
}

func (s *SMTPEmailSender) sendEmail(recipients []string, subject, htmlBody, textBody string) error {
	auth := smtp.PlainAuth("", s.config.SMTPUser, s.config.SMTPPass, s.config.SMTPHost)

	message := fmt.Sprintf(`From: %s
To: %s
Subject: %s
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="boundary123"

--boundary123
Content-Type: text/plain; charset=UTF-8

%s

--boundary123
Content-Type: text/html; charset=UTF-8

%s

--boundary123--`,
		s.config.SMTPFrom,
		strings.Join(recipients, ", "),
		subject,
		textBody,
		htmlBody)

	addr := fmt.Sprintf("%s:%s", s.config.SMTPHost, s.config.SMTPPort)
	return smtp.SendMail(addr, auth, s.config.SMTPFrom, recipients, []byte(message))
}

const escalationHTMLTemplate = `<html><body>
<h2>Conversation Escalated</h2>
<p>Rule <strong>{{.RuleName}}</strong> matched a conversation on <strong>{{.TenantName}}</strong>.</p>
<p><strong>Visitor message:</strong> {{.UserMessage}}</p>
{{if .UserEmail}}<p><strong>Visitor email:</strong> {{.UserEmail}}</p>{{end}}
<p><strong>Answer confidence:</strong> {{printf "%.2f" .Confidence}}</p>
<h3>Why this rule matched</h3>
<ul>
{{range .Trace}}<li>{{if .Matched}}&#10003;{{else}}&#10007;{{end}} {{.Description}}</li>
{{end}}</ul>
<p>Conversation ID: {{.Conversation}}</p>
</body></html>`

const escalationTextTemplate = `Conversation Escalated

Rule "{{.RuleName}}" matched a conversation on {{.TenantName}}.

Visitor message: {{.UserMessage}}
{{if .UserEmail}}Visitor email: {{.UserEmail}}
{{end}}Answer confidence: {{printf "%.2f" .Confidence}}

Why this rule matched:
{{range .Trace}}- [{{if .Matched}}x{{else}} {{end}}] {{.Description}}
{{end}}
Conversation ID: {{.Conversation}}`

const tokenAlertHTMLTemplate = `<html><body>
<h2>Token Usage Alert</h2>
<p>Your support workspace <strong>{{.TenantName}}</strong> has used <strong>{{printf "%.0f" .PercentUsed}}%</strong> of its allocated tokens.</p>
<ul>
<li>Used: {{.UsedTokens}} tokens</li>
<li>Total: {{.TotalTokens}} tokens</li>
<li>Remaining: {{.RemainingTokens}} tokens</li>
</ul>
<p>Consider upgrading your plan or monitoring usage closely.</p>
</body></html>`

const tokenAlertTextTemplate = `Token Usage Alert

Your support workspace {{.TenantName}} has used {{printf "%.0f" .PercentUsed}}% of its allocated tokens.

Used: {{.UsedTokens}} tokens
Total: {{.TotalTokens}} tokens
Remaining: {{.RemainingTokens}} tokens

Consider upgrading your plan or monitoring usage closely.`
