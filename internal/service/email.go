package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/pageza/chopchop/backend/internal/models"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/gomail.v2"
)

const groceryEmailSubject = "Your ChopChop Grocery List & Recipes"

// MailSender delivers composed messages; *gomail.Dialer implements it
type MailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailService sends the grocery list and recipes to a user
type EmailService struct {
	sender  MailSender
	from    string
	backend Backend
	logger  *zap.Logger
}

// NewEmailService creates the email service. With a nil sender mail is
// handed to the backend send-email endpoint instead.
func NewEmailService(sender MailSender, from string, backend Backend, logger *zap.Logger) *EmailService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailService{
		sender:  sender,
		from:    from,
		backend: backend,
		logger:  logger,
	}
}

// NewSMTPSender creates a gomail dialer for the given server
func NewSMTPSender(host string, port int, username, password string) MailSender {
	return gomail.NewDialer(host, port, username, password)
}

// SendGroceryList emails the grocery list and recipes to email
func (s *EmailService) SendGroceryList(ctx context.Context, email string, grocery []models.GroceryItem, recipes []models.Recipe) error {
	if strings.TrimSpace(email) == "" {
		return &ValidationError{Field: "email", Message: "Email is required"}
	}
	if len(grocery) == 0 && len(recipes) == 0 {
		return &ValidationError{Field: "items", Message: "Your grocery list and recipes are empty"}
	}

	body, err := RenderGroceryEmail(grocery, recipes)
	if err != nil {
		return err
	}

	if s.sender == nil {
		resp := s.backend.SendEmail(ctx, SendEmailRequest{Email: email, Subject: groceryEmailSubject, Message: body})
		if !resp.OK() {
			return &BackendError{StatusCode: resp.StatusCode, Message: resp.ErrorMessage()}
		}
		s.logger.Info("grocery email forwarded to backend", zap.String("to", email))
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", email)
	m.SetHeader("Subject", groceryEmailSubject)
	m.SetBody("text/html", body)

	if err := s.sender.DialAndSend(m); err != nil {
		s.logger.Error("failed to send grocery email", zap.String("to", email), zap.Error(err))
		return fmt.Errorf("failed to send email: %w", err)
	}
	s.logger.Info("grocery email sent", zap.String("to", email),
		zap.Int("items", len(grocery)), zap.Int("recipes", len(recipes)))
	return nil
}

var groceryEmailTemplate = template.Must(template.New("grocery").Funcs(template.FuncMap{
	"title":     func(v string) string { return cases.Title(language.English).String(v) },
	"upper":     func(v string) string { return cases.Upper(language.English).String(v) },
	"orDefault": firstNonEmpty,
}).Parse(`<!DOCTYPE html>
<html>
<head>
<style>
body { font-family: Arial, sans-serif; color: #1f2937; }
.item { padding: 8px; border-left: 4px solid #e5e7eb; margin-bottom: 6px; }
.priority-high { border-color: #ef4444; }
.priority-medium { border-color: #f59e0b; }
.priority-low { border-color: #10b981; }
.checked { text-decoration: line-through; color: #9ca3af; }
.recipe { border: 1px solid #e5e7eb; padding: 12px; margin-bottom: 12px; }
</style>
</head>
<body>
<h1>🛒 Your ChopChop Grocery List &amp; Recipes</h1>
{{- if .Grocery}}
<div class="section">
<h2>🛒 Grocery List</h2>
{{- range .Grocery}}
<div class="item priority-{{orDefault (print .Priority) "medium"}}{{if .Checked}} checked{{end}}">
<strong>{{orDefault .Item "Unknown Item"}}</strong> <span>{{upper (orDefault (print .Priority) "medium")}}</span><br>
<small>Category: {{title (orDefault .Category "general")}} | Needed for: {{orDefault .NeededFor "General use"}}</small>
</div>
{{- end}}
</div>
{{- end}}
{{- if .Recipes}}
<div class="section">
<h2>👨‍🍳 Recipes</h2>
{{- range .Recipes}}
<div class="recipe">
<h3>{{orDefault .Name "Untitled Recipe"}}</h3>
<p><strong>Description:</strong> {{orDefault .Description "No description"}}</p>
<p><strong>Cooking Time:</strong> {{orDefault (print .CookingTime) "Not specified"}} | <strong>Difficulty:</strong> {{title (orDefault .Difficulty "Not specified")}} | <strong>Servings:</strong> {{orDefault (print .Servings) "Not specified"}}</p>
{{- if .IngredientsNeeded}}
<p><strong>Ingredients:</strong></p>
<ul>
{{- range .IngredientsNeeded}}
<li>{{if .Available}}✅{{else}}❌{{end}} {{.Amount}} {{.Name}}</li>
{{- end}}
</ul>
{{- end}}
{{- if .Instructions}}
<p><strong>Instructions:</strong></p>
<ol>
{{- range .Instructions}}
<li>{{.}}</li>
{{- end}}
</ol>
{{- end}}
{{- if .Tips}}
<p><strong>Tips:</strong> {{.Tips}}</p>
{{- end}}
</div>
{{- end}}
</div>
{{- end}}
<p>Happy cooking!<br>The ChopChop Team</p>
</body>
</html>
`))

// RenderGroceryEmail renders the HTML body of the grocery email
func RenderGroceryEmail(grocery []models.GroceryItem, recipes []models.Recipe) (string, error) {
	var buf bytes.Buffer
	err := groceryEmailTemplate.Execute(&buf, struct {
		Grocery []models.GroceryItem
		Recipes []models.Recipe
	}{grocery, recipes})
	if err != nil {
		return "", fmt.Errorf("failed to render email: %w", err)
	}
	return buf.String(), nil
}

func firstNonEmpty(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
