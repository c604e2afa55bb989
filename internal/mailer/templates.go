package mailer

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"text/template"

	"github.com/ignatij/agendaflow/pkg/models"
)

// Rendered is a message ready to hand to a transport.
type Rendered struct {
	Subject string
	Body    string // HTML
}

const layout = `<html>
  <body>
    <div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
      <h2 style="color: #2563eb;">Sistema de Agendamentos DevOps v2.0</h2>
      <div style="background-color: #f8fafc; padding: 20px; border-radius: 8px;">
        {{template "content" .}}
      </div>
      <p style="color: #64748b; font-size: 12px; margin-top: 20px;">
        Este e-mail foi enviado automaticamente pelo sistema DevOps.
      </p>
    </div>
  </body>
</html>
`

const requestContent = `{{define "content"}}<h3>Olá, {{.Name}}!</h3>
        <p>Sua solicitação de agendamento foi recebida com sucesso.</p>
        <p><strong>📅 Data/Hora:</strong> {{.ScheduledAt}}</p>
        <p><strong>🔄 Status:</strong> Aguardando confirmação</p>
        <p>Em breve você receberá a confirmação do seu agendamento.</p>{{end}}`

const confirmationContent = `{{define "content"}}<h3>Agendamento Confirmado!</h3>
        <p>Olá, {{.Name}}!</p>
        <p>Seu agendamento foi <strong>confirmado</strong> com sucesso!</p>
        <p><strong>📅 Data/Hora:</strong> {{.ScheduledAt}}</p>
        <p><strong>✅ Status:</strong> Confirmado</p>
        <p>Obrigado por utilizar nosso sistema!</p>{{end}}`

type messageTemplate struct {
	subject *template.Template
	body    *htmltemplate.Template
}

var templates = map[models.MessageKind]messageTemplate{
	models.RequestMessage: {
		subject: template.Must(template.New("subject").Parse("🔔 Solicitação de Agendamento - {{.Name}}")),
		body:    htmltemplate.Must(htmltemplate.Must(htmltemplate.New("layout").Parse(layout)).Parse(requestContent)),
	},
	models.ConfirmationMessage: {
		subject: template.Must(template.New("subject").Parse("✅ Agendamento Confirmado - {{.Name}}")),
		body:    htmltemplate.Must(htmltemplate.Must(htmltemplate.New("layout").Parse(layout)).Parse(confirmationContent)),
	},
}

// Render builds the subject and HTML body for msg.
func Render(msg models.Message) (Rendered, error) {
	tmpl, ok := templates[msg.Kind]
	if !ok {
		return Rendered{}, fmt.Errorf("unknown message kind %q", msg.Kind)
	}
	var subject, body bytes.Buffer
	if err := tmpl.subject.Execute(&subject, msg); err != nil {
		return Rendered{}, fmt.Errorf("render %s subject: %w", msg.Kind, err)
	}
	if err := tmpl.body.Execute(&body, msg); err != nil {
		return Rendered{}, fmt.Errorf("render %s body: %w", msg.Kind, err)
	}
	return Rendered{Subject: subject.String(), Body: body.String()}, nil
}
