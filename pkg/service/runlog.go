package service

import (
	"fmt"
	"strings"

	"github.com/ignatij/agendaflow/pkg/models"
)

var separatorLine = strings.Repeat("=", 50)

// headerLines opens every run log. The last line is only written once the
// mailer connection check has passed.
var headerLines = []string{
	"🚀 INICIANDO SISTEMA DE AGENDAMENTOS - v2.0",
	separatorLine,
	"📧 Iniciando processamento de agendamentos...",
	"🔄 Testando conexão SMTP...",
	"✅ Conexão SMTP estabelecida com sucesso!",
}

// HeaderLines returns a copy of the fixed run log header.
func HeaderLines() []string {
	return append([]string(nil), headerLines...)
}

// FooterLines returns the summary and closing lines of a completed run.
func FooterLines(processed, messages int) []string {
	return []string{
		fmt.Sprintf("📊 Resumo: %d agendamentos processados", processed),
		fmt.Sprintf("📧 Total de e-mails enviados: %d", messages),
		separatorLine,
		"🎉 SISTEMA FINALIZADO",
		separatorLine,
	}
}

// ExpectedLogLines is the length of the log of a completed run over n participants.
func ExpectedLogLines(n int) int {
	return len(headerLines) + linesPerParticipant*n + len(FooterLines(0, 0))
}

const linesPerParticipant = 4

func requestSubmittedLine(p models.Participant) string {
	return fmt.Sprintf("📅 Agendamento solicitado para %s (%s) - %s", p.Name, p.Email, p.ScheduledAt)
}

func requestSentLine(p models.Participant) string {
	return fmt.Sprintf("✅ E-mail de solicitação enviado para %s", p.Name)
}

func processingLine(p models.Participant) string {
	return fmt.Sprintf("⏳ Processando agendamento para %s...", p.Name)
}

func confirmationSentLine(p models.Participant) string {
	return fmt.Sprintf("📧 Agendamento atendido para %s (%s) - %s", p.Name, p.Email, p.ScheduledAt)
}

func connectionFailedLine(err error) string {
	return fmt.Sprintf("❌ Falha na conexão SMTP: %v", err)
}

func deliveryFailedLine(kind models.MessageKind, p models.Participant, err error) string {
	label := "solicitação"
	if kind == models.ConfirmationMessage {
		label = "confirmação"
	}
	return fmt.Sprintf("❌ Falha ao enviar e-mail de %s para %s: %v", label, p.Name, err)
}

const cancelledLine = "⚠️ Processamento cancelado"

func requestToast(p models.Participant) models.Notification {
	return models.Notification{Level: models.SuccessNotification, Message: "E-mail de solicitação enviado para " + p.Name}
}

func confirmationToast(p models.Participant) models.Notification {
	return models.Notification{Level: models.SuccessNotification, Message: "Agendamento confirmado para " + p.Name}
}

var completedToast = models.Notification{Level: models.SuccessNotification, Message: "Processamento concluído com sucesso!"}
