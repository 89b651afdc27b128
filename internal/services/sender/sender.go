// Package sender отправляет письма по сообщениям из очередей уведомлений.
package sender

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/entitlement-reconciler/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/lib/smtp"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/models"
)

// Transport устанавливает соединение с SMTP сервером.
type Transport interface {
	Connect() (smtp.Client, error)
	GetSMTPUser() string
}

// Service превращает сообщения очередей в письма.
type Service struct {
	transport     Transport
	operatorEmail string
	log           *slog.Logger
}

// New создает новый экземпляр Service. Алерты отправляются на operatorEmail.
func New(transport Transport, operatorEmail string, log *slog.Logger) *Service {
	return &Service{
		transport:     transport,
		operatorEmail: operatorEmail,
		log:           log,
	}
}

// SendPurchaseConfirmation отправляет письмо о завершённой покупке.
func (s *Service) SendPurchaseConfirmation(body []byte) error {
	var message models.PurchaseNotice
	if err := json.Unmarshal(body, &message); err != nil {
		s.log.Error("Failed to unmarshal purchase notice", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}

	subject := "Подписка оформлена"
	bodyText := fmt.Sprintf("Здравствуйте!\n\nВаша подписка уровня %q активирована.\n\nСпасибо, что вы с нами.",
		message.Tier)
	if message.IsPass && message.ExpiresAt != nil {
		subject = "Доступ оформлен"
		bodyText = fmt.Sprintf("Здравствуйте!\n\nВаш доступ уровня %q действует до %s.\n\nСпасибо, что вы с нами.",
			message.Tier, message.ExpiresAt.Format("02.01.2006"))
	}

	return s.sendEmail([]string{message.Email}, subject, bodyText)
}

// SendExpiryWarning отправляет предупреждение об окончании доступа завтра.
func (s *Service) SendExpiryWarning(body []byte) error {
	var message models.ExpiryWarning
	if err := json.Unmarshal(body, &message); err != nil {
		s.log.Error("Failed to unmarshal expiry warning", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}

	subject := "Уведомление о скором окончании доступа"
	bodyText := fmt.Sprintf("Здравствуйте!\n\nВаш доступ уровня %q заканчивается завтра, %s.\n\nПожалуйста, продлите его заранее.",
		message.Tier, message.ExpiresAt.Format("02.01.2006"))

	return s.sendEmail([]string{message.Email}, subject, bodyText)
}

// SendExpiryNotice отправляет письмо о завершившемся доступе.
func (s *Service) SendExpiryNotice(body []byte) error {
	var message models.ExpiryNotice
	if err := json.Unmarshal(body, &message); err != nil {
		s.log.Error("Failed to unmarshal expiry notice", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}

	subject := "Доступ завершён"
	bodyText := fmt.Sprintf("Здравствуйте!\n\nВаш доступ уровня %q завершился %s.\n\nЧтобы вернуть доступ, оформите подписку заново.",
		message.Tier, message.ExpiredAt.Format("02.01.2006"))

	return s.sendEmail([]string{message.Email}, subject, bodyText)
}

// SendOperatorAlert отправляет оператору письмо о сбое, требующем ручной сверки.
func (s *Service) SendOperatorAlert(body []byte) error {
	var message models.OperatorAlert
	if err := json.Unmarshal(body, &message); err != nil {
		s.log.Error("Failed to unmarshal operator alert", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}

	subject := "[alert] " + message.Subject
	bodyText := fmt.Sprintf("Сбой: %s\n\nПользователь: %s\nВремя: %s\n\nТребуется ручная сверка с платежным провайдером.",
		message.Details, message.TargetEmail, message.OccurredAt.Format("02.01.2006 15:04:05"))

	return s.sendEmail([]string{s.operatorEmail}, subject, bodyText)
}

func (s *Service) sendEmail(to []string, subject, bodyText string) error {
	msg := strings.Join([]string{
		"From: " + s.transport.GetSMTPUser(),
		"To: " + strings.Join(to, ";"),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("Failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer client.Close()

	if err := client.Mail(s.transport.GetSMTPUser()); err != nil {
		s.log.Error("Failed to set MAIL FROM", "from", s.transport.GetSMTPUser(), sl.Err(err))
		return err
	}

	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("Failed to set RCPT TO", "recipient", addr, sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("Failed to get Data writer", sl.Err(err))
		return err
	}

	if _, err = wc.Write([]byte(msg)); err != nil {
		s.log.Error("Failed to write email body", sl.Err(err))
		return err
	}

	if err = wc.Close(); err != nil {
		s.log.Error("Failed to close Data writer", sl.Err(err))
		return err
	}

	if err = client.Quit(); err != nil {
		s.log.Error("Failed to quit SMTP client", sl.Err(err))
		return err
	}

	s.log.Info("email sent successfully", "to", to)
	return nil
}
