// Package notifier отправляет почтовые уведомления владельцам аккаунтов.
// Сервис подписан на события отключения канала: владелец узнаёт о разрыве
// связи с мессенджером, не заходя в кабинет.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leadpilot/leadpilot/internal/lib/sl"
	"github.com/leadpilot/leadpilot/internal/lib/smtp"
	"github.com/leadpilot/leadpilot/internal/models"
	"github.com/leadpilot/leadpilot/internal/services/channel"
)

// AccountRepository определяет выборку аккаунта для уведомления.
type AccountRepository interface {
	GetAccountByUID(ctx context.Context, uid string) (*models.Account, error)
}

// Service обслуживает отправку уведомлений.
type Service struct {
	repo      AccountRepository
	transport smtp.TransportInterface
	log       *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo AccountRepository, transport smtp.TransportInterface, log *slog.Logger) *Service {
	return &Service{repo: repo, transport: transport, log: log}
}

// SendChannelDisconnected обрабатывает тело события channel.disconnected:
// находит владельца аккаунта и отправляет ему письмо.
func (s *Service) SendChannelDisconnected(body []byte) error {
	var event channel.Event
	if err := json.Unmarshal(body, &event); err != nil {
		s.log.Error("failed to unmarshal event body", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}

	account, err := s.repo.GetAccountByUID(context.Background(), event.AccountUID)
	if err != nil {
		s.log.Error("failed to find account for notification",
			slog.String("account_uid", event.AccountUID), sl.Err(err))
		return fmt.Errorf("failed to find account: %w", err)
	}

	to := []string{account.Email}
	subject := "Канал мессенджера отключён"
	bodyText := fmt.Sprintf("Здравствуйте, %s!\n\n"+
		"Подключение вашего аккаунта к мессенджеру разорвано, приём и отправка сообщений остановлены.\n\n"+
		"Чтобы восстановить работу, подключите канал заново в личном кабинете.",
		account.Username)

	return s.sendEmail(to, subject, bodyText)
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
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer client.Close()

	if err := client.Mail(s.transport.GetSMTPUser()); err != nil {
		s.log.Error("failed to set MAIL FROM", slog.String("from", s.transport.GetSMTPUser()), sl.Err(err))
		return err
	}

	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("failed to set RCPT TO", slog.String("recipient", addr), sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to get data writer", sl.Err(err))
		return err
	}

	if _, err = wc.Write([]byte(msg)); err != nil {
		s.log.Error("failed to write email body", sl.Err(err))
		return err
	}
	if err = wc.Close(); err != nil {
		s.log.Error("failed to close data writer", sl.Err(err))
		return err
	}
	if err = client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP client", sl.Err(err))
		return err
	}

	s.log.Info("email sent", slog.Any("to", to))
	return nil
}
