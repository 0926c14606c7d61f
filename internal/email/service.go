package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/medbook/clinic-api/internal/config"
	"github.com/medbook/clinic-api/internal/model"
)

// Service sends appointment notification mail. Callers treat delivery
// as best effort.
type Service struct {
	cfg    config.SMTPConfig
	dialer *gomail.Dialer
}

func NewService(cfg config.SMTPConfig) *Service {
	return &Service{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
	}
}

func (s *Service) AppointmentBooked(_ context.Context, apt *model.Appointment) error {
	if apt.Patient == nil {
		return fmt.Errorf("appointment %d has no patient attached", apt.ID)
	}

	subject := "Appointment confirmed"
	body := fmt.Sprintf(
		"Hello %s,\n\nYour %s appointment is confirmed for %s.\nReason: %s\n",
		apt.Patient.Name,
		apt.Specialty,
		apt.StartDate.Format("Mon, 02 Jan 2006 15:04"),
		apt.Reason,
	)
	return s.send(apt.Patient.Email, subject, body)
}

func (s *Service) AppointmentCancelled(_ context.Context, apt *model.Appointment) error {
	if apt.Patient == nil {
		return fmt.Errorf("appointment %d has no patient attached", apt.ID)
	}

	subject := "Appointment cancelled"
	body := fmt.Sprintf(
		"Hello %s,\n\nYour %s appointment scheduled for %s has been cancelled.\n",
		apt.Patient.Name,
		apt.Specialty,
		apt.StartDate.Format("Mon, 02 Jan 2006 15:04"),
	)
	return s.send(apt.Patient.Email, subject, body)
}

func (s *Service) send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
