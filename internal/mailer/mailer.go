// Copyright (c) 2025-2026 SphereLink
// SPDX-License-Identifier: GPL-3.0-or-later

// Package mailer sends transactional email over SMTP. All sending is a
// no-op when no SMTP host is configured, so the application works
// without mail credentials in development.
package mailer

import (
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/domodwyer/mailyak/v3"

	"github.com/spherelink/spherelink/internal/config"
	"github.com/spherelink/spherelink/internal/model"
)

// Mailer sends transactional email for registrations, invitations and
// contact form submissions.
type Mailer struct {
	cfg     config.Config
	baseURL string
}

// New creates a Mailer from the SMTP settings in cfg. baseURL is the
// public URL of the application, used to build links in email bodies.
func New(cfg config.Config, baseURL string) *Mailer {
	return &Mailer{
		cfg:     cfg,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Enabled reports whether SMTP is configured.
func (m *Mailer) Enabled() bool {
	return m.cfg.MailEnabled()
}

// newMessage builds a MailYak message with auth and from address set.
func (m *Mailer) newMessage() *mailyak.MailYak {
	var auth smtp.Auth
	if m.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", m.cfg.SMTPUser, m.cfg.SMTPPassword, m.cfg.SMTPHost)
	}

	mail := mailyak.New(m.cfg.SMTPAddr(), auth)
	mail.From(m.cfg.SMTPFrom)
	mail.FromName("SphereLink Events")
	return mail
}

// send delivers the message, logging the outcome. It is a no-op when
// mail is disabled.
func (m *Mailer) send(mail *mailyak.MailYak, kind, to string) error {
	if !m.Enabled() {
		slog.Debug("mail disabled, skipping send", "kind", kind, "to", to)
		return nil
	}

	if err := mail.Send(); err != nil {
		slog.Error("failed to send mail", "kind", kind, "to", to, "error", err)
		return fmt.Errorf("sending %s mail: %w", kind, err)
	}

	slog.Info("mail sent", "kind", kind, "to", to)
	return nil
}

// SendRegistrationConfirmation emails a user after they register for an event.
func (m *Mailer) SendRegistrationConfirmation(user model.User, event model.Event) error {
	mail := m.newMessage()
	mail.To(user.Email)
	mail.Subject(fmt.Sprintf("Registration confirmed: %s", event.Title))

	body := fmt.Sprintf(
		"Hi %s,\n\n"+
			"Your registration for %q is confirmed.\n\n"+
			"When: %s\n"+
			"Where: %s\n\n"+
			"Your ticket: %s/api/v1/events/%s/ticket\n\n"+
			"See you there!\n"+
			"SphereLink Events",
		user.FirstName,
		event.Title,
		event.Date.Format("Monday, 2 January 2006 at 15:04"),
		event.Location,
		m.baseURL, event.Slug,
	)
	mail.Plain().Set(body)

	return m.send(mail, "registration_confirmation", user.Email)
}

// SendRegistrationCancellation emails a user after they cancel a registration.
func (m *Mailer) SendRegistrationCancellation(user model.User, event model.Event) error {
	mail := m.newMessage()
	mail.To(user.Email)
	mail.Subject(fmt.Sprintf("Registration cancelled: %s", event.Title))

	body := fmt.Sprintf(
		"Hi %s,\n\n"+
			"Your registration for %q on %s has been cancelled.\n\n"+
			"If this was a mistake you can register again at %s/api/v1/events/%s, "+
			"subject to availability.\n\n"+
			"SphereLink Events",
		user.FirstName,
		event.Title,
		event.Date.Format("2 January 2006"),
		m.baseURL, event.Slug,
	)
	mail.Plain().Set(body)

	return m.send(mail, "registration_cancellation", user.Email)
}

// SendInvitation emails an organization invitation with its accept link.
func (m *Mailer) SendInvitation(inv model.Invitation, orgName, token string) error {
	mail := m.newMessage()
	mail.To(inv.Email)
	mail.Subject(fmt.Sprintf("You have been invited to join %s", orgName))

	body := fmt.Sprintf(
		"Hello,\n\n"+
			"You have been invited to join %s on SphereLink as %s.\n\n"+
			"Accept the invitation: %s/api/v1/invitations/%s/accept\n\n"+
			"This invitation expires on %s. If you were not expecting it, "+
			"you can safely ignore this message.\n\n"+
			"SphereLink Events",
		orgName,
		inv.Role,
		m.baseURL, token,
		inv.ExpiresAt.Format("2 January 2006"),
	)
	mail.Plain().Set(body)

	return m.send(mail, "invitation", inv.Email)
}

// SendContactNotice forwards a contact form submission to the site mailbox.
func (m *Mailer) SendContactNotice(msg model.ContactMessage) error {
	mail := m.newMessage()
	mail.To(m.cfg.SMTPFrom)
	mail.ReplyTo(msg.Email)
	mail.Subject(fmt.Sprintf("[Contact] %s", msg.Subject))

	body := fmt.Sprintf(
		"New contact form submission.\n\n"+
			"From: %s\n"+
			"Received: %s\n\n"+
			"%s",
		msg.Email,
		time.Now().Format(time.RFC1123),
		msg.Message,
	)
	mail.Plain().Set(body)

	return m.send(mail, "contact_notice", m.cfg.SMTPFrom)
}
