package notify

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/radiology-api/internal/model"
)

// Sender is satisfied by *gomail.Dialer.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type MailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	To       []string
}

// MailNotifier mails a report for runs that aborted or rejected records.
// Clean runs are not mailed.
type MailNotifier struct {
	sender Sender
	from   string
	to     []string
}

func NewMailNotifier(cfg MailConfig) *MailNotifier {
	return NewMailNotifierWithSender(gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password), cfg.From, cfg.To)
}

func NewMailNotifierWithSender(sender Sender, from string, to []string) *MailNotifier {
	return &MailNotifier{sender: sender, from: from, to: to}
}

func (n *MailNotifier) Notify(ctx context.Context, ev model.ImportEvent) error {
	if ev.Summary.Status == model.ImportStatusSuccess && ev.Summary.Errors == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", n.to...)
	m.SetHeader("Subject", subject(ev))
	m.SetBody("text/plain", body(ev))

	if err := n.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send import report: %w", err)
	}
	return nil
}

func subject(ev model.ImportEvent) string {
	if ev.Summary.Status != model.ImportStatusSuccess {
		return fmt.Sprintf("[radis] %s import failed", ev.Entity)
	}
	return fmt.Sprintf("[radis] %s import finished with %d errors", ev.Entity, ev.Summary.Errors)
}

func body(ev model.ImportEvent) string {
	s := ev.Summary
	var b strings.Builder
	fmt.Fprintf(&b, "Run:        %s\n", ev.RunID)
	fmt.Fprintf(&b, "Entity:     %s\n", ev.Entity)
	fmt.Fprintf(&b, "File:       %s\n", ev.Source)
	if ev.Actor != "" {
		fmt.Fprintf(&b, "Actor:      %s\n", ev.Actor)
	}
	fmt.Fprintf(&b, "Finished:   %s\n\n", ev.At.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Status:     %s\n", s.Status)
	fmt.Fprintf(&b, "Total:      %d\n", s.Total)
	fmt.Fprintf(&b, "Written:    %d\n", s.Processed)
	fmt.Fprintf(&b, "Duplicates: %d\n", s.Duplicates)
	fmt.Fprintf(&b, "Invalid:    %d\n", s.ValidationErrors)
	fmt.Fprintf(&b, "No patient: %d\n", s.ReferenceErrors)
	fmt.Fprintf(&b, "Not saved:  %d\n", s.WriteErrors)
	if s.Message != "" {
		fmt.Fprintf(&b, "\n%s\n", s.Message)
	}
	return b.String()
}
