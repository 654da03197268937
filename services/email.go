package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/FranciscoJunior65/curriuloproia-sub000/models"
	"github.com/wneessen/go-mail"
)

type Email struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers a single plain-text email
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// SMTPMailer sends through an SMTP relay using PLAIN auth
type SMTPMailer struct {
	client *mail.Client
	from   string
}

func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(20 * time.Second),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}
	return &SMTPMailer{client: client, from: cfg.From}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, email Email) error {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := msg.To(email.To); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}
	msg.Subject(email.Subject)
	msg.SetBodyString(mail.TypeTextPlain, email.Body)

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// LogMailer only logs outgoing mail; used when no SMTP host is configured
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, email Email) error {
	slog.Info("Email not sent, SMTP not configured", "to", email.To, "subject", email.Subject)
	return nil
}

// NewMailer picks the SMTP mailer when a host is configured
func NewMailer(cfg SMTPConfig) Mailer {
	if cfg.Host == "" {
		slog.Warn("SMTP host not configured, emails will only be logged")
		return LogMailer{}
	}
	mailer, err := NewSMTPMailer(cfg)
	if err != nil {
		slog.Error("Failed to initialize SMTP mailer, falling back to log mailer", "error", err)
		return LogMailer{}
	}
	slog.Info("SMTP mailer initialized", "host", cfg.Host, "port", cfg.Port)
	return mailer
}

// Notifier composes the transactional emails and sends them in the
// background. Failures are logged and never reach the caller.
type Notifier struct {
	mailer    Mailer
	publicURL string
	timeout   time.Duration
	wg        sync.WaitGroup
}

func NewNotifier(mailer Mailer, publicURL string) *Notifier {
	return &Notifier{
		mailer:    mailer,
		publicURL: strings.TrimRight(publicURL, "/"),
		timeout:   30 * time.Second,
	}
}

// Wait blocks until every queued email has been attempted
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) send(email Email) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		if err := n.mailer.Send(ctx, email); err != nil {
			slog.Error("Failed to send email", "error", err, "to", email.To, "subject", email.Subject)
			return
		}
		slog.Info("Email sent", "to", email.To, "subject", email.Subject)
	}()
}

func greeting(user *models.User) string {
	if user.FullName != "" {
		return fmt.Sprintf("Olá, %s!", user.FullName)
	}
	return "Olá!"
}

func (n *Notifier) Welcome(user *models.User) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", greeting(user))
	b.WriteString("Sua conta no CurriculoPro IA foi criada.\n")
	if user.Credits > 0 {
		fmt.Fprintf(&b, "Você recebeu %d crédito(s) para analisar seu currículo.\n", user.Credits)
	}
	fmt.Fprintf(&b, "\nAcesse: %s\n", n.publicURL)
	n.send(Email{To: user.Email, Subject: "Bem-vindo ao CurriculoPro IA", Body: b.String()})
}

func (n *Notifier) PasswordReset(user *models.User, token string) {
	link := fmt.Sprintf("%s/reset-password?token=%s", n.publicURL, token)
	body := fmt.Sprintf("%s\n\nRecebemos um pedido para redefinir sua senha.\n"+
		"Use o link abaixo em até 1 hora:\n\n%s\n\n"+
		"Se você não fez este pedido, ignore este email.\n", greeting(user), link)
	n.send(Email{To: user.Email, Subject: "Redefinição de senha", Body: body})
}

func (n *Notifier) PurchaseReceipt(user *models.User, purchase *models.Purchase, balance int) {
	body := fmt.Sprintf("%s\n\nPagamento confirmado.\n\n"+
		"Créditos adicionados: %d\nValor: %s\nNovo saldo: %d crédito(s)\nPedido: %s\n",
		greeting(user), purchase.Credits, formatMoney(purchase.AmountCents, purchase.Currency), balance, purchase.ID)
	n.send(Email{To: user.Email, Subject: "Recibo da sua compra de créditos", Body: body})
}

func (n *Notifier) AnalysisCompleted(user *models.User, analysis *models.ResumeAnalysis) {
	body := fmt.Sprintf("%s\n\nA análise do seu currículo (%s) está pronta.\n"+
		"Pontuação: %.0f/100\n\n%s\n\nVeja os detalhes em %s/analyses/%s\n",
		greeting(user), analysis.FileName, analysis.Score, analysis.Summary, n.publicURL, analysis.ID)
	n.send(Email{To: user.Email, Subject: "Sua análise de currículo está pronta", Body: body})
}

func formatMoney(cents int64, currency string) string {
	return fmt.Sprintf("%s %d.%02d", strings.ToUpper(currency), cents/100, cents%100)
}
