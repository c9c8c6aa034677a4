package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"net/textproto"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"github.com/mikey/llm-mail-sorter/internal/core"
	"github.com/mikey/llm-mail-sorter/internal/utils"
	"go.uber.org/zap"
)

const (
	defaultMaxMessageBytes = 30 * 1024 * 1024
	defaultSnippetSize     = 200
	storeTimeout           = 30 * time.Second
)

// ErrMalformedMessage is returned for messages that cannot be turned into a record
var ErrMalformedMessage = errors.New("malformed message")

// SMTPIngestor accepts mail over SMTP and stores every message as an email record
type SMTPIngestor struct {
	store           core.RecordStore
	text            *utils.TextProcessor
	clock           core.Clock
	listenAddr      string
	domain          string
	localDomains    map[string]bool
	snippetSize     int
	maxMessageBytes int64
	server          *smtp.Server
	logger          *zap.Logger
}

// NewSMTPIngestor creates a new SMTP ingestor. An empty localDomains accepts any recipient.
func NewSMTPIngestor(
	store core.RecordStore,
	text *utils.TextProcessor,
	clock core.Clock,
	listenAddr string,
	domain string,
	localDomains []string,
	snippetSize int,
	maxMessageBytes int64,
	logger *zap.Logger,
) *SMTPIngestor {
	if snippetSize <= 0 {
		snippetSize = defaultSnippetSize
	}
	if maxMessageBytes <= 0 {
		maxMessageBytes = defaultMaxMessageBytes
	}
	domains := make(map[string]bool, len(localDomains))
	for _, d := range localDomains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			domains[d] = true
		}
	}
	if len(domains) > 0 {
		logger.Info("Restricting ingest to local domains", zap.Strings("domains", localDomains))
	}

	return &SMTPIngestor{
		store:           store,
		text:            text,
		clock:           clock,
		listenAddr:      listenAddr,
		domain:          domain,
		localDomains:    domains,
		snippetSize:     snippetSize,
		maxMessageBytes: maxMessageBytes,
		logger:          logger,
	}
}

// Start starts the SMTP listener in the background
func (i *SMTPIngestor) Start() error {
	i.server = smtp.NewServer(&smtpBackend{ingestor: i})
	i.server.Addr = i.listenAddr
	i.server.Domain = i.domain
	i.server.ReadTimeout = 30 * time.Second
	i.server.WriteTimeout = 30 * time.Second
	i.server.MaxMessageBytes = i.maxMessageBytes
	i.server.MaxRecipients = 50

	i.logger.Info("SMTP ingest starting", zap.String("address", i.listenAddr))

	go func() {
		if err := i.server.ListenAndServe(); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			i.logger.Error("SMTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop stops the SMTP listener
func (i *SMTPIngestor) Stop() error {
	if i.server != nil {
		return i.server.Close()
	}
	return nil
}

// accepts reports whether mail for the recipient is ours to store
func (i *SMTPIngestor) accepts(rcpt string) bool {
	if len(i.localDomains) == 0 {
		return true
	}
	at := strings.LastIndex(rcpt, "@")
	if at < 0 {
		return false
	}
	domain := strings.ToLower(strings.TrimRight(rcpt[at+1:], "> "))
	return i.localDomains[domain]
}

// Ingest parses a raw message and stores it; duplicates are ignored
func (i *SMTPIngestor) Ingest(ctx context.Context, raw []byte, envelopeFrom string) (*core.EmailRecord, bool, error) {
	rec, err := i.parseMessage(raw, envelopeFrom)
	if err != nil {
		return nil, false, err
	}
	n, err := i.store.InsertRecords(ctx, []core.EmailRecord{*rec})
	if err != nil {
		return nil, false, fmt.Errorf("failed to store message: %w", err)
	}
	return rec, n > 0, nil
}

// parseMessage builds an unclassified email record from a raw RFC 5322 message
func (i *SMTPIngestor) parseMessage(raw []byte, envelopeFrom string) (*core.EmailRecord, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	sender := senderAddress(msg.Header, envelopeFrom)
	if sender == "" {
		return nil, fmt.Errorf("%w: no sender", ErrMalformedMessage)
	}

	date, err := msg.Header.Date()
	if err != nil {
		date = i.clock.Now()
	}

	id := strings.Trim(strings.TrimSpace(msg.Header.Get("Message-Id")), "<>")
	if id == "" {
		id = uuid.NewString()
	}

	subject := i.text.CollapseWhitespace(i.text.SanitizeUTF8(decodeHeader(msg.Header.Get("Subject"))))
	body := extractText(textproto.MIMEHeader(msg.Header), msg.Body)

	return &core.EmailRecord{
		ID:           id,
		Sender:       sender,
		Subject:      subject,
		Snippet:      i.text.Snippet(body, i.snippetSize),
		Date:         date.UTC(),
		Category:     core.CategoryUnclassified,
		Source:       core.SourceUnclassified,
		Synced:       true,
		SizeEstimate: int64(len(raw)),
	}, nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	ingestor *SMTPIngestor
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{ingestor: b.ingestor}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	ingestor   *SMTPIngestor
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = nil
}

// Logout handles the end of the session
func (s *smtpSession) Logout() error {
	return nil
}

// Mail sets the envelope sender
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient, rejecting domains we do not store mail for
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	if !s.ingestor.accepts(to) {
		s.ingestor.logger.Debug("Rejected recipient outside local domains", zap.String("recipient", to))
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 1, 1},
			Message:      "Recipient domain not accepted here",
		}
	}
	s.recipients = append(s.recipients, to)
	return nil
}

// Data reads the message and stores it as an email record
func (s *smtpSession) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		s.ingestor.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	rec, inserted, err := s.ingestor.Ingest(ctx, raw, s.sender)
	if err != nil {
		s.ingestor.logger.Error("Failed to ingest message",
			zap.String("envelope_from", s.sender),
			zap.Error(err))
		if errors.Is(err, ErrMalformedMessage) {
			return &smtp.SMTPError{
				Code:         554,
				EnhancedCode: smtp.EnhancedCode{5, 6, 0},
				Message:      "Message could not be parsed",
			}
		}
		return &smtp.SMTPError{
			Code:         451,
			EnhancedCode: smtp.EnhancedCode{4, 3, 0},
			Message:      "Message could not be stored",
		}
	}

	s.ingestor.logger.Info("Message ingested",
		zap.String("id", rec.ID),
		zap.String("sender", rec.Sender),
		zap.Int64("size", rec.SizeEstimate),
		zap.Bool("duplicate", !inserted))
	return nil
}
