package ingest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/mikey/llm-mail-sorter/internal/adapters/store"
	"github.com/mikey/llm-mail-sorter/internal/core"
	"github.com/mikey/llm-mail-sorter/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var ingestTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestIngestor(t *testing.T, localDomains ...string) (*SMTPIngestor, *store.MemoryStore) {
	t.Helper()
	logger := zap.NewNop()
	clock := fixedClock{now: ingestTime}
	st := store.NewMemoryStore(clock, logger)
	return NewSMTPIngestor(st, utils.NewTextProcessor(logger), clock, "127.0.0.1:0", "localhost",
		localDomains, 40, 0, logger), st
}

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func TestParseMessage(t *testing.T) {
	ing, _ := newTestIngestor(t)

	tests := []struct {
		name        string
		raw         string
		envelope    string
		wantID      string
		wantSender  string
		wantSubject string
		wantSnippet string
		wantDate    time.Time
	}{
		{
			name: "plain message",
			raw: `From: "Shop" <Orders@Shop.Example>
Subject: Your   order
Date: Mon, 03 Jun 2024 09:30:00 +0900
Message-Id: <abc@shop.example>

Thanks for
shopping with us.
`,
			wantID:      "abc@shop.example",
			wantSender:  "orders@shop.example",
			wantSubject: "Your order",
			wantSnippet: "Thanks for shopping with us.",
			wantDate:    time.Date(2024, 6, 3, 0, 30, 0, 0, time.UTC),
		},
		{
			name: "encoded utf-8 subject",
			raw: `From: noreply@coupang.com
Subject: =?UTF-8?B?7L+g7YyhIOyjvOusuCDtmZXsnbg=?=
Message-Id: <k1@coupang.com>

body
`,
			wantID:      "k1@coupang.com",
			wantSender:  "noreply@coupang.com",
			wantSubject: "쿠팡 주문 확인",
			wantSnippet: "body",
			wantDate:    ingestTime,
		},
		{
			name: "euc-kr subject",
			raw: `From: card@mybank.co.kr
Subject: =?EUC-KR?B?sOHBpiC47by8vK0=?=
Message-Id: <k2@mybank.co.kr>

x
`,
			wantID:      "k2@mybank.co.kr",
			wantSender:  "card@mybank.co.kr",
			wantSubject: "결제 명세서",
			wantSnippet: "x",
			wantDate:    ingestTime,
		},
		{
			name: "envelope sender fallback",
			raw: `Subject: no from header
Message-Id: <k3@example.org>

hello
`,
			envelope:    "Bounce@Example.org",
			wantID:      "k3@example.org",
			wantSender:  "bounce@example.org",
			wantSubject: "no from header",
			wantSnippet: "hello",
			wantDate:    ingestTime,
		},
		{
			name: "multipart picks text parts",
			raw: `From: news@journal.org
Subject: Issue 12
Message-Id: <k4@journal.org>
Content-Type: multipart/alternative; boundary="b1"

--b1
Content-Type: text/plain; charset=iso-8859-1
Content-Transfer-Encoding: quoted-printable

R=E9sum=E9 attached
--b1
Content-Type: text/html

<p>ignored</p>
--b1--
`,
			wantID:      "k4@journal.org",
			wantSender:  "news@journal.org",
			wantSubject: "Issue 12",
			wantSnippet: "Résumé attached",
			wantDate:    ingestTime,
		},
		{
			name: "long body is truncated",
			raw: `From: a@family.org
Subject: hi
Message-Id: <k5@family.org>

` + strings.Repeat("x", 100) + `
`,
			wantID:      "k5@family.org",
			wantSender:  "a@family.org",
			wantSubject: "hi",
			wantSnippet: strings.Repeat("x", 40) + " [...]",
			wantDate:    ingestTime,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := ing.parseMessage(crlf(tt.raw), tt.envelope)
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, rec.ID)
			assert.Equal(t, tt.wantSender, rec.Sender)
			assert.Equal(t, tt.wantSubject, rec.Subject)
			assert.Equal(t, tt.wantSnippet, rec.Snippet)
			assert.True(t, tt.wantDate.Equal(rec.Date), "date %v", rec.Date)
			assert.Equal(t, core.CategoryUnclassified, rec.Category)
			assert.Equal(t, core.SourceUnclassified, rec.Source)
			assert.False(t, rec.Classified)
			assert.Equal(t, int64(len(crlf(tt.raw))), rec.SizeEstimate)
		})
	}
}

func TestParseMessageGeneratesID(t *testing.T) {
	ing, _ := newTestIngestor(t)

	rec, err := ing.parseMessage(crlf("From: a@x.com\nSubject: s\n\nb\n"), "")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
}

func TestParseMessageMalformed(t *testing.T) {
	ing, _ := newTestIngestor(t)

	_, err := ing.parseMessage([]byte("not a message"), "")
	assert.ErrorIs(t, err, ErrMalformedMessage)

	_, err = ing.parseMessage(crlf("Subject: s\n\nb\n"), "")
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

func TestSessionStoresMessageOnce(t *testing.T) {
	ing, st := newTestIngestor(t, "example.com")
	ctx := context.Background()
	raw := crlf("From: billing@mybank.com\nSubject: Statement\nMessage-Id: <s1@mybank.com>\n\nYour statement\n")

	for i := 0; i < 2; i++ {
		sess, err := (&smtpBackend{ingestor: ing}).NewSession(nil)
		require.NoError(t, err)
		require.NoError(t, sess.Mail("billing@mybank.com", nil))
		require.NoError(t, sess.Rcpt("me@example.com", nil))
		require.NoError(t, sess.Data(strings.NewReader(string(raw))))
		require.NoError(t, sess.Logout())
	}

	rec, err := st.GetRecord(ctx, "s1@mybank.com")
	require.NoError(t, err)
	assert.Equal(t, "billing@mybank.com", rec.Sender)
	assert.Equal(t, "Statement", rec.Subject)

	aggs, err := st.AggregateSenders(ctx, 0, 3)
	require.NoError(t, err)
	require.Len(t, aggs, 1)
	assert.Equal(t, 1, aggs[0].Count)
}

func TestSessionRejectsForeignRecipient(t *testing.T) {
	ing, _ := newTestIngestor(t, "example.com")

	sess, err := (&smtpBackend{ingestor: ing}).NewSession(nil)
	require.NoError(t, err)

	err = sess.Rcpt("someone@elsewhere.net", nil)
	var smtpErr *smtp.SMTPError
	require.ErrorAs(t, err, &smtpErr)
	assert.Equal(t, 550, smtpErr.Code)

	assert.NoError(t, sess.Rcpt("Me@EXAMPLE.com", nil))
}

func TestSessionRejectsMalformedData(t *testing.T) {
	ing, _ := newTestIngestor(t)

	sess, err := (&smtpBackend{ingestor: ing}).NewSession(nil)
	require.NoError(t, err)

	err = sess.Data(strings.NewReader("Subject: s\r\n\r\nno sender\r\n"))
	var smtpErr *smtp.SMTPError
	require.ErrorAs(t, err, &smtpErr)
	assert.Equal(t, 554, smtpErr.Code)
}
