package ingest

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

// wordDecoder decodes RFC 2047 header words in any charset the WHATWG index knows
var wordDecoder = &mime.WordDecoder{CharsetReader: charsetReader}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, err
	}
	return enc.NewDecoder().Reader(input), nil
}

// decodeHeader decodes an encoded header value, returning it unchanged on failure
func decodeHeader(value string) string {
	decoded, err := wordDecoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

// extractText returns the text/plain content of a message, descending into multipart bodies
func extractText(header textproto.MIMEHeader, body io.Reader) string {
	mediaType, params, err := mime.ParseMediaType(header.Get("Content-Type"))
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary, ok := params["boundary"]
		if !ok {
			return ""
		}
		var text bytes.Buffer
		mr := multipart.NewReader(body, boundary)
		for {
			part, err := mr.NextPart()
			if err != nil {
				break
			}
			if t := extractText(part.Header, part); t != "" {
				text.WriteString(t)
				text.WriteString("\n")
			}
		}
		return text.String()
	}

	if mediaType != "text/plain" {
		return ""
	}

	data, err := io.ReadAll(transferDecoder(header.Get("Content-Transfer-Encoding"), body))
	if err != nil && len(data) == 0 {
		return ""
	}
	return decodeCharset(params["charset"], data)
}

func transferDecoder(encoding string, body io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		return quotedprintable.NewReader(body)
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, body)
	default:
		return body
	}
}

func decodeCharset(charset string, data []byte) string {
	if charset == "" || strings.EqualFold(charset, "utf-8") || strings.EqualFold(charset, "us-ascii") {
		return string(data)
	}
	r, err := charsetReader(charset, bytes.NewReader(data))
	if err != nil {
		return string(data)
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return string(data)
	}
	return string(decoded)
}

// senderAddress picks the From header address, falling back to the envelope sender
func senderAddress(header mail.Header, envelopeFrom string) string {
	parser := &mail.AddressParser{WordDecoder: wordDecoder}
	if addr, err := parser.Parse(header.Get("From")); err == nil {
		return strings.ToLower(addr.Address)
	}
	if addr, err := parser.Parse(envelopeFrom); err == nil {
		return strings.ToLower(addr.Address)
	}
	return strings.ToLower(strings.Trim(strings.TrimSpace(envelopeFrom), "<>"))
}
