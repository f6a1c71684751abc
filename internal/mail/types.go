package mail

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Attachment describes a single email attachment. The ingestion format may
// carry attachments either as bare filenames or as metadata objects.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	SizeBytes   int    `json:"size_bytes,omitempty"`
}

// RawEmail is one record of the line-delimited JSON ingestion format.
// It is created once by ingestion and immutable thereafter.
type RawEmail struct {
	Subject      string
	From         []string
	To           []string
	Cc           []string
	Date         string // raw date string, any format
	MessageID    string
	InReplyTo    string
	References   []string
	ThreadID     string
	Body         string // possibly HTML
	Attachments  []Attachment
	NameEmailMap map[string]string
}

// NormalizedEmail is a RawEmail whose body has been reduced to cleaned plain
// text and whose date has been standardized to ISO-8601 UTC. An empty Date
// means the raw date string was unparseable.
type NormalizedEmail struct {
	Subject      string
	From         []string
	To           []string
	Cc           []string
	Date         string
	MessageID    string
	InReplyTo    string
	References   []string
	ThreadID     string
	Body         string
	Attachments  []Attachment
	NameEmailMap map[string]string
}

// Sender returns the first sender address, or "" when none is present.
func (e *NormalizedEmail) Sender() string {
	if len(e.From) == 0 {
		return ""
	}
	return e.From[0]
}

// Recipients returns the joined recipient list for metadata snapshots.
func (e *NormalizedEmail) Recipients() string {
	return strings.Join(e.To, ", ")
}

// AttachmentNames returns the attachment filenames, skipping unnamed parts.
func (e *NormalizedEmail) AttachmentNames() []string {
	if len(e.Attachments) == 0 {
		return nil
	}
	names := make([]string, 0, len(e.Attachments))
	for _, a := range e.Attachments {
		if a.Filename != "" {
			names = append(names, a.Filename)
		}
	}
	return names
}

// UnmarshalJSON accepts both key styles seen in the archive exports:
// "from"/"to"/"date" (strings) and "from_list"/"to_list"/"date_iso"
// (lists / pre-standardized). Attachments may be filenames or objects.
func (e *RawEmail) UnmarshalJSON(data []byte) error {
	var aux struct {
		Subject      string            `json:"subject"`
		From         json.RawMessage   `json:"from"`
		FromList     []string          `json:"from_list"`
		To           json.RawMessage   `json:"to"`
		ToList       []string          `json:"to_list"`
		Cc           json.RawMessage   `json:"cc"`
		CcList       []string          `json:"cc_list"`
		Date         string            `json:"date"`
		DateISO      string            `json:"date_iso"`
		MessageID    string            `json:"message_id"`
		InReplyTo    string            `json:"in_reply_to"`
		References   json.RawMessage   `json:"references"`
		ThreadID     string            `json:"thread_id"`
		Body         string            `json:"body"`
		Attachments  json.RawMessage   `json:"attachments"`
		NameEmailMap map[string]string `json:"name_email_map"`
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	e.Subject = aux.Subject
	e.From = firstNonEmpty(aux.FromList, parseAddressValue(aux.From, false))
	e.To = firstNonEmpty(aux.ToList, parseAddressValue(aux.To, true))
	e.Cc = firstNonEmpty(aux.CcList, parseAddressValue(aux.Cc, true))
	e.Date = aux.Date
	if aux.DateISO != "" {
		e.Date = aux.DateISO
	}
	e.MessageID = aux.MessageID
	e.InReplyTo = aux.InReplyTo
	e.References = parseReferences(aux.References)
	e.ThreadID = aux.ThreadID
	e.Body = aux.Body
	e.Attachments = parseAttachments(aux.Attachments)
	e.NameEmailMap = aux.NameEmailMap
	return nil
}

func firstNonEmpty(list, fallback []string) []string {
	if len(list) > 0 {
		return list
	}
	return fallback
}

// parseAddressValue handles a JSON value that is either a string or a list
// of strings. Recipient strings are comma-separated; sender strings are a
// single display address and are kept whole.
func parseAddressValue(raw json.RawMessage, split bool) []string {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return nil
	}
	if !split {
		return []string{s}
	}

	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseReferences(raw json.RawMessage) []string {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return strings.Fields(s)
}

func parseAttachments(raw json.RawMessage) []Attachment {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	var objs []Attachment
	if err := json.Unmarshal(raw, &objs); err == nil {
		return objs
	}

	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil
	}
	out := make([]Attachment, 0, len(names))
	for _, n := range names {
		if n != "" {
			out = append(out, Attachment{Filename: n})
		}
	}
	return out
}
