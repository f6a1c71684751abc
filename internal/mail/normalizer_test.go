package mail

import (
	"errors"
	"strings"
	"testing"
)

func TestRun_Normalize_SignatureTruncation(t *testing.T) {
	run := NewRun(nil)

	raw := &RawEmail{
		Subject:   "Report review",
		From:      []string{"John Doe <john@example.com>"},
		MessageID: "MSG-SIG",
		Body:      "Hello team. Please review the attached report. Thanks, John",
	}

	email, err := run.Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	want := "Hello team. Please review the attached report."
	if email.Body != want {
		t.Errorf("Body = %q, want %q", email.Body, want)
	}
}

func TestRun_Normalize_Dedup(t *testing.T) {
	run := NewRun(nil)

	first := &RawEmail{MessageID: "MSG1", Body: "First occurrence."}
	second := &RawEmail{MessageID: "MSG1", Body: "Second occurrence, different text."}

	if _, err := run.Normalize(first); err != nil {
		t.Fatalf("first Normalize() error = %v", err)
	}

	_, err := run.Normalize(second)
	var drop *DropError
	if !errors.As(err, &drop) {
		t.Fatalf("second Normalize() error = %v, want *DropError", err)
	}
	if drop.Reason != DropDuplicate {
		t.Errorf("drop reason = %q, want %q", drop.Reason, DropDuplicate)
	}
}

func TestRun_Normalize_ExcludedSubject(t *testing.T) {
	run := NewRun([]string{"[SPAM]", "Newsletter"})

	tests := []struct {
		subject string
		dropped bool
	}{
		{"[SPAM] Win big now", true},
		{"Newsletter issue 42", true},
		{"Weekly status", false},
	}

	for _, tt := range tests {
		raw := &RawEmail{Subject: tt.subject, MessageID: "id-" + tt.subject, Body: "Some content here."}
		_, err := run.Normalize(raw)
		if tt.dropped {
			var drop *DropError
			if !errors.As(err, &drop) || drop.Reason != DropExcludedSubject {
				t.Errorf("subject %q: err = %v, want excluded_subject drop", tt.subject, err)
			}
		} else if err != nil {
			t.Errorf("subject %q: unexpected error %v", tt.subject, err)
		}
	}
}

func TestRun_Normalize_EmptyBodyDropped(t *testing.T) {
	run := NewRun(nil)

	for _, body := range []string{"", "   \n\t  ", "<div><p></p></div>"} {
		_, err := run.Normalize(&RawEmail{MessageID: "m", Body: body})
		var drop *DropError
		if !errors.As(err, &drop) || drop.Reason != DropEmptyBody {
			t.Errorf("body %q: err = %v, want empty_body drop", body, err)
		}
	}
}

func TestRun_Normalize_DerivesThreadID(t *testing.T) {
	run := NewRun(nil)

	a, err := run.Normalize(&RawEmail{Subject: "VV transport plan", MessageID: "a", Body: "Plan attached here."})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	b, err := run.Normalize(&RawEmail{Subject: "Re: VV transport plan", MessageID: "b", Body: "Looks good to me!"})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if a.ThreadID == "" || a.ThreadID != b.ThreadID {
		t.Errorf("thread IDs differ: %q vs %q", a.ThreadID, b.ThreadID)
	}

	c, err := run.Normalize(&RawEmail{Subject: "Other topic", MessageID: "c", ThreadID: "explicit", Body: "Hello world."})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if c.ThreadID != "explicit" {
		t.Errorf("explicit thread ID overwritten: %q", c.ThreadID)
	}
}

func TestCleanBody_QuotedHistory(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "original message banner",
			body: "Agreed, see below.\n-----Original Message-----\nFrom: a@b.c\nOld content",
			want: "Agreed, see below.",
		},
		{
			name: "header block",
			body: "Please confirm.\nFrom: Jane <jane@example.com>\nSent: Monday\nold text",
			want: "Please confirm.",
		},
		{
			name: "wrote attribution",
			body: "Sounds good!\nOn Mon, Jan 4, 2021 Alex Martin wrote:\n> earlier text",
			want: "Sounds good!",
		},
		{
			name: "leading quote marker",
			body: "New reply here.\n> quoted line one\n> quoted line two",
			want: "New reply here.",
		},
		{
			name: "earliest marker wins",
			body: "Top.\n> quote first\n-----Original Message-----\nrest",
			want: "Top.",
		},
		{
			name: "no marker",
			body: "Just a plain body with nothing quoted.",
			want: "Just a plain body with nothing quoted.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanBody(tt.body); got != tt.want {
				t.Errorf("CleanBody() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCleanBody_HTML(t *testing.T) {
	body := "<html><head><style>p{color:red}</style></head>" +
		"<body><p>First paragraph.</p><p>Second paragraph.</p></body></html>"

	got := CleanBody(body)
	want := "First paragraph. Second paragraph."
	if got != want {
		t.Errorf("CleanBody() = %q, want %q", got, want)
	}
	if strings.Contains(got, "color") {
		t.Error("style content leaked into cleaned body")
	}
}

func TestCollapseWhitespace_Idempotent(t *testing.T) {
	in := "  a\t\tb\n\nc   d  "
	once := CollapseWhitespace(in)
	twice := CollapseWhitespace(once)
	if once != "a b c d" {
		t.Errorf("CollapseWhitespace() = %q", once)
	}
	if once != twice {
		t.Errorf("collapse not idempotent: %q vs %q", once, twice)
	}
}

func TestStandardizeDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Mon, 04 Jan 2021 09:30:00 +0100", "2021-01-04T08:30:00Z"},
		{"2021-01-31T10:00:00+09:00", "2021-01-31T01:00:00Z"},
		{"2021-01-31", "2021-01-31T00:00:00Z"},
		{"not a date", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := StandardizeDate(tt.in); got != tt.want {
			t.Errorf("StandardizeDate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeSubject(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Re: Re: Budget", "budget"},
		{"FW: Fwd: Budget", "budget"},
		{"Budget", "budget"},
		{"  RE: trailing  ", "trailing"},
	}
	for _, tt := range tests {
		if got := NormalizeSubject(tt.in); got != tt.want {
			t.Errorf("NormalizeSubject(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
