package template

import (
	"strings"
	"testing"

	"github.com/ignite/pulsemail/internal/domain"
)

func TestRenderPersonalizes(t *testing.T) {
	e := NewEngine()
	out, err := e.Render("", "Hi {{ first_name | default: \"Friend\" }}!", map[string]interface{}{
		"first_name": "Jane",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != "Hi Jane!" {
		t.Fatalf("out = %q", out)
	}
}

func TestRenderDefaultFilter(t *testing.T) {
	e := NewEngine()
	for _, ctx := range []map[string]interface{}{
		nil,
		{"first_name": ""},
	} {
		out, err := e.Render("", "Hi {{ first_name | default: \"Friend\" }}!", ctx)
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		if out != "Hi Friend!" {
			t.Fatalf("out = %q", out)
		}
	}
}

func TestRenderCachesCompiledTemplate(t *testing.T) {
	e := NewEngine()
	src := "Hello {{ email }}"
	if _, err := e.Render("tpl-1@v1", src, map[string]interface{}{"email": "a@b.com"}); err != nil {
		t.Fatalf("first render: %v", err)
	}
	// Second render with the same key must use the cached compilation even
	// if the source string changed; the key carries the revision.
	out, err := e.Render("tpl-1@v1", "different {{ body }}", map[string]interface{}{"email": "c@d.com"})
	if err != nil {
		t.Fatalf("cached render: %v", err)
	}
	if out != "Hello c@d.com" {
		t.Fatalf("out = %q, cache not used", out)
	}
}

func TestValidateRejectsBadSyntax(t *testing.T) {
	e := NewEngine()
	if err := e.Validate("{% if x %} unterminated"); err == nil {
		t.Fatal("bad template accepted")
	}
	if err := e.Validate("fine {{ x }}"); err != nil {
		t.Fatalf("good template rejected: %v", err)
	}
}

func TestEmailDomainFilter(t *testing.T) {
	e := NewEngine()
	out, err := e.Render("", "{{ email | email_domain }}", map[string]interface{}{
		"email": "jane@example.com",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != "example.com" {
		t.Fatalf("out = %q", out)
	}
}

func TestRecipientContext(t *testing.T) {
	c := &domain.Contact{
		Email:     "jane@example.com",
		FirstName: "Jane",
		CustomData: map[string]any{
			"plan":  "pro",
			"email": "shadow@evil.com", // must not shadow the real field
		},
	}
	camp := &domain.Campaign{Name: "Launch", FromName: "Acme"}

	ctx := RecipientContext(c, camp)
	if ctx["email"] != "jane@example.com" {
		t.Fatalf("email = %v", ctx["email"])
	}
	if ctx["plan"] != "pro" {
		t.Fatalf("custom data missing: %v", ctx["plan"])
	}
	if ctx["campaign_name"] != "Launch" {
		t.Fatalf("campaign_name = %v", ctx["campaign_name"])
	}
}

func TestRenderLoop(t *testing.T) {
	e := NewEngine()
	out, err := e.Render("", "{% for t in tags %}[{{ t }}]{% endfor %}", map[string]interface{}{
		"tags": []string{"vip", "lead"},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "[vip]") || !strings.Contains(out, "[lead]") {
		t.Fatalf("out = %q", out)
	}
}
