// Package template renders email content with the Liquid template language.
// Subject lines and bodies are personalized per recipient from the contact
// row and campaign metadata.
package template

import (
	"fmt"
	"html"
	"net/url"
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"github.com/ignite/pulsemail/internal/domain"
)

// Engine wraps a Liquid engine with custom filters and a compiled-template
// cache keyed by template id. Safe for concurrent use.
type Engine struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template
}

// NewEngine creates a renderer with the email filter set registered.
func NewEngine() *Engine {
	e := &Engine{engine: liquid.NewEngine()}
	e.registerFilters()
	return e
}

func (e *Engine) registerFilters() {
	// {{ first_name | default: "Friend" }}
	e.engine.RegisterFilter("default", func(value interface{}, fallback string) interface{} {
		if value == nil {
			return fallback
		}
		if s := fmt.Sprintf("%v", value); s == "" || s == "<nil>" {
			return fallback
		}
		return value
	})

	// {{ name | capitalize }}
	e.engine.RegisterFilter("capitalize", func(s string) string {
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
	})

	// {{ bio | truncate: 50 }}
	e.engine.RegisterFilter("truncate", func(s string, length int) string {
		if len(s) <= length {
			return s
		}
		if length <= 3 {
			return s[:length]
		}
		return s[:length-3] + "..."
	})

	// {{ email | urlencode }}
	e.engine.RegisterFilter("urlencode", url.QueryEscape)

	// {{ user_input | escape }}
	e.engine.RegisterFilter("escape", html.EscapeString)

	// {{ email | email_domain }}
	e.engine.RegisterFilter("email_domain", func(email string) string {
		if _, domainPart, ok := strings.Cut(email, "@"); ok {
			return domainPart
		}
		return ""
	})
}

// Validate compiles a template string and reports syntax errors.
func (e *Engine) Validate(src string) error {
	_, err := e.engine.ParseString(src)
	return err
}

// Render compiles and renders a template. A non-empty cacheKey caches the
// compiled form; pass the template row's id plus a revision marker such as
// updated_at so edits are not served stale.
func (e *Engine) Render(cacheKey, src string, ctx map[string]interface{}) (string, error) {
	if cacheKey != "" {
		if cached, ok := e.cache.Load(cacheKey); ok {
			return cached.(*liquid.Template).RenderString(ctx)
		}
	}

	tpl, err := e.engine.ParseString(src)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}
	if cacheKey != "" {
		e.cache.Store(cacheKey, tpl)
	}

	out, err := tpl.RenderString(ctx)
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return out, nil
}

// RecipientContext builds the render context for one recipient of a campaign.
// Custom data fields are exposed at the top level but never shadow the
// built-in contact fields.
func RecipientContext(c *domain.Contact, camp *domain.Campaign) map[string]interface{} {
	ctx := make(map[string]interface{}, len(c.CustomData)+8)
	for k, v := range c.CustomData {
		ctx[k] = v
	}
	ctx["email"] = c.Email
	ctx["first_name"] = c.FirstName
	ctx["last_name"] = c.LastName
	ctx["company"] = c.Company
	ctx["tags"] = c.Tags
	if camp != nil {
		ctx["campaign_name"] = camp.Name
		ctx["from_name"] = camp.FromName
	}
	return ctx
}
