package crm

import (
	"fmt"
	"strings"
	"sync"

	"github.com/osteele/liquid"
)

// Renderer personalizes message bodies with Liquid templates. Parsed
// templates are cached by body text since campaign sends render the
// same template for every recipient.
type Renderer struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template
}

// NewRenderer creates a renderer with the messaging filters registered
func NewRenderer() *Renderer {
	r := &Renderer{engine: liquid.NewEngine()}
	r.registerFilters()
	return r
}

func (r *Renderer) registerFilters() {
	// {{ first_name | default: "there" }}
	r.engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		s := fmt.Sprintf("%v", value)
		if s == "" || s == "<nil>" {
			return defaultVal
		}
		return value
	})

	// {{ first_name | titlecase }}
	r.engine.RegisterFilter("titlecase", func(value interface{}) string {
		s := strings.TrimSpace(fmt.Sprintf("%v", value))
		if s == "" {
			return s
		}
		words := strings.Fields(strings.ToLower(s))
		for i, w := range words {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
		return strings.Join(words, " ")
	})
}

// Render fills a message body template from a contact's profile.
func (r *Renderer) Render(body string, contact *Contact) (string, error) {
	tpl, err := r.compile(body)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}

	out, err := tpl.RenderString(bindings(contact))
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return out, nil
}

// Validate parses a template without rendering, for draft-time checks.
func (r *Renderer) Validate(body string) error {
	_, err := r.compile(body)
	return err
}

func (r *Renderer) compile(body string) (*liquid.Template, error) {
	if cached, ok := r.cache.Load(body); ok {
		return cached.(*liquid.Template), nil
	}
	tpl, err := r.engine.ParseString(body)
	if err != nil {
		return nil, err
	}
	r.cache.Store(body, tpl)
	return tpl, nil
}

func bindings(contact *Contact) map[string]interface{} {
	b := map[string]interface{}{
		"first_name": contact.FirstName,
		"last_name":  contact.LastName,
		"email":      contact.Email,
		"phone":      contact.Phone,
	}
	for k, v := range contact.Attributes {
		if _, reserved := b[k]; !reserved {
			b[k] = v
		}
	}
	return b
}
