// Package template renders notification text with text/template.
package template

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"text/template"

	"github.com/felixgeelhaar/slotwise/internal/notifications/domain"
)

// DefaultVersion is recorded in the delivery log for built-in templates.
const DefaultVersion = "1"

var builtin = map[domain.Type]string{
	domain.TypeSlotReserved:        `Candidate {{.candidate_id}} reserved slot {{.subject_id}}{{with .start}} at {{.}}{{end}}. Please approve or release it.`,
	domain.TypeSlotApproved:        `Your slot{{with .start}} at {{.}}{{end}} is booked.{{with .location}} Location: {{.}}.{{end}}`,
	domain.TypeSlotCancelled:       `Your slot{{with .start}} at {{.}}{{end}} was cancelled.`,
	domain.TypeAssignmentOffered:   `You are invited to an interview{{with .start}} at {{.}}{{end}}. Please confirm, decline or ask for another time.`,
	domain.TypeAssignmentConfirmed: `Candidate {{.candidate_id}} confirmed the slot{{with .start}} at {{.}}{{end}}.`,
	domain.TypeAssignmentRejected:  `Candidate {{.candidate_id}} declined the slot{{with .start}} at {{.}}{{end}}.`,
	domain.TypeAssignmentCancelled: `Your interview{{with .start}} at {{.}}{{end}} was cancelled.`,
	domain.TypeRescheduleRequested: `Candidate {{.candidate_id}} asked to move to {{.requested_start}}.{{with .comment}} Comment: {{.}}{{end}}`,
	domain.TypeRescheduleApproved:  `Your interview was moved to {{.start}}.`,
	domain.TypeRescheduleDeclined:  `The requested time could not be arranged. Your original slot{{with .start}} at {{.}}{{end}} is still offered.`,
	domain.TypeReminder:            `Reminder: your interview starts{{with .start}} at {{.}}{{end}}.`,
}

// TextRenderer implements domain.Renderer with per-type templates. Locale
// specific templates are looked up as "<key>.<locale>" before falling back to
// the plain key.
type TextRenderer struct {
	mu        sync.RWMutex
	templates map[string]*template.Template
	versions  map[string]string
}

// NewTextRenderer parses the built-in templates.
func NewTextRenderer() (*TextRenderer, error) {
	r := &TextRenderer{
		templates: make(map[string]*template.Template, len(builtin)),
		versions:  make(map[string]string, len(builtin)),
	}
	for typ, text := range builtin {
		if err := r.Register(string(typ), DefaultVersion, text); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MustNewTextRenderer is NewTextRenderer for wiring code.
func MustNewTextRenderer() *TextRenderer {
	r, err := NewTextRenderer()
	if err != nil {
		panic(err)
	}
	return r
}

// Register adds or replaces the template for key.
func (r *TextRenderer) Register(key, version, text string) error {
	tmpl, err := template.New(key).Parse(text)
	if err != nil {
		return fmt.Errorf("failed to parse template %q: %w", key, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[key] = tmpl
	r.versions[key] = version
	return nil
}

// Render executes the template for req.Key.
func (r *TextRenderer) Render(_ context.Context, req domain.RenderRequest) (domain.Rendered, error) {
	key, tmpl, version := r.lookup(req.Key, req.Locale)
	if tmpl == nil {
		return domain.Rendered{}, fmt.Errorf("%w: %s", domain.ErrTemplateNotFound, req.Key)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, req.Context); err != nil {
		return domain.Rendered{}, fmt.Errorf("failed to render %s: %w", key, err)
	}
	return domain.Rendered{
		Text:    strings.TrimSpace(buf.String()),
		Key:     key,
		Version: version,
	}, nil
}

func (r *TextRenderer) lookup(key, locale string) (string, *template.Template, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if locale != "" {
		localized := key + "." + locale
		if t, ok := r.templates[localized]; ok {
			return localized, t, r.versions[localized]
		}
	}
	return key, r.templates[key], r.versions[key]
}
