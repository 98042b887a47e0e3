// Package fallback renders deterministic canned answers from an embedded
// template table. It performs no I/O after construction.
package fallback

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"text/template"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var defaultCorpus []byte

// Category names a query class.
type Category string

const (
	Definition Category = "definition"
	HowTo      Category = "how_to"
	Comparison Category = "comparison"
	Location   Category = "location"
	General    Category = "general"
)

// defaultSubject is used when nothing meaningful is left of the query.
const defaultSubject = "This Topic"

type corpusFile struct {
	Subjects   []subjectEntry  `yaml:"subjects"`
	Categories []categoryEntry `yaml:"categories"`
	Email      []emailEntry    `yaml:"email"`
}

type subjectEntry struct {
	Name  string   `yaml:"name"`
	Match []string `yaml:"match"`
}

type categoryEntry struct {
	Name      string            `yaml:"name"`
	Keywords  []string          `yaml:"keywords"`
	Template  string            `yaml:"template"`
	Overrides map[string]string `yaml:"overrides"`
}

type emailEntry struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Template string   `yaml:"template"`
}

type category struct {
	name      Category
	keywords  []string
	tmpl      *template.Template
	overrides map[string]*template.Template
}

type emailTemplate struct {
	name     string
	keywords []string
	tmpl     *template.Template
}

// Responder selects and renders fallback templates.
type Responder struct {
	subjects   []subjectEntry
	categories []category
	email      []emailTemplate
}

// New loads the embedded template table.
func New() (*Responder, error) {
	return NewFromYAML(defaultCorpus)
}

// MustNew is New for package-level wiring; the embedded table is fixed at build time.
func MustNew() *Responder {
	r, err := New()
	if err != nil {
		panic(err)
	}
	return r
}

// NewFromYAML parses a template table. The last category and the last email
// entry are catch-alls and must have no keywords.
func NewFromYAML(data []byte) (*Responder, error) {
	var f corpusFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	if len(f.Categories) == 0 || len(f.Categories[len(f.Categories)-1].Keywords) != 0 {
		return nil, fmt.Errorf("templates: last category must be a keyword-less catch-all")
	}
	if len(f.Email) == 0 || len(f.Email[len(f.Email)-1].Keywords) != 0 {
		return nil, fmt.Errorf("templates: last email entry must be a keyword-less catch-all")
	}

	r := &Responder{subjects: f.Subjects}
	for _, c := range f.Categories {
		t, err := template.New(c.Name).Parse(c.Template)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", c.Name, err)
		}
		cat := category{
			name:      Category(c.Name),
			keywords:  c.Keywords,
			tmpl:      t,
			overrides: make(map[string]*template.Template, len(c.Overrides)),
		}
		for subject, body := range c.Overrides {
			ot, err := template.New(c.Name + "/" + subject).Parse(body)
			if err != nil {
				return nil, fmt.Errorf("template %s/%s: %w", c.Name, subject, err)
			}
			cat.overrides[subject] = ot
		}
		r.categories = append(r.categories, cat)
	}
	for _, e := range f.Email {
		t, err := template.New("email/" + e.Name).Parse(e.Template)
		if err != nil {
			return nil, fmt.Errorf("email template %s: %w", e.Name, err)
		}
		r.email = append(r.email, emailTemplate{name: e.Name, keywords: e.Keywords, tmpl: t})
	}
	return r, nil
}

// Classify returns the first category whose keyword occurs in the query.
func (r *Responder) Classify(query string) Category {
	lower := strings.ToLower(query)
	for _, c := range r.categories {
		if len(c.keywords) == 0 {
			return c.name
		}
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				return c.name
			}
		}
	}
	return General
}

var interrogative = regexp.MustCompile(`^(what is|what are|how to|how do|where is|when|why|explain|define|tell me about|what do you know about)`)

// Subject derives the topic of a query: a known subject from the dictionary,
// or the first three words longer than two characters, title-cased.
func (r *Responder) Subject(query string) string {
	cleaned := strings.ToLower(strings.TrimSpace(query))
	cleaned = interrogative.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(strings.ReplaceAll(cleaned, "?", ""))

	tokens := tokenSet(cleaned)
	for _, s := range r.subjects {
		if matchesAny(cleaned, tokens, s.Match) {
			return s.Name
		}
	}

	var words []string
	for _, w := range strings.Fields(cleaned) {
		if utf8.RuneCountInString(w) > 2 {
			words = append(words, titleCase(w))
		}
		if len(words) == 3 {
			break
		}
	}
	if len(words) == 0 {
		return defaultSubject
	}
	return strings.Join(words, " ")
}

// Respond renders the fallback answer for query. The result always starts
// with a level-1 heading containing the subject.
func (r *Responder) Respond(query string) string {
	name := r.Classify(query)
	subject := r.Subject(query)

	var cat category
	for _, c := range r.categories {
		if c.name == name {
			cat = c
			break
		}
	}
	t := cat.tmpl
	if o, ok := cat.overrides[subject]; ok {
		t = o
	}
	return render(t, map[string]any{
		"Subject":      subject,
		"SubjectLower": strings.ToLower(subject),
		"Query":        query,
	}, "# "+subject)
}

// ClassifyTask picks the email template name for an agent task.
func (r *Responder) ClassifyTask(task string) string {
	lower := strings.ToLower(task)
	tokens := tokenSet(lower)
	for _, e := range r.email {
		if len(e.keywords) == 0 || matchesAny(lower, tokens, e.keywords) {
			return e.name
		}
	}
	return "general"
}

// RespondEmail renders the email-agent fallback for task.
func (r *Responder) RespondEmail(emails []string, task string) string {
	name := r.ClassifyTask(task)
	t := r.email[len(r.email)-1].tmpl
	for _, e := range r.email {
		if e.name == name {
			t = e.tmpl
			break
		}
	}
	return render(t, map[string]any{
		"EmailCount": len(emails),
		"Task":       task,
	}, "# Email Analysis Report")
}

func render(t *template.Template, data map[string]any, fallback string) string {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil || b.Len() == 0 {
		return fallback
	}
	return b.String()
}

// matchesAny reports whether any keyword appears in text. Multi-word
// keywords match as substrings; single words must match a whole token.
func matchesAny(text string, tokens map[string]bool, keywords []string) bool {
	for _, kw := range keywords {
		if strings.ContainsAny(kw, " -") {
			if strings.Contains(text, kw) {
				return true
			}
			continue
		}
		if tokens[kw] {
			return true
		}
	}
	return false
}

func tokenSet(s string) map[string]bool {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}

func titleCase(w string) string {
	r, size := utf8.DecodeRuneInString(w)
	return string(unicode.ToUpper(r)) + w[size:]
}
