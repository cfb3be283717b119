// Package ordernote separates human-written order notes from system notes
// and caches the per-order note lists shown in the admin order screens.
package ordernote

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/cel-go/cel"

	svcerrors "github.com/hrygo/ordernotes/server/internal/errors"
	"github.com/hrygo/ordernotes/store"
)

// shortNoteRunes is the length below which a note consisting of a bare
// status word is treated as a status change entry.
const shortNoteRunes = 10

// systemNotePatterns match notes produced by order lifecycle events.
// Matching is case-insensitive and unanchored.
var systemNotePatterns = []string{
	// Status changes.
	`order status changed`,
	`status changed from .+ to`,
	`changed (the )?order status`,
	`статус замовлення змінено`,
	`змінено статус`,
	`статус змінено з`,

	// Automated emails.
	`(email|e-mail) (notification )?(was )?sent`,
	`(invoice|receipt|order details) (was )?(sent|emailed)`,
	`notification sent to`,
	`(лист|email|повідомлення) (було )?(надіслано|відправлено)`,

	// Payment lifecycle.
	`payment (was )?(complete|completed|received|authori[sz]ed)`,
	`(complete|received|authori[sz]ed) payment`,
	`(оплату|оплата|платіж) (було )?(завершено|отримано|підтверджено|авторизовано)`,

	// Shipping and tracking.
	`tracking (number|code|id|link)`,
	`(order|item|items|package|parcel) (has been |was )?shipped`,
	`shipped (via|with|by)`,
	`номер відстеження`,
	`трек-номер`,
	`(замовлення|посилку|посилка) (було )?відправлено`,

	// Refunds.
	`refunded \S*\d`,
	`refund (of|for|issued|processed|completed)`,
	`повернення коштів`,
	`кошти (було )?повернено`,

	// Generic system entries.
	`automatically generated`,
	`auto-generated`,
	`system:`,
	`автоматично (створено|згенеровано)`,
	`система:`,
}

// statusKeywords are bare order status names. They are compared against the
// lowercased note, so they must be lowercase.
var statusKeywords = []string{
	"pending", "processing", "on-hold", "completed", "cancelled", "refunded", "failed",
	"очікує", "обробляється", "в обробці", "на утриманні", "виконано", "завершено",
	"скасовано", "повернено", "невдало", "не вдалося",
}

// Classifier decides whether an order note was written by a person.
// It holds only immutable tables built by NewClassifier and is safe for
// concurrent use.
type Classifier struct {
	patterns []*regexp.Regexp
	keywords []string
	rules    []cel.Program
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*classifierOptions)

type classifierOptions struct {
	rules []string
}

// WithRules adds CEL expressions over `content` (string) and `customer` (bool).
// A note for which any expression evaluates to true is treated as a system note.
func WithRules(exprs ...string) ClassifierOption {
	return func(o *classifierOptions) {
		o.rules = append(o.rules, exprs...)
	}
}

// NewClassifier compiles the pattern table, keyword list and extra rules once.
func NewClassifier(opts ...ClassifierOption) (*Classifier, error) {
	var o classifierOptions
	for _, opt := range opts {
		opt(&o)
	}

	c := &Classifier{
		patterns: make([]*regexp.Regexp, 0, len(systemNotePatterns)),
		keywords: append([]string(nil), statusKeywords...),
	}
	for _, p := range systemNotePatterns {
		c.patterns = append(c.patterns, regexp.MustCompile(`(?i)`+p))
	}

	if len(o.rules) > 0 {
		rules, err := compileRules(o.rules)
		if err != nil {
			return nil, err
		}
		c.rules = rules
	}
	return c, nil
}

// MustNewClassifier is NewClassifier without extra rules, for callers that cannot fail.
func MustNewClassifier() *Classifier {
	c, err := NewClassifier()
	if err != nil {
		panic(err)
	}
	return c
}

func compileRules(exprs []string) ([]cel.Program, error) {
	env, err := cel.NewEnv(
		cel.Variable("content", cel.StringType),
		cel.Variable("customer", cel.BoolType),
	)
	if err != nil {
		return nil, svcerrors.InvalidArgument("failed to create rule environment: %v", err)
	}

	programs := make([]cel.Program, 0, len(exprs))
	for _, expr := range exprs {
		ast, iss := env.Compile(expr)
		if iss != nil && iss.Err() != nil {
			return nil, svcerrors.InvalidArgument("invalid classifier rule %q: %v", expr, iss.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, svcerrors.InvalidArgument("classifier rule %q must evaluate to bool, got %v", expr, ast.OutputType())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, svcerrors.InvalidArgument("invalid classifier rule %q: %v", expr, err)
		}
		programs = append(programs, prg)
	}
	return programs, nil
}

// Filter returns the human-written notes in their original order.
// Empty notes are dropped. The input is not modified and the result never
// shares its backing array with it.
func (c *Classifier) Filter(notes []*store.OrderNote) []*store.OrderNote {
	filtered := make([]*store.OrderNote, 0, len(notes))
	for _, note := range notes {
		if c.IsHumanNote(note) {
			filtered = append(filtered, note)
		}
	}
	return filtered
}

// IsHumanNote reports whether Filter keeps note: it is non-nil, not blank
// and not system generated.
func (c *Classifier) IsHumanNote(note *store.OrderNote) bool {
	return note != nil && strings.TrimSpace(note.Content) != "" && !c.IsSystemNote(note)
}

// IsSystemNote reports whether note looks generated by an order lifecycle event.
// Nil and empty notes are not system notes; Filter drops them separately.
func (c *Classifier) IsSystemNote(note *store.OrderNote) bool {
	if note == nil {
		return false
	}
	content := strings.TrimSpace(note.Content)
	if content == "" {
		return false
	}

	for _, re := range c.patterns {
		if re.MatchString(content) {
			return true
		}
	}

	if utf8.RuneCountInString(content) < shortNoteRunes {
		lower := strings.ToLower(content)
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}

	return c.matchesRule(content, note.IsCustomerNote)
}

func (c *Classifier) matchesRule(content string, customer bool) bool {
	if len(c.rules) == 0 {
		return false
	}
	vars := map[string]any{
		"content":  content,
		"customer": customer,
	}
	for _, prg := range c.rules {
		out, _, err := prg.Eval(vars)
		if err != nil {
			continue
		}
		if matched, ok := out.Value().(bool); ok && matched {
			return true
		}
	}
	return false
}
