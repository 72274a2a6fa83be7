// Package prefilter implements the cheap rule-based triage (C3) that
// decides, before any expensive reasoning runs, whether an incoming event
// should be skipped, lightly processed, or fully processed.
package prefilter

import "strings"

// Verdict is the triage outcome.
type Verdict string

const (
	VerdictSkip         Verdict = "skip"
	VerdictProcessLight Verdict = "process_light"
	VerdictProcessFull  Verdict = "process_full"
)

// Result carries the verdict plus the evidence behind it.
type Result struct {
	Verdict         Verdict
	Reason          string
	Confidence      float64
	PatternsMatched []string
}

// defaultSkipSenderPatterns mirror common marketing/automated sender
// address shapes.
var defaultSkipSenderPatterns = []string{
	"noreply@", "no-reply@", "donotreply@", "newsletter@", "marketing@",
	"notifications@", "notification@", "updates@", "digest@", "promo@",
	"promotions@", "unsubscribe@", "mailer@", "bounce@", "campaign@",
}

var defaultTransactionalSenderPatterns = []string{
	"billing@", "invoice@", "receipt@", "order@", "orders@", "payment@",
	"payments@", "statement@", "confirm@", "confirmation@", "security@",
	"account@", "accounts@",
}

var defaultSkipSubjectPatterns = []string{
	"unsubscribe", "newsletter", "weekly digest", "daily digest",
	"% off", "sale ends", "limited time offer", "don't miss out",
	"flash sale", "special offer", "exclusive deal",
}

var defaultTransactionalSubjectPatterns = []string{
	"invoice", "receipt", "payment confirmation", "order confirmation",
	"your statement", "billing statement", "account statement",
	"security alert", "password reset", "verify your",
}

// defaultProtectedSenderDomains never get skipped, regardless of how many
// marketing patterns otherwise match — banks, payment processors, and
// regulators.
var defaultProtectedSenderDomains = []string{
	"ca-paris.fr", "chase.com", "bankofamerica.com", "wellsfargo.com",
	"paypal.com", "stripe.com", "irs.gov", "ssa.gov", "treasury.gov",
	"americanexpress.com", "visa.com", "mastercard.com",
}

// Config holds the pre-filter's tunables. Additional pattern lists are
// merged with the defaults above; StrictMode, when true, lowers the
// single-skip-match confidence from 0.75 to 0.65 and the two-or-more
// threshold from 0.95 to 0.90, reflecting reduced trust in the rule set
// for accounts that have opted into stricter triage.
type Config struct {
	ExtraSkipSenderPatterns          []string
	ExtraTransactionalSenderPatterns []string
	ExtraSkipSubjectPatterns         []string
	ExtraTransactionalSubjectPatterns []string
	ExtraProtectedSenderDomains      []string
	StrictMode                       bool
}

// Filter applies the rule set. It is stateless beyond its configured
// pattern lists and safe for concurrent use.
type Filter struct {
	skipSender          []string
	transactionalSender []string
	skipSubject         []string
	transactionalSubject []string
	protectedDomains    []string
	strict              bool
}

func New(cfg Config) *Filter {
	return &Filter{
		skipSender:           append(append([]string(nil), defaultSkipSenderPatterns...), cfg.ExtraSkipSenderPatterns...),
		transactionalSender:  append(append([]string(nil), defaultTransactionalSenderPatterns...), cfg.ExtraTransactionalSenderPatterns...),
		skipSubject:          append(append([]string(nil), defaultSkipSubjectPatterns...), cfg.ExtraSkipSubjectPatterns...),
		transactionalSubject: append(append([]string(nil), defaultTransactionalSubjectPatterns...), cfg.ExtraTransactionalSubjectPatterns...),
		protectedDomains:     append(append([]string(nil), defaultProtectedSenderDomains...), cfg.ExtraProtectedSenderDomains...),
		strict:               cfg.StrictMode,
	}
}

// ShouldProcess classifies (sender, subject). Sender and subject are
// lower-cased before matching.
func (f *Filter) ShouldProcess(sender, subject string) Result {
	sender = strings.ToLower(strings.TrimSpace(sender))
	subject = strings.ToLower(strings.TrimSpace(subject))

	var matched []string
	for _, p := range f.skipSender {
		if strings.Contains(sender, p) {
			matched = append(matched, "sender:"+p)
		}
	}
	for _, p := range f.skipSubject {
		if strings.Contains(subject, p) {
			matched = append(matched, "subject:"+p)
		}
	}

	var transactional []string
	for _, p := range f.transactionalSender {
		if strings.Contains(sender, p) {
			transactional = append(transactional, "sender:"+p)
		}
	}
	for _, p := range f.transactionalSubject {
		if strings.Contains(subject, p) {
			transactional = append(transactional, "subject:"+p)
		}
	}

	protected := f.isProtectedDomain(sender)

	twoMatchThreshold := 0.95
	singleMatchConfidence := 0.75
	transactionalConfidence := 0.80
	if f.strict {
		twoMatchThreshold = 0.90
		singleMatchConfidence = 0.65
	}

	switch {
	case len(matched) >= 2:
		if protected {
			// The protected-sender check is strictly override-wins: even
			// with marketing patterns, a protected domain cannot be
			// skipped.
			if len(transactional) > 0 {
				return Result{VerdictProcessLight, "protected sender, transactional pattern matched", transactionalConfidence, append(matched, transactional...)}
			}
			return Result{VerdictProcessFull, "protected sender overrides skip verdict", 1.0, matched}
		}
		return Result{VerdictSkip, "two or more skip patterns matched", twoMatchThreshold, matched}

	case len(matched) == 1:
		if protected || len(transactional) > 0 {
			return Result{VerdictProcessLight, "single skip match offset by protection or transactional pattern", transactionalConfidence, append(matched, transactional...)}
		}
		return Result{VerdictSkip, "single skip pattern matched", singleMatchConfidence, matched}

	case len(transactional) > 0:
		return Result{VerdictProcessLight, "transactional pattern matched", transactionalConfidence, transactional}

	default:
		return Result{VerdictProcessFull, "no skip or transactional patterns matched", 1.0, nil}
	}
}

func (f *Filter) isProtectedDomain(sender string) bool {
	at := strings.LastIndex(sender, "@")
	if at < 0 {
		return false
	}
	domain := sender[at+1:]
	for _, d := range f.protectedDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}
