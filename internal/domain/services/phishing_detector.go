package services

import (
	"regexp"
	"strings"

	"appguard-lab/internal/domain/models"
	"appguard-lab/pkg/logger"
)

// Phishing reasons
const (
	ReasonKeywords        = "Multiple phishing keywords detected"
	ReasonSenderPattern   = "Suspicious sender pattern"
	ReasonDomainPattern   = "Suspicious domain pattern"
	ReasonUrgency         = "Urgency tactics detected"
	ReasonGenericGreeting = "Generic greeting (not personalized)"
	ReasonInsecureLinks   = "Unsecured HTTP links"
)

var phishingKeywords = []string{
	"urgent", "verify", "suspended", "expired", "locked", "won", "prize",
	"congratulations", "click here", "act now", "limited time", "verify account",
	"confirm identity", "security alert", "unusual activity", "paypal", "bank",
	"irs", "tax", "refund", "payment required",
}

var suspiciousSenderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^.*[0-9]{6,}.*$`),
	regexp.MustCompile(`^.*(bitly|tinyurl|goo.gl).*$`),
	regexp.MustCompile(`^.*@.*\..*\..*\..*$`),
}

var lookalikeDomains = []string{
	"paypal-security", "amazon-support", "apple-verify", "google-security",
	"bank-verify", "microsoft-support",
}

var urgencyWords = []string{"urgent", "immediately", "asap", "now", "expires"}

var genericGreetings = []string{"dear customer", "dear user", "dear sir/madam", "valued customer"}

const (
	keywordReasonThreshold = 3
	phishingReasonCount    = 2
	highThreatReasonCount  = 4
)

// PhishingDetector scores email messages with static content rules
type PhishingDetector struct {
	logger *logger.Logger
}

// NewPhishingDetector creates a new phishing detector
func NewPhishingDetector(log *logger.Logger) *PhishingDetector {
	return &PhishingDetector{logger: log.WithComponent("phishing-detector")}
}

// Detect evaluates one message. Each matching sender pattern and lookalike
// domain adds its own reason.
func (d *PhishingDetector) Detect(msg models.EmailMessage) *models.EmailScanResult {
	subject := strings.ToLower(msg.Subject)
	sender := strings.ToLower(msg.Sender)
	body := strings.ToLower(msg.Body)

	inText := func(s string) bool {
		return strings.Contains(subject, s) || strings.Contains(body, s)
	}

	reasons := []string{}

	keywordHits := 0
	for _, k := range phishingKeywords {
		if inText(k) {
			keywordHits++
		}
	}
	if keywordHits >= keywordReasonThreshold {
		reasons = append(reasons, ReasonKeywords)
	}

	for _, re := range suspiciousSenderPatterns {
		if re.MatchString(sender) {
			reasons = append(reasons, ReasonSenderPattern)
		}
	}

	for _, domain := range lookalikeDomains {
		if strings.Contains(sender, domain) {
			reasons = append(reasons, ReasonDomainPattern)
		}
	}

	for _, w := range urgencyWords {
		if inText(w) {
			reasons = append(reasons, ReasonUrgency)
			break
		}
	}

	for _, g := range genericGreetings {
		if strings.Contains(body, g) {
			reasons = append(reasons, ReasonGenericGreeting)
			break
		}
	}

	if strings.Contains(body, "http://") && !strings.Contains(body, "https://") {
		reasons = append(reasons, ReasonInsecureLinks)
	}

	result := &models.EmailScanResult{
		Sender:     msg.Sender,
		Subject:    msg.Subject,
		IsPhishing: len(reasons) >= phishingReasonCount,
		Reasons:    reasons,
	}
	switch {
	case len(reasons) >= highThreatReasonCount:
		result.ThreatLevel = models.EmailThreatHigh
	case result.IsPhishing:
		result.ThreatLevel = models.EmailThreatMedium
	default:
		result.ThreatLevel = models.EmailThreatLow
	}

	if result.IsPhishing {
		d.logger.Debug().Str("sender", msg.Sender).Int("reasons", len(reasons)).Msg("phishing detected")
	}
	return result
}
