package models

// Email threat levels
const (
	EmailThreatHigh   = "High"
	EmailThreatMedium = "Medium"
	EmailThreatLow    = "Low"
)

// EmailMessage is the input to the phishing detector
type EmailMessage struct {
	Sender  string `json:"sender"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// EmailScanResult is the phishing verdict for one message
type EmailScanResult struct {
	Sender      string   `json:"sender"`
	Subject     string   `json:"subject"`
	IsPhishing  bool     `json:"is_phishing"`
	ThreatLevel string   `json:"threat_level"`
	Reasons     []string `json:"reasons"`
}
