package models

import "math"

// AdvisorOpinion is the structured answer of the generative advisor
type AdvisorOpinion struct {
	RiskLevel       string   `json:"riskLevel"`
	SecurityScore   float64  `json:"securityScore"`
	Concerns        []string `json:"concerns"`
	Recommendations []string `json:"recommendations"`
}

// Level maps the free-form risk level onto the three tiers
func (o *AdvisorOpinion) Level() RiskLevel {
	if o == nil {
		return RiskLevelSafe
	}
	return ParseRiskLevel(o.RiskLevel)
}

// Normalize rounds the score to a whole number in 0..100 and replaces nil
// slices
func (o *AdvisorOpinion) Normalize() {
	o.SecurityScore = math.Round(o.SecurityScore)
	if o.SecurityScore < 0 {
		o.SecurityScore = 0
	}
	if o.SecurityScore > 100 {
		o.SecurityScore = 100
	}
	if o.Concerns == nil {
		o.Concerns = []string{}
	}
	if o.Recommendations == nil {
		o.Recommendations = []string{}
	}
}

// ChatMessage is one turn of an assistant conversation
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatReply is the assistant's answer
type ChatReply struct {
	Reply    string `json:"reply"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}
