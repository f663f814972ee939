package pipeline

import (
	"tradeconv/internal"
	"tradeconv/internal/util"
)

type DetectResult struct {
	IsReport bool
	Score    float64
	Reason   string
}

// DetectFillReport scores a message on its subject, body and attachments.
// A message without a decodable attachment is never a report.
func DetectFillReport(subject, text string, attachmentNames []string, keywords []string) DetectResult {
	hasAttachment := false
	for _, name := range attachmentNames {
		if kind, err := InputKindFor(name); err == nil && kind != internal.InputEML {
			hasAttachment = true
			break
		}
	}
	if !hasAttachment {
		return DetectResult{IsReport: false, Score: 0, Reason: "no_report_attachment"}
	}

	score := 0.4
	if util.ContainsAny(subject, keywords) {
		score += 0.4
	}
	if util.ContainsAny(text, keywords) {
		score += 0.2
	}
	for _, name := range attachmentNames {
		if util.ContainsAny(name, keywords) || util.ContainsAny(name, []string{"fill"}) {
			score += 0.2
			break
		}
	}
	if score > 1 {
		score = 1
	}

	isReport := score >= 0.6
	reason := "rules_negative"
	if isReport {
		reason = "rules_positive"
	}
	return DetectResult{IsReport: isReport, Score: score, Reason: reason}
}
