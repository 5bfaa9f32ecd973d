package oracle

import (
	"fmt"
	"strings"

	"github.com/quiltmoney/quilt/internal/model"
)

const judgeSystemPrompt = "You are a financial transaction correlation judge. You decide whether independently-captured records describe the same real-world purchase. You MUST respond with ONLY a valid JSON object. Do not include any explanatory text, markdown formatting, or commentary before or after the JSON. Start your response directly with { and end with }."

// buildJudgePrompt describes the incoming transaction and every candidate in
// a single batched request, one verdict expected per candidate.
func buildJudgePrompt(incoming model.Transaction, candidates []model.Transaction) string {
	var sb strings.Builder

	sb.WriteString("An incoming financial transaction record must be compared against existing records for the same user. ")
	sb.WriteString("Records from different channels (image receipt, email, SMS, voice) describing one purchase differ slightly in amount (rounding, tax), timestamp, and merchant spelling.\n\n")

	sb.WriteString("Incoming transaction:\n")
	writeTransactionDetails(&sb, incoming)

	sb.WriteString("\nCandidates:\n")
	for i, candidate := range candidates {
		sb.WriteString(fmt.Sprintf("\nCandidate %d:\n", i+1))
		writeTransactionDetails(&sb, candidate)
	}

	sb.WriteString(fmt.Sprintf(`
Instructions:
1. Judge EVERY candidate independently against the incoming transaction.
2. classification is one of: duplicate (same record captured twice), same-purchase (one purchase seen through different channels), related (connected but distinct, e.g. a refund), unrelated.
3. recommendedAction is one of: merge, flag-for-review, keep-separate.
4. confidence is an integer from 0 to 100.
5. Return exactly %d verdicts in this JSON structure:

{
  "verdicts": [
    {"candidate": 1, "isCorrelated": true, "confidence": 88, "classification": "same-purchase", "recommendedAction": "merge", "reason": "brief explanation"}
  ]
}`, len(candidates)))

	return sb.String()
}

func writeTransactionDetails(sb *strings.Builder, txn model.Transaction) {
	merchant := txn.Merchant
	if merchant == "" {
		merchant = "(unknown)"
	}
	fmt.Fprintf(sb, "Merchant: %s\n", merchant)
	fmt.Fprintf(sb, "Amount: %s %s\n", txn.Amount.String(), txn.Currency)

	if txn.HasTimeOfDay() {
		fmt.Fprintf(sb, "Timestamp: %s\n", txn.OccurredAt.UTC().Format("2006-01-02 15:04:05 MST"))
	} else {
		fmt.Fprintf(sb, "Date: %s (no time of day recorded)\n", txn.OccurredAt.UTC().Format("2006-01-02"))
	}

	if txn.Category != "" {
		fmt.Fprintf(sb, "Category: %s\n", txn.Category)
	}

	if len(txn.Sources) > 0 {
		kinds := make([]string, 0, len(txn.Sources))
		for _, src := range txn.Sources {
			kinds = append(kinds, string(src.Kind))
		}
		fmt.Fprintf(sb, "Captured from: %s\n", strings.Join(kinds, ", "))
	}

	if len(txn.Items) > 0 {
		sb.WriteString("Items:\n")
		for _, item := range txn.Items {
			if item.Quantity > 1 {
				fmt.Fprintf(sb, "  - %s x%d (%s)\n", item.Name, item.Quantity, item.Price.String())
			} else {
				fmt.Fprintf(sb, "  - %s (%s)\n", item.Name, item.Price.String())
			}
		}
	}
}
