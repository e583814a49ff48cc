package ledger

import (
	"fmt"
	"time"

	"github.com/john67k/zelle-style/internal/domain"
)

func nowUTC() time.Time { return time.Now().UTC() }

func sentReceipt(tx *domain.Transaction, remaining domain.Amount) domain.Message {
	return domain.Message{
		To:      tx.SenderEmail,
		Subject: fmt.Sprintf("You sent $%s to %s", tx.Amount, tx.RecipientName),
		TextBody: fmt.Sprintf(
			"Hi %s,\n\nYou sent $%s to %s (%s).\nNote: %s\nRemaining balance: $%s\n",
			tx.SenderName, tx.Amount, tx.RecipientName, tx.RecipientEmail, noteOrDash(tx.Note), remaining),
		HTMLBody: fmt.Sprintf(
			"<p>Hi %s,</p><p>You sent <strong>$%s</strong> to %s (%s).</p><p>Note: %s</p><p>Remaining balance: $%s</p>",
			tx.SenderName, tx.Amount, tx.RecipientName, tx.RecipientEmail, noteOrDash(tx.Note), remaining),
	}
}

func receivedReceipt(tx *domain.Transaction) domain.Message {
	return domain.Message{
		To:      tx.RecipientEmail,
		Subject: fmt.Sprintf("%s sent you $%s", tx.SenderName, tx.Amount),
		TextBody: fmt.Sprintf(
			"Hi %s,\n\n%s (%s) sent you $%s.\nNote: %s\n",
			tx.RecipientName, tx.SenderName, tx.SenderEmail, tx.Amount, noteOrDash(tx.Note)),
		HTMLBody: fmt.Sprintf(
			"<p>Hi %s,</p><p>%s (%s) sent you <strong>$%s</strong>.</p><p>Note: %s</p>",
			tx.RecipientName, tx.SenderName, tx.SenderEmail, tx.Amount, noteOrDash(tx.Note)),
	}
}

func requestNotice(tx *domain.Transaction) domain.Message {
	// For a request the stored sender is the eventual payer.
	return domain.Message{
		To:      tx.SenderEmail,
		Subject: fmt.Sprintf("%s requested $%s from you", tx.RecipientName, tx.Amount),
		TextBody: fmt.Sprintf(
			"Hi %s,\n\n%s (%s) requested $%s from you.\nNote: %s\n",
			tx.SenderName, tx.RecipientName, tx.RecipientEmail, tx.Amount, noteOrDash(tx.Note)),
		HTMLBody: fmt.Sprintf(
			"<p>Hi %s,</p><p>%s (%s) requested <strong>$%s</strong> from you.</p><p>Note: %s</p>",
			tx.SenderName, tx.RecipientName, tx.RecipientEmail, tx.Amount, noteOrDash(tx.Note)),
	}
}

func noteOrDash(note string) string {
	if note == "" {
		return "-"
	}
	return note
}
