package verification

import (
	"fmt"
	"time"

	"github.com/john67k/zelle-style/internal/domain"
)

func codeMessage(email, code string, expiresAt time.Time) domain.Message {
	name := domain.DisplayNameForEmail(email)
	return domain.Message{
		To:      email,
		Subject: "Your verification code",
		TextBody: fmt.Sprintf(
			"Hi %s,\n\nYour verification code is %s. It expires at %s.\n\nIf you did not request this code, you can ignore this email.\n",
			name, code, expiresAt.Format(time.Kitchen)),
		HTMLBody: fmt.Sprintf(
			"<p>Hi %s,</p><p>Your verification code is <strong>%s</strong>. It expires at %s.</p><p>If you did not request this code, you can ignore this email.</p>",
			name, code, expiresAt.Format(time.Kitchen)),
	}
}

func welcomeMessage(email string) domain.Message {
	name := domain.DisplayNameForEmail(email)
	return domain.Message{
		To:      email,
		Subject: "Welcome aboard",
		TextBody: fmt.Sprintf(
			"Hi %s,\n\nYour email is verified and your account is ready. You can now send and request money.\n",
			name),
		HTMLBody: fmt.Sprintf(
			"<p>Hi %s,</p><p>Your email is verified and your account is ready. You can now send and request money.</p>",
			name),
	}
}
