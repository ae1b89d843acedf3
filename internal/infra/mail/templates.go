package mail

import (
	"bytes"
	"fmt"
	"html/template"
)

const (
	subjectVerification = "Verify Your Email Address"
	subjectReset        = "Reset Your Password"
)

var (
	verificationTemplate = template.Must(template.New("verification").Parse(`<html>
<body>
    <h2>Email Verification</h2>
    <p>Thank you for registering! Please verify your email by clicking the link below:</p>
    <p><a href="{{.Link}}">Verify Email</a></p>
    <p>If you didn't create an account, you can ignore this email.</p>
</body>
</html>`))

	resetTemplate = template.Must(template.New("reset").Parse(`<html>
<body>
    <h2>Password Reset</h2>
    <p>You requested a password reset. Click the link below to reset your password:</p>
    <p><a href="{{.Link}}">Reset Password</a></p>
    <p>If you didn't request a password reset, please ignore this email.</p>
    <p>This link will expire in 1 hour.</p>
</body>
</html>`))
)

func render(tmpl *template.Template, link string) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct{ Link string }{Link: link}); err != nil {
		return "", fmt.Errorf("render %s template: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
