package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

type verificationEmailData struct {
	Link string
}

func renderVerificationEmail(data verificationEmailData) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "verification_email.html", data); err != nil {
		return "", fmt.Errorf("rendering verification email: %w", err)
	}
	return buf.String(), nil
}
