package mail

import (
	_ "embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/Masterminds/sprig/v3"
)

// ConfirmationParams fills the signup confirmation template.
type ConfirmationParams struct {
	Name      string
	Username  string
	Product   string
	PortalURL string
}

var (
	//go:embed templates/confirmation.html
	confirmationHTML string

	confirmationTemplate = template.Must(
		template.New("confirmation").Funcs(sprig.HtmlFuncMap()).Parse(confirmationHTML),
	)
)

// RenderConfirmation produces the HTML body of the signup confirmation mail.
func RenderConfirmation(p ConfirmationParams) (string, error) {
	return render(confirmationTemplate, p)
}

// ConfirmationSubject produces the subject line of the signup confirmation mail.
func ConfirmationSubject(product string) string {
	if product == "" {
		product = "Waitlist"
	}
	return fmt.Sprintf("You're on the %s waitlist", product)
}

func render(t *template.Template, p any) (string, error) {
	var buf strings.Builder
	if err := t.Execute(&buf, p); err != nil {
		return "", fmt.Errorf("failed to render mail template: %w", err)
	}
	return buf.String(), nil
}
