package notify

import (
	"bytes"
	"fmt"
	"html/template"
)

type emailItem struct {
	Name     string
	Quantity int
	Unit     string
	Batch    string
	DaysLeft int
}

type alertEmailData struct {
	Items        []emailItem
	DashboardURL string
}

type verifyEmailData struct {
	Code    string
	Minutes int
}

const emailOpen = `<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">`

const dashboardButton = `<a href="{{.DashboardURL}}" style="display: inline-block; background: #8AA624; color: white; padding: 12px 24px; text-decoration: none; border-radius: 8px; margin-top: 20px;">View Dashboard</a>`

var lowStockTmpl = template.Must(template.New("low_stock").Parse(emailOpen + `
<h2 style="color: #FEA405;">⚠️ Low Stock Alert</h2>
<p>The following products are running low:</p>
<ul style="line-height: 1.8;">
{{range .Items}}<li><strong>{{.Name}}</strong> - {{.Quantity}} {{.Unit}} remaining</li>
{{end}}</ul>
<p>Please restock these items soon.</p>
` + dashboardButton + `
</div>`))

var expiryTmpl = template.Must(template.New("expiring_soon").Parse(emailOpen + `
<h2 style="color: #DC2626;">📅 Products Expiring Soon</h2>
<p>The following products will expire within 7 days:</p>
<ul style="line-height: 1.8;">
{{range .Items}}<li><strong>{{.Name}}</strong>{{if .Batch}} (Batch: {{.Batch}}){{end}} - Expires in {{.DaysLeft}} days</li>
{{end}}</ul>
<p>Consider offering discounts or promotions to clear these items.</p>
` + dashboardButton + `
</div>`))

var verifyTmpl = template.Must(template.New("verify").Parse(emailOpen + `
<h2 style="color: #8AA624;">Welcome to StockSync!</h2>
<p>Your verification code is:</p>
<h1 style="background: #F7F4EA; padding: 20px; text-align: center; letter-spacing: 5px;">{{.Code}}</h1>
<p>This code will expire in {{.Minutes}} minutes.</p>
<p>If you didn't request this, please ignore this email.</p>
</div>`))

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s email: %w", t.Name(), err)
	}
	return buf.String(), nil
}
