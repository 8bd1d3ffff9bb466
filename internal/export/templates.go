package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var certificateTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
		"yesNo": func(b bool) string {
			if b {
				return "Yes"
			}
			return "No"
		},
	}

	templateContent, err := templateFS.ReadFile("templates/certificate.html")
	if err != nil {
		// Fallback to built-in template if file not found
		certificateTemplate = template.Must(template.New("certificate").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}

	certificateTemplate = template.Must(template.New("certificate").Funcs(funcMap).Parse(string(templateContent)))
}

// CertificateData holds data for certificate template rendering
type CertificateData struct {
	CertificateNumber string
	ClientName        string
	ClientAddress     string
	PropertyAddress   string
	InspectionDate    time.Time
	NextDueDate       time.Time
	EngineerName      string
	GasSafeNumber     string
	Appliances        []ApplianceRow
	Defects           string
	RemedialWork      string
}

// ApplianceRow is one appliance line on the certificate
type ApplianceRow struct {
	Location    string
	Type        string
	Make        string
	Model       string
	FlueType    string
	SafeToUse   bool
	DefectsNote string
}

// RenderCertificateHTML renders the certificate template with provided data
func RenderCertificateHTML(data CertificateData) (string, error) {
	var buf bytes.Buffer
	if err := certificateTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>Gas Safety Record {{.CertificateNumber}}</title>
  <style>
    body { font-family: Arial, sans-serif; font-size: 12px; margin: 1rem; }
    h1 { font-size: 16px; border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    table { width: 100%; border-collapse: collapse; margin: 1rem 0; }
    th, td { border: 1px solid #999; padding: 4px 6px; text-align: left; }
  </style>
</head>
<body>
  <h1>Landlord Gas Safety Record {{.CertificateNumber}}</h1>
  <p>{{.ClientName}} | {{.PropertyAddress}}</p>
  <p>Inspected {{formatDate .InspectionDate "2 Jan 2006"}}, next due {{formatDate .NextDueDate "2 Jan 2006"}}</p>
  <table>
    <tr><th>Location</th><th>Type</th><th>Make</th><th>Safe to use</th></tr>
    {{range .Appliances}}<tr><td>{{.Location}}</td><td>{{.Type}}</td><td>{{.Make}}</td><td>{{yesNo .SafeToUse}}</td></tr>{{end}}
  </table>
  {{if .Defects}}<p><strong>Defects:</strong> {{.Defects}}</p>{{end}}
  <p>{{.EngineerName}} (Gas Safe {{.GasSafeNumber}})</p>
</body>
</html>`
