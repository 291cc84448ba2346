package dashboard

import "html/template"

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>OpenAI API Cost Dashboard</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ccc; padding: 4px 8px; }
</style>
</head>
<body>
<h1>OpenAI API Cost Dashboard</h1>
<form method="get" action="/">
<label>Start Date <input type="date" name="start" value="{{.Start}}"></label>
<label>End Date <input type="date" name="end" value="{{.End}}"></label>
<button type="submit">Show</button>
</form>
{{if .Error}}
<p>No data available. Please check your API key and date range.</p>
<p>{{.Error}}</p>
{{else}}
<h2>Total Cost</h2>
<p><strong>${{printf "%.2f" .Summary.Total}}</strong></p>
<h2>Daily Cost</h2>
<img src="/charts/daily.png?start={{.Start}}&end={{.End}}" alt="daily cost">
<h2>Cost by Model</h2>
<img src="/charts/models.png?start={{.Start}}&end={{.End}}" alt="cost by model">
<h2>Raw Data</h2>
<table>
<tr><th>Timestamp</th><th>Model</th><th>Cost</th></tr>
{{range .Summary.Records}}<tr><td>{{.Timestamp.Format "2006-01-02 15:04:05"}}</td><td>{{.Model}}</td><td>{{printf "%.4f" .Cost}}</td></tr>
{{end}}</table>
{{end}}
</body>
</html>
`))

type pageData struct {
	Start   string
	End     string
	Summary Summary
	Error   string
}
