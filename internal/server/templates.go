package server

import (
	"html/template"
	"net/http"
)

const pageStyle = `<style>
*{box-sizing:border-box}
body{font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",Roboto,sans-serif;background:#f8fafc;color:#1f2937;margin:0}
header{background:#2563eb;color:#fff;padding:1rem 2rem}
header a{color:#fff;text-decoration:none;font-weight:600}
main{max-width:1000px;margin:0 auto;padding:1.5rem 2rem}
table{border-collapse:collapse;width:100%;background:#fff}
th,td{border:1px solid #e5e7eb;padding:.5rem .75rem;text-align:left;font-size:.9rem}
th{background:#f1f5f9}
.status{display:inline-block;padding:.1rem .5rem;border-radius:9999px;font-size:.8rem;background:#e5e7eb}
.status.completed{background:#d1fae5;color:#065f46}
.status.processing{background:#dbeafe;color:#1e40af}
.status.failed{background:#fee2e2;color:#991b1b}
.charts img{max-width:100%;margin:.5rem 0}
.progress{background:#fff;border:1px solid #e5e7eb;border-radius:6px;padding:.75rem 1rem;margin:1rem 0}
.actions a,.actions button{margin-right:.5rem;font-size:.85rem}
.error{background:#fee2e2;border:1px solid #fca5a5;color:#991b1b;padding:.5rem .75rem;border-radius:6px}
</style>`

type surveyRow struct {
	ID        string
	Title     string
	Status    string
	Type      string
	Responses int
	Created   string
}

type listPage struct {
	Surveys []surveyRow
}

var listTemplate = template.Must(template.New("list").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Surveys - surveylens</title>
` + pageStyle + `
</head>
<body>
<header><a href="/">surveylens</a></header>
<main>
<h1>Surveys</h1>
<p class="actions"><a href="/?format=csv">Download CSV</a></p>
{{if .Surveys}}
<table>
<tr><th>Title</th><th>Status</th><th>Type</th><th>Responses</th><th>Created</th></tr>
{{range .Surveys}}
<tr>
<td><a href="/surveys/{{.ID}}">{{.Title}}</a></td>
<td><span class="status {{.Status}}">{{.Status}}</span></td>
<td>{{.Type}}</td>
<td>{{.Responses}}</td>
<td>{{.Created}}</td>
</tr>
{{end}}
</table>
{{else}}
<p>No surveys yet. Upload one with <code>surveylens upload</code>.</p>
{{end}}
</main>
</body>
</html>`))

type reportPage struct {
	ID       string
	Title    string
	Status   string
	Polling  bool
	Message  string
	Report   template.HTML
	Charts   []string
	Formats  []string
	Analyzed bool
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}} - surveylens</title>
` + pageStyle + `
</head>
<body>
<header><a href="/">surveylens</a></header>
<main>
<h1>{{.Title}} <span class="status {{.Status}}">{{.Status}}</span></h1>
<p class="actions">
<button id="analyze">{{if .Analyzed}}Re-analyze{{else}}Analyze{{end}}</button>
{{if .Analyzed}}{{range .Formats}}<a href="/surveys/{{$.ID}}/export/{{.}}">{{.}}</a>{{end}}{{end}}
</p>
<div class="progress" id="progress"{{if not .Polling}} hidden=""{{end}}>{{.Message}}</div>
{{if .Analyzed}}
<div class="charts">
{{range .Charts}}<img src="/surveys/{{$.ID}}/charts/{{.}}.png" alt="{{.}} chart">{{end}}
</div>
{{.Report}}
{{else}}
<p>{{.Message}}</p>
{{end}}
</main>
<script>
(function(){
  var id = {{.ID}};
  var box = document.getElementById("progress");
  document.getElementById("analyze").onclick = function(){
    fetch("/surveys/" + encodeURIComponent(id) + "/analyze", {method: "POST"}).then(function(r){
      return r.json().then(function(body){
        box.hidden = false;
        box.textContent = r.ok ? "Analysis started..." : body.error;
      });
    });
  };
  var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
  ws.onmessage = function(msg){
    var ev = JSON.parse(msg.data);
    if (ev.survey_id !== id) return;
    box.hidden = false;
    if (ev.type === "progress" && ev.progress) {
      box.textContent = Math.round(ev.progress.percentage) + "% " + (ev.message || ev.progress.step || "");
    } else if (ev.type === "completed" || ev.type === "failed") {
      location.reload();
    } else if (ev.message) {
      box.textContent = ev.message;
    }
  };
})();
</script>
</body>
</html>`))

func renderTemplate(w http.ResponseWriter, t *template.Template, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.Execute(w, data); err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to render page")
	}
}
