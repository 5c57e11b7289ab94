package api

import (
	"html/template"
	"net/http"
)

var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>PDF Highlighter</title>
<style>
body { font-family: sans-serif; max-width: 40em; margin: 3em auto; }
label { display: block; margin: .8em 0 .3em; }
#status { margin-top: 1.5em; white-space: pre-wrap; }
</style>
</head>
<body>
<h1>PDF Highlighter</h1>
<p>Upload a research paper. Its key sentences are highlighted in a copy you can download.</p>
<form id="upload" action="/api/highlight" method="post" enctype="multipart/form-data">
  <label for="file">PDF file</label>
  <input type="file" id="file" name="file" accept="application/pdf,.pdf" required>
  <label for="max_tokens">Tokens per chunk</label>
  <input type="number" id="max_tokens" name="max_tokens" min="1" value="{{.MaxTokens}}">
  {{if .AuthRequired}}
  <label for="token">API key</label>
  <input type="password" id="token" name="token" autocomplete="off">
  {{end}}
  <p><button type="submit">Highlight</button></p>
</form>
<div id="status"></div>
<script>
const form = document.getElementById("upload");
const statusEl = document.getElementById("status");
function headers() {
  const t = document.getElementById("token");
  return t && t.value ? {"Authorization": "Bearer " + t.value} : {};
}
async function poll(url) {
  const resp = await fetch(url, {headers: headers()});
  const job = await resp.json();
  statusEl.textContent = job.status + ": " + (job.phase || "");
  if (job.status === "completed") {
    const dl = await fetch(job.download_url, {headers: headers()});
    const a = document.createElement("a");
    a.href = URL.createObjectURL(await dl.blob());
    a.download = "highlighted.pdf";
    a.textContent = "Download highlighted.pdf";
    statusEl.textContent = job.progress.highlights + " highlights. ";
    statusEl.appendChild(a);
  } else if (job.status === "failed") {
    statusEl.textContent = "Failed: " + job.progress.errors.join("; ");
  } else {
    setTimeout(() => poll(url), 1000);
  }
}
form.addEventListener("submit", async (ev) => {
  ev.preventDefault();
  const data = new FormData(form);
  data.delete("token");
  statusEl.textContent = "Uploading...";
  const resp = await fetch(form.action, {method: "POST", body: data, headers: headers()});
  const body = await resp.json();
  if (!resp.ok) { statusEl.textContent = "Error: " + body.error; return; }
  poll(body.poll_url);
});
</script>
</body>
</html>
`))

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := indexTmpl.Execute(w, map[string]any{
		"MaxTokens":    s.cfg.ChunkTokens,
		"AuthRequired": s.cfg.APIKey != "",
	})
	if err != nil {
		s.log.Error("render index", "error", err)
	}
}
