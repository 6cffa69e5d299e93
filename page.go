package main

import (
	"html/template"
	"io"
	"net/http"
)

var loginTemplate = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Camera Login</title>
<style>
body { font-family: sans-serif; background: #222; color: #eee; display: flex; justify-content: center; padding-top: 15vh; }
form { background: #333; padding: 24px; border-radius: 8px; }
input, button { font-size: 1em; padding: 8px; margin-top: 8px; }
.error { color: #f66; }
</style>
</head>
<body>
<form method="POST" action="/login">
<h2>Live Camera</h2>
{{if .}}<p class="error">{{.}}</p>{{end}}
<input type="password" name="password" placeholder="Password" autofocus>
<button type="submit">View stream</button>
</form>
</body>
</html>
`))

const viewerPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Live Camera</title>
<style>
body { font-family: sans-serif; background: #222; color: #eee; text-align: center; }
#stream { max-width: 100%; max-height: 80vh; background: #000; }
.bar span { margin: 0 12px; }
</style>
</head>
<body>
<h1>Live Camera</h1>
<div class="bar">
<span id="status">Connecting...</span>
<span>FPS: <b id="fps">0</b></span>
<span>Clients: <b id="clients">0</b></span>
</div>
<img id="stream" alt="camera stream">
<script>
(function () {
  var img = document.getElementById('stream');
  var statusEl = document.getElementById('status');
  var last = Date.now();
  var attempts = 0;

  function connect() {
    var proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
    var ws = new WebSocket(proto + location.host + '/ws');
    ws.binaryType = 'blob';
    ws.onopen = function () { statusEl.textContent = 'Connected'; attempts = 0; };
    ws.onmessage = function (ev) {
      var url = URL.createObjectURL(new Blob([ev.data], { type: 'image/jpeg' }));
      img.src = url;
      setTimeout(function () { URL.revokeObjectURL(url); }, 1000);
      var now = Date.now();
      document.getElementById('fps').textContent = (1000 / Math.max(1, now - last)).toFixed(1);
      last = now;
    };
    ws.onclose = function () {
      statusEl.textContent = 'Disconnected';
      attempts++;
      setTimeout(connect, Math.min(30000, 1000 * Math.pow(2, attempts)));
    };
  }

  setInterval(function () {
    fetch('/api/status').then(function (r) { return r.json(); }).then(function (s) {
      document.getElementById('clients').textContent = s.connectedClients;
      if (!s.isStreaming) { statusEl.textContent = 'Waiting for camera'; }
    }).catch(function () {});
  }, 1000);

  connect();
})();
</script>
</body>
</html>
`

func renderLogin(w http.ResponseWriter, status int, errMsg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := loginTemplate.Execute(w, errMsg); err != nil {
		errorLog("Rendering login page: %v", err)
	}
}

func renderViewer(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, viewerPage)
}
