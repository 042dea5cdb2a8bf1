package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	yaml "gopkg.in/yaml.v3"
)

// SwaggerHandler serves the interactive API console. The OpenAPI document
// is converted to JSON and inlined so the page renders without a second
// round trip to the server.
func (s *Server) SwaggerHandler(w http.ResponseWriter, r *http.Request) {
	data, err := openAPILoad()
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "OpenAPI not available", err.Error(), r.URL.Path)
		return
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		writeProblem(w, http.StatusInternalServerError, "OpenAPI parse failed", err.Error(), r.URL.Path)
		return
	}
	specJSON, _ := json.Marshal(doc)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(consolePage(base64.StdEncoding.EncodeToString(specJSON))))
}

// consolePage inlines the OpenAPI document and adds a small bearer-token
// bar. In dev auth mode the token field accepts the subject:role shorthand
// directly.
func consolePage(b64 string) string {
	return `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8"/>
<meta name="viewport" content="width=device-width,initial-scale=1">
<title>Seaguard API Console</title>
<link rel="stylesheet" href="/static/swagger-ui.css"/>
<style>
body{margin:0}
#authbar{position:fixed;top:10px;right:10px;z-index:10;background:#fff;border:1px solid #ccc;padding:6px 10px;font:13px sans-serif}
#authbar input{width:260px}
</style>
</head>
<body>
<div id="authbar">
  Bearer <input id="bearer" placeholder="token or subject:role (dev mode)">
  <button id="apply">Apply</button>
</div>
<div id="swagger-ui"></div>
<script src="/static/swagger-ui-bundle.js"></script>
<script src="/static/swagger-ui-standalone-preset.js"></script>
<script>
const doc = JSON.parse(atob('` + b64 + `'));
const field = document.getElementById('bearer');
field.value = localStorage.getItem('seaguard.bearer') || '';
document.getElementById('apply').onclick = () => {
  localStorage.setItem('seaguard.bearer', field.value);
};
SwaggerUIBundle({
  spec: doc,
  dom_id: '#swagger-ui',
  deepLinking: true,
  presets: [SwaggerUIBundle.presets.apis, SwaggerUIStandalonePreset],
  layout: 'BaseLayout',
  requestInterceptor: (req) => {
    const tok = localStorage.getItem('seaguard.bearer');
    if (tok) req.headers['Authorization'] = 'Bearer ' + tok;
    return req;
  }
});
</script>
</body>
</html>`
}
