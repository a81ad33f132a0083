package api

import (
	"fmt"
	"strings"
)

// docsPage renders the OpenAPI viewer. Routes mounted outside huma (event
// streams, metrics) get a link bar since the generated spec omits them.
func docsPage(opts Options) []byte {
	var links []string
	if opts.Events != nil {
		links = append(links, `<a href="/api/v1/events" title="Server-sent refresh events; ?kinds=chart,summary filters">events (SSE)</a>`)
	}
	if opts.Stream != nil {
		links = append(links, `<a href="/api/v1/events/ws" title="The same refresh events over a WebSocket">events (WS)</a>`)
	}
	if opts.Metrics != nil {
		links = append(links, `<a href="/metrics" title="Prometheus refresh counters and backend_up">metrics</a>`)
	}

	nav := ""
	if len(links) > 0 {
		nav = fmt.Sprintf(`  <nav class="console-links">%s</nav>
`, strings.Join(links, " · "))
	}
	return []byte(fmt.Sprintf(docsTemplate, nav))
}

const docsTemplate = `<!doctype html>
<html lang="en" data-theme="dark">
<head>
  <meta charset="utf-8" />
  <meta name="referrer" content="same-origin" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Performance Console API</title>
  <link href="https://unpkg.com/@stoplight/elements@9.0.0/styles.min.css" rel="stylesheet" />
  <script src="https://unpkg.com/@stoplight/elements@9.0.0/web-components.min.js" crossorigin="anonymous"></script>
  <style>
    .console-links { position: fixed; top: 12px; right: 16px; z-index: 9999; font: 12px sans-serif; }
    .console-links a { color: #58a6ff; text-decoration: none; }
  </style>
</head>
<body style="height: 100vh; margin: 0; position: relative;">
%s  <elements-api
    apiDescriptionUrl="/openapi.json"
    router="hash"
    layout="sidebar"
    tryItCredentialsPolicy="same-origin"
    darkMode
  />
</body>
</html>`
