package health

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
)

var dashboardTmpl = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Estimate API · Status</title>
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <style>
    :root { --ok: #15803d; --bad: #b91c1c; --ink: #1e293b; --muted: #64748b; --bg: #f8fafc; }
    body { background: var(--bg); color: var(--ink); font-family: system-ui, sans-serif; margin: 0; padding: 40px; }
    h1 { margin: 0 0 4px; font-size: 22px; }
    .status { font-weight: 800; text-transform: uppercase; }
    .status.ok { color: var(--ok); } .status.issue { color: var(--bad); }
    .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(240px, 1fr)); gap: 16px; margin-top: 24px; }
    .card { background: #fff; border-radius: 12px; padding: 16px 20px; box-shadow: 0 1px 3px rgba(0,0,0,.08); }
    .card h2 { font-size: 13px; color: var(--muted); text-transform: uppercase; margin: 0 0 12px; }
    table { width: 100%; border-collapse: collapse; font-size: 14px; }
    td { padding: 4px 0; } td.v { text-align: right; font-weight: 700; }
    .err { color: var(--bad); font-size: 12px; }
  </style>
</head>
<body>
  <h1>estimate-api</h1>
  <div class="status {{.Status}}">{{.Status}}</div>
  <div class="grid">
    <div class="card"><h2>Traffic</h2><table>
      <tr><td>Requests</td><td class="v">{{.Traffic.TotalRequests}}</td></tr>
      <tr><td>Success rate</td><td class="v">{{.Traffic.SuccessRate}}%</td></tr>
      <tr><td>Failed</td><td class="v">{{.Traffic.FailedCount}}</td></tr>
      <tr><td>Avg response</td><td class="v">{{.AvgResponse}} ms</td></tr>
      <tr><td>Last request</td><td class="v">{{.LastRequest}}</td></tr>
    </table></div>
    <div class="card"><h2>Runtime</h2><table>
      <tr><td>Uptime</td><td class="v">{{.Runtime.UptimeSeconds}} s</td></tr>
      <tr><td>Heap</td><td class="v">{{.Runtime.Memory.HeapUsed}} MB</td></tr>
      <tr><td>Goroutines</td><td class="v">{{.Runtime.Goroutines}}</td></tr>
      <tr><td>Go</td><td class="v">{{.Runtime.GoVersion}}</td></tr>
    </table></div>
    <div class="card"><h2>Dependencies</h2><table>
      {{range .Deps}}<tr><td>{{.Name}}</td><td class="v">{{.Status}}</td></tr>{{end}}
    </table></div>
    <div class="card"><h2>Rate catalogs</h2><table>
      {{range .Catalogs}}<tr><td>{{.Source}}{{if .Error}}<div class="err">{{.Error}}</div>{{end}}</td><td class="v">{{.Entries}}</td></tr>
      {{else}}<tr><td>No catalogs configured</td></tr>{{end}}
    </table></div>
  </div>
  <p><a href="/health/json">json</a> · <a href="/health/errors">errors</a> · <a href="/metrics">metrics</a></p>
</body>
</html>`))

type dashboardDep struct {
	Name   string
	Status string
}

// RenderDashboardHTML returns the HTML status page for GET /.
func RenderDashboardHTML(health CollectResult) (string, error) {
	names := make([]string, 0, len(health.Dependencies))
	for name := range health.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	deps := make([]dashboardDep, 0, len(names))
	for _, name := range names {
		deps = append(deps, dashboardDep{Name: name, Status: health.Dependencies[name].Status})
	}

	lastReq := "-"
	if m, ok := health.Traffic.LastRequest.(map[string]interface{}); ok {
		lastReq = fmt.Sprintf("%v %v", m["method"], m["path"])
	}

	var buf bytes.Buffer
	err := dashboardTmpl.Execute(&buf, struct {
		CollectResult
		AvgResponse string
		LastRequest string
		Deps        []dashboardDep
	}{
		CollectResult: health,
		AvgResponse:   fmt.Sprint(health.Traffic.AvgResponseTime),
		LastRequest:   lastReq,
		Deps:          deps,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
