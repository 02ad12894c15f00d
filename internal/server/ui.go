package server

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/caevv/bddash/internal/livestore"
	"github.com/caevv/bddash/internal/logging"
	"github.com/caevv/bddash/internal/model"
	"github.com/caevv/bddash/internal/trend"
)

const recentRunsOnDashboard = 10

// pageData is what the layout template sees.
type pageData struct {
	Title   string
	State   livestore.State
	Banner  livestore.Banner
	Content any
}

// DashboardData holds data for the dashboard template
type DashboardData struct {
	Stats    livestore.Stats
	Projects []livestore.ProjectSummary
	Chart    template.HTML
	Recent   []model.TestRun
}

// ProjectData holds data for the project template
type ProjectData struct {
	Project model.Project
	Stats   trend.Summary
	Chart   template.HTML
	Runs    []model.TestRun
}

// RunData holds data for the run template
type RunData struct {
	Project model.Project
	Run     model.TestRun
}

// NotFoundData holds data for the not-found template
type NotFoundData struct {
	Message string
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	points, err := s.dash.Trend()
	if err != nil && !errors.Is(err, trend.ErrInsufficientData) {
		logging.FromContext(r.Context()).Error("failed to compute trend for dashboard", "error", err)
	}

	s.render(w, http.StatusOK, "dashboard", "Dashboard", DashboardData{
		Stats:    s.dash.Stats(),
		Projects: s.dash.ProjectSummaries(),
		Chart:    trendChart(points),
		Recent:   s.dash.RecentRuns(recentRunsOnDashboard),
	})
}

func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("projectId")

	project, ok := s.dash.Project(id)
	if !ok {
		s.renderNotFound(w, fmt.Sprintf("There is no project %q.", id))
		return
	}

	runs := s.dash.ProjectRuns(id)
	points, err := s.dash.ProjectTrend(id)
	if err != nil && !errors.Is(err, trend.ErrInsufficientData) {
		logging.FromContext(r.Context()).Error("failed to compute project trend", "project_id", id, "error", err)
	}

	s.render(w, http.StatusOK, "project", project.Name, ProjectData{
		Project: project,
		Stats:   trend.Summarize(runs),
		Chart:   trendChart(points),
		Runs:    runs,
	})
}

func (s *Server) handleRunDetail(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("projectId")
	runID := r.PathValue("runId")

	project, ok := s.dash.Project(projectID)
	if !ok {
		s.renderNotFound(w, fmt.Sprintf("There is no project %q.", projectID))
		return
	}
	run, ok := s.dash.Run(projectID, runID)
	if !ok {
		s.renderNotFound(w, fmt.Sprintf("Project %q has no run %q.", project.Name, runID))
		return
	}

	s.render(w, http.StatusOK, "run", "Run "+run.ID, RunData{Project: project, Run: run})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.renderNotFound(w, "The page you are looking for does not exist.")
}

func (s *Server) renderNotFound(w http.ResponseWriter, message string) {
	s.render(w, http.StatusNotFound, "notfound", "Not found", NotFoundData{Message: message})
}

func (s *Server) render(w http.ResponseWriter, status int, page, title string, content any) {
	tmpl, ok := pages[page]
	if !ok {
		s.logger.Error("unknown page template", "page", page)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	st := s.dash.State()
	data := pageData{
		Title:   title,
		State:   st,
		Banner:  st.Banner(),
		Content: content,
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		s.logger.Error("failed to render template", "page", page, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Debug("failed to write page", "page", page, "error", err)
	}
}

// templateFuncs provides custom template functions
var templateFuncs = template.FuncMap{
	"formatTime": func(ts string) string {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return "unknown"
		}
		return t.UTC().Format("2006-01-02 15:04 UTC")
	},
	"formatDuration": func(ms any) string {
		var f float64
		switch v := ms.(type) {
		case int:
			f = float64(v)
		case float64:
			f = v
		default:
			return ""
		}
		d := time.Duration(f * float64(time.Millisecond))
		if d < time.Second {
			return d.Round(time.Millisecond).String()
		}
		return d.Round(100 * time.Millisecond).String()
	},
	"statusBadge": func(status model.RunStatus) template.HTML {
		if !status.Known() {
			return template.HTML(`<span class="badge badge-secondary">` + template.HTMLEscapeString(string(status)) + `</span>`)
		}
		class := map[model.RunStatus]string{
			model.StatusPassed:  "badge-success",
			model.StatusFailed:  "badge-danger",
			model.StatusSkipped: "badge-secondary",
			model.StatusPending: "badge-warning",
			model.StatusRunning: "badge-info",
		}[status]
		return template.HTML(`<span class="badge ` + class + `">` + string(status) + `</span>`)
	},
	"rateClass": func(rate int) string {
		switch {
		case rate >= 90:
			return "rate-good"
		case rate >= 70:
			return "rate-warn"
		default:
			return "rate-bad"
		}
	},
	"truncate": func(s string, max int) string {
		if len(s) <= max {
			return s
		}
		return s[:max] + "..."
	},
}

var pages = func() map[string]*template.Template {
	base := template.Must(template.New("base").Funcs(templateFuncs).Parse(layoutTemplate))
	contents := map[string]string{
		"dashboard": dashboardTemplate,
		"project":   projectTemplate,
		"run":       runTemplate,
		"notfound":  notFoundTemplate,
	}
	out := make(map[string]*template.Template, len(contents))
	for name, content := range contents {
		out[name] = template.Must(template.Must(base.Clone()).Parse(content))
	}
	return out
}()

const layoutTemplate = `{{define "layout"}}<!DOCTYPE html>
<html lang="en" class="theme-{{.State.Theme}}">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}} | BDD Test Dashboard</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        :root { --bg: #f5f5f5; --fg: #333; --card: #fff; --muted: #7f8c8d; --head: #2c3e50; --line: #dee2e6; --accent: #3498db; }
        .theme-dark { --bg: #161b22; --fg: #d0d7de; --card: #21262d; --muted: #8b949e; --head: #0d1117; --line: #30363d; --accent: #58a6ff; }
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; background: var(--bg); color: var(--fg); line-height: 1.6; }
        .container { max-width: 1200px; margin: 0 auto; padding: 20px; }
        header { background: var(--head); color: white; padding: 16px 0; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        header .container { display: flex; justify-content: space-between; align-items: center; padding-top: 0; padding-bottom: 0; }
        header h1 { font-size: 24px; }
        header h1 a { color: white; }
        button { cursor: pointer; border: 1px solid var(--line); background: var(--card); color: var(--fg); border-radius: 4px; padding: 6px 12px; }
        .banner { padding: 10px 20px; text-align: center; font-weight: 600; }
        .banner-offline { background: #6c757d; color: white; }
        .banner-reconnecting { background: #fff3cd; color: #856404; }
        .error { background: #f8d7da; color: #721c24; padding: 12px 16px; border-radius: 8px; margin-bottom: 20px; display: flex; justify-content: space-between; align-items: center; }
        .loading { color: var(--muted); padding: 12px 0; }
        .stats { display: grid; grid-template-columns: repeat(auto-fit, minmax(180px, 1fr)); gap: 20px; margin-bottom: 30px; }
        .stat-card { background: var(--card); padding: 20px; border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        .stat-card h3 { font-size: 14px; color: var(--muted); margin-bottom: 8px; text-transform: uppercase; }
        .stat-card .value { font-size: 32px; font-weight: bold; }
        .section { background: var(--card); padding: 25px; border-radius: 8px; margin-bottom: 30px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        .section h2 { font-size: 20px; margin-bottom: 20px; border-bottom: 2px solid var(--accent); padding-bottom: 10px; }
        table { width: 100%; border-collapse: collapse; }
        th { text-align: left; padding: 12px; font-weight: 600; border-bottom: 2px solid var(--line); }
        td { padding: 12px; border-bottom: 1px solid var(--line); vertical-align: top; }
        .badge { display: inline-block; padding: 4px 8px; border-radius: 4px; font-size: 12px; font-weight: 600; text-transform: uppercase; }
        .badge-success { background: #d4edda; color: #155724; }
        .badge-danger { background: #f8d7da; color: #721c24; }
        .badge-info { background: #d1ecf1; color: #0c5460; }
        .badge-warning { background: #fff3cd; color: #856404; }
        .badge-secondary { background: #e2e3e5; color: #383d41; }
        .rate-good { color: #28a745; } .rate-warn { color: #d39e00; } .rate-bad { color: #dc3545; }
        .empty { text-align: center; padding: 40px; color: var(--muted); }
        .trend { width: 100%; height: auto; }
        .trend .grid { stroke: var(--line); } .trend .axis { fill: var(--muted); font-size: 11px; }
        .trend .line { stroke: var(--accent); stroke-width: 2; } .trend .dot { fill: var(--accent); }
        .feature { margin-bottom: 20px; } .feature h3 { margin-bottom: 8px; }
        .steps { margin: 6px 0 0 20px; list-style: none; font-size: 14px; }
        .step-error { color: #dc3545; white-space: pre-wrap; font-family: monospace; font-size: 12px; }
        a { color: var(--accent); text-decoration: none; }
        a:hover { text-decoration: underline; }
        code { padding: 2px 6px; border-radius: 3px; font-family: monospace; font-size: 13px; background: var(--bg); }
    </style>
</head>
<body>
    <header>
        <div class="container">
            <h1><a href="/">BDD Test Dashboard</a></h1>
            <button id="theme-toggle" type="button">{{if eq .State.Theme "dark"}}Light mode{{else}}Dark mode{{end}}</button>
        </div>
    </header>
    {{with .Banner.Message}}<div class="banner banner-{{$.Banner}}" role="status">{{.}}</div>{{end}}

    <div class="container">
        {{if .State.Error}}
        <div class="error" role="alert"><span>{{.State.Error}}</span><button id="retry" type="button">Retry</button></div>
        {{end}}
        {{if .State.Loading}}<div class="loading">Loading test results...</div>{{end}}
        {{template "content" .Content}}
    </div>
    <script>
    (function () {
        function post(url, body) {
            return fetch(url, {
                method: "POST",
                headers: {"Content-Type": "application/json"},
                body: body ? JSON.stringify(body) : null
            });
        }
        function reload() { window.location.reload(); }
        var toggle = document.getElementById("theme-toggle");
        if (toggle) { toggle.addEventListener("click", function () { post("/api/theme/toggle").then(reload); }); }
        var retry = document.getElementById("retry");
        if (retry) { retry.addEventListener("click", function () { post("/api/retry").then(reload); }); }
        window.addEventListener("online", function () { post("/api/connectivity", {online: true}); });
        window.addEventListener("offline", function () { post("/api/connectivity", {online: false}); });
        if (!navigator.onLine) { post("/api/connectivity", {online: false}); }
        if (window.EventSource) {
            var first = true;
            new EventSource("/api/events").addEventListener("changed", function () {
                if (first) { first = false; return; }
                reload();
            });
        }
    })();
    </script>
</body>
</html>{{end}}`

const runsTable = `{{define "runs"}}
            <table>
                <thead>
                    <tr>
                        <th>Run</th>
                        <th>Project</th>
                        <th>Status</th>
                        <th>Branch</th>
                        <th>Environment</th>
                        <th>Pass Rate</th>
                        <th>Started</th>
                        <th>Duration</th>
                    </tr>
                </thead>
                <tbody>
                    {{range .}}
                    <tr>
                        <td><a href="/project/{{.ProjectID}}/run/{{.ID}}"><code>{{truncate .ID 12}}</code></a></td>
                        <td><a href="/project/{{.ProjectID}}">{{.ProjectID}}</a></td>
                        <td>{{statusBadge .Status}}</td>
                        <td>{{.Branch}}</td>
                        <td>{{.Environment}}</td>
                        <td class="{{rateClass .Summary.PassRate}}">{{.Summary.PassRate}}% ({{.Summary.Passed}}/{{.Summary.Total}})</td>
                        <td>{{formatTime .Timestamp}}</td>
                        <td>{{formatDuration .Duration}}</td>
                    </tr>
                    {{end}}
                </tbody>
            </table>
{{end}}`

const trendSection = `{{define "trend"}}
        <div class="section">
            <h2>Pass Rate Trend</h2>
            {{if .}}{{.}}{{else}}
            <div class="empty">Not enough data for a trend yet. Runs from at least two different days are needed.</div>
            {{end}}
        </div>
{{end}}`

const dashboardTemplate = runsTable + trendSection + `{{define "content"}}
        <div class="stats">
            <div class="stat-card"><h3>Projects</h3><div class="value">{{.Stats.Projects}}</div></div>
            <div class="stat-card"><h3>Test Runs</h3><div class="value">{{.Stats.Runs}}</div></div>
            <div class="stat-card"><h3>Pass Rate</h3><div class="value {{rateClass .Stats.PassRate}}">{{.Stats.PassRate}}%</div></div>
            <div class="stat-card"><h3>Failed Runs</h3><div class="value">{{.Stats.FailedRuns}}</div></div>
            <div class="stat-card"><h3>Avg Duration</h3><div class="value">{{formatDuration .Stats.AvgDuration}}</div></div>
        </div>

        {{template "trend" .Chart}}

        <div class="section">
            <h2>Projects ({{len .Projects}})</h2>
            {{if .Projects}}
            <table>
                <thead>
                    <tr>
                        <th>Project</th>
                        <th>Description</th>
                        <th>Runs</th>
                        <th>Latest Status</th>
                        <th>Latest Pass Rate</th>
                        <th>Latest Run</th>
                    </tr>
                </thead>
                <tbody>
                    {{range .Projects}}
                    <tr>
                        <td><a href="/project/{{.Project.ID}}">{{.Project.Name}}</a></td>
                        <td>{{.Project.Description}}</td>
                        <td>{{.Runs}}</td>
                        {{with .Latest}}
                        <td>{{statusBadge .Status}}</td>
                        <td class="{{rateClass .Summary.PassRate}}">{{.Summary.PassRate}}%</td>
                        <td>{{formatTime .Timestamp}}</td>
                        {{else}}
                        <td colspan="3" class="empty">No runs yet</td>
                        {{end}}
                    </tr>
                    {{end}}
                </tbody>
            </table>
            {{else}}
            <div class="empty">No projects found</div>
            {{end}}
        </div>

        <div class="section">
            <h2>Recent Runs</h2>
            {{if .Recent}}{{template "runs" .Recent}}{{else}}<div class="empty">No test runs yet</div>{{end}}
        </div>
{{end}}`

const projectTemplate = runsTable + trendSection + `{{define "content"}}
        <p><a href="/">&larr; All projects</a></p>
        <div class="section">
            <h2>{{.Project.Name}}</h2>
            {{with .Project.Description}}<p>{{.}}</p>{{end}}
        </div>

        <div class="stats">
            <div class="stat-card"><h3>Test Runs</h3><div class="value">{{.Stats.Runs}}</div></div>
            <div class="stat-card"><h3>Pass Rate</h3><div class="value {{rateClass .Stats.PassRate}}">{{.Stats.PassRate}}%</div></div>
            <div class="stat-card"><h3>Scenarios</h3><div class="value">{{.Stats.Scenarios}}</div></div>
            <div class="stat-card"><h3>Failed Runs</h3><div class="value">{{.Stats.FailedRuns}}</div></div>
        </div>

        {{template "trend" .Chart}}

        <div class="section">
            <h2>Runs ({{len .Runs}})</h2>
            {{if .Runs}}{{template "runs" .Runs}}{{else}}<div class="empty">No test runs for this project yet</div>{{end}}
        </div>
{{end}}`

const runTemplate = `{{define "content"}}
        <p><a href="/project/{{.Project.ID}}">&larr; {{.Project.Name}}</a></p>
        {{with .Run}}
        <div class="section">
            <h2>Run <code>{{.ID}}</code> {{statusBadge .Status}}</h2>
            <table>
                <tr><th>Started</th><td>{{formatTime .Timestamp}}</td></tr>
                <tr><th>Duration</th><td>{{formatDuration .Duration}}</td></tr>
                <tr><th>Branch</th><td>{{.Branch}}</td></tr>
                <tr><th>Environment</th><td>{{.Environment}}</td></tr>
                {{with .Commit}}<tr><th>Commit</th><td><code>{{.}}</code></td></tr>{{end}}
                {{with .Trigger}}<tr><th>Trigger</th><td>{{.}}</td></tr>{{end}}
            </table>
        </div>

        <div class="stats">
            <div class="stat-card"><h3>Scenarios</h3><div class="value">{{.Summary.Total}}</div></div>
            <div class="stat-card"><h3>Passed</h3><div class="value rate-good">{{.Summary.Passed}}</div></div>
            <div class="stat-card"><h3>Failed</h3><div class="value rate-bad">{{.Summary.Failed}}</div></div>
            <div class="stat-card"><h3>Skipped</h3><div class="value">{{.Summary.Skipped}}</div></div>
            <div class="stat-card"><h3>Pass Rate</h3><div class="value {{rateClass .Summary.PassRate}}">{{.Summary.PassRate}}%</div></div>
        </div>

        <div class="section">
            <h2>Features ({{len .Features}})</h2>
            {{range .Features}}
            <div class="feature">
                <h3>{{.Name}} {{statusBadge .Status}}</h3>
                {{with .Description}}<p>{{.}}</p>{{end}}
                {{range .Tags}}<code>{{.}}</code> {{end}}
                {{if .Scenarios}}
                <table>
                    <tbody>
                        {{range .Scenarios}}
                        <tr>
                            <td>{{statusBadge .Status}}</td>
                            <td>
                                {{.Name}}
                                {{if .Steps}}
                                <ul class="steps">
                                    {{range .Steps}}
                                    <li>{{statusBadge .Status}} <strong>{{.Keyword}}</strong> {{.Text}}{{with .Error}}<div class="step-error">{{.}}</div>{{end}}</li>
                                    {{end}}
                                </ul>
                                {{end}}
                            </td>
                            <td>{{formatDuration .Duration}}</td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
                {{end}}
            </div>
            {{else}}
            <div class="empty">This run has no feature details</div>
            {{end}}
        </div>
        {{end}}
{{end}}`

const notFoundTemplate = `{{define "content"}}
        <div class="section">
            <h2>Page not found</h2>
            <p>{{.Message}}</p>
            <p><a href="/">Back to the dashboard</a></p>
        </div>
{{end}}`
