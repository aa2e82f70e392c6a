package ui

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/me/flakeci/pkg/model"
)

// Template functions available in all templates.
var templateFuncs = template.FuncMap{
	"formatTime": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Format("2006-01-02 15:04:05")
	},
	"formatTimePtr": func(t *time.Time) string {
		if t == nil || t.IsZero() {
			return "-"
		}
		return t.Format("2006-01-02 15:04:05")
	},
	"since": func(t *time.Time) string {
		if t == nil || t.IsZero() {
			return "never"
		}
		return time.Since(*t).Round(time.Second).String() + " ago"
	},
	"formatMillis": func(ms any) string {
		switch v := ms.(type) {
		case *int64:
			if v == nil {
				return "-"
			}
			return (time.Duration(*v) * time.Millisecond).String()
		case int64:
			return (time.Duration(v) * time.Millisecond).String()
		}
		return "-"
	},
	"formatInterval": func(d, fallback time.Duration) string {
		if d <= 0 {
			return fallback.String() + " (default)"
		}
		return d.String()
	},
	"stateColor": func(state any) string {
		switch strings.ToUpper(fmt.Sprint(state)) {
		case "QUEUED":
			return "yellow"
		case "EVALUATING":
			return "blue"
		case "SUCCEEDED", "SUCCESS":
			return "green"
		case "FAILED", "FAILURE":
			return "red"
		default:
			return "gray"
		}
	},
	"stateDotColor": func(state any) string {
		// Tailwind bg color classes for state dots
		switch strings.ToUpper(fmt.Sprint(state)) {
		case "QUEUED":
			return "bg-yellow-500"
		case "EVALUATING":
			return "bg-blue-500 animate-pulse"
		case "SUCCEEDED", "SUCCESS":
			return "bg-green-500"
		case "FAILED", "FAILURE":
			return "bg-red-500"
		default:
			return "bg-gray-300"
		}
	},
	"builtTargets": func(ev *model.Evaluation) int {
		n := 0
		for _, t := range ev.Targets {
			if t.Succeeded() {
				n++
			}
		}
		return n
	},
	"failedTargets": func(ev *model.Evaluation) int {
		n := 0
		for _, t := range ev.Targets {
			if !t.Succeeded() {
				n++
			}
		}
		return n
	},
	"add": func(a, b int) int {
		return a + b
	},
	"truncate": func(s string, n int) string {
		if len(s) <= n {
			return s
		}
		return s[:n] + "..."
	},
}

// renderTemplate renders a template with the given data.
func renderTemplate(w io.Writer, name string, data map[string]any) error {
	content, ok := templates[name]
	if !ok {
		return fmt.Errorf("template not found: %s", name)
	}

	layout, ok := templates["layout"]
	if !ok {
		return fmt.Errorf("layout template not found")
	}

	tmpl, err := template.New("layout").Funcs(templateFuncs).Parse(layout)
	if err != nil {
		return fmt.Errorf("parse layout: %w", err)
	}

	if _, err = tmpl.New("content").Parse(content); err != nil {
		return fmt.Errorf("parse content: %w", err)
	}

	// Add shared components.
	for compName, compContent := range templates {
		if strings.HasPrefix(compName, "components/") {
			if _, err = tmpl.New(compName).Parse(compContent); err != nil {
				return fmt.Errorf("parse component %s: %w", compName, err)
			}
		}
	}

	return tmpl.Execute(w, data)
}

// templates holds all template content.
var templates = map[string]string{
	"layout": `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <script src="https://cdn.tailwindcss.com"></script>
</head>
<body class="bg-gray-50 min-h-screen">
    <nav class="bg-white shadow-sm border-b">
        <div class="max-w-7xl mx-auto px-4 sm:px-6 lg:px-8">
            <div class="flex h-16">
                <a href="/" class="flex items-center px-2 py-2 text-xl font-bold text-indigo-600">flakeci</a>
                <div class="hidden sm:ml-6 sm:flex sm:space-x-8">
                    <a href="/" class="border-transparent text-gray-500 hover:border-gray-300 hover:text-gray-700 inline-flex items-center px-1 pt-1 border-b-2 text-sm font-medium">
                        Dashboard
                    </a>
                    <a href="/api/v1/" class="border-transparent text-gray-500 hover:border-gray-300 hover:text-gray-700 inline-flex items-center px-1 pt-1 border-b-2 text-sm font-medium">
                        API
                    </a>
                </div>
            </div>
        </div>
    </nav>

    <main class="max-w-7xl mx-auto py-6 sm:px-6 lg:px-8">
        {{template "content" .}}
    </main>
</body>
</html>`,

	"components/state_badge": `{{define "state_badge"}}
<span class="inline-flex items-center px-2.5 py-0.5 rounded-full text-xs font-medium bg-{{stateColor .}}-100 text-{{stateColor .}}-800">
    <span class="w-2 h-2 mr-1.5 rounded-full {{stateDotColor .}}"></span>{{.}}
</span>
{{end}}`,

	"components/pagination": `{{define "pagination"}}
{{if or .HasPrev .HasMore}}
<div class="flex items-center justify-between px-4 py-3 border-t">
    <p class="text-sm text-gray-700">Showing {{add .Offset 1}} to {{if .HasMore}}{{.NextOffset}}{{else}}{{.Total}}{{end}} of {{.Total}}</p>
    <div class="space-x-2">
        {{if .HasPrev}}<a href="?offset={{.PrevOffset}}&limit={{.Limit}}" class="text-sm text-indigo-600 hover:text-indigo-900">Previous</a>{{end}}
        {{if .HasMore}}<a href="?offset={{.NextOffset}}&limit={{.Limit}}" class="text-sm text-indigo-600 hover:text-indigo-900">Next</a>{{end}}
    </div>
</div>
{{end}}
{{end}}`,

	"dashboard": `{{define "content"}}
<div class="px-4 py-6 sm:px-0">
    <div class="mb-8">
        <h1 class="text-2xl font-semibold text-gray-900">Dashboard</h1>
        <p class="mt-1 text-sm text-gray-500">Up {{.Uptime}}</p>
    </div>

    <div class="grid grid-cols-1 gap-5 sm:grid-cols-2 lg:grid-cols-4 mb-8">
        <div class="bg-white overflow-hidden shadow rounded-lg p-5">
            <dt class="text-sm font-medium text-gray-500 truncate">Jobsets</dt>
            <dd class="mt-1 text-3xl font-semibold text-gray-900">{{.Totals.Jobsets}}</dd>
        </div>
        <div class="bg-white overflow-hidden shadow rounded-lg p-5">
            <dt class="text-sm font-medium text-gray-500 truncate">Evaluating now</dt>
            <dd class="mt-1 text-3xl font-semibold text-blue-600">{{.Running}}</dd>
        </div>
        <div class="bg-white overflow-hidden shadow rounded-lg p-5">
            <dt class="text-sm font-medium text-gray-500 truncate">Succeeded</dt>
            <dd class="mt-1 text-3xl font-semibold text-green-600">{{.Totals.Succeeded}}</dd>
        </div>
        <div class="bg-white overflow-hidden shadow rounded-lg p-5">
            <dt class="text-sm font-medium text-gray-500 truncate">Failed</dt>
            <dd class="mt-1 text-3xl font-semibold text-red-600">{{.Totals.Failed}}</dd>
        </div>
    </div>

    <div class="bg-white shadow rounded-lg">
        <div class="px-4 py-5 border-b border-gray-200 sm:px-6">
            <h3 class="text-lg leading-6 font-medium text-gray-900">Projects</h3>
        </div>
        {{if .Projects}}
        <table class="min-w-full divide-y divide-gray-200">
            <thead class="bg-gray-50">
                <tr>
                    <th class="px-6 py-3 text-left text-xs font-medium text-gray-500 uppercase">Name</th>
                    <th class="px-6 py-3 text-left text-xs font-medium text-gray-500 uppercase">Description</th>
                    <th class="px-6 py-3 text-right text-xs font-medium text-gray-500 uppercase">Jobsets</th>
                    <th class="px-6 py-3 text-right text-xs font-medium text-gray-500 uppercase">In flight</th>
                    <th class="px-6 py-3 text-right text-xs font-medium text-gray-500 uppercase">Failed</th>
                </tr>
            </thead>
            <tbody class="bg-white divide-y divide-gray-200">
                {{range .Projects}}
                <tr>
                    <td class="px-6 py-4 text-sm font-medium"><a href="/projects/{{.Project.ID}}" class="text-indigo-600 hover:text-indigo-900">{{.Project.Name}}</a></td>
                    <td class="px-6 py-4 text-sm text-gray-500">{{truncate .Project.Description 80}}</td>
                    <td class="px-6 py-4 text-sm text-right">{{.Jobsets}}</td>
                    <td class="px-6 py-4 text-sm text-right text-blue-600">{{.InFlight}}</td>
                    <td class="px-6 py-4 text-sm text-right text-red-600">{{.Failed}}</td>
                </tr>
                {{end}}
            </tbody>
        </table>
        {{else}}
        <p class="px-6 py-4 text-sm text-gray-500">No projects yet. Create one with <code>flakectl create-project</code>.</p>
        {{end}}
    </div>
</div>
{{end}}`,

	"projects/detail": `{{define "content"}}
<div class="px-4 py-6 sm:px-0">
    <div class="mb-8">
        <h1 class="text-2xl font-semibold text-gray-900">{{.Project.Name}}</h1>
        {{if .Project.Description}}<p class="mt-1 text-sm text-gray-500">{{.Project.Description}}</p>{{end}}
    </div>

    <div class="bg-white shadow rounded-lg">
        {{if .Jobsets}}
        <table class="min-w-full divide-y divide-gray-200">
            <thead class="bg-gray-50">
                <tr>
                    <th class="px-6 py-3 text-left text-xs font-medium text-gray-500 uppercase">Jobset</th>
                    <th class="px-6 py-3 text-left text-xs font-medium text-gray-500 uppercase">State</th>
                    <th class="px-6 py-3 text-left text-xs font-medium text-gray-500 uppercase">Flake</th>
                    <th class="px-6 py-3 text-left text-xs font-medium text-gray-500 uppercase">Last checked</th>
                    <th class="px-6 py-3 text-left text-xs font-medium text-gray-500 uppercase">Took</th>
                    <th class="px-6 py-3 text-left text-xs font-medium text-gray-500 uppercase">Interval</th>
                </tr>
            </thead>
            <tbody class="bg-white divide-y divide-gray-200">
                {{range .Jobsets}}
                <tr>
                    <td class="px-6 py-4 text-sm font-medium"><a href="/jobsets/{{.ID}}" class="text-indigo-600 hover:text-indigo-900">{{.Name}}</a></td>
                    <td class="px-6 py-4 text-sm">{{template "state_badge" .State}}</td>
                    <td class="px-6 py-4 text-sm font-mono text-gray-700">{{truncate .Flake 60}}</td>
                    <td class="px-6 py-4 text-sm text-gray-500">{{since .LastChecked}}</td>
                    <td class="px-6 py-4 text-sm text-gray-500">{{formatMillis .EvaluationTook}}</td>
                    <td class="px-6 py-4 text-sm text-gray-500">{{formatInterval .CheckInterval $.DefaultInterval}}</td>
                </tr>
                {{end}}
            </tbody>
        </table>
        {{else}}
        <p class="px-6 py-4 text-sm text-gray-500">This project has no jobsets.</p>
        {{end}}
    </div>
</div>
{{end}}`,

	"jobsets/detail": `{{define "content"}}
<div class="px-4 py-6 sm:px-0">
    <div class="mb-8">
        <p class="text-sm text-gray-500">{{if .Project}}<a href="/projects/{{.Project.ID}}" class="text-indigo-600 hover:text-indigo-900">{{.Project.Name}}</a> / {{end}}jobset {{.Jobset.ID}}</p>
        <h1 class="text-2xl font-semibold text-gray-900">{{.Jobset.Name}} {{template "state_badge" .Jobset.State}}</h1>
        {{if .Jobset.Description}}<p class="mt-1 text-sm text-gray-500">{{.Jobset.Description}}</p>{{end}}
    </div>

    <div class="bg-white shadow rounded-lg mb-8">
        <dl class="grid grid-cols-1 gap-x-4 gap-y-6 sm:grid-cols-3 px-6 py-5">
            <div><dt class="text-sm font-medium text-gray-500">Flake</dt><dd class="mt-1 text-sm font-mono text-gray-900">{{.Jobset.Flake}}</dd></div>
            <div><dt class="text-sm font-medium text-gray-500">Check interval</dt><dd class="mt-1 text-sm text-gray-900">{{.Interval}}</dd></div>
            <div><dt class="text-sm font-medium text-gray-500">Next check</dt><dd class="mt-1 text-sm text-gray-900">{{if .NextCheck}}{{formatTimePtr .NextCheck}}{{else if .Jobset.State.InFlight}}in progress{{else}}next scheduler tick{{end}}</dd></div>
            <div><dt class="text-sm font-medium text-gray-500">Last checked</dt><dd class="mt-1 text-sm text-gray-900">{{formatTimePtr .Jobset.LastChecked}}</dd></div>
            <div><dt class="text-sm font-medium text-gray-500">Last evaluated</dt><dd class="mt-1 text-sm text-gray-900">{{formatTimePtr .Jobset.LastEvaluated}}</dd></div>
            <div><dt class="text-sm font-medium text-gray-500">Evaluation took</dt><dd class="mt-1 text-sm text-gray-900">{{formatMillis .Jobset.EvaluationTook}}</dd></div>
        </dl>
    </div>

    <div class="bg-white shadow rounded-lg">
        <div class="px-4 py-5 border-b border-gray-200 sm:px-6">
            <h3 class="text-lg leading-6 font-medium text-gray-900">Evaluations</h3>
        </div>
        {{if .Evaluations}}
        <table class="min-w-full divide-y divide-gray-200">
            <thead class="bg-gray-50">
                <tr>
                    <th class="px-6 py-3 text-left text-xs font-medium text-gray-500 uppercase">#</th>
                    <th class="px-6 py-3 text-left text-xs font-medium text-gray-500 uppercase">Started</th>
                    <th class="px-6 py-3 text-left text-xs font-medium text-gray-500 uppercase">Outcome</th>
                    <th class="px-6 py-3 text-left text-xs font-medium text-gray-500 uppercase">Took</th>
                    <th class="px-6 py-3 text-right text-xs font-medium text-gray-500 uppercase">Built</th>
                    <th class="px-6 py-3 text-right text-xs font-medium text-gray-500 uppercase">Failed</th>
                    <th class="px-6 py-3 text-left text-xs font-medium text-gray-500 uppercase">Error</th>
                </tr>
            </thead>
            <tbody class="bg-white divide-y divide-gray-200">
                {{range .Evaluations}}
                <tr>
                    <td class="px-6 py-4 text-sm text-gray-500">{{.ID}}</td>
                    <td class="px-6 py-4 text-sm text-gray-500">{{formatTime .StartedAt}}</td>
                    <td class="px-6 py-4 text-sm">{{template "state_badge" .Outcome}}</td>
                    <td class="px-6 py-4 text-sm text-gray-500">{{formatMillis .DurationMS}}</td>
                    <td class="px-6 py-4 text-sm text-right text-green-600">{{builtTargets .}}</td>
                    <td class="px-6 py-4 text-sm text-right text-red-600">{{failedTargets .}}</td>
                    <td class="px-6 py-4 text-sm font-mono text-red-700">{{truncate .Error 120}}</td>
                </tr>
                {{end}}
            </tbody>
        </table>
        {{template "pagination" .Pagination}}
        {{else}}
        <p class="px-6 py-4 text-sm text-gray-500">Not evaluated yet.</p>
        {{end}}
    </div>
</div>
{{end}}`,

	"error": `{{define "content"}}
<div class="px-4 py-16 sm:px-0 text-center">
    <h1 class="text-2xl font-semibold text-gray-900">{{.Message}}</h1>
    <p class="mt-4"><a href="/" class="text-indigo-600 hover:text-indigo-900">Back to dashboard</a></p>
</div>
{{end}}`,
}
