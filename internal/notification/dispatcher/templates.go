package dispatcher

import (
	"fmt"
	"strings"
)

type template struct {
	Title string
	Body  string
}

// Template keys: event type plus the recipient's role in it.
const (
	tmplStatusTenant     = "status_changed.tenant"
	tmplStatusWorker     = "status_changed.worker"
	tmplAssignedTenant   = "assignment_changed.tenant"
	tmplUnassignedTenant = "assignment_changed.tenant_unassigned"
	tmplAssignedWorker   = "assignment_changed.worker"
	tmplUnassignedWorker = "assignment_changed.previous_worker"
)

var templates = map[string]template{
	tmplStatusTenant: {
		Title: "Request {{code}} is now {{status}}",
		Body:  "Your request \"{{title}}\" at {{property}} moved from {{fromStatus}} to {{status}}. {{comment}}",
	},
	tmplStatusWorker: {
		Title: "Job {{code}} is now {{status}}",
		Body:  "The job \"{{title}}\" at {{property}} moved from {{fromStatus}} to {{status}}. {{comment}}",
	},
	tmplAssignedTenant: {
		Title: "{{worker}} will handle request {{code}}",
		Body:  "Your request \"{{title}}\" at {{property}} has been assigned to {{worker}}.",
	},
	tmplUnassignedTenant: {
		Title: "Request {{code}} is awaiting a new worker",
		Body:  "{{previousWorker}} is no longer assigned to your request \"{{title}}\". We will let you know once someone new takes it on.",
	},
	tmplAssignedWorker: {
		Title: "New job {{code}} ({{priority}})",
		Body:  "You have been assigned \"{{title}}\" at {{property}}. Priority: {{priority}}.",
	},
	tmplUnassignedWorker: {
		Title: "Job {{code}} reassigned",
		Body:  "You are no longer assigned to \"{{title}}\" at {{property}}.",
	},
}

// renderTemplate replaces {{key}} placeholders from data in a single pass
// over tmpl, so substituted values are never scanned again. Placeholders with
// no value are removed; an unterminated "{{" is kept as is.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	var b strings.Builder
	b.Grow(len(tmpl))

	rest := tmpl
	for {
		start := strings.Index(rest, "{{")
		if start == -1 {
			b.WriteString(rest)
			break
		}
		end := strings.Index(rest[start+2:], "}}")
		if end == -1 {
			b.WriteString(rest)
			break
		}

		b.WriteString(rest[:start])
		key := rest[start+2 : start+2+end]
		switch v := data[key].(type) {
		case nil:
		case string:
			b.WriteString(v)
		default:
			b.WriteString(fmt.Sprintf("%v", v))
		}
		rest = rest[start+2+end+2:]
	}

	return strings.TrimSpace(b.String())
}
