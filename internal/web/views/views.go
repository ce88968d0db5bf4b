// Package views renders the HTML pages and HTMX fragments served by the web
// package. Components are plain templ.Components so handlers render them the
// same way as generated templates.
package views

import (
	"context"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/wabatch/internal/core"
)

// html accumulates markup and remembers the first write error.
type html struct {
	w   io.Writer
	err error
}

func (h *html) raw(parts ...string) {
	for _, p := range parts {
		if h.err != nil {
			return
		}
		_, h.err = io.WriteString(h.w, p)
	}
}

func (h *html) text(s string) {
	h.raw(templ.EscapeString(s))
}

func (h *html) render(ctx context.Context, c templ.Component) {
	if h.err != nil {
		return
	}
	h.err = c.Render(ctx, h.w)
}

func contactURL(name string) string {
	return string(templ.URL("/contacts/" + url.PathEscape(name)))
}

func downloadURL(name string) string {
	return string(templ.URL("/api/contacts/" + url.PathEscape(name) + "/download"))
}

func page(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`,
			`<meta name="viewport" content="width=device-width, initial-scale=1">`,
			`<title>`)
		h.text(title)
		h.raw(`</title><style>`, pageStyle, `</style></head><body><main>`)
		h.render(ctx, body)
		h.raw(`</main></body></html>`)
		return h.err
	})
}

const pageStyle = `body{font-family:system-ui,sans-serif;margin:0;background:#f6f7f9;color:#1f2328}` +
	`main{max-width:1100px;margin:0 auto;padding:24px}` +
	`table{border-collapse:collapse;width:100%;background:#fff}` +
	`th,td{border:1px solid #d0d7de;padding:6px 8px;text-align:left;font-size:14px}` +
	`th{background:#eef1f4}.alert{border:1px solid #cf222e;background:#ffebe9;padding:12px;border-radius:6px}` +
	`.muted{color:#656d76;font-size:13px}.files li{margin:6px 0}`

// ErrorAlert is the fragment returned to HTMX requests that failed.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<div class="alert" role="alert"><strong>`)
		h.text(message)
		h.raw(`</strong>`)
		if action != "" {
			h.raw(`<p>`)
			h.text(action)
			h.raw(`</p>`)
		}
		if code != "" {
			h.raw(`<p class="muted">Error code: <code>`)
			h.text(code)
			h.raw(`</code></p>`)
		}
		h.raw(`</div>`)
		return h.err
	})
}

// ContactDetailsData feeds the contact details page. File is nil when the
// file could not be loaded, in which case LoadError says why.
type ContactDetailsData struct {
	File      *core.ContactFile
	Preview   core.Preview
	LoadError string
}

// ContactDetails shows a stored contacts file with its full content.
func ContactDetails(data ContactDetailsData) templ.Component {
	title := "Contacts file"
	if data.File != nil {
		title = data.File.DisplayName
	}
	return page(title, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<p><a href="/">Back</a></p>`)

		if data.File == nil {
			h.render(ctx, ErrorAlert(data.LoadError, "", ""))
			return h.err
		}

		f := data.File
		h.raw(`<h1>`)
		h.text(f.DisplayName)
		h.raw(`</h1>`)
		if f.Description != "" {
			h.raw(`<p>`)
			h.text(f.Description)
			h.raw(`</p>`)
		}
		h.raw(`<p class="muted">`)
		h.text(f.Name + " · " + f.SizeLabel + " · modified " + f.ModifiedAt)
		h.raw(` · <a href="`, templ.EscapeString(downloadURL(f.Name)), `">Download</a></p>`)

		h.render(ctx, PreviewTable(data.Preview))
		return h.err
	}))
}

// PreviewTable renders a contacts preview as a table with a size summary.
func PreviewTable(p core.Preview) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<p class="muted">`)
		h.text(previewSummary(p))
		h.raw(`</p>`)
		if len(p.Headers) == 0 {
			return h.err
		}

		h.raw(`<table><thead><tr>`)
		for _, header := range p.Headers {
			h.raw(`<th>`)
			h.text(header)
			h.raw(`</th>`)
		}
		h.raw(`</tr></thead><tbody>`)
		for _, row := range p.Rows {
			h.raw(`<tr>`)
			for _, cell := range row {
				h.raw(`<td>`)
				h.text(cell)
				h.raw(`</td>`)
			}
			h.raw(`</tr>`)
		}
		h.raw(`</tbody></table>`)
		return h.err
	})
}

func previewSummary(p core.Preview) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(p.DisplayedRows) + " of " + strconv.Itoa(p.TotalRows) + " rows, ")
	b.WriteString(strconv.Itoa(p.DisplayedColumns) + " of " + strconv.Itoa(p.TotalColumns) + " columns")
	if p.Truncated {
		b.WriteString(" (truncated)")
	}
	return b.String()
}

// IndexData feeds the home page.
type IndexData struct {
	CountryCode     string
	MessageTemplate string
	Files           []core.ContactFile
	Selected        string
}

// Index is the send form with the stored contacts files.
func Index(data IndexData) templ.Component {
	return page("WhatsApp batch sender", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<h1>WhatsApp batch sender</h1>`,
			`<form method="post" action="/api/send" enctype="multipart/form-data">`,
			`<p><label>Phone <input name="phone" placeholder="`)
		h.text("+" + data.CountryCode + " ...")
		h.raw(`"></label></p>`,
			`<p><label>Message<br><textarea name="message" rows="5" cols="60">`)
		h.text(data.MessageTemplate)
		h.raw(`</textarea></label></p>`,
			`<p><label>Media <input type="file" name="media"></label></p>`,
			`<p><label>Contacts file <input type="file" name="contacts_file" accept=".csv,.xlsx,.xlsm,.xltx,.xltm"></label></p>`,
			`<p><label>Saved contacts <select name="existing_contacts_file"><option value="">None</option>`)
		for _, f := range data.Files {
			h.raw(`<option value="`, templ.EscapeString(f.Name), `"`)
			if f.Name == data.Selected {
				h.raw(` selected`)
			}
			h.raw(`>`)
			h.text(f.DisplayName)
			h.raw(`</option>`)
		}
		h.raw(`</select></label></p><p><button type="submit">Send</button></p></form>`)

		h.raw(`<h2>Saved contacts files</h2>`)
		if len(data.Files) == 0 {
			h.raw(`<p class="muted">No contacts files uploaded yet.</p>`)
			return h.err
		}
		h.raw(`<ul class="files">`)
		for _, f := range data.Files {
			h.raw(`<li><a href="`, templ.EscapeString(contactURL(f.Name)), `">`)
			h.text(f.DisplayName)
			h.raw(`</a> <span class="muted">`)
			h.text(f.SizeLabel + " · " + f.ModifiedAt)
			h.raw(`</span></li>`)
		}
		h.raw(`</ul>`)
		return h.err
	}))
}
