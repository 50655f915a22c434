// Package document compiles a normalized form configuration into a single
// self-contained HTML booking page.
//
// Markup is built from typed element descriptors and rendered with
// golang.org/x/net/html. Interactive elements get a data-bind index during
// the build pass; the resulting event table, the configuration and the busy
// slot snapshot are embedded as JSON for the client controller.
package document

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/net/html"

	"yoyaku/internal/formconfig"
)

// LiffSDK is the only external script the page loads.
const LiffSDK = "https://static.line-scdn.net/liff/edge/2/sdk.js"

// Element ids of the embedded data blocks.
const (
	ConfigScriptID   = "booking-config"
	BusyScriptID     = "booking-busy"
	BindingsScriptID = "booking-bindings"
)

//go:embed assets/wizard.js assets/style.css
var assets embed.FS

var (
	ErrNilConfig   = errors.New("nil form config")
	ErrUnnamedForm = errors.New("form config has no form name")
)

// Assemble renders cfg into an HTML document. busy lists slots ("2006-01-02
// 15:04") the calendar must show as taken. Output depends only on the
// arguments, so an unchanged form produces identical bytes.
func Assemble(cfg *formconfig.FormConfig, busy []string) ([]byte, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if cfg.BasicInfo.FormName == "" {
		return nil, ErrUnnamedForm
	}

	script, err := assets.ReadFile("assets/wizard.js")
	if err != nil {
		return nil, fmt.Errorf("read client script: %w", err)
	}
	css, err := assets.ReadFile("assets/style.css")
	if err != nil {
		return nil, fmt.Errorf("read stylesheet: %w", err)
	}

	p := &pass{}
	headNode := head(cfg, css).build(p)
	bodyNode := body(cfg).build(p)

	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode form config: %w", err)
	}
	busyJSON, err := json.Marshal(sortedUnique(busy))
	if err != nil {
		return nil, fmt.Errorf("encode busy slots: %w", err)
	}
	bindings := p.bindings
	if bindings == nil {
		bindings = []Binding{}
	}
	bindingsJSON, err := json.Marshal(bindings)
	if err != nil {
		return nil, fmt.Errorf("encode bindings: %w", err)
	}

	for _, n := range []Node{
		dataScript(ConfigScriptID, configJSON),
		dataScript(BusyScriptID, busyJSON),
		dataScript(BindingsScriptID, bindingsJSON),
		E("script", Raw(script)),
	} {
		bodyNode.AppendChild(n.build(p))
	}
	if p.err != nil {
		return nil, fmt.Errorf("build document: %w", p.err)
	}

	root := E("html").Attr("lang", "ja").build(p)
	root.AppendChild(headNode)
	root.AppendChild(bodyNode)

	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})
	doc.AppendChild(root)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, fmt.Errorf("render document: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func head(cfg *formconfig.FormConfig, css []byte) *Element {
	accent := cfg.BasicInfo.ThemeColor
	if !formconfig.ValidThemeColor(accent) {
		accent = formconfig.DefaultThemeColor
	}
	h := E("head",
		E("meta").Attr("charset", "utf-8"),
		E("meta").Attr("name", "viewport").Attr("content", "width=device-width, initial-scale=1"),
		E("title", Text(cfg.BasicInfo.FormName)),
		E("style", Raw(":root{--accent:"+accent+";}\n"+string(css))),
	)
	if cfg.BasicInfo.LiffID != "" {
		h.Add(E("script").Attr("src", LiffSDK).Attr("charset", "utf-8"))
	}
	return h
}

func body(cfg *formconfig.FormConfig) *Element {
	page := E("main",
		header(cfg),
		repeatBlock(cfg),
		textInput("customer-name", "お名前", "text", "name", "name"),
		textInput("customer-phone", "電話番号", "tel", "phone", "tel"),
		choiceBlock(cfg.GenderSelection, "customer-gender", "性別", "gender"),
		choiceBlock(cfg.VisitCountSelection, "customer-visit-count", "来店回数", "visit_count"),
		choiceBlock(cfg.CouponSelection, "customer-coupon", "クーポン", "coupon"),
		menuBlock(cfg),
		dateTimeBlock(cfg),
	).Class("booking").ID("booking")
	page.Add(customFieldsBlock(cfg.CustomFields)...)
	page.Add(messageBlock(), summaryBlock(cfg.UISettings))
	page.Add(submitBlock(cfg.UISettings)...)
	return E("body", page)
}

func dataScript(id string, data []byte) Node {
	return E("script", Raw(data)).Attr("type", "application/json").ID(id)
}

func sortedUnique(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
