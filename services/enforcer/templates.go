package enforcer

import "html/template"

type identityView struct {
	Name        string
	RoleLabel   string
	Admin       bool
	SignOutPath string
	ConfirmText string
}

type bannerView struct {
	Contact string
}

var identityHeaderTmpl = template.Must(template.New("identity-header").Parse(
	`<div id="pageguard-user" style="display: flex; align-items: center; gap: 12px; background: rgba(255,255,255,0.15); padding: 8px 16px; border-radius: 20px; margin-left: auto; backdrop-filter: blur(10px);">` +
		`<span style="font-size: 1.5em;">{{if .Admin}}👑{{else}}👤{{end}}</span>` +
		`<div style="text-align: left; line-height: 1.3;">` +
		`<div class="pageguard-user-name" style="font-size: 0.85em; font-weight: 600; color: white;">{{.Name}}</div>` +
		`<div class="pageguard-user-role" style="font-size: 0.7em; color: {{if .Admin}}#fbbf24{{else}}#60a5fa{{end}};">{{.RoleLabel}}</div>` +
		`</div>` +
		`<form method="post" action="{{.SignOutPath}}" onsubmit="return confirm({{.ConfirmText}});" style="margin: 0;">` +
		`<input type="hidden" name="confirm" value="yes">` +
		`<button class="pageguard-signout" style="background: #dc2626; color: white; border: none; padding: 6px 14px; border-radius: 8px; cursor: pointer; font-size: 0.8em; font-weight: 600;">🚪 Sign out</button>` +
		`</form>` +
		`</div>`))

var identityOverlayTmpl = template.Must(template.New("identity-overlay").Parse(
	`<div id="pageguard-user" style="position: fixed; top: 20px; right: 20px; z-index: 999998; background: linear-gradient(135deg, #1e3c72 0%, #2a5298 100%); color: white; padding: 12px 20px; border-radius: 15px; box-shadow: 0 8px 24px rgba(0,0,0,0.3); display: flex; align-items: center; gap: 12px;">` +
		`<span style="font-size: 1.5em;">{{if .Admin}}👑{{else}}👤{{end}}</span>` +
		`<div style="text-align: left; line-height: 1.3;">` +
		`<div class="pageguard-user-name" style="font-size: 0.85em; font-weight: 600;">{{.Name}}</div>` +
		`<div class="pageguard-user-role" style="font-size: 0.7em; opacity: 0.8;">{{.RoleLabel}}</div>` +
		`</div>` +
		`<form method="post" action="{{.SignOutPath}}" onsubmit="return confirm({{.ConfirmText}});" style="margin: 0;">` +
		`<input type="hidden" name="confirm" value="yes">` +
		`<button class="pageguard-signout" style="background: #dc2626; color: white; border: none; padding: 6px 12px; border-radius: 6px; cursor: pointer; font-size: 0.75em; font-weight: 600;">Sign out</button>` +
		`</form>` +
		`</div>`))

var bannerTmpl = template.Must(template.New("banner").Parse(
	`<div id="pageguard-readonly-banner" role="status" style="position: fixed; top: 0; left: 0; right: 0; background: linear-gradient(135deg, #fbbf24 0%, #f59e0b 100%); color: #78350f; padding: 12px 20px; text-align: center; font-weight: 600; font-size: 0.9em; z-index: 999999; box-shadow: 0 4px 6px rgba(0,0,0,0.1); animation: pageguardSlideDown 0.5s ease-out;">` +
		`<span style="font-size: 1.2em; margin-right: 8px;">🔒</span>` +
		`<strong>READ-ONLY MODE</strong> - You cannot create, edit or delete records.` +
		`{{if .Contact}} To request administrator permissions, contact {{.Contact}}.{{end}}` +
		`</div>`))

const bannerKeyframes = `@keyframes pageguardSlideDown { from { opacity: 0; transform: translateY(-100%); } to { opacity: 1; transform: translateY(0); } }`
