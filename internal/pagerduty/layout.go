package pagerduty

import (
	"dario.cat/mergo"
)

// Layout describes where things live on the dashboard. Every field can be
// overridden from the config file when the dashboard's markup drifts, empty
// fields fall back to DefaultLayout.
type Layout struct {
	OnCallPath string `json:"on_call_path"`
	LoginPath  string `json:"login_path"`

	LoginForm     string `json:"login_form"`
	EmailField    string `json:"email_field"`
	PasswordField string `json:"password_field"`

	Policy        string `json:"policy"`
	PolicyHeading string `json:"policy_heading"`
	LevelRow      string `json:"level_row"`
	LevelLabel    string `json:"level_label"`
	Person        string `json:"person"`

	Profile      string `json:"profile"`
	ProfileEmail string `json:"profile_email"`
}

func DefaultLayout() Layout {
	return Layout{
		OnCallPath: "/on_call_info",
		LoginPath:  "/sign_in",

		LoginForm:     "form#login_form",
		EmailField:    "user[email]",
		PasswordField: "user[password]",

		Policy:        "div.escalation_policy",
		PolicyHeading: "h3",
		LevelRow:      "table.on_call_levels tr.level",
		LevelLabel:    "td.level_label",
		Person:        "td.person a",

		Profile:      "#user_profile",
		ProfileEmail: "a[href]",
	}
}

// WithDefaults returns a copy of the layout where every empty field is
// taken from DefaultLayout.
func (l Layout) WithDefaults() Layout {
	out := l
	err := mergo.Merge(&out, DefaultLayout())
	if err != nil {
		// both sides are the same plain struct type
		panic(err)
	}
	return out
}
