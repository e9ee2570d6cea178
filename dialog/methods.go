package dialog

import (
	"strings"

	"github.com/jrsteele09/go-passwordless/passwordless"
)

// methodAliases maps configuration spellings to delivery methods.
var methodAliases = map[string]passwordless.Method{
	"EMAIL":     passwordless.MethodEmailOTP,
	"EMAIL_OTP": passwordless.MethodEmailOTP,
	"SMS":       passwordless.MethodSMSOTP,
	"SMS_OTP":   passwordless.MethodSMSOTP,
}

// defaultMethodOrder is appended after any configured methods so every
// deployment can fall back to email.
var defaultMethodOrder = []passwordless.Method{
	passwordless.MethodEmailOTP,
	passwordless.MethodSMSOTP,
}

// ResolveMethods parses a comma or whitespace separated configuration value
// ("sms, email") into an ordered, de-duplicated method list. The configured
// order decides the dialog's initial method; unknown entries are dropped.
func ResolveMethods(raw string) []passwordless.Method {
	var values []passwordless.Method
	seen := make(map[passwordless.Method]bool)
	appendMethod := func(m passwordless.Method) {
		if m == "" || seen[m] {
			return
		}
		seen[m] = true
		values = append(values, m)
	}

	for _, item := range strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	}) {
		appendMethod(methodAliases[strings.ToUpper(strings.TrimSpace(item))])
	}
	for _, m := range defaultMethodOrder {
		appendMethod(m)
	}
	return values
}

// NormalizeMethod resolves a raw method or challenge name against the
// configured order, falling back to the first configured method.
func NormalizeMethod(value string, order []passwordless.Method) passwordless.Method {
	mapped, ok := methodAliases[strings.ToUpper(strings.TrimSpace(value))]
	if ok {
		for _, m := range order {
			if m == mapped {
				return m
			}
		}
	}
	if len(order) > 0 {
		return order[0]
	}
	return passwordless.MethodEmailOTP
}

// MethodCopy is the per-channel wording for the dialog.
type MethodCopy struct {
	Label         string
	Sending       string
	SendSuccess   string
	ResendSuccess string
}

var methodCopy = map[passwordless.Method]MethodCopy{
	passwordless.MethodEmailOTP: {
		Label:         "Email code",
		Sending:       "Sending email code...",
		SendSuccess:   "Code sent! Check your inbox and enter the digits below.",
		ResendSuccess: "A fresh email code is on the way.",
	},
	passwordless.MethodSMSOTP: {
		Label:         "Text message",
		Sending:       "Sending text message...",
		SendSuccess:   "Text sent! Check your phone and enter the digits below.",
		ResendSuccess: "We just texted you a fresh code.",
	},
}

// CopyFor returns the wording for a method, defaulting to email copy.
func CopyFor(method passwordless.Method) MethodCopy {
	if text, ok := methodCopy[method]; ok {
		return text
	}
	return methodCopy[passwordless.MethodEmailOTP]
}

// Prompt builds the code-entry prompt, naming the email when known.
func Prompt(method passwordless.Method, email string) string {
	if method == passwordless.MethodSMSOTP {
		return "Enter the code we sent via text message."
	}
	if email != "" {
		return "Enter the code we sent to " + email + "."
	}
	return "Enter the code we sent to your email."
}
