package i18n

import (
	"strconv"
	"strings"
)

// EmailContent is a rendered security notice ready for the mailer.
type EmailContent struct {
	Subject string
	Text    string
	HTML    string
}

// notice is one localized template triple; {placeholder} markers are
// filled at render time.
type notice struct {
	subject string
	text    string
	html    string
}

func (n notice) render(values map[string]string) EmailContent {
	return EmailContent{
		Subject: render(n.subject, values),
		Text:    render(n.text, values),
		HTML:    render(n.html, values),
	}
}

type emailStrings struct {
	SignIn            notice
	TwoFactorEnabled  notice
	TwoFactorDisabled notice
	RecoveryGenerated notice
	RecoveryUsed      notice

	UnknownLocation string
	UnknownDevice   string
}

var emailTranslations = map[string]emailStrings{
	"en": {
		SignIn: notice{
			subject: "New sign-in detected",
			text: "Hello {email},\n\nYour account was signed in to on {time}.\n\n" +
				"IP address: {ip}\nLocation: {location}\nDevice: {device}\n\n" +
				"If this was not you, change your password right away.",
			html: "<p>Hello {email},</p>" +
				"<p>Your account was signed in to on <strong>{time}</strong>.</p>" +
				"<ul><li><strong>IP address:</strong> {ip}</li>" +
				"<li><strong>Location:</strong> {location}</li>" +
				"<li><strong>Device:</strong> {device}</li></ul>" +
				"<p>If this was not you, change your password right away.</p>",
		},
		TwoFactorEnabled: notice{
			subject: "Two-factor authentication turned on",
			text: "Two-factor authentication was turned on for your account on {time}.\n" +
				"If this was not you, change your password right away.",
			html: "<p>Two-factor authentication was turned on for your account on <strong>{time}</strong>.</p>" +
				"<p>If this was not you, change your password right away.</p>",
		},
		TwoFactorDisabled: notice{
			subject: "Two-factor authentication turned off",
			text: "Two-factor authentication was turned off for your account on {time}.\n" +
				"If this was not you, change your password right away.",
			html: "<p>Two-factor authentication was turned off for your account on <strong>{time}</strong>.</p>" +
				"<p>If this was not you, change your password right away.</p>",
		},
		RecoveryGenerated: notice{
			subject: "Recovery codes regenerated",
			text: "A set of {count} new recovery codes was created for your account on {time}.\n" +
				"Codes from earlier sets no longer work.\n" +
				"If this was not you, change your password right away.",
			html: "<p>A set of <strong>{count}</strong> new recovery codes was created for your account on <strong>{time}</strong>.</p>" +
				"<p>Codes from earlier sets no longer work.</p>" +
				"<p>If this was not you, change your password right away.</p>",
		},
		RecoveryUsed: notice{
			subject: "A recovery code was used",
			text: "One of your recovery codes was used on {time}.\n" +
				"{remaining} codes remain unused.\n" +
				"If this was not you, change your password right away.",
			html: "<p>One of your recovery codes was used on <strong>{time}</strong>.</p>" +
				"<p><strong>{remaining}</strong> codes remain unused.</p>" +
				"<p>If this was not you, change your password right away.</p>",
		},
		UnknownLocation: "Location unknown",
		UnknownDevice:   "Device unknown",
	},
	"de": {
		SignIn: notice{
			subject: "Neue Anmeldung erkannt",
			text: "Hallo {email},\n\nbei Ihrem Konto gab es am {time} eine neue Anmeldung.\n\n" +
				"IP-Adresse: {ip}\nStandort: {location}\nGerät: {device}\n\n" +
				"Falls Sie das nicht waren, ändern Sie bitte umgehend Ihr Passwort.",
			html: "<p>Hallo {email},</p>" +
				"<p>bei Ihrem Konto gab es am <strong>{time}</strong> eine neue Anmeldung.</p>" +
				"<ul><li><strong>IP-Adresse:</strong> {ip}</li>" +
				"<li><strong>Standort:</strong> {location}</li>" +
				"<li><strong>Gerät:</strong> {device}</li></ul>" +
				"<p>Falls Sie das nicht waren, ändern Sie bitte umgehend Ihr Passwort.</p>",
		},
		TwoFactorEnabled: notice{
			subject: "Zwei-Faktor-Authentifizierung eingeschaltet",
			text: "Die Zwei-Faktor-Authentifizierung für Ihr Konto wurde am {time} eingeschaltet.\n" +
				"Falls Sie das nicht waren, ändern Sie bitte umgehend Ihr Passwort.",
			html: "<p>Die Zwei-Faktor-Authentifizierung für Ihr Konto wurde am <strong>{time}</strong> eingeschaltet.</p>" +
				"<p>Falls Sie das nicht waren, ändern Sie bitte umgehend Ihr Passwort.</p>",
		},
		TwoFactorDisabled: notice{
			subject: "Zwei-Faktor-Authentifizierung ausgeschaltet",
			text: "Die Zwei-Faktor-Authentifizierung für Ihr Konto wurde am {time} ausgeschaltet.\n" +
				"Falls Sie das nicht waren, ändern Sie bitte umgehend Ihr Passwort.",
			html: "<p>Die Zwei-Faktor-Authentifizierung für Ihr Konto wurde am <strong>{time}</strong> ausgeschaltet.</p>" +
				"<p>Falls Sie das nicht waren, ändern Sie bitte umgehend Ihr Passwort.</p>",
		},
		RecoveryGenerated: notice{
			subject: "Wiederherstellungscodes neu erstellt",
			text: "Am {time} wurden {count} neue Wiederherstellungscodes für Ihr Konto erstellt.\n" +
				"Codes aus früheren Sätzen funktionieren nicht mehr.\n" +
				"Falls Sie das nicht waren, ändern Sie bitte umgehend Ihr Passwort.",
			html: "<p>Am <strong>{time}</strong> wurden <strong>{count}</strong> neue Wiederherstellungscodes für Ihr Konto erstellt.</p>" +
				"<p>Codes aus früheren Sätzen funktionieren nicht mehr.</p>" +
				"<p>Falls Sie das nicht waren, ändern Sie bitte umgehend Ihr Passwort.</p>",
		},
		RecoveryUsed: notice{
			subject: "Ein Wiederherstellungscode wurde verwendet",
			text: "Am {time} wurde einer Ihrer Wiederherstellungscodes verwendet.\n" +
				"{remaining} Codes sind noch unbenutzt.\n" +
				"Falls Sie das nicht waren, ändern Sie bitte umgehend Ihr Passwort.",
			html: "<p>Am <strong>{time}</strong> wurde einer Ihrer Wiederherstellungscodes verwendet.</p>" +
				"<p><strong>{remaining}</strong> Codes sind noch unbenutzt.</p>" +
				"<p>Falls Sie das nicht waren, ändern Sie bitte umgehend Ihr Passwort.</p>",
		},
		UnknownLocation: "Standort unbekannt",
		UnknownDevice:   "Gerät unbekannt",
	},
}

func emailStringsForLocale(locale string) emailStrings {
	if val, ok := emailTranslations[NormalizeLocale(locale)]; ok {
		return val
	}
	return emailTranslations[DefaultLocale]
}

func render(tmpl string, values map[string]string) string {
	if tmpl == "" || len(values) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(values)*2)
	for key, value := range values {
		pairs = append(pairs, "{"+key+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// SignInAlertEmail renders the new-sign-in notice. Location and device
// fall back to localized unknowns when the request carried no metadata.
func SignInAlertEmail(locale, email, loginTime, ip, location, device string) EmailContent {
	t := emailStringsForLocale(locale)
	if strings.TrimSpace(location) == "" {
		location = t.UnknownLocation
	}
	if strings.TrimSpace(device) == "" {
		device = t.UnknownDevice
	}
	return t.SignIn.render(map[string]string{
		"email":    email,
		"time":     loginTime,
		"ip":       ip,
		"location": location,
		"device":   device,
	})
}

func TwoFactorEnabledEmail(locale, when string) EmailContent {
	return emailStringsForLocale(locale).TwoFactorEnabled.render(map[string]string{"time": when})
}

func TwoFactorDisabledEmail(locale, when string) EmailContent {
	return emailStringsForLocale(locale).TwoFactorDisabled.render(map[string]string{"time": when})
}

func RecoveryCodesGeneratedEmail(locale, when string, count int) EmailContent {
	return emailStringsForLocale(locale).RecoveryGenerated.render(map[string]string{
		"time":  when,
		"count": strconv.Itoa(count),
	})
}

func RecoveryCodeUsedEmail(locale, when string, remaining int) EmailContent {
	return emailStringsForLocale(locale).RecoveryUsed.render(map[string]string{
		"time":      when,
		"remaining": strconv.Itoa(remaining),
	})
}
