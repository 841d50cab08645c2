package parser

import (
	"strings"

	"github.com/mssola/useragent"

	"github.com/coffersTech/photon/internal/config"
	"github.com/coffersTech/photon/internal/model"
)

var userAgentFields = []string{
	"category",
	"browser",
	"browser.version",
	"browser.vendor",
	"os",
	"os.version",
	"browser.type",
}

var browserVendors = map[string]string{
	"Chrome":            "Google",
	"Chromium":          "Google",
	"Googlebot":         "Google",
	"Android":           "Google",
	"Firefox":           "Mozilla",
	"Safari":            "Apple",
	"Edge":              "Microsoft",
	"Internet Explorer": "Microsoft",
	"Bingbot":           "Microsoft",
	"Opera":             "Opera",
	"YandexBrowser":     "Yandex",
	"Vivaldi":           "Vivaldi",
}

// Product tokens of agents outside the pc and smartphone categories.
var (
	applianceTokens   = []string{"PlayStation", "Nintendo", "Xbox", "SMART-TV", "SmartTV"}
	mobilePhoneTokens = []string{"DoCoMo/", "KDDI-", "SoftBank/", "Vodafone/", "J-PHONE/", "UP.Browser/", "WILLCOM"}
	miscTokens        = []string{"curl/", "Wget/", "Go-http-client/", "python-requests/", "Python-urllib/", "libwww-perl/", "Java/"}
)

var tokenCategory = func() map[string]string {
	m := make(map[string]string)
	for category, tokens := range map[string][]string{
		"appliance":   applianceTokens,
		"mobilephone": mobilePhoneTokens,
		"misc":        miscTokens,
	} {
		for _, t := range tokens {
			m[t] = category
		}
	}
	return m
}()

func matchToken(s string, lists ...[]string) string {
	for _, tokens := range lists {
		for _, t := range tokens {
			if strings.Contains(s, t) {
				return t
			}
		}
	}
	return ""
}

// UserAgent classifies a user agent header.
type UserAgent struct{}

func (UserAgent) Kind() string { return config.ParserUserAgent }

func (UserAgent) Type() model.FieldType { return model.FieldPhrase }

func (UserAgent) Fields() []model.FieldInfo { return keywordFields(userAgentFields) }

func (UserAgent) Instance() Instance { return userAgentInstance{} }

type userAgentInstance struct{}

func (userAgentInstance) RequireField(name string) (int, bool) {
	return indexOf(userAgentFields, name)
}

func (userAgentInstance) Parse(a *model.Arena, input *model.Value) []model.Value {
	out := a.Values(len(userAgentFields))

	s, ok := input.Str()
	if !ok || strings.TrimSpace(s) == "" {
		return out
	}

	ua := useragent.New(s)
	name, version := ua.Browser()
	os := ua.OSInfo()
	token := matchToken(s, applianceTokens, mobilePhoneTokens, miscTokens)
	if name == "" && os.Name == "" && token == "" {
		return out
	}

	category, browserType := "pc", "browser"
	switch {
	case token != "":
		category = tokenCategory[token]
		if category != "mobilephone" {
			browserType = category
		}
	case ua.Bot():
		category, browserType = "crawler", "crawler"
	case ua.Mobile():
		category = "smartphone"
	}

	for i, v := range []string{category, name, version, browserVendors[name], os.Name, os.Version, browserType} {
		if v != "" {
			out[i] = model.String(v)
		}
	}
	return out
}
