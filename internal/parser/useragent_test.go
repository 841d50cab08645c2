package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coffersTech/photon/internal/model"
)

const chromeOnLinux = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func TestUserAgent(t *testing.T) {
	inst := UserAgent{}.Instance()
	idx := make(map[string]int)
	for _, f := range userAgentFields {
		i, ok := inst.RequireField(f)
		require.True(t, ok)
		idx[f] = i
	}
	_, ok := inst.RequireField("colour")
	require.False(t, ok)

	a := model.NewArena(0)
	input := model.String(chromeOnLinux)
	out := inst.Parse(a, &input)
	require.Len(t, out, len(userAgentFields))

	require.Equal(t, "pc", out[idx["category"]].String())
	require.Equal(t, "Chrome", out[idx["browser"]].String())
	require.True(t, strings.HasPrefix(out[idx["browser.version"]].String(), "120."))
	require.Equal(t, "Google", out[idx["browser.vendor"]].String())
	require.Equal(t, "browser", out[idx["browser.type"]].String())
}

func TestUserAgentUnclassified(t *testing.T) {
	inst := UserAgent{}.Instance()
	a := model.NewArena(0)

	for _, in := range []model.Value{model.String(""), model.String("   "), model.Null(), model.Number(3)} {
		a.Reset()
		v := in
		out := inst.Parse(a, &v)
		require.Len(t, out, len(userAgentFields))
		for _, o := range out {
			require.False(t, o.Exists())
		}
	}
}

func TestUserAgentCategories(t *testing.T) {
	inst := UserAgent{}.Instance()
	category, _ := inst.RequireField("category")
	browserType, _ := inst.RequireField("browser.type")
	a := model.NewArena(0)

	for _, tc := range []struct {
		ua          string
		category    string
		browserType string
	}{
		{chromeOnLinux, "pc", "browser"},
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1", "smartphone", "browser"},
		{"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", "crawler", "crawler"},
		{"DoCoMo/2.0 P903i(c100;TB;W24H12)", "mobilephone", "browser"},
		{"Mozilla/5.0 (Nintendo Switch; WifiWebAuthApplet) AppleWebKit/606.4 (KHTML, like Gecko) NF/6.0.1.15.4 NintendoBrowser/5.1.0.20393", "appliance", "appliance"},
		{"Mozilla/5.0 (PlayStation 4 3.11) AppleWebKit/537.73 (KHTML, like Gecko)", "appliance", "appliance"},
		{"curl/8.4.0", "misc", "misc"},
	} {
		t.Run(tc.category+" "+tc.ua, func(t *testing.T) {
			a.Reset()
			v := model.String(tc.ua)
			out := inst.Parse(a, &v)
			require.Equal(t, tc.category, out[category].String())
			require.Equal(t, tc.browserType, out[browserType].String())
		})
	}
}
