package tencent

import (
	"net/http"

	"github.com/xiansir-zhe/cloud-tool/internal/core"
)

// browserHeaders impersonate the console's own XHR calls.
var browserHeaders = [][2]string{
	{"accept", "application/json, text/javascript, */*; q=0.01"},
	{"accept-language", "zh-CN,zh;q=0.9,en;q=0.8"},
	{"cache-control", "no-cache"},
	{"content-type", "application/json; charset=UTF-8"},
	{"origin", "https://console.cloud.tencent.com"},
	{"pragma", "no-cache"},
	{"priority", "u=1, i"},
	{"referer", "https://console.cloud.tencent.com/cvm/instance/index"},
	{"sec-ch-ua", `"Google Chrome";v="131", "Chromium";v="131", "Not_A Brand";v="24"`},
	{"sec-ch-ua-mobile", "?0"},
	{"sec-ch-ua-platform", `"macOS"`},
	{"sec-fetch-dest", "empty"},
	{"sec-fetch-mode", "cors"},
	{"sec-fetch-site", "same-site"},
	{"user-agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"},
}

// setHeaders writes the browser header set plus the session credentials.
func setHeaders(h http.Header, creds core.CredentialBundle) {
	for _, kv := range browserHeaders {
		h.Set(kv[0], kv[1])
	}
	h.Set("cookie", creds.Cookie)
	h.Set("x-csrfcode", creds.CSRFToken)
}
